// Package installer places skills into agent skills directories, either as a
// copy or as a symlink, and keeps the install history and project lockfile
// in step with what is on disk.
package installer

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/jingkaihe/skillkit/pkg/archive"
	"github.com/jingkaihe/skillkit/pkg/ledger"
	"github.com/jingkaihe/skillkit/pkg/logger"
	"github.com/jingkaihe/skillkit/pkg/skills"
	"github.com/jingkaihe/skillkit/pkg/sources"
	"github.com/jingkaihe/skillkit/pkg/telemetry"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
)

// Mode selects how a skill is placed.
type Mode string

const (
	ModeCopy    Mode = "copy"
	ModeSymlink Mode = "symlink"
)

// ParseMode validates a mode name. The empty string means copy.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeCopy:
		return ModeCopy, nil
	case ModeSymlink:
		return ModeSymlink, nil
	}
	return "", errors.Errorf("invalid install mode %q: expected copy or symlink", s)
}

var (
	// ErrAlreadyInstalled is returned when the target exists and Force is unset.
	ErrAlreadyInstalled = errors.New("skill already installed")
	// ErrNotInstalled is returned when removing or diffing a skill that is absent.
	ErrNotInstalled = errors.New("skill not installed")
	// ErrSourceOverlap is returned when the install target and the skill's
	// source directory are the same or nest inside one another.
	ErrSourceOverlap = errors.New("install target overlaps the skill source")
)

// DefaultExclude lists paths never copied out of a skill source.
var DefaultExclude = archive.DefaultExclude

// Request describes one install.
type Request struct {
	Skill   string   // Name or specifier, see sources.ParseSpecifier
	Source  string   // Optional source overriding the specifier's
	Dest    string   // Skills directory; the skill lands in Dest/<name>
	Mode    Mode     // Copy when empty
	Force   bool     // Replace an existing install
	DryRun  bool     // Resolve and report without writing
	Exclude []string // Extra doublestar patterns, relative to the skill directory
}

// Result describes a completed, or with DryRun a planned, install.
type Result struct {
	Name   string   `json:"name"`
	Path   string   `json:"path"`
	Mode   Mode     `json:"mode"`
	Origin string   `json:"origin"`
	Ref    string   `json:"ref,omitempty"`
	Digest string   `json:"digest"`
	Files  []string `json:"files"`
	DryRun bool     `json:"dry_run,omitempty"`
}

// Installer installs skills resolved from a set of sources.
type Installer struct {
	resolver    *sources.Resolver
	sourceOpts  sources.Options
	cacheDir    string
	exclude     []string
	concurrency int
	ledger      *ledger.Ledger
	lockPath    string

	lockMu sync.Mutex
}

// Option configures an Installer
type Option func(*Installer)

// WithResolver sets the sources consulted for bare skill names.
func WithResolver(r *sources.Resolver) Option {
	return func(i *Installer) {
		i.resolver = r
	}
}

// WithSourceOptions sets options for sources named in specifiers.
func WithSourceOptions(opts sources.Options) Option {
	return func(i *Installer) {
		i.sourceOpts = opts
	}
}

// WithCacheDir sets where remote skills are materialized for symlink installs.
func WithCacheDir(dir string) Option {
	return func(i *Installer) {
		i.cacheDir = dir
	}
}

// WithExclude appends exclude patterns applied to every install.
func WithExclude(patterns ...string) Option {
	return func(i *Installer) {
		i.exclude = append(i.exclude, patterns...)
	}
}

// WithConcurrency bounds InstallAll parallelism.
func WithConcurrency(n int) Option {
	return func(i *Installer) {
		i.concurrency = n
	}
}

// WithLedger records installs and uninstalls in l.
func WithLedger(l *ledger.Ledger) Option {
	return func(i *Installer) {
		i.ledger = l
	}
}

// WithLockfile keeps the lockfile at path in sync with installs.
func WithLockfile(path string) Option {
	return func(i *Installer) {
		i.lockPath = path
	}
}

// New creates an installer.
func New(opts ...Option) *Installer {
	i := &Installer{
		resolver:    sources.NewResolver(),
		exclude:     append([]string(nil), DefaultExclude...),
		concurrency: 4,
	}
	for _, opt := range opts {
		opt(i)
	}
	if i.concurrency < 1 {
		i.concurrency = 1
	}
	return i
}

// Fetch resolves a skill specifier to a local directory. Callers must Close
// the result.
func (i *Installer) Fetch(ctx context.Context, skill, source string) (*sources.Fetched, error) {
	spec, err := sources.ParseSpecifier(skill)
	if err != nil {
		return nil, err
	}
	if source == "" {
		source = spec.Source
	}

	if source == "" {
		return i.resolver.Fetch(ctx, spec.Name)
	}

	src, err := sources.New(ctx, source, i.sourceOpts)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid source %q", source)
	}
	return src.Fetch(ctx, spec.Name)
}

// Install places one skill. A missing skill yields an error satisfying
// sources.IsNotFound; filesystem failures at the destination are returned
// wrapped.
func (i *Installer) Install(ctx context.Context, req Request) (res *Result, err error) {
	ctx, span := telemetry.StartSpan(ctx, "installer.install", telemetry.SkillAttributes(req.Skill, req.Dest,
		attribute.String("mode", string(req.Mode)),
		attribute.Bool("dry_run", req.DryRun),
	)...)
	defer func() { telemetry.EndSpan(span, err) }()

	if req.Dest == "" {
		return nil, errors.New("destination directory is required")
	}
	mode, err := ParseMode(string(req.Mode))
	if err != nil {
		return nil, err
	}

	fetched, err := i.Fetch(ctx, req.Skill, req.Source)
	if err != nil {
		return nil, err
	}
	defer fetched.Close()

	ctx = logger.WithInstall(ctx, fetched.Name, req.Dest)
	log := logger.G(ctx)

	exclude := append(append([]string(nil), i.exclude...), req.Exclude...)
	files, err := listFiles(fetched.Dir, exclude)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(files, skills.SkillFileName) {
		return nil, errors.Wrapf(skills.ErrMissingPrimaryDocument, "in '%s' from %s", fetched.Name, fetched.Origin)
	}
	digest, err := Digest(fetched.Dir, files)
	if err != nil {
		return nil, err
	}

	target := filepath.Join(req.Dest, fetched.Name)
	res = &Result{
		Name:   fetched.Name,
		Path:   target,
		Mode:   mode,
		Origin: fetched.Origin,
		Ref:    fetched.Ref,
		Digest: digest,
		Files:  files,
		DryRun: req.DryRun,
	}
	telemetry.SetAttributes(ctx,
		attribute.String("origin", fetched.Origin),
		attribute.String("digest", digest),
		attribute.Int("files", len(files)),
	)

	if err := checkOverlap(fetched.Dir, target); err != nil {
		return nil, err
	}
	if mode == ModeSymlink && !fetched.Local && i.cacheDir != "" {
		if err := checkOverlap(filepath.Join(i.cacheDir, fetched.Name), target); err != nil {
			return nil, err
		}
	}
	if _, err := os.Lstat(target); err == nil {
		if !req.Force {
			return nil, errors.Wrapf(ErrAlreadyInstalled, "%s (use --force to overwrite)", target)
		}
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "failed to inspect %s", target)
	}

	if req.DryRun {
		log.WithField("path", target).Debug("dry run, nothing written")
		return res, nil
	}

	switch mode {
	case ModeCopy:
		err = placeCopy(fetched.Dir, target, files)
	case ModeSymlink:
		linkTarget := fetched.Dir
		if !fetched.Local {
			if linkTarget, err = i.materialize(fetched, files); err != nil {
				return nil, err
			}
		}
		err = placeLink(linkTarget, target)
	}
	if err != nil {
		return nil, err
	}
	telemetry.AddEvent(ctx, "placed", attribute.String("path", target))

	log.WithField("path", target).WithField("mode", mode).Info("installed skill")

	source := req.Source
	if source == "" {
		if spec, perr := sources.ParseSpecifier(req.Skill); perr == nil {
			source = spec.Source
		}
	}
	if err := i.recordInstall(ctx, res, req.Dest, source); err != nil {
		return res, err
	}
	return res, nil
}

// materialize copies a remote skill into the cache so it can be symlinked.
func (i *Installer) materialize(fetched *sources.Fetched, files []string) (string, error) {
	if i.cacheDir == "" {
		return "", errors.New("symlink installs of remote skills need a cache directory")
	}
	cached := filepath.Join(i.cacheDir, fetched.Name)
	if err := placeCopy(fetched.Dir, cached, files); err != nil {
		return "", errors.Wrap(err, "failed to cache remote skill")
	}
	return cached, nil
}
