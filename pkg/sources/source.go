// Package sources locates skills by name, either in a collection on disk,
// in a remote registry served over HTTP, or in a GitHub repository.
package sources

import (
	"context"
	"os"
	"strings"

	"github.com/jingkaihe/skillkit/pkg/logger"
	"github.com/pkg/errors"
)

// ErrNotFound is returned when a source has no skill with the requested name.
var ErrNotFound = errors.New("skill not found in source")

// IsNotFound reports whether err means the skill is absent from a source.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Entry describes a skill offered by a source.
type Entry struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Version     string   `json:"version,omitempty"`
	References  []string `json:"references,omitempty"`
}

// Fetched is a skill made available on the local filesystem.
type Fetched struct {
	Name   string
	Dir    string // Skill directory holding SKILL.md
	Origin string // Source description recorded in history and lockfiles
	Ref    string // Version, commit or digest reported by the source
	Local  bool   // Dir is stable on disk and may be symlinked

	cleanup func() error
}

// Close removes temporary material backing the fetched skill.
func (f *Fetched) Close() error {
	if f == nil || f.cleanup == nil {
		return nil
	}
	err := f.cleanup()
	f.cleanup = nil
	return err
}

func removeAllFunc(dir string) func() error {
	return func() error { return os.RemoveAll(dir) }
}

// Source finds skills by name.
type Source interface {
	Name() string
	Fetch(ctx context.Context, name string) (*Fetched, error)
	List(ctx context.Context) ([]Entry, error)
}

// Resolver consults sources in order; the first one holding a skill wins.
type Resolver struct {
	sources []Source
}

// NewResolver creates a resolver over the given sources.
func NewResolver(sources ...Source) *Resolver {
	return &Resolver{sources: sources}
}

// Sources returns the configured sources in lookup order.
func (r *Resolver) Sources() []Source {
	return r.sources
}

// Fetch returns the named skill from the first source that has it. Misses
// are skipped; any other error aborts the lookup.
func (r *Resolver) Fetch(ctx context.Context, name string) (*Fetched, error) {
	if len(r.sources) == 0 {
		return nil, errors.New("no skill sources configured")
	}

	tried := make([]string, 0, len(r.sources))
	for _, src := range r.sources {
		fetched, err := src.Fetch(ctx, name)
		if err == nil {
			logger.G(ctx).WithField("skill", name).WithField("source", src.Name()).Debug("resolved skill")
			return fetched, nil
		}
		if !IsNotFound(err) {
			return nil, errors.Wrapf(err, "source %s", src.Name())
		}
		tried = append(tried, src.Name())
	}

	return nil, errors.Wrapf(ErrNotFound, "'%s' (searched %s)", name, strings.Join(tried, ", "))
}

// List merges the entries of every source. When several sources offer the
// same name, the entry of the earlier source is kept.
func (r *Resolver) List(ctx context.Context) ([]Entry, error) {
	seen := make(map[string]bool)
	var out []Entry
	for _, src := range r.sources {
		entries, err := src.List(ctx)
		if err != nil {
			return nil, errors.Wrapf(err, "source %s", src.Name())
		}
		for _, e := range entries {
			if seen[e.Name] {
				continue
			}
			seen[e.Name] = true
			out = append(out, e)
		}
	}
	sortEntries(out)
	return out, nil
}
