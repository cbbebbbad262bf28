package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/jingkaihe/skillkit/pkg/db"
	"github.com/jingkaihe/skillkit/pkg/installer"
	"github.com/jingkaihe/skillkit/pkg/ledger"
	"github.com/jingkaihe/skillkit/pkg/logger"
	"github.com/jingkaihe/skillkit/pkg/skills"
	"github.com/jingkaihe/skillkit/pkg/sources"
	"github.com/jingkaihe/skillkit/pkg/targets"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// TargetConfig selects the skills directories a command operates on.
type TargetConfig struct {
	Dest   string
	Agents []string
	Global bool
}

// NewTargetConfig creates a TargetConfig with default values
func NewTargetConfig() *TargetConfig {
	return &TargetConfig{}
}

func addTargetFlags(cmd *cobra.Command) {
	defaults := NewTargetConfig()
	cmd.Flags().StringP("dest", "d", defaults.Dest, "Skills directory to use instead of an agent's")
	cmd.Flags().StringSliceP("agent", "a", defaults.Agents, "Agent whose skills directory to use: "+joinNames()+" (repeatable; default: detected agents)")
	cmd.Flags().BoolP("global", "g", defaults.Global, "Use the user-level skills directory under $HOME instead of the project's")
	cmd.MarkFlagsMutuallyExclusive("dest", "agent")
}

func getTargetConfigFromFlags(cmd *cobra.Command) *TargetConfig {
	config := NewTargetConfig()
	if dest, err := cmd.Flags().GetString("dest"); err == nil {
		config.Dest = dest
	}
	if agents, err := cmd.Flags().GetStringSlice("agent"); err == nil {
		config.Agents = agents
	}
	if global, err := cmd.Flags().GetBool("global"); err == nil {
		config.Global = global
	}
	return config
}

func joinNames() string {
	return strings.Join(targets.SortedNames(), ", ")
}

// resolveDests returns the skills directories selected by config. Without an
// explicit choice every agent detected at the level is used, falling back to
// the first known agent.
func resolveDests(ctx context.Context, config *TargetConfig) ([]string, error) {
	if config.Dest != "" {
		return []string{config.Dest}, nil
	}

	locator, err := targets.NewLocator()
	if err != nil {
		return nil, err
	}
	if len(config.Agents) > 0 {
		return locator.Resolve(config.Agents, config.Global)
	}

	var dirs []string
	for _, agent := range locator.Detect(config.Global) {
		dirs = append(dirs, locator.Dir(agent, config.Global))
	}
	if len(dirs) == 0 {
		agent, _ := targets.Lookup(targets.Names()[0])
		dirs = append(dirs, locator.Dir(agent, config.Global))
	}
	logger.G(ctx).WithField("dirs", dirs).Debug("resolved skills directories")
	return dirs, nil
}

func sourceOptions() sources.Options {
	return sources.Options{
		Retry: cfg.Retry,
		Token: cfg.Registry.Token,
	}
}

// configuredSources lists sources in lookup order: configured or flagged
// sources first, then the registry.
func configuredSources() []string {
	srcs := append([]string(nil), cfg.Sources...)
	if cfg.Registry.URL != "" {
		srcs = append(srcs, cfg.Registry.URL)
	}
	return srcs
}

func newResolver(ctx context.Context) (*sources.Resolver, error) {
	return sources.NewResolverFromStrings(ctx, configuredSources(), sourceOptions())
}

func openLedger(ctx context.Context) (*ledger.Ledger, error) {
	return ledger.Open(ctx, filepath.Join(cfg.BaseDir, db.FileName))
}

// lockfilePath returns the project lockfile, or "" for global installs.
func lockfilePath(global, noLock bool) string {
	if global || noLock || cfg.Install.Lockfile == "" {
		return ""
	}
	return cfg.Install.Lockfile
}

// newInstaller builds an installer from the loaded configuration. The
// returned cleanup closes the ledger.
func newInstaller(ctx context.Context, lockPath string) (*installer.Installer, func(), error) {
	resolver, err := newResolver(ctx)
	if err != nil {
		return nil, nil, err
	}

	opts := []installer.Option{
		installer.WithResolver(resolver),
		installer.WithSourceOptions(sourceOptions()),
		installer.WithCacheDir(cfg.CacheDir()),
		installer.WithConcurrency(cfg.Install.Concurrency),
		installer.WithExclude(cfg.Install.Exclude...),
	}
	if lockPath != "" {
		opts = append(opts, installer.WithLockfile(lockPath))
	}

	cleanup := func() {}
	l, err := openLedger(ctx)
	if err != nil {
		logger.G(ctx).WithError(err).Warn("install history unavailable")
	} else {
		opts = append(opts, installer.WithLedger(l))
		cleanup = func() { l.Close() }
	}

	return installer.New(opts...), cleanup, nil
}

// discoveryCatalog serves the skills installed across agent directories as
// one collection.
type discoveryCatalog struct {
	discovery *skills.Discovery
}

func newDiscoveryCatalog() (*discoveryCatalog, error) {
	locator, err := targets.NewLocator()
	if err != nil {
		return nil, err
	}
	d, err := skills.NewDiscovery(skills.WithLocator(locator))
	if err != nil {
		return nil, err
	}
	return &discoveryCatalog{discovery: d}, nil
}

func (c *discoveryCatalog) Collection(context.Context) (*skills.Collection, error) {
	found, err := c.discovery.DiscoverSkills()
	if err != nil {
		return nil, err
	}
	list := make([]*skills.Skill, 0, len(found))
	for _, s := range found {
		list = append(list, s)
	}
	wd, _ := os.Getwd()
	return skills.NewCollection(wd, list...)
}

// catalog supplies a collection of skills to serve or browse.
type catalog interface {
	Collection(ctx context.Context) (*skills.Collection, error)
}

// catalogFor serves dir as a collection, or the installed skills when dir is
// empty. A non-empty allow list restricts the skills exposed.
func catalogFor(dir string, allow []string) (catalog, error) {
	var c catalog
	if dir == "" {
		d, err := newDiscoveryCatalog()
		if err != nil {
			return nil, err
		}
		c = d
	} else {
		if _, err := os.Stat(dir); err != nil {
			return nil, errors.Wrapf(err, "skills directory %s", dir)
		}
		src, err := sources.NewLocalSource(dir)
		if err != nil {
			return nil, err
		}
		c = src
	}
	if len(allow) == 0 {
		return c, nil
	}
	return &allowlistCatalog{inner: c, allow: allow}, nil
}

type allowlistCatalog struct {
	inner catalog
	allow []string
}

func (c *allowlistCatalog) Collection(ctx context.Context) (*skills.Collection, error) {
	coll, err := c.inner.Collection(ctx)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]*skills.Skill, coll.Len())
	for _, s := range coll.All() {
		byName[s.Name] = s
	}
	kept := skills.FilterByAllowlist(byName, c.allow)
	list := make([]*skills.Skill, 0, len(kept))
	for _, s := range kept {
		list = append(list, s)
	}
	return skills.NewCollection(coll.Root(), list...)
}

// completeInstalled offers the names of installed skills for shell completion.
func completeInstalled(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
	d, err := skills.NewDiscovery()
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	names, err := d.ListSkillNames()
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return names, cobra.ShellCompDirectiveNoFileComp
}
