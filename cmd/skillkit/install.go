package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jingkaihe/skillkit/pkg/installer"
	"github.com/jingkaihe/skillkit/pkg/presenter"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// InstallConfig holds configuration for the install command
type InstallConfig struct {
	Target   *TargetConfig
	Link     bool
	Force    bool
	DryRun   bool
	Exclude  []string
	From     string
	Watch    bool
	Debounce time.Duration
	NoLock   bool
}

// NewInstallConfig creates an InstallConfig with default values
func NewInstallConfig() *InstallConfig {
	return &InstallConfig{
		Target:   NewTargetConfig(),
		Debounce: installer.DefaultDebounce,
	}
}

var installCmd = withTracing(&cobra.Command{
	Use:   "install <skill>...",
	Short: "Install skills into agent skills directories",
	Long: `Install one or more skills. A skill is named by:

  - its name, looked up in the configured sources in order: utoipa
  - a GitHub repository and name: acme/skills:utoipa@v1.2.0
  - a registry URL and name: https://skills.example.com:utoipa
  - a local collection and name: ./vendor/skills:utoipa

Skills are copied by default; --link creates a symlink instead, so edits to the
source show up immediately. Project installs are recorded in skills-lock.yaml.

Examples:
  skillkit install utoipa
  skillkit install utoipa solid-js --agent claude --agent cursor
  skillkit install acme/skills:utoipa --global
  skillkit install ./skills:utoipa --link
  skillkit install utoipa --source ./skills --watch`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInstall(cmd.Context(), args, getInstallConfigFromFlags(cmd))
	},
})

func init() {
	defaults := NewInstallConfig()
	addTargetFlags(installCmd)
	installCmd.Flags().Bool("link", defaults.Link, "Symlink the skill instead of copying it")
	installCmd.Flags().BoolP("force", "f", defaults.Force, "Replace an existing install")
	installCmd.Flags().Bool("dry-run", defaults.DryRun, "Show what would be installed without writing anything")
	installCmd.Flags().StringSlice("exclude", defaults.Exclude, "Glob of files to leave out, relative to the skill directory (repeatable)")
	installCmd.Flags().String("from", defaults.From, "Install from this source only, ignoring the configured ones")
	installCmd.Flags().BoolP("watch", "w", defaults.Watch, "Keep the copy in sync with a local source until interrupted")
	installCmd.Flags().Duration("debounce", defaults.Debounce, "Quiet period before reinstalling in --watch mode")
	installCmd.Flags().Bool("no-lock", defaults.NoLock, "Do not record the install in the project lockfile")

	rootCmd.AddCommand(installCmd)
}

func getInstallConfigFromFlags(cmd *cobra.Command) *InstallConfig {
	config := NewInstallConfig()
	config.Target = getTargetConfigFromFlags(cmd)

	if link, err := cmd.Flags().GetBool("link"); err == nil {
		config.Link = link
	}
	if force, err := cmd.Flags().GetBool("force"); err == nil {
		config.Force = force
	}
	if dryRun, err := cmd.Flags().GetBool("dry-run"); err == nil {
		config.DryRun = dryRun
	}
	if exclude, err := cmd.Flags().GetStringSlice("exclude"); err == nil {
		config.Exclude = exclude
	}
	if from, err := cmd.Flags().GetString("from"); err == nil {
		config.From = from
	}
	if watch, err := cmd.Flags().GetBool("watch"); err == nil {
		config.Watch = watch
	}
	if debounce, err := cmd.Flags().GetDuration("debounce"); err == nil {
		config.Debounce = debounce
	}
	if noLock, err := cmd.Flags().GetBool("no-lock"); err == nil {
		config.NoLock = noLock
	}
	return config
}

func installMode(link bool) installer.Mode {
	if link {
		return installer.ModeSymlink
	}
	mode, err := installer.ParseMode(cfg.Install.Mode)
	if err != nil {
		return installer.ModeCopy
	}
	return mode
}

func runInstall(ctx context.Context, args []string, config *InstallConfig) error {
	dests, err := resolveDests(ctx, config.Target)
	if err != nil {
		return err
	}

	lockPath := lockfilePath(config.Target.Global || config.DryRun, config.NoLock)
	inst, cleanup, err := newInstaller(ctx, lockPath)
	if err != nil {
		return err
	}
	defer cleanup()

	var reqs []installer.Request
	for _, skill := range args {
		for _, dest := range dests {
			reqs = append(reqs, installer.Request{
				Skill:   skill,
				Source:  config.From,
				Dest:    dest,
				Mode:    installMode(config.Link),
				Force:   config.Force,
				DryRun:  config.DryRun,
				Exclude: config.Exclude,
			})
		}
	}

	if config.Watch {
		if len(reqs) != 1 {
			return errors.New("--watch installs exactly one skill into one directory")
		}
		return watchInstall(ctx, inst, reqs[0], config.Debounce)
	}

	results, err := inst.InstallAll(ctx, reqs)
	for _, res := range results {
		reportInstall(res)
	}
	if err != nil {
		if errors.Is(err, installer.ErrAlreadyInstalled) {
			presenter.Info("Use --force to replace existing installs")
		}
		return err
	}
	return nil
}

func reportInstall(res *installer.Result) {
	if res.DryRun {
		presenter.Info(fmt.Sprintf("Would install %s -> %s (%s, %d files, %s)", res.Name, res.Path, res.Mode, len(res.Files), res.Digest))
		presenter.Files(res.Name, res.Files)
		return
	}

	origin := res.Origin
	if res.Ref != "" {
		origin += "@" + res.Ref
	}
	presenter.Success(fmt.Sprintf("Installed %s -> %s (%s from %s)", res.Name, res.Path, res.Mode, origin))
}

func watchInstall(ctx context.Context, inst *installer.Installer, req installer.Request, debounce time.Duration) error {
	if req.DryRun {
		return errors.New("--watch cannot be combined with --dry-run")
	}

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	req.Force = true
	res, err := inst.Install(ctx, req)
	if err != nil {
		return err
	}
	reportInstall(res)
	presenter.Info("Watching for changes, press Ctrl+C to stop")

	return inst.Watch(ctx, req, debounce, func(res *installer.Result, err error) {
		if err != nil {
			presenter.Error(err, "Reinstall failed")
			return
		}
		presenter.Success(fmt.Sprintf("Reinstalled %s at %s", res.Name, time.Now().Format(time.TimeOnly)))
	})
}

func pluralize(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, strings.TrimSuffix(word, "s"))
}
