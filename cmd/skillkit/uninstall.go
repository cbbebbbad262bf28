package main

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/jingkaihe/skillkit/pkg/installer"
	"github.com/jingkaihe/skillkit/pkg/presenter"
	"github.com/jingkaihe/skillkit/pkg/targets"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// UninstallConfig holds configuration for the uninstall command
type UninstallConfig struct {
	Target *TargetConfig
	NoLock bool
}

// NewUninstallConfig creates an UninstallConfig with default values
func NewUninstallConfig() *UninstallConfig {
	return &UninstallConfig{Target: NewTargetConfig()}
}

var uninstallCmd = withTracing(&cobra.Command{
	Use:     "uninstall <skill-name>...",
	Aliases: []string{"remove", "rm"},
	Short:   "Remove installed skills",
	Long: `Remove installed skills from agent skills directories. Symlinked installs are
unlinked; the directory they point to is left untouched.

Examples:
  skillkit uninstall utoipa
  skillkit uninstall utoipa solid-js --global`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runUninstall(cmd.Context(), args, getUninstallConfigFromFlags(cmd))
	},
})

func init() {
	defaults := NewUninstallConfig()
	addTargetFlags(uninstallCmd)
	uninstallCmd.ValidArgsFunction = completeInstalled
	uninstallCmd.Flags().Bool("no-lock", defaults.NoLock, "Do not update the project lockfile")
	rootCmd.AddCommand(uninstallCmd)
}

func getUninstallConfigFromFlags(cmd *cobra.Command) *UninstallConfig {
	config := NewUninstallConfig()
	config.Target = getTargetConfigFromFlags(cmd)
	if noLock, err := cmd.Flags().GetBool("no-lock"); err == nil {
		config.NoLock = noLock
	}
	return config
}

func runUninstall(ctx context.Context, names []string, config *UninstallConfig) error {
	// without an explicit target, look in every agent directory of the level
	if config.Target.Dest == "" && len(config.Target.Agents) == 0 {
		config.Target.Agents = targets.Names()
	}
	dests, err := resolveDests(ctx, config.Target)
	if err != nil {
		return err
	}

	inst, cleanup, err := newInstaller(ctx, lockfilePath(config.Target.Global, config.NoLock))
	if err != nil {
		return err
	}
	defer cleanup()

	var merr *multierror.Error
	for _, name := range names {
		found := false
		for _, dest := range dests {
			path, err := inst.Uninstall(ctx, name, dest)
			if errors.Is(err, installer.ErrNotInstalled) {
				continue
			}
			found = true
			if path != "" {
				presenter.Success(fmt.Sprintf("Removed %s", path))
			}
			if err != nil {
				merr = multierror.Append(merr, errors.Wrapf(err, "%s", name))
			}
		}
		if !found {
			merr = multierror.Append(merr, errors.Wrapf(installer.ErrNotInstalled, "'%s'", name))
		}
	}
	return merr.ErrorOrNil()
}
