package main

import (
	"context"
	"fmt"
	"io"

	"github.com/jingkaihe/skillkit/pkg/installer"
	"github.com/jingkaihe/skillkit/pkg/presenter"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// DiffConfig holds configuration for the diff command
type DiffConfig struct {
	Target *TargetConfig
	From   string
	Stat   bool
}

// NewDiffConfig creates a DiffConfig with default values
func NewDiffConfig() *DiffConfig {
	return &DiffConfig{Target: NewTargetConfig()}
}

var diffCmd = withTracing(&cobra.Command{
	Use:   "diff <skill>",
	Short: "Show how an installed skill differs from its source",
	Long: `Compare the installed copy of a skill with the version its source offers now
and print a unified diff for every added, removed or modified file.

Examples:
  skillkit diff utoipa
  skillkit diff utoipa --global --stat`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDiff(cmd.Context(), cmd.OutOrStdout(), args[0], getDiffConfigFromFlags(cmd))
	},
})

func init() {
	defaults := NewDiffConfig()
	addTargetFlags(diffCmd)
	diffCmd.ValidArgsFunction = completeInstalled
	diffCmd.Flags().String("from", defaults.From, "Compare against this source only")
	diffCmd.Flags().Bool("stat", defaults.Stat, "Only list changed files")
	rootCmd.AddCommand(diffCmd)
}

func getDiffConfigFromFlags(cmd *cobra.Command) *DiffConfig {
	config := NewDiffConfig()
	config.Target = getTargetConfigFromFlags(cmd)
	if from, err := cmd.Flags().GetString("from"); err == nil {
		config.From = from
	}
	if stat, err := cmd.Flags().GetBool("stat"); err == nil {
		config.Stat = stat
	}
	return config
}

func runDiff(ctx context.Context, w io.Writer, skill string, config *DiffConfig) error {
	dests, err := resolveDests(ctx, config.Target)
	if err != nil {
		return err
	}

	inst, cleanup, err := newInstaller(ctx, "")
	if err != nil {
		return err
	}
	defer cleanup()

	compared := 0
	for _, dest := range dests {
		d, err := inst.Diff(ctx, skill, config.From, dest)
		if errors.Is(err, installer.ErrNotInstalled) {
			continue
		}
		if err != nil {
			return err
		}
		compared++

		if !d.Changed() {
			presenter.Success(fmt.Sprintf("%s is up to date with %s", d.Installed, d.Origin))
			continue
		}
		presenter.Section(fmt.Sprintf("%s (%s)", d.Installed, d.Origin))
		for _, f := range d.Files {
			if config.Stat {
				fmt.Fprintf(w, "%-8s %s\n", f.Status, f.Path)
				continue
			}
			fmt.Fprint(w, f.Unified)
		}
	}

	if compared == 0 {
		return errors.Wrapf(installer.ErrNotInstalled, "'%s' in %v", skill, dests)
	}
	return nil
}
