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

var syncCmd = withTracing(&cobra.Command{
	Use:   "sync",
	Short: "Install every skill recorded in the project lockfile",
	Long: `Install every skill listed in skills-lock.yaml into its recorded directory,
replacing what is there. Use it after cloning a project or when verify reports
drift.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		lockPath, _ := cmd.Flags().GetString("lockfile")
		return runSync(cmd.Context(), lockPath)
	},
})

var verifyCmd = withTracing(&cobra.Command{
	Use:   "verify",
	Short: "Check installed skills against the project lockfile",
	Long: `Recompute the digest of every skill listed in skills-lock.yaml and report
skills that are missing or were modified since they were installed. Exits
non-zero on any drift.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		lockPath, _ := cmd.Flags().GetString("lockfile")
		asJSON, _ := cmd.Flags().GetBool("json")
		return runVerify(cmd.Context(), cmd.OutOrStdout(), lockPath, asJSON)
	},
})

func init() {
	for _, cmd := range []*cobra.Command{syncCmd, verifyCmd} {
		cmd.Flags().String("lockfile", "", "Lockfile path (default: install.lockfile from config)")
		rootCmd.AddCommand(cmd)
	}
	verifyCmd.Flags().Bool("json", false, "Output as JSON")
}

func lockfileOrDefault(path string) string {
	if path != "" {
		return path
	}
	return cfg.Install.Lockfile
}

func runSync(ctx context.Context, lockPath string) error {
	lockPath = lockfileOrDefault(lockPath)
	inst, cleanup, err := newInstaller(ctx, "")
	if err != nil {
		return err
	}
	defer cleanup()

	results, err := inst.Sync(ctx, lockPath)
	for _, res := range results {
		reportInstall(res)
	}
	if err != nil {
		return err
	}
	if len(results) == 0 {
		presenter.Info(fmt.Sprintf("No skills recorded in %s", lockPath))
	}
	return nil
}

func runVerify(ctx context.Context, w io.Writer, lockPath string, asJSON bool) error {
	lockPath = lockfileOrDefault(lockPath)
	inst, cleanup, err := newInstaller(ctx, "")
	if err != nil {
		return err
	}
	defer cleanup()

	results, err := inst.Verify(ctx, lockPath)
	if err != nil {
		return err
	}

	drift := 0
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		if r.Status != installer.VerifyOK {
			drift++
		}
		rows = append(rows, []string{r.Entry.Name, r.Entry.Destination, string(r.Status)})
	}

	if asJSON {
		if err := writeJSON(w, results); err != nil {
			return err
		}
	} else if len(rows) > 0 {
		presenter.Table([]string{"NAME", "DESTINATION", "STATUS"}, rows)
	}

	if drift > 0 {
		return errors.Errorf("%s out of sync with %s, run 'skillkit sync' to restore", pluralize(drift, "skill"), lockPath)
	}
	if !asJSON {
		presenter.Success(fmt.Sprintf("%s match %s", pluralize(len(results), "skill"), lockPath))
	}
	return nil
}
