package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jingkaihe/skillkit/pkg/archive"
	"github.com/jingkaihe/skillkit/pkg/installer"
	"github.com/jingkaihe/skillkit/pkg/presenter"
	"github.com/jingkaihe/skillkit/pkg/skills"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var packCmd = withTracing(&cobra.Command{
	Use:   "pack <skill-dir>",
	Short: "Validate a skill and package it as a tar.gz archive",
	Long: `Validate a skill directory and write it as a reproducible gzip'd tarball, the
same format the registry serves. The output defaults to <name>.tar.gz in the
current directory.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")
		return runPack(cmd.Context(), args[0], output)
	},
})

func init() {
	packCmd.Flags().StringP("output", "o", "", "Output file (default: <name>.tar.gz)")
	rootCmd.AddCommand(packCmd)
}

func runPack(_ context.Context, dir, output string) error {
	report := skills.Validate(dir)
	if report.HasErrors() {
		for _, issue := range report.Issues {
			if issue.Severity == skills.SeverityError {
				presenter.Warning(issue.String())
			}
		}
		return errors.Errorf("%s is not a valid skill: %s", dir, pluralize(report.Errors(), "error"))
	}

	name := filepath.Base(filepath.Clean(dir))
	if report.Skill != nil {
		name = report.Skill.Name
	}
	if output == "" {
		output = name + ".tar.gz"
	}

	f, err := os.Create(output)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", output)
	}
	if err := archive.Pack(dir, f); err != nil {
		f.Close()
		os.Remove(output)
		return err
	}
	if err := f.Close(); err != nil {
		return errors.Wrapf(err, "failed to write %s", output)
	}

	digest, _, err := installer.DigestDir(dir)
	if err != nil {
		return err
	}
	presenter.Success(fmt.Sprintf("Packed %s into %s (%s)", name, output, digest))
	return nil
}
