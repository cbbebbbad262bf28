package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/jingkaihe/skillkit/pkg/presenter"
	"github.com/jingkaihe/skillkit/pkg/skills"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// ValidateConfig holds configuration for the validate command
type ValidateConfig struct {
	Strict bool
	JSON   bool
}

// NewValidateConfig creates a ValidateConfig with default values
func NewValidateConfig() *ValidateConfig {
	return &ValidateConfig{}
}

var validateCmd = withTracing(&cobra.Command{
	Use:   "validate <dir>...",
	Short: "Check skills for structural problems",
	Long: `Validate skill directories. Each argument is either a skill directory holding
a SKILL.md or a collection whose subdirectories are skills.

Errors: missing SKILL.md or frontmatter, missing or malformed name and
description, broken relative links. Warnings: a name that differs from its
directory, reference documents SKILL.md never links to.

The command exits non-zero when any error is found, or with --strict when any
warning is found.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runValidate(cmd.OutOrStdout(), args, getValidateConfigFromFlags(cmd))
	},
})

func init() {
	defaults := NewValidateConfig()
	validateCmd.Flags().Bool("strict", defaults.Strict, "Treat warnings as errors")
	validateCmd.Flags().Bool("json", defaults.JSON, "Output reports as JSON")
	rootCmd.AddCommand(validateCmd)
}

func getValidateConfigFromFlags(cmd *cobra.Command) *ValidateConfig {
	config := NewValidateConfig()
	if strict, err := cmd.Flags().GetBool("strict"); err == nil {
		config.Strict = strict
	}
	if asJSON, err := cmd.Flags().GetBool("json"); err == nil {
		config.JSON = asJSON
	}
	return config
}

// skillDirs expands a collection into its skill directories.
func skillDirs(dir string) ([]string, error) {
	if _, err := os.Stat(filepath.Join(dir, skills.SkillFileName)); err == nil {
		return []string{dir}, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", dir)
	}

	var dirs []string
	for _, e := range entries {
		sub := filepath.Join(dir, e.Name())
		if info, err := os.Stat(sub); err != nil || !info.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(sub, skills.SkillFileName)); err == nil {
			dirs = append(dirs, sub)
		}
	}
	if len(dirs) == 0 {
		// report the missing SKILL.md for the directory itself
		return []string{dir}, nil
	}
	sort.Strings(dirs)
	return dirs, nil
}

func runValidate(w io.Writer, args []string, config *ValidateConfig) error {
	var reports []*skills.Report
	for _, arg := range args {
		dirs, err := skillDirs(arg)
		if err != nil {
			return err
		}
		for _, dir := range dirs {
			reports = append(reports, skills.Validate(dir))
		}
	}

	errCount, warnCount := 0, 0
	for _, r := range reports {
		errs := r.Errors()
		errCount += errs
		warnCount += len(r.Issues) - errs
	}

	if config.JSON {
		if err := writeJSON(w, reports); err != nil {
			return err
		}
	} else {
		for _, r := range reports {
			if len(r.Issues) == 0 {
				presenter.Success(fmt.Sprintf("%s: ok", r.Directory))
				continue
			}
			for _, issue := range r.Issues {
				line := fmt.Sprintf("%s: %s", r.Directory, issue)
				if issue.Severity == skills.SeverityError {
					presenter.Error(errors.New(line), "")
				} else {
					presenter.Warning(line)
				}
			}
		}
	}

	if errCount > 0 || (config.Strict && warnCount > 0) {
		return errors.Errorf("validation failed: %s, %s", pluralize(errCount, "error"), pluralize(warnCount, "warning"))
	}
	if !config.JSON {
		presenter.Info(fmt.Sprintf("Checked %s, %s", pluralize(len(reports), "skill"), pluralize(warnCount, "warning")))
	}
	return nil
}
