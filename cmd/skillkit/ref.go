package main

import (
	"context"
	"fmt"

	"github.com/jingkaihe/skillkit/pkg/presenter"
	"github.com/jingkaihe/skillkit/pkg/refs"
	"github.com/spf13/cobra"
)

// RefImportConfig holds configuration for the ref import command
type RefImportConfig struct {
	Name  string
	Force bool
}

var refCmd = &cobra.Command{
	Use:   "ref",
	Short: "Manage a skill's reference documents",
}

var refImportCmd = withTracing(&cobra.Command{
	Use:   "import <skill-dir> <url>",
	Short: "Fetch a web page into a skill's references directory",
	Long: `Download a document and store it as references/<name>.md inside the skill.
HTML pages are converted to markdown; markdown and plain text are stored as is.

Examples:
  skillkit ref import ./my-skill https://docs.example.com/guide.html
  skillkit ref import ./my-skill https://example.com/api.md --name api --force`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		config := &RefImportConfig{}
		config.Name, _ = cmd.Flags().GetString("name")
		config.Force, _ = cmd.Flags().GetBool("force")
		return runRefImport(cmd.Context(), args[0], args[1], config)
	},
})

func init() {
	refImportCmd.Flags().String("name", "", "Reference name (default: derived from the URL)")
	refImportCmd.Flags().BoolP("force", "f", false, "Overwrite an existing reference")
	refCmd.AddCommand(refImportCmd)
	rootCmd.AddCommand(refCmd)
}

func runRefImport(ctx context.Context, skillDir, url string, config *RefImportConfig) error {
	res, err := refs.NewImporter().Import(ctx, skillDir, url, config.Name, config.Force)
	if err != nil {
		return err
	}

	how := "stored"
	if res.Converted {
		how = "converted to markdown"
	}
	presenter.Success(fmt.Sprintf("Imported %s as %s (%s)", url, res.Rel, how))
	if !res.Linked {
		presenter.Info(fmt.Sprintf("Mention %s in SKILL.md so agents know to read it", res.Rel))
	}
	return nil
}
