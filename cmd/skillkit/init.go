package main

import (
	"fmt"

	"github.com/jingkaihe/skillkit/pkg/presenter"
	"github.com/jingkaihe/skillkit/pkg/skills"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init <name>",
	Short: "Scaffold a new skill",
	Long: `Create <dir>/<name>/SKILL.md with frontmatter and a starter document under
references/. The name must be lowercase letters, digits and hyphens.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("dir")
		description, _ := cmd.Flags().GetString("description")

		path, err := skills.Scaffold(dir, args[0], description)
		if err != nil {
			return err
		}
		presenter.Success(fmt.Sprintf("Created skill %s at %s", args[0], path))
		presenter.Info(fmt.Sprintf("Edit %s, then run 'skillkit validate %s'", skills.SkillFileName, path))
		return nil
	},
}

func init() {
	initCmd.Flags().String("dir", ".", "Directory to create the skill in")
	initCmd.Flags().String("description", "", "Skill description for the frontmatter")
	rootCmd.AddCommand(initCmd)
}
