package main

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
	"github.com/jingkaihe/skillkit/pkg/lockfile"
	"github.com/jingkaihe/skillkit/pkg/skills"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var schemaTargets = map[string]func() any{
	"frontmatter": func() any { return &skills.Metadata{} },
	"lock":        func() any { return &lockfile.Lock{} },
}

var schemaCmd = &cobra.Command{
	Use:       "schema [frontmatter|lock]",
	Short:     "Print the JSON schema for SKILL.md frontmatter or the lockfile",
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"frontmatter", "lock"},
	RunE: func(cmd *cobra.Command, args []string) error {
		target := "frontmatter"
		if len(args) == 1 {
			target = args[0]
		}
		out, err := generateSchema(target)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(schemaCmd)
}

func generateSchema(target string) ([]byte, error) {
	newValue, ok := schemaTargets[target]
	if !ok {
		return nil, errors.Errorf("unknown schema %q, expected frontmatter or lock", target)
	}
	r := &jsonschema.Reflector{
		AllowAdditionalProperties: target == "frontmatter",
		DoNotReference:            true,
	}
	out, err := json.MarshalIndent(r.Reflect(newValue()), "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal schema")
	}
	return out, nil
}
