package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"sort"

	"github.com/jingkaihe/skillkit/pkg/presenter"
	"github.com/jingkaihe/skillkit/pkg/skills"
	"github.com/jingkaihe/skillkit/pkg/sources"
	"github.com/jingkaihe/skillkit/pkg/targets"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// ListConfig holds configuration for the list and search commands
type ListConfig struct {
	Installed bool
	JSON      bool
}

// NewListConfig creates a ListConfig with default values
func NewListConfig() *ListConfig {
	return &ListConfig{}
}

var listCmd = withTracing(&cobra.Command{
	Use:   "list",
	Short: "List available or installed skills",
	Long: `List the skills offered by the configured sources, or with --installed the
skills found in the agent skills directories of this project and your home
directory.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runList(cmd.Context(), cmd.OutOrStdout(), "", getListConfigFromFlags(cmd))
	},
})

var searchCmd = withTracing(&cobra.Command{
	Use:   "search <pattern>",
	Short: "Search skills by name or description",
	Long: `Search skills. A pattern with glob characters (*, ?, [...], {a,b}) is matched
against skill names; any other pattern is matched case-insensitively against
names and descriptions.

Examples:
  skillkit search openapi
  skillkit search 'solid-*' --installed`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runList(cmd.Context(), cmd.OutOrStdout(), args[0], getListConfigFromFlags(cmd))
	},
})

func init() {
	defaults := NewListConfig()
	for _, cmd := range []*cobra.Command{listCmd, searchCmd} {
		cmd.Flags().BoolP("installed", "i", defaults.Installed, "Use installed skills instead of the configured sources")
		cmd.Flags().Bool("json", defaults.JSON, "Output as JSON")
		rootCmd.AddCommand(cmd)
	}
}

func getListConfigFromFlags(cmd *cobra.Command) *ListConfig {
	config := NewListConfig()
	if installed, err := cmd.Flags().GetBool("installed"); err == nil {
		config.Installed = installed
	}
	if asJSON, err := cmd.Flags().GetBool("json"); err == nil {
		config.JSON = asJSON
	}
	return config
}

// installedSkill is a discovered skill and the agent directory holding it.
type installedSkill struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Version     string `json:"version,omitempty"`
	Path        string `json:"path"`
	Agent       string `json:"agent,omitempty"`
	Global      bool   `json:"global"`
}

func runList(ctx context.Context, w io.Writer, pattern string, config *ListConfig) error {
	match := func(*skills.Skill) bool { return true }
	if pattern != "" {
		m, err := skills.Matcher(pattern)
		if err != nil {
			return err
		}
		match = m
	}

	if config.Installed {
		return listInstalled(w, match, config.JSON)
	}

	resolver, err := newResolver(ctx)
	if err != nil {
		return err
	}
	if len(resolver.Sources()) == 0 {
		return errors.New("no skill sources configured: pass --source or set sources in config.yaml")
	}
	entries, err := resolver.List(ctx)
	if err != nil {
		return err
	}

	var matched []sources.Entry
	for _, e := range entries {
		if match(&skills.Skill{Name: e.Name, Description: e.Description}) {
			matched = append(matched, e)
		}
	}

	if config.JSON {
		return writeJSON(w, matched)
	}
	if len(matched) == 0 {
		presenter.Info("No skills found")
		return nil
	}
	rows := make([][]string, 0, len(matched))
	for _, e := range matched {
		rows = append(rows, []string{e.Name, e.Version, presenter.Truncate(e.Description, 70)})
	}
	presenter.Table([]string{"NAME", "VERSION", "DESCRIPTION"}, rows)
	return nil
}

func listInstalled(w io.Writer, match func(*skills.Skill) bool, asJSON bool) error {
	locator, err := targets.NewLocator()
	if err != nil {
		return err
	}

	// every directory is listed, so shadowed copies show up too
	var found []installedSkill
	for _, dir := range locator.AllDirs() {
		d, err := skills.NewDiscovery(skills.WithSkillDirs(dir))
		if err != nil {
			return err
		}
		discovered, err := d.DiscoverSkills()
		if err != nil {
			return err
		}
		agent, global, _ := locator.AgentFor(dir)
		for _, s := range discovered {
			if !match(s) {
				continue
			}
			found = append(found, installedSkill{
				Name:        s.Name,
				Description: s.Description,
				Version:     s.Metadata.Version,
				Path:        filepath.Join(dir, filepath.Base(s.Directory)),
				Agent:       agent,
				Global:      global,
			})
		}
	}
	sort.SliceStable(found, func(i, j int) bool { return found[i].Name < found[j].Name })

	if asJSON {
		return writeJSON(w, found)
	}
	if len(found) == 0 {
		presenter.Info("No skills installed")
		return nil
	}
	rows := make([][]string, 0, len(found))
	for _, s := range found {
		level := "project"
		if s.Global {
			level = "global"
		}
		rows = append(rows, []string{s.Name, s.Agent, level, presenter.Truncate(s.Description, 60)})
	}
	presenter.Table([]string{"NAME", "AGENT", "LEVEL", "DESCRIPTION"}, rows)
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(v), "failed to encode JSON")
}

// ShowConfig holds configuration for the show command
type ShowConfig struct {
	Reference string
	Installed bool
	From      string
}

// NewShowConfig creates a ShowConfig with default values
func NewShowConfig() *ShowConfig {
	return &ShowConfig{}
}

var showCmd = withTracing(&cobra.Command{
	Use:   "show <skill>",
	Short: "Print a skill or one of its reference documents",
	Long: `Print the SKILL.md body of a skill along with its reference documents, or the
content of one reference document with --reference.

Examples:
  skillkit show utoipa
  skillkit show utoipa --reference references/derive.md
  skillkit show utoipa --installed`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runShow(cmd.Context(), cmd.OutOrStdout(), args[0], getShowConfigFromFlags(cmd))
	},
})

func init() {
	defaults := NewShowConfig()
	showCmd.Flags().StringP("reference", "r", defaults.Reference, "Print this reference document, relative to the skill directory")
	showCmd.Flags().BoolP("installed", "i", defaults.Installed, "Show the installed copy instead of the source")
	showCmd.Flags().String("from", defaults.From, "Look the skill up in this source only")
	rootCmd.AddCommand(showCmd)
}

func getShowConfigFromFlags(cmd *cobra.Command) *ShowConfig {
	config := NewShowConfig()
	if ref, err := cmd.Flags().GetString("reference"); err == nil {
		config.Reference = ref
	}
	if installed, err := cmd.Flags().GetBool("installed"); err == nil {
		config.Installed = installed
	}
	if from, err := cmd.Flags().GetString("from"); err == nil {
		config.From = from
	}
	return config
}

func runShow(ctx context.Context, w io.Writer, name string, config *ShowConfig) error {
	var skill *skills.Skill
	if config.Installed {
		d, err := skills.NewDiscovery()
		if err != nil {
			return err
		}
		if skill, err = d.GetSkill(name); err != nil {
			return err
		}
	} else {
		inst, cleanup, err := newInstaller(ctx, "")
		if err != nil {
			return err
		}
		defer cleanup()

		fetched, err := inst.Fetch(ctx, name, config.From)
		if err != nil {
			return err
		}
		defer fetched.Close()
		if skill, err = skills.Load(fetched.Dir); err != nil {
			return err
		}
	}

	if config.Reference != "" {
		content, err := skills.ReadReference(skill, config.Reference)
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, content)
		return err
	}

	presenter.Section(skill.Name)
	presenter.Info(skill.Description)
	if skill.Metadata.Version != "" {
		presenter.Info("Version: " + skill.Metadata.Version)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, skill.Content)

	if len(skill.References) > 0 {
		rows := make([][]string, 0, len(skill.References))
		for _, ref := range skill.References {
			status := "ok"
			switch {
			case !ref.Exists:
				status = "missing"
			case !ref.Linked:
				status = "unlinked"
			}
			rows = append(rows, []string{ref.Path, ref.Title, status})
		}
		presenter.Table([]string{"REFERENCE", "TITLE", "STATUS"}, rows)
	}
	return nil
}
