package main

import (
	"context"
	"io"
	"path/filepath"
	"time"

	"github.com/jingkaihe/skillkit/pkg/ledger"
	"github.com/jingkaihe/skillkit/pkg/presenter"
	"github.com/spf13/cobra"
)

// HistoryConfig holds configuration for the history command
type HistoryConfig struct {
	Name   string
	Action string
	Dest   string
	Limit  int
	JSON   bool
}

// NewHistoryConfig creates a HistoryConfig with default values
func NewHistoryConfig() *HistoryConfig {
	return &HistoryConfig{Limit: 50}
}

var historyCmd = withTracing(&cobra.Command{
	Use:   "history [skill-name]",
	Short: "Show install and uninstall history",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		config := getHistoryConfigFromFlags(cmd)
		if len(args) == 1 {
			config.Name = args[0]
		}
		return runHistory(cmd.Context(), cmd.OutOrStdout(), config)
	},
})

func init() {
	defaults := NewHistoryConfig()
	historyCmd.Flags().String("action", defaults.Action, "Only show this action (install, uninstall)")
	historyCmd.Flags().String("dest", defaults.Dest, "Only show entries for this skills directory")
	historyCmd.Flags().IntP("limit", "n", defaults.Limit, "Maximum number of entries")
	historyCmd.Flags().Bool("json", defaults.JSON, "Output as JSON")
	rootCmd.AddCommand(historyCmd)
}

func getHistoryConfigFromFlags(cmd *cobra.Command) *HistoryConfig {
	config := NewHistoryConfig()
	if action, err := cmd.Flags().GetString("action"); err == nil {
		config.Action = action
	}
	if dest, err := cmd.Flags().GetString("dest"); err == nil {
		config.Dest = dest
	}
	if limit, err := cmd.Flags().GetInt("limit"); err == nil {
		config.Limit = limit
	}
	if asJSON, err := cmd.Flags().GetBool("json"); err == nil {
		config.JSON = asJSON
	}
	return config
}

func runHistory(ctx context.Context, w io.Writer, config *HistoryConfig) error {
	l, err := openLedger(ctx)
	if err != nil {
		return err
	}
	defer l.Close()

	entries, err := l.List(ctx, ledger.Filter{
		Name:        config.Name,
		Action:      ledger.Action(config.Action),
		Destination: absDest(config.Dest),
		Limit:       config.Limit,
	})
	if err != nil {
		return err
	}

	if config.JSON {
		return writeJSON(w, entries)
	}
	if len(entries) == 0 {
		presenter.Info("No history recorded")
		return nil
	}

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{
			e.CreatedAt.Local().Format(time.DateTime),
			string(e.Action),
			e.Name,
			e.Mode,
			e.Destination,
			e.Origin,
		})
	}
	presenter.Table([]string{"TIME", "ACTION", "NAME", "MODE", "DESTINATION", "ORIGIN"}, rows)
	return nil
}

func absDest(dest string) string {
	if dest == "" {
		return ""
	}
	if abs, err := filepath.Abs(dest); err == nil {
		return abs
	}
	return dest
}
