package main

import (
	"context"
	"os"

	"github.com/jingkaihe/skillkit/pkg/config"
	"github.com/jingkaihe/skillkit/pkg/logger"
	"github.com/jingkaihe/skillkit/pkg/presenter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// cfg is loaded once flags are parsed, before any command runs.
var cfg config.Config

var shutdownTracing = func(context.Context) error { return nil }

var rootCmd = &cobra.Command{
	Use:   "skillkit",
	Short: "Install and manage skills for AI coding agents",
	Long: `skillkit installs skill bundles (a SKILL.md with optional references/*.md)
into the skills directories of AI coding agents such as Claude Code, Cursor and
Codex. Skills come from local collections, GitHub repositories or a skillkit
registry, and can be copied or symlinked into place.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		loaded, err := config.Load(viper.GetViper())
		if err != nil {
			return err
		}
		cfg = loaded

		if err := logger.Configure(cfg.LogLevel, cfg.LogFormat); err != nil {
			return err
		}
		if quiet, _ := cmd.Flags().GetBool("quiet"); quiet {
			presenter.SetQuiet(true)
		}

		shutdown, err := initTracing(cmd.Context())
		if err != nil {
			logger.G(cmd.Context()).WithError(err).Warn("failed to initialise tracing")
			return nil
		}
		shutdownTracing = shutdown
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, _ []string) {
		if err := shutdownTracing(cmd.Context()); err != nil {
			logger.G(cmd.Context()).WithError(err).Warn("failed to flush traces")
		}
	},
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "warn", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "fmt", "Log format (fmt, json)")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "Only print errors and requested data")
	rootCmd.PersistentFlags().StringSlice("source", nil, "Skill source to consult instead of the configured ones (local dir, owner/repo[@ref] or registry URL); repeatable")

	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))
	viper.BindPFlag("sources", rootCmd.PersistentFlags().Lookup("source"))
}

func main() {
	if err := config.Init(viper.GetViper()); err != nil {
		presenter.Error(err, "Failed to load configuration")
		os.Exit(1)
	}

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		presenter.Error(err, "")
		os.Exit(1)
	}
}
