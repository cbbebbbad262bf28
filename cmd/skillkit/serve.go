package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jingkaihe/skillkit/pkg/logger"
	"github.com/jingkaihe/skillkit/pkg/mcpserver"
	"github.com/jingkaihe/skillkit/pkg/server"
	"github.com/spf13/cobra"
)

// ServeConfig holds configuration for the serve command
type ServeConfig struct {
	Host   string
	Port   int
	Token  string
	Skills []string
}

// NewServeConfig creates a ServeConfig from the loaded configuration
func NewServeConfig() *ServeConfig {
	return &ServeConfig{
		Host:  cfg.Server.Host,
		Port:  cfg.Server.Port,
		Token: cfg.Server.Token,
	}
}

var serveCmd = withTracing(&cobra.Command{
	Use:   "serve [skills-dir]",
	Short: "Serve a skill collection as an HTTP registry",
	Long: `Serve a directory of skills over HTTP so other machines can install from it
with --source http://host:port. Without a directory the skills installed for
the detected agents are served.

Endpoints:
  GET /v1/skills
  GET /v1/skills/{name}
  GET /v1/skills/{name}/archive
  GET /v1/skills/{name}/references/{path}`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var dir string
		if len(args) == 1 {
			dir = args[0]
		}
		return runServe(cmd.Context(), dir, getServeConfigFromFlags(cmd))
	},
})

var mcpCmd = &cobra.Command{
	Use:   "mcp [skills-dir]",
	Short: "Expose skills to agents over the Model Context Protocol (stdio)",
	Long: `Run an MCP server on stdin/stdout offering the list_skills, search_skills,
get_skill and get_reference tools. Without a directory the skills installed
for the detected agents are served.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var dir string
		if len(args) == 1 {
			dir = args[0]
		}
		only, _ := cmd.Flags().GetStringSlice("skill")
		return runMCP(cmd.Context(), dir, only)
	},
}

func init() {
	serveCmd.Flags().String("host", "", "Host to bind to (default: server.host from config)")
	serveCmd.Flags().IntP("port", "p", 0, "Port to listen on (default: server.port from config)")
	serveCmd.Flags().String("token", "", "Require this bearer token on /v1 requests")
	for _, cmd := range []*cobra.Command{serveCmd, mcpCmd} {
		cmd.Flags().StringSlice("skill", nil, "Only expose these skills (repeatable)")
	}
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(mcpCmd)
}

func getServeConfigFromFlags(cmd *cobra.Command) *ServeConfig {
	config := NewServeConfig()
	if cmd.Flags().Changed("host") {
		config.Host, _ = cmd.Flags().GetString("host")
	}
	if cmd.Flags().Changed("port") {
		config.Port, _ = cmd.Flags().GetInt("port")
	}
	if cmd.Flags().Changed("token") {
		config.Token, _ = cmd.Flags().GetString("token")
	}
	if only, err := cmd.Flags().GetStringSlice("skill"); err == nil {
		config.Skills = only
	}
	return config
}

func runServe(ctx context.Context, dir string, config *ServeConfig) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	catalog, err := catalogFor(dir, config.Skills)
	if err != nil {
		return err
	}
	srv, err := server.New(catalog, server.Config{
		Host:  config.Host,
		Port:  config.Port,
		Token: config.Token,
	})
	if err != nil {
		return err
	}
	return srv.Start(ctx)
}

func runMCP(ctx context.Context, dir string, only []string) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	catalog, err := catalogFor(dir, only)
	if err != nil {
		return err
	}
	logger.G(ctx).WithField("dir", dir).Debug("starting MCP server on stdio")
	return mcpserver.New(catalog).Run(ctx)
}
