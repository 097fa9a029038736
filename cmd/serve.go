package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"atlassianmcp/internal/config"
	"atlassianmcp/internal/server"
	"atlassianmcp/pkg/logging"
)

var (
	serveConfigPath string
	serveTransport  string
	servePort       int
	serveReadOnly   bool
	serveVerbose    bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Starts the MCP server on the configured transport.

stdio (default) serves a single local user with the credentials from the
environment. streamable-http additionally supports multi-user mode, where
each request carries its own Authorization header:

  Authorization: Bearer <oauth_access_token>   (+ X-Atlassian-Cloud-Id)
  Authorization: Token <personal_access_token>

Configuration is environment-first; --config overlays a YAML file whose
operational flags (read-only mode, tool allow-list) are hot reloaded while
the server runs.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(serveConfigPath)
	if err != nil {
		return err
	}

	// Flags override environment and file.
	if serveTransport != "" {
		cfg.Server.Transport = serveTransport
	}
	if servePort != 0 {
		cfg.Server.Port = servePort
	}
	if serveReadOnly {
		cfg.Server.ReadOnly = true
	}

	level := logging.ParseLevel(cfg.LogLevel)
	if serveVerbose {
		level = logging.LevelDebug
	}
	// stdio transport owns stdout; logs always go to stderr.
	logging.Init(level, os.Stderr)

	if err := config.Validate(cfg); err != nil {
		var configErr *config.ConfigurationError
		if errors.As(err, &configErr) {
			logging.Error("Config", nil, "%s", configErr.DetailedError())
		}
		return err
	}

	srv, err := server.New(cfg)
	if err != nil {
		return err
	}
	server.SetVersion(rootCmd.Version)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx, serveConfigPath); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveConfigPath, "config", "", "Path to a YAML config file overlaying the environment")
	serveCmd.Flags().StringVar(&serveTransport, "transport", "", "Transport: stdio, streamable-http, or sse")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port for HTTP transports")
	serveCmd.Flags().BoolVar(&serveReadOnly, "read-only", false, "Deny all tools that mutate upstream state")
	serveCmd.Flags().BoolVarP(&serveVerbose, "verbose", "v", false, "Enable debug logging")
}
