package cmd

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"atlassianmcp/internal/auth"
	"atlassianmcp/internal/config"
)

// Exit codes for CLI commands.
const (
	ExitCodeSuccess = 0
	ExitCodeError   = 1
	// ExitCodeConfig indicates invalid or incomplete static configuration.
	ExitCodeConfig = 2
	// ExitCodeAuth indicates an authentication failure (bad credentials or
	// a failed OAuth flow).
	ExitCodeAuth = 3
)

// rootCmd is the entry point when the binary runs without a subcommand.
var rootCmd = &cobra.Command{
	Use:   "atlassianmcp",
	Short: "MCP server for Jira and Confluence",
	Long: `atlassianmcp exposes Jira and Confluence to AI assistants over the
Model Context Protocol. It supports Cloud and Server/Data Center
deployments, three credential schemes (API token, personal access
token, OAuth 2.0), and a multi-user HTTP mode where every caller
brings their own credentials.`,
	SilenceUsage: true,
}

// SetVersion sets the version for the root command, injected by main.
func SetVersion(v string) {
	rootCmd.Version = v
}

// Execute runs the CLI. It maps structured errors to semantic exit codes
// for scripting.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "atlassianmcp version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	var configErr *config.ConfigurationError
	if errors.As(err, &configErr) {
		return ExitCodeConfig
	}

	var authnErr *auth.AuthenticationError
	var identityErr *auth.UnresolvedIdentityError
	if errors.As(err, &authnErr) || errors.As(err, &identityErr) {
		return ExitCodeAuth
	}

	return ExitCodeError
}
