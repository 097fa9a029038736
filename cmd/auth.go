package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"atlassianmcp/internal/auth"
	"atlassianmcp/internal/config"
	"atlassianmcp/internal/oauth"
	"atlassianmcp/pkg/logging"
)

// loginTimeout bounds how long the login command waits for the browser
// round trip.
const loginTimeout = 5 * time.Minute

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage OAuth credentials",
}

var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Run the OAuth authorization flow and store the token bundle",
	Long: `Starts a local callback listener on the configured redirect URI, prints
the Atlassian authorization URL to open in a browser, exchanges the
returned code for tokens, and stores the bundle in the system keychain
(or a file fallback).`,
	Args: cobra.NoArgs,
	RunE: runAuthLogin,
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the stored OAuth token bundle",
	Args:  cobra.NoArgs,
	RunE:  runAuthStatus,
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Delete the stored OAuth token bundle",
	Args:  cobra.NoArgs,
	RunE:  runAuthLogout,
}

// oauthManager loads config and builds the token manager for the auth
// subcommands.
func oauthManager() (*oauth.Manager, *config.Config, error) {
	cfg, err := config.Load("")
	if err != nil {
		return nil, nil, err
	}
	if !cfg.OAuth.FlowConfigured() {
		return nil, nil, &config.ConfigurationError{
			Field:   "oauth",
			Message: "OAuth flow is not configured",
			Suggestions: []string{
				"set ATLASSIAN_OAUTH_CLIENT_ID, ATLASSIAN_OAUTH_CLIENT_SECRET and ATLASSIAN_OAUTH_REDIRECT_URI",
			},
		}
	}

	store, err := oauth.NewDefaultStore()
	if err != nil {
		return nil, nil, fmt.Errorf("open secret store: %w", err)
	}
	return oauth.NewManager(cfg.OAuth, cfg.Auth, store), cfg, nil
}

func runAuthLogin(cmd *cobra.Command, args []string) error {
	logging.Init(logging.LevelInfo, os.Stderr)

	mgr, cfg, err := oauthManager()
	if err != nil {
		return err
	}

	redirect, err := url.Parse(cfg.OAuth.RedirectURI)
	if err != nil {
		return fmt.Errorf("invalid redirect URI: %w", err)
	}

	state := uuid.NewString()
	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)

	mux := http.NewServeMux()
	mux.HandleFunc(redirect.Path, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("state") != state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			errCh <- errors.New("authorization callback state mismatch")
			return
		}
		code := r.URL.Query().Get("code")
		if code == "" {
			http.Error(w, "missing code", http.StatusBadRequest)
			errCh <- fmt.Errorf("authorization denied: %s", r.URL.Query().Get("error"))
			return
		}
		fmt.Fprintln(w, "Authorization complete. You can close this tab.")
		codeCh <- code
	})

	callback := &http.Server{Addr: redirect.Host, Handler: mux}
	go func() {
		if err := callback.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		callback.Shutdown(shutdownCtx)
	}()

	fmt.Fprintf(cmd.OutOrStdout(), "Open this URL in your browser to authorize:\n\n  %s\n\n", mgr.AuthCodeURL(state))

	ctx, cancel := context.WithTimeout(cmd.Context(), loginTimeout)
	defer cancel()

	var code string
	select {
	case code = <-codeCh:
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return errors.New("timed out waiting for authorization callback")
	}

	bundle, err := mgr.Exchange(ctx, code)
	if err != nil {
		return err
	}

	tenantKey := auth.TenantKey(cfg.OAuth.ClientID, cfg.OAuth.RedirectURI)
	if err := mgr.Save(tenantKey, bundle); err != nil {
		return fmt.Errorf("store token bundle: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Authorized. cloud_id=%s, token expires %s\n",
		bundle.CloudID, bundle.ExpiresAt.Format(time.RFC3339))
	if cfg.OAuth.CloudID == "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Set ATLASSIAN_OAUTH_CLOUD_ID=%s to pin this site.\n", bundle.CloudID)
	}
	return nil
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	logging.Init(logging.LevelWarn, os.Stderr)

	mgr, cfg, err := oauthManager()
	if err != nil {
		return err
	}

	tenantKey := auth.TenantKey(cfg.OAuth.ClientID, cfg.OAuth.RedirectURI)
	bundle, err := mgr.Load(tenantKey)
	if err != nil {
		return err
	}
	if bundle == nil {
		fmt.Fprintln(cmd.OutOrStdout(), "Not authorized. Run: atlassianmcp auth login")
		return nil
	}

	status := "valid"
	if bundle.NeedsRefresh(0) {
		status = "expired (will refresh on next use)"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "cloud_id:  %s\nscope:     %s\nexpires:   %s\nstatus:    %s\naccess:    %s\n",
		bundle.CloudID, bundle.Scope, bundle.ExpiresAt.Format(time.RFC3339), status,
		logging.MaskSecret(bundle.AccessToken))
	return nil
}

func runAuthLogout(cmd *cobra.Command, args []string) error {
	logging.Init(logging.LevelWarn, os.Stderr)

	mgr, cfg, err := oauthManager()
	if err != nil {
		return err
	}

	tenantKey := auth.TenantKey(cfg.OAuth.ClientID, cfg.OAuth.RedirectURI)
	if err := mgr.Forget(tenantKey); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Stored token bundle deleted.")
	return nil
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authStatusCmd)
	authCmd.AddCommand(authLogoutCmd)
}
