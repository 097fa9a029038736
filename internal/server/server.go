package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/server"

	"atlassianmcp/internal/atlassian"
	"atlassianmcp/internal/auth"
	"atlassianmcp/internal/config"
	"atlassianmcp/internal/oauth"
	"atlassianmcp/internal/tools"
	"atlassianmcp/pkg/logging"
)

// Server assembles the authentication core and serves the MCP tool surface
// on the configured transport.
type Server struct {
	cfg     *config.Config
	gateway *auth.Gateway
	flags   *auth.FlagStore
	mcp     *server.MCPServer
}

// New wires resolver, token manager, session factory, validation cache and
// policy into a ready server. Static configuration must already be
// validated.
func New(cfg *config.Config) (*Server, error) {
	resolver, err := auth.NewResolver(cfg)
	if err != nil {
		return nil, err
	}

	var tokens *oauth.Manager
	if cfg.OAuth.FlowConfigured() {
		store, err := oauth.NewDefaultStore()
		if err != nil {
			return nil, fmt.Errorf("open secret store: %w", err)
		}
		tokens = oauth.NewManager(cfg.OAuth, cfg.Auth, store)
	}

	factory := atlassian.NewFactory(tokens)
	cache := auth.NewValidationCache(cfg.Auth.ValidationTTL, factory.Build)
	if tokens != nil {
		// A failed refresh invalidates every session derived from the
		// tenant's bundle.
		tokens.SetRefreshFailureHook(cache.InvalidateTenant)
	}

	flags := auth.NewFlagStore(cfg)
	gateway := auth.NewGateway(resolver, cache, flags)

	mcpServer := server.NewMCPServer(
		"atlassianmcp",
		serverVersion,
		server.WithToolCapabilities(true),
	)
	tools.NewToolset(gateway).Register(mcpServer)

	return &Server{
		cfg:     cfg,
		gateway: gateway,
		flags:   flags,
		mcp:     mcpServer,
	}, nil
}

// serverVersion is injected by the build via cmd.SetVersion; default for
// tests and go run.
var serverVersion = "dev"

// SetVersion records the build version reported in the MCP handshake.
func SetVersion(v string) {
	if v != "" {
		serverVersion = v
	}
}

// Run serves until ctx is cancelled. configPath, when non-empty, is watched
// for runtime-flag changes (read-only mode, tool allow-list).
func (s *Server) Run(ctx context.Context, configPath string) error {
	if configPath != "" {
		if err := config.WatchRuntimeOverrides(ctx, configPath, s.flags.ApplyOverrides); err != nil {
			logging.Warn("Server", "Config watch disabled: %v", err)
		}
	}

	switch s.cfg.Server.Transport {
	case config.TransportStdio:
		return s.runStdio(ctx)
	case config.TransportSSE:
		return s.runSSE(ctx)
	default:
		return s.runStreamableHTTP(ctx)
	}
}

func (s *Server) runStdio(ctx context.Context) error {
	logging.Info("Server", "Serving on stdio transport")
	stdio := server.NewStdioServer(s.mcp)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

func (s *Server) runSSE(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	logging.Info("Server", "Serving on SSE transport at %s", addr)

	sse := server.NewSSEServer(s.mcp,
		server.WithBaseURL("http://"+addr),
		server.WithKeepAlive(true),
		server.WithKeepAliveInterval(30*time.Second),
		server.WithSSEContextFunc(captureCallMetadata),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := sse.Start(addr); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("sse server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return sse.Shutdown(shutdownCtx)
	}
}

func (s *Server) runStreamableHTTP(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	logging.Info("Server", "Serving on streamable-http transport at %s (multi-user=%v)",
		addr, s.cfg.Server.MultiUser)

	streamable := server.NewStreamableHTTPServer(s.mcp,
		server.WithHTTPContextFunc(captureCallMetadata),
	)

	mux := http.NewServeMux()
	mux.Handle("/mcp", streamable)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})

	httpServer := &http.Server{
		Addr:           addr,
		Handler:        mux,
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   0, // streaming responses manage their own lifetime
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		logging.Info("Server", "Shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	}
}
