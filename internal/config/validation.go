package config

import "strings"

// Validate checks the static configuration for the chosen deployment shape
// and fails fast on missing or contradictory fields. It is called once at
// process start; per-call identity problems are handled by the resolver, not
// here.
func Validate(cfg *Config) error {
	if !cfg.Jira.Configured() && !cfg.Confluence.Configured() && !cfg.OAuth.Enabled() {
		return &ConfigurationError{
			Message: "no service configured",
			Suggestions: []string{
				"set JIRA_URL and/or CONFLUENCE_URL",
				"or configure OAuth via ATLASSIAN_OAUTH_CLIENT_ID / ATLASSIAN_OAUTH_ENABLE",
			},
		}
	}

	switch cfg.Server.Transport {
	case TransportStdio, TransportStreamableHTTP, TransportSSE:
	default:
		return newConfigError("server.transport", "unknown transport %q (want %s, %s or %s)",
			cfg.Server.Transport, TransportStdio, TransportStreamableHTTP, TransportSSE)
	}

	if cfg.Server.MultiUser {
		if cfg.Server.Transport == TransportStdio {
			return &ConfigurationError{
				Field:   "server.multiUser",
				Message: "multi-user mode requires an HTTP transport; stdio serves a single local user",
				Suggestions: []string{
					"set TRANSPORT=streamable-http",
				},
			}
		}
		// Per-call identity still needs the base URLs to route requests.
		if !cfg.Jira.Configured() && !cfg.Confluence.Configured() && cfg.OAuth.CloudID == "" {
			return newConfigError("server.multiUser",
				"multi-user mode needs JIRA_URL/CONFLUENCE_URL or ATLASSIAN_OAUTH_CLOUD_ID to route upstream calls")
		}
		return nil
	}

	// Single-user mode: each configured service must resolve to exactly one
	// usable credential scheme.
	if cfg.Jira.Configured() {
		if err := validateServiceCredentials("jira", cfg.Jira, cfg.OAuth); err != nil {
			return err
		}
	}
	if cfg.Confluence.Configured() {
		if err := validateServiceCredentials("confluence", cfg.Confluence, cfg.OAuth); err != nil {
			return err
		}
	}

	if cfg.OAuth.FlowConfigured() && cfg.OAuth.BringYourOwnToken {
		return newConfigError("oauth",
			"bringYourOwnToken and the full OAuth flow are mutually exclusive; pick one")
	}

	if cfg.OAuth.FlowConfigured() && !strings.Contains(cfg.OAuth.Scope, "offline_access") {
		return &ConfigurationError{
			Field:   "oauth.scope",
			Message: "OAuth scope lacks offline_access; tokens could not be refreshed",
			Suggestions: []string{
				"append offline_access to ATLASSIAN_OAUTH_SCOPE",
			},
		}
	}

	return nil
}

func validateServiceCredentials(name string, svc ServiceConfig, oauth OAuthConfig) error {
	if oauth.Enabled() {
		if oauth.FlowConfigured() && oauth.CloudID == "" {
			return newConfigError(name, "OAuth authentication requires ATLASSIAN_OAUTH_CLOUD_ID")
		}
		return nil
	}
	if svc.HasPersonalToken() {
		return nil
	}
	if svc.HasBasicAuth() {
		return nil
	}
	if svc.Username != "" || svc.APIToken != "" {
		return newConfigError(name, "basic authentication needs both %s_USERNAME and %s_API_TOKEN",
			strings.ToUpper(name), strings.ToUpper(name))
	}
	return &ConfigurationError{
		Field:   name,
		Message: "no credentials configured for " + name,
		Suggestions: []string{
			"set " + strings.ToUpper(name) + "_PERSONAL_TOKEN for Server/Data Center",
			"or " + strings.ToUpper(name) + "_USERNAME + " + strings.ToUpper(name) + "_API_TOKEN for Cloud",
			"or configure OAuth",
		},
	}
}
