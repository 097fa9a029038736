package config

import "time"

// Transport names accepted by the serve command.
const (
	TransportStdio          = "stdio"
	TransportStreamableHTTP = "streamable-http"
	TransportSSE            = "sse"
)

// Config is the top-level configuration for the server. Values come from the
// environment first, optionally overridden by a YAML file.
type Config struct {
	Jira       ServiceConfig `yaml:"jira"`
	Confluence ServiceConfig `yaml:"confluence"`
	OAuth      OAuthConfig   `yaml:"oauth"`
	Server     ServerConfig  `yaml:"server"`
	Auth       AuthConfig    `yaml:"auth"`
	LogLevel   string        `yaml:"logLevel,omitempty"`
}

// ServiceConfig holds the connection settings for one Atlassian service
// (Jira or Confluence). Which credential fields are required depends on the
// authentication scheme selected for the deployment.
type ServiceConfig struct {
	URL           string            `yaml:"url,omitempty"`
	Username      string            `yaml:"username,omitempty"`
	APIToken      string            `yaml:"apiToken,omitempty"`
	PersonalToken string            `yaml:"personalToken,omitempty"`
	SSLVerify     *bool             `yaml:"sslVerify,omitempty"` // nil means true
	CABundle      string            `yaml:"caBundle,omitempty"`  // path to a PEM bundle for self-signed deployments
	HTTPProxy     string            `yaml:"httpProxy,omitempty"`
	HTTPSProxy    string            `yaml:"httpsProxy,omitempty"`
	SocksProxy    string            `yaml:"socksProxy,omitempty"`
	NoProxy       string            `yaml:"noProxy,omitempty"`
	CustomHeaders map[string]string `yaml:"customHeaders,omitempty"`
}

// Configured reports whether this service has a base URL set at all.
func (s ServiceConfig) Configured() bool {
	return s.URL != ""
}

// VerifySSL returns the effective SSL verification policy (default true).
func (s ServiceConfig) VerifySSL() bool {
	return s.SSLVerify == nil || *s.SSLVerify
}

// HasBasicAuth reports whether username + API token credentials are present.
func (s ServiceConfig) HasBasicAuth() bool {
	return s.Username != "" && s.APIToken != ""
}

// HasPersonalToken reports whether a personal access token is present.
func (s ServiceConfig) HasPersonalToken() bool {
	return s.PersonalToken != ""
}

// OAuthConfig holds the OAuth 2.0 (3LO) application settings for Atlassian
// Cloud. ClientID + ClientSecret + RedirectURI enable the full authorization
// code flow; BringYourOwnToken enables the multi-user mode where callers
// supply pre-obtained access tokens per request and no refresh is possible.
type OAuthConfig struct {
	ClientID          string `yaml:"clientId,omitempty"`
	ClientSecret      string `yaml:"clientSecret,omitempty"`
	RedirectURI       string `yaml:"redirectUri,omitempty"`
	Scope             string `yaml:"scope,omitempty"`
	CloudID           string `yaml:"cloudId,omitempty"`
	BringYourOwnToken bool   `yaml:"bringYourOwnToken,omitempty"`
}

// FlowConfigured reports whether the full authorization-code flow is usable.
func (o OAuthConfig) FlowConfigured() bool {
	return o.ClientID != "" && o.ClientSecret != "" && o.RedirectURI != ""
}

// Enabled reports whether any OAuth mode is in play.
func (o OAuthConfig) Enabled() bool {
	return o.FlowConfigured() || o.BringYourOwnToken
}

// ServerConfig controls the MCP transport surface.
type ServerConfig struct {
	Transport string `yaml:"transport,omitempty"` // stdio (default), streamable-http, sse
	Host      string `yaml:"host,omitempty"`
	Port      int    `yaml:"port,omitempty"`

	// MultiUser requires every call to carry its own identity in transport
	// metadata. It is only meaningful on HTTP transports; stdio serves a
	// single local user.
	MultiUser bool `yaml:"multiUser,omitempty"`

	// ReadOnly denies all tools that mutate upstream state.
	ReadOnly bool `yaml:"readOnly,omitempty"`

	// EnabledTools, when non-empty, is an allow-list of tool names. Tools
	// absent from the list are filtered out for every caller.
	EnabledTools []string `yaml:"enabledTools,omitempty"`
}

// AuthConfig carries the tunables of the authentication core. Both values
// trade latency/cost, not correctness, so they are configurable with
// conservative defaults.
type AuthConfig struct {
	// ValidationTTL bounds how long a validation verdict (positive or
	// negative) is reused without a fresh upstream probe.
	ValidationTTL time.Duration `yaml:"validationTTL,omitempty"`

	// RefreshSkew is subtracted from an OAuth token's expiry when deciding
	// whether to refresh, so tokens are renewed before they lapse mid-call.
	RefreshSkew time.Duration `yaml:"refreshSkew,omitempty"`
}

const (
	DefaultValidationTTL = 5 * time.Minute
	DefaultRefreshSkew   = 60 * time.Second
	DefaultHost          = "localhost"
	DefaultPort          = 8000
)

// ApplyDefaults fills unset fields with their defaults.
func (c *Config) ApplyDefaults() {
	if c.Server.Transport == "" {
		c.Server.Transport = TransportStdio
	}
	if c.Server.Host == "" {
		c.Server.Host = DefaultHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Auth.ValidationTTL == 0 {
		c.Auth.ValidationTTL = DefaultValidationTTL
	}
	if c.Auth.RefreshSkew == 0 {
		c.Auth.RefreshSkew = DefaultRefreshSkew
	}
	if c.OAuth.Scope == "" && c.OAuth.FlowConfigured() {
		c.OAuth.Scope = DefaultOAuthScope
	}
}

// DefaultOAuthScope requests the classic read/write API scopes plus
// offline_access, which is what makes Atlassian return a refresh token.
const DefaultOAuthScope = "read:jira-work write:jira-work read:confluence-content.all write:confluence-content offline_access"
