package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv(t *testing.T) {
	t.Setenv("JIRA_URL", "https://example.atlassian.net")
	t.Setenv("JIRA_USERNAME", "user@example.com")
	t.Setenv("JIRA_API_TOKEN", "api-token")
	t.Setenv("JIRA_SSL_VERIFY", "false")
	t.Setenv("JIRA_CUSTOM_HEADERS", "X-Forwarded-User=alice, X-Trace=1")
	t.Setenv("CONFLUENCE_URL", "https://confluence.corp.example.com")
	t.Setenv("CONFLUENCE_PERSONAL_TOKEN", "pat")
	t.Setenv("TRANSPORT", "streamable-http")
	t.Setenv("PORT", "9100")
	t.Setenv("READ_ONLY_MODE", "true")
	t.Setenv("ENABLED_TOOLS", "jira_get_issue, jira_search,")
	t.Setenv("AUTH_VALIDATION_TTL", "2m")
	t.Setenv("AUTH_REFRESH_SKEW", "90s")

	cfg := FromEnv()

	assert.Equal(t, "https://example.atlassian.net", cfg.Jira.URL)
	assert.False(t, cfg.Jira.VerifySSL())
	assert.Equal(t, map[string]string{"X-Forwarded-User": "alice", "X-Trace": "1"}, cfg.Jira.CustomHeaders)
	assert.Equal(t, "pat", cfg.Confluence.PersonalToken)
	assert.Equal(t, TransportStreamableHTTP, cfg.Server.Transport)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.True(t, cfg.Server.ReadOnly)
	assert.Equal(t, []string{"jira_get_issue", "jira_search"}, cfg.Server.EnabledTools)
	assert.Equal(t, 2*time.Minute, cfg.Auth.ValidationTTL)
	assert.Equal(t, 90*time.Second, cfg.Auth.RefreshSkew)
}

func TestFromEnvProxyPrecedence(t *testing.T) {
	t.Setenv("HTTPS_PROXY", "http://global-proxy:3128")
	t.Setenv("JIRA_HTTPS_PROXY", "http://jira-proxy:3128")
	t.Setenv("CONFLUENCE_HTTPS_PROXY", "")

	cfg := FromEnv()
	// A service-specific proxy wins over the global one; services without
	// their own setting inherit it.
	assert.Equal(t, "http://jira-proxy:3128", cfg.Jira.HTTPSProxy)
	assert.Equal(t, "http://global-proxy:3128", cfg.Confluence.HTTPSProxy)
}

func TestLoadYAMLOverlay(t *testing.T) {
	t.Setenv("JIRA_URL", "https://from-env.atlassian.net")
	t.Setenv("JIRA_USERNAME", "user@example.com")
	t.Setenv("JIRA_API_TOKEN", "api-token")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  readOnly: true
  enabledTools:
    - jira_get_issue
auth:
  validationTTL: 90s
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	// Environment values survive where the file is silent; file values win
	// where it speaks.
	assert.Equal(t, "https://from-env.atlassian.net", cfg.Jira.URL)
	assert.True(t, cfg.Server.ReadOnly)
	assert.Equal(t, []string{"jira_get_issue"}, cfg.Server.EnabledTools)
	assert.Equal(t, 90*time.Second, cfg.Auth.ValidationTTL)
	// Defaults still land on unset fields.
	assert.Equal(t, TransportStdio, cfg.Server.Transport)
}

func TestLoadMissingFileFallsBackToEnv(t *testing.T) {
	t.Setenv("JIRA_URL", "https://from-env.atlassian.net")
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "https://from-env.atlassian.net", cfg.Jira.URL)
}

func TestLoadBrokenYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [broken"), 0o644))

	_, err := Load(path)
	var confErr *ConfigurationError
	require.ErrorAs(t, err, &confErr)
}
