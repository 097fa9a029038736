package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSingleUser() *Config {
	cfg := &Config{}
	cfg.Jira.URL = "https://example.atlassian.net"
	cfg.Jira.Username = "user@example.com"
	cfg.Jira.APIToken = "api-token"
	cfg.ApplyDefaults()
	return cfg
}

func TestValidateSingleUser(t *testing.T) {
	require.NoError(t, Validate(validSingleUser()))
}

func TestValidateNoServices(t *testing.T) {
	cfg := &Config{}
	cfg.ApplyDefaults()

	err := Validate(cfg)
	var confErr *ConfigurationError
	require.ErrorAs(t, err, &confErr)
	assert.Contains(t, confErr.Message, "no service configured")
	assert.NotEmpty(t, confErr.Suggestions)
}

func TestValidateUnknownTransport(t *testing.T) {
	cfg := validSingleUser()
	cfg.Server.Transport = "websocket"

	err := Validate(cfg)
	var confErr *ConfigurationError
	require.ErrorAs(t, err, &confErr)
	assert.Equal(t, "server.transport", confErr.Field)
}

func TestValidateMultiUser(t *testing.T) {
	t.Run("rejects stdio", func(t *testing.T) {
		cfg := validSingleUser()
		cfg.Server.MultiUser = true

		err := Validate(cfg)
		var confErr *ConfigurationError
		require.ErrorAs(t, err, &confErr)
		assert.Equal(t, "server.multiUser", confErr.Field)
	})

	t.Run("accepts http transport", func(t *testing.T) {
		cfg := validSingleUser()
		cfg.Server.MultiUser = true
		cfg.Server.Transport = TransportStreamableHTTP
		require.NoError(t, Validate(cfg))
	})

	t.Run("needs routing info", func(t *testing.T) {
		cfg := &Config{}
		cfg.Server.MultiUser = true
		cfg.Server.Transport = TransportStreamableHTTP
		cfg.OAuth.BringYourOwnToken = true
		cfg.ApplyDefaults()

		err := Validate(cfg)
		var confErr *ConfigurationError
		require.ErrorAs(t, err, &confErr)

		cfg.OAuth.CloudID = "cloud-1"
		require.NoError(t, Validate(cfg))
	})
}

func TestValidateCredentials(t *testing.T) {
	t.Run("half a basic auth pair", func(t *testing.T) {
		cfg := validSingleUser()
		cfg.Jira.APIToken = ""

		err := Validate(cfg)
		var confErr *ConfigurationError
		require.ErrorAs(t, err, &confErr)
		assert.Contains(t, confErr.Message, "JIRA_USERNAME")
	})

	t.Run("url without any credentials", func(t *testing.T) {
		cfg := &Config{}
		cfg.Confluence.URL = "https://confluence.corp.example.com"
		cfg.ApplyDefaults()

		err := Validate(cfg)
		var confErr *ConfigurationError
		require.ErrorAs(t, err, &confErr)
		assert.Equal(t, "confluence", confErr.Field)
	})

	t.Run("personal token suffices", func(t *testing.T) {
		cfg := &Config{}
		cfg.Jira.URL = "https://jira.corp.example.com"
		cfg.Jira.PersonalToken = "pat"
		cfg.ApplyDefaults()
		require.NoError(t, Validate(cfg))
	})
}

func TestValidateOAuth(t *testing.T) {
	oauthFlow := func() *Config {
		cfg := &Config{}
		cfg.Jira.URL = "https://example.atlassian.net"
		cfg.OAuth.ClientID = "client-id"
		cfg.OAuth.ClientSecret = "client-secret"
		cfg.OAuth.RedirectURI = "http://localhost:8585/callback"
		cfg.OAuth.CloudID = "cloud-1"
		cfg.ApplyDefaults()
		return cfg
	}

	t.Run("flow with cloud id", func(t *testing.T) {
		require.NoError(t, Validate(oauthFlow()))
	})

	t.Run("flow without cloud id", func(t *testing.T) {
		cfg := oauthFlow()
		cfg.OAuth.CloudID = ""
		require.Error(t, Validate(cfg))
	})

	t.Run("flow and byot are mutually exclusive", func(t *testing.T) {
		cfg := oauthFlow()
		cfg.OAuth.BringYourOwnToken = true
		require.Error(t, Validate(cfg))
	})

	t.Run("scope must allow refresh", func(t *testing.T) {
		cfg := oauthFlow()
		cfg.OAuth.Scope = "read:jira-work"
		err := Validate(cfg)
		var confErr *ConfigurationError
		require.ErrorAs(t, err, &confErr)
		assert.Equal(t, "oauth.scope", confErr.Field)
	})
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.ApplyDefaults()

	assert.Equal(t, TransportStdio, cfg.Server.Transport)
	assert.Equal(t, DefaultHost, cfg.Server.Host)
	assert.Equal(t, DefaultPort, cfg.Server.Port)
	assert.Equal(t, DefaultValidationTTL, cfg.Auth.ValidationTTL)
	assert.Equal(t, DefaultRefreshSkew, cfg.Auth.RefreshSkew)
	// The default scope only applies once the flow is configured.
	assert.Empty(t, cfg.OAuth.Scope)

	cfg.OAuth.ClientID = "id"
	cfg.OAuth.ClientSecret = "secret"
	cfg.OAuth.RedirectURI = "http://localhost:8585/callback"
	cfg.ApplyDefaults()
	assert.Contains(t, cfg.OAuth.Scope, "offline_access")
}

func TestVerifySSLDefault(t *testing.T) {
	var svc ServiceConfig
	assert.True(t, svc.VerifySSL())

	off := false
	svc.SSLVerify = &off
	assert.False(t, svc.VerifySSL())
}
