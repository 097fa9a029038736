package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"atlassianmcp/pkg/logging"
)

// Load builds the configuration from the environment, then overlays the YAML
// file at path if one is given. Defaults are applied last. Load does not
// validate; call Validate separately so the caller controls when the process
// fails fast.
func Load(path string) (*Config, error) {
	cfg := FromEnv()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				logging.Info("Config", "No config file at %s, using environment only", path)
			} else {
				return nil, newConfigError("file", "cannot read %s: %v", path, err)
			}
		} else {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, newConfigError("file", "cannot parse %s: %v", path, err)
			}
			logging.Info("Config", "Loaded configuration overlay from %s", path)
		}
	}

	cfg.ApplyDefaults()
	return cfg, nil
}

// FromEnv reads the configuration from environment variables. The variable
// names match the ones the Docker images document, so existing deployments
// keep working.
func FromEnv() *Config {
	cfg := &Config{
		Jira:       serviceFromEnv("JIRA"),
		Confluence: serviceFromEnv("CONFLUENCE"),
		OAuth: OAuthConfig{
			ClientID:          os.Getenv("ATLASSIAN_OAUTH_CLIENT_ID"),
			ClientSecret:      os.Getenv("ATLASSIAN_OAUTH_CLIENT_SECRET"),
			RedirectURI:       os.Getenv("ATLASSIAN_OAUTH_REDIRECT_URI"),
			Scope:             os.Getenv("ATLASSIAN_OAUTH_SCOPE"),
			CloudID:           os.Getenv("ATLASSIAN_OAUTH_CLOUD_ID"),
			BringYourOwnToken: envBool("ATLASSIAN_OAUTH_ENABLE", false),
		},
		Server: ServerConfig{
			Transport: os.Getenv("TRANSPORT"),
			Host:      os.Getenv("HOST"),
			Port:      envInt("PORT", 0),
			MultiUser: envBool("MULTI_USER", false),
			ReadOnly:  envBool("READ_ONLY_MODE", false),
		},
		Auth: AuthConfig{
			ValidationTTL: envDuration("AUTH_VALIDATION_TTL", 0),
			RefreshSkew:   envDuration("AUTH_REFRESH_SKEW", 0),
		},
		LogLevel: os.Getenv("LOG_LEVEL"),
	}

	if raw := os.Getenv("ENABLED_TOOLS"); raw != "" {
		for _, name := range strings.Split(raw, ",") {
			if name = strings.TrimSpace(name); name != "" {
				cfg.Server.EnabledTools = append(cfg.Server.EnabledTools, name)
			}
		}
	}

	return cfg
}

func serviceFromEnv(prefix string) ServiceConfig {
	svc := ServiceConfig{
		URL:           os.Getenv(prefix + "_URL"),
		Username:      os.Getenv(prefix + "_USERNAME"),
		APIToken:      os.Getenv(prefix + "_API_TOKEN"),
		PersonalToken: os.Getenv(prefix + "_PERSONAL_TOKEN"),
		CABundle:      os.Getenv(prefix + "_CA_BUNDLE"),
		HTTPProxy:     firstEnv(prefix+"_HTTP_PROXY", "HTTP_PROXY"),
		HTTPSProxy:    firstEnv(prefix+"_HTTPS_PROXY", "HTTPS_PROXY"),
		SocksProxy:    firstEnv(prefix+"_SOCKS_PROXY", "SOCKS_PROXY"),
		NoProxy:       firstEnv(prefix+"_NO_PROXY", "NO_PROXY"),
	}

	if raw, ok := os.LookupEnv(prefix + "_SSL_VERIFY"); ok {
		v := parseBool(raw, true)
		svc.SSLVerify = &v
	}

	// Custom headers arrive as "X-Forwarded-User=alice,X-Custom=1".
	if raw := os.Getenv(prefix + "_CUSTOM_HEADERS"); raw != "" {
		headers := make(map[string]string)
		for _, pair := range strings.Split(raw, ",") {
			name, value, found := strings.Cut(strings.TrimSpace(pair), "=")
			if found && name != "" {
				headers[name] = value
			}
		}
		if len(headers) > 0 {
			svc.CustomHeaders = headers
		}
	}

	return svc
}

// firstEnv returns the first non-empty value among the named variables.
// Service-specific proxy settings override the global ones this way.
func firstEnv(names ...string) string {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}

func envBool(name string, fallback bool) bool {
	raw, ok := os.LookupEnv(name)
	if !ok {
		return fallback
	}
	return parseBool(raw, fallback)
}

func parseBool(raw string, fallback bool) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fallback
	}
	return v
}

func envInt(name string, fallback int) int {
	raw, ok := os.LookupEnv(name)
	if !ok {
		return fallback
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fallback
	}
	return v
}

func envDuration(name string, fallback time.Duration) time.Duration {
	raw, ok := os.LookupEnv(name)
	if !ok {
		return fallback
	}
	v, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fallback
	}
	return v
}
