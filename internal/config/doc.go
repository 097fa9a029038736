// Package config loads and validates the static process configuration.
//
// Configuration is environment-first, matching the variable names the
// deployment documentation uses (JIRA_URL, CONFLUENCE_PERSONAL_TOKEN,
// ATLASSIAN_OAUTH_CLIENT_ID, ...). A YAML file can overlay the environment
// for settings that are awkward as env vars, and a small subset of
// operational flags (read-only mode, the tool allow-list) can be hot
// reloaded from that file while the server runs.
//
// Validation happens once, at process start. A ConfigurationError is fatal:
// a process with contradictory static configuration must not serve calls.
package config
