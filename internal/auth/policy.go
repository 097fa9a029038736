package auth

import (
	"sync"

	"atlassianmcp/internal/config"
)

// ToolDescriptor declares the policy-relevant facts about one tool.
type ToolDescriptor struct {
	Name          string
	Service       Service
	RequiresWrite bool
}

// RuntimeFlags is the policy input computed from configuration. Cheap to
// copy; a snapshot is taken per call.
type RuntimeFlags struct {
	// EnabledTools is the allow-list; nil means every tool is allowed.
	EnabledTools map[string]struct{}

	ReadOnly bool

	JiraConfigured       bool
	ConfluenceConfigured bool
}

// Decision is the outcome of a policy evaluation. Reason is set only on
// denial and names the most specific applicable cause.
type Decision struct {
	Allowed bool
	Reason  string
}

// Denial reasons, ordered most specific first. The ordering matters for
// diagnostics: a write tool of an unconfigured service under read-only mode
// is denied as "service not configured", not "read-only mode".
const (
	ReasonServiceNotConfigured = "service not configured"
	ReasonFiltered             = "filtered"
	ReasonReadOnly             = "read-only mode"
)

// Authorize computes the access decision for one tool under the given flags.
// It is pure and stateless; evaluating it per call costs nothing worth
// caching.
func Authorize(tool ToolDescriptor, flags RuntimeFlags) Decision {
	configured := flags.JiraConfigured
	if tool.Service == ServiceConfluence {
		configured = flags.ConfluenceConfigured
	}
	if !configured {
		return Decision{Reason: ReasonServiceNotConfigured}
	}

	if flags.EnabledTools != nil {
		if _, ok := flags.EnabledTools[tool.Name]; !ok {
			return Decision{Reason: ReasonFiltered}
		}
	}

	if flags.ReadOnly && tool.RequiresWrite {
		return Decision{Reason: ReasonReadOnly}
	}

	return Decision{Allowed: true}
}

// FlagStore holds the current RuntimeFlags and supports atomic replacement
// when the operational subset of configuration is hot reloaded.
type FlagStore struct {
	mu    sync.RWMutex
	flags RuntimeFlags
}

// NewFlagStore builds the initial flags from static configuration. A service
// counts as configured when it has a base URL, or when multi-user OAuth can
// route to it through a cloud ID.
func NewFlagStore(cfg *config.Config) *FlagStore {
	fs := &FlagStore{}
	fs.flags = RuntimeFlags{
		EnabledTools:         toolSet(cfg.Server.EnabledTools),
		ReadOnly:             cfg.Server.ReadOnly,
		JiraConfigured:       cfg.Jira.Configured() || (cfg.Server.MultiUser && cfg.OAuth.CloudID != ""),
		ConfluenceConfigured: cfg.Confluence.Configured() || (cfg.Server.MultiUser && cfg.OAuth.CloudID != ""),
	}
	return fs
}

// Snapshot returns a copy of the current flags.
func (fs *FlagStore) Snapshot() RuntimeFlags {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.flags
}

// ApplyOverrides replaces the hot-reloadable subset of flags. Service
// configuration is static for the process lifetime and is left untouched.
func (fs *FlagStore) ApplyOverrides(o config.RuntimeOverrides) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.flags.ReadOnly = o.ReadOnly
	fs.flags.EnabledTools = toolSet(o.EnabledTools)
}

func toolSet(names []string) map[string]struct{} {
	if len(names) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(names))
	for _, name := range names {
		set[name] = struct{}{}
	}
	return set
}
