package auth

import (
	"context"
	"errors"

	"atlassianmcp/pkg/logging"
)

// Gateway is the single entry point tool handlers invoke before any upstream
// call: it resolves the caller's identity, produces a validated session, and
// gates the requested tool through the access policy. Errors crossing this
// boundary are always one of the structured kinds from this package, never a
// raw transport error.
type Gateway struct {
	resolver *Resolver
	cache    *ValidationCache
	flags    *FlagStore
}

// NewGateway wires the three stages together.
func NewGateway(resolver *Resolver, cache *ValidationCache, flags *FlagStore) *Gateway {
	return &Gateway{resolver: resolver, cache: cache, flags: flags}
}

// ResolveAndAuthorize runs identity resolution, session validation, and the
// policy gate for one tool call. On success it returns the session handle
// the handler uses for its upstream calls.
func (g *Gateway) ResolveAndAuthorize(ctx context.Context, tool ToolDescriptor) (Session, error) {
	desc, err := g.resolver.Resolve(ctx, tool.Service)
	if err != nil {
		var unresolved *UnresolvedIdentityError
		if errors.As(err, &unresolved) {
			return nil, err
		}
		return nil, &UnresolvedIdentityError{Reason: err.Error()}
	}

	session, err := g.cache.GetOrBuild(ctx, desc)
	if err != nil {
		var authErr *AuthenticationError
		if errors.As(err, &authErr) {
			return nil, err
		}
		// Builder failures that are not already classified surface as
		// authentication failures, with the cause attached.
		return nil, &AuthenticationError{Reason: err.Error(), Err: err}
	}

	if decision := Authorize(tool, g.flags.Snapshot()); !decision.Allowed {
		logging.Debug("Gateway", "Denied %s: %s", tool.Name, decision.Reason)
		return nil, &AuthorizationError{Tool: tool.Name, Reason: decision.Reason}
	}

	return session, nil
}

// ReportUnauthorized is the feedback path for collaborators that observe a
// 401/403 from the upstream while using a cached session. The fingerprint's
// entry is evicted so the next call re-validates.
func (g *Gateway) ReportUnauthorized(fingerprint string) {
	logging.Info("Gateway", "Upstream rejected cached session %s, evicting", shortFingerprint(fingerprint))
	g.cache.Invalidate(fingerprint)
}

// Flags exposes the flag store for transports that surface policy state
// (e.g. to list only permitted tools).
func (g *Gateway) Flags() *FlagStore { return g.flags }
