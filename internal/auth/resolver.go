package auth

import (
	"context"
	"strings"

	"atlassianmcp/internal/config"
	"atlassianmcp/pkg/logging"
)

// CallMetadata is the identity-relevant transport metadata of one inbound
// call, captured by the HTTP layer before the tool handler runs. Zero value
// means the transport supplied none (stdio, or a bare HTTP request).
type CallMetadata struct {
	// Authorization is the raw Authorization header value.
	Authorization string

	// CloudID is the optional X-Atlassian-Cloud-Id header, selecting the
	// tenant for bring-your-own-token OAuth callers.
	CloudID string
}

type contextKey string

const callMetadataKey contextKey = "atlassianmcp_call_metadata"

// WithCallMetadata attaches the call's transport metadata to the context.
func WithCallMetadata(ctx context.Context, md CallMetadata) context.Context {
	return context.WithValue(ctx, callMetadataKey, md)
}

// CallMetadataFromContext retrieves the transport metadata, if any.
func CallMetadataFromContext(ctx context.Context) (CallMetadata, bool) {
	md, ok := ctx.Value(callMetadataKey).(CallMetadata)
	return md, ok
}

// Resolver derives the effective credential Descriptor for each call.
//
// In single-user mode it hands out per-service Descriptors built once at
// startup. In multi-user mode it builds a fresh Descriptor from the call's
// transport metadata and never falls back to process configuration: a
// missing or malformed identity is a rejection, not a substitution, so a
// caller can never accidentally operate as whoever the process happens to
// be configured as.
type Resolver struct {
	multiUser bool
	static    map[Service]*Descriptor

	// Connection policy applied to per-call descriptors in multi-user
	// mode; credentials come from the call, TLS/proxy/base-URL from here.
	jira       config.ServiceConfig
	confluence config.ServiceConfig
	cloudID    string // process-level default tenant for BYOT callers
}

// NewResolver builds the resolver for the configured mode. In single-user
// mode the static descriptors are constructed here; configuration must have
// been validated already, so a failure to construct one is a programming
// error surfaced to the caller.
func NewResolver(cfg *config.Config) (*Resolver, error) {
	r := &Resolver{
		multiUser:  cfg.Server.MultiUser,
		jira:       cfg.Jira,
		confluence: cfg.Confluence,
		cloudID:    cfg.OAuth.CloudID,
	}

	if r.multiUser {
		return r, nil
	}

	r.static = make(map[Service]*Descriptor)
	if cfg.Jira.Configured() {
		d, err := DescriptorFromConfig(ServiceJira, cfg.Jira, cfg.OAuth)
		if err != nil {
			return nil, err
		}
		r.static[ServiceJira] = d
	}
	if cfg.Confluence.Configured() {
		d, err := DescriptorFromConfig(ServiceConfluence, cfg.Confluence, cfg.OAuth)
		if err != nil {
			return nil, err
		}
		r.static[ServiceConfluence] = d
	}

	return r, nil
}

// Resolve returns the effective Descriptor for a call targeting the given
// service, or an UnresolvedIdentityError.
func (r *Resolver) Resolve(ctx context.Context, service Service) (*Descriptor, error) {
	if !r.multiUser {
		if d, ok := r.static[service]; ok {
			return d, nil
		}
		return nil, &UnresolvedIdentityError{Reason: string(service) + " is not configured"}
	}

	md, ok := CallMetadataFromContext(ctx)
	if !ok || md.Authorization == "" {
		return nil, &UnresolvedIdentityError{Reason: "missing Authorization header"}
	}

	scheme, token, found := strings.Cut(md.Authorization, " ")
	if !found || token == "" {
		return nil, &UnresolvedIdentityError{Reason: "malformed Authorization header"}
	}

	svcCfg := r.serviceConfig(service)
	d := &Descriptor{
		Service:       service,
		BaseURL:       svcCfg.URL,
		SSLVerify:     svcCfg.VerifySSL(),
		CABundle:      svcCfg.CABundle,
		CustomHeaders: svcCfg.CustomHeaders,
		Proxy: ProxyRules{
			HTTP:    svcCfg.HTTPProxy,
			HTTPS:   svcCfg.HTTPSProxy,
			Socks:   svcCfg.SocksProxy,
			NoProxy: svcCfg.NoProxy,
		},
	}

	switch {
	case strings.EqualFold(scheme, "Bearer"):
		cloudID := md.CloudID
		if cloudID == "" {
			cloudID = r.cloudID
		}
		if cloudID == "" && svcCfg.URL == "" {
			return nil, &UnresolvedIdentityError{
				Reason: "OAuth caller needs X-Atlassian-Cloud-Id or a configured base URL",
			}
		}
		d.Scheme = SchemeOAuthStatic
		d.Secret = token
		d.CloudID = cloudID
	case strings.EqualFold(scheme, "Token"):
		if svcCfg.URL == "" {
			return nil, &UnresolvedIdentityError{Reason: string(service) + " is not configured"}
		}
		d.Scheme = SchemePersonalToken
		d.Secret = token
	default:
		logging.Debug("Resolver", "Rejected unsupported authorization scheme %q", scheme)
		return nil, &UnresolvedIdentityError{Reason: "unsupported authorization scheme " + scheme}
	}

	return d, nil
}

func (r *Resolver) serviceConfig(service Service) config.ServiceConfig {
	if service == ServiceConfluence {
		return r.confluence
	}
	return r.jira
}

// MultiUser reports whether per-call identity is required.
func (r *Resolver) MultiUser() bool { return r.multiUser }
