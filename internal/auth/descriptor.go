package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"atlassianmcp/internal/config"
)

// Service identifies the upstream Atlassian product a call targets.
type Service string

const (
	ServiceJira       Service = "jira"
	ServiceConfluence Service = "confluence"
)

// Scheme is the credential scheme of a Descriptor.
type Scheme string

const (
	// SchemeAPIToken is Cloud basic auth: username + API token.
	SchemeAPIToken Scheme = "api_token"
	// SchemePersonalToken is a Server/Data Center personal access token.
	SchemePersonalToken Scheme = "personal_token"
	// SchemeOAuth is the full OAuth 2.0 flow with a refreshable token
	// bundle owned by the lifecycle manager.
	SchemeOAuth Scheme = "oauth2"
	// SchemeOAuthStatic is a pre-obtained OAuth access token supplied per
	// call, with no refresh capability. Kept as its own scheme so refresh
	// stays total over SchemeOAuth only.
	SchemeOAuthStatic Scheme = "oauth2_byot"
)

// ProxyRules selects outbound proxies per URL scheme. Empty fields fall back
// to direct connections; NoProxy lists hosts exempt from proxying.
type ProxyRules struct {
	HTTP    string
	HTTPS   string
	Socks   string
	NoProxy string
}

// Descriptor is the normalized, immutable representation of one credential
// plus its connection policy. It is built once from process configuration
// (single-user mode) or once per inbound call from request metadata
// (multi-user mode) and never mutated afterwards; a changed credential is a
// new Descriptor.
type Descriptor struct {
	Service  Service
	Scheme   Scheme
	BaseURL  string
	Username string

	// Secret is the token for token schemes. For SchemeOAuth it is the
	// tenant key referencing the managed token bundle, which is stable
	// across refreshes so the fingerprint does not churn.
	Secret string

	// CloudID selects the Atlassian Cloud tenant for OAuth API routing.
	CloudID string

	// TenantKey identifies the OAuth token bundle for SchemeOAuth
	// descriptors. Empty for other schemes.
	TenantKey string

	SSLVerify     bool
	CABundle      string
	Proxy         ProxyRules
	CustomHeaders map[string]string
}

// Fingerprint returns a deterministic hash of the identity-relevant fields,
// used as the validation cache key. Two descriptors differing in any of
// scheme, service, base URL, username, secret or cloud ID produce different
// fingerprints.
func (d *Descriptor) Fingerprint() string {
	h := sha256.New()
	// A fixed separator keeps adjacent fields from gluing into collisions.
	fmt.Fprintf(h, "%s\x00%s\x00%s\x00%s\x00%s\x00%s",
		d.Scheme, d.Service, d.BaseURL, d.Username, d.Secret, d.CloudID)
	return hex.EncodeToString(h.Sum(nil))
}

// DescriptorFromConfig builds the process-level Descriptor for one service
// from validated static configuration. Scheme precedence follows the
// documented order: OAuth when configured, then personal token, then
// username + API token.
func DescriptorFromConfig(service Service, svc config.ServiceConfig, oauth config.OAuthConfig) (*Descriptor, error) {
	d := &Descriptor{
		Service:       service,
		BaseURL:       svc.URL,
		SSLVerify:     svc.VerifySSL(),
		CABundle:      svc.CABundle,
		CustomHeaders: svc.CustomHeaders,
		Proxy: ProxyRules{
			HTTP:    svc.HTTPProxy,
			HTTPS:   svc.HTTPSProxy,
			Socks:   svc.SocksProxy,
			NoProxy: svc.NoProxy,
		},
	}

	switch {
	case oauth.FlowConfigured():
		tenantKey := TenantKey(oauth.ClientID, oauth.RedirectURI)
		d.Scheme = SchemeOAuth
		d.CloudID = oauth.CloudID
		d.TenantKey = tenantKey
		d.Secret = tenantKey
	case svc.HasPersonalToken():
		d.Scheme = SchemePersonalToken
		d.Secret = svc.PersonalToken
	case svc.HasBasicAuth():
		d.Scheme = SchemeAPIToken
		d.Username = svc.Username
		d.Secret = svc.APIToken
	default:
		return nil, &UnresolvedIdentityError{Reason: fmt.Sprintf("no credentials configured for %s", service)}
	}

	return d, nil
}

// TenantKey derives the stable identity under which an OAuth token bundle is
// persisted. The client ID + redirect URI pair identifies one registered
// OAuth application; multi-user bring-your-own-token callers use an explicit
// key instead.
func TenantKey(clientID, redirectURI string) string {
	h := sha256.Sum256([]byte(clientID + "\x00" + redirectURI))
	return hex.EncodeToString(h[:16])
}
