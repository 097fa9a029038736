package atlassian

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"

	"golang.org/x/net/http/httpproxy"

	"atlassianmcp/internal/auth"
	"atlassianmcp/internal/oauth"
	"atlassianmcp/pkg/logging"
)

// cloudAPIBase is the gateway OAuth-authenticated calls go through; the
// cloud ID selects the tenant behind it.
const cloudAPIBase = "https://api.atlassian.com/ex"

// Factory builds upstream sessions for resolved credential descriptors. For
// managed OAuth descriptors it consults the token lifecycle manager for a
// fresh access token first. Build satisfies auth.SessionBuilder.
type Factory struct {
	tokens *oauth.Manager
}

// NewFactory creates the session factory. tokens may be nil when no OAuth
// flow is configured; building a SchemeOAuth descriptor then fails.
func NewFactory(tokens *oauth.Manager) *Factory {
	return &Factory{tokens: tokens}
}

// Build constructs and validates a session for the descriptor: TLS policy,
// proxy rules, base-URL dialect, credential decoration, then a lightweight
// identity probe against the upstream.
func (f *Factory) Build(ctx context.Context, d *auth.Descriptor) (auth.Session, error) {
	session, err := f.assemble(ctx, d)
	if err != nil {
		return nil, err
	}
	if err := probe(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (f *Factory) assemble(ctx context.Context, d *auth.Descriptor) (*Session, error) {
	transport, err := newTransport(d)
	if err != nil {
		return nil, err
	}

	s := &Session{
		service:       d.Service,
		fingerprint:   d.Fingerprint(),
		customHeaders: d.CustomHeaders,
		client: &http.Client{
			Transport: transport,
			Timeout:   upstreamTimeout,
		},
	}

	switch d.Scheme {
	case auth.SchemeOAuth:
		if f.tokens == nil {
			return nil, fmt.Errorf("oauth descriptor but no token manager configured")
		}
		bundle, err := f.tokens.EnsureFresh(ctx, d.TenantKey)
		if err != nil {
			return nil, err
		}
		cloudID := d.CloudID
		if cloudID == "" {
			cloudID = bundle.CloudID
		}
		token := oauth.NewRedacted(bundle.AccessToken)
		s.baseURL = cloudBaseURL(d.Service, cloudID)
		s.authorize = func(req *http.Request) {
			req.Header.Set("Authorization", "Bearer "+token.Value())
		}

	case auth.SchemeOAuthStatic:
		token := oauth.NewRedacted(d.Secret)
		if d.CloudID != "" {
			s.baseURL = cloudBaseURL(d.Service, d.CloudID)
		} else {
			s.baseURL = serverBaseURL(d.Service, d.BaseURL)
		}
		s.authorize = func(req *http.Request) {
			req.Header.Set("Authorization", "Bearer "+token.Value())
		}

	case auth.SchemePersonalToken:
		token := oauth.NewRedacted(d.Secret)
		s.baseURL = serverBaseURL(d.Service, d.BaseURL)
		s.authorize = func(req *http.Request) {
			req.Header.Set("Authorization", "Bearer "+token.Value())
		}

	case auth.SchemeAPIToken:
		username, token := d.Username, oauth.NewRedacted(d.Secret)
		s.baseURL = serverBaseURL(d.Service, d.BaseURL)
		s.authorize = func(req *http.Request) {
			req.SetBasicAuth(username, token.Value())
		}

	default:
		return nil, fmt.Errorf("unknown credential scheme %q", d.Scheme)
	}

	logging.Debug("Factory", "Built %s session (%s, base=%s, ssl_verify=%v)",
		d.Service, d.Scheme, s.baseURL, d.SSLVerify)
	return s, nil
}

// newTransport applies the descriptor's SSL and proxy policy.
func newTransport(d *auth.Descriptor) (*http.Transport, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()

	if !d.SSLVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		logging.Warn("Factory", "SSL verification disabled for %s", d.Service)
	} else if d.CABundle != "" {
		pem, err := os.ReadFile(d.CABundle)
		if err != nil {
			return nil, fmt.Errorf("read CA bundle %s: %w", d.CABundle, err)
		}
		pool, err := x509.SystemCertPool()
		if err != nil {
			pool = x509.NewCertPool()
		}
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("CA bundle %s contains no usable certificates", d.CABundle)
		}
		transport.TLSClientConfig = &tls.Config{RootCAs: pool}
	}

	if proxyFunc := proxyFromRules(d.Proxy); proxyFunc != nil {
		transport.Proxy = proxyFunc
	}

	return transport, nil
}

// proxyFromRules turns the descriptor's proxy rules into a transport proxy
// function with NO_PROXY semantics. A socks proxy fills any scheme slot the
// rules leave empty; Go's transport speaks socks5:// natively. Returns nil
// when no rule is set, which means direct connections.
func proxyFromRules(rules auth.ProxyRules) func(*http.Request) (*url.URL, error) {
	httpProxy := rules.HTTP
	httpsProxy := rules.HTTPS
	if rules.Socks != "" {
		if httpProxy == "" {
			httpProxy = rules.Socks
		}
		if httpsProxy == "" {
			httpsProxy = rules.Socks
		}
	}
	if httpProxy == "" && httpsProxy == "" {
		return nil
	}

	cfg := &httpproxy.Config{
		HTTPProxy:  httpProxy,
		HTTPSProxy: httpsProxy,
		NoProxy:    rules.NoProxy,
	}
	proxyForURL := cfg.ProxyFunc()
	return func(req *http.Request) (*url.URL, error) {
		return proxyForURL(req.URL)
	}
}

// cloudBaseURL returns the OAuth gateway base for a tenant. Confluence keeps
// its /wiki context path behind the gateway, so clients can use the same
// /rest/api paths in both dialects.
func cloudBaseURL(service auth.Service, cloudID string) string {
	base := fmt.Sprintf("%s/%s/%s", cloudAPIBase, service, cloudID)
	if service == auth.ServiceConfluence {
		base += "/wiki"
	}
	return base
}

// serverBaseURL normalizes a configured base URL to the service's API root.
// Cloud Confluence lives under the /wiki context path; people routinely
// configure the bare site URL, so append it for them.
func serverBaseURL(service auth.Service, baseURL string) string {
	base := strings.TrimSuffix(baseURL, "/")
	if service == auth.ServiceConfluence &&
		strings.Contains(base, ".atlassian.net") && !strings.HasSuffix(base, "/wiki") {
		base += "/wiki"
	}
	return base
}
