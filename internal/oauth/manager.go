package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"atlassianmcp/internal/config"
	"atlassianmcp/pkg/logging"
)

// Atlassian Cloud OAuth 2.0 (3LO) endpoints.
const (
	authorizeURL           = "https://auth.atlassian.com/authorize"
	tokenURL               = "https://auth.atlassian.com/oauth/token"
	accessibleResourcesURL = "https://api.atlassian.com/oauth/token/accessible-resources"
)

// requestTimeout bounds every individual call to the OAuth endpoints. A
// timed-out refresh is a refresh failure, never a silent retry loop.
const requestTimeout = 30 * time.Second

// maxRetries caps retry attempts for transient failures on top of the
// exponential backoff.
const maxRetries = 3

// Manager owns the OAuth token lifecycle: code exchange, refresh, and
// persistence. Refresh for a given tenant key is single-flight; Atlassian
// refresh tokens rotate on use, so two parallel refreshes would invalidate
// one caller's token.
type Manager struct {
	oauth      oauth2.Config
	store      SecretStore
	skew       time.Duration
	httpClient *http.Client

	flight singleflight.Group

	// bundles is the in-memory view of the store. The pointer for a key is
	// swapped whole on refresh; readers holding a clone never observe a
	// partial update.
	mu      sync.RWMutex
	bundles map[string]*Bundle

	// onRefreshFailure is called with the tenant key after a failed
	// refresh, so the validation cache can drop dependent entries.
	onRefreshFailure func(tenantKey string)
}

// NewManager builds a Manager from the OAuth app configuration.
func NewManager(cfg config.OAuthConfig, authCfg config.AuthConfig, store SecretStore) *Manager {
	return &Manager{
		oauth: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       strings.Fields(cfg.Scope),
			Endpoint: oauth2.Endpoint{
				AuthURL:  authorizeURL,
				TokenURL: tokenURL,
			},
		},
		store:      store,
		skew:       authCfg.RefreshSkew,
		httpClient: &http.Client{Timeout: requestTimeout},
		bundles:    make(map[string]*Bundle),
	}
}

// SetRefreshFailureHook registers the eviction callback. Must be called
// during wiring, before the manager serves requests.
func (m *Manager) SetRefreshFailureHook(hook func(tenantKey string)) {
	m.onRefreshFailure = hook
}

// AuthCodeURL returns the browser URL for the authorization step. Atlassian
// requires the audience parameter and offline_access scope (already part of
// the configured scope) to issue a refresh token.
func (m *Manager) AuthCodeURL(state string) string {
	return m.oauth.AuthCodeURL(state,
		oauth2.SetAuthURLParam("audience", "api.atlassian.com"),
		oauth2.SetAuthURLParam("prompt", "consent"),
	)
}

// Exchange trades an authorization code for a token bundle and resolves the
// tenant's cloud ID. The bundle is not persisted here; callers decide the
// tenant key and call Save.
func (m *Manager) Exchange(ctx context.Context, code string) (*Bundle, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, m.httpClient)
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	token, err := m.oauth.Exchange(ctx, code)
	if err != nil {
		var retrieve *oauth2.RetrieveError
		if errors.As(err, &retrieve) {
			return nil, &ExchangeError{Status: retrieve.Response.StatusCode, Err: err}
		}
		return nil, &ExchangeError{Err: err}
	}
	if token.AccessToken == "" {
		return nil, &ExchangeError{Err: errors.New("token endpoint returned no access token")}
	}

	bundle := &Bundle{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.Expiry,
		Scope:        strings.Join(m.oauth.Scopes, " "),
	}

	cloudID, err := m.resolveCloudID(ctx, token.AccessToken)
	if err != nil {
		return nil, &ExchangeError{Err: fmt.Errorf("resolve cloud id: %w", err)}
	}
	bundle.CloudID = cloudID

	logging.Info("OAuth", "Exchanged authorization code (cloud_id=%s, expires=%s)",
		cloudID, bundle.ExpiresAt.Format(time.RFC3339))
	return bundle, nil
}

// EnsureFresh returns a bundle whose access token is valid for at least the
// configured skew margin, refreshing it first when necessary. Concurrent
// callers for the same tenant key share one refresh; all of them observe the
// refreshed bundle. A bundle already fresh is returned without any network
// call.
func (m *Manager) EnsureFresh(ctx context.Context, tenantKey string) (*Bundle, error) {
	result, err, _ := m.flight.Do(tenantKey, func() (interface{}, error) {
		bundle, err := m.current(tenantKey)
		if err != nil {
			return nil, err
		}
		if bundle == nil {
			return nil, &RefreshError{
				TenantKey:      tenantKey,
				ReauthRequired: true,
				Err:            errors.New("no stored token bundle; run the login flow"),
			}
		}

		if !bundle.NeedsRefresh(m.skew) {
			return bundle.Clone(), nil
		}

		refreshed, err := m.refresh(ctx, tenantKey, bundle)
		if err != nil {
			m.invalidate(tenantKey)
			if m.onRefreshFailure != nil {
				m.onRefreshFailure(tenantKey)
			}
			return nil, err
		}

		m.mu.Lock()
		m.bundles[tenantKey] = refreshed
		m.mu.Unlock()

		if err := m.store.Save(tenantKey, refreshed); err != nil {
			// The in-memory bundle is valid; losing persistence means a
			// re-login after restart, not an auth failure now.
			logging.Warn("OAuth", "Could not persist refreshed bundle for tenant %s: %v", tenantKey, err)
		}

		return refreshed.Clone(), nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*Bundle), nil
}

// current returns the in-memory bundle for the key, loading it from the
// secret store on first use.
func (m *Manager) current(tenantKey string) (*Bundle, error) {
	m.mu.RLock()
	bundle, ok := m.bundles[tenantKey]
	m.mu.RUnlock()
	if ok {
		return bundle, nil
	}

	bundle, err := m.store.Load(tenantKey)
	if err != nil {
		return nil, fmt.Errorf("load token bundle: %w", err)
	}
	if bundle == nil {
		return nil, nil
	}

	m.mu.Lock()
	m.bundles[tenantKey] = bundle
	m.mu.Unlock()
	return bundle, nil
}

func (m *Manager) invalidate(tenantKey string) {
	m.mu.Lock()
	delete(m.bundles, tenantKey)
	m.mu.Unlock()
}

// refresh performs the refresh-token grant with bounded retries. Transient
// network errors and 5xx responses retry with exponential backoff; 401/403
// and invalid_grant are definitive and fail immediately; 429 waits out any
// Retry-After signal before the next attempt.
func (m *Manager) refresh(ctx context.Context, tenantKey string, bundle *Bundle) (*Bundle, error) {
	if bundle.RefreshToken == "" {
		return nil, &RefreshError{
			TenantKey:      tenantKey,
			ReauthRequired: true,
			Err:            errors.New("bundle has no refresh token"),
		}
	}

	logging.Debug("OAuth", "Refreshing token for tenant %s (expires %s)",
		tenantKey, bundle.ExpiresAt.Format(time.RFC3339))

	var refreshed *oauth2.Token
	var retryAfter time.Duration

	operation := func() error {
		if retryAfter > 0 {
			select {
			case <-ctx.Done():
				return backoff.Permanent(ctx.Err())
			case <-time.After(retryAfter):
			}
			retryAfter = 0
		}

		attemptCtx, cancel := context.WithTimeout(
			context.WithValue(ctx, oauth2.HTTPClient, m.httpClient), requestTimeout)
		defer cancel()

		seed := &oauth2.Token{RefreshToken: bundle.RefreshToken}
		token, err := m.oauth.TokenSource(attemptCtx, seed).Token()
		if err == nil {
			refreshed = token
			return nil
		}

		var retrieve *oauth2.RetrieveError
		if errors.As(err, &retrieve) {
			switch {
			case retrieve.Response.StatusCode == http.StatusTooManyRequests:
				retryAfter = parseRetryAfter(retrieve.Response)
				return err
			case retrieve.Response.StatusCode >= 500:
				return err
			default:
				// 400 invalid_grant, 401, 403: definitive.
				return backoff.Permanent(err)
			}
		}
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxRetries), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, &RefreshError{
			TenantKey:      tenantKey,
			ReauthRequired: isInvalidGrant(err),
			Err:            err,
		}
	}

	next := &Bundle{
		AccessToken:  refreshed.AccessToken,
		RefreshToken: refreshed.RefreshToken,
		ExpiresAt:    refreshed.Expiry,
		CloudID:      bundle.CloudID,
		Scope:        bundle.Scope,
	}
	// Atlassian rotates refresh tokens but a provider may omit the new one.
	if next.RefreshToken == "" {
		next.RefreshToken = bundle.RefreshToken
	}

	logging.Info("OAuth", "Refreshed token for tenant %s (new expiry %s)",
		tenantKey, next.ExpiresAt.Format(time.RFC3339))
	return next, nil
}

// Load exposes the stored bundle for a tenant key (nil when absent).
func (m *Manager) Load(tenantKey string) (*Bundle, error) {
	return m.current(tenantKey)
}

// Save persists a bundle and makes it the in-memory current one.
func (m *Manager) Save(tenantKey string, bundle *Bundle) error {
	if err := m.store.Save(tenantKey, bundle); err != nil {
		return err
	}
	m.mu.Lock()
	m.bundles[tenantKey] = bundle
	m.mu.Unlock()
	return nil
}

// Forget drops a tenant's bundle from memory and the secret store.
func (m *Manager) Forget(tenantKey string) error {
	m.invalidate(tenantKey)
	return m.store.Delete(tenantKey)
}

// resolveCloudID queries the accessible-resources endpoint for the tenant
// the token grants access to. With several sites the first one wins; the
// operator can pin one via ATLASSIAN_OAUTH_CLOUD_ID.
func (m *Manager) resolveCloudID(ctx context.Context, accessToken string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, accessibleResourcesURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("accessible-resources returned status %d", resp.StatusCode)
	}

	var resources []struct {
		ID   string `json:"id"`
		URL  string `json:"url"`
		Name string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&resources); err != nil {
		return "", fmt.Errorf("parse accessible-resources: %w", err)
	}
	if len(resources) == 0 {
		return "", errors.New("token grants access to no sites")
	}
	if len(resources) > 1 {
		logging.Warn("OAuth", "Token grants access to %d sites, using %s (%s)",
			len(resources), resources[0].Name, resources[0].ID)
	}
	return resources[0].ID, nil
}

func isInvalidGrant(err error) bool {
	var retrieve *oauth2.RetrieveError
	if !errors.As(err, &retrieve) {
		return false
	}
	if retrieve.ErrorCode == "invalid_grant" {
		return true
	}
	code := retrieve.Response.StatusCode
	return code == http.StatusBadRequest || code == http.StatusUnauthorized || code == http.StatusForbidden
}

func parseRetryAfter(resp *http.Response) time.Duration {
	raw := resp.Header.Get("Retry-After")
	if raw == "" {
		return 0
	}
	if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
		// Cap the wait so a hostile header cannot stall the call forever.
		if secs > 60 {
			secs = 60
		}
		return time.Duration(secs) * time.Second
	}
	return 0
}
