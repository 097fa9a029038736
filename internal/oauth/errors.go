package oauth

import "fmt"

// ExchangeError reports a failed authorization-code exchange: a non-2xx
// response from the token endpoint or a malformed payload.
type ExchangeError struct {
	Status int // HTTP status, 0 for transport/parse failures
	Err    error
}

func (e *ExchangeError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("oauth exchange failed (status %d): %v", e.Status, e.Err)
	}
	return fmt.Sprintf("oauth exchange failed: %v", e.Err)
}

func (e *ExchangeError) Unwrap() error { return e.Err }

// RefreshError reports a failed token refresh. ReauthRequired is set when
// the refresh token itself was rejected (invalid_grant), meaning the user
// must run the authorization flow again; transient network failures leave it
// unset.
type RefreshError struct {
	TenantKey      string
	ReauthRequired bool
	Err            error
}

func (e *RefreshError) Error() string {
	if e.ReauthRequired {
		return fmt.Sprintf("oauth refresh failed for tenant %s, re-authorization required: %v", e.TenantKey, e.Err)
	}
	return fmt.Sprintf("oauth refresh failed for tenant %s: %v", e.TenantKey, e.Err)
}

func (e *RefreshError) Unwrap() error { return e.Err }
