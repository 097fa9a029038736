package oauth

import "time"

// Bundle is one persisted OAuth credential: the access/refresh token pair
// plus the tenant routing data. Bundles are owned by the Manager; nothing
// else mutates them. Callers receive copies so a concurrent refresh can
// never expose a half-updated bundle.
type Bundle struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
	CloudID      string    `json:"cloud_id,omitempty"`
	Scope        string    `json:"scope,omitempty"`
}

// NeedsRefresh reports whether the access token is within margin of expiry.
// Bundles without an expiry never need a refresh.
func (b *Bundle) NeedsRefresh(margin time.Duration) bool {
	if b.ExpiresAt.IsZero() {
		return false
	}
	return !time.Now().Add(margin).Before(b.ExpiresAt)
}

// Clone returns an independent copy.
func (b *Bundle) Clone() *Bundle {
	if b == nil {
		return nil
	}
	copied := *b
	return &copied
}

// Redacted wraps a sensitive token string so it cannot leak through logging
// or serialization by accident. Call Value only at the point the token goes
// into an HTTP header.
type Redacted struct {
	value string
}

// NewRedacted wraps a secret value.
func NewRedacted(value string) Redacted {
	return Redacted{value: value}
}

// Value returns the wrapped secret.
func (r Redacted) Value() string { return r.value }

// IsEmpty reports whether the wrapped value is empty.
func (r Redacted) IsEmpty() bool { return r.value == "" }

// String implements fmt.Stringer, hiding the value.
func (r Redacted) String() string { return "[REDACTED]" }

// GoString implements fmt.GoStringer for %#v formatting.
func (r Redacted) GoString() string { return "oauth.Redacted{[REDACTED]}" }

// MarshalText prevents accidental serialization of the value.
func (r Redacted) MarshalText() ([]byte, error) {
	return []byte("[REDACTED]"), nil
}

// MarshalJSON prevents accidental JSON serialization of the value.
func (r Redacted) MarshalJSON() ([]byte, error) {
	return []byte(`"[REDACTED]"`), nil
}
