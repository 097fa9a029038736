package auth

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"atlassianmcp/pkg/logging"
)

// Session is the opaque handle a validated credential produces. Concrete
// sessions live in the atlassian package; the cache only needs identity for
// eviction feedback and a service name for logs.
type Session interface {
	ServiceName() string
	Fingerprint() string
}

// SessionBuilder validates a descriptor against the upstream service and
// returns a ready session. For OAuth descriptors it refreshes the token
// bundle first. Builders are expensive (network I/O); the cache exists to
// avoid calling them.
type SessionBuilder func(ctx context.Context, d *Descriptor) (Session, error)

type cacheEntry struct {
	valid     bool
	reason    string
	session   Session
	tenantKey string
	expiresAt time.Time
}

// ValidationCache memoizes the outcome of credential validation, keyed by
// descriptor fingerprint. Positive entries return the cached session with no
// upstream call; negative entries fail immediately with the cached reason so
// a known-bad credential does not hammer the upstream within the TTL window.
//
// The cache is an explicitly owned component: construct one at process start
// and pass it by handle, so tests get isolated instances.
type ValidationCache struct {
	ttl     time.Duration
	builder SessionBuilder

	mu      sync.RWMutex
	entries map[string]*cacheEntry

	flight singleflight.Group

	// now is replaceable in tests.
	now func() time.Time
}

// NewValidationCache creates a cache with the given verdict TTL.
func NewValidationCache(ttl time.Duration, builder SessionBuilder) *ValidationCache {
	return &ValidationCache{
		ttl:     ttl,
		builder: builder,
		entries: make(map[string]*cacheEntry),
		now:     time.Now,
	}
}

// GetOrBuild returns the session for the descriptor, building and validating
// it on a miss. Concurrent misses for the same fingerprint collapse into a
// single builder invocation; every waiter receives that one result.
func (c *ValidationCache) GetOrBuild(ctx context.Context, d *Descriptor) (Session, error) {
	fp := d.Fingerprint()

	if s, err, ok := c.lookup(fp); ok {
		return s, err
	}

	result, err, shared := c.flight.Do(fp, func() (interface{}, error) {
		// A waiter that lost the fast-path race may find a fresh entry
		// written by an eviction + rebuild in between.
		if s, err, ok := c.lookup(fp); ok {
			if err != nil {
				return nil, err
			}
			return s, nil
		}

		session, err := c.builder(ctx, d)

		entry := &cacheEntry{
			tenantKey: d.TenantKey,
			expiresAt: c.now().Add(c.ttl),
		}
		if err != nil {
			entry.valid = false
			entry.reason = err.Error()
			logging.Debug("Cache", "Caching negative verdict for %s/%s: %v", d.Service, shortFingerprint(fp), err)
		} else {
			entry.valid = true
			entry.session = session
			logging.Debug("Cache", "Caching session for %s/%s", d.Service, shortFingerprint(fp))
		}

		c.mu.Lock()
		c.entries[fp] = entry
		c.mu.Unlock()

		if err != nil {
			return nil, err
		}
		return session, nil
	})

	if shared {
		logging.Debug("Cache", "Collapsed concurrent build for %s", shortFingerprint(fp))
	}
	if err != nil {
		return nil, err
	}
	return result.(Session), nil
}

// lookup returns the cached verdict for fp if an unexpired entry exists.
func (c *ValidationCache) lookup(fp string) (Session, error, bool) {
	c.mu.RLock()
	entry, ok := c.entries[fp]
	c.mu.RUnlock()

	if !ok || c.now().After(entry.expiresAt) {
		return nil, nil, false
	}
	if !entry.valid {
		return nil, &AuthenticationError{Reason: entry.reason}, true
	}
	return entry.session, nil, true
}

// Invalidate evicts the entry for a fingerprint. Collaborators call this
// when the upstream rejects a cached session with 401/403, so the next call
// re-validates instead of reusing a stale verdict.
func (c *ValidationCache) Invalidate(fp string) {
	c.mu.Lock()
	_, existed := c.entries[fp]
	delete(c.entries, fp)
	c.mu.Unlock()

	if existed {
		logging.Debug("Cache", "Evicted entry %s", shortFingerprint(fp))
	}
}

// InvalidateTenant evicts every entry derived from the given OAuth tenant
// key. A failed refresh invalidates the bundle, and with it every session
// the bundle produced.
func (c *ValidationCache) InvalidateTenant(tenantKey string) {
	if tenantKey == "" {
		return
	}
	c.mu.Lock()
	count := 0
	for fp, entry := range c.entries {
		if entry.tenantKey == tenantKey {
			delete(c.entries, fp)
			count++
		}
	}
	c.mu.Unlock()

	if count > 0 {
		logging.Debug("Cache", "Evicted %d entries for tenant %s", count, tenantKey)
	}
}

// Len returns the number of entries, expired ones included.
func (c *ValidationCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func shortFingerprint(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}
