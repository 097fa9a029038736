package auth

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	service     string
	fingerprint string
}

func (s *fakeSession) ServiceName() string { return s.service }
func (s *fakeSession) Fingerprint() string { return s.fingerprint }

func countingBuilder(calls *atomic.Int32, err error) SessionBuilder {
	return func(ctx context.Context, d *Descriptor) (Session, error) {
		calls.Add(1)
		if err != nil {
			return nil, err
		}
		return &fakeSession{service: string(d.Service), fingerprint: d.Fingerprint()}, nil
	}
}

func testDescriptor(secret string) *Descriptor {
	return &Descriptor{
		Service: ServiceJira,
		Scheme:  SchemePersonalToken,
		BaseURL: "https://jira.internal.example.com",
		Secret:  secret,
	}
}

func TestCachePositiveHit(t *testing.T) {
	var calls atomic.Int32
	c := NewValidationCache(5*time.Minute, countingBuilder(&calls, nil))
	d := testDescriptor("pat-1")

	s1, err := c.GetOrBuild(context.Background(), d)
	require.NoError(t, err)
	s2, err := c.GetOrBuild(context.Background(), d)
	require.NoError(t, err)

	assert.Same(t, s1, s2)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 1, c.Len())
}

func TestCacheNegativeVerdict(t *testing.T) {
	var calls atomic.Int32
	buildErr := errors.New("upstream said 401")
	c := NewValidationCache(5*time.Minute, countingBuilder(&calls, buildErr))
	d := testDescriptor("pat-bad")

	_, err := c.GetOrBuild(context.Background(), d)
	require.Error(t, err)

	// The second call fails immediately from the cached verdict: same
	// reason, no second builder invocation.
	_, err2 := c.GetOrBuild(context.Background(), d)
	require.Error(t, err2)

	var authErr *AuthenticationError
	require.ErrorAs(t, err2, &authErr)
	assert.Equal(t, buildErr.Error(), authErr.Reason)
	assert.Equal(t, int32(1), calls.Load())
}

func TestCacheTTLExpiry(t *testing.T) {
	var calls atomic.Int32
	c := NewValidationCache(5*time.Minute, countingBuilder(&calls, errors.New("bad credentials")))
	d := testDescriptor("pat-bad")

	now := time.Now()
	c.now = func() time.Time { return now }

	_, err := c.GetOrBuild(context.Background(), d)
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())

	// Within the TTL the negative verdict holds.
	now = now.Add(4 * time.Minute)
	_, err = c.GetOrBuild(context.Background(), d)
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())

	// Past the TTL the credential gets a fresh validation attempt.
	now = now.Add(2 * time.Minute)
	_, err = c.GetOrBuild(context.Background(), d)
	require.Error(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestCacheCollapsesConcurrentBuilds(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	builder := func(ctx context.Context, d *Descriptor) (Session, error) {
		calls.Add(1)
		<-release
		return &fakeSession{service: string(d.Service), fingerprint: d.Fingerprint()}, nil
	}

	c := NewValidationCache(5*time.Minute, builder)
	d := testDescriptor("pat-1")

	const n = 16
	sessions := make([]Session, n)
	errs := make([]error, n)
	var started, done sync.WaitGroup
	started.Add(n)
	done.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer done.Done()
			started.Done()
			sessions[i], errs[i] = c.GetOrBuild(context.Background(), d)
		}(i)
	}

	started.Wait()
	// Give the goroutines a moment to pile onto the in-flight build before
	// letting it finish.
	time.Sleep(20 * time.Millisecond)
	close(release)
	done.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Same(t, sessions[0], sessions[i])
	}
}

func TestCacheInvalidate(t *testing.T) {
	var calls atomic.Int32
	c := NewValidationCache(5*time.Minute, countingBuilder(&calls, nil))
	d := testDescriptor("pat-1")

	_, err := c.GetOrBuild(context.Background(), d)
	require.NoError(t, err)

	c.Invalidate(d.Fingerprint())
	assert.Equal(t, 0, c.Len())

	_, err = c.GetOrBuild(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestCacheInvalidateTenant(t *testing.T) {
	var calls atomic.Int32
	c := NewValidationCache(5*time.Minute, countingBuilder(&calls, nil))

	jira := &Descriptor{Service: ServiceJira, Scheme: SchemeOAuth, Secret: "tenant-a", TenantKey: "tenant-a", CloudID: "cloud-1"}
	confluence := &Descriptor{Service: ServiceConfluence, Scheme: SchemeOAuth, Secret: "tenant-a", TenantKey: "tenant-a", CloudID: "cloud-1"}
	pat := testDescriptor("pat-1")

	for _, d := range []*Descriptor{jira, confluence, pat} {
		_, err := c.GetOrBuild(context.Background(), d)
		require.NoError(t, err)
	}
	require.Equal(t, 3, c.Len())

	// Both sessions that share the failed tenant's bundle go; the unrelated
	// personal-token entry stays.
	c.InvalidateTenant("tenant-a")
	assert.Equal(t, 1, c.Len())

	c.InvalidateTenant("")
	assert.Equal(t, 1, c.Len())
}
