package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"atlassianmcp/internal/config"
)

func singleUserConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Jira.URL = "https://example.atlassian.net"
	cfg.Jira.Username = "user@example.com"
	cfg.Jira.APIToken = "api-token"
	return cfg
}

func TestResolverSingleUser(t *testing.T) {
	r, err := NewResolver(singleUserConfig())
	require.NoError(t, err)
	assert.False(t, r.MultiUser())

	d, err := r.Resolve(context.Background(), ServiceJira)
	require.NoError(t, err)
	assert.Equal(t, SchemeAPIToken, d.Scheme)
	assert.Equal(t, "https://example.atlassian.net", d.BaseURL)

	// The same static descriptor comes back on every call.
	d2, err := r.Resolve(context.Background(), ServiceJira)
	require.NoError(t, err)
	assert.Same(t, d, d2)

	_, err = r.Resolve(context.Background(), ServiceConfluence)
	var unresolved *UnresolvedIdentityError
	require.ErrorAs(t, err, &unresolved)
}

func multiUserConfig() *config.Config {
	cfg := singleUserConfig()
	cfg.Server.MultiUser = true
	cfg.Server.Transport = config.TransportStreamableHTTP
	return cfg
}

func TestResolverMultiUserRequiresCallIdentity(t *testing.T) {
	r, err := NewResolver(multiUserConfig())
	require.NoError(t, err)
	require.True(t, r.MultiUser())

	var unresolved *UnresolvedIdentityError

	t.Run("no metadata at all", func(t *testing.T) {
		// Process credentials exist in the config, but multi-user mode
		// never substitutes them for a missing caller identity.
		_, err := r.Resolve(context.Background(), ServiceJira)
		require.ErrorAs(t, err, &unresolved)
	})

	t.Run("empty authorization", func(t *testing.T) {
		ctx := WithCallMetadata(context.Background(), CallMetadata{})
		_, err := r.Resolve(ctx, ServiceJira)
		require.ErrorAs(t, err, &unresolved)
	})

	t.Run("malformed header", func(t *testing.T) {
		ctx := WithCallMetadata(context.Background(), CallMetadata{Authorization: "Bearer"})
		_, err := r.Resolve(ctx, ServiceJira)
		require.ErrorAs(t, err, &unresolved)
	})

	t.Run("unsupported scheme", func(t *testing.T) {
		ctx := WithCallMetadata(context.Background(), CallMetadata{Authorization: "Basic dXNlcjpwYXNz"})
		_, err := r.Resolve(ctx, ServiceJira)
		require.ErrorAs(t, err, &unresolved)
		assert.Contains(t, unresolved.Reason, "unsupported")
	})
}

func TestResolverMultiUserBearer(t *testing.T) {
	r, err := NewResolver(multiUserConfig())
	require.NoError(t, err)

	ctx := WithCallMetadata(context.Background(), CallMetadata{
		Authorization: "Bearer caller-access-token",
		CloudID:       "caller-cloud",
	})
	d, err := r.Resolve(ctx, ServiceJira)
	require.NoError(t, err)

	assert.Equal(t, SchemeOAuthStatic, d.Scheme)
	assert.Equal(t, "caller-access-token", d.Secret)
	assert.Equal(t, "caller-cloud", d.CloudID)
	// No tenant key: a bring-your-own token has no managed bundle to refresh.
	assert.Empty(t, d.TenantKey)
}

func TestResolverMultiUserBearerCloudFallback(t *testing.T) {
	cfg := multiUserConfig()
	cfg.OAuth.CloudID = "process-cloud"
	r, err := NewResolver(cfg)
	require.NoError(t, err)

	ctx := WithCallMetadata(context.Background(), CallMetadata{Authorization: "Bearer tok"})
	d, err := r.Resolve(ctx, ServiceJira)
	require.NoError(t, err)
	assert.Equal(t, "process-cloud", d.CloudID)

	t.Run("no cloud id and no base URL", func(t *testing.T) {
		bare := &config.Config{}
		bare.Server.MultiUser = true
		r2, err := NewResolver(bare)
		require.NoError(t, err)

		_, err = r2.Resolve(ctx, ServiceJira)
		var unresolved *UnresolvedIdentityError
		require.ErrorAs(t, err, &unresolved)
	})
}

func TestResolverMultiUserPersonalToken(t *testing.T) {
	r, err := NewResolver(multiUserConfig())
	require.NoError(t, err)

	ctx := WithCallMetadata(context.Background(), CallMetadata{Authorization: "Token caller-pat"})
	d, err := r.Resolve(ctx, ServiceJira)
	require.NoError(t, err)

	assert.Equal(t, SchemePersonalToken, d.Scheme)
	assert.Equal(t, "caller-pat", d.Secret)
	// Connection policy still comes from process config.
	assert.Equal(t, "https://example.atlassian.net", d.BaseURL)
}

func TestResolverDistinctCallersDistinctFingerprints(t *testing.T) {
	r, err := NewResolver(multiUserConfig())
	require.NoError(t, err)

	ctxA := WithCallMetadata(context.Background(), CallMetadata{Authorization: "Token pat-a"})
	ctxB := WithCallMetadata(context.Background(), CallMetadata{Authorization: "Token pat-b"})

	dA, err := r.Resolve(ctxA, ServiceJira)
	require.NoError(t, err)
	dB, err := r.Resolve(ctxB, ServiceJira)
	require.NoError(t, err)

	assert.NotEqual(t, dA.Fingerprint(), dB.Fingerprint())
}
