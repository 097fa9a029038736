package atlassian

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"atlassianmcp/internal/auth"
)

// testSession builds a plain bearer-token session against a test server.
func testSession(t *testing.T, srv *httptest.Server, service auth.Service) *Session {
	t.Helper()
	return &Session{
		service:     service,
		baseURL:     srv.URL,
		fingerprint: "fp-test",
		client:      srv.Client(),
		authorize: func(req *http.Request) {
			req.Header.Set("Authorization", "Bearer test-token")
		},
	}
}

func TestCallJSONStatusMapping(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			w.Write([]byte(`{"value":42}`))
		case "/forbidden":
			http.Error(w, "no scope", http.StatusForbidden)
		case "/missing":
			http.Error(w, `{"errorMessages":["Issue does not exist"]}`, http.StatusNotFound)
		}
	}))
	defer srv.Close()

	s := testSession(t, srv, auth.ServiceJira)

	t.Run("2xx decodes", func(t *testing.T) {
		var out map[string]interface{}
		require.NoError(t, s.CallJSON(context.Background(), http.MethodGet, "/ok", nil, &out))
		assert.Equal(t, float64(42), out["value"])
	})

	t.Run("403 is an auth rejection carrying the fingerprint", func(t *testing.T) {
		err := s.CallJSON(context.Background(), http.MethodGet, "/forbidden", nil, nil)
		var rejected *AuthRejectedError
		require.ErrorAs(t, err, &rejected)
		assert.Equal(t, http.StatusForbidden, rejected.Status)
		assert.Equal(t, "fp-test", rejected.Fingerprint)
	})

	t.Run("other errors carry a body excerpt", func(t *testing.T) {
		err := s.CallJSON(context.Background(), http.MethodGet, "/missing", nil, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "status 404")
		assert.Contains(t, err.Error(), "Issue does not exist")
	})
}

func TestJiraClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/rest/api/2/issue/PROJ-1" && r.Method == http.MethodGet:
			assert.Equal(t, "summary,status", r.URL.Query().Get("fields"))
			w.Write([]byte(`{"key":"PROJ-1"}`))
		case r.URL.Path == "/rest/api/2/search":
			assert.Equal(t, `project = PROJ`, r.URL.Query().Get("jql"))
			assert.Equal(t, "50", r.URL.Query().Get("maxResults"))
			w.Write([]byte(`{"total":1}`))
		case r.URL.Path == "/rest/api/2/issue" && r.Method == http.MethodPost:
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"key":"PROJ-2"}`))
		case r.URL.Path == "/rest/api/2/issue/PROJ-1/comment" && r.Method == http.MethodPost:
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"id":"10001"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewJiraClient(testSession(t, srv, auth.ServiceJira))
	ctx := context.Background()

	issue, err := c.GetIssue(ctx, "PROJ-1", "summary,status")
	require.NoError(t, err)
	assert.Equal(t, "PROJ-1", issue["key"])

	// Out-of-range limits fall back to the default page size.
	result, err := c.SearchIssues(ctx, `project = PROJ`, 0)
	require.NoError(t, err)
	assert.Equal(t, float64(1), result["total"])

	created, err := c.CreateIssue(ctx, map[string]interface{}{"summary": "New issue"})
	require.NoError(t, err)
	assert.Equal(t, "PROJ-2", created["key"])

	comment, err := c.AddComment(ctx, "PROJ-1", "looks good")
	require.NoError(t, err)
	assert.Equal(t, "10001", comment["id"])
}

func TestConfluenceClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/rest/api/content/12345" && r.Method == http.MethodGet:
			assert.Equal(t, "body.storage,version,space", r.URL.Query().Get("expand"))
			w.Write([]byte(`{"id":"12345"}`))
		case r.URL.Path == "/rest/api/content/search":
			assert.Equal(t, `space = DOCS`, r.URL.Query().Get("cql"))
			w.Write([]byte(`{"size":3}`))
		case r.URL.Path == "/rest/api/content" && r.Method == http.MethodPost:
			w.Write([]byte(`{"id":"67890"}`))
		case r.URL.Path == "/rest/api/content/12345" && r.Method == http.MethodPut:
			w.Write([]byte(`{"id":"12345","version":{"number":2}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewConfluenceClient(testSession(t, srv, auth.ServiceConfluence))
	ctx := context.Background()

	page, err := c.GetPage(ctx, "12345")
	require.NoError(t, err)
	assert.Equal(t, "12345", page["id"])

	result, err := c.Search(ctx, `space = DOCS`, 10)
	require.NoError(t, err)
	assert.Equal(t, float64(3), result["size"])

	created, err := c.CreatePage(ctx, "DOCS", "Title", "<p>body</p>")
	require.NoError(t, err)
	assert.Equal(t, "67890", created["id"])

	updated, err := c.UpdatePage(ctx, "12345", "Title", "<p>v2</p>", 2)
	require.NoError(t, err)
	assert.Equal(t, "12345", updated["id"])
}
