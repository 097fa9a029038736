package atlassian

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"atlassianmcp/internal/auth"
)

// upstreamTimeout bounds every REST call against the Atlassian API.
const upstreamTimeout = 60 * time.Second

// Session is the upstream-API handle produced by the factory for one
// resolved credential. It carries no authentication logic of its own; every
// scheme-specific concern was settled when it was built. Sessions are cheap
// to discard and rebuild and hold no shared mutable state.
type Session struct {
	service     auth.Service
	baseURL     string
	fingerprint string
	client      *http.Client

	// authorize decorates an outgoing request with the resolved credential.
	authorize func(*http.Request)

	customHeaders map[string]string
}

// ServiceName implements auth.Session.
func (s *Session) ServiceName() string { return string(s.service) }

// Fingerprint implements auth.Session; collaborators use it to report
// upstream 401/403 back to the validation cache.
func (s *Session) Fingerprint() string { return s.fingerprint }

// BaseURL returns the resolved API base (dialect already applied).
func (s *Session) BaseURL() string { return s.baseURL }

// AuthRejectedError reports that the upstream refused the session's
// credential mid-use. The holder must report the fingerprint for eviction so
// the next call re-validates.
type AuthRejectedError struct {
	Status      int
	Fingerprint string
}

func (e *AuthRejectedError) Error() string {
	return fmt.Sprintf("upstream rejected credential (status %d)", e.Status)
}

// Do issues one request against the session's base URL. The path must start
// with a slash and may carry a query string. The overall deadline comes from
// the client's timeout, so the response body stays readable after return.
func (s *Session) Do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	s.authorize(req)
	for name, value := range s.customHeaders {
		req.Header.Set(name, value)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// CallJSON performs a JSON request/response round trip. A 401 or 403 comes
// back as *AuthRejectedError; other non-2xx statuses as a plain error with
// a trimmed body excerpt. out may be nil when the caller discards the body.
func (s *Session) CallJSON(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	resp, err := s.Do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		io.Copy(io.Discard, resp.Body)
		return &AuthRejectedError{Status: resp.StatusCode, Fingerprint: s.fingerprint}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s returned status %d: %s",
			method, path, resp.StatusCode, strings.TrimSpace(string(excerpt)))
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

var _ auth.Session = (*Session)(nil)
