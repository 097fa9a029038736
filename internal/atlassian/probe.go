package atlassian

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"atlassianmcp/internal/auth"
	"atlassianmcp/pkg/logging"
)

// probe makes one lightweight identity call to confirm the session's
// credential is accepted. It is the expensive step the validation cache
// exists to amortize.
func probe(ctx context.Context, s *Session) error {
	path := "/rest/api/2/myself"
	if s.service == auth.ServiceConfluence {
		path = "/rest/api/user/current"
	}

	resp, err := s.Do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return fmt.Errorf("identity probe: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode == http.StatusOK:
		logging.Debug("Factory", "Identity probe succeeded for %s", s.service)
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &AuthRejectedError{Status: resp.StatusCode, Fingerprint: s.fingerprint}
	default:
		return fmt.Errorf("identity probe returned status %d", resp.StatusCode)
	}
}
