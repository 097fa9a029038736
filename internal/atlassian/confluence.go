package atlassian

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// ConfluenceClient groups the page operations over one session.
type ConfluenceClient struct {
	s *Session
}

// NewConfluenceClient wraps a Confluence session.
func NewConfluenceClient(s *Session) *ConfluenceClient { return &ConfluenceClient{s: s} }

// GetPage fetches one page with its storage-format body and version.
func (c *ConfluenceClient) GetPage(ctx context.Context, pageID string) (map[string]interface{}, error) {
	path := fmt.Sprintf("/rest/api/content/%s?expand=body.storage,version,space", url.PathEscape(pageID))

	var page map[string]interface{}
	if err := c.s.CallJSON(ctx, http.MethodGet, path, nil, &page); err != nil {
		return nil, fmt.Errorf("get page %s: %w", pageID, err)
	}
	return page, nil
}

// Search runs a CQL query, returning at most limit results.
func (c *ConfluenceClient) Search(ctx context.Context, cql string, limit int) (map[string]interface{}, error) {
	if limit <= 0 || limit > 100 {
		limit = 25
	}
	path := "/rest/api/content/search?cql=" + url.QueryEscape(cql) + "&limit=" + strconv.Itoa(limit)

	var result map[string]interface{}
	if err := c.s.CallJSON(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, fmt.Errorf("search content: %w", err)
	}
	return result, nil
}

// CreatePage creates a page in a space with storage-format content.
func (c *ConfluenceClient) CreatePage(ctx context.Context, spaceKey, title, content string) (map[string]interface{}, error) {
	payload := map[string]interface{}{
		"type":  "page",
		"title": title,
		"space": map[string]string{"key": spaceKey},
		"body": map[string]interface{}{
			"storage": map[string]string{"value": content, "representation": "storage"},
		},
	}

	var page map[string]interface{}
	if err := c.s.CallJSON(ctx, http.MethodPost, "/rest/api/content", payload, &page); err != nil {
		return nil, fmt.Errorf("create page %q: %w", title, err)
	}
	return page, nil
}

// UpdatePage replaces a page's content. version must be the current version
// number plus one; Confluence rejects stale updates.
func (c *ConfluenceClient) UpdatePage(ctx context.Context, pageID, title, content string, version int) (map[string]interface{}, error) {
	payload := map[string]interface{}{
		"type":    "page",
		"title":   title,
		"version": map[string]int{"number": version},
		"body": map[string]interface{}{
			"storage": map[string]string{"value": content, "representation": "storage"},
		},
	}

	path := "/rest/api/content/" + url.PathEscape(pageID)
	var page map[string]interface{}
	if err := c.s.CallJSON(ctx, http.MethodPut, path, payload, &page); err != nil {
		return nil, fmt.Errorf("update page %s: %w", pageID, err)
	}
	return page, nil
}
