package atlassian

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// JiraClient groups the issue operations over one session. It is a thin REST
// wrapper; identity, validation and policy were all settled before the
// session reached it.
type JiraClient struct {
	s *Session
}

// NewJiraClient wraps a Jira session.
func NewJiraClient(s *Session) *JiraClient { return &JiraClient{s: s} }

// GetIssue fetches one issue by key. fields limits the returned field set
// ("*all" when empty).
func (c *JiraClient) GetIssue(ctx context.Context, key, fields string) (map[string]interface{}, error) {
	if fields == "" {
		fields = "*all"
	}
	path := fmt.Sprintf("/rest/api/2/issue/%s?fields=%s", url.PathEscape(key), url.QueryEscape(fields))

	var issue map[string]interface{}
	if err := c.s.CallJSON(ctx, http.MethodGet, path, nil, &issue); err != nil {
		return nil, fmt.Errorf("get issue %s: %w", key, err)
	}
	return issue, nil
}

// SearchIssues runs a JQL query, returning at most limit issues.
func (c *JiraClient) SearchIssues(ctx context.Context, jql string, limit int) (map[string]interface{}, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	path := "/rest/api/2/search?jql=" + url.QueryEscape(jql) + "&maxResults=" + strconv.Itoa(limit)

	var result map[string]interface{}
	if err := c.s.CallJSON(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, fmt.Errorf("search issues: %w", err)
	}
	return result, nil
}

// CreateIssue creates an issue from the given field map (project, summary,
// issuetype, ...).
func (c *JiraClient) CreateIssue(ctx context.Context, fields map[string]interface{}) (map[string]interface{}, error) {
	payload := map[string]interface{}{"fields": fields}

	var created map[string]interface{}
	if err := c.s.CallJSON(ctx, http.MethodPost, "/rest/api/2/issue", payload, &created); err != nil {
		return nil, fmt.Errorf("create issue: %w", err)
	}
	return created, nil
}

// AddComment appends a comment to an issue.
func (c *JiraClient) AddComment(ctx context.Context, key, body string) (map[string]interface{}, error) {
	path := fmt.Sprintf("/rest/api/2/issue/%s/comment", url.PathEscape(key))
	payload := map[string]interface{}{"body": body}

	var comment map[string]interface{}
	if err := c.s.CallJSON(ctx, http.MethodPost, path, payload, &comment); err != nil {
		return nil, fmt.Errorf("add comment to %s: %w", key, err)
	}
	return comment, nil
}
