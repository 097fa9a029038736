package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"atlassianmcp/internal/atlassian"
	"atlassianmcp/internal/auth"
)

var (
	jiraGetIssueDesc = auth.ToolDescriptor{Name: "jira_get_issue", Service: auth.ServiceJira}
	jiraSearchDesc   = auth.ToolDescriptor{Name: "jira_search", Service: auth.ServiceJira}
	jiraCreateDesc   = auth.ToolDescriptor{Name: "jira_create_issue", Service: auth.ServiceJira, RequiresWrite: true}
	jiraCommentDesc  = auth.ToolDescriptor{Name: "jira_add_comment", Service: auth.ServiceJira, RequiresWrite: true}
)

func (t *Toolset) jiraDefinitions() []toolDef {
	return []toolDef{
		{
			tool: mcp.NewTool(jiraGetIssueDesc.Name,
				mcp.WithDescription("Get a Jira issue by key"),
				mcp.WithString("issue_key",
					mcp.Required(),
					mcp.Description("Issue key, e.g. PROJ-123"),
				),
				mcp.WithString("fields",
					mcp.Description("Comma-separated fields to return (default: all)"),
				),
			),
			handler: t.handleJiraGetIssue,
		},
		{
			tool: mcp.NewTool(jiraSearchDesc.Name,
				mcp.WithDescription("Search Jira issues with JQL"),
				mcp.WithString("jql",
					mcp.Required(),
					mcp.Description("JQL query string"),
				),
				mcp.WithNumber("limit",
					mcp.Description("Maximum number of results (default: 50)"),
				),
			),
			handler: t.handleJiraSearch,
		},
		{
			tool: mcp.NewTool(jiraCreateDesc.Name,
				mcp.WithDescription("Create a Jira issue"),
				mcp.WithObject("fields",
					mcp.Required(),
					mcp.Description("Issue fields (project, summary, issuetype, ...)"),
				),
			),
			handler: t.handleJiraCreateIssue,
		},
		{
			tool: mcp.NewTool(jiraCommentDesc.Name,
				mcp.WithDescription("Add a comment to a Jira issue"),
				mcp.WithString("issue_key",
					mcp.Required(),
					mcp.Description("Issue key, e.g. PROJ-123"),
				),
				mcp.WithString("body",
					mcp.Required(),
					mcp.Description("Comment text"),
				),
			),
			handler: t.handleJiraAddComment,
		},
	}
}

func (t *Toolset) handleJiraGetIssue(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	session, err := t.session(ctx, jiraGetIssueDesc)
	if err != nil {
		return gateErr(err), nil
	}
	issue, err := atlassian.NewJiraClient(session).GetIssue(ctx, stringArg(req, "issue_key"), stringArg(req, "fields"))
	return t.finish(issue, err)
}

func (t *Toolset) handleJiraSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	session, err := t.session(ctx, jiraSearchDesc)
	if err != nil {
		return gateErr(err), nil
	}
	result, err := atlassian.NewJiraClient(session).SearchIssues(ctx, stringArg(req, "jql"), intArg(req, "limit"))
	return t.finish(result, err)
}

func (t *Toolset) handleJiraCreateIssue(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	session, err := t.session(ctx, jiraCreateDesc)
	if err != nil {
		return gateErr(err), nil
	}
	fields := mapArg(req, "fields")
	if fields == nil {
		return mcp.NewToolResultError("fields argument is required"), nil
	}
	created, err := atlassian.NewJiraClient(session).CreateIssue(ctx, fields)
	return t.finish(created, err)
}

func (t *Toolset) handleJiraAddComment(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	session, err := t.session(ctx, jiraCommentDesc)
	if err != nil {
		return gateErr(err), nil
	}
	comment, err := atlassian.NewJiraClient(session).AddComment(ctx, stringArg(req, "issue_key"), stringArg(req, "body"))
	return t.finish(comment, err)
}
