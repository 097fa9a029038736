package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"atlassianmcp/internal/atlassian"
	"atlassianmcp/internal/auth"
)

var (
	confluenceGetPageDesc = auth.ToolDescriptor{Name: "confluence_get_page", Service: auth.ServiceConfluence}
	confluenceSearchDesc  = auth.ToolDescriptor{Name: "confluence_search", Service: auth.ServiceConfluence}
	confluenceCreateDesc  = auth.ToolDescriptor{Name: "confluence_create_page", Service: auth.ServiceConfluence, RequiresWrite: true}
	confluenceUpdateDesc  = auth.ToolDescriptor{Name: "confluence_update_page", Service: auth.ServiceConfluence, RequiresWrite: true}
)

func (t *Toolset) confluenceDefinitions() []toolDef {
	return []toolDef{
		{
			tool: mcp.NewTool(confluenceGetPageDesc.Name,
				mcp.WithDescription("Get a Confluence page with its content"),
				mcp.WithString("page_id",
					mcp.Required(),
					mcp.Description("Page ID"),
				),
			),
			handler: t.handleConfluenceGetPage,
		},
		{
			tool: mcp.NewTool(confluenceSearchDesc.Name,
				mcp.WithDescription("Search Confluence content with CQL"),
				mcp.WithString("cql",
					mcp.Required(),
					mcp.Description("CQL query string"),
				),
				mcp.WithNumber("limit",
					mcp.Description("Maximum number of results (default: 25)"),
				),
			),
			handler: t.handleConfluenceSearch,
		},
		{
			tool: mcp.NewTool(confluenceCreateDesc.Name,
				mcp.WithDescription("Create a Confluence page"),
				mcp.WithString("space_key",
					mcp.Required(),
					mcp.Description("Key of the space to create the page in"),
				),
				mcp.WithString("title",
					mcp.Required(),
					mcp.Description("Page title"),
				),
				mcp.WithString("content",
					mcp.Required(),
					mcp.Description("Page body in Confluence storage format"),
				),
			),
			handler: t.handleConfluenceCreatePage,
		},
		{
			tool: mcp.NewTool(confluenceUpdateDesc.Name,
				mcp.WithDescription("Update a Confluence page's content"),
				mcp.WithString("page_id",
					mcp.Required(),
					mcp.Description("Page ID"),
				),
				mcp.WithString("title",
					mcp.Required(),
					mcp.Description("Page title"),
				),
				mcp.WithString("content",
					mcp.Required(),
					mcp.Description("New page body in Confluence storage format"),
				),
				mcp.WithNumber("version",
					mcp.Required(),
					mcp.Description("New version number (current version + 1)"),
				),
			),
			handler: t.handleConfluenceUpdatePage,
		},
	}
}

func (t *Toolset) definitions() []toolDef {
	return append(t.jiraDefinitions(), t.confluenceDefinitions()...)
}

func (t *Toolset) handleConfluenceGetPage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	session, err := t.session(ctx, confluenceGetPageDesc)
	if err != nil {
		return gateErr(err), nil
	}
	page, err := atlassian.NewConfluenceClient(session).GetPage(ctx, stringArg(req, "page_id"))
	return t.finish(page, err)
}

func (t *Toolset) handleConfluenceSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	session, err := t.session(ctx, confluenceSearchDesc)
	if err != nil {
		return gateErr(err), nil
	}
	result, err := atlassian.NewConfluenceClient(session).Search(ctx, stringArg(req, "cql"), intArg(req, "limit"))
	return t.finish(result, err)
}

func (t *Toolset) handleConfluenceCreatePage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	session, err := t.session(ctx, confluenceCreateDesc)
	if err != nil {
		return gateErr(err), nil
	}
	page, err := atlassian.NewConfluenceClient(session).CreatePage(ctx,
		stringArg(req, "space_key"), stringArg(req, "title"), stringArg(req, "content"))
	return t.finish(page, err)
}

func (t *Toolset) handleConfluenceUpdatePage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	session, err := t.session(ctx, confluenceUpdateDesc)
	if err != nil {
		return gateErr(err), nil
	}
	page, err := atlassian.NewConfluenceClient(session).UpdatePage(ctx,
		stringArg(req, "page_id"), stringArg(req, "title"), stringArg(req, "content"), intArg(req, "version"))
	return t.finish(page, err)
}
