package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"atlassianmcp/internal/atlassian"
	"atlassianmcp/internal/auth"
	"atlassianmcp/pkg/logging"
)

// Toolset registers the Jira and Confluence tools and routes every
// invocation through the auth gateway before any upstream call.
type Toolset struct {
	gateway *auth.Gateway
}

// NewToolset creates the toolset over the gateway.
func NewToolset(gateway *auth.Gateway) *Toolset {
	return &Toolset{gateway: gateway}
}

// Register adds all tools to the MCP server. Policy filtering happens per
// call, not at registration: the allow-list and read-only mode can change
// at runtime, and multi-user callers share one registered set.
func (t *Toolset) Register(srv *server.MCPServer) {
	for _, def := range t.definitions() {
		srv.AddTool(def.tool, def.handler)
	}
	logging.Info("Tools", "Registered %d tools", len(t.definitions()))
}

type toolDef struct {
	tool    mcp.Tool
	handler server.ToolHandlerFunc
}

// session resolves and authorizes the call, returning the concrete session.
func (t *Toolset) session(ctx context.Context, desc auth.ToolDescriptor) (*atlassian.Session, error) {
	handle, err := t.gateway.ResolveAndAuthorize(ctx, desc)
	if err != nil {
		return nil, err
	}
	session, ok := handle.(*atlassian.Session)
	if !ok {
		return nil, fmt.Errorf("unexpected session type %T", handle)
	}
	return session, nil
}

// finish converts an operation outcome into a tool result. Upstream 401/403
// rejections are reported back to the gateway so the cached verdict is
// evicted before the error surfaces.
func (t *Toolset) finish(result interface{}, err error) (*mcp.CallToolResult, error) {
	if err == nil {
		data, marshalErr := json.MarshalIndent(result, "", "  ")
		if marshalErr != nil {
			return mcp.NewToolResultError(fmt.Sprintf("encode result: %v", marshalErr)), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	}

	var rejected *atlassian.AuthRejectedError
	if errors.As(err, &rejected) {
		t.gateway.ReportUnauthorized(rejected.Fingerprint)
		return mcp.NewToolResultError(fmt.Sprintf("authentication failed: %v", err)), nil
	}
	return mcp.NewToolResultError(err.Error()), nil
}

// gateErr converts a gateway failure into a tool result. The error kinds
// stay distinguishable in the message so callers can tell bad credentials
// from disabled operations.
func gateErr(err error) *mcp.CallToolResult {
	var unresolved *auth.UnresolvedIdentityError
	var authn *auth.AuthenticationError
	var authz *auth.AuthorizationError
	switch {
	case errors.As(err, &unresolved):
		return mcp.NewToolResultError(fmt.Sprintf("identity required: %v", err))
	case errors.As(err, &authn):
		return mcp.NewToolResultError(fmt.Sprintf("authentication failed: %v", err))
	case errors.As(err, &authz):
		return mcp.NewToolResultError(fmt.Sprintf("not permitted: %v", err))
	default:
		return mcp.NewToolResultError(err.Error())
	}
}

func stringArg(req mcp.CallToolRequest, name string) string {
	if v, ok := req.GetArguments()[name].(string); ok {
		return v
	}
	return ""
}

func intArg(req mcp.CallToolRequest, name string) int {
	// JSON numbers arrive as float64.
	if v, ok := req.GetArguments()[name].(float64); ok {
		return int(v)
	}
	return 0
}

func mapArg(req mcp.CallToolRequest, name string) map[string]interface{} {
	if v, ok := req.GetArguments()[name].(map[string]interface{}); ok {
		return v
	}
	return nil
}
