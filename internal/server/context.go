package server

import (
	"context"
	"net/http"

	"atlassianmcp/internal/auth"
)

// headerCloudID is the request header multi-user OAuth callers use to pick
// their tenant.
const headerCloudID = "X-Atlassian-Cloud-Id"

// captureCallMetadata copies the identity-relevant headers of an inbound
// HTTP request into the call context before the tool handler runs. It never
// rejects here; the resolver decides, so stdio and HTTP calls share one
// failure path.
func captureCallMetadata(ctx context.Context, req *http.Request) context.Context {
	md := auth.CallMetadata{
		Authorization: req.Header.Get("Authorization"),
		CloudID:       req.Header.Get(headerCloudID),
	}
	if md.Authorization == "" && md.CloudID == "" {
		return ctx
	}
	return auth.WithCallMetadata(ctx, md)
}
