// Package tools defines the MCP tool surface. Every handler follows the
// same shape: gateway (resolve identity, validate credential, check policy),
// one upstream REST call, JSON result. Handlers that observe an upstream
// 401/403 report the session's fingerprint back to the gateway before
// surfacing the error.
package tools
