// Package server wires the authentication core together and exposes the MCP
// tool surface over stdio, SSE, or streamable HTTP. On HTTP transports a
// context function captures the identity-relevant request headers for the
// resolver; stdio calls carry no transport identity and resolve against the
// process configuration.
package server
