// Package oauth owns the OAuth 2.0 (3LO) token lifecycle for Atlassian
// Cloud: authorization-code exchange, refresh, and persistence of token
// bundles in a secret store (system keychain, with a file fallback).
//
// Refresh is single-flight per tenant key. Atlassian rotates refresh tokens
// on use, so two concurrent refreshes for the same tenant would leave one
// caller holding a dead token; concurrent callers instead wait for the one
// in-flight refresh and all observe the refreshed bundle.
package oauth
