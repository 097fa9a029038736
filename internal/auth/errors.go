package auth

import "fmt"

// UnresolvedIdentityError means the call carried no usable identity: in
// multi-user mode the authorization metadata was missing or malformed. The
// caller must re-supply credentials; the server never substitutes its own.
type UnresolvedIdentityError struct {
	Reason string
}

func (e *UnresolvedIdentityError) Error() string {
	return fmt.Sprintf("unresolved identity: %s", e.Reason)
}

// AuthenticationError means the resolved credential was rejected: the
// upstream service refused it, or an OAuth refresh needed to use it failed.
type AuthenticationError struct {
	Reason string
	Err    error
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("authentication failed: %s", e.Reason)
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

// AuthorizationError means the credential is fine but the requested tool is
// forbidden by policy. Reason always carries the most specific denial cause
// so a caller can tell "filtered" from "read-only mode".
type AuthorizationError struct {
	Tool   string
	Reason string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("tool %s denied: %s", e.Tool, e.Reason)
}
