// Package auth implements the request-scoped identity core: credential
// descriptors, per-call identity resolution, the validation & session cache,
// the tool access policy, and the gateway that ties them together.
//
// Control flow for every tool invocation:
//
//	Resolver.Resolve -> ValidationCache.GetOrBuild -> Authorize -> handler
//
// Descriptors are immutable; the cache collapses concurrent validation of
// the same credential into a single upstream probe and negatively caches
// failures; the policy is pure and evaluated per call. The OAuth token
// lifecycle itself lives in the oauth package, reached through the session
// builder the cache is constructed with.
package auth
