// Package atlassian builds upstream-API sessions from resolved credential
// descriptors and provides the REST clients that use them. The factory
// applies, in order: TLS verification policy (including custom CA bundles
// for self-signed deployments), proxy selection with NO_PROXY exclusions,
// base-URL dialect (Cloud OAuth gateway vs Server/Data Center), and the
// credential decoration for the descriptor's scheme.
package atlassian
