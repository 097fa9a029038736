// Package logging provides a slog-backed logging facility shared by all
// subsystems. Every log call names its subsystem ("OAuth", "Cache",
// "Resolver", ...) so output stays attributable when many components log
// concurrently.
//
// Credentials must never reach the log stream verbatim; use MaskSecret for
// any token or password that has to appear in a message.
package logging
