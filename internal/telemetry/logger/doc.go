// Package logger provides structured logging for the address-book service.
//
//   - logger.go: slog handler setup, the shared level and the process default
//   - context.go: request IDs carried in a context and added to each record
//   - redact.go: masking of tokens, password hashes and secret-named fields
//
// A session token never reaches the output. A string that decodes as a
// token is replaced by its fingerprint ("fp:" and 16 hex digits), the same
// value domain.Token logs through slog.LogValuer, so lines about one
// session can still be correlated.
package logger
