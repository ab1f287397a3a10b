// Package handler provides the HTTP handlers of the abook server.
//
// Three surfaces share one Handler:
//
//   - api.go: the client protocol under /api (login, address book, logout)
//   - admin.go: the JSON admin surface under /admin
//   - health.go: liveness and readiness probes
//
// Handlers expect the guard middleware to have stored the caller's
// identity in the request context. Mutating client requests give the
// maintenance gate a chance to flush dirty address books before replying.
package handler
