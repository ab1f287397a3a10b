// Package httpserver provides the HTTP/HTTPS server for abook.
//
// It uses the standard library net/http and serves three surfaces:
//
//   - Client protocol: /api/login, /api/ab, /api/ab/get, /api/currentUser,
//     /api/audit, /api/logout
//   - Admin surface: /admin, /admin/login, /admin/logout, /admin/v1/*
//   - Probes: /health, /ready, /metrics
//
// Middleware chain: Recover, RequestID, Audit, BodyLimit, then per route
// Metrics, NetworkACL, RateLimit and the guard (RequireUser or RequireAdmin).
package httpserver
