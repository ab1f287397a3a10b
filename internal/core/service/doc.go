// Package service provides the session and address-book cache for abook.
//
// The cache owns all live session state and a write-back copy of address
// books. It defines the Store interface for its persistence dependency,
// allowing for dependency injection and testability.
//
// This package contains:
//
//   - Cache: login, logout, session lookup, cached address book reads/writes
//   - FlushDirtyAddressBooks: the write-back sweep
//   - MaintenanceGate: a cooperative rate limiter for the sweep
//   - PasswordVerifier: plaintext and argon2id password record checks
//
// Lock order, wherever several collections are held at once:
// tokens, sessions, users, address books.
package service
