// Package storage opens the persistent store selected by configuration.
//
// Drivers:
//
//   - sqlite:   embedded SQLite file (default)
//   - postgres: PostgreSQL server
//   - badger:   embedded Badger key-value database
//   - redis:    Redis server
//   - memory:   volatile, for development and tests
//
// Every driver implements Backend. The session cache only sees the
// service.Store part; the admin surface and bootstrap use the rest.
package storage
