// Package domain defines the core domain models for abook.
//
// Domain models are plain values without IO dependencies:
//
//   - Token: opaque 256-bit session credential
//   - Records: live session, user and address-book cache records
//   - Identities: authenticated user and administrator
//   - Store records: rows exchanged with the persistent store
//   - Errors: structured domain error codes
package domain
