// Package memory provides a volatile in-memory store for abook.
//
// It implements the same interfaces as the durable stores and backs the
// "memory" storage driver, which is meant for development and tests.
//
// Thread Safety:
//
// All operations are guarded by a single RWMutex. Read operations use
// RLock, write operations use Lock.
package memory
