// Package shutdown runs cleanup hooks when the process is asked to stop.
//
// Hooks run in reverse registration order under a single deadline, so a
// server registered after the store it uses is stopped before the store
// is closed.
package shutdown
