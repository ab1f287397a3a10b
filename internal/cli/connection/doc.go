// Package connection talks to abook-server over HTTP for abook-cli.
//
// Requests carry the session token as a bearer credential and a fresh
// X-Request-ID so that CLI calls can be found in the server's audit log.
package connection
