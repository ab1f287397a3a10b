// Package command defines the abook-cli commands.
//
// Each command parses its flags, resolves the server and session from the
// flags or the saved credentials, calls abook-server over HTTP and renders
// the result in the format chosen by --output.
package command
