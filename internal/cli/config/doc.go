// Package config stores the abook-cli session between invocations.
//
// The credentials file (~/.abook/credentials.yaml by default) holds the
// server address, the user name and the access token issued at login. It
// is written with mode 0600 because the token grants full access to the
// user's address book until logout.
package config
