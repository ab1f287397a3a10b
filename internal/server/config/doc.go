// Package config defines the abook-server configuration.
//
//   - spec.go: ServerConfig struct definition
//   - default.go: default values
//   - verify.go: validation run once after loading
//   - sanitize.go: a copy safe to log
//   - reload.go: the subset applied when the file changes at runtime
//
// Configuration is loaded via internal/infra/confloader.
package config
