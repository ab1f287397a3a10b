package config

import (
	"net/url"
	"regexp"
	"strings"
)

// pgPassword matches password=... in key/value connection strings.
var pgPassword = regexp.MustCompile(`(?i)(password\s*=\s*)('[^']*'|\S+)`)

// Sanitize returns a copy of the config with sensitive fields masked.
//
// This is used for logging configuration without exposing secrets.
func Sanitize(cfg *ServerConfig) *ServerConfig {
	sanitized := *cfg
	sanitized.Security.AdminAllowList = append([]string(nil), cfg.Security.AdminAllowList...)

	if sanitized.Storage.Redis.Password != "" {
		sanitized.Storage.Redis.Password = maskSecret(sanitized.Storage.Redis.Password)
	}
	if sanitized.Bootstrap.AdminPassword != "" {
		sanitized.Bootstrap.AdminPassword = maskSecret(sanitized.Bootstrap.AdminPassword)
	}
	sanitized.Storage.DSN = sanitizeDSN(sanitized.Storage.DSN)

	return &sanitized
}

// sanitizeDSN hides the password of URL or key/value connection strings.
func sanitizeDSN(dsn string) string {
	if dsn == "" {
		return dsn
	}
	if strings.Contains(dsn, "://") {
		if u, err := url.Parse(dsn); err == nil && u.User != nil {
			return u.Redacted()
		}
		return dsn
	}
	return pgPassword.ReplaceAllString(dsn, "${1}xxxxx")
}

// maskSecret masks a secret value for safe logging.
func maskSecret(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + strings.Repeat("*", len(s)-4) + s[len(s)-2:]
}
