package logger

import (
	"log/slog"
	"strings"

	"github.com/yndnr/abook-go/pkg/token"
)

// tokenSize is the raw size of a session token.
const tokenSize = 32

// redactedValue replaces values of secret-named fields.
const redactedValue = "***REDACTED***"

const (
	bearerPrefix = "bearer "
	argon2Prefix = "$argon2id$"
)

// Substrings of field names whose values are never logged.
var sensitiveKeyPatterns = []string{
	"password",
	"secret",
	"token",
	"key",
	"credential",
	"auth",
	"bearer",
	"cookie",
}

// redact is the ReplaceAttr hook. Value shape is checked before the key
// name, so a token is fingerprinted whatever field it sits in.
func redact(_ []string, a slog.Attr) slog.Attr {
	if a.Value.Kind() != slog.KindString {
		return a
	}
	s := a.Value.String()
	if isFingerprint(s) {
		return a
	}
	if masked, ok := mask(s); ok {
		return slog.String(a.Key, masked)
	}
	if s != "" && sensitiveKey(a.Key) {
		return slog.String(a.Key, redactedValue)
	}
	return a
}

// mask rewrites values that are secrets by shape.
func mask(s string) (string, bool) {
	if len(s) >= len(bearerPrefix) && strings.EqualFold(s[:len(bearerPrefix)], bearerPrefix) {
		if fp, ok := tokenFingerprint(s[len(bearerPrefix):]); ok {
			return s[:len(bearerPrefix)] + fp, true
		}
		return s[:len(bearerPrefix)] + "***", true
	}
	if strings.HasPrefix(s, argon2Prefix) {
		return argon2Prefix + "***", true
	}
	return tokenFingerprint(s)
}

// tokenFingerprint returns the log form of s if s decodes as a session token.
func tokenFingerprint(s string) (string, bool) {
	if len(s) != token.EncodedLen(tokenSize) {
		return "", false
	}
	var raw [tokenSize]byte
	if err := token.Decode(raw[:], s); err != nil {
		return "", false
	}
	return token.LogValue(raw[:]).String(), true
}

// isFingerprint reports whether s is already a logged fingerprint.
func isFingerprint(s string) bool {
	hexPart, ok := strings.CutPrefix(s, token.FingerprintPrefix)
	if !ok || len(hexPart) != 16 {
		return false
	}
	for i := 0; i < len(hexPart); i++ {
		c := hexPart[i]
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f') {
			return false
		}
	}
	return true
}

func sensitiveKey(key string) bool {
	key = strings.ToLower(key)
	for _, pattern := range sensitiveKeyPatterns {
		if strings.Contains(key, pattern) {
			return true
		}
	}
	return false
}
