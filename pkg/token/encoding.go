package token

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"log/slog"
)

// FingerprintPrefix marks a fingerprint in log output.
const FingerprintPrefix = "fp:"

// ErrInvalidEncoding is returned when a string is not Base64 RawURL.
var ErrInvalidEncoding = errors.New("token: invalid encoding")

// ErrInvalidLength is returned when the decoded value has an unexpected size.
var ErrInvalidLength = errors.New("token: invalid length")

// Encode encodes raw bytes as Base64 RawURL.
func Encode(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

// Decode decodes s into dst, requiring the decoded size to be exactly len(dst).
func Decode(dst []byte, s string) error {
	if len(s) != EncodedLen(len(dst)) {
		return ErrInvalidLength
	}
	n, err := base64.RawURLEncoding.Strict().Decode(dst, []byte(s))
	if err != nil {
		return ErrInvalidEncoding
	}
	if n != len(dst) {
		return ErrInvalidLength
	}
	return nil
}

// Equal reports whether a and b are equal in constant time.
func Equal(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}

// Fingerprint returns a short, non-reversible identifier for logs.
// It is the first 8 bytes of the SHA-256 digest, hex encoded.
func Fingerprint(b []byte) string {
	h := sha256.Sum256(b)
	return hex.EncodeToString(h[:8])
}

// LogValue is the log form of a secret: its fingerprint, never the bytes.
func LogValue(b []byte) slog.Value {
	return slog.StringValue(FingerprintPrefix + Fingerprint(b))
}
