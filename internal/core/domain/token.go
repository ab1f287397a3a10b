// Package domain defines the core domain models for abook.
package domain

import (
	"log/slog"
	"strings"

	"github.com/yndnr/abook-go/pkg/token"
)

// TokenSize is the number of random bytes in a session token.
const TokenSize = 32

// TokenTextLength is the length of the Base64 RawURL text form (32 bytes -> 43 chars).
var TokenTextLength = token.EncodedLen(TokenSize)

// Token is an opaque session credential.
//
// It is a value type: comparable with == and usable as a map key, so
// equality and hashing operate on the raw bytes.
type Token [TokenSize]byte

// GenerateToken returns a new token from crypto/rand.
func GenerateToken() (Token, error) {
	var t Token
	if err := token.Fill(t[:]); err != nil {
		return Token{}, ErrInternal.WithCause(err)
	}
	return t, nil
}

// ParseToken decodes the text form of a token.
// Any input that is not exactly TokenSize bytes of Base64 RawURL fails
// with ErrMalformedToken.
func ParseToken(s string) (Token, error) {
	var t Token
	if err := token.Decode(t[:], s); err != nil {
		return Token{}, ErrMalformedToken.WithCause(err)
	}
	return t, nil
}

// String returns the canonical text form.
func (t Token) String() string {
	return token.Encode(t[:])
}

// Equal compares two tokens in constant time.
func (t Token) Equal(other Token) bool {
	return token.Equal(t[:], other[:])
}

// IsZero reports whether t is the zero token.
func (t Token) IsZero() bool {
	return t == Token{}
}

// Fingerprint returns a short digest suitable for logs.
func (t Token) Fingerprint() string {
	return token.Fingerprint(t[:])
}

// LogValue implements slog.LogValuer. Logged tokens show as their
// fingerprint.
func (t Token) LogValue() slog.Value {
	return token.LogValue(t[:])
}

// MarshalText implements encoding.TextMarshaler.
func (t Token) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Token) UnmarshalText(text []byte) error {
	parsed, err := ParseToken(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
