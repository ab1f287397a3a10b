package token

import (
	"crypto/rand"
	"encoding/base64"
)

// GenerateBytes returns length random bytes.
func GenerateBytes(length int) ([]byte, error) {
	b := make([]byte, length)
	if err := Fill(b); err != nil {
		return nil, err
	}
	return b, nil
}

// Fill overwrites b with random bytes.
func Fill(b []byte) error {
	_, err := rand.Read(b)
	return err
}

// EncodedLen returns the encoded length of n raw bytes.
func EncodedLen(n int) int {
	return base64.RawURLEncoding.EncodedLen(n)
}
