// Package service provides the session and address-book cache for abook.
package service

import (
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"

	"github.com/yndnr/abook-go/internal/core/domain"
	"github.com/yndnr/abook-go/pkg/token"
)

// argon2idPrefix marks a password record stored as an argon2id PHC string.
const argon2idPrefix = "$argon2id$"

// Argon2Params are the argon2id cost parameters used when hashing.
type Argon2Params struct {
	Memory      uint32 // KiB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultArgon2Params returns the parameters used by HashPassword.
func DefaultArgon2Params() Argon2Params {
	return Argon2Params{
		Memory:      64 * 1024,
		Time:        3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// PasswordVerifier checks a supplied password against a stored record.
type PasswordVerifier interface {
	Verify(supplied string, record *domain.PasswordRecord) (bool, error)
}

// RecordVerifier accepts two stored forms: argon2id PHC strings and plaintext
// secrets. Both comparisons run in constant time.
type RecordVerifier struct{}

// Verify implements PasswordVerifier.
func (RecordVerifier) Verify(supplied string, record *domain.PasswordRecord) (bool, error) {
	if record == nil {
		return false, nil
	}
	if strings.HasPrefix(record.Password, argon2idPrefix) {
		return verifyArgon2id(supplied, record.Password)
	}
	return subtle.ConstantTimeCompare([]byte(supplied), []byte(record.Password)) == 1, nil
}

// HashPassword returns an argon2id PHC string for password.
func HashPassword(password string, p Argon2Params) (string, error) {
	if password == "" {
		return "", errors.New("password must not be empty")
	}
	salt, err := token.GenerateBytes(int(p.SaltLength))
	if err != nil {
		return "", err
	}

	hash := argon2.IDKey([]byte(password), salt, p.Time, p.Memory, p.Parallelism, p.KeyLength)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		p.Memory,
		p.Time,
		p.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

func verifyArgon2id(supplied, encoded string) (bool, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return false, errors.New("invalid argon2id record")
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return false, errors.New("unsupported argon2 version")
	}

	var memory, time uint32
	var parallelism uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &parallelism); err != nil {
		return false, fmt.Errorf("invalid argon2 parameters: %w", err)
	}
	if memory == 0 || time == 0 || parallelism == 0 {
		return false, errors.New("invalid argon2 parameters")
	}

	salt, err := decodePHCBase64(parts[4])
	if err != nil {
		return false, fmt.Errorf("invalid salt: %w", err)
	}
	want, err := decodePHCBase64(parts[5])
	if err != nil || len(want) == 0 {
		return false, errors.New("invalid hash")
	}

	got := argon2.IDKey([]byte(supplied), salt, time, memory, parallelism, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}

// decodePHCBase64 accepts both the unpadded form of the PHC format and the
// padded form some tools emit.
func decodePHCBase64(s string) ([]byte, error) {
	if strings.HasSuffix(s, "=") {
		return base64.StdEncoding.DecodeString(s)
	}
	return base64.RawStdEncoding.DecodeString(s)
}
