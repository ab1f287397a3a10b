// Package token provides random identifier generation and encoding utilities.
//
// Identifiers are raw random bytes from crypto/rand, transported as
// Base64 RawURL (URL-safe alphabet, no padding). A 32-byte value encodes
// to 43 characters.
//
// Security:
//
//   - Uses crypto/rand for CSPRNG
//   - Decoding rejects the padded and standard alphabets
//   - Equal compares in constant time
//   - LogValue logs a fingerprint in place of the secret
package token
