// Package token provides session token generation and validation utilities.
package token

import (
	"crypto/rand"
	"encoding/base64"
)

// DefaultLength is the default token entropy in bytes.
//
// 24 random bytes encode to exactly 32 Base64 RawURL characters,
// which is what the session table's VARCHAR(32) key column holds.
const DefaultLength = 24

// EncodedLength is the encoded length of a default token in characters.
const EncodedLength = 32

// Generate generates a cryptographically secure random session token.
//
// The returned token is Base64 RawURL encoded for safe transmission
// over text protocols and safe use as a storage key. Generation is
// pure: it reads the CSPRNG and has no other side effects.
func Generate() (string, error) {
	return GenerateWithLength(DefaultLength)
}

// GenerateWithLength generates a token with the specified entropy in bytes.
func GenerateWithLength(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}

// Valid reports whether s looks like a token produced by Generate:
// the exact encoded length and only Base64 RawURL characters.
func Valid(s string) bool {
	if len(s) != EncodedLength {
		return false
	}
	_, err := base64.RawURLEncoding.DecodeString(s)
	return err == nil
}
