package ident

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
)

// Encoding selects the textual representation of a generated identifier
type Encoding string

const (
	// Hex encodes identifiers as lowercase hexadecimal (2 chars per byte)
	Hex Encoding = "hex"
	// Base64URL encodes identifiers as URL-safe base64 without padding
	Base64URL Encoding = "base64url"
)

// DefaultBytes is the identifier entropy used for sessions and files (128-bit)
const DefaultBytes = 16

// ErrInvalidLength is returned when the requested byte length is not positive
var ErrInvalidLength = errors.New("ident: byte length must be a positive integer")

// New generates a cryptographically strong random identifier of byteLen bytes
// in the given encoding. Both encodings are filesystem-safe.
func New(byteLen int, enc Encoding) (string, error) {
	if byteLen <= 0 {
		return "", ErrInvalidLength
	}

	buf := make([]byte, byteLen)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}

	switch enc {
	case Base64URL:
		return base64.RawURLEncoding.EncodeToString(buf), nil
	default:
		return hex.EncodeToString(buf), nil
	}
}

// MustNew is like New but panics on error. Random source failures are not
// recoverable, so callers on the request path use this for id allocation.
func MustNew(byteLen int, enc Encoding) string {
	id, err := New(byteLen, enc)
	if err != nil {
		panic(fmt.Sprintf("ident: %v", err))
	}
	return id
}
