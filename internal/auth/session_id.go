package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// NewSessionID generates an opaque session identifier from 32 random bytes,
// hex-encoded.
func NewSessionID() (string, error) {
	return randomHex(32)
}

// NewStateToken generates the state parameter for the login redirect.
func NewStateToken() (string, error) {
	return randomHex(16)
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
