// Package ids generates client-side identifiers and share tokens.
package ids

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// New creates a unique entity ID with the given prefix, e.g. "evt-3f9a1c".
func New(prefix string) (string, error) {
	b := make([]byte, 3)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("ids: generate: %w", err)
	}
	return prefix + "-" + hex.EncodeToString(b), nil
}

// NewShareToken creates an opaque capability token for link-based event
// access. Longer than entity IDs because it is the only secret in the link.
func NewShareToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("ids: generate share token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
