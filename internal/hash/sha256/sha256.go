// Package sha256 computes digests for cached page bodies.
package sha256

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
)

// Hasher produces hex SHA-256 digests.
type Hasher struct{}

// New returns a SHA-256 hasher.
func New() *Hasher {
	return &Hasher{}
}

// Hash hashes the input and returns a hex digest.
func (h *Hasher) Hash(data []byte) (string, error) {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Verify reports an error when data does not hash to digest.
// An empty digest is accepted.
func (h *Hasher) Verify(data []byte, digest string) error {
	if digest == "" {
		return nil
	}
	got, err := h.Hash(data)
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare([]byte(got), []byte(digest)) != 1 {
		return fmt.Errorf("digest mismatch: want %s, got %s", digest, got)
	}
	return nil
}
