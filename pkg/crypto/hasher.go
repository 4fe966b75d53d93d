// Package crypto provides the hashing and signing primitives for the
// audit ledger: SHA-256 canonical hashing, HMAC-SHA256 signatures with
// timing-safe verification, and HKDF subkey derivation.
package crypto

import (
	"fmt"

	"github.com/antevus/ledger/pkg/canonicalize"
)

// Hasher produces deterministic hashes of structured values.
type Hasher interface {
	Hash(v interface{}) (string, error)
}

// CanonicalHasher hashes the RFC 8785 canonical form of a value.
type CanonicalHasher struct{}

func NewCanonicalHasher() *CanonicalHasher {
	return &CanonicalHasher{}
}

func (h *CanonicalHasher) Hash(v interface{}) (string, error) {
	digest, err := canonicalize.CanonicalHash(v)
	if err != nil {
		return "", fmt.Errorf("canonical hash failed: %w", err)
	}
	return digest, nil
}
