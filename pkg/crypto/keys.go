package crypto

import (
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// Derivation labels. Export proofs are signed with a subkey derived from
// the master key so an export signature can never be replayed as an event
// signature (and vice versa).
const (
	PurposeEventSigning  = "antevus:ledger:event:v1"
	PurposeExportSigning = "antevus:ledger:export:v1"
)

// DeriveKey derives a 32-byte subkey from master for the given purpose
// label using HKDF-SHA256.
func DeriveKey(master []byte, purpose string) ([]byte, error) {
	if len(master) < MinKeyLen {
		return nil, fmt.Errorf("%w (got %d)", ErrKeyTooShort, len(master))
	}

	r := hkdf.New(sha256.New, master, nil, []byte(purpose))
	key := make([]byte, 32)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("crypto: hkdf derive: %w", err)
	}
	return key, nil
}

// NewDerivedSigner returns an HMAC signer over a purpose-derived subkey.
func NewDerivedSigner(master []byte, purpose string) (*HMACSigner, error) {
	key, err := DeriveKey(master, purpose)
	if err != nil {
		return nil, err
	}
	return NewHMACSigner(key)
}
