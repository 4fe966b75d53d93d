package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
)

// MinKeyLen is the minimum accepted signing key length in bytes.
const MinKeyLen = 32

// ErrKeyTooShort is returned when a signing key is shorter than MinKeyLen.
var ErrKeyTooShort = errors.New("crypto: signing key shorter than 32 bytes")

// Signer signs event hashes and verifies signatures.
type Signer interface {
	Sign(hash string) string
	Verify(hash, signature string) bool
}

// HMACSigner signs with HMAC-SHA256 over the hex-encoded event hash.
//
// Verification is timing-safe: the expected MAC is recomputed and compared
// with hmac.Equal, which never short-circuits on the first differing byte.
type HMACSigner struct {
	key []byte
}

// NewHMACSigner validates the key length and returns a signer.
func NewHMACSigner(key []byte) (*HMACSigner, error) {
	if len(key) < MinKeyLen {
		return nil, fmt.Errorf("%w (got %d)", ErrKeyTooShort, len(key))
	}
	k := make([]byte, len(key))
	copy(k, key)
	return &HMACSigner{key: k}, nil
}

// Sign returns hex(HMAC-SHA256(key, hash)).
func (s *HMACSigner) Sign(hash string) string {
	mac := hmac.New(sha256.New, s.key)
	mac.Write([]byte(hash))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature matches hash under the signer's key.
func (s *HMACSigner) Verify(hash, signature string) bool {
	sig, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, s.key)
	mac.Write([]byte(hash))
	return hmac.Equal(mac.Sum(nil), sig)
}
