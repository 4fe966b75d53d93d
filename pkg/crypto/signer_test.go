package crypto

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

func TestHMACSigner_RoundTrip(t *testing.T) {
	signer, err := NewHMACSigner(testKey)
	require.NoError(t, err)

	hash := strings.Repeat("ab", 32)
	sig := signer.Sign(hash)

	assert.Len(t, sig, 64)
	assert.True(t, signer.Verify(hash, sig))
}

func TestHMACSigner_RejectsTamperedSignature(t *testing.T) {
	signer, err := NewHMACSigner(testKey)
	require.NoError(t, err)

	hash := strings.Repeat("cd", 32)
	sig := signer.Sign(hash)

	flipped := "0" + sig[1:]
	if flipped == sig {
		flipped = "1" + sig[1:]
	}
	assert.False(t, signer.Verify(hash, flipped))
	assert.False(t, signer.Verify(hash, "not-hex"))
	assert.False(t, signer.Verify(strings.Repeat("ee", 32), sig))
}

func TestHMACSigner_KeyLengthEnforced(t *testing.T) {
	_, err := NewHMACSigner([]byte("short"))
	assert.ErrorIs(t, err, ErrKeyTooShort)
}

func TestHMACSigner_Deterministic(t *testing.T) {
	a, err := NewHMACSigner(testKey)
	require.NoError(t, err)
	b, err := NewHMACSigner(testKey)
	require.NoError(t, err)

	hash := strings.Repeat("01", 32)
	assert.Equal(t, a.Sign(hash), b.Sign(hash))
}

func TestDeriveKey_PurposeSeparation(t *testing.T) {
	eventKey, err := DeriveKey(testKey, PurposeEventSigning)
	require.NoError(t, err)
	exportKey, err := DeriveKey(testKey, PurposeExportSigning)
	require.NoError(t, err)

	assert.Len(t, eventKey, 32)
	assert.Len(t, exportKey, 32)
	assert.False(t, bytes.Equal(eventKey, exportKey))

	// Same purpose re-derives the same key.
	again, err := DeriveKey(testKey, PurposeEventSigning)
	require.NoError(t, err)
	assert.Equal(t, eventKey, again)
}

func TestNewDerivedSigner_DistinctSignatures(t *testing.T) {
	event, err := NewDerivedSigner(testKey, PurposeEventSigning)
	require.NoError(t, err)
	export, err := NewDerivedSigner(testKey, PurposeExportSigning)
	require.NoError(t, err)

	hash := strings.Repeat("99", 32)
	assert.NotEqual(t, event.Sign(hash), export.Sign(hash))
}
