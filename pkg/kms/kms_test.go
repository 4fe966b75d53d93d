package kms

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvProvider_ProductionRequiresKey(t *testing.T) {
	t.Setenv("LEDGER_SIGNING_KEY", "")

	p := NewEnvProvider("LEDGER_SIGNING_KEY", true)
	_, err := p.SigningKey()

	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
}

func TestEnvProvider_ProductionRejectsShortKey(t *testing.T) {
	t.Setenv("LEDGER_SIGNING_KEY", "too-short")

	p := NewEnvProvider("LEDGER_SIGNING_KEY", true)
	_, err := p.SigningKey()

	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, cfgErr.Reason, "shorter")
}

func TestEnvProvider_ReturnsConfiguredKey(t *testing.T) {
	key := strings.Repeat("k", 40)
	t.Setenv("LEDGER_SIGNING_KEY", key)

	p := NewEnvProvider("LEDGER_SIGNING_KEY", true)
	got, err := p.SigningKey()
	require.NoError(t, err)
	assert.Equal(t, []byte(key), got)
}

func TestEnvProvider_DevFallsBackToEphemeral(t *testing.T) {
	t.Setenv("LEDGER_SIGNING_KEY", "")

	p := NewEnvProvider("LEDGER_SIGNING_KEY", false)
	first, err := p.SigningKey()
	require.NoError(t, err)
	assert.Len(t, first, 32)

	second, err := p.SigningKey()
	require.NoError(t, err)
	assert.NotEqual(t, first, second, "ephemeral keys must be random")
}

func TestFileProvider_CreateAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys", "ledger.json")

	p, err := NewFileProvider(path)
	require.NoError(t, err)
	assert.Equal(t, 1, p.ActiveVersion())

	key, err := p.SigningKey()
	require.NoError(t, err)
	require.Len(t, key, 32)

	// Reload from disk yields the same key.
	reloaded, err := NewFileProvider(path)
	require.NoError(t, err)
	got, err := reloaded.SigningKey()
	require.NoError(t, err)
	assert.Equal(t, key, got)
}

func TestFileProvider_RotateKeepsOldVersions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.json")

	p, err := NewFileProvider(path)
	require.NoError(t, err)

	v1Key, err := p.SigningKey()
	require.NoError(t, err)

	v2, err := p.Rotate()
	require.NoError(t, err)
	assert.Equal(t, 2, v2)

	v2Key, err := p.SigningKey()
	require.NoError(t, err)
	assert.NotEqual(t, v1Key, v2Key)

	old, err := p.KeyForVersion(1)
	require.NoError(t, err)
	assert.Equal(t, v1Key, old)

	_, err = p.KeyForVersion(99)
	assert.ErrorIs(t, err, ErrNoKey)
}

func TestFileProvider_ImportKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.json")

	p, err := NewFileProvider(path)
	require.NoError(t, err)

	raw := []byte(strings.Repeat("m", 32))
	require.NoError(t, p.ImportKey(raw, 7))
	assert.Equal(t, 7, p.ActiveVersion())

	got, err := p.SigningKey()
	require.NoError(t, err)
	assert.Equal(t, raw, got)

	assert.Error(t, p.ImportKey([]byte("short"), 8))
}
