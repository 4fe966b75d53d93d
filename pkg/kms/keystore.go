package kms

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
)

// Keystore is the on-disk JSON format for persisted signing keys.
// Keys are versioned so rotation keeps old keys available for verifying
// historical chain segments.
type Keystore struct {
	ActiveVersion int               `json:"active_version"`
	Keys          map[string]string `json:"keys"` // version -> base64-encoded 32-byte key
}

// FileProvider is a file-backed key provider for self-hosted deployments.
type FileProvider struct {
	mu    sync.RWMutex
	store Keystore
	path  string
	keys  map[int][]byte
}

// NewFileProvider loads or creates a keystore at the given path.
// If the file does not exist, a new key (version 1) is generated.
func NewFileProvider(keystorePath string) (*FileProvider, error) {
	p := &FileProvider{
		path: keystorePath,
		keys: make(map[int][]byte),
	}

	if _, err := os.Stat(keystorePath); errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(filepath.Dir(keystorePath), 0700); err != nil {
			return nil, fmt.Errorf("kms: create dir: %w", err)
		}

		key := make([]byte, 32)
		if _, err := io.ReadFull(rand.Reader, key); err != nil {
			return nil, fmt.Errorf("kms: generate key: %w", err)
		}

		p.store = Keystore{
			ActiveVersion: 1,
			Keys:          map[string]string{"1": base64.StdEncoding.EncodeToString(key)},
		}
		p.keys[1] = key

		if err := p.persist(); err != nil {
			return nil, err
		}
		return p, nil
	}

	data, err := os.ReadFile(keystorePath)
	if err != nil {
		return nil, fmt.Errorf("kms: read keystore: %w", err)
	}
	if err := json.Unmarshal(data, &p.store); err != nil {
		return nil, fmt.Errorf("kms: parse keystore: %w", err)
	}

	for vStr, encoded := range p.store.Keys {
		v, err := strconv.Atoi(vStr)
		if err != nil {
			return nil, fmt.Errorf("kms: invalid version %q: %w", vStr, err)
		}
		key, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("kms: decode key v%d: %w", v, err)
		}
		if len(key) != 32 {
			return nil, fmt.Errorf("kms: key v%d invalid length %d (need 32)", v, len(key))
		}
		p.keys[v] = key
	}

	if _, ok := p.keys[p.store.ActiveVersion]; !ok {
		return nil, fmt.Errorf("kms: active version %d not in keystore", p.store.ActiveVersion)
	}
	return p, nil
}

// SigningKey returns the active key.
func (p *FileProvider) SigningKey() ([]byte, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	key, ok := p.keys[p.store.ActiveVersion]
	if !ok {
		return nil, ErrNoKey
	}
	return key, nil
}

// KeyForVersion returns a specific key version for verifying chain segments
// signed before a rotation.
func (p *FileProvider) KeyForVersion(version int) ([]byte, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	key, ok := p.keys[version]
	if !ok {
		return nil, fmt.Errorf("%w: unknown version %d", ErrNoKey, version)
	}
	return key, nil
}

// ImportKey imports an existing raw key as the given version and makes it
// active. This enables migration from the env-var approach.
func (p *FileProvider) ImportKey(rawKey []byte, version int) error {
	if len(rawKey) != 32 {
		return fmt.Errorf("kms: import key must be 32 bytes, got %d", len(rawKey))
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.store.Keys[strconv.Itoa(version)] = base64.StdEncoding.EncodeToString(rawKey)
	p.store.ActiveVersion = version
	p.keys[version] = rawKey
	return p.persist()
}

// Rotate generates a new key version and persists the updated keystore.
// Old keys remain available for verification of historical segments.
func (p *FileProvider) Rotate() (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	newVersion := p.store.ActiveVersion + 1

	key := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return 0, fmt.Errorf("kms: generate key: %w", err)
	}

	p.store.Keys[strconv.Itoa(newVersion)] = base64.StdEncoding.EncodeToString(key)
	p.store.ActiveVersion = newVersion
	p.keys[newVersion] = key

	if err := p.persist(); err != nil {
		return 0, err
	}
	return newVersion, nil
}

// ActiveVersion returns the current active key version.
func (p *FileProvider) ActiveVersion() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.store.ActiveVersion
}

func (p *FileProvider) persist() error {
	data, err := json.MarshalIndent(p.store, "", "  ")
	if err != nil {
		return fmt.Errorf("kms: marshal keystore: %w", err)
	}
	if err := os.WriteFile(p.path, data, 0600); err != nil {
		return fmt.Errorf("kms: write keystore: %w", err)
	}
	return nil
}
