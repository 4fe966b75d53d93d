// Package merkle builds binary hash trees over ordered ranges of audit
// event hashes, producing compact integrity proofs for regulatory exports.
package merkle

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
)

// Domain-separation prefixes keep leaf and interior hashes from being
// confused with each other or with event hashes.
const (
	leafPrefix = "antevus:ledger:leaf:v1"
	nodePrefix = "antevus:ledger:node:v1"
)

var (
	// ErrNoLeaves is returned when a tree is requested over zero hashes.
	ErrNoLeaves = errors.New("merkle: no leaves")
	// ErrInvalidLeaf is returned when a leaf is not a hex digest.
	ErrInvalidLeaf = errors.New("merkle: leaf is not a hex digest")
)

// Tree is a binary hash tree over an ordered list of event hashes.
// Levels[0] holds the leaf hashes; the last level holds only the root.
type Tree struct {
	Root   string
	Levels [][]string
}

// BuildTree constructs the tree over the given ordered event hashes.
//
// Odd-count levels duplicate their last node before pairing. The rule is
// fixed: changing it would change every historical root, so it must never
// vary between builder and checker.
func BuildTree(eventHashes []string) (*Tree, error) {
	if len(eventHashes) == 0 {
		return nil, ErrNoLeaves
	}

	leaves := make([]string, len(eventHashes))
	for i, h := range eventHashes {
		raw, err := hex.DecodeString(h)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidLeaf, h)
		}
		leaves[i] = leafHash(raw)
	}

	tree := &Tree{Levels: [][]string{leaves}}
	current := leaves
	for len(current) > 1 {
		current = nextLevel(current)
		tree.Levels = append(tree.Levels, current)
	}
	tree.Root = current[0]
	return tree, nil
}

// ComputeRoot returns only the root over the given ordered event hashes.
// Deterministic: the same ordered list always produces the same root, and
// changing any single leaf changes it.
func ComputeRoot(eventHashes []string) (string, error) {
	tree, err := BuildTree(eventHashes)
	if err != nil {
		return "", err
	}
	return tree.Root, nil
}

func nextLevel(hashes []string) []string {
	count := len(hashes)
	if count%2 != 0 {
		hashes = append(hashes, hashes[count-1]) // duplicate last
		count++
	}

	level := make([]string, count/2)
	for i := 0; i < count; i += 2 {
		level[i/2] = nodeHash(hashes[i], hashes[i+1])
	}
	return level
}

func leafHash(raw []byte) string {
	var buf bytes.Buffer
	buf.WriteString(leafPrefix)
	buf.WriteByte(0)
	buf.Write(raw)
	return sha256Hex(buf.Bytes())
}

func nodeHash(left, right string) string {
	var buf bytes.Buffer
	buf.WriteString(nodePrefix)
	buf.WriteByte(0)
	buf.Write(hexToBytes(left))
	buf.Write(hexToBytes(right))
	return sha256Hex(buf.Bytes())
}

func sha256Hex(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

func hexToBytes(s string) []byte {
	b, _ := hex.DecodeString(s)
	return b
}
