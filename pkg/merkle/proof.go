package merkle

import (
	"fmt"
)

// InclusionProof shows that a single event hash is a leaf of a tree with
// the given root. Auditors can check one exported event against a proof
// root without holding the full range.
type InclusionProof struct {
	LeafIndex  int         `json:"leaf_index"`
	LeafHash   string      `json:"leaf_hash"`
	MerkleRoot string      `json:"merkle_root"`
	ProofPath  []ProofStep `json:"proof_path"`
}

// ProofStep is one sibling on the path from leaf to root. Side records
// where the sibling sits relative to the running hash: "L" or "R".
type ProofStep struct {
	Side        string `json:"side"`
	SiblingHash string `json:"sibling_hash"`
}

// Prove returns the inclusion proof for the leaf at index.
func (t *Tree) Prove(index int) (*InclusionProof, error) {
	leaves := t.Levels[0]
	if index < 0 || index >= len(leaves) {
		return nil, fmt.Errorf("merkle: leaf index %d out of range [0, %d)", index, len(leaves))
	}

	proof := &InclusionProof{
		LeafIndex:  index,
		LeafHash:   leaves[index],
		MerkleRoot: t.Root,
		ProofPath:  []ProofStep{},
	}

	pos := index
	for _, level := range t.Levels[:len(t.Levels)-1] {
		sibling := pos ^ 1
		step := ProofStep{Side: "R"}
		if sibling < pos {
			step.Side = "L"
		}
		if sibling >= len(level) {
			// Odd level: the last node is paired with itself.
			sibling = pos
		}
		step.SiblingHash = level[sibling]
		proof.ProofPath = append(proof.ProofPath, step)
		pos /= 2
	}
	return proof, nil
}

// VerifyInclusionProof replays the proof path and reports whether it
// reaches expectedRoot. An empty expectedRoot falls back to the root
// embedded in the proof.
func VerifyInclusionProof(proof *InclusionProof, expectedRoot string) bool {
	if expectedRoot == "" {
		expectedRoot = proof.MerkleRoot
	} else if proof.MerkleRoot != expectedRoot {
		return false
	}

	current := proof.LeafHash
	for _, step := range proof.ProofPath {
		switch step.Side {
		case "L":
			current = nodeHash(step.SiblingHash, current)
		case "R":
			current = nodeHash(current, step.SiblingHash)
		default:
			return false
		}
	}
	return current == expectedRoot
}
