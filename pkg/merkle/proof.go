package merkle

import "fmt"

// ProofStep is one sibling on the path from a leaf to the root.
type ProofStep struct {
	Side        string `json:"side"` // "L" or "R"
	SiblingHash string `json:"sibling_hash"`
}

// InclusionProof lets an auditor check a single proof_id against an anchored root.
type InclusionProof struct {
	ProofID    string      `json:"proof_id"`
	LeafHash   string      `json:"leaf_hash"`
	MerkleRoot string      `json:"merkle_root"`
	ProofPath  []ProofStep `json:"proof_path"`
}

// Prove builds an inclusion proof for the leaf at index.
func (t *Tree) Prove(index int, proofID string) (*InclusionProof, error) {
	if t == nil || len(t.Levels) == 0 {
		return nil, fmt.Errorf("merkle: empty tree")
	}
	if index < 0 || index >= len(t.Levels[0]) {
		return nil, fmt.Errorf("merkle: leaf index %d out of range", index)
	}

	proof := &InclusionProof{
		ProofID:    proofID,
		LeafHash:   t.Levels[0][index],
		MerkleRoot: t.Root,
	}

	idx := index
	for _, level := range t.Levels[:len(t.Levels)-1] {
		sibling := idx ^ 1
		if sibling >= len(level) {
			// Odd level: the last hash is paired with itself.
			sibling = idx
		}
		side := "R"
		if sibling < idx {
			side = "L"
		}
		proof.ProofPath = append(proof.ProofPath, ProofStep{Side: side, SiblingHash: level[sibling]})
		idx /= 2
	}
	return proof, nil
}

// VerifyInclusion recomputes the path and checks it against expectedRoot.
func VerifyInclusion(proof *InclusionProof, expectedRoot string) bool {
	if proof == nil {
		return false
	}
	if expectedRoot != "" && proof.MerkleRoot != expectedRoot {
		return false
	}
	current := sha256Hex([]byte(proof.ProofID))
	if current != proof.LeafHash {
		return false
	}
	for _, step := range proof.ProofPath {
		if step.Side == "L" {
			current = nodeHash(step.SiblingHash, current)
		} else {
			current = nodeHash(current, step.SiblingHash)
		}
	}
	return current == proof.MerkleRoot
}
