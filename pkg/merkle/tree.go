// Package merkle computes anchor Merkle roots over ordered proof_id leaves.
//
// Wire format: a leaf hash is SHA-256 of the proof_id hex string's ASCII bytes;
// a node hash is SHA-256 of the two child hex strings concatenated as ASCII.
// An odd level duplicates its last hash. The format is quirky but frozen:
// external verifiers recompute these roots bit-for-bit.
package merkle

import (
	"crypto/sha256"
	"encoding/hex"
)

// Tree holds every level of an anchor Merkle tree, leaves first.
type Tree struct {
	Levels [][]string
	Root   string
}

// Root computes the Merkle root over ordered proof_id leaves.
// Returns "" for an empty leaf set.
func Root(proofIDs []string) string {
	t := Build(proofIDs)
	if t == nil {
		return ""
	}
	return t.Root
}

// Build constructs the full tree. Returns nil for an empty leaf set.
func Build(proofIDs []string) *Tree {
	if len(proofIDs) == 0 {
		return nil
	}
	level := make([]string, len(proofIDs))
	for i, p := range proofIDs {
		level[i] = sha256Hex([]byte(p))
	}

	t := &Tree{}
	for len(level) > 1 {
		t.Levels = append(t.Levels, level)
		level = nextLevel(level)
	}
	t.Levels = append(t.Levels, level)
	t.Root = level[0]
	return t
}

func nextLevel(hashes []string) []string {
	if len(hashes)%2 != 0 {
		hashes = append(hashes, hashes[len(hashes)-1])
	}
	next := make([]string, len(hashes)/2)
	for i := 0; i < len(hashes); i += 2 {
		next[i/2] = nodeHash(hashes[i], hashes[i+1])
	}
	return next
}

func nodeHash(left, right string) string {
	return sha256Hex([]byte(left + right))
}

func sha256Hex(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
