// Package canonicalize provides RFC 8785 (JSON Canonicalization Scheme) compliant
// serialization for deterministic hashing of decision artifacts.
//
// Canonicalization is load-bearing: the raw-signature path, the JWS path, proof_id
// derivation, param_hash, and auto idempotency keys all flow through JCS. Two
// observers serializing the same value must produce byte-identical output.
package canonicalize

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gowebpki/jcs"
)

// JCS returns the RFC 8785 canonical JSON representation of v.
//
// Key features:
// 1. Map keys are sorted lexicographically by UTF-16 code units.
// 2. HTML escaping is disabled (unlike standard json.Marshal).
// 3. Numbers serialize in ES6 shortest form (100.00 -> 100).
func JCS(v interface{}) ([]byte, error) {
	intermediate, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("jcs: pre-marshal failed: %w", err)
	}
	out, err := jcs.Transform(intermediate)
	if err != nil {
		return nil, fmt.Errorf("jcs: transform failed: %w", err)
	}
	return out, nil
}

// CanonicalHash returns the SHA-256 hex digest of the canonical JSON representation of v.
func CanonicalHash(v interface{}) (string, error) {
	b, err := JCS(v)
	if err != nil {
		return "", err
	}
	return HashBytes(b), nil
}

// HashBytes computes the SHA-256 hash of raw bytes and returns the hex string.
func HashBytes(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// JCSString returns the JCS canonical form as a string.
func JCSString(v interface{}) (string, error) {
	data, err := JCS(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// WireTime formats a timestamp for canonical bundles: UTC, seconds resolution,
// trailing Z. Sub-second precision is dropped so that re-serialization of a
// stored bundle can never disagree with the signed bytes.
func WireTime(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format("2006-01-02T15:04:05Z")
}

// ParseWireTime parses a timestamp in the canonical wire format. RFC 3339 with
// sub-second precision or a numeric offset is accepted on input; the canonical
// form is re-derived via WireTime.
func ParseWireTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse wire time %q: %w", s, err)
	}
	return t.UTC(), nil
}
