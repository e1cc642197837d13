package contracts

import (
	"encoding/json"
	"time"
)

// LedgerRow is one committed decision. Rows are never mutated after insert.
type LedgerRow struct {
	ID             int64           `json:"id"`
	TSInserted     time.Time       `json:"ts_inserted"`
	ProofID        string          `json:"proof_id"`
	KernelID       string          `json:"kernel_id"`
	ParamHash      string          `json:"param_hash"`
	Kid            string          `json:"kid"`
	Bundle         json.RawMessage `json:"bundle"`
	CertificateJWS string          `json:"certificate_jws"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
}

// AnchorRow is a signed Merkle root over a contiguous ledger range.
// Invariant: anchors are contiguous and non-overlapping in id order.
type AnchorRow struct {
	ID         int64  `json:"id"`
	FromID     int64  `json:"from_id"`
	ToID       int64  `json:"to_id"`
	MerkleRoot string `json:"merkle_root"`
	Signature  string `json:"signature"`
	Kid        string `json:"kid"`
}

// AnchorBundle is the canonical object the attestor signs for an anchor.
type AnchorBundle struct {
	Type       string `json:"type"`
	FromID     int64  `json:"from_id"`
	ToID       int64  `json:"to_id"`
	MerkleRoot string `json:"merkle_root"`
}
