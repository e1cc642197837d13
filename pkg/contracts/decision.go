// Package contracts holds the shared wire types of the decision pipeline.
// Field order in the JSON output is irrelevant: everything that is hashed or
// signed goes through pkg/canonicalize first.
package contracts

import (
	"time"
)

// Decision outcomes, ordered by severity.
const (
	DecisionPass       = "PASS"
	DecisionNeedOneBit = "NEED_ONE_BIT"
	DecisionHoldHuman  = "HOLD_HUMAN"
)

// Obligation tags recorded on decisions.
const (
	ObligationMinInfo           = "min_info"
	ObligationWorldcheck        = "worldcheck_queried"
	ObligationOracleUnreachable = "oracle_unreachable"
)

// Severity maps a decision to its position in the ordering
// PASS(0) < NEED_ONE_BIT(1) < HOLD_HUMAN(2). Unknown decisions rank worst.
func Severity(decision string) int {
	switch decision {
	case DecisionPass:
		return 0
	case DecisionNeedOneBit:
		return 1
	case DecisionHoldHuman:
		return 2
	default:
		return 3
	}
}

// DecisionForSeverity is the inverse of Severity for the three valid outcomes.
func DecisionForSeverity(sev int) string {
	switch {
	case sev <= 0:
		return DecisionPass
	case sev == 1:
		return DecisionNeedOneBit
	default:
		return DecisionHoldHuman
	}
}

// DecideRequest is the inbound decision request.
type DecideRequest struct {
	Amount    float64   `json:"amount"`
	Country   string    `json:"country"`
	TS        time.Time `json:"ts"`
	Recent    int       `json:"recent"`
	ContextID string    `json:"context_id,omitempty"`
}

// BundleInputs is the subset of the request bound into the signed bundle.
type BundleInputs struct {
	Amount  float64 `json:"amount"`
	Country string  `json:"country"`
	Recent  int     `json:"recent"`
}

// Bundle is the canonical signed object. The attestor signs the JCS form of
// this structure; proof_id binds those bytes to the raw signature.
type Bundle struct {
	TS          string       `json:"ts"`
	Decision    string       `json:"decision"`
	Obligations []string     `json:"obligations"`
	KernelID    string       `json:"kernel_id"`
	ParamHash   string       `json:"param_hash"`
	Inputs      BundleInputs `json:"inputs"`
}

// CertificatePayload is the JWS payload of a decision certificate.
type CertificatePayload struct {
	Sub         string       `json:"sub"`
	TS          string       `json:"ts"`
	Decision    string       `json:"decision"`
	KernelID    string       `json:"kernel_id"`
	ParamHash   string       `json:"param_hash"`
	Inputs      BundleInputs `json:"inputs"`
	Obligations []string     `json:"obligations"`
	ProofID     string       `json:"proof_id"`
}

// DecisionResult is the response of POST /decide. Cached verbatim by the
// idempotency layer, so a replayed request returns identical bytes.
type DecisionResult struct {
	Decision       string   `json:"decision"`
	Obligations    []string `json:"obligations"`
	KernelID       string   `json:"kernel_id"`
	ParamHash      string   `json:"param_hash"`
	Kid            string   `json:"kid"`
	SignatureB64   string   `json:"signature_b64"`
	ProofID        string   `json:"proof_id"`
	Anchor         *string  `json:"anchor"`
	CertificateJWS string   `json:"certificate_jws"`
}
