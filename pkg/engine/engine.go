// Package engine orchestrates a decision: parameter snapshot, kernel
// evaluation, optional one-bit resolution, attestation, and the transactional
// ledger/idempotency commit.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cicconel11/contramind-pilot/pkg/attestor"
	"github.com/cicconel11/contramind-pilot/pkg/canonicalize"
	"github.com/cicconel11/contramind-pilot/pkg/contracts"
	"github.com/cicconel11/contramind-pilot/pkg/kernel"
	"github.com/cicconel11/contramind-pilot/pkg/ledger"
	"github.com/cicconel11/contramind-pilot/pkg/observability"
	"github.com/cicconel11/contramind-pilot/pkg/oracle"
	"github.com/cicconel11/contramind-pilot/pkg/params"
)

// Default timeouts for the engine's blocking points.
const (
	AttestorTimeout = 5 * time.Second
	OracleTimeout   = 5 * time.Second
	RequestBudget   = 7 * time.Second
)

// ErrAttestorUnavailable marks signing failures: no certificate was issued
// and nothing was written.
var ErrAttestorUnavailable = errors.New("engine: attestor unavailable")

// ErrParamsUnavailable marks parameter-store failures: the kernel never ran.
var ErrParamsUnavailable = errors.New("engine: parameter store unavailable")

// Attestor is the signing surface the engine depends on. Implemented by
// attestor.Service in-process and by attestor HTTP clients in a split
// deployment.
type Attestor interface {
	SignBundle(ctx context.Context, bundle interface{}) (attestor.SignResult, error)
	SignJWS(ctx context.Context, payload interface{}) (kid, jws string, err error)
}

// Outcome is a completed decision: the structured result plus the exact
// response bytes the idempotency layer caches and replays.
type Outcome struct {
	Result   contracts.DecisionResult
	Raw      []byte
	Replayed bool
}

// Engine issues attested decisions.
type Engine struct {
	params      params.Store
	ledger      ledger.Store
	attestor    Attestor
	oracle      oracle.Checker
	logger      *slog.Logger
	obs         *observability.Provider
	clock       func() time.Time
	commitTries int
}

// New wires an engine. All dependencies are required except logger.
func New(p params.Store, l ledger.Store, a Attestor, o oracle.Checker, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		params:      p,
		ledger:      l,
		attestor:    a,
		oracle:      o,
		logger:      logger.With("component", "engine"),
		clock:       time.Now,
		commitTries: 3,
	}
}

// WithClock overrides the clock for testing.
func (e *Engine) WithClock(clock func() time.Time) *Engine {
	e.clock = clock
	return e
}

// WithObservability attaches metric recording to issued decisions.
func (e *Engine) WithObservability(obs *observability.Provider) *Engine {
	e.obs = obs
	return e
}

// IdemKey computes the effective idempotency key: the client-supplied header
// when present, otherwise "auto:" + SHA-256 of the canonical request.
func IdemKey(headerKey string, req contracts.DecideRequest) (string, error) {
	if headerKey != "" {
		return headerKey, nil
	}
	digest, err := canonicalize.CanonicalHash(map[string]interface{}{
		"amount":     req.Amount,
		"country":    req.Country,
		"ts":         canonicalize.WireTime(req.TS),
		"recent":     req.Recent,
		"context_id": req.ContextID,
	})
	if err != nil {
		return "", err
	}
	return "auto:" + digest, nil
}

// Decide runs the full pipeline for one request. headerKey is the raw
// Idempotency-Key header ("" when absent).
func (e *Engine) Decide(ctx context.Context, req contracts.DecideRequest, headerKey string) (Outcome, error) {
	idemKey, err := IdemKey(headerKey, req)
	if err != nil {
		return Outcome{}, err
	}

	// Fast path: a committed response is canonical forever.
	if cached, ok, err := e.ledger.Lookup(ctx, idemKey); err != nil {
		return Outcome{}, fmt.Errorf("engine: idempotency lookup: %w", err)
	} else if ok {
		out, err := e.replay(cached)
		if err == nil && e.obs != nil {
			e.obs.RecordDecision(ctx, out.Result.Decision, true)
		}
		return out, err
	}

	snap, err := e.params.Snapshot(ctx)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: %v", ErrParamsUnavailable, err)
	}

	verdict := kernel.Decide(req.Amount, req.Country, req.TS, req.Recent, snap)
	decision := verdict.Decision
	obligations := verdict.Obligations

	if decision == contracts.DecisionNeedOneBit {
		decision, obligations = e.resolveOneBit(ctx, req, obligations)
	}
	// Post-condition: the transient state never reaches a signed bundle.
	if decision == contracts.DecisionNeedOneBit {
		return Outcome{}, fmt.Errorf("engine: unresolved one-bit state")
	}

	bundle := contracts.Bundle{
		TS:          canonicalize.WireTime(e.clock()),
		Decision:    decision,
		Obligations: obligations,
		KernelID:    verdict.KernelID,
		ParamHash:   verdict.ParamHash,
		Inputs: contracts.BundleInputs{
			Amount:  req.Amount,
			Country: req.Country,
			Recent:  req.Recent,
		},
	}
	canonicalBundle, err := canonicalize.JCS(bundle)
	if err != nil {
		return Outcome{}, err
	}

	signCtx, cancel := context.WithTimeout(ctx, AttestorTimeout)
	sig, err := e.attestor.SignBundle(signCtx, bundle)
	cancel()
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: %v", ErrAttestorUnavailable, err)
	}

	proofID := canonicalize.HashBytes(append(append([]byte{}, canonicalBundle...), []byte("|"+sig.SignatureB64)...))

	certPayload := contracts.CertificatePayload{
		Sub:         "decision",
		TS:          bundle.TS,
		Decision:    decision,
		KernelID:    verdict.KernelID,
		ParamHash:   verdict.ParamHash,
		Inputs:      bundle.Inputs,
		Obligations: obligations,
		ProofID:     proofID,
	}
	jwsCtx, cancel := context.WithTimeout(ctx, AttestorTimeout)
	jwsKid, jws, err := e.attestor.SignJWS(jwsCtx, certPayload)
	cancel()
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: %v", ErrAttestorUnavailable, err)
	}
	if jwsKid != sig.Kid {
		// Rotation raced this request between the two signatures; the signed
		// artifacts would disagree on kid, so discard both.
		return Outcome{}, fmt.Errorf("%w: key rotated mid-request (%s != %s)", ErrAttestorUnavailable, jwsKid, sig.Kid)
	}

	result := contracts.DecisionResult{
		Decision:       decision,
		Obligations:    obligations,
		KernelID:       verdict.KernelID,
		ParamHash:      verdict.ParamHash,
		Kid:            sig.Kid,
		SignatureB64:   sig.SignatureB64,
		ProofID:        proofID,
		Anchor:         nil,
		CertificateJWS: jws,
	}
	raw, err := canonicalize.JCS(result)
	if err != nil {
		return Outcome{}, err
	}

	row := contracts.LedgerRow{
		ProofID:        proofID,
		KernelID:       verdict.KernelID,
		ParamHash:      verdict.ParamHash,
		Kid:            sig.Kid,
		Bundle:         canonicalBundle,
		CertificateJWS: jws,
	}
	commit, err := e.commitWithRetry(ctx, row, idemKey, raw)
	if err != nil {
		// The signed-but-unstored certificate is discarded.
		return Outcome{}, fmt.Errorf("engine: ledger commit: %w", err)
	}
	if commit.Replayed {
		out, err := e.replay(commit.Response)
		if err == nil && e.obs != nil {
			e.obs.RecordDecision(ctx, out.Result.Decision, true)
		}
		return out, err
	}
	if e.obs != nil {
		e.obs.RecordDecision(ctx, decision, false)
	}

	e.logger.Info("decision committed",
		"decision", decision,
		"proof_id", proofID,
		"kid", sig.Kid,
		"ledger_id", commit.Row.ID,
	)
	return Outcome{Result: result, Raw: raw}, nil
}

// resolveOneBit converts the transient kernel state into PASS or HOLD_HUMAN.
// Oracle failure resolves to a safe, attested HOLD_HUMAN rather than an error.
func (e *Engine) resolveOneBit(ctx context.Context, req contracts.DecideRequest, obligations []string) (string, []string) {
	oracleCtx, cancel := context.WithTimeout(ctx, OracleTimeout)
	defer cancel()
	res, err := e.oracle.Check(oracleCtx, oracle.CheckRequest{Type: "issuer_verify", TxID: req.ContextID})
	if err != nil {
		e.logger.Warn("oracle unreachable, holding for human", "error", err)
		return contracts.DecisionHoldHuman, append(obligations, contracts.ObligationOracleUnreachable)
	}
	obligations = append(obligations, contracts.ObligationWorldcheck)
	if res.Bit {
		return contracts.DecisionPass, obligations
	}
	return contracts.DecisionHoldHuman, obligations
}

func (e *Engine) commitWithRetry(ctx context.Context, row contracts.LedgerRow, idemKey string, raw []byte) (ledger.CommitResult, error) {
	backoff := 100 * time.Millisecond
	var lastErr error
	for attempt := 0; attempt < e.commitTries; attempt++ {
		commit, err := e.ledger.Commit(ctx, row, idemKey, raw)
		if err == nil {
			return commit, nil
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return ledger.CommitResult{}, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return ledger.CommitResult{}, lastErr
}

func (e *Engine) replay(cached []byte) (Outcome, error) {
	var result contracts.DecisionResult
	if err := json.Unmarshal(cached, &result); err != nil {
		return Outcome{}, fmt.Errorf("engine: corrupt cached response: %w", err)
	}
	return Outcome{Result: result, Raw: cached, Replayed: true}, nil
}
