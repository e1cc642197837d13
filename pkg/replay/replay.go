// Package replay re-evaluates historical ledger rows under current parameters
// and reports drift. It never asserts equality and never mutates the ledger:
// drift is expected whenever parameters or the kernel have changed since a
// decision was recorded.
package replay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/cicconel11/contramind-pilot/pkg/canonicalize"
	"github.com/cicconel11/contramind-pilot/pkg/contracts"
	"github.com/cicconel11/contramind-pilot/pkg/kernel"
	"github.com/cicconel11/contramind-pilot/pkg/ledger"
	"github.com/cicconel11/contramind-pilot/pkg/params"
)

const scanBatch = 500

// DriftRow is one historical decision that evaluates differently today.
type DriftRow struct {
	LedgerID  int64  `json:"ledger_id"`
	ProofID   string `json:"proof_id"`
	Recorded  string `json:"recorded"`
	Now       string `json:"now"`
	DigestHex string `json:"digest_hex"`
}

// Report summarizes one replay pass.
type Report struct {
	Checked int        `json:"checked"`
	Drift   int        `json:"drift"`
	Rows    []DriftRow `json:"rows,omitempty"`
}

// Engine walks the ledger against the current parameter snapshot.
type Engine struct {
	ledger ledger.Store
	params params.Store
	logger *slog.Logger
}

// New creates a replay engine.
func New(l ledger.Store, p params.Store, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{ledger: l, params: p, logger: logger.With("component", "replay")}
}

// Run replays every ledger row and returns the drift report.
func (e *Engine) Run(ctx context.Context) (*Report, error) {
	snap, err := e.params.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("replay: snapshot: %w", err)
	}

	report := &Report{}
	next := int64(1)
	for {
		rows, err := e.ledger.ScanFrom(ctx, next, scanBatch)
		if err != nil {
			return nil, fmt.Errorf("replay: scan: %w", err)
		}
		if len(rows) == 0 {
			break
		}
		for _, row := range rows {
			if err := e.check(row, snap, report); err != nil {
				return nil, err
			}
		}
		next = rows[len(rows)-1].ID + 1
	}
	e.logger.Info("replay complete", "checked", report.Checked, "drift", report.Drift)
	return report, nil
}

func (e *Engine) check(row contracts.LedgerRow, snap params.Snapshot, report *Report) error {
	var bundle contracts.Bundle
	if err := json.Unmarshal(row.Bundle, &bundle); err != nil {
		return fmt.Errorf("replay: ledger id %d: corrupt bundle: %w", row.ID, err)
	}
	report.Checked++

	// Recompute the canonical digest deterministically from the stored bundle.
	canonical, err := canonicalize.JCS(bundle)
	if err != nil {
		return fmt.Errorf("replay: ledger id %d: %w", row.ID, err)
	}
	digest := canonicalize.HashBytes(canonical)

	ts, err := canonicalize.ParseWireTime(bundle.TS)
	if err != nil {
		return fmt.Errorf("replay: ledger id %d: %w", row.ID, err)
	}
	now := kernel.Decide(bundle.Inputs.Amount, bundle.Inputs.Country, ts, bundle.Inputs.Recent, snap)

	// The one-bit resolution collapsed NEED_ONE_BIT before the bundle was
	// signed; treat a transient verdict as matching either resolved outcome.
	if now.Decision != bundle.Decision && now.Decision != contracts.DecisionNeedOneBit {
		report.Drift++
		report.Rows = append(report.Rows, DriftRow{
			LedgerID:  row.ID,
			ProofID:   row.ProofID,
			Recorded:  bundle.Decision,
			Now:       now.Decision,
			DigestHex: digest,
		})
	}
	return nil
}
