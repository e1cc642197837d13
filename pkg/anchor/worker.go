// Package anchor runs the long-lived worker that Merkle-roots new ledger
// ranges and records attestor-signed anchors.
package anchor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cicconel11/contramind-pilot/pkg/contracts"
	"github.com/cicconel11/contramind-pilot/pkg/engine"
	"github.com/cicconel11/contramind-pilot/pkg/ledger"
	"github.com/cicconel11/contramind-pilot/pkg/merkle"
)

// Defaults for the worker cycle.
const (
	DefaultInterval  = 10 * time.Second
	DefaultBatchSize = 1000
	errorBackoff     = 5 * time.Second
)

// Worker periodically anchors unanchored ledger rows. Single instance per
// deployment: anchors must stay contiguous and non-overlapping.
type Worker struct {
	ledger   ledger.Store
	attestor engine.Attestor
	interval time.Duration
	batch    int
	logger   *slog.Logger
}

// New creates a worker. Zero interval/batch fall back to defaults.
func New(l ledger.Store, a engine.Attestor, interval time.Duration, batch int, logger *slog.Logger) *Worker {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if batch <= 0 {
		batch = DefaultBatchSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		ledger:   l,
		attestor: a,
		interval: interval,
		batch:    batch,
		logger:   logger.With("component", "anchor"),
	}
}

// Run loops until ctx is cancelled. Errors are logged and backed off, never
// fatal: the ledger keeps accepting decisions while anchoring lags.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("anchor worker started", "interval", w.interval, "batch", w.batch)
	for {
		anchored, err := w.RunOnce(ctx)
		wait := w.interval
		if err != nil {
			w.logger.Error("anchor cycle failed", "error", err)
			wait = errorBackoff
		} else if anchored != nil {
			w.logger.Info("anchored",
				"from_id", anchored.FromID,
				"to_id", anchored.ToID,
				"merkle_root", anchored.MerkleRoot,
				"kid", anchored.Kid,
			)
			// Catch up immediately when a full batch suggests a backlog.
			if anchored.ToID-anchored.FromID+1 == int64(w.batch) {
				wait = 0
			}
		}
		select {
		case <-ctx.Done():
			w.logger.Info("anchor worker stopped")
			return
		case <-time.After(wait):
		}
	}
}

// RunOnce performs a single anchoring cycle. Returns the new anchor, or nil
// when there was nothing to anchor.
func (w *Worker) RunOnce(ctx context.Context) (*contracts.AnchorRow, error) {
	start := int64(1)
	last, err := w.ledger.LastAnchor(ctx)
	switch {
	case err == nil:
		start = last.ToID + 1
	case errors.Is(err, ledger.ErrNotFound):
	default:
		return nil, fmt.Errorf("anchor: last anchor: %w", err)
	}

	rows, err := w.ledger.ScanFrom(ctx, start, w.batch)
	if err != nil {
		return nil, fmt.Errorf("anchor: scan: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	leaves := make([]string, len(rows))
	for i, r := range rows {
		leaves[i] = r.ProofID
	}
	bundle := contracts.AnchorBundle{
		Type:       "anchor",
		FromID:     rows[0].ID,
		ToID:       rows[len(rows)-1].ID,
		MerkleRoot: merkle.Root(leaves),
	}

	signCtx, cancel := context.WithTimeout(ctx, engine.AttestorTimeout)
	sig, err := w.attestor.SignBundle(signCtx, bundle)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("anchor: sign: %w", err)
	}

	row, err := w.ledger.AppendAnchor(ctx, contracts.AnchorRow{
		FromID:     bundle.FromID,
		ToID:       bundle.ToID,
		MerkleRoot: bundle.MerkleRoot,
		Signature:  sig.SignatureB64,
		Kid:        sig.Kid,
	})
	if err != nil {
		return nil, fmt.Errorf("anchor: append: %w", err)
	}
	return &row, nil
}
