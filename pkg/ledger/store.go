// Package ledger is the append-only decision log with idempotency semantics,
// plus the anchor table. Rows are never mutated after insert; the unique
// constraint on idempotency_key is the single source of truth for duplicate
// suppression — callers must not pre-check with a read and then write.
package ledger

import (
	"context"
	"errors"

	"github.com/cicconel11/contramind-pilot/pkg/contracts"
)

// ErrNotFound is returned for reads of absent rows or anchors.
var ErrNotFound = errors.New("ledger: not found")

// CommitResult is the outcome of a Commit. When Replayed is true the caller
// lost an idempotency race (or repeated a request) and Response holds the
// winner's cached bytes verbatim.
type CommitResult struct {
	Row      contracts.LedgerRow
	Response []byte
	Replayed bool
}

// Store is the persistence contract shared by the decision engine and the
// anchor worker.
type Store interface {
	// Lookup returns the cached response for an idempotency key.
	Lookup(ctx context.Context, idemKey string) ([]byte, bool, error)

	// Commit appends a ledger row and the idempotency record in one
	// transaction; both land or neither does. On a unique-key collision it
	// re-reads the committed response and reports Replayed.
	Commit(ctx context.Context, row contracts.LedgerRow, idemKey string, response []byte) (CommitResult, error)

	// ReadRange returns rows with fromID <= id <= toID in id order.
	ReadRange(ctx context.Context, fromID, toID int64) ([]contracts.LedgerRow, error)

	// ScanFrom returns up to limit rows with id >= fromID in id order.
	ScanFrom(ctx context.Context, fromID int64, limit int) ([]contracts.LedgerRow, error)

	// MaxID returns the highest committed ledger id (0 when empty).
	MaxID(ctx context.Context) (int64, error)

	// LastAnchor returns the most recent anchor, or ErrNotFound.
	LastAnchor(ctx context.Context) (contracts.AnchorRow, error)

	// AppendAnchor inserts an immutable anchor row and returns it with its id.
	AppendAnchor(ctx context.Context, a contracts.AnchorRow) (contracts.AnchorRow, error)

	// Anchors returns all anchors in id order.
	Anchors(ctx context.Context) ([]contracts.AnchorRow, error)

	// Ping reports backing-store reachability for health checks.
	Ping(ctx context.Context) error
}
