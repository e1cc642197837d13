package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/cicconel11/contramind-pilot/pkg/contracts"
)

// MemoryStore is the in-process backend used by tests and the memory driver.
type MemoryStore struct {
	mu        sync.RWMutex
	rows      []contracts.LedgerRow
	anchors   []contracts.AnchorRow
	responses map[string][]byte
	clock     func() time.Time
}

// NewMemoryStore creates an empty in-memory ledger.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		responses: make(map[string][]byte),
		clock:     time.Now,
	}
}

// WithClock overrides the clock for testing.
func (s *MemoryStore) WithClock(clock func() time.Time) *MemoryStore {
	s.clock = clock
	return s
}

// Lookup returns the cached response for an idempotency key.
func (s *MemoryStore) Lookup(ctx context.Context, idemKey string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	resp, ok := s.responses[idemKey]
	return resp, ok, nil
}

// Commit appends a row unless the idempotency key already won.
func (s *MemoryStore) Commit(ctx context.Context, row contracts.LedgerRow, idemKey string, response []byte) (CommitResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idemKey != "" {
		if winner, ok := s.responses[idemKey]; ok {
			return CommitResult{Response: winner, Replayed: true}, nil
		}
	}
	row.ID = int64(len(s.rows)) + 1
	row.TSInserted = s.clock().UTC()
	row.IdempotencyKey = idemKey
	s.rows = append(s.rows, row)
	if idemKey != "" {
		s.responses[idemKey] = response
	}
	return CommitResult{Row: row, Response: response}, nil
}

// ReadRange returns rows with fromID <= id <= toID.
func (s *MemoryStore) ReadRange(ctx context.Context, fromID, toID int64) ([]contracts.LedgerRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []contracts.LedgerRow
	for _, r := range s.rows {
		if r.ID >= fromID && r.ID <= toID {
			out = append(out, r)
		}
	}
	return out, nil
}

// ScanFrom returns up to limit rows with id >= fromID.
func (s *MemoryStore) ScanFrom(ctx context.Context, fromID int64, limit int) ([]contracts.LedgerRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []contracts.LedgerRow
	for _, r := range s.rows {
		if r.ID >= fromID {
			out = append(out, r)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

// MaxID returns the highest ledger id.
func (s *MemoryStore) MaxID(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.rows)), nil
}

// LastAnchor returns the most recent anchor.
func (s *MemoryStore) LastAnchor(ctx context.Context) (contracts.AnchorRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.anchors) == 0 {
		return contracts.AnchorRow{}, ErrNotFound
	}
	return s.anchors[len(s.anchors)-1], nil
}

// AppendAnchor inserts an anchor row.
func (s *MemoryStore) AppendAnchor(ctx context.Context, a contracts.AnchorRow) (contracts.AnchorRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a.ID = int64(len(s.anchors)) + 1
	s.anchors = append(s.anchors, a)
	return a, nil
}

// Anchors returns all anchors in order.
func (s *MemoryStore) Anchors(ctx context.Context) ([]contracts.AnchorRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]contracts.AnchorRow(nil), s.anchors...), nil
}

// Ping always succeeds for the in-memory backend.
func (s *MemoryStore) Ping(ctx context.Context) error { return nil }
