package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cicconel11/contramind-pilot/pkg/contracts"
)

// SQLStore implements Store over database/sql. The same statements run on
// Postgres and SQLite ($N placeholders are native to both); only the
// migration DDL differs per driver.
type SQLStore struct {
	db      *sql.DB
	migrate []string
}

func newSQLStore(ctx context.Context, db *sql.DB, migrate []string) (*SQLStore, error) {
	s := &SQLStore{db: db, migrate: migrate}
	for _, q := range migrate {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return nil, fmt.Errorf("ledger: migrate: %w", err)
		}
	}
	return s, nil
}

// Lookup returns the cached response for an idempotency key.
func (s *SQLStore) Lookup(ctx context.Context, idemKey string) ([]byte, bool, error) {
	var resp []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT response FROM idempotency WHERE id_key = $1`, idemKey).Scan(&resp)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("ledger: idempotency lookup: %w", err)
	}
	return resp, true, nil
}

// Commit appends the ledger row and the idempotency record in one transaction.
// The unique constraint on idempotency_key decides races: the losing insert
// sees no returned id and re-reads the winner's cached response.
func (s *SQLStore) Commit(ctx context.Context, row contracts.LedgerRow, idemKey string, response []byte) (CommitResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return CommitResult{}, fmt.Errorf("ledger: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var key interface{}
	if idemKey != "" {
		key = idemKey
	}
	now := time.Now().UTC()

	var id int64
	err = tx.QueryRowContext(ctx,
		`INSERT INTO decision_ledger (ts_inserted, proof_id, kernel_id, param_hash, kid, bundle, certificate_jws, idempotency_key)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (idempotency_key) DO NOTHING
		 RETURNING id`,
		now, row.ProofID, row.KernelID, row.ParamHash, row.Kid,
		string(row.Bundle), row.CertificateJWS, key).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		// Lost the race: the committed row's response is canonical.
		var winner []byte
		if err := tx.QueryRowContext(ctx,
			`SELECT response FROM idempotency WHERE id_key = $1`, idemKey).Scan(&winner); err != nil {
			return CommitResult{}, fmt.Errorf("ledger: race re-read: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return CommitResult{}, fmt.Errorf("ledger: commit: %w", err)
		}
		return CommitResult{Response: winner, Replayed: true}, nil
	}
	if err != nil {
		return CommitResult{}, fmt.Errorf("ledger: append: %w", err)
	}

	if idemKey != "" {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO idempotency (id_key, response, created_at) VALUES ($1, $2, $3)
			 ON CONFLICT (id_key) DO NOTHING`,
			idemKey, string(response), now); err != nil {
			return CommitResult{}, fmt.Errorf("ledger: idempotency write: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return CommitResult{}, fmt.Errorf("ledger: commit: %w", err)
	}

	row.ID = id
	row.TSInserted = now
	row.IdempotencyKey = idemKey
	return CommitResult{Row: row, Response: response}, nil
}

const rowColumns = `id, ts_inserted, proof_id, kernel_id, param_hash, kid, bundle, certificate_jws, COALESCE(idempotency_key, '')`

func scanRows(rows *sql.Rows) ([]contracts.LedgerRow, error) {
	defer func() { _ = rows.Close() }()
	var out []contracts.LedgerRow
	for rows.Next() {
		var r contracts.LedgerRow
		var bundle string
		if err := rows.Scan(&r.ID, &r.TSInserted, &r.ProofID, &r.KernelID, &r.ParamHash,
			&r.Kid, &bundle, &r.CertificateJWS, &r.IdempotencyKey); err != nil {
			return nil, fmt.Errorf("ledger: scan: %w", err)
		}
		r.Bundle = []byte(bundle)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ledger: rows: %w", err)
	}
	return out, nil
}

// ReadRange returns rows with fromID <= id <= toID in id order.
func (s *SQLStore) ReadRange(ctx context.Context, fromID, toID int64) ([]contracts.LedgerRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+rowColumns+` FROM decision_ledger WHERE id >= $1 AND id <= $2 ORDER BY id`,
		fromID, toID)
	if err != nil {
		return nil, fmt.Errorf("ledger: read range: %w", err)
	}
	return scanRows(rows)
}

// ScanFrom returns up to limit rows with id >= fromID in id order.
func (s *SQLStore) ScanFrom(ctx context.Context, fromID int64, limit int) ([]contracts.LedgerRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+rowColumns+` FROM decision_ledger WHERE id >= $1 ORDER BY id LIMIT $2`,
		fromID, limit)
	if err != nil {
		return nil, fmt.Errorf("ledger: scan: %w", err)
	}
	return scanRows(rows)
}

// MaxID returns the highest committed ledger id.
func (s *SQLStore) MaxID(ctx context.Context) (int64, error) {
	var id int64
	if err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(id), 0) FROM decision_ledger`).Scan(&id); err != nil {
		return 0, fmt.Errorf("ledger: max id: %w", err)
	}
	return id, nil
}

// LastAnchor returns the most recent anchor.
func (s *SQLStore) LastAnchor(ctx context.Context) (contracts.AnchorRow, error) {
	var a contracts.AnchorRow
	err := s.db.QueryRowContext(ctx,
		`SELECT id, from_id, to_id, merkle_root, signature, kid FROM anchors ORDER BY id DESC LIMIT 1`).
		Scan(&a.ID, &a.FromID, &a.ToID, &a.MerkleRoot, &a.Signature, &a.Kid)
	if errors.Is(err, sql.ErrNoRows) {
		return contracts.AnchorRow{}, ErrNotFound
	}
	if err != nil {
		return contracts.AnchorRow{}, fmt.Errorf("ledger: last anchor: %w", err)
	}
	return a, nil
}

// AppendAnchor inserts an immutable anchor row.
func (s *SQLStore) AppendAnchor(ctx context.Context, a contracts.AnchorRow) (contracts.AnchorRow, error) {
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO anchors (from_id, to_id, merkle_root, signature, kid)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		a.FromID, a.ToID, a.MerkleRoot, a.Signature, a.Kid).Scan(&a.ID)
	if err != nil {
		return contracts.AnchorRow{}, fmt.Errorf("ledger: append anchor: %w", err)
	}
	return a, nil
}

// Anchors returns all anchors in id order.
func (s *SQLStore) Anchors(ctx context.Context) ([]contracts.AnchorRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, from_id, to_id, merkle_root, signature, kid FROM anchors ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("ledger: anchors: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []contracts.AnchorRow
	for rows.Next() {
		var a contracts.AnchorRow
		if err := rows.Scan(&a.ID, &a.FromID, &a.ToID, &a.MerkleRoot, &a.Signature, &a.Kid); err != nil {
			return nil, fmt.Errorf("ledger: anchors: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ledger: anchors: %w", err)
	}
	return out, nil
}

// Ping reports backing-store reachability.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
