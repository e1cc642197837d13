package params

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
)

// PostgresStore persists parameters in two tables. Snapshots read both tables
// inside a repeatable-read transaction so the hash always matches the content.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore migrates the schema and seeds defaults when the threshold
// table is empty.
func NewPostgresStore(ctx context.Context, db *sql.DB) (*PostgresStore, error) {
	s := &PostgresStore{db: db}
	if err := s.migrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS params_thresholds (
			k text PRIMARY KEY,
			v double precision NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS params_allowlist (
			country text PRIMARY KEY
		)`,
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("params: migrate: %w", err)
		}
	}

	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM params_thresholds`).Scan(&n); err != nil {
		return fmt.Errorf("params: seed check: %w", err)
	}
	if n > 0 {
		return nil
	}
	thresholds, allowlist := Defaults()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("params: seed: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	for k, v := range thresholds {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO params_thresholds(k, v) VALUES ($1, $2) ON CONFLICT (k) DO NOTHING`, k, v); err != nil {
			return fmt.Errorf("params: seed threshold %s: %w", k, err)
		}
	}
	for _, c := range allowlist {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO params_allowlist(country) VALUES ($1) ON CONFLICT DO NOTHING`, c); err != nil {
			return fmt.Errorf("params: seed allowlist %s: %w", c, err)
		}
	}
	return tx.Commit()
}

// Snapshot reads both tables under one transaction and computes the hash.
func (s *PostgresStore) Snapshot(ctx context.Context) (Snapshot, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return Snapshot{}, fmt.Errorf("params: snapshot: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	thresholds := make(map[string]float64)
	rows, err := tx.QueryContext(ctx, `SELECT k, v FROM params_thresholds`)
	if err != nil {
		return Snapshot{}, fmt.Errorf("params: thresholds: %w", err)
	}
	for rows.Next() {
		var k string
		var v float64
		if err := rows.Scan(&k, &v); err != nil {
			_ = rows.Close()
			return Snapshot{}, fmt.Errorf("params: thresholds: %w", err)
		}
		thresholds[k] = v
	}
	if err := rows.Err(); err != nil {
		return Snapshot{}, fmt.Errorf("params: thresholds: %w", err)
	}
	_ = rows.Close()

	var allowlist []string
	rows, err = tx.QueryContext(ctx, `SELECT country FROM params_allowlist ORDER BY country`)
	if err != nil {
		return Snapshot{}, fmt.Errorf("params: allowlist: %w", err)
	}
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			_ = rows.Close()
			return Snapshot{}, fmt.Errorf("params: allowlist: %w", err)
		}
		allowlist = append(allowlist, c)
	}
	if err := rows.Err(); err != nil {
		return Snapshot{}, fmt.Errorf("params: allowlist: %w", err)
	}
	_ = rows.Close()

	if err := tx.Commit(); err != nil {
		return Snapshot{}, fmt.Errorf("params: snapshot: %w", err)
	}

	sort.Strings(allowlist)
	hash, err := Hash(thresholds, allowlist)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Thresholds: thresholds, Allowlist: allowlist, ParamHash: hash}, nil
}

// SetThreshold upserts a threshold and returns the new hash.
func (s *PostgresStore) SetThreshold(ctx context.Context, name string, value float64) (string, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO params_thresholds(k, v) VALUES ($1, $2)
		 ON CONFLICT (k) DO UPDATE SET v = EXCLUDED.v`, name, value)
	if err != nil {
		return "", fmt.Errorf("params: set threshold: %w", err)
	}
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return "", err
	}
	return snap.ParamHash, nil
}

// SetAllowlist adds or removes a country and returns the new hash.
func (s *PostgresStore) SetAllowlist(ctx context.Context, country, action string) (string, error) {
	switch action {
	case "add":
		if _, err := s.db.ExecContext(ctx,
			`INSERT INTO params_allowlist(country) VALUES ($1) ON CONFLICT DO NOTHING`, country); err != nil {
			return "", fmt.Errorf("params: allowlist add: %w", err)
		}
	case "remove":
		if _, err := s.db.ExecContext(ctx,
			`DELETE FROM params_allowlist WHERE country = $1`, country); err != nil {
			return "", fmt.Errorf("params: allowlist remove: %w", err)
		}
	default:
		return "", ErrUnknownAction
	}
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return "", err
	}
	return snap.ParamHash, nil
}
