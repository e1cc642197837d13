package ledger

import (
	"context"
	"database/sql"

	_ "modernc.org/sqlite" // cgo-free SQLite driver
)

var sqliteMigrations = []string{
	`CREATE TABLE IF NOT EXISTS decision_ledger (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ts_inserted DATETIME NOT NULL,
		proof_id TEXT NOT NULL,
		kernel_id TEXT NOT NULL,
		param_hash TEXT NOT NULL,
		kid TEXT NOT NULL,
		bundle TEXT NOT NULL,
		certificate_jws TEXT NOT NULL,
		idempotency_key TEXT UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS anchors (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		from_id INTEGER NOT NULL,
		to_id INTEGER NOT NULL,
		merkle_root TEXT NOT NULL,
		signature TEXT NOT NULL,
		kid TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS idempotency (
		id_key TEXT PRIMARY KEY,
		response TEXT NOT NULL,
		created_at DATETIME NOT NULL
	)`,
}

// NewSQLiteStore migrates and wraps a SQLite database. Used for single-binary
// deployments and tests; the engine's transactional semantics are identical
// to the Postgres backend.
func NewSQLiteStore(ctx context.Context, db *sql.DB) (*SQLStore, error) {
	return newSQLStore(ctx, db, sqliteMigrations)
}
