package ledger

import (
	"context"
	"database/sql"

	_ "github.com/lib/pq" // Postgres driver
)

var postgresMigrations = []string{
	`CREATE TABLE IF NOT EXISTS decision_ledger (
		id bigserial PRIMARY KEY,
		ts_inserted timestamptz NOT NULL,
		proof_id text NOT NULL,
		kernel_id text NOT NULL,
		param_hash text NOT NULL,
		kid text NOT NULL,
		bundle jsonb NOT NULL,
		certificate_jws text NOT NULL,
		idempotency_key text UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS anchors (
		id bigserial PRIMARY KEY,
		from_id bigint NOT NULL,
		to_id bigint NOT NULL,
		merkle_root text NOT NULL,
		signature text NOT NULL,
		kid text NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS idempotency (
		id_key text PRIMARY KEY,
		response jsonb NOT NULL,
		created_at timestamptz NOT NULL DEFAULT now()
	)`,
}

// NewPostgresStore migrates and wraps a Postgres database.
func NewPostgresStore(ctx context.Context, db *sql.DB) (*SQLStore, error) {
	return newSQLStore(ctx, db, postgresMigrations)
}
