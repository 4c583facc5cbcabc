// Package postgres implements the outbound repository ports on PostgreSQL
// through database/sql with the pgx stdlib driver.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

// EnsureSchema bootstraps every pipeline table. Safe to run from api and
// worker concurrently.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082801)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	client_id TEXT NOT NULL,
	filename TEXT NOT NULL,
	mime_type TEXT NOT NULL,
	storage_path TEXT NOT NULL,
	document_type TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	failure_reason TEXT NOT NULL DEFAULT '',
	expiry_date DATE,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_client ON documents(client_id);
CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(status);
CREATE INDEX IF NOT EXISTS idx_documents_expiry ON documents(expiry_date) WHERE expiry_date IS NOT NULL;

CREATE TABLE IF NOT EXISTS analysis_jobs (
	job_id TEXT PRIMARY KEY,
	document_id TEXT NOT NULL REFERENCES documents(id),
	status TEXT NOT NULL,
	started_at TIMESTAMPTZ NOT NULL,
	completed_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_analysis_jobs_document ON analysis_jobs(document_id);

CREATE TABLE IF NOT EXISTS extracted_fields (
	document_id TEXT PRIMARY KEY REFERENCES documents(id),
	full_text TEXT NOT NULL,
	forms JSONB NOT NULL DEFAULT '{}'::jsonb,
	query_answers JSONB NOT NULL DEFAULT '{}'::jsonb,
	block_count INTEGER NOT NULL DEFAULT 0,
	page_count INTEGER NOT NULL DEFAULT 0,
	confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
	extracted_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS classifications (
	document_id TEXT PRIMARY KEY REFERENCES documents(id),
	document_type TEXT NOT NULL,
	category TEXT NOT NULL,
	score DOUBLE PRECISION NOT NULL DEFAULT 0,
	rule_trace JSONB NOT NULL DEFAULT '[]'::jsonb,
	routed_queue TEXT NOT NULL DEFAULT '',
	classified_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS identity_records (
	document_id TEXT PRIMARY KEY REFERENCES documents(id),
	document_number TEXT NOT NULL,
	given_names TEXT NOT NULL DEFAULT '',
	surnames TEXT NOT NULL DEFAULT '',
	nationality TEXT NOT NULL DEFAULT '',
	birth_date DATE,
	issue_date DATE,
	expiry_date DATE,
	extracted_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS contract_records (
	document_id TEXT PRIMARY KEY REFERENCES documents(id),
	contract_number TEXT NOT NULL DEFAULT '',
	contract_type TEXT NOT NULL DEFAULT '',
	party_name TEXT NOT NULL DEFAULT '',
	amount DOUBLE PRECISION NOT NULL DEFAULT 0,
	currency TEXT NOT NULL DEFAULT '',
	interest_rate DOUBLE PRECISION NOT NULL DEFAULT 0,
	start_date DATE,
	end_date DATE,
	account_number TEXT NOT NULL DEFAULT '',
	extracted_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS financial_records (
	document_id TEXT PRIMARY KEY REFERENCES documents(id),
	account_number TEXT NOT NULL DEFAULT '',
	bank_name TEXT NOT NULL DEFAULT '',
	balance DOUBLE PRECISION NOT NULL DEFAULT 0,
	currency TEXT NOT NULL DEFAULT '',
	statement_date DATE,
	period_start DATE,
	period_end DATE,
	extracted_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS expiry_alerts (
	document_id TEXT NOT NULL REFERENCES documents(id),
	window_day TEXT NOT NULL,
	expiry_date DATE NOT NULL,
	sent_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (document_id, window_day)
);

CREATE TABLE IF NOT EXISTS clients (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	segment TEXT NOT NULL DEFAULT '',
	contact_email TEXT NOT NULL DEFAULT '',
	active BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS client_views (
	client_id TEXT PRIMARY KEY,
	completeness_score DOUBLE PRECISION NOT NULL DEFAULT 0,
	has_identity BOOLEAN NOT NULL DEFAULT FALSE,
	has_contract BOOLEAN NOT NULL DEFAULT FALSE,
	has_financial BOOLEAN NOT NULL DEFAULT FALSE,
	total_documents INTEGER NOT NULL DEFAULT 0,
	processed_count INTEGER NOT NULL DEFAULT 0,
	failed_count INTEGER NOT NULL DEFAULT 0,
	recomputed_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS review_items (
	document_id TEXT PRIMARY KEY REFERENCES documents(id),
	reason_code TEXT NOT NULL,
	status TEXT NOT NULL,
	decision TEXT NOT NULL DEFAULT '',
	note TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	resolved_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_review_items_status ON review_items(status);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}
