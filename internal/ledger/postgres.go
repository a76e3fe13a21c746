package ledger

import (
	"context"
	"errors"
	"fmt"

	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS submission_ledger (
	invoice_number TEXT PRIMARY KEY,
	status         TEXT NOT NULL,
	irn            TEXT NOT NULL DEFAULT '',
	qr_payload     TEXT NOT NULL DEFAULT '',
	customer_name  TEXT NOT NULL DEFAULT '',
	amount         NUMERIC(18,2) NOT NULL DEFAULT 0,
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	last_error     TEXT NOT NULL DEFAULT '',
	ambiguous      BOOLEAN NOT NULL DEFAULT FALSE
)`

// advisoryLockKey identifies the pipeline's single-writer lock in
// pg_advisory_lock. Arbitrary but stable ("SAGE").
const advisoryLockKey = 0x53414745

// PostgresStore keeps the ledger in PostgreSQL, for setups where scheduled
// and manual runs can overlap. The upsert refuses to downgrade a submitted
// row, and LockRun uses an advisory lock for the single-writer discipline.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// OpenPostgresStore connects, registers the decimal codec and bootstraps the
// schema.
func OpenPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse ledger database URL: %w", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect ledger database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping ledger database: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("bootstrap ledger schema: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Lookup returns the entry for an invoice number, or nil if unseen.
func (s *PostgresStore) Lookup(ctx context.Context, invoiceNumber string) (*Entry, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT invoice_number, status, irn, qr_payload, customer_name,
		       amount, updated_at, last_error, ambiguous
		FROM submission_ledger WHERE invoice_number = $1`, invoiceNumber)

	var entry Entry
	err := row.Scan(&entry.InvoiceNumber, &entry.Status, &entry.IRN,
		&entry.QRPayload, &entry.CustomerName, &entry.Amount,
		&entry.UpdatedAt, &entry.LastError, &entry.Ambiguous)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return &entry, nil
}

// List returns entries filtered by status, newest first.
func (s *PostgresStore) List(ctx context.Context, status Status) ([]Entry, error) {
	query := `
		SELECT invoice_number, status, irn, qr_payload, customer_name,
		       amount, updated_at, last_error, ambiguous
		FROM submission_ledger`
	args := []interface{}{}
	if status != "" {
		query += " WHERE status = $1"
		args = append(args, string(status))
	}
	query += " ORDER BY updated_at DESC, invoice_number"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var entry Entry
		if err := rows.Scan(&entry.InvoiceNumber, &entry.Status, &entry.IRN,
			&entry.QRPayload, &entry.CustomerName, &entry.Amount,
			&entry.UpdatedAt, &entry.LastError, &entry.Ambiguous); err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

// Record upserts the entry. The WHERE guard on the conflict update makes
// "submitted is terminal" hold even if two processes race past LockRun.
func (s *PostgresStore) Record(ctx context.Context, entry Entry) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO submission_ledger
			(invoice_number, status, irn, qr_payload, customer_name,
			 amount, updated_at, last_error, ambiguous)
		VALUES ($1, $2, $3, $4, $5, $6, now(), $7, $8)
		ON CONFLICT (invoice_number) DO UPDATE SET
			status = EXCLUDED.status,
			irn = EXCLUDED.irn,
			qr_payload = EXCLUDED.qr_payload,
			customer_name = EXCLUDED.customer_name,
			amount = EXCLUDED.amount,
			updated_at = now(),
			last_error = EXCLUDED.last_error,
			ambiguous = EXCLUDED.ambiguous
		WHERE submission_ledger.status <> 'submitted'
		   OR EXCLUDED.status = 'submitted'`,
		entry.InvoiceNumber, string(entry.Status), entry.IRN, entry.QRPayload,
		entry.CustomerName, entry.Amount, entry.LastError, entry.Ambiguous)
	return err
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// LockRun holds pg_advisory_lock on a dedicated connection for the run.
func (s *PostgresStore) LockRun(ctx context.Context) (func(), error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	var acquired bool
	if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, advisoryLockKey).Scan(&acquired); err != nil {
		conn.Release()
		return nil, err
	}
	if !acquired {
		conn.Release()
		return nil, ErrLocked
	}

	return func() {
		_, _ = conn.Exec(context.Background(), `SELECT pg_advisory_unlock($1)`, advisoryLockKey)
		conn.Release()
	}, nil
}
