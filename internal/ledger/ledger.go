// Package ledger is the durable record of every invoice's submission status
// and the system's exactly-once boundary: an invoice recorded as submitted is
// never submitted again, across any number of runs.
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Status of one invoice identity in the ledger.
type Status string

const (
	// StatusPending: seen but not yet submitted.
	StatusPending Status = "pending"
	// StatusSubmitted: the authority issued an IRN. Terminal; never reverted.
	StatusSubmitted Status = "submitted"
	// StatusFailed: the last attempt failed; retried on a later run.
	StatusFailed Status = "failed"
)

// ErrCorrupt means persisted ledger state could not be parsed. The pipeline
// must refuse to run rather than risk a duplicate submission.
var ErrCorrupt = errors.New("ledger state is corrupt")

// ErrLocked means another pipeline run holds the ledger.
var ErrLocked = errors.New("ledger is locked by another run")

// Entry is one row per source invoice identity. Never deleted; the ledger is
// the audit trail.
type Entry struct {
	InvoiceNumber string          `json:"invoice_number"`
	Status        Status          `json:"status"`
	IRN           string          `json:"irn,omitempty"`
	QRPayload     string          `json:"qr_payload,omitempty"`
	CustomerName  string          `json:"customer_name,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	UpdatedAt     time.Time       `json:"updated_at"`
	LastError     string          `json:"last_error,omitempty"`
	// Ambiguous marks a failure where the authority may have accepted the
	// document (timeout after send). The next run verifies before submitting.
	Ambiguous bool `json:"ambiguous,omitempty"`
}

// Store persists ledger entries. Implementations guarantee that a submitted
// entry is never downgraded: Record with any other status against a
// submitted entry is a silent no-op.
type Store interface {
	// Lookup returns the entry for an invoice number, or nil if unseen.
	Lookup(ctx context.Context, invoiceNumber string) (*Entry, error)
	// List returns entries, newest first. An empty status means all.
	List(ctx context.Context, status Status) ([]Entry, error)
	// Record upserts an entry.
	Record(ctx context.Context, entry Entry) error
	Close() error
}

// RunLocker serializes whole pipeline runs against the same ledger. Stores
// implement it with whatever exclusive-write primitive their backend offers.
type RunLocker interface {
	// LockRun acquires the single-writer lock, returning a release func.
	// Returns ErrLocked if another run holds it.
	LockRun(ctx context.Context) (func(), error)
}
