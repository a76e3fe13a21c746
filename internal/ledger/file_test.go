package ledger_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	dec "github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OsamaASidd/Sage-Nigeria-E-Invoicing/internal/ledger"
)

func tempLedger(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "submission_log.csv")
}

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := tempLedger(t)

	store, err := ledger.OpenFileStore(path)
	require.NoError(t, err)

	entry := ledger.Entry{
		InvoiceNumber: "INV-001",
		Status:        ledger.StatusSubmitted,
		IRN:           "NG-IRN-001",
		QRPayload:     "QR-PAYLOAD",
		CustomerName:  "Acme Ltd",
		Amount:        dec.RequireFromString("1558.75"),
	}
	require.NoError(t, store.Record(ctx, entry))

	got, err := store.Lookup(ctx, "INV-001")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, ledger.StatusSubmitted, got.Status)
	assert.Equal(t, "NG-IRN-001", got.IRN)
	assert.True(t, got.Amount.Equal(entry.Amount))

	missing, err := store.Lookup(ctx, "INV-UNSEEN")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestFileStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := tempLedger(t)

	store, err := ledger.OpenFileStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Record(ctx, ledger.Entry{
		InvoiceNumber: "INV-001",
		Status:        ledger.StatusSubmitted,
		IRN:           "NG-IRN-001",
		Amount:        dec.NewFromInt(100),
	}))
	require.NoError(t, store.Record(ctx, ledger.Entry{
		InvoiceNumber: "INV-002",
		Status:        ledger.StatusFailed,
		LastError:     "tin is invalid",
		Amount:        dec.NewFromInt(50),
	}))
	require.NoError(t, store.Close())

	reopened, err := ledger.OpenFileStore(path)
	require.NoError(t, err)

	got, err := reopened.Lookup(ctx, "INV-001")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, ledger.StatusSubmitted, got.Status)
	assert.Equal(t, "NG-IRN-001", got.IRN)

	got, err = reopened.Lookup(ctx, "INV-002")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, ledger.StatusFailed, got.Status)
	assert.Equal(t, "tin is invalid", got.LastError)
}

func TestFileStoreSubmittedIsTerminal(t *testing.T) {
	ctx := context.Background()
	store, err := ledger.OpenFileStore(tempLedger(t))
	require.NoError(t, err)

	require.NoError(t, store.Record(ctx, ledger.Entry{
		InvoiceNumber: "INV-001",
		Status:        ledger.StatusSubmitted,
		IRN:           "NG-IRN-001",
	}))
	// A later failure report must not downgrade the entry
	require.NoError(t, store.Record(ctx, ledger.Entry{
		InvoiceNumber: "INV-001",
		Status:        ledger.StatusFailed,
		LastError:     "should be ignored",
	}))

	got, err := store.Lookup(ctx, "INV-001")
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusSubmitted, got.Status)
	assert.Equal(t, "NG-IRN-001", got.IRN)
	assert.Empty(t, got.LastError)
}

func TestFileStoreKeepsAuditTrail(t *testing.T) {
	ctx := context.Background()
	path := tempLedger(t)
	store, err := ledger.OpenFileStore(path)
	require.NoError(t, err)

	require.NoError(t, store.Record(ctx, ledger.Entry{InvoiceNumber: "INV-001", Status: ledger.StatusPending}))
	require.NoError(t, store.Record(ctx, ledger.Entry{InvoiceNumber: "INV-001", Status: ledger.StatusFailed, LastError: "boom"}))
	require.NoError(t, store.Record(ctx, ledger.Entry{InvoiceNumber: "INV-001", Status: ledger.StatusSubmitted, IRN: "NG-IRN-001"}))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	// Header plus one row per Record call
	assert.Contains(t, string(content), "pending")
	assert.Contains(t, string(content), "failed")
	assert.Contains(t, string(content), "submitted")
}

func TestFileStoreList(t *testing.T) {
	ctx := context.Background()
	store, err := ledger.OpenFileStore(tempLedger(t))
	require.NoError(t, err)

	require.NoError(t, store.Record(ctx, ledger.Entry{InvoiceNumber: "INV-001", Status: ledger.StatusSubmitted, IRN: "A"}))
	require.NoError(t, store.Record(ctx, ledger.Entry{InvoiceNumber: "INV-002", Status: ledger.StatusFailed}))
	require.NoError(t, store.Record(ctx, ledger.Entry{InvoiceNumber: "INV-003", Status: ledger.StatusFailed}))

	all, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	failed, err := store.List(ctx, ledger.StatusFailed)
	require.NoError(t, err)
	assert.Len(t, failed, 2)
}

func TestFileStoreCorruptLedgerRefusesToOpen(t *testing.T) {
	path := tempLedger(t)
	require.NoError(t, os.WriteFile(path, []byte(
		"timestamp,invoice_number,status,irn,qr_payload,customer,amount,error,ambiguous\n"+
			"2026-01-15T10:00:00Z,INV-001,exploded,,,,100,,false\n"), 0o644))

	_, err := ledger.OpenFileStore(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ledger.ErrCorrupt)
}

func TestFileStoreRunLock(t *testing.T) {
	ctx := context.Background()
	store, err := ledger.OpenFileStore(tempLedger(t))
	require.NoError(t, err)

	release, err := store.LockRun(ctx)
	require.NoError(t, err)

	_, err = store.LockRun(ctx)
	assert.ErrorIs(t, err, ledger.ErrLocked)

	release()
	release2, err := store.LockRun(ctx)
	require.NoError(t, err)
	release2()
}

func TestMemoryStoreSubmittedIsTerminal(t *testing.T) {
	ctx := context.Background()
	store := ledger.NewMemoryStore()

	require.NoError(t, store.Record(ctx, ledger.Entry{InvoiceNumber: "INV-001", Status: ledger.StatusSubmitted, IRN: "NG-IRN-001"}))
	require.NoError(t, store.Record(ctx, ledger.Entry{InvoiceNumber: "INV-001", Status: ledger.StatusPending}))

	got, err := store.Lookup(ctx, "INV-001")
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusSubmitted, got.Status)
}
