package pipeline_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	dec "github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OsamaASidd/Sage-Nigeria-E-Invoicing/internal/firs"
	"github.com/OsamaASidd/Sage-Nigeria-E-Invoicing/internal/ledger"
	"github.com/OsamaASidd/Sage-Nigeria-E-Invoicing/internal/mapping"
	"github.com/OsamaASidd/Sage-Nigeria-E-Invoicing/internal/model"
	"github.com/OsamaASidd/Sage-Nigeria-E-Invoicing/internal/pipeline"
	"github.com/OsamaASidd/Sage-Nigeria-E-Invoicing/internal/source"
	"github.com/OsamaASidd/Sage-Nigeria-E-Invoicing/internal/transform"
)

type stubReader struct {
	extract *source.Extract
	err     error
}

func (s stubReader) Read(ctx context.Context, since time.Time) (*source.Extract, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.extract, nil
}

type fakeSubmitter struct {
	submitted []string
	submitFn  func(doc *firs.Invoice) (*firs.SubmitResult, error)
	findFn    func(reference string) (*firs.SubmitResult, bool, error)
}

func (f *fakeSubmitter) Submit(ctx context.Context, doc *firs.Invoice) (*firs.SubmitResult, error) {
	f.submitted = append(f.submitted, doc.DocumentIdentifier)
	if f.submitFn != nil {
		return f.submitFn(doc)
	}
	return &firs.SubmitResult{IRN: "IRN-" + doc.DocumentIdentifier, QRPayload: "QR-" + doc.DocumentIdentifier}, nil
}

func (f *fakeSubmitter) FindByReference(ctx context.Context, reference string) (*firs.SubmitResult, bool, error) {
	if f.findFn != nil {
		return f.findFn(reference)
	}
	return nil, false, nil
}

func loadTables(t *testing.T) *mapping.Tables {
	t.Helper()
	dir := t.TempDir()
	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		return path
	}
	tables, err := mapping.Load(mapping.Paths{
		CustomerTIN: write("customer_tin.csv",
			"customer_id,name,tin\nCUST-01,Acme Ltd,12345678-0001\nCUST-02,Beta Co,87654321-0001\n"),
		HSCode:   write("hs_code.csv", "item_code,hs_code\nITEM-A,8471.30\n"),
		Category: write("category.csv", "item_code,category\nITEM-A,Electronics\n"),
	})
	require.NoError(t, err)
	return tables
}

func rawInvoice(number, customerID string) model.RawInvoice {
	return model.RawInvoice{
		InvoiceNumber: number,
		IssueDate:     time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC),
		CustomerID:    customerID,
		CustomerName:  "Acme Ltd",
		Lines: []model.RawLine{{
			ItemCode:    "ITEM-A",
			Description: "Widget",
			Quantity:    dec.NewFromInt(10),
			UnitPrice:   dec.NewFromInt(150),
			TaxRate:     dec.RequireFromString("7.5"),
		}},
	}
}

func newPipeline(t *testing.T, invoices []model.RawInvoice, store ledger.Store, client pipeline.Submitter, opts ...pipeline.Option) *pipeline.Pipeline {
	t.Helper()
	return pipeline.New(
		stubReader{extract: &source.Extract{Invoices: invoices}},
		mapping.NewResolver(loadTables(t)),
		transform.New(transform.Options{}),
		store, client, opts...)
}

func TestRunSubmitsNewInvoices(t *testing.T) {
	ctx := context.Background()
	store := ledger.NewMemoryStore()
	client := &fakeSubmitter{}
	invoices := []model.RawInvoice{rawInvoice("INV-001", "CUST-01"), rawInvoice("INV-002", "CUST-02")}

	report, err := newPipeline(t, invoices, store, client).Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Submitted)
	assert.Zero(t, report.Failed)
	assert.Equal(t, []string{"INV-001", "INV-002"}, client.submitted)

	entry, err := store.Lookup(ctx, "INV-001")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, ledger.StatusSubmitted, entry.Status)
	assert.Equal(t, "IRN-INV-001", entry.IRN)
	assert.True(t, entry.Amount.Equal(dec.RequireFromString("1612.50")), "amount %s", entry.Amount)
}

func TestRunIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := ledger.NewMemoryStore()
	client := &fakeSubmitter{}
	invoices := []model.RawInvoice{rawInvoice("INV-001", "CUST-01")}

	_, err := newPipeline(t, invoices, store, client).Run(ctx)
	require.NoError(t, err)

	report, err := newPipeline(t, invoices, store, client).Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Skipped)
	assert.Zero(t, report.Submitted)
	assert.Len(t, client.submitted, 1, "an invoice is never submitted twice")
	assert.Equal(t, "IRN-INV-001", report.Results[0].IRN)
}

func TestRunIsolatesPerInvoiceFailures(t *testing.T) {
	ctx := context.Background()
	store := ledger.NewMemoryStore()
	client := &fakeSubmitter{}
	invoices := []model.RawInvoice{
		rawInvoice("INV-001", "CUST-UNKNOWN"), // no TIN mapping
		rawInvoice("INV-002", "CUST-01"),
	}

	report, err := newPipeline(t, invoices, store, client).Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.Submitted)
	assert.True(t, report.HasFailures())

	require.Len(t, report.Results, 2)
	assert.Equal(t, pipeline.OutcomeFailed, report.Results[0].Outcome)
	assert.Equal(t, pipeline.FailMissingMapping, report.Results[0].FailureKind)
	assert.Contains(t, report.Results[0].Reason, "CUST-UNKNOWN")
	assert.Equal(t, pipeline.OutcomeSubmitted, report.Results[1].Outcome)

	entry, err := store.Lookup(ctx, "INV-001")
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusFailed, entry.Status)
}

func TestRunRetriesFailedInvoiceOnNextRun(t *testing.T) {
	ctx := context.Background()
	store := ledger.NewMemoryStore()
	invoices := []model.RawInvoice{rawInvoice("INV-001", "CUST-01")}

	rejecting := &fakeSubmitter{submitFn: func(doc *firs.Invoice) (*firs.SubmitResult, error) {
		return nil, &firs.SubmitError{Kind: firs.KindRejected, StatusCode: 400, Message: "tin is invalid"}
	}}
	report, err := newPipeline(t, invoices, store, rejecting).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, pipeline.FailRejected, report.Results[0].FailureKind)

	// Failed is not terminal: the next run tries again
	accepting := &fakeSubmitter{}
	report, err = newPipeline(t, invoices, store, accepting).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Submitted)
	assert.Len(t, accepting.submitted, 1)
}

func TestRunDryRunSubmitsNothing(t *testing.T) {
	ctx := context.Background()
	store := ledger.NewMemoryStore()
	client := &fakeSubmitter{}
	invoices := []model.RawInvoice{rawInvoice("INV-001", "CUST-01")}

	report, err := newPipeline(t, invoices, store, client, pipeline.WithDryRun(true)).Run(ctx)
	require.NoError(t, err)

	assert.Empty(t, client.submitted)
	assert.Equal(t, pipeline.OutcomeDryRun, report.Results[0].Outcome)

	// The invoice is recorded as seen but not submitted
	entry, err := store.Lookup(ctx, "INV-001")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, ledger.StatusPending, entry.Status)
}

func TestRunVerifiesAmbiguousOutcomeBeforeResubmitting(t *testing.T) {
	ctx := context.Background()
	store := ledger.NewMemoryStore()
	invoices := []model.RawInvoice{rawInvoice("INV-001", "CUST-01")}

	// A previous run timed out after the request may have reached the authority
	require.NoError(t, store.Record(ctx, ledger.Entry{
		InvoiceNumber: "INV-001",
		Status:        ledger.StatusFailed,
		LastError:     "request timed out",
		Ambiguous:     true,
	}))

	client := &fakeSubmitter{findFn: func(reference string) (*firs.SubmitResult, bool, error) {
		assert.Equal(t, "INV-001", reference)
		return &firs.SubmitResult{IRN: "IRN-RECOVERED", QRPayload: "QR"}, true, nil
	}}

	report, err := newPipeline(t, invoices, store, client).Run(ctx)
	require.NoError(t, err)

	assert.Empty(t, client.submitted, "verified invoices must not be resubmitted")
	assert.Equal(t, pipeline.OutcomeSubmitted, report.Results[0].Outcome)
	assert.Equal(t, "IRN-RECOVERED", report.Results[0].IRN)

	entry, err := store.Lookup(ctx, "INV-001")
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusSubmitted, entry.Status)
	assert.Equal(t, "IRN-RECOVERED", entry.IRN)
}

func TestRunSubmitsWhenAmbiguousOutcomeNotOnAuthority(t *testing.T) {
	ctx := context.Background()
	store := ledger.NewMemoryStore()
	invoices := []model.RawInvoice{rawInvoice("INV-001", "CUST-01")}

	require.NoError(t, store.Record(ctx, ledger.Entry{
		InvoiceNumber: "INV-001",
		Status:        ledger.StatusFailed,
		Ambiguous:     true,
	}))

	client := &fakeSubmitter{} // findFn defaults to not found
	report, err := newPipeline(t, invoices, store, client).Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, []string{"INV-001"}, client.submitted)
	assert.Equal(t, pipeline.OutcomeSubmitted, report.Results[0].Outcome)
}

func TestRunRecordsAmbiguousFlagOnTimeout(t *testing.T) {
	ctx := context.Background()
	store := ledger.NewMemoryStore()
	invoices := []model.RawInvoice{rawInvoice("INV-001", "CUST-01")}

	client := &fakeSubmitter{submitFn: func(doc *firs.Invoice) (*firs.SubmitResult, error) {
		return nil, &firs.SubmitError{Kind: firs.KindTransient, Message: "timeout", Ambiguous: true}
	}}
	report, err := newPipeline(t, invoices, store, client).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, pipeline.FailTransient, report.Results[0].FailureKind)

	entry, err := store.Lookup(ctx, "INV-001")
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusFailed, entry.Status)
	assert.True(t, entry.Ambiguous)
}

func TestRunFailsWhenSourceUnavailable(t *testing.T) {
	p := pipeline.New(
		stubReader{err: errors.New("cannot open export")},
		mapping.NewResolver(loadTables(t)),
		transform.New(transform.Options{}),
		ledger.NewMemoryStore(), &fakeSubmitter{})

	_, err := p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot open export")
}

func TestRunRefusesWhenLedgerLocked(t *testing.T) {
	ctx := context.Background()
	store := ledger.NewMemoryStore()
	release, err := store.LockRun(ctx)
	require.NoError(t, err)
	defer release()

	_, err = newPipeline(t, []model.RawInvoice{rawInvoice("INV-001", "CUST-01")}, store, &fakeSubmitter{}).Run(ctx)
	assert.ErrorIs(t, err, ledger.ErrLocked)
}

func TestRunStopsBetweenInvoicesOnCancel(t *testing.T) {
	store := ledger.NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())

	client := &fakeSubmitter{submitFn: func(doc *firs.Invoice) (*firs.SubmitResult, error) {
		cancel() // cancel mid-run, after the first submission
		return &firs.SubmitResult{IRN: "IRN-" + doc.DocumentIdentifier}, nil
	}}
	invoices := []model.RawInvoice{rawInvoice("INV-001", "CUST-01"), rawInvoice("INV-002", "CUST-02")}

	report, err := newPipeline(t, invoices, store, client).Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	// The first invoice completed and was recorded; the second never started
	require.NotNil(t, report)
	assert.Len(t, report.Results, 1)
	entry, lookupErr := store.Lookup(context.Background(), "INV-001")
	require.NoError(t, lookupErr)
	assert.Equal(t, ledger.StatusSubmitted, entry.Status)
}

func TestRunValidationFailure(t *testing.T) {
	ctx := context.Background()
	store := ledger.NewMemoryStore()
	client := &fakeSubmitter{}

	bad := rawInvoice("INV-001", "CUST-01")
	bad.Lines[0].Quantity = dec.Zero

	report, err := newPipeline(t, []model.RawInvoice{bad}, store, client).Run(ctx)
	require.NoError(t, err)

	assert.Empty(t, client.submitted)
	assert.Equal(t, pipeline.FailValidation, report.Results[0].FailureKind)
	assert.Contains(t, report.Results[0].Reason, "quantity")
}
