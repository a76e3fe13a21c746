// Package pipeline drives the end-to-end flow: read from Sage, resolve
// mappings, transform and validate, consult the ledger, submit to the
// authority, record the outcome. One invoice's failure never blocks the
// rest of the batch.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/OsamaASidd/Sage-Nigeria-E-Invoicing/internal/firs"
	"github.com/OsamaASidd/Sage-Nigeria-E-Invoicing/internal/ledger"
	"github.com/OsamaASidd/Sage-Nigeria-E-Invoicing/internal/mapping"
	"github.com/OsamaASidd/Sage-Nigeria-E-Invoicing/internal/model"
	"github.com/OsamaASidd/Sage-Nigeria-E-Invoicing/internal/source"
	"github.com/OsamaASidd/Sage-Nigeria-E-Invoicing/internal/transform"
)

// Submitter is the slice of the authority client the pipeline needs. Tests
// substitute a fake; firs.Client satisfies it.
type Submitter interface {
	Submit(ctx context.Context, doc *firs.Invoice) (*firs.SubmitResult, error)
	FindByReference(ctx context.Context, reference string) (*firs.SubmitResult, bool, error)
}

// Outcome of one invoice in a run.
type Outcome string

const (
	// OutcomeSubmitted: the authority issued (or was verified to hold) an IRN.
	OutcomeSubmitted Outcome = "submitted"
	// OutcomeSkipped: the ledger already records this invoice as submitted.
	OutcomeSkipped Outcome = "skipped-already-submitted"
	// OutcomeFailed: resolution, validation or submission failed.
	OutcomeFailed Outcome = "failed"
	// OutcomeDryRun: validated end to end, network submit withheld.
	OutcomeDryRun Outcome = "dry-run-validated"
)

// FailureKind classifies a failed outcome.
type FailureKind string

const (
	FailMissingMapping FailureKind = "missing-mapping"
	FailValidation     FailureKind = "validation"
	FailRejected       FailureKind = "rejected"
	FailTransient      FailureKind = "transient"
)

// Result is the per-invoice outcome reported at the end of a run.
type Result struct {
	InvoiceNumber string      `json:"invoice_number"`
	Outcome       Outcome     `json:"outcome"`
	IRN           string      `json:"irn,omitempty"`
	FailureKind   FailureKind `json:"failure_kind,omitempty"`
	Reason        string      `json:"reason,omitempty"`
}

// Report enumerates every invoice with its final status.
type Report struct {
	RunID       string    `json:"run_id"`
	DryRun      bool      `json:"dry_run"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	SkippedRows int       `json:"skipped_rows"`
	Results     []Result  `json:"results"`
	Submitted   int       `json:"submitted"`
	Skipped     int       `json:"skipped"`
	Failed      int       `json:"failed"`
}

// HasFailures reports whether any invoice failed for a reason other than
// already-submitted. Drives the process exit code.
func (r *Report) HasFailures() bool {
	return r.Failed > 0
}

// Pipeline orchestrates one batch run.
type Pipeline struct {
	reader      source.Reader
	resolver    *mapping.Resolver
	transformer *transform.Transformer
	store       ledger.Store
	client      Submitter
	log         zerolog.Logger
	dryRun      bool
	since       time.Time
}

// Option configures the pipeline
type Option func(*Pipeline)

// WithDryRun performs every step except the network submit.
func WithDryRun(enabled bool) Option {
	return func(p *Pipeline) {
		p.dryRun = enabled
	}
}

// WithSince bounds the source read to invoices issued on or after t.
func WithSince(t time.Time) Option {
	return func(p *Pipeline) {
		p.since = t
	}
}

// WithLogger sets the pipeline logger
func WithLogger(log zerolog.Logger) Option {
	return func(p *Pipeline) {
		p.log = log
	}
}

// New creates a pipeline over its collaborators.
func New(reader source.Reader, resolver *mapping.Resolver, transformer *transform.Transformer,
	store ledger.Store, client Submitter, opts ...Option) *Pipeline {
	p := &Pipeline{
		reader:      reader,
		resolver:    resolver,
		transformer: transformer,
		store:       store,
		client:      client,
		log:         zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes one batch. Per-invoice errors land in the report; only
// whole-run errors (source or ledger unavailable, lock held, cancellation)
// come back as an error. Cancellation takes effect between invoices, never
// mid-submission, so the ledger stays consistent.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	if locker, ok := p.store.(ledger.RunLocker); ok {
		release, err := locker.LockRun(ctx)
		if err != nil {
			return nil, err
		}
		defer release()
	}

	extract, err := p.reader.Read(ctx, p.since)
	if err != nil {
		return nil, err
	}

	report := &Report{
		RunID:       uuid.NewString(),
		DryRun:      p.dryRun,
		StartedAt:   time.Now().UTC(),
		SkippedRows: extract.Skipped,
	}
	log := p.log.With().Str("run_id", report.RunID).Logger()
	log.Info().
		Int("invoices", len(extract.Invoices)).
		Int("skipped_rows", extract.Skipped).
		Bool("dry_run", p.dryRun).
		Msg("starting batch")

	for _, raw := range extract.Invoices {
		if err := ctx.Err(); err != nil {
			report.FinishedAt = time.Now().UTC()
			return report, err
		}

		result := p.processOne(ctx, raw)
		report.Results = append(report.Results, result)
		switch result.Outcome {
		case OutcomeSubmitted, OutcomeDryRun:
			report.Submitted++
		case OutcomeSkipped:
			report.Skipped++
		case OutcomeFailed:
			report.Failed++
		}
	}

	report.FinishedAt = time.Now().UTC()
	log.Info().
		Int("submitted", report.Submitted).
		Int("skipped", report.Skipped).
		Int("failed", report.Failed).
		Msg("batch finished")
	return report, nil
}

func (p *Pipeline) processOne(ctx context.Context, raw model.RawInvoice) Result {
	log := p.log.With().Str("invoice", raw.InvoiceNumber).Logger()

	entry, err := p.store.Lookup(ctx, raw.InvoiceNumber)
	if err != nil {
		// Unreadable ledger state: refusing to submit is the only safe move.
		return p.failed(ctx, raw, FailTransient, "ledger lookup failed: "+err.Error(), false)
	}
	if entry != nil && entry.Status == ledger.StatusSubmitted {
		log.Debug().Str("irn", entry.IRN).Msg("already submitted, skipping")
		return Result{InvoiceNumber: raw.InvoiceNumber, Outcome: OutcomeSkipped, IRN: entry.IRN}
	}
	if entry == nil {
		first := ledger.Entry{
			InvoiceNumber: raw.InvoiceNumber,
			Status:        ledger.StatusPending,
			CustomerName:  raw.CustomerName,
		}
		if err := p.store.Record(ctx, first); err != nil {
			return p.failed(ctx, raw, FailTransient, "ledger record failed: "+err.Error(), false)
		}
	}

	resolved, err := p.resolver.Resolve(raw)
	if err != nil {
		log.Warn().Err(err).Msg("resolution failed")
		return p.failed(ctx, raw, FailMissingMapping, err.Error(), false)
	}

	doc, err := p.transformer.Transform(resolved)
	if err != nil {
		log.Warn().Err(err).Msg("validation failed")
		return p.failed(ctx, raw, FailValidation, err.Error(), false)
	}

	// An earlier run may have timed out after the request reached the
	// authority. Verify before resubmitting; a blind retry could create a
	// duplicate legal document.
	if entry != nil && entry.Ambiguous && !p.dryRun {
		found, ok, err := p.client.FindByReference(ctx, raw.InvoiceNumber)
		if err != nil {
			log.Warn().Err(err).Msg("verification lookup failed, not resubmitting")
			return p.failed(ctx, raw, FailTransient, "could not verify ambiguous outcome: "+err.Error(), true)
		}
		if ok {
			log.Info().Str("irn", found.IRN).Msg("authority already holds invoice, recording")
			return p.recordSubmitted(ctx, raw, doc, found)
		}
	}

	if p.dryRun {
		log.Info().Msg("dry run: validated, submit withheld")
		return Result{InvoiceNumber: raw.InvoiceNumber, Outcome: OutcomeDryRun}
	}

	log.Info().Int("lines", len(doc.InvoiceLines)).Msg("submitting to authority")
	submitted, err := p.client.Submit(ctx, doc)
	if err != nil {
		kind := FailTransient
		if firs.IsRejected(err) {
			kind = FailRejected
		}
		log.Error().Err(err).Str("kind", string(kind)).Msg("submission failed")
		return p.failed(ctx, raw, kind, err.Error(), firs.IsAmbiguous(err))
	}

	log.Info().Str("irn", submitted.IRN).Msg("submitted")
	return p.recordSubmitted(ctx, raw, doc, submitted)
}

func (p *Pipeline) recordSubmitted(ctx context.Context, raw model.RawInvoice, doc *firs.Invoice, res *firs.SubmitResult) Result {
	entry := ledger.Entry{
		InvoiceNumber: raw.InvoiceNumber,
		Status:        ledger.StatusSubmitted,
		IRN:           res.IRN,
		QRPayload:     res.QRPayload,
		CustomerName:  raw.CustomerName,
		Amount:        doc.LegalMonetaryTotal.PayableAmount,
	}
	if err := p.store.Record(ctx, entry); err != nil {
		// The submission went through; surface the bookkeeping failure loudly
		// so the operator reconciles before the next run.
		p.log.Error().Err(err).Str("invoice", raw.InvoiceNumber).Str("irn", res.IRN).
			Msg("submitted but ledger record failed")
		return Result{
			InvoiceNumber: raw.InvoiceNumber,
			Outcome:       OutcomeFailed,
			IRN:           res.IRN,
			FailureKind:   FailTransient,
			Reason:        "submitted (IRN " + res.IRN + ") but ledger record failed: " + err.Error(),
		}
	}
	return Result{InvoiceNumber: raw.InvoiceNumber, Outcome: OutcomeSubmitted, IRN: res.IRN}
}

func (p *Pipeline) failed(ctx context.Context, raw model.RawInvoice, kind FailureKind, reason string, ambiguous bool) Result {
	entry := ledger.Entry{
		InvoiceNumber: raw.InvoiceNumber,
		Status:        ledger.StatusFailed,
		CustomerName:  raw.CustomerName,
		LastError:     reason,
		Ambiguous:     ambiguous,
	}
	if err := p.store.Record(ctx, entry); err != nil && !errors.Is(err, context.Canceled) {
		p.log.Error().Err(err).Str("invoice", raw.InvoiceNumber).Msg("ledger record failed")
	}
	return Result{
		InvoiceNumber: raw.InvoiceNumber,
		Outcome:       OutcomeFailed,
		FailureKind:   kind,
		Reason:        reason,
	}
}
