package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/OsamaASidd/Sage-Nigeria-E-Invoicing/internal/config"
	"github.com/OsamaASidd/Sage-Nigeria-E-Invoicing/internal/firs"
	"github.com/OsamaASidd/Sage-Nigeria-E-Invoicing/internal/ledger"
	"github.com/OsamaASidd/Sage-Nigeria-E-Invoicing/internal/logging"
	"github.com/OsamaASidd/Sage-Nigeria-E-Invoicing/internal/money"
	"github.com/OsamaASidd/Sage-Nigeria-E-Invoicing/internal/source"
	"github.com/OsamaASidd/Sage-Nigeria-E-Invoicing/internal/transform"
	"github.com/shopspring/decimal"
)

var (
	version = "1.0.0"

	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "einvoice",
	Short: "Submit Sage 50 sales invoices to Nigeria's FIRS e-invoicing platform",
	Long: `einvoice reads sales invoices from Sage 50 (CSV/XLSX exports or the
company database), fills in the FIRS-mandated fields from operator-maintained
mapping tables, and submits each invoice exactly once.

Examples:
  # Validate everything without submitting
  einvoice sync --dry-run

  # Submit invoices issued since a date
  einvoice sync --since 2026-01-01

  # Inspect the submission ledger
  einvoice invoices list --status failed

  # Mark an invoice paid on the authority side
  einvoice payment <IRN> PAID --reference BANK-REF-123`,
	Version: version,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Config file (default: ./einvoice.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

// loadConfig reads configuration and builds the process logger.
func loadConfig() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	if verbose {
		cfg.Log.Level = "debug"
	}
	return cfg, logging.New(cfg.Log), nil
}

// openStore opens the configured ledger backend.
func openStore(ctx context.Context, cfg *config.Config) (ledger.Store, error) {
	switch cfg.Ledger.Backend {
	case "postgres":
		return ledger.OpenPostgresStore(ctx, cfg.Ledger.DatabaseURL)
	default:
		return ledger.OpenFileStore(cfg.Ledger.Path)
	}
}

// newReader builds the configured source reader. The returned cleanup closes
// any underlying database handle and is safe to call always.
func newReader(cfg *config.Config) (source.Reader, func(), error) {
	defaultRate, err := money.FromString(cfg.Defaults.TaxRate)
	if err != nil {
		return nil, nil, fmt.Errorf("defaults.tax_rate %q is not a number", cfg.Defaults.TaxRate)
	}

	switch cfg.Source.Kind {
	case "csv":
		return source.NewCSVReader(cfg.Source.Path, cfg.Source.Columns, defaultRate), func() {}, nil
	case "xlsx":
		return source.NewXLSXReader(cfg.Source.Path, cfg.Source.Sheet, cfg.Source.Columns, defaultRate), func() {}, nil
	case "db":
		db, err := sql.Open(cfg.Source.Driver, cfg.Source.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open source database: %w", err)
		}
		return source.NewDBReader(db, cfg.Source.SalesJournalKey, defaultRate), func() { db.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown source kind %q", cfg.Source.Kind)
	}
}

// newClient builds the authority API client, requiring credentials.
func newClient(cfg *config.Config, log zerolog.Logger) (*firs.Client, error) {
	if cfg.API.ParticipantID == "" || cfg.API.APIKey == "" {
		return nil, fmt.Errorf("api.participant_id and api.api_key are required (or EINVOICE_API_PARTICIPANT_ID / EINVOICE_API_API_KEY)")
	}
	opts := []firs.ClientOption{
		firs.WithLogger(log),
		firs.WithMaxAttempts(cfg.API.MaxAttempts),
	}
	if cfg.API.BackoffBaseMS > 0 {
		opts = append(opts, firs.WithBackoffBase(time.Duration(cfg.API.BackoffBaseMS)*time.Millisecond))
	}
	return firs.NewClient(cfg.API.BaseURL(), cfg.API.ParticipantID, cfg.API.APIKey, opts...), nil
}

// newTransformer builds the document transformer from configured defaults.
func newTransformer(cfg *config.Config) (*transform.Transformer, error) {
	defaultRate, err := money.FromString(cfg.Defaults.TaxRate)
	if err != nil {
		return nil, fmt.Errorf("defaults.tax_rate %q is not a number", cfg.Defaults.TaxRate)
	}
	allowed := transform.DefaultAllowedTaxRates()
	if !rateAllowed(allowed, defaultRate) {
		allowed = append(allowed, defaultRate)
	}
	return transform.New(transform.Options{
		Supplier:        cfg.Supplier.Party(),
		Currency:        cfg.Defaults.Currency,
		UOM:             cfg.Defaults.UOM,
		TaxCategoryID:   cfg.Defaults.TaxCategoryID,
		AllowedTaxRates: allowed,
	}), nil
}

func rateAllowed(allowed []decimal.Decimal, rate decimal.Decimal) bool {
	for _, a := range allowed {
		if a.Equal(rate) {
			return true
		}
	}
	return false
}
