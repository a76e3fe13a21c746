package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/OsamaASidd/Sage-Nigeria-E-Invoicing/internal/mapping"
	"github.com/OsamaASidd/Sage-Nigeria-E-Invoicing/internal/pipeline"
)

var (
	syncSince  string
	syncDryRun bool
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Read invoices from Sage and submit new ones to FIRS",
	Long: `Sync runs the full pipeline: read invoices from the configured source,
resolve mapping tables, validate, and submit every invoice the ledger has not
seen as submitted. Already-submitted invoices are skipped, so running sync
repeatedly is safe.

Examples:
  einvoice sync
  einvoice sync --dry-run
  einvoice sync --since 2026-01-01`,
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)

	syncCmd.Flags().StringVar(&syncSince, "since", "", "Only process invoices issued on or after this date (YYYY-MM-DD)")
	syncCmd.Flags().BoolVar(&syncDryRun, "dry-run", false, "Validate everything but do not submit")
}

func runSync(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}

	var since time.Time
	if syncSince != "" {
		since, err = time.Parse("2006-01-02", syncSince)
		if err != nil {
			return fmt.Errorf("--since must be YYYY-MM-DD, got %q", syncSince)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reader, cleanup, err := newReader(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	tables, err := mapping.Load(cfg.Mappings.Paths())
	if err != nil {
		return err
	}
	customers, hsCodes, categories := tables.Sizes()
	log.Info().
		Int("customers", customers).
		Int("hs_codes", hsCodes).
		Int("categories", categories).
		Msg("mapping tables loaded")

	transformer, err := newTransformer(cfg)
	if err != nil {
		return err
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	var submitter pipeline.Submitter
	if !syncDryRun {
		submitter, err = newClient(cfg, log)
		if err != nil {
			return err
		}
	}

	p := pipeline.New(reader, mapping.NewResolver(tables), transformer, store, submitter,
		pipeline.WithDryRun(syncDryRun),
		pipeline.WithSince(since),
		pipeline.WithLogger(log),
	)

	report, runErr := p.Run(ctx)
	if report != nil {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	}
	if runErr != nil {
		return runErr
	}
	if report.HasFailures() {
		return fmt.Errorf("%d invoice(s) failed; see report above", report.Failed)
	}
	return nil
}
