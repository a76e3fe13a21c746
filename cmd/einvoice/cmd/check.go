package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/OsamaASidd/Sage-Nigeria-E-Invoicing/internal/mapping"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify configuration, source, mappings, ledger and API access",
	Long: `Check exercises every external dependency of a sync run without
submitting anything: reads the source, loads the mapping tables, opens the
ledger and calls the authority API with the configured credentials.`,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	failed := false
	report := func(name string, err error) {
		if err != nil {
			failed = true
			fmt.Printf("FAIL %-10s %v\n", name, err)
			return
		}
		fmt.Printf("OK   %s\n", name)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	reader, cleanup, err := newReader(cfg)
	if err == nil {
		defer cleanup()
		extract, readErr := reader.Read(ctx, time.Time{})
		if readErr == nil {
			fmt.Printf("OK   source     %d invoice(s), %d row(s) skipped\n", len(extract.Invoices), extract.Skipped)
		} else {
			err = readErr
		}
	}
	if err != nil {
		report("source", err)
	}

	tables, err := mapping.Load(cfg.Mappings.Paths())
	if err == nil {
		customers, hsCodes, categories := tables.Sizes()
		fmt.Printf("OK   mappings   %d customers, %d hs codes, %d categories\n", customers, hsCodes, categories)
	} else {
		report("mappings", err)
	}

	store, err := openStore(ctx, cfg)
	if err == nil {
		store.Close()
	}
	report("ledger", err)

	client, err := newClient(cfg, log)
	if err == nil {
		err = client.TestConnection(ctx)
	}
	report("api", err)

	if failed {
		return fmt.Errorf("one or more checks failed")
	}
	return nil
}
