package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/OsamaASidd/Sage-Nigeria-E-Invoicing/internal/firs"
)

var resourcesOutDir string

var resourcesCmd = &cobra.Command{
	Use:   "resources [kind]",
	Short: "Download authority reference data",
	Long: `Resources downloads the authority's published code lists. Kind is one
of: all, hs-codes, services-codes, currencies, countries. Default is all.

Examples:
  einvoice resources hs-codes
  einvoice resources all --out refdata/`,
	Args: cobra.MaximumNArgs(1),
	RunE: runResources,
}

func init() {
	rootCmd.AddCommand(resourcesCmd)

	resourcesCmd.Flags().StringVar(&resourcesOutDir, "out", "", "Directory to save the JSON into (default: stdout)")
}

func runResources(cmd *cobra.Command, args []string) error {
	kind := firs.RefAll
	if len(args) == 1 {
		switch firs.ReferenceDataKind(args[0]) {
		case firs.RefAll, firs.RefHSCodes, firs.RefServiceCodes, firs.RefCurrencies, firs.RefCountries:
			kind = firs.ReferenceDataKind(args[0])
		default:
			return fmt.Errorf("unknown reference data kind %q", args[0])
		}
	}

	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	client, err := newClient(cfg, log)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	body, err := client.FetchReferenceData(ctx, kind)
	if err != nil {
		return err
	}

	if resourcesOutDir == "" {
		fmt.Println(string(body))
		return nil
	}

	if err := os.MkdirAll(resourcesOutDir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(resourcesOutDir, string(kind)+".json")
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return err
	}
	fmt.Printf("Saved %s\n", path)
	return nil
}
