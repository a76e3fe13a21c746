package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/OsamaASidd/Sage-Nigeria-E-Invoicing/internal/mapping"
)

var mappingsCmd = &cobra.Command{
	Use:   "mappings",
	Short: "Manage the mapping tables",
}

var mappingsInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write starter CSV templates for missing mapping tables",
	Long: `Init creates the three mapping CSVs (customer TINs, HS codes, item
categories) with header rows at the configured paths. Existing files are left
untouched.`,
	RunE: runMappingsInit,
}

var mappingsStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show entry counts per mapping table",
	RunE:  runMappingsStatus,
}

func init() {
	rootCmd.AddCommand(mappingsCmd)
	mappingsCmd.AddCommand(mappingsInitCmd)
	mappingsCmd.AddCommand(mappingsStatusCmd)
}

func runMappingsInit(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	written, err := mapping.ExportTemplates(cfg.Mappings.Paths())
	if err != nil {
		return err
	}
	if len(written) == 0 {
		fmt.Println("All mapping tables already exist")
		return nil
	}
	for _, path := range written {
		fmt.Printf("Created %s\n", path)
	}
	return nil
}

func runMappingsStatus(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	tables, err := mapping.Load(cfg.Mappings.Paths())
	if err != nil {
		return err
	}
	customers, hsCodes, categories := tables.Sizes()
	fmt.Printf("customer_tin: %d entries (%s)\n", customers, cfg.Mappings.CustomerTIN)
	fmt.Printf("hs_code:      %d entries (%s)\n", hsCodes, cfg.Mappings.HSCode)
	fmt.Printf("category:     %d entries (%s)\n", categories, cfg.Mappings.Category)
	return nil
}
