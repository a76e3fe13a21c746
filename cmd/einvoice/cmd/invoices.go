package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/OsamaASidd/Sage-Nigeria-E-Invoicing/internal/ledger"
)

var (
	invoicesStatus string
	invoicesJSON   bool
)

var invoicesCmd = &cobra.Command{
	Use:   "invoices",
	Short: "Inspect the submission ledger and authority records",
}

var invoicesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List ledger entries",
	Long: `List every invoice the pipeline has seen, newest first.

Examples:
  einvoice invoices list
  einvoice invoices list --status failed
  einvoice invoices list --status submitted --json`,
	RunE: runInvoicesList,
}

var invoicesGetCmd = &cobra.Command{
	Use:   "get <invoice-number>",
	Short: "Show the ledger entry for one invoice",
	Args:  cobra.ExactArgs(1),
	RunE:  runInvoicesGet,
}

var invoicesFetchCmd = &cobra.Command{
	Use:   "fetch <irn>",
	Short: "Download the authority's record for an IRN",
	Args:  cobra.ExactArgs(1),
	RunE:  runInvoicesFetch,
}

var invoicesQRCmd = &cobra.Command{
	Use:   "qr <irn>",
	Short: "Print the QR payload the authority issued for an IRN",
	Args:  cobra.ExactArgs(1),
	RunE:  runInvoicesQR,
}

func init() {
	rootCmd.AddCommand(invoicesCmd)
	invoicesCmd.AddCommand(invoicesListCmd)
	invoicesCmd.AddCommand(invoicesGetCmd)
	invoicesCmd.AddCommand(invoicesFetchCmd)
	invoicesCmd.AddCommand(invoicesQRCmd)

	invoicesListCmd.Flags().StringVar(&invoicesStatus, "status", "", "Filter by status (pending, submitted, failed)")
	invoicesListCmd.Flags().BoolVar(&invoicesJSON, "json", false, "Output JSON instead of a table")
}

func runInvoicesList(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := context.Background()
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	status := ledger.Status(invoicesStatus)
	switch status {
	case "", ledger.StatusPending, ledger.StatusSubmitted, ledger.StatusFailed:
	default:
		return fmt.Errorf("unknown status %q", invoicesStatus)
	}

	entries, err := store.List(ctx, status)
	if err != nil {
		return err
	}

	if invoicesJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "INVOICE\tSTATUS\tIRN\tCUSTOMER\tAMOUNT\tUPDATED\tERROR")
	for _, e := range entries {
		errMsg := e.LastError
		if len(errMsg) > 60 {
			errMsg = errMsg[:60] + "..."
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			e.InvoiceNumber, e.Status, e.IRN, e.CustomerName,
			e.Amount.StringFixed(2), e.UpdatedAt.Format(time.RFC3339), errMsg)
	}
	return tw.Flush()
}

func runInvoicesGet(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := context.Background()
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	entry, err := store.Lookup(ctx, args[0])
	if err != nil {
		return err
	}
	if entry == nil {
		return fmt.Errorf("invoice %s is not in the ledger", args[0])
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(entry)
}

func runInvoicesFetch(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	client, err := newClient(cfg, log)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	body, err := client.FetchInvoice(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Println(string(body))
	return nil
}

func runInvoicesQR(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	client, err := newClient(cfg, log)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	payload, err := client.FetchQRPayload(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Println(payload)
	return nil
}
