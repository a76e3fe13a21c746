package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/OsamaASidd/Sage-Nigeria-E-Invoicing/internal/firs"
)

var paymentReference string

var paymentCmd = &cobra.Command{
	Use:   "payment <irn> <status>",
	Short: "Update the payment status of a submitted invoice",
	Long: `Payment patches the payment state the authority holds for an invoice.
Status must be PAID, PARTIAL or REJECTED.

Examples:
  einvoice payment NG-IRN-00123 PAID --reference BANK-REF-123
  einvoice payment NG-IRN-00123 PARTIAL`,
	Args: cobra.ExactArgs(2),
	RunE: runPayment,
}

func init() {
	rootCmd.AddCommand(paymentCmd)

	paymentCmd.Flags().StringVar(&paymentReference, "reference", "", "Payment reference (bank transaction, receipt number)")
}

func runPayment(cmd *cobra.Command, args []string) error {
	irn := args[0]
	status := strings.ToUpper(args[1])
	switch status {
	case firs.PaymentPaid, firs.PaymentPartial, firs.PaymentRejected:
	default:
		return fmt.Errorf("status must be PAID, PARTIAL or REJECTED, got %q", args[1])
	}

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

	if err := client.UpdatePaymentStatus(ctx, irn, status, paymentReference); err != nil {
		return err
	}
	fmt.Printf("Payment status of %s set to %s\n", irn, status)
	return nil
}
