package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/OsamaASidd/Sage-Nigeria-E-Invoicing/internal/server"
)

var serveAddress string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve a read-only HTTP view of the submission ledger",
	Long: `Serve exposes the ledger over HTTP for dashboards and the finance
team. It never submits invoices.

Endpoints:
  GET /health
  GET /api/v1/invoices?status=failed
  GET /api/v1/invoices/:number
  GET /api/v1/summary`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddress, "address", "", "Listen address (overrides server.address)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := openStore(context.Background(), cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	address := cfg.Server.Address
	if serveAddress != "" {
		address = serveAddress
	}

	srv := server.NewServer(&server.Config{
		Address:      address,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		Debug:        cfg.Server.Debug,
	}, store, log)

	return srv.Run()
}
