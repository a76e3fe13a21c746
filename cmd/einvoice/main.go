package main

import (
	"fmt"
	"os"

	"github.com/OsamaASidd/Sage-Nigeria-E-Invoicing/cmd/einvoice/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
