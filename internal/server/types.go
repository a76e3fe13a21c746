package server

import (
	"github.com/shopspring/decimal"

	"github.com/OsamaASidd/Sage-Nigeria-E-Invoicing/internal/ledger"
)

// ListResponse is the response for the invoice list endpoint
type ListResponse struct {
	Count    int            `json:"count"`
	Invoices []ledger.Entry `json:"invoices"`
}

// SummaryResponse aggregates ledger state per status
type SummaryResponse struct {
	Total           int             `json:"total"`
	Pending         int             `json:"pending"`
	Submitted       int             `json:"submitted"`
	Failed          int             `json:"failed"`
	Ambiguous       int             `json:"ambiguous"`
	SubmittedAmount decimal.Decimal `json:"submitted_amount"`
}
