package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// RawInvoice is one sales invoice as extracted from Sage 50, before any
// mapping resolution. The invoice number is the stable identity used by the
// submission ledger.
type RawInvoice struct {
	InvoiceNumber string
	IssueDate     time.Time
	CustomerID    string
	CustomerName  string
	Lines         []RawLine
}

// RawLine is one line-item row grouped under its parent invoice.
type RawLine struct {
	ItemCode    string
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	Discount    decimal.Decimal
	TaxRate     decimal.Decimal
	LineTotal   decimal.Decimal
}

// Customer holds the attributes resolved from the customer mapping table.
// TIN is mandatory for submission; the contact fields default when absent.
type Customer struct {
	ID                  string
	Name                string
	TIN                 string
	Email               string
	Phone               string
	Address             string
	City                string
	PostalCode          string
	BusinessDescription string
}

// ResolvedInvoice is a RawInvoice with every external reference substituted:
// the customer carries a TIN and every line carries an HS code and category.
type ResolvedInvoice struct {
	InvoiceNumber string
	IssueDate     time.Time
	Customer      Customer
	Lines         []ResolvedLine
}

// ResolvedLine is a RawLine with its tariff classification attached.
type ResolvedLine struct {
	RawLine
	HSCode   string
	Category string
}

// ItemName returns the line's display name: the description when present,
// otherwise the item code.
func (l ResolvedLine) ItemName() string {
	if l.Description != "" {
		return l.Description
	}
	return l.ItemCode
}
