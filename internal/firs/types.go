// Package firs talks to the Nigeria e-invoicing authority API (FIRS MBS via
// Flick Network): invoice submission, lookups, payment status updates and
// reference data.
package firs

import (
	"github.com/shopspring/decimal"
)

func init() {
	// The API expects bare JSON numbers for amounts, not quoted strings.
	decimal.MarshalJSONWithoutQuotes = true
}

// Environment base URLs.
const (
	PreprodBaseURL    = "https://preprod-ng.flick.network/v1"
	ProductionBaseURL = "https://ng.flick.network/v1"
)

// Invoice is the document schema the authority accepts at /invoice/generate.
// Field names follow the API contract exactly.
type Invoice struct {
	DocumentIdentifier      string `json:"document_identifier"`
	IssueDate               string `json:"issue_date"`
	InvoiceTypeCode         string `json:"invoice_type_code"`
	DocumentCurrencyCode    string `json:"document_currency_code"`
	TaxCurrencyCode         string `json:"tax_currency_code"`
	AccountingSupplierParty *Party `json:"accounting_supplier_party,omitempty"`
	AccountingCustomerParty Party  `json:"accounting_customer_party"`
	InvoiceLines            []Line `json:"invoice_line"`
	LegalMonetaryTotal      Totals `json:"legal_monetary_total"`
}

// Party identifies the supplier or customer side of the invoice.
type Party struct {
	PartyName           string        `json:"party_name"`
	TIN                 string        `json:"tin"`
	Email               string        `json:"email"`
	Telephone           string        `json:"telephone"`
	BusinessDescription string        `json:"business_description"`
	PostalAddress       PostalAddress `json:"postal_address"`
}

// PostalAddress is the party address block.
type PostalAddress struct {
	StreetName string `json:"street_name"`
	CityName   string `json:"city_name"`
	PostalZone string `json:"postal_zone"`
	Country    string `json:"country"`
}

// Line is one invoice line in authority terms.
type Line struct {
	HSNCode                   string          `json:"hsn_code"`
	PriceAmount               decimal.Decimal `json:"price_amount"`
	DiscountAmount            decimal.Decimal `json:"discount_amount"`
	UOM                       string          `json:"uom"`
	InvoicedQuantity          decimal.Decimal `json:"invoiced_quantity"`
	ProductCategory           string          `json:"product_category"`
	TaxRate                   decimal.Decimal `json:"tax_rate"`
	TaxCategoryID             string          `json:"tax_category_id"`
	ItemName                  string          `json:"item_name"`
	SellersItemIdentification string          `json:"sellers_item_identification"`
	LineExtensionAmount       decimal.Decimal `json:"line_extension_amount"`
}

// Totals is the document-level monetary summary.
type Totals struct {
	LineExtensionAmount decimal.Decimal `json:"line_extension_amount"`
	TaxExclusiveAmount  decimal.Decimal `json:"tax_exclusive_amount"`
	TaxInclusiveAmount  decimal.Decimal `json:"tax_inclusive_amount"`
	PayableAmount       decimal.Decimal `json:"payable_amount"`
}

// SubmitResult is the authority's answer to a successful submission.
type SubmitResult struct {
	IRN       string
	QRPayload string
}

// PaymentStatus values accepted by the payment update endpoint.
const (
	PaymentPaid     = "PAID"
	PaymentPartial  = "PARTIAL"
	PaymentRejected = "REJECTED"
)

// ReferenceDataKind selects a /resources endpoint.
type ReferenceDataKind string

// Reference data kinds the authority publishes.
const (
	RefAll          ReferenceDataKind = "all"
	RefHSCodes      ReferenceDataKind = "hs-codes"
	RefServiceCodes ReferenceDataKind = "services-codes"
	RefCurrencies   ReferenceDataKind = "currencies"
	RefCountries    ReferenceDataKind = "countries"
)
