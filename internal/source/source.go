// Package source extracts raw sales invoices from Sage 50, either from a
// CSV/XLSX export or from a live database connection. All readers yield the
// same RawInvoice shape so the rest of the pipeline never knows which path
// the data took.
package source

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/OsamaASidd/Sage-Nigeria-E-Invoicing/internal/model"
	"github.com/OsamaASidd/Sage-Nigeria-E-Invoicing/internal/money"
)

// Reader produces the invoices to process in source extraction order.
// A zero since means no lower date bound.
type Reader interface {
	Read(ctx context.Context, since time.Time) (*Extract, error)
}

// Extract is the result of one source read. Skipped counts rows dropped for
// missing mandatory fields (invoice number, date) instead of failing the run.
type Extract struct {
	Invoices []model.RawInvoice
	Skipped  int
}

// ColumnMap names the export column header for each canonical field. Sage 50
// report layouts vary per installation, so the operator configures the
// headers once instead of editing code.
type ColumnMap struct {
	InvoiceNumber   string `mapstructure:"invoice_number"`
	InvoiceDate     string `mapstructure:"invoice_date"`
	CustomerID      string `mapstructure:"customer_id"`
	CustomerName    string `mapstructure:"customer_name"`
	ItemCode        string `mapstructure:"item_code"`
	ItemDescription string `mapstructure:"item_description"`
	Quantity        string `mapstructure:"quantity"`
	UnitPrice       string `mapstructure:"unit_price"`
	Discount        string `mapstructure:"discount"`
	TaxRate         string `mapstructure:"tax_rate"`
	LineTotal       string `mapstructure:"line_total"`
}

// DefaultColumnMap matches the stock Sage 50 sales journal export.
func DefaultColumnMap() ColumnMap {
	return ColumnMap{
		InvoiceNumber:   "Invoice Number",
		InvoiceDate:     "Date",
		CustomerID:      "Customer ID",
		CustomerName:    "Customer Name",
		ItemCode:        "Item Code",
		ItemDescription: "Item Description",
		Quantity:        "Quantity",
		UnitPrice:       "Unit Price",
		Discount:        "Discount",
		TaxRate:         "Tax Rate",
		LineTotal:       "Line Total",
	}
}

// Validate rejects a column map that cannot identify invoices at all.
// Optional columns may be blank; their fields default per row.
func (m ColumnMap) Validate() error {
	if strings.TrimSpace(m.InvoiceNumber) == "" {
		return fmt.Errorf("column map: invoice_number header is required")
	}
	if strings.TrimSpace(m.InvoiceDate) == "" {
		return fmt.Errorf("column map: invoice_date header is required")
	}
	return nil
}

// dateFormats are the layouts Sage 50 emits depending on regional settings.
var dateFormats = []string{
	"2006-01-02",
	"01/02/2006",
	"02/01/2006",
	"02-01-2006",
	"01-02-2006",
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// tabular groups header+line rows shared by the CSV and XLSX readers.
// Row order is preserved: invoices appear in first-seen order and lines in
// row order under their invoice.
type tabular struct {
	columns        ColumnMap
	defaultTaxRate decimal.Decimal
}

func (t tabular) group(headers []string, rows [][]string, since time.Time) *Extract {
	idx := make(map[string]int, len(headers))
	for i, h := range headers {
		idx[strings.TrimSpace(h)] = i
	}

	cell := func(row []string, header string) string {
		if header == "" {
			return ""
		}
		i, ok := idx[header]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	byNumber := make(map[string]*model.RawInvoice)
	var order []string
	skipped := 0

	for _, row := range rows {
		number := cell(row, t.columns.InvoiceNumber)
		if number == "" {
			skipped++
			continue
		}

		inv, seen := byNumber[number]
		if !seen {
			date, ok := parseDate(cell(row, t.columns.InvoiceDate))
			if !ok {
				skipped++
				continue
			}
			if !since.IsZero() && date.Before(since) {
				continue
			}
			inv = &model.RawInvoice{
				InvoiceNumber: number,
				IssueDate:     date,
				CustomerID:    cell(row, t.columns.CustomerID),
				CustomerName:  cell(row, t.columns.CustomerName),
			}
			byNumber[number] = inv
			order = append(order, number)
		}

		rate := t.defaultTaxRate
		if s := cell(row, t.columns.TaxRate); s != "" {
			if d, err := money.FromString(s); err == nil {
				rate = d
			}
		}

		inv.Lines = append(inv.Lines, model.RawLine{
			ItemCode:    cell(row, t.columns.ItemCode),
			Description: cell(row, t.columns.ItemDescription),
			Quantity:    numeric(cell(row, t.columns.Quantity)),
			UnitPrice:   numeric(cell(row, t.columns.UnitPrice)),
			Discount:    numeric(cell(row, t.columns.Discount)),
			TaxRate:     rate,
			LineTotal:   numeric(cell(row, t.columns.LineTotal)),
		})
	}

	out := &Extract{Skipped: skipped}
	for _, number := range order {
		inv := byNumber[number]
		if len(inv.Lines) == 0 {
			continue
		}
		out.Invoices = append(out.Invoices, *inv)
	}
	return out
}

// numeric parses a cell as decimal, defaulting to zero on garbage. A bad
// amount is a validation problem downstream, not a read failure.
func numeric(s string) decimal.Decimal {
	d, err := money.FromString(s)
	if err != nil {
		return money.Zero
	}
	return d
}
