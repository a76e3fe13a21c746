package source

import (
	"context"
	"database/sql"
	"time"

	"github.com/shopspring/decimal"

	"github.com/OsamaASidd/Sage-Nigeria-E-Invoicing/internal/model"
	"github.com/OsamaASidd/Sage-Nigeria-E-Invoicing/internal/money"
)

// Sage 50 journal tables. Names are stable across recent versions; the
// journal key separating sales from other transaction types is configurable
// because it differs per region.
const (
	tableHeaders   = "JOURNALHEADER"
	tableLines     = "JOURNALROW"
	tableCustomers = "CUSTOMER"
)

// DBReader reads sales invoices straight from the Sage 50 company database.
// It works over any registered database/sql driver; the caller owns the
// handle and its lifetime.
type DBReader struct {
	db              *sql.DB
	salesJournalKey int
	defaultTaxRate  decimal.Decimal
}

// NewDBReader creates a reader over an open connection.
func NewDBReader(db *sql.DB, salesJournalKey int, defaultTaxRate decimal.Decimal) *DBReader {
	return &DBReader{db: db, salesJournalKey: salesJournalKey, defaultTaxRate: defaultTaxRate}
}

// Read queries sales headers, then lines per invoice, preserving the order
// the database returns headers in.
func (r *DBReader) Read(ctx context.Context, since time.Time) (*Extract, error) {
	if err := r.db.PingContext(ctx); err != nil {
		return nil, model.NewSourceError("sage-db", "cannot reach Sage 50 database", err)
	}

	query := `SELECT h.Reference, h.TransactionDate, h.CustomerID, c.CustomerName, h.Description, h.Amount
		FROM ` + tableHeaders + ` h
		LEFT JOIN ` + tableCustomers + ` c ON c.CustomerID = h.CustomerID
		WHERE h.JournalKey = ?`
	args := []interface{}{r.salesJournalKey}
	if !since.IsZero() {
		query += " AND h.TransactionDate >= ?"
		args = append(args, since)
	}
	query += " ORDER BY h.TransactionDate, h.Reference"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, model.NewSourceError("sage-db", "header query failed", err)
	}
	defer rows.Close()

	out := &Extract{}
	var invoices []model.RawInvoice
	var headerAmounts []decimal.Decimal
	var headerDescs []string
	for rows.Next() {
		var (
			reference    sql.NullString
			date         sql.NullTime
			customerID   sql.NullString
			customerName sql.NullString
			description  sql.NullString
			amount       sql.NullFloat64
		)
		if err := rows.Scan(&reference, &date, &customerID, &customerName, &description, &amount); err != nil {
			return nil, model.NewSourceError("sage-db", "header scan failed", err)
		}
		if !reference.Valid || reference.String == "" || !date.Valid {
			out.Skipped++
			continue
		}
		invoices = append(invoices, model.RawInvoice{
			InvoiceNumber: reference.String,
			IssueDate:     date.Time,
			CustomerID:    customerID.String,
			CustomerName:  customerName.String,
		})
		headerAmounts = append(headerAmounts, fromNullFloat(amount).Abs())
		headerDescs = append(headerDescs, description.String)
	}
	if err := rows.Err(); err != nil {
		return nil, model.NewSourceError("sage-db", "header iteration failed", err)
	}

	for i := range invoices {
		lines, err := r.readLines(ctx, invoices[i].InvoiceNumber)
		if err != nil {
			return nil, err
		}
		if len(lines) == 0 && money.IsPositive(headerAmounts[i]) {
			// Service invoices often carry no JOURNALROW detail at all.
			// Synthesize a single line from the header so they still flow
			// through mapping and validation like everything else.
			desc := headerDescs[i]
			if desc == "" {
				desc = invoices[i].CustomerName
			}
			lines = []model.RawLine{{
				ItemCode:    invoices[i].InvoiceNumber,
				Description: desc,
				Quantity:    decimal.NewFromInt(1),
				UnitPrice:   headerAmounts[i],
				Discount:    money.Zero,
				TaxRate:     r.defaultTaxRate,
				LineTotal:   headerAmounts[i],
			}}
		}
		invoices[i].Lines = lines
	}

	out.Invoices = invoices
	return out, nil
}

func (r *DBReader) readLines(ctx context.Context, reference string) ([]model.RawLine, error) {
	query := `SELECT ItemID, Description, Quantity, UnitPrice, DiscountAmount, TaxRate, Amount
		FROM ` + tableLines + ` WHERE Reference = ? ORDER BY RowNumber`

	rows, err := r.db.QueryContext(ctx, query, reference)
	if err != nil {
		return nil, model.NewSourceError("sage-db", "line query failed for "+reference, err)
	}
	defer rows.Close()

	var lines []model.RawLine
	for rows.Next() {
		var (
			itemCode    sql.NullString
			description sql.NullString
			quantity    sql.NullFloat64
			unitPrice   sql.NullFloat64
			discount    sql.NullFloat64
			taxRate     sql.NullFloat64
			amount      sql.NullFloat64
		)
		if err := rows.Scan(&itemCode, &description, &quantity, &unitPrice, &discount, &taxRate, &amount); err != nil {
			return nil, model.NewSourceError("sage-db", "line scan failed for "+reference, err)
		}
		rate := r.defaultTaxRate
		if taxRate.Valid {
			rate = decimal.NewFromFloat(taxRate.Float64)
		}
		lines = append(lines, model.RawLine{
			ItemCode:    itemCode.String,
			Description: description.String,
			Quantity:    fromNullFloat(quantity),
			UnitPrice:   fromNullFloat(unitPrice),
			Discount:    fromNullFloat(discount),
			TaxRate:     rate,
			LineTotal:   fromNullFloat(amount),
		})
	}
	return lines, rows.Err()
}

func fromNullFloat(v sql.NullFloat64) decimal.Decimal {
	if !v.Valid {
		return money.Zero
	}
	return decimal.NewFromFloat(v.Float64)
}
