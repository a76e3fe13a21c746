package source

import (
	"context"
	"encoding/csv"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/OsamaASidd/Sage-Nigeria-E-Invoicing/internal/model"
)

// CSVReader reads a Sage 50 CSV export. Line rows are grouped under their
// invoice by the shared invoice number column.
type CSVReader struct {
	path    string
	tabular tabular
}

// NewCSVReader creates a reader for the export at path.
func NewCSVReader(path string, columns ColumnMap, defaultTaxRate decimal.Decimal) *CSVReader {
	return &CSVReader{
		path:    path,
		tabular: tabular{columns: columns, defaultTaxRate: defaultTaxRate},
	}
}

// Read parses the export and returns grouped invoices.
func (r *CSVReader) Read(ctx context.Context, since time.Time) (*Extract, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(r.path)
	if err != nil {
		return nil, model.NewSourceError(r.path, "cannot open CSV export", err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1 // Sage pads trailing columns inconsistently
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, model.NewSourceError(r.path, "cannot parse CSV export", err)
	}
	if len(rows) == 0 {
		return &Extract{}, nil
	}

	headers := rows[0]
	// Sage exports carry a UTF-8 BOM on the first header.
	if len(headers) > 0 {
		headers[0] = strings.TrimPrefix(headers[0], "\uFEFF")
	}

	return r.tabular.group(headers, rows[1:], since), nil
}
