package source

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/OsamaASidd/Sage-Nigeria-E-Invoicing/internal/model"
)

// XLSXReader reads a Sage 50 XLSX export. Semantics match CSVReader; only
// the container differs.
type XLSXReader struct {
	path    string
	sheet   string
	tabular tabular
}

// NewXLSXReader creates a reader for the workbook at path. An empty sheet
// name selects the first sheet.
func NewXLSXReader(path, sheet string, columns ColumnMap, defaultTaxRate decimal.Decimal) *XLSXReader {
	return &XLSXReader{
		path:    path,
		sheet:   sheet,
		tabular: tabular{columns: columns, defaultTaxRate: defaultTaxRate},
	}
}

// Read parses the workbook and returns grouped invoices.
func (r *XLSXReader) Read(ctx context.Context, since time.Time) (*Extract, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := excelize.OpenFile(r.path)
	if err != nil {
		return nil, model.NewSourceError(r.path, "cannot open XLSX export", err)
	}
	defer f.Close()

	sheet := r.sheet
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, model.NewSourceError(r.path, "cannot read sheet "+sheet, err)
	}
	if len(rows) == 0 {
		return &Extract{}, nil
	}

	return r.tabular.group(rows[0], rows[1:], since), nil
}
