// Package mapping loads the operator-maintained lookup tables that bridge
// Sage 50 references to what FIRS requires: customer TINs and contact data,
// item HS codes and item categories.
package mapping

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/OsamaASidd/Sage-Nigeria-E-Invoicing/internal/model"
)

// Table names used in MissingMapping reports.
const (
	TableCustomerTIN = "customer_tin"
	TableHSCode      = "hs_code"
	TableCategory    = "category"
)

// Paths locates the three mapping CSVs.
type Paths struct {
	CustomerTIN string
	HSCode      string
	Category    string
}

// Tables holds the loaded mappings for one pipeline run. Loaded once, then
// read-only.
type Tables struct {
	customers  map[string]model.Customer
	hsCodes    map[string]string
	categories map[string]string
}

// Load reads all three tables. A missing file yields an empty table rather
// than an error: every lookup against it fails resolution, which is the
// operator-visible signal to fill it in.
func Load(paths Paths) (*Tables, error) {
	customers, err := loadCustomers(paths.CustomerTIN)
	if err != nil {
		return nil, err
	}
	hsCodes, err := loadKV(paths.HSCode, "item_code", "hs_code")
	if err != nil {
		return nil, err
	}
	categories, err := loadKV(paths.Category, "item_code", "category")
	if err != nil {
		return nil, err
	}
	return &Tables{customers: customers, hsCodes: hsCodes, categories: categories}, nil
}

// Customer returns the mapped customer attributes for a Sage customer ID.
func (t *Tables) Customer(id string) (model.Customer, bool) {
	c, ok := t.customers[id]
	return c, ok
}

// HSCode returns the tariff code mapped to an item code.
func (t *Tables) HSCode(itemCode string) (string, bool) {
	v, ok := t.hsCodes[itemCode]
	return v, ok
}

// Category returns the product category mapped to an item code.
func (t *Tables) Category(itemCode string) (string, bool) {
	v, ok := t.categories[itemCode]
	return v, ok
}

// Sizes reports entry counts per table, for startup logging.
func (t *Tables) Sizes() (customers, hsCodes, categories int) {
	return len(t.customers), len(t.hsCodes), len(t.categories)
}

// Resolver substitutes external references with mapped values. Pure over the
// loaded tables; deterministic.
type Resolver struct {
	tables *Tables
}

// NewResolver creates a resolver over loaded tables.
func NewResolver(tables *Tables) *Resolver {
	return &Resolver{tables: tables}
}

// Resolve maps a raw invoice to a resolved one. If any lookup misses, it
// returns a ResolutionError listing every missing key so the operator can
// repair all tables in a single pass.
func (r *Resolver) Resolve(raw model.RawInvoice) (*model.ResolvedInvoice, error) {
	var missing []model.MissingMapping
	seen := make(map[string]bool)
	miss := func(table, key string) {
		id := table + "\x00" + key
		if seen[id] {
			return
		}
		seen[id] = true
		missing = append(missing, model.MissingMapping{Table: table, Key: key})
	}

	customer, ok := r.tables.Customer(raw.CustomerID)
	if !ok || customer.TIN == "" {
		miss(TableCustomerTIN, raw.CustomerID)
	}
	customer.ID = raw.CustomerID
	if customer.Name == "" {
		customer.Name = raw.CustomerName
	}

	lines := make([]model.ResolvedLine, 0, len(raw.Lines))
	for _, line := range raw.Lines {
		hsCode, ok := r.tables.HSCode(line.ItemCode)
		if !ok || hsCode == "" {
			miss(TableHSCode, line.ItemCode)
		}
		category, ok := r.tables.Category(line.ItemCode)
		if !ok || category == "" {
			miss(TableCategory, line.ItemCode)
		}
		lines = append(lines, model.ResolvedLine{
			RawLine:  line,
			HSCode:   hsCode,
			Category: category,
		})
	}

	if len(missing) > 0 {
		return nil, &model.ResolutionError{InvoiceNumber: raw.InvoiceNumber, Missing: missing}
	}

	return &model.ResolvedInvoice{
		InvoiceNumber: raw.InvoiceNumber,
		IssueDate:     raw.IssueDate,
		Customer:      customer,
		Lines:         lines,
	}, nil
}

func loadCustomers(path string) (map[string]model.Customer, error) {
	out := make(map[string]model.Customer)
	rows, headers, err := readTable(path)
	if err != nil || rows == nil {
		return out, err
	}

	col := headerIndex(headers)
	for _, row := range rows {
		get := func(name string) string { return cellAt(row, col, name) }
		id := get("customer_id")
		if id == "" {
			continue
		}
		out[id] = model.Customer{
			ID:                  id,
			Name:                get("name"),
			TIN:                 get("tin"),
			Email:               get("email"),
			Phone:               get("phone"),
			Address:             get("address"),
			City:                get("city"),
			PostalCode:          get("postal_code"),
			BusinessDescription: get("business_description"),
		}
	}
	return out, nil
}

func loadKV(path, keyCol, valueCol string) (map[string]string, error) {
	out := make(map[string]string)
	rows, headers, err := readTable(path)
	if err != nil || rows == nil {
		return out, err
	}

	col := headerIndex(headers)
	for _, row := range rows {
		k := cellAt(row, col, keyCol)
		v := cellAt(row, col, valueCol)
		if k != "" && v != "" {
			out[k] = v
		}
	}
	return out, nil
}

// readTable returns nil rows for a missing file and an error for an
// unreadable or malformed one.
func readTable(path string) ([][]string, []string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("open mapping table %s: %w", path, err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("parse mapping table %s: %w", path, err)
	}
	if len(rows) == 0 {
		return [][]string{}, nil, nil
	}

	headers := rows[0]
	if len(headers) > 0 {
		headers[0] = strings.TrimPrefix(headers[0], "\uFEFF")
	}
	return rows[1:], headers, nil
}

func headerIndex(headers []string) map[string]int {
	idx := make(map[string]int, len(headers))
	for i, h := range headers {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return idx
}

func cellAt(row []string, idx map[string]int, name string) string {
	i, ok := idx[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// templates written by ExportTemplates, one per table.
var templates = map[string][]string{
	"customer_tin": {"customer_id", "name", "tin", "email", "phone", "address", "city", "postal_code", "business_description"},
	"hs_code":      {"item_code", "hs_code"},
	"category":     {"item_code", "category"},
}

// ExportTemplates writes starter CSVs for any table file that does not exist
// yet. Existing files are never overwritten.
func ExportTemplates(paths Paths) ([]string, error) {
	targets := map[string]string{
		"customer_tin": paths.CustomerTIN,
		"hs_code":      paths.HSCode,
		"category":     paths.Category,
	}

	var written []string
	for name, path := range targets {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err == nil {
			continue
		}
		if err := writeTemplate(path, templates[name]); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}

func writeTemplate(path string, headers []string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create template %s: %w", path, err)
	}
	defer f.Close()
	return writeCSVRow(f, headers)
}

func writeCSVRow(w io.Writer, fields []string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(fields); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}
