// Package transform converts resolved Sage invoices into the authority's
// document schema and enforces field-level and numeric-consistency rules
// before anything goes over the wire.
package transform

import (
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/OsamaASidd/Sage-Nigeria-E-Invoicing/internal/firs"
	"github.com/OsamaASidd/Sage-Nigeria-E-Invoicing/internal/model"
	"github.com/OsamaASidd/Sage-Nigeria-E-Invoicing/internal/money"
)

// Standard invoice type code per the authority's code list.
const invoiceTypeCode = "394"

// Options fixes the constants the transformer stamps on every document.
type Options struct {
	Supplier        *firs.Party
	Currency        string
	UOM             string
	TaxCategoryID   string
	AllowedTaxRates []decimal.Decimal
}

// DefaultAllowedTaxRates are the VAT rates Nigeria currently recognizes.
func DefaultAllowedTaxRates() []decimal.Decimal {
	return []decimal.Decimal{
		decimal.Zero,
		decimal.RequireFromString("7.5"),
	}
}

// Transformer is a pure function over its options: same resolved invoice in,
// same document out. No I/O.
type Transformer struct {
	opts Options
}

// New creates a transformer. Zero-value option fields get NGN defaults.
func New(opts Options) *Transformer {
	if opts.Currency == "" {
		opts.Currency = "NGN"
	}
	if opts.UOM == "" {
		opts.UOM = "ST"
	}
	if opts.TaxCategoryID == "" {
		opts.TaxCategoryID = "STANDARD_VAT"
	}
	if len(opts.AllowedTaxRates) == 0 {
		opts.AllowedTaxRates = DefaultAllowedTaxRates()
	}
	return &Transformer{opts: opts}
}

// Transform validates a resolved invoice and builds the submission document.
// Every violated rule is reported, not just the first.
func (t *Transformer) Transform(resolved *model.ResolvedInvoice) (*firs.Invoice, error) {
	if errs := t.validate(resolved); len(errs) > 0 {
		return nil, &model.ValidationErrors{
			InvoiceNumber: resolved.InvoiceNumber,
			Violations:    errs,
		}
	}
	return t.build(resolved), nil
}

func (t *Transformer) validate(inv *model.ResolvedInvoice) []*model.ValidationError {
	var errs []*model.ValidationError
	add := func(field string, value interface{}, rule, message string) {
		errs = append(errs, model.NewValidationError(field, value, rule, message))
	}

	if inv.InvoiceNumber == "" {
		add("document_identifier", nil, "required", "missing invoice number")
	}
	if inv.IssueDate.IsZero() {
		add("issue_date", nil, "required", "missing issue date")
	}
	if inv.Customer.Name == "" {
		add("customer.party_name", nil, "required", "missing customer name")
	}
	if inv.Customer.TIN == "" {
		add("customer.tin", nil, "required", "missing customer TIN for '"+inv.Customer.Name+"'")
	}
	if len(inv.Lines) == 0 {
		add("invoice_line", nil, "required", "no invoice lines")
	}

	for i, line := range inv.Lines {
		field := func(name string) string {
			return "invoice_line[" + strconv.Itoa(i+1) + "]." + name
		}
		if line.HSCode == "" {
			add(field("hsn_code"), nil, "required", "missing HS code for '"+line.ItemCode+"'")
		}
		if line.ItemName() == "" {
			add(field("item_name"), nil, "required", "missing item name")
		}
		if !money.IsPositive(line.Quantity) {
			add(field("invoiced_quantity"), line.Quantity.String(), "positive", "quantity must be positive")
		}
		if !money.IsPositive(line.UnitPrice) {
			add(field("price_amount"), line.UnitPrice.String(), "positive", "unit price must be positive")
		}
		if !money.IsNonNegative(line.Discount) {
			add(field("discount_amount"), line.Discount.String(), "non-negative", "discount cannot be negative")
		}
		if !t.taxRateAllowed(line.TaxRate) {
			add(field("tax_rate"), line.TaxRate.String(), "allowed-set", "tax rate not in allowed set")
		}
	}

	// Reconcile the source-declared total against the recomputed one. Sage
	// line totals are net of tax, so compare at the net level when declared.
	declared := money.Zero
	recomputed := money.Zero
	hasDeclared := false
	for _, line := range inv.Lines {
		if !line.LineTotal.IsZero() {
			hasDeclared = true
		}
		declared = declared.Add(line.LineTotal)
		recomputed = recomputed.Add(money.LineNet(line.Quantity, line.UnitPrice, line.Discount))
	}
	if hasDeclared && !money.WithinTolerance(declared, recomputed) {
		add("legal_monetary_total", declared.String(), "total-consistency",
			"declared line totals "+declared.String()+" do not match recomputed "+recomputed.String())
	}

	return errs
}

func (t *Transformer) build(inv *model.ResolvedInvoice) *firs.Invoice {
	lines := make([]firs.Line, 0, len(inv.Lines))
	netTotal := money.Zero
	taxTotal := money.Zero

	for _, line := range inv.Lines {
		net := money.LineNet(line.Quantity, line.UnitPrice, line.Discount)
		vat := money.VAT(net, line.TaxRate)
		netTotal = netTotal.Add(net)
		taxTotal = taxTotal.Add(vat)

		lines = append(lines, firs.Line{
			HSNCode:                   line.HSCode,
			PriceAmount:               line.UnitPrice,
			DiscountAmount:            line.Discount,
			UOM:                       t.opts.UOM,
			InvoicedQuantity:          line.Quantity,
			ProductCategory:           line.Category,
			TaxRate:                   line.TaxRate,
			TaxCategoryID:             t.opts.TaxCategoryID,
			ItemName:                  line.ItemName(),
			SellersItemIdentification: line.ItemCode,
			LineExtensionAmount:       net,
		})
	}

	payable := netTotal.Add(taxTotal).Round(money.Places)

	return &firs.Invoice{
		DocumentIdentifier:      inv.InvoiceNumber,
		IssueDate:               inv.IssueDate.Format("2006-01-02"),
		InvoiceTypeCode:         invoiceTypeCode,
		DocumentCurrencyCode:    t.opts.Currency,
		TaxCurrencyCode:         t.opts.Currency,
		AccountingSupplierParty: t.opts.Supplier,
		AccountingCustomerParty: customerParty(inv.Customer),
		InvoiceLines:            lines,
		LegalMonetaryTotal: firs.Totals{
			LineExtensionAmount: netTotal,
			TaxExclusiveAmount:  netTotal,
			TaxInclusiveAmount:  payable,
			PayableAmount:       payable,
		},
	}
}

func (t *Transformer) taxRateAllowed(rate decimal.Decimal) bool {
	for _, allowed := range t.opts.AllowedTaxRates {
		if rate.Equal(allowed) {
			return true
		}
	}
	return false
}

func customerParty(c model.Customer) firs.Party {
	address := firs.PostalAddress{
		StreetName: orDefault(c.Address, "N/A"),
		CityName:   orDefault(c.City, "Lagos"),
		PostalZone: orDefault(c.PostalCode, "100001"),
		Country:    "NG",
	}
	return firs.Party{
		PartyName:           c.Name,
		TIN:                 c.TIN,
		Email:               orDefault(c.Email, "noemail@placeholder.com"),
		Telephone:           orDefault(c.Phone, "+234"),
		BusinessDescription: orDefault(c.BusinessDescription, "Customer"),
		PostalAddress:       address,
	}
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
