package transform_test

import (
	"testing"
	"time"

	dec "github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OsamaASidd/Sage-Nigeria-E-Invoicing/internal/firs"
	"github.com/OsamaASidd/Sage-Nigeria-E-Invoicing/internal/model"
	"github.com/OsamaASidd/Sage-Nigeria-E-Invoicing/internal/transform"
)

func resolvedInvoice() *model.ResolvedInvoice {
	return &model.ResolvedInvoice{
		InvoiceNumber: "INV-001",
		IssueDate:     time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC),
		Customer: model.Customer{
			ID:   "CUST-01",
			Name: "Acme Ltd",
			TIN:  "12345678-0001",
		},
		Lines: []model.ResolvedLine{
			{
				RawLine: model.RawLine{
					ItemCode:    "ITEM-A",
					Description: "Widget",
					Quantity:    dec.NewFromInt(10),
					UnitPrice:   dec.NewFromInt(150),
					Discount:    dec.NewFromInt(50),
					TaxRate:     dec.RequireFromString("7.5"),
					LineTotal:   dec.NewFromInt(1450),
				},
				HSCode:   "8471.30",
				Category: "Electronics",
			},
		},
	}
}

func TestTransformBuildsDocument(t *testing.T) {
	tr := transform.New(transform.Options{})

	doc, err := tr.Transform(resolvedInvoice())
	require.NoError(t, err)

	assert.Equal(t, "INV-001", doc.DocumentIdentifier)
	assert.Equal(t, "2026-01-15", doc.IssueDate)
	assert.Equal(t, "394", doc.InvoiceTypeCode)
	assert.Equal(t, "NGN", doc.DocumentCurrencyCode)
	assert.Equal(t, "NGN", doc.TaxCurrencyCode)
	assert.Equal(t, "Acme Ltd", doc.AccountingCustomerParty.PartyName)
	assert.Equal(t, "12345678-0001", doc.AccountingCustomerParty.TIN)

	require.Len(t, doc.InvoiceLines, 1)
	line := doc.InvoiceLines[0]
	assert.Equal(t, "8471.30", line.HSNCode)
	assert.Equal(t, "Widget", line.ItemName)
	assert.Equal(t, "ITEM-A", line.SellersItemIdentification)
	assert.Equal(t, "ST", line.UOM)
	assert.Equal(t, "STANDARD_VAT", line.TaxCategoryID)
	// 10*150 - 50 = 1450 net
	assert.True(t, line.LineExtensionAmount.Equal(dec.NewFromInt(1450)))

	// Totals: net 1450, VAT 108.75, payable 1558.75
	assert.True(t, doc.LegalMonetaryTotal.LineExtensionAmount.Equal(dec.NewFromInt(1450)))
	assert.True(t, doc.LegalMonetaryTotal.TaxExclusiveAmount.Equal(dec.NewFromInt(1450)))
	assert.True(t, doc.LegalMonetaryTotal.TaxInclusiveAmount.Equal(dec.RequireFromString("1558.75")))
	assert.True(t, doc.LegalMonetaryTotal.PayableAmount.Equal(dec.RequireFromString("1558.75")))
}

func TestTransformStampsSupplier(t *testing.T) {
	supplier := &firs.Party{PartyName: "My Business Ltd", TIN: "99999999-0001"}
	tr := transform.New(transform.Options{Supplier: supplier})

	doc, err := tr.Transform(resolvedInvoice())
	require.NoError(t, err)
	require.NotNil(t, doc.AccountingSupplierParty)
	assert.Equal(t, "My Business Ltd", doc.AccountingSupplierParty.PartyName)
}

func TestTransformCustomerDefaults(t *testing.T) {
	tr := transform.New(transform.Options{})

	doc, err := tr.Transform(resolvedInvoice())
	require.NoError(t, err)

	// Optional contact fields get placeholders the API accepts
	customer := doc.AccountingCustomerParty
	assert.NotEmpty(t, customer.Email)
	assert.NotEmpty(t, customer.Telephone)
	assert.Equal(t, "NG", customer.PostalAddress.Country)
	assert.Equal(t, "Lagos", customer.PostalAddress.CityName)
}

func TestTransformItemNameFallsBackToItemCode(t *testing.T) {
	inv := resolvedInvoice()
	inv.Lines[0].Description = ""

	tr := transform.New(transform.Options{})
	doc, err := tr.Transform(inv)
	require.NoError(t, err)
	assert.Equal(t, "ITEM-A", doc.InvoiceLines[0].ItemName)
}

func TestTransformReportsEveryViolation(t *testing.T) {
	inv := resolvedInvoice()
	inv.Customer.TIN = ""
	inv.Lines[0].HSCode = ""
	inv.Lines[0].Quantity = dec.Zero
	inv.Lines[0].LineTotal = dec.Zero

	tr := transform.New(transform.Options{})
	_, err := tr.Transform(inv)
	require.Error(t, err)

	var verrs *model.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Equal(t, "INV-001", verrs.InvoiceNumber)
	assert.Len(t, verrs.Violations, 3)
}

func TestTransformRejectsUnknownTaxRate(t *testing.T) {
	inv := resolvedInvoice()
	inv.Lines[0].TaxRate = dec.NewFromInt(20)
	inv.Lines[0].LineTotal = dec.Zero

	tr := transform.New(transform.Options{})
	_, err := tr.Transform(inv)
	require.Error(t, err)

	var verrs *model.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	require.Len(t, verrs.Violations, 1)
	assert.Equal(t, "allowed-set", verrs.Violations[0].Rule)
}

func TestTransformTotalReconciliation(t *testing.T) {
	inv := resolvedInvoice()
	// Declared total off by more than a kobo from 10*150-50
	inv.Lines[0].LineTotal = dec.NewFromInt(1400)

	tr := transform.New(transform.Options{})
	_, err := tr.Transform(inv)
	require.Error(t, err)

	var verrs *model.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	require.Len(t, verrs.Violations, 1)
	assert.Equal(t, "total-consistency", verrs.Violations[0].Rule)
}

func TestTransformToleratesKoboRounding(t *testing.T) {
	inv := resolvedInvoice()
	// One kobo off is allowed
	inv.Lines[0].LineTotal = dec.RequireFromString("1450.01")

	tr := transform.New(transform.Options{})
	_, err := tr.Transform(inv)
	require.NoError(t, err)
}

func TestTransformRejectsEmptyInvoice(t *testing.T) {
	inv := resolvedInvoice()
	inv.Lines = nil

	tr := transform.New(transform.Options{})
	_, err := tr.Transform(inv)
	require.Error(t, err)
}
