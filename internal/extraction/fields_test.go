package extraction

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

func TestComparePassesFindsScalarDisagreements(t *testing.T) {
	p1 := Fields{InvoiceNumber: "INV-1", VendorName: "Acme Co", TotalAmount: dec("100.00")}
	p2 := Fields{InvoiceNumber: "inv-1", VendorName: "Acme Co ", TotalAmount: dec("101.00")}

	discrepancies := ComparePasses(p1, p2)

	assert.NotContains(t, discrepancies, "invoice_number", "case-folded, trimmed comparison should match")
	assert.NotContains(t, discrepancies, "vendor_name")
	assert.Contains(t, discrepancies, "total_amount")
}

func TestComparePassesFlagsLineItemCountMismatch(t *testing.T) {
	p1 := Fields{LineItems: []LineItemFields{{Description: "widget"}}}
	p2 := Fields{LineItems: []LineItemFields{{Description: "widget"}, {Description: "gadget"}}}

	assert.Contains(t, ComparePasses(p1, p2), "line_items_count")
}

func TestComparePassesNoDiscrepanciesWhenIdentical(t *testing.T) {
	p := Fields{InvoiceNumber: "INV-1", TotalAmount: dec("50.00")}
	assert.Empty(t, ComparePasses(p, p))
}

func TestMergePassesPrefersPass1Scalars(t *testing.T) {
	p1 := Fields{InvoiceNumber: "INV-1", TotalAmount: dec("100.00")}
	p2 := Fields{InvoiceNumber: "INV-2", TotalAmount: dec("200.00")}

	merged := MergePasses(p1, p2)

	assert.Equal(t, "INV-1", merged.InvoiceNumber)
	assert.True(t, merged.TotalAmount.Equal(dec("100.00")))
}

func TestMergePassesFallsBackToPass2LineItemsWhenPass1Empty(t *testing.T) {
	p1 := Fields{InvoiceNumber: "INV-1"}
	p2 := Fields{LineItems: []LineItemFields{{Description: "widget"}}}

	merged := MergePasses(p1, p2)

	assert.Len(t, merged.LineItems, 1)
	assert.Equal(t, "widget", merged.LineItems[0].Description)
}

func TestMergePassesKeepsPass1LineItemsWhenPresent(t *testing.T) {
	p1 := Fields{LineItems: []LineItemFields{{Description: "from pass 1"}}}
	p2 := Fields{LineItems: []LineItemFields{{Description: "from pass 2"}}}

	merged := MergePasses(p1, p2)

	assert.Len(t, merged.LineItems, 1)
	assert.Equal(t, "from pass 1", merged.LineItems[0].Description)
}

func TestParseFieldsTolerantOfMalformedJSON(t *testing.T) {
	assert.Equal(t, Fields{}, ParseFields("not json"))
	assert.Equal(t, Fields{}, ParseFields(""))
}

func TestParseFieldsDecodesAmountsAndLineItems(t *testing.T) {
	raw := `{
		"invoice_number": "INV-42",
		"total_amount": "1234.56",
		"line_items": [{"description": "widget", "quantity": "2", "unit_price": "10.00", "amount": "20.00"}]
	}`

	f := ParseFields(raw)

	assert.Equal(t, "INV-42", f.InvoiceNumber)
	assert.True(t, f.TotalAmount.Equal(dec("1234.56")))
	assert.Len(t, f.LineItems, 1)
	assert.True(t, f.LineItems[0].Amount.Equal(dec("20.00")))
}

func TestParseFieldsTreatsMalformedAmountAsZero(t *testing.T) {
	f := ParseFields(`{"total_amount": "not a number"}`)
	assert.True(t, f.TotalAmount.IsZero())
}
