// Package extraction implements the dual-pass extraction subsystem (spec
// §4.4): two independent LLM passes over the same OCR text, a discrepancy
// comparison between them, and a merge into the invoice's persisted
// scalar fields and line items.
package extraction

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Fields is the parsed output of a single extraction pass, covering the
// fixed scalar set spec §4.4 names plus line items.
type Fields struct {
	InvoiceNumber string
	VendorName    string
	VendorAddress string
	InvoiceDate   string // YYYY-MM-DD, empty if absent
	DueDate       string
	Currency      string
	Subtotal      decimal.Decimal
	TaxAmount     decimal.Decimal
	TotalAmount   decimal.Decimal
	PaymentTerms  string
	RemitTo       string
	LineItems     []LineItemFields
}

type LineItemFields struct {
	Description  string
	Quantity     decimal.Decimal
	UnitPrice    decimal.Decimal
	Amount       decimal.Decimal
	POLineNumber string
}

// scalarFields lists the fixed field set spec §4.4 compares between passes,
// in a stable order so discrepancy output is deterministic.
var scalarFields = []string{
	"invoice_number", "vendor_name", "vendor_address", "invoice_date",
	"due_date", "currency", "subtotal", "tax_amount", "total_amount",
	"payment_terms",
}

func (f Fields) scalar(name string) string {
	switch name {
	case "invoice_number":
		return f.InvoiceNumber
	case "vendor_name":
		return f.VendorName
	case "vendor_address":
		return f.VendorAddress
	case "invoice_date":
		return f.InvoiceDate
	case "due_date":
		return f.DueDate
	case "currency":
		return f.Currency
	case "subtotal":
		return f.Subtotal.String()
	case "tax_amount":
		return f.TaxAmount.String()
	case "total_amount":
		return f.TotalAmount.String()
	case "payment_terms":
		return f.PaymentTerms
	}
	return ""
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ComparePasses returns the names of every field on which the two passes
// disagree, case-folded and whitespace-trimmed (spec §4.4's
// compare_passes). line_items_count is added when the passes produced a
// different number of lines.
func ComparePasses(p1, p2 Fields) []string {
	var discrepancies []string
	for _, name := range scalarFields {
		if normalize(p1.scalar(name)) != normalize(p2.scalar(name)) {
			discrepancies = append(discrepancies, name)
		}
	}
	if len(p1.LineItems) != len(p2.LineItems) {
		discrepancies = append(discrepancies, "line_items_count")
	}
	return discrepancies
}

// MergePasses combines two passes into the persisted result: pass 1 is
// primary for every scalar field; line items fall back to pass 2 only when
// pass 1 found none (spec §4.4's merge_passes).
func MergePasses(p1, p2 Fields) Fields {
	merged := p1
	if len(merged.LineItems) == 0 {
		merged.LineItems = p2.LineItems
	}
	return merged
}
