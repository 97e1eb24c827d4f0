package extraction

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type lineItemDTO struct {
	Description  string `json:"description"`
	Quantity     string `json:"quantity"`
	UnitPrice    string `json:"unit_price"`
	Amount       string `json:"amount"`
	POLineNumber string `json:"po_line_number"`
}

type fieldsDTO struct {
	InvoiceNumber string        `json:"invoice_number"`
	VendorName    string        `json:"vendor_name"`
	VendorAddress string        `json:"vendor_address"`
	InvoiceDate   string        `json:"invoice_date"`
	DueDate       string        `json:"due_date"`
	Currency      string        `json:"currency"`
	Subtotal      string        `json:"subtotal"`
	TaxAmount     string        `json:"tax_amount"`
	TotalAmount   string        `json:"total_amount"`
	PaymentTerms  string        `json:"payment_terms"`
	RemitTo       string        `json:"remit_to"`
	LineItems     []lineItemDTO `json:"line_items"`
}

func decimalOrZero(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// parseDatePtr parses a YYYY-MM-DD string, returning nil for anything
// empty or malformed rather than erroring — an unparseable date is just a
// field extraction didn't manage to produce.
func parseDatePtr(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil
	}
	return &t
}

// ParseFields tolerantly parses a raw (already fence-stripped) JSON
// payload into Fields. A malformed or empty payload yields a zero Fields
// rather than an error — spec §4.4 treats a pass that failed to produce
// usable JSON as a pass with no fields, not a fatal error.
func ParseFields(rawJSON string) Fields {
	var dto fieldsDTO
	if err := json.Unmarshal([]byte(rawJSON), &dto); err != nil {
		return Fields{}
	}

	items := make([]LineItemFields, 0, len(dto.LineItems))
	for _, li := range dto.LineItems {
		items = append(items, LineItemFields{
			Description:  li.Description,
			Quantity:     decimalOrZero(li.Quantity),
			UnitPrice:    decimalOrZero(li.UnitPrice),
			Amount:       decimalOrZero(li.Amount),
			POLineNumber: li.POLineNumber,
		})
	}

	return Fields{
		InvoiceNumber: dto.InvoiceNumber,
		VendorName:    dto.VendorName,
		VendorAddress: dto.VendorAddress,
		InvoiceDate:   dto.InvoiceDate,
		DueDate:       dto.DueDate,
		Currency:      dto.Currency,
		Subtotal:      decimalOrZero(dto.Subtotal),
		TaxAmount:     decimalOrZero(dto.TaxAmount),
		TotalAmount:   decimalOrZero(dto.TotalAmount),
		PaymentTerms:  dto.PaymentTerms,
		RemitTo:       dto.RemitTo,
		LineItems:     items,
	}
}
