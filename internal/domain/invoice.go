package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceStatus is the invoice's position in the pipeline state machine
// (spec §4.8).
type InvoiceStatus string

const (
	InvoiceIngested   InvoiceStatus = "ingested"
	InvoiceExtracting InvoiceStatus = "extracting"
	InvoiceExtracted  InvoiceStatus = "extracted"
	InvoiceMatching   InvoiceStatus = "matching"
	InvoiceMatched    InvoiceStatus = "matched"
	InvoiceException  InvoiceStatus = "exception"
	InvoiceApproved   InvoiceStatus = "approved"
	InvoicePaid       InvoiceStatus = "paid"
	InvoiceRejected   InvoiceStatus = "rejected"
	InvoiceCancelled  InvoiceStatus = "cancelled"
)

// invoiceTransitions enumerates the only legal edges in the state machine.
// Anything not listed here fails with ErrInvalidTransition.
var invoiceTransitions = map[InvoiceStatus]map[InvoiceStatus]bool{
	InvoiceIngested:   {InvoiceExtracting: true, InvoiceCancelled: true},
	InvoiceExtracting: {InvoiceExtracted: true, InvoiceCancelled: true},
	InvoiceExtracted:  {InvoiceMatching: true, InvoiceCancelled: true},
	InvoiceMatching:   {InvoiceMatched: true, InvoiceException: true, InvoiceCancelled: true},
	InvoiceMatched:    {InvoiceApproved: true, InvoiceRejected: true, InvoiceCancelled: true},
	InvoiceException:  {InvoiceMatched: true, InvoiceApproved: true, InvoiceRejected: true, InvoiceCancelled: true},
	InvoiceApproved:   {InvoicePaid: true, InvoiceCancelled: true},
	InvoicePaid:       {},
	InvoiceRejected:   {InvoiceCancelled: true},
	InvoiceCancelled:  {},
}

// CanTransition reports whether moving from `from` to `to` is a legal edge
// of the invoice state machine (spec §4.8).
func CanTransition(from, to InvoiceStatus) bool {
	edges, ok := invoiceTransitions[from]
	if !ok {
		return false
	}
	return edges[to]
}

// ErrInvalidTransition returns a typed domain error for an illegal state
// change attempt. Callers (pipeline, matching engine, admin override) never
// apply a partial state change on this error.
func ErrInvalidTransition(op string, from, to InvoiceStatus) error {
	return Errorf(EINVALID, op, "invalid transition: %s -> %s", from, to)
}

// InvoiceSource records how the invoice entered the system.
type InvoiceSource string

const (
	SourceUpload InvoiceSource = "upload"
	SourceEmail  InvoiceSource = "email"
	SourceAPI    InvoiceSource = "api"
)

// PaymentStatus tracks post-approval disbursement bookkeeping. Recording a
// payment is a state transition plus an audit entry only — no payment
// execution happens in this system (spec §1 Non-goals).
type PaymentStatus string

const (
	PaymentStatusUnpaid PaymentStatus = "unpaid"
	PaymentStatusPaid    PaymentStatus = "paid"
)

// Invoice is the pipeline's primary entity (spec §3).
type Invoice struct {
	ID        uuid.UUID
	Status    InvoiceStatus
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time

	StoragePath string
	FileName    string
	FileSize    int64
	MimeType    string

	Source      InvoiceSource
	SourceEmail string

	// Extracted fields (populated by the extraction subsystem, §4.4).
	InvoiceNumber   string
	VendorID        *uuid.UUID
	VendorNameRaw   string
	VendorAddrRaw   string
	PurchaseOrderID *uuid.UUID
	Currency        string
	Subtotal        decimal.Decimal
	TaxAmount       decimal.Decimal
	TotalAmount     decimal.Decimal
	InvoiceDate     *time.Time
	DueDate         *time.Time
	PaymentTerms    string
	RemitTo         string
	Notes           string

	NormalizedAmountUSD decimal.Decimal

	OCRConfidence     float64
	ExtractionModel   string

	FraudScore       int
	FraudSignals     []string
	IsDuplicate      bool
	RecurringPatternID *uuid.UUID

	PaymentStatus    PaymentStatus
	PaymentDate      *time.Time
	PaymentMethod    string
	PaymentReference string

	Department string
	Category   string
}

// InvoiceLineItem is one line of an invoice (spec §3).
type InvoiceLineItem struct {
	ID        uuid.UUID
	InvoiceID uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time

	LineNumber int
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	Unit        string
	LineTotal   decimal.Decimal
	Category    string

	GLAccount         string
	SystemSuggestedGL string
	CostCenter        string

	POLineItemID *uuid.UUID
}
