package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ExceptionCode enumerates the typed issue codes a component may raise
// against an invoice (spec §4.3).
type ExceptionCode string

const (
	ExcPriceVariance         ExceptionCode = "PRICE_VARIANCE"
	ExcQtyVariance           ExceptionCode = "QTY_VARIANCE"
	ExcQtyOverReceipt        ExceptionCode = "QTY_OVER_RECEIPT"
	ExcGRNNotFound           ExceptionCode = "GRN_NOT_FOUND"
	ExcMissingPO             ExceptionCode = "MISSING_PO"
	ExcVendorMismatch        ExceptionCode = "VENDOR_MISMATCH"
	ExcDuplicateInvoice      ExceptionCode = "DUPLICATE_INVOICE"
	ExcFraudFlag             ExceptionCode = "FRAUD_FLAG"
	ExcExtractionLowConf     ExceptionCode = "EXTRACTION_LOW_CONFIDENCE"
	ExcExtractionDiscrepancy ExceptionCode = "EXTRACTION_DISCREPANCY"
	ExcComplianceMissing     ExceptionCode = "COMPLIANCE_MISSING"
	ExcAmountOverThreshold   ExceptionCode = "AMOUNT_OVER_THRESHOLD"
	ExcVendorDispute         ExceptionCode = "VENDOR_DISPUTE"
	ExcOther                ExceptionCode = "OTHER"
)

// ExceptionSeverity is the triage priority carried by an ExceptionRecord.
type ExceptionSeverity string

const (
	SeverityLow      ExceptionSeverity = "low"
	SeverityMedium   ExceptionSeverity = "medium"
	SeverityHigh     ExceptionSeverity = "high"
	SeverityCritical ExceptionSeverity = "critical"
)

// DefaultSeverity maps an exception code to its default severity per spec
// §4.3. Callers may override when they have more specific context.
func DefaultSeverity(code ExceptionCode) ExceptionSeverity {
	switch code {
	case ExcFraudFlag:
		return SeverityCritical
	case ExcMissingPO, ExcDuplicateInvoice, ExcGRNNotFound, ExcQtyOverReceipt:
		return SeverityHigh
	case ExcPriceVariance, ExcQtyVariance, ExcVendorDispute:
		return SeverityMedium
	default:
		return SeverityMedium
	}
}

// ExceptionStatus is the lifecycle of an ExceptionRecord.
type ExceptionStatus string

const (
	ExceptionOpen       ExceptionStatus = "open"
	ExceptionInProgress ExceptionStatus = "in_progress"
	ExceptionResolved   ExceptionStatus = "resolved"
	ExceptionEscalated  ExceptionStatus = "escalated"
	ExceptionWaived     ExceptionStatus = "waived"
)

// ExceptionRecord is an open issue requiring human resolution (spec §3).
// At most one `open` record may exist per (invoice, code) pair; creators
// must upsert rather than insert unconditionally.
type ExceptionRecord struct {
	ID          uuid.UUID
	InvoiceID   uuid.UUID
	Code        ExceptionCode
	Description string
	Severity    ExceptionSeverity
	Status      ExceptionStatus

	AssigneeID *uuid.UUID
	ResolverID *uuid.UUID
	ResolvedAt *time.Time
	Resolution string

	AIRootCause string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ExceptionComment is an append-only comment on an ExceptionRecord.
type ExceptionComment struct {
	ID        uuid.UUID
	ExceptionID uuid.UUID
	AuthorID  uuid.UUID
	Body      string
	CreatedAt time.Time
}

// PurchaseOrderStatus is the lifecycle state of an externally-sourced PO.
type PurchaseOrderStatus string

const (
	POOpen      PurchaseOrderStatus = "open"
	POPartial   PurchaseOrderStatus = "partial"
	POClosed    PurchaseOrderStatus = "closed"
	POCancelled PurchaseOrderStatus = "cancelled"
)

// PurchaseOrder is read-only in the core's view; it is imported via CSV
// outside this system's scope (spec §3).
type PurchaseOrder struct {
	ID         uuid.UUID
	Number     string
	VendorID   uuid.UUID
	Status     PurchaseOrderStatus
	Currency   string
	Total      decimal.Decimal
	OrderDate  time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
	DeletedAt  *time.Time
}

// POLineItem is one line of a PurchaseOrder.
type POLineItem struct {
	ID            uuid.UUID
	PurchaseOrderID uuid.UUID
	LineNumber    int
	Description   string
	Quantity      decimal.Decimal
	UnitPrice     decimal.Decimal
	Unit          string
	Category      string
	GLAccount     string
	ReceivedQty   decimal.Decimal
	InvoicedQty   decimal.Decimal
}

// GoodsReceipt records physical receipt of goods against a PO (spec §3).
type GoodsReceipt struct {
	ID         uuid.UUID
	Number     string
	PurchaseOrderID uuid.UUID
	VendorID   uuid.UUID
	ReceivedAt time.Time
	CreatedAt  time.Time
	DeletedAt  *time.Time
}

// GRLineItem is one line of a GoodsReceipt.
type GRLineItem struct {
	ID             uuid.UUID
	GoodsReceiptID uuid.UUID
	POLineItemID   *uuid.UUID
	LineNumber     int
	Description    string
	Quantity       decimal.Decimal
	Unit           string
}

// MatchType identifies whether a MatchResult was produced by a 2-way,
// 3-way, or no-PO comparison.
type MatchType string

const (
	MatchTwoWay  MatchType = "2way"
	MatchThreeWay MatchType = "3way"
	MatchNonPO   MatchType = "non_po"
)

// MatchStatus is the overall disposition of a matching run.
type MatchStatus string

const (
	MatchStatusMatched   MatchStatus = "matched"
	MatchStatusPartial   MatchStatus = "partial"
	MatchStatusException MatchStatus = "exception"
	MatchStatusPending   MatchStatus = "pending"
)

// MatchResult is at most one per invoice, overwritten atomically on
// re-match (spec §3, §4.7).
type MatchResult struct {
	ID              uuid.UUID
	InvoiceID       uuid.UUID
	PurchaseOrderID *uuid.UUID
	GoodsReceiptID  *uuid.UUID
	MatchType       MatchType
	MatchStatus     MatchStatus
	RuleVersionID   *uuid.UUID
	VarianceAbs     decimal.Decimal
	VariancePct     decimal.Decimal
	Notes           string
	MatchedAt       time.Time
}

// LineItemMatchStatus is the per-line disposition within a MatchResult.
type LineItemMatchStatus string

const (
	LineMatched       LineItemMatchStatus = "matched"
	LineQtyVariance   LineItemMatchStatus = "qty_variance"
	LinePriceVariance LineItemMatchStatus = "price_variance"
	LineUnmatched     LineItemMatchStatus = "unmatched"
)

// LineItemMatch is one invoice-line's disposition within a MatchResult
// (spec §3, §4.7).
type LineItemMatch struct {
	ID              uuid.UUID
	MatchResultID   uuid.UUID
	InvoiceLineID   uuid.UUID
	POLineItemID    *uuid.UUID
	GRLineItemID    *uuid.UUID
	Status          LineItemMatchStatus
	QtyVariance     decimal.Decimal
	PriceVariance   decimal.Decimal
	PriceVariancePct decimal.Decimal
}
