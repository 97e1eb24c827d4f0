package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// User is an ancillary entity; CRUD over it is out of scope (spec §1), but
// its identifier and role are referenced throughout approval and audit.
type User struct {
	ID    uuid.UUID
	Email string
	Name  string
	Role  string // e.g. "ADMIN", "APPROVER", "ANALYST"
}

// Vendor is an ancillary entity; CRUD over it is out of scope (spec §1),
// but its identifier is referenced by invoices, POs, GRNs, and fraud
// scoring history.
type Vendor struct {
	ID   uuid.UUID
	Name string
}

// AICallLog records every LLM port invocation regardless of outcome
// (spec §4.4).
type AICallLog struct {
	ID              uuid.UUID
	InvoiceID       *uuid.UUID
	Operation       string // "extract" | "narrate"
	Model           string
	PromptTokens    int
	CompletionTokens int
	LatencyMs       int
	Error           string
	CreatedAt       time.Time
}

// AiFeedbackType enumerates the kinds of human correction captured against
// AI output (spec §4.11, supplemental feature #8).
type AiFeedbackType string

const (
	FeedbackAmountCorrection      AiFeedbackType = "amount_correction"
	FeedbackGLOverride            AiFeedbackType = "gl_override"
	FeedbackExceptionStatusChange AiFeedbackType = "exception_status_change"
	FeedbackExtractionDiscrepancy AiFeedbackType = "extraction_discrepancy"
)

// AiFeedback records one human correction against AI output for later
// rule-recommendation analysis (spec §2 component L, §4.11).
type AiFeedback struct {
	ID        uuid.UUID
	InvoiceID uuid.UUID
	Type      AiFeedbackType
	Field     string
	OldValue  string
	NewValue  string
	CreatedAt time.Time
}

// RuleRecommendationStatus is the review lifecycle of a recommendation.
type RuleRecommendationStatus string

const (
	RecommendationPending  RuleRecommendationStatus = "pending"
	RecommendationAccepted RuleRecommendationStatus = "accepted"
	RecommendationRejected RuleRecommendationStatus = "rejected"
)

// RuleRecommendation is an admin-reviewable suggestion generated by the
// weekly feedback-analysis job (spec §4.11). It never changes behavior on
// its own — a human must promote it into a RuleVersion.
type RuleRecommendation struct {
	ID          uuid.UUID
	RuleType    RuleType
	Field       string
	Rationale   string
	SampleCount int
	Status      RuleRecommendationStatus
	CreatedAt   time.Time
}

// AnalyticsReport is a stored KPI snapshot; generation is out of scope
// (spec §1), the type exists only as a referenced entity.
type AnalyticsReport struct {
	ID        uuid.UUID
	Kind      string
	Payload   []byte
	CreatedAt time.Time
}

// SLAAlertSeverity mirrors the two alert bands of the SLA sweep.
type SLAAlertSeverity string

const (
	SLAWarning  SLAAlertSeverity = "warning"
	SLACritical SLAAlertSeverity = "critical"
)

// SLAAlert is emitted by the daily SLA sweep (spec §4.11). The spec's open
// question about two historical spellings ("SlaAlert"/"SLAAlert") is
// resolved here: SLAAlert is canonical.
type SLAAlert struct {
	ID           uuid.UUID
	InvoiceID    uuid.UUID
	Severity     SLAAlertSeverity
	DaysUntilDue int
	AlertDate    time.Time // date component only, used for dedup
	CreatedAt    time.Time
}

// VendorBankHistory is an append-only record of accepted changes to a
// vendor's bank remit-to details (supplemental feature #3). The account
// number field is AES-256-GCM encrypted via internal/crypto before it is
// persisted.
type VendorBankHistory struct {
	ID                   uuid.UUID
	VendorID             uuid.UUID
	EncryptedAccountNumber string
	RoutingNumber        string
	ChangedBy            uuid.UUID
	CreatedAt            time.Time
}

// FraudIncidentStatus is the analyst-triage lifecycle of a FraudIncident.
type FraudIncidentStatus string

const (
	FraudIncidentOpen     FraudIncidentStatus = "open"
	FraudIncidentReviewed FraudIncidentStatus = "reviewed"
	FraudIncidentCleared  FraudIncidentStatus = "cleared"
)

// FraudIncident is opened whenever a vendor bank-account change lands
// within the duplicate window of an invoice referencing that vendor
// (supplemental feature #3).
type FraudIncident struct {
	ID             uuid.UUID
	VendorID       uuid.UUID
	InvoiceID      uuid.UUID
	BankHistoryID  uuid.UUID
	Status         FraudIncidentStatus
	Notes          string
	CreatedAt      time.Time
}

// ExceptionRoutingRule resolves an assignee for a newly created
// ExceptionRecord by (code, severity) before falling back to an
// unassigned queue (supplemental feature #4).
type ExceptionRoutingRule struct {
	ID         uuid.UUID
	Code       ExceptionCode
	Severity   ExceptionSeverity
	AssigneeID uuid.UUID
	IsActive   bool
}

// VendorComplianceDocType enumerates the document kinds tracked for
// compliance-expiry sweeps (supplemental feature #6).
type VendorComplianceDocType string

const (
	ComplianceW9          VendorComplianceDocType = "w9"
	ComplianceInsuranceCOI VendorComplianceDocType = "insurance_certificate"
)

// VendorComplianceDocStatus is the lifecycle of a compliance document.
type VendorComplianceDocStatus string

const (
	ComplianceDocApproved VendorComplianceDocStatus = "approved"
	ComplianceDocActive   VendorComplianceDocStatus = "active"
	ComplianceDocExpired  VendorComplianceDocStatus = "expired"
)

// VendorComplianceDoc tracks a vendor's on-file compliance document
// (supplemental feature #6); the weekly scheduler job flips expired rows.
type VendorComplianceDoc struct {
	ID        uuid.UUID
	VendorID  uuid.UUID
	DocType   VendorComplianceDocType
	Status    VendorComplianceDocStatus
	ExpiresAt time.Time
	StoragePath string
}

// HasApprovedCompliance reports whether the doc's status is approved or
// active. No pipeline stage calls it, and COMPLIANCE_MISSING is not raised.
func (d VendorComplianceDoc) HasApprovedCompliance() bool {
	return d.Status == ComplianceDocApproved || d.Status == ComplianceDocActive
}

// VendorMessage is inbound/outbound correspondence with a vendor, ingested
// via the same mailbox poller used for invoices (reuses the §4.11
// mailbox-poll mechanism per SPEC_FULL, not a separate send path).
type VendorMessage struct {
	ID        uuid.UUID
	VendorID  uuid.UUID
	InvoiceID *uuid.UUID
	Direction string // "inbound" | "outbound"
	Subject   string
	Body      string
	CreatedAt time.Time
}

// RecurringInvoicePattern is a detected periodic billing pattern for a
// vendor (spec §4.11, supplemental feature #7).
type RecurringInvoicePattern struct {
	ID              uuid.UUID
	VendorID        uuid.UUID
	FrequencyDays   int
	AvgAmount       decimal.Decimal
	LastInvoiceDate time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// PredictedWindow returns the [start, end] date range within which the
// next invoice is expected, at +/-20% of the detected frequency, mirroring
// the detection job's own tolerance (spec §4.11).
func (p RecurringInvoicePattern) PredictedWindow() (time.Time, time.Time) {
	tolerance := float64(p.FrequencyDays) * 0.2
	next := p.LastInvoiceDate.AddDate(0, 0, p.FrequencyDays)
	start := next.AddDate(0, 0, -int(tolerance))
	end := next.AddDate(0, 0, int(tolerance))
	return start, end
}
