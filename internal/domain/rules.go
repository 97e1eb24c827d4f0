package domain

import (
	"time"

	"github.com/google/uuid"
)

// RuleVersionStatus is the draft -> published -> superseded lifecycle of a
// RuleVersion (spec §3, §4.2).
type RuleVersionStatus string

const (
	RuleDraft     RuleVersionStatus = "draft"
	RuleInReview  RuleVersionStatus = "in_review"
	RulePublished RuleVersionStatus = "published"
	RuleSuperseded RuleVersionStatus = "superseded"
	RuleRejected  RuleVersionStatus = "rejected"
	RuleArchived  RuleVersionStatus = "archived"
)

// RuleSource records how a RuleVersion's config was produced.
type RuleSource string

const (
	RuleSourcePolicyUpload RuleSource = "policy_upload"
	RuleSourceManual       RuleSource = "manual"
)

// RuleType enumerates the recognized rule-config kinds. Only
// "matching_tolerance" has a defined schema (spec §4.2); other types carry
// an opaque config payload interpreted by their own consumers.
type RuleType string

const (
	RuleTypeMatchingTolerance RuleType = "matching_tolerance"
)

// Rule is a named, typed policy container (spec §3).
type Rule struct {
	ID        uuid.UUID
	Name      string
	Type      RuleType
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RuleVersion is one immutable snapshot of a Rule's configuration (spec
// §3). At most one published version may exist per rule at any time.
type RuleVersion struct {
	ID            uuid.UUID
	RuleID        uuid.UUID
	Version       int
	Status        RuleVersionStatus
	Source        RuleSource
	Config        []byte // opaque structured form (JSON)
	AIExtracted   bool
	ShadowMode    bool
	ChangeSummary string
	CreatedBy     uuid.UUID
	ReviewedBy    *uuid.UUID
	PublishedAt   *time.Time
	ArchivedAt    *time.Time
	CreatedAt     time.Time
}

// CanPublish reports whether a version may legally move to published,
// per spec §4.2 ("draft | in_review -> published is legal").
func (v RuleVersion) CanPublish() bool {
	return v.Status == RuleDraft || v.Status == RuleInReview
}

// CanReject reports whether a version may legally move to rejected.
func (v RuleVersion) CanReject() bool {
	return v.Status == RuleDraft || v.Status == RuleInReview
}

// MatchingTolerance is the structured config for the "matching_tolerance"
// rule type (spec §4.2). Defaults apply to any key missing from a parsed
// config payload.
type MatchingTolerance struct {
	AmountTolerancePct     float64 `json:"amount_tolerance_pct"`
	AmountToleranceAbs     float64 `json:"amount_tolerance_abs"`
	QtyTolerancePct        float64 `json:"qty_tolerance_pct"`
	AutoApproveThreshold   float64 `json:"auto_approve_threshold"`
	AutoApproveRequiresMatch bool  `json:"auto_approve_requires_match"`
}

// DefaultMatchingTolerance returns the hardcoded fallback used when no
// published RuleVersion of type matching_tolerance exists, or when a
// config payload omits a key (spec §4.2).
func DefaultMatchingTolerance() MatchingTolerance {
	return MatchingTolerance{
		AmountTolerancePct:       0.02,
		AmountToleranceAbs:       50.00,
		QtyTolerancePct:          0.00,
		AutoApproveThreshold:     5000.00,
		AutoApproveRequiresMatch: true,
	}
}
