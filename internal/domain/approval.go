package domain

import (
	"time"

	"github.com/google/uuid"
)

// ApprovalTaskStatus is the lifecycle of one approval-chain step (spec §3).
type ApprovalTaskStatus string

const (
	TaskPending            ApprovalTaskStatus = "pending"
	TaskPartiallyApproved  ApprovalTaskStatus = "partially_approved"
	TaskApproved           ApprovalTaskStatus = "approved"
	TaskRejected           ApprovalTaskStatus = "rejected"
	TaskDelegated          ApprovalTaskStatus = "delegated"
	TaskExpired            ApprovalTaskStatus = "expired"
)

// DecisionChannel records how a decision was submitted.
type DecisionChannel string

const (
	ChannelWeb   DecisionChannel = "web"
	ChannelEmail DecisionChannel = "email"
)

// DecisionAction is the verb of an approval decision.
type DecisionAction string

const (
	ActionApprove DecisionAction = "approve"
	ActionReject  DecisionAction = "reject"
)

// ApprovalTask is one step in an approval chain (spec §3, §4.9).
type ApprovalTask struct {
	ID             uuid.UUID
	InvoiceID      uuid.UUID
	ApproverID     uuid.UUID
	StepOrder      int
	RequiredCount  int
	ApprovedCount  int
	Status         ApprovalTaskStatus
	DueAt          time.Time
	DecidedAt      *time.Time
	DecisionChannel DecisionChannel
	Notes          string
	DelegatedToID  *uuid.UUID
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// CanDecide reports whether a decision may be applied to a task in this
// status. Only pending or partially-approved tasks accept new decisions
// (spec §4.9); reject is legal from both.
func (t ApprovalTask) CanDecide() bool {
	return t.Status == TaskPending || t.Status == TaskPartiallyApproved
}

// ApprovalToken is a one-time-use HMAC token bound to a task and action
// (spec §3, §4.9, §6). Only the hash is ever persisted.
type ApprovalToken struct {
	ID        uuid.UUID
	TaskID    uuid.UUID
	TokenHash string
	Action    DecisionAction
	ExpiresAt time.Time
	UsedAt    *time.Time
	IsUsed    bool
	CreatedAt time.Time
}

// Expired reports whether the token is past its expiry instant. A token
// exactly at its expiry instant is treated as expired (spec §8).
func (t ApprovalToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// UserDelegation temporarily substitutes a delegate for an approver across
// a date range (spec §4.9).
type UserDelegation struct {
	ID          uuid.UUID
	DelegatorID uuid.UUID
	DelegateID  uuid.UUID
	ValidFrom   time.Time
	ValidUntil  time.Time
	IsActive    bool
	CreatedAt   time.Time
}

// Active reports whether the delegation covers the given date.
func (d UserDelegation) Active(now time.Time) bool {
	return d.IsActive && !now.Before(d.ValidFrom) && !now.After(d.ValidUntil)
}

// ApprovalMatrixRule determines which approver role handles which step for
// an invoice, keyed by amount range, department, and category (spec §4.9).
// Nullable bounds are unbounded; a nil department/category matches any
// invoice.
type ApprovalMatrixRule struct {
	ID           uuid.UUID
	MinAmount    *float64
	MaxAmount    *float64
	Department   *string
	Category     *string
	StepOrder    int
	ApproverRole string
	IsActive     bool
}

// ApprovalChainStep is one resolved step of build_approval_chain (spec
// §4.9), before delegation resolution is applied at task-creation time.
type ApprovalChainStep struct {
	StepOrder    int
	ApproverRole string
}
