package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditLog is an append-only event record (spec §3, §4.1). The storage
// layer MUST revoke UPDATE/DELETE privileges on this table for every
// application identity; writers may only insert.
type AuditLog struct {
	ID            uuid.UUID
	ActorID       *uuid.UUID
	ActorEmail    string
	Action        string
	EntityType    string
	EntityID      uuid.UUID
	Before        []byte // opaque JSON snapshot, nil on create
	After         []byte // opaque JSON snapshot
	RuleVersionID *uuid.UUID
	IPAddress     string
	Notes         string
	CreatedAt     time.Time
}

// OverrideLog is additive detail recorded alongside an AuditLog row for
// admin manual overrides and field corrections (supplemental feature,
// spec §4.8). It never replaces the audit trail, only supplements it with
// which field changed.
type OverrideLog struct {
	ID         uuid.UUID
	InvoiceID  uuid.UUID
	ActorID    uuid.UUID
	Field      string
	OldValue   string
	NewValue   string
	Reason     string
	CreatedAt  time.Time
}
