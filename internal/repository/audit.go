package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/dukerupert/apcore/internal/domain"
)

// InsertAuditLog appends an event. Callers rely on storage-level privilege
// revocation (spec §4.1), not application code, to keep this table
// append-only; there are deliberately no Update/Delete methods here.
func (q *Queries) InsertAuditLog(ctx context.Context, a domain.AuditLog) (domain.AuditLog, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO audit_log (actor_id, actor_email, action, entity_type, entity_id, before, after, rule_version_id, ip_address, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING id, actor_id, actor_email, action, entity_type, entity_id, before, after, rule_version_id, ip_address, notes, created_at`,
		a.ActorID, a.ActorEmail, a.Action, a.EntityType, a.EntityID, a.Before, a.After, a.RuleVersionID, a.IPAddress, a.Notes)
	var out domain.AuditLog
	err := row.Scan(&out.ID, &out.ActorID, &out.ActorEmail, &out.Action, &out.EntityType, &out.EntityID,
		&out.Before, &out.After, &out.RuleVersionID, &out.IPAddress, &out.Notes, &out.CreatedAt)
	return out, err
}

func (q *Queries) ListAuditLogForEntity(ctx context.Context, entityType string, entityID uuid.UUID) ([]domain.AuditLog, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, actor_id, actor_email, action, entity_type, entity_id, before, after, rule_version_id, ip_address, notes, created_at
		FROM audit_log WHERE entity_type = $1 AND entity_id = $2 ORDER BY created_at DESC`, entityType, entityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.AuditLog
	for rows.Next() {
		var a domain.AuditLog
		if err := rows.Scan(&a.ID, &a.ActorID, &a.ActorEmail, &a.Action, &a.EntityType, &a.EntityID,
			&a.Before, &a.After, &a.RuleVersionID, &a.IPAddress, &a.Notes, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (q *Queries) InsertOverrideLog(ctx context.Context, o domain.OverrideLog) (domain.OverrideLog, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO override_logs (invoice_id, actor_id, field, old_value, new_value, reason)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING id, invoice_id, actor_id, field, old_value, new_value, reason, created_at`,
		o.InvoiceID, o.ActorID, o.Field, o.OldValue, o.NewValue, o.Reason)
	var out domain.OverrideLog
	err := row.Scan(&out.ID, &out.InvoiceID, &out.ActorID, &out.Field, &out.OldValue, &out.NewValue, &out.Reason, &out.CreatedAt)
	return out, err
}
