package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/apcore/internal/domain"
)

func scanApprovalTask(row scannable) (domain.ApprovalTask, error) {
	var t domain.ApprovalTask
	var status, channel string
	err := row.Scan(&t.ID, &t.InvoiceID, &t.ApproverID, &t.StepOrder, &t.RequiredCount, &t.ApprovedCount,
		&status, &t.DueAt, &t.DecidedAt, &channel, &t.Notes, &t.DelegatedToID, &t.CreatedAt, &t.UpdatedAt)
	t.Status = domain.ApprovalTaskStatus(status)
	t.DecisionChannel = domain.DecisionChannel(channel)
	return t, err
}

const approvalTaskColumns = `id, invoice_id, approver_id, step_order, required_count, approved_count, status, due_at, decided_at, decision_channel, notes, delegated_to_id, created_at, updated_at`

func (q *Queries) CreateApprovalTask(ctx context.Context, t domain.ApprovalTask) (domain.ApprovalTask, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO approval_tasks (invoice_id, approver_id, step_order, required_count, status, due_at, delegated_to_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING `+approvalTaskColumns,
		t.InvoiceID, t.ApproverID, t.StepOrder, t.RequiredCount, string(t.Status), t.DueAt, t.DelegatedToID)
	return scanApprovalTask(row)
}

// GetApprovalTaskForUpdate row-locks the task so concurrent decisions on the
// same task serialize (spec §4.9 concurrency-safety requirement).
func (q *Queries) GetApprovalTaskForUpdate(ctx context.Context, id uuid.UUID) (domain.ApprovalTask, error) {
	row := q.db.QueryRow(ctx, `SELECT `+approvalTaskColumns+` FROM approval_tasks WHERE id = $1 FOR UPDATE`, id)
	return scanApprovalTask(row)
}

func (q *Queries) ListApprovalTasksForInvoice(ctx context.Context, invoiceID uuid.UUID) ([]domain.ApprovalTask, error) {
	rows, err := q.db.Query(ctx, `SELECT `+approvalTaskColumns+` FROM approval_tasks WHERE invoice_id = $1 ORDER BY step_order`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.ApprovalTask
	for rows.Next() {
		t, err := scanApprovalTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (q *Queries) ListPendingApprovalTasksForApprover(ctx context.Context, approverID uuid.UUID) ([]domain.ApprovalTask, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+approvalTaskColumns+`
		FROM approval_tasks WHERE approver_id = $1 AND status IN ('pending','partially_approved')`, approverID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.ApprovalTask
	for rows.Next() {
		t, err := scanApprovalTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ListOverdueApprovalTasks backs the scheduler's SLA sweep (spec §4.11).
func (q *Queries) ListOverdueApprovalTasks(ctx context.Context, asOf time.Time) ([]domain.ApprovalTask, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+approvalTaskColumns+`
		FROM approval_tasks WHERE status IN ('pending','partially_approved') AND due_at <= $1`, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.ApprovalTask
	for rows.Next() {
		t, err := scanApprovalTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// DecideApprovalTask records the outcome of a decision. The caller must
// hold the row lock from GetApprovalTaskForUpdate within the same
// transaction.
func (q *Queries) DecideApprovalTask(ctx context.Context, id uuid.UUID, status domain.ApprovalTaskStatus, approvedCount int, via domain.DecisionChannel) error {
	_, err := q.db.Exec(ctx, `
		UPDATE approval_tasks
		SET status = $2, approved_count = $3, decided_at = now(), decision_channel = $4, updated_at = now()
		WHERE id = $1`,
		id, string(status), approvedCount, string(via))
	return err
}

func (q *Queries) DelegateApprovalTask(ctx context.Context, id, delegateID uuid.UUID) error {
	_, err := q.db.Exec(ctx, `
		UPDATE approval_tasks SET delegated_to_id = $2, updated_at = now() WHERE id = $1`, id, delegateID)
	return err
}

// --- Approval tokens ---

func scanApprovalToken(row scannable) (domain.ApprovalToken, error) {
	var tok domain.ApprovalToken
	var action string
	err := row.Scan(&tok.ID, &tok.TaskID, &tok.TokenHash, &action, &tok.ExpiresAt, &tok.UsedAt, &tok.IsUsed, &tok.CreatedAt)
	tok.Action = domain.DecisionAction(action)
	return tok, err
}

const approvalTokenColumns = `id, task_id, token_hash, action, expires_at, used_at, is_used, created_at`

func (q *Queries) CreateApprovalToken(ctx context.Context, t domain.ApprovalToken) (domain.ApprovalToken, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO approval_tokens (task_id, token_hash, action, expires_at)
		VALUES ($1,$2,$3,$4)
		RETURNING `+approvalTokenColumns,
		t.TaskID, t.TokenHash, string(t.Action), t.ExpiresAt)
	return scanApprovalToken(row)
}

// GetApprovalTokenForUpdate row-locks the token so it can only be consumed
// once, even under concurrent clicks of the same email link (spec §4.9).
func (q *Queries) GetApprovalTokenForUpdate(ctx context.Context, tokenHash string, action domain.DecisionAction) (*domain.ApprovalToken, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+approvalTokenColumns+`
		FROM approval_tokens WHERE token_hash = $1 AND action = $2 FOR UPDATE`, tokenHash, string(action))
	tok, err := scanApprovalToken(row)
	if err != nil {
		return nil, swallowNoRows(err)
	}
	return &tok, nil
}

func (q *Queries) MarkApprovalTokenUsed(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.Exec(ctx, `UPDATE approval_tokens SET used_at = now(), is_used = true WHERE id = $1`, id)
	return err
}

// --- Delegations ---

func (q *Queries) ActiveDelegationsFor(ctx context.Context, delegatorID uuid.UUID, at time.Time) ([]domain.UserDelegation, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, delegator_id, delegate_id, valid_from, valid_until, is_active, created_at
		FROM user_delegations
		WHERE delegator_id = $1 AND is_active AND valid_from <= $2 AND $2 <= valid_until`, delegatorID, at)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.UserDelegation
	for rows.Next() {
		var d domain.UserDelegation
		if err := rows.Scan(&d.ID, &d.DelegatorID, &d.DelegateID, &d.ValidFrom, &d.ValidUntil, &d.IsActive, &d.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (q *Queries) CreateDelegation(ctx context.Context, d domain.UserDelegation) (domain.UserDelegation, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO user_delegations (delegator_id, delegate_id, valid_from, valid_until, is_active)
		VALUES ($1,$2,$3,$4,true)
		RETURNING id, delegator_id, delegate_id, valid_from, valid_until, is_active, created_at`,
		d.DelegatorID, d.DelegateID, d.ValidFrom, d.ValidUntil)
	var out domain.UserDelegation
	err := row.Scan(&out.ID, &out.DelegatorID, &out.DelegateID, &out.ValidFrom, &out.ValidUntil, &out.IsActive, &out.CreatedAt)
	return out, err
}

// --- Approval matrix rules ---

func (q *Queries) ListActiveMatrixRules(ctx context.Context) ([]domain.ApprovalMatrixRule, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, min_amount, max_amount, department, category, step_order, approver_role, is_active
		FROM approval_matrix_rules WHERE is_active ORDER BY step_order`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.ApprovalMatrixRule
	for rows.Next() {
		var r domain.ApprovalMatrixRule
		if err := rows.Scan(&r.ID, &r.MinAmount, &r.MaxAmount, &r.Department, &r.Category, &r.StepOrder, &r.ApproverRole, &r.IsActive); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
