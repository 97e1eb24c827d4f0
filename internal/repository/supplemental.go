package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/apcore/internal/domain"
)

// --- Users / vendors (ancillary, read-mostly) ---

func (q *Queries) GetUser(ctx context.Context, id uuid.UUID) (domain.User, error) {
	row := q.db.QueryRow(ctx, `SELECT id, email, name, role FROM users WHERE id = $1`, id)
	var u domain.User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Role)
	return u, err
}

func (q *Queries) ListUsersByRole(ctx context.Context, role string) ([]domain.User, error) {
	rows, err := q.db.Query(ctx, `SELECT id, email, name, role FROM users WHERE role = $1`, role)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.User
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.Email, &u.Name, &u.Role); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (q *Queries) GetVendor(ctx context.Context, id uuid.UUID) (domain.Vendor, error) {
	row := q.db.QueryRow(ctx, `SELECT id, name FROM vendors WHERE id = $1`, id)
	var v domain.Vendor
	err := row.Scan(&v.ID, &v.Name)
	return v, err
}

// --- AI call log / feedback / recommendations ---

func (q *Queries) InsertAICallLog(ctx context.Context, l domain.AICallLog) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO ai_call_logs (invoice_id, operation, model, prompt_tokens, completion_tokens, latency_ms, error)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		l.InvoiceID, l.Operation, l.Model, l.PromptTokens, l.CompletionTokens, l.LatencyMs, l.Error)
	return err
}

// MostRecentAICallLog backs the narration rate limit (SPEC_FULL supplemental
// feature: one root-cause narrative per invoice per hour): the last LLM
// call logged for this invoice and operation, regardless of success.
func (q *Queries) MostRecentAICallLog(ctx context.Context, invoiceID uuid.UUID, operation string) (*domain.AICallLog, error) {
	row := q.db.QueryRow(ctx, `
		SELECT id, invoice_id, operation, model, prompt_tokens, completion_tokens, latency_ms, error, created_at
		FROM ai_call_logs WHERE invoice_id = $1 AND operation = $2
		ORDER BY created_at DESC LIMIT 1`, invoiceID, operation)
	var l domain.AICallLog
	err := row.Scan(&l.ID, &l.InvoiceID, &l.Operation, &l.Model, &l.PromptTokens, &l.CompletionTokens, &l.LatencyMs, &l.Error, &l.CreatedAt)
	if err != nil {
		return nil, swallowNoRows(err)
	}
	return &l, nil
}

func (q *Queries) InsertAiFeedback(ctx context.Context, f domain.AiFeedback) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO ai_feedback (invoice_id, type, field, old_value, new_value)
		VALUES ($1,$2,$3,$4,$5)`,
		f.InvoiceID, string(f.Type), f.Field, f.OldValue, f.NewValue)
	return err
}

// CountFeedbackByField backs the weekly rule-recommendation job: how many
// corrections landed on a given field within the lookback window (spec
// §4.11, supplemental feature #8).
func (q *Queries) CountFeedbackByField(ctx context.Context, feedbackType domain.AiFeedbackType, field string, since time.Time) (int, error) {
	row := q.db.QueryRow(ctx, `
		SELECT count(*) FROM ai_feedback WHERE type = $1 AND field = $2 AND created_at >= $3`,
		string(feedbackType), field, since)
	var n int
	err := row.Scan(&n)
	return n, err
}

func (q *Queries) CreateRuleRecommendation(ctx context.Context, r domain.RuleRecommendation) (domain.RuleRecommendation, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO rule_recommendations (rule_type, field, rationale, sample_count, status)
		VALUES ($1,$2,$3,$4,'pending')
		RETURNING id, rule_type, field, rationale, sample_count, status, created_at`,
		string(r.RuleType), r.Field, r.Rationale, r.SampleCount)
	var out domain.RuleRecommendation
	var ruleType, status string
	err := row.Scan(&out.ID, &ruleType, &out.Field, &out.Rationale, &out.SampleCount, &status, &out.CreatedAt)
	out.RuleType = domain.RuleType(ruleType)
	out.Status = domain.RuleRecommendationStatus(status)
	return out, err
}

func (q *Queries) ListPendingRuleRecommendations(ctx context.Context) ([]domain.RuleRecommendation, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, rule_type, field, rationale, sample_count, status, created_at
		FROM rule_recommendations WHERE status = 'pending' ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.RuleRecommendation
	for rows.Next() {
		var r domain.RuleRecommendation
		var ruleType, status string
		if err := rows.Scan(&r.ID, &ruleType, &r.Field, &r.Rationale, &r.SampleCount, &status, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.RuleType = domain.RuleType(ruleType)
		r.Status = domain.RuleRecommendationStatus(status)
		out = append(out, r)
	}
	return out, rows.Err()
}

// --- SLA alerts ---

// InsertSLAAlert relies on the unique (invoice_id, severity, alert_date)
// index to silently no-op on a repeat alert for the same day (spec §4.11
// "one alert per invoice per day" dedup rule).
func (q *Queries) InsertSLAAlert(ctx context.Context, a domain.SLAAlert) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO sla_alerts (invoice_id, severity, days_until_due, alert_date)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (invoice_id, severity, alert_date) DO NOTHING`,
		a.InvoiceID, string(a.Severity), a.DaysUntilDue, a.AlertDate)
	return err
}

// --- Vendor bank history / fraud incidents ---

func (q *Queries) InsertVendorBankHistory(ctx context.Context, h domain.VendorBankHistory) (domain.VendorBankHistory, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO vendor_bank_history (vendor_id, encrypted_account_number, routing_number, changed_by)
		VALUES ($1,$2,$3,$4)
		RETURNING id, vendor_id, encrypted_account_number, routing_number, changed_by, created_at`,
		h.VendorID, h.EncryptedAccountNumber, h.RoutingNumber, h.ChangedBy)
	var out domain.VendorBankHistory
	err := row.Scan(&out.ID, &out.VendorID, &out.EncryptedAccountNumber, &out.RoutingNumber, &out.ChangedBy, &out.CreatedAt)
	return out, err
}

// MostRecentBankChange backs the bank-account-changed fraud signal: was
// there a vendor bank change within the invoice's duplicate-detection
// window (spec §4.6 supplemental signal)?
func (q *Queries) MostRecentBankChange(ctx context.Context, vendorID uuid.UUID, since time.Time) (*domain.VendorBankHistory, error) {
	row := q.db.QueryRow(ctx, `
		SELECT id, vendor_id, encrypted_account_number, routing_number, changed_by, created_at
		FROM vendor_bank_history WHERE vendor_id = $1 AND created_at >= $2
		ORDER BY created_at DESC LIMIT 1`, vendorID, since)
	var h domain.VendorBankHistory
	err := row.Scan(&h.ID, &h.VendorID, &h.EncryptedAccountNumber, &h.RoutingNumber, &h.ChangedBy, &h.CreatedAt)
	if err != nil {
		return nil, swallowNoRows(err)
	}
	return &h, nil
}

// FindRecentInvoiceForVendor backs the vendor-bank-change FraudIncident
// trigger: the most recently created invoice referencing vendorID since,
// if any (supplemental feature #3).
func (q *Queries) FindRecentInvoiceForVendor(ctx context.Context, vendorID uuid.UUID, since time.Time) (*uuid.UUID, error) {
	row := q.db.QueryRow(ctx, `
		SELECT id FROM invoices WHERE vendor_id = $1 AND created_at >= $2
		ORDER BY created_at DESC LIMIT 1`, vendorID, since)
	var id uuid.UUID
	if err := row.Scan(&id); err != nil {
		return nil, swallowNoRows(err)
	}
	return &id, nil
}

func (q *Queries) CreateFraudIncident(ctx context.Context, f domain.FraudIncident) (domain.FraudIncident, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO fraud_incidents (vendor_id, invoice_id, bank_history_id, status, notes)
		VALUES ($1,$2,$3,'open',$4)
		RETURNING id, vendor_id, invoice_id, bank_history_id, status, notes, created_at`,
		f.VendorID, f.InvoiceID, f.BankHistoryID, f.Notes)
	var out domain.FraudIncident
	var status string
	err := row.Scan(&out.ID, &out.VendorID, &out.InvoiceID, &out.BankHistoryID, &status, &out.Notes, &out.CreatedAt)
	out.Status = domain.FraudIncidentStatus(status)
	return out, err
}

// --- Exception routing ---

func (q *Queries) FindExceptionRoutingRule(ctx context.Context, code domain.ExceptionCode, severity domain.ExceptionSeverity) (*domain.ExceptionRoutingRule, error) {
	row := q.db.QueryRow(ctx, `
		SELECT id, code, severity, assignee_id, is_active
		FROM exception_routing_rules WHERE code = $1 AND severity = $2 AND is_active LIMIT 1`,
		string(code), string(severity))
	var r domain.ExceptionRoutingRule
	var c, s string
	err := row.Scan(&r.ID, &c, &s, &r.AssigneeID, &r.IsActive)
	if err != nil {
		return nil, swallowNoRows(err)
	}
	r.Code = domain.ExceptionCode(c)
	r.Severity = domain.ExceptionSeverity(s)
	return &r, nil
}

// --- Vendor compliance ---

func (q *Queries) ListVendorComplianceDocs(ctx context.Context, vendorID uuid.UUID) ([]domain.VendorComplianceDoc, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, vendor_id, doc_type, status, expires_at, storage_path
		FROM vendor_compliance_docs WHERE vendor_id = $1`, vendorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.VendorComplianceDoc
	for rows.Next() {
		d, err := scanComplianceDoc(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func scanComplianceDoc(row scannable) (domain.VendorComplianceDoc, error) {
	var d domain.VendorComplianceDoc
	var docType, status string
	err := row.Scan(&d.ID, &d.VendorID, &docType, &status, &d.ExpiresAt, &d.StoragePath)
	d.DocType = domain.VendorComplianceDocType(docType)
	d.Status = domain.VendorComplianceDocStatus(status)
	return d, err
}

// ListExpiringComplianceDocs backs the weekly compliance sweep that flips
// active docs past their expiry date (supplemental feature #6).
func (q *Queries) ListExpiringComplianceDocs(ctx context.Context, asOf time.Time) ([]domain.VendorComplianceDoc, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, vendor_id, doc_type, status, expires_at, storage_path
		FROM vendor_compliance_docs WHERE status != 'expired' AND expires_at <= $1`, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.VendorComplianceDoc
	for rows.Next() {
		d, err := scanComplianceDoc(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (q *Queries) MarkComplianceDocExpired(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.Exec(ctx, `UPDATE vendor_compliance_docs SET status = 'expired' WHERE id = $1`, id)
	return err
}

// --- Vendor messages ---

func (q *Queries) InsertVendorMessage(ctx context.Context, m domain.VendorMessage) (domain.VendorMessage, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO vendor_messages (vendor_id, invoice_id, direction, subject, body)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING id, vendor_id, invoice_id, direction, subject, body, created_at`,
		m.VendorID, m.InvoiceID, m.Direction, m.Subject, m.Body)
	var out domain.VendorMessage
	err := row.Scan(&out.ID, &out.VendorID, &out.InvoiceID, &out.Direction, &out.Subject, &out.Body, &out.CreatedAt)
	return out, err
}

// --- Recurring invoice patterns ---

func (q *Queries) UpsertRecurringPattern(ctx context.Context, p domain.RecurringInvoicePattern) (domain.RecurringInvoicePattern, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO recurring_invoice_patterns (vendor_id, frequency_days, avg_amount, last_invoice_date)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (vendor_id) DO UPDATE SET
			frequency_days = EXCLUDED.frequency_days,
			avg_amount = EXCLUDED.avg_amount,
			last_invoice_date = EXCLUDED.last_invoice_date,
			updated_at = now()
		RETURNING id, vendor_id, frequency_days, avg_amount, last_invoice_date, created_at, updated_at`,
		p.VendorID, p.FrequencyDays, p.AvgAmount, p.LastInvoiceDate)
	var out domain.RecurringInvoicePattern
	err := row.Scan(&out.ID, &out.VendorID, &out.FrequencyDays, &out.AvgAmount, &out.LastInvoiceDate, &out.CreatedAt, &out.UpdatedAt)
	return out, err
}

func (q *Queries) GetRecurringPatternForVendor(ctx context.Context, vendorID uuid.UUID) (*domain.RecurringInvoicePattern, error) {
	row := q.db.QueryRow(ctx, `
		SELECT id, vendor_id, frequency_days, avg_amount, last_invoice_date, created_at, updated_at
		FROM recurring_invoice_patterns WHERE vendor_id = $1`, vendorID)
	var p domain.RecurringInvoicePattern
	err := row.Scan(&p.ID, &p.VendorID, &p.FrequencyDays, &p.AvgAmount, &p.LastInvoiceDate, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, swallowNoRows(err)
	}
	return &p, nil
}
