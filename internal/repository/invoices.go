package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/dukerupert/apcore/internal/domain"
)

// CreateInvoiceParams carries the fields known at ingestion time (spec
// §4.10 stage 1), before extraction has run.
type CreateInvoiceParams struct {
	StoragePath string
	FileName    string
	FileSize    int64
	MimeType    string
	Source      domain.InvoiceSource
	SourceEmail string
}

func (q *Queries) CreateInvoice(ctx context.Context, p CreateInvoiceParams) (domain.Invoice, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO invoices (status, storage_path, file_name, file_size, mime_type, source, source_email)
		VALUES ('ingested', $1, $2, $3, $4, $5, $6)
		RETURNING `+invoiceColumns,
		p.StoragePath, p.FileName, p.FileSize, p.MimeType, string(p.Source), p.SourceEmail,
	)
	return scanInvoice(row)
}

func (q *Queries) GetInvoice(ctx context.Context, id uuid.UUID) (domain.Invoice, error) {
	row := q.db.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id)
	return scanInvoice(row)
}

// GetInvoiceForUpdate takes a row-level lock, used by the matching engine
// and approval service wherever a concurrent decision on the same invoice
// must serialize (spec §4.9 "Concurrency").
func (q *Queries) GetInvoiceForUpdate(ctx context.Context, id uuid.UUID) (domain.Invoice, error) {
	row := q.db.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1 FOR UPDATE`, id)
	return scanInvoice(row)
}

// UpdateInvoiceStatus performs the bare state transition. Callers MUST
// validate domain.CanTransition before calling this, and must write an
// audit row in the same transaction (spec §4.1, §4.8).
func (q *Queries) UpdateInvoiceStatus(ctx context.Context, id uuid.UUID, status domain.InvoiceStatus) error {
	_, err := q.db.Exec(ctx, `UPDATE invoices SET status = $2, updated_at = now() WHERE id = $1`, id, string(status))
	return err
}

// UpdateInvoiceStoragePath backs the mailbox poller: the blob key embeds
// the invoice's own id (spec §4.11 "invoices/<new_id>/<filename>"), so it
// can only be known after the row is created.
func (q *Queries) UpdateInvoiceStoragePath(ctx context.Context, id uuid.UUID, storagePath string) error {
	_, err := q.db.Exec(ctx, `UPDATE invoices SET storage_path = $2, updated_at = now() WHERE id = $1`, id, storagePath)
	return err
}

// UpdateExtractedFieldsParams is the merged result of the dual-pass
// extraction (spec §4.4, §4.10 stage 3).
type UpdateExtractedFieldsParams struct {
	ID            uuid.UUID
	InvoiceNumber string
	VendorID      *uuid.UUID
	VendorNameRaw string
	VendorAddrRaw string
	Currency      string
	Subtotal      decimal.Decimal
	TaxAmount     decimal.Decimal
	TotalAmount   decimal.Decimal
	InvoiceDate   *time.Time
	DueDate       *time.Time
	PaymentTerms  string
	RemitTo       string
	OCRConfidence float64
	ExtractionModel string
}

func (q *Queries) UpdateExtractedFields(ctx context.Context, p UpdateExtractedFieldsParams) error {
	_, err := q.db.Exec(ctx, `
		UPDATE invoices SET
			invoice_number = $2, vendor_id = $3, vendor_name_raw = $4, vendor_addr_raw = $5,
			currency = $6, subtotal = $7, tax_amount = $8, total_amount = $9,
			invoice_date = $10, due_date = $11, payment_terms = $12, remit_to = $13,
			ocr_confidence = $14, extraction_model = $15, updated_at = now()
		WHERE id = $1`,
		p.ID, p.InvoiceNumber, p.VendorID, p.VendorNameRaw, p.VendorAddrRaw,
		p.Currency, p.Subtotal, p.TaxAmount, p.TotalAmount,
		p.InvoiceDate, p.DueDate, p.PaymentTerms, p.RemitTo,
		p.OCRConfidence, p.ExtractionModel,
	)
	return err
}

func (q *Queries) UpdateNormalizedAmount(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error {
	_, err := q.db.Exec(ctx, `UPDATE invoices SET normalized_amount_usd = $2, updated_at = now() WHERE id = $1`, id, amount)
	return err
}

func (q *Queries) UpdateFraudScore(ctx context.Context, id uuid.UUID, score int, signals []string) error {
	_, err := q.db.Exec(ctx, `UPDATE invoices SET fraud_score = $2, fraud_signals = $3, updated_at = now() WHERE id = $1`, id, score, signals)
	return err
}

func (q *Queries) SetDuplicateFlag(ctx context.Context, id uuid.UUID, isDuplicate bool) error {
	_, err := q.db.Exec(ctx, `UPDATE invoices SET is_duplicate = $2, updated_at = now() WHERE id = $1`, id, isDuplicate)
	return err
}

func (q *Queries) SetRecurringPattern(ctx context.Context, id uuid.UUID, patternID *uuid.UUID) error {
	_, err := q.db.Exec(ctx, `UPDATE invoices SET recurring_pattern_id = $2, updated_at = now() WHERE id = $1`, id, patternID)
	return err
}

func (q *Queries) RecordPayment(ctx context.Context, id uuid.UUID, method, reference string) error {
	_, err := q.db.Exec(ctx, `
		UPDATE invoices SET status = 'paid', payment_status = 'paid', payment_date = now(),
			payment_method = $2, payment_reference = $3, updated_at = now()
		WHERE id = $1`, id, method, reference)
	return err
}

// FindExactDuplicate implements the spec §4.5 exact-duplicate check.
func (q *Queries) FindExactDuplicate(ctx context.Context, vendorID uuid.UUID, invoiceNumber string, excludeID uuid.UUID) (*domain.Invoice, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+invoiceColumns+` FROM invoices
		WHERE vendor_id = $1 AND invoice_number = $2 AND id != $3 AND deleted_at IS NULL
		LIMIT 1`, vendorID, invoiceNumber, excludeID)
	inv, err := scanInvoice(row)
	if err != nil {
		return nil, swallowNoRows(err)
	}
	return &inv, nil
}

// FindFuzzyDuplicateCandidates implements the spec §4.5 fuzzy-duplicate
// candidate query: same vendor, normalized amount within tolerance.
// Date-window filtering (invoice-date, falling back to created_at) is
// applied by the caller per spec §8/§9.
func (q *Queries) FindFuzzyDuplicateCandidates(ctx context.Context, vendorID uuid.UUID, amount decimal.Decimal, tolerancePct float64, excludeID uuid.UUID) ([]domain.Invoice, error) {
	lower := amount.Mul(decimal.NewFromFloat(1 - tolerancePct))
	upper := amount.Mul(decimal.NewFromFloat(1 + tolerancePct))
	rows, err := q.db.Query(ctx, `
		SELECT `+invoiceColumns+` FROM invoices
		WHERE vendor_id = $1 AND id != $2 AND deleted_at IS NULL
		  AND normalized_amount_usd BETWEEN $3 AND $4`,
		vendorID, excludeID, lower, upper)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Invoice
	for rows.Next() {
		inv, err := scanInvoiceRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

// CountApprovedInvoices and MeanApprovedTotal feed the fraud signals
// amount_spike and new_vendor (spec §4.6).
func (q *Queries) CountApprovedInvoices(ctx context.Context, vendorID uuid.UUID) (int, error) {
	var n int
	err := q.db.QueryRow(ctx, `
		SELECT count(*) FROM invoices
		WHERE vendor_id = $1 AND status IN ('approved', 'paid') AND deleted_at IS NULL`, vendorID).Scan(&n)
	return n, err
}

func (q *Queries) MeanApprovedTotal(ctx context.Context, vendorID uuid.UUID) (decimal.Decimal, error) {
	var mean decimal.NullDecimal
	err := q.db.QueryRow(ctx, `
		SELECT avg(total_amount) FROM invoices
		WHERE vendor_id = $1 AND status IN ('approved', 'paid') AND deleted_at IS NULL`, vendorID).Scan(&mean)
	if err != nil {
		return decimal.Zero, err
	}
	if !mean.Valid {
		return decimal.Zero, nil
	}
	return mean.Decimal, nil
}

// ListVendorIDsWithApprovedInvoiceCount backs the recurring-pattern
// detection job's vendor candidate list (spec §4.11): every vendor with
// at least minCount approved/paid invoices since the given time.
func (q *Queries) ListVendorIDsWithApprovedInvoiceCount(ctx context.Context, since time.Time, minCount int) ([]uuid.UUID, error) {
	rows, err := q.db.Query(ctx, `
		SELECT vendor_id FROM invoices
		WHERE vendor_id IS NOT NULL AND status IN ('approved', 'paid') AND deleted_at IS NULL
		  AND created_at >= $1
		GROUP BY vendor_id HAVING count(*) >= $2`, since, minCount)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// ListApprovedInvoiceDatesForVendor returns the invoice dates (falling
// back to created_at when invoice_date is unset) of a vendor's
// approved/paid invoices since the given time, ordered chronologically —
// the recurring-pattern detection job's interval input (spec §4.11).
func (q *Queries) ListApprovedInvoiceDatesForVendor(ctx context.Context, vendorID uuid.UUID, since time.Time) ([]time.Time, error) {
	rows, err := q.db.Query(ctx, `
		SELECT coalesce(invoice_date, created_at) AS d FROM invoices
		WHERE vendor_id = $1 AND status IN ('approved', 'paid') AND deleted_at IS NULL
		  AND created_at >= $2
		ORDER BY d ASC`, vendorID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// RecentInvoiceForPotentialDuplicate backs the potential_duplicate fraud
// signal: same vendor, same total, within the configured duplicate
// window (spec §4.6).
func (q *Queries) RecentInvoiceForPotentialDuplicate(ctx context.Context, vendorID uuid.UUID, total decimal.Decimal, windowDays int, excludeID uuid.UUID) (bool, error) {
	var exists bool
	err := q.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM invoices
			WHERE vendor_id = $1 AND total_amount = $2 AND id != $3 AND deleted_at IS NULL
			  AND created_at >= now() - make_interval(days => $4)
		)`, vendorID, total, excludeID, windowDays).Scan(&exists)
	return exists, err
}

func (q *Queries) ListPendingInvoicesWithDueDate(ctx context.Context) ([]domain.Invoice, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+invoiceColumns+` FROM invoices
		WHERE deleted_at IS NULL AND due_date IS NOT NULL
		  AND status NOT IN ('paid', 'rejected', 'cancelled')`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Invoice
	for rows.Next() {
		inv, err := scanInvoiceRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

// --- Invoice line items ---

func (q *Queries) ReplaceInvoiceLineItems(ctx context.Context, invoiceID uuid.UUID, lines []domain.InvoiceLineItem) error {
	if _, err := q.db.Exec(ctx, `DELETE FROM invoice_line_items WHERE invoice_id = $1`, invoiceID); err != nil {
		return err
	}
	for _, l := range lines {
		_, err := q.db.Exec(ctx, `
			INSERT INTO invoice_line_items
				(invoice_id, line_number, description, quantity, unit_price, unit, line_total, category, gl_account, po_line_item_id)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
			invoiceID, l.LineNumber, l.Description, l.Quantity, l.UnitPrice, l.Unit, l.LineTotal, l.Category, l.GLAccount, l.POLineItemID)
		if err != nil {
			return err
		}
	}
	return nil
}

func (q *Queries) GetInvoiceLineItems(ctx context.Context, invoiceID uuid.UUID) ([]domain.InvoiceLineItem, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, invoice_id, created_at, updated_at, line_number, description, quantity, unit_price,
		       unit, line_total, category, gl_account, system_suggested_gl, cost_center, po_line_item_id
		FROM invoice_line_items WHERE invoice_id = $1 ORDER BY line_number`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.InvoiceLineItem
	for rows.Next() {
		var l domain.InvoiceLineItem
		if err := rows.Scan(&l.ID, &l.InvoiceID, &l.CreatedAt, &l.UpdatedAt, &l.LineNumber, &l.Description,
			&l.Quantity, &l.UnitPrice, &l.Unit, &l.LineTotal, &l.Category, &l.GLAccount, &l.SystemSuggestedGL,
			&l.CostCenter, &l.POLineItemID); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (q *Queries) SetLineItemSuggestedGL(ctx context.Context, lineID uuid.UUID, glAccount string) error {
	_, err := q.db.Exec(ctx, `UPDATE invoice_line_items SET system_suggested_gl = $2, updated_at = now() WHERE id = $1`, lineID, glAccount)
	return err
}

// ListApprovedLineItemsForVendor backs GL smart-coding's history lookup
// (SPEC_FULL supplemental feature #1): every coded line item from that
// vendor's approved or paid invoices, for description-similarity matching.
func (q *Queries) ListApprovedLineItemsForVendor(ctx context.Context, vendorID uuid.UUID) ([]domain.InvoiceLineItem, error) {
	rows, err := q.db.Query(ctx, `
		SELECT li.id, li.invoice_id, li.created_at, li.updated_at, li.line_number, li.description, li.quantity, li.unit_price,
		       li.unit, li.line_total, li.category, li.gl_account, li.system_suggested_gl, li.cost_center, li.po_line_item_id
		FROM invoice_line_items li
		JOIN invoices i ON i.id = li.invoice_id
		WHERE i.vendor_id = $1 AND i.status IN ('approved', 'paid') AND i.deleted_at IS NULL AND li.gl_account != ''`, vendorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.InvoiceLineItem
	for rows.Next() {
		var l domain.InvoiceLineItem
		if err := rows.Scan(&l.ID, &l.InvoiceID, &l.CreatedAt, &l.UpdatedAt, &l.LineNumber, &l.Description,
			&l.Quantity, &l.UnitPrice, &l.Unit, &l.LineTotal, &l.Category, &l.GLAccount, &l.SystemSuggestedGL,
			&l.CostCenter, &l.POLineItemID); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// --- Extraction results ---

func (q *Queries) InsertExtractionResult(ctx context.Context, invoiceID uuid.UUID, passNumber int, model string, rawPayload []byte, promptTokens, completionTokens, latencyMs int, discrepantFields []string) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO extraction_results (invoice_id, pass_number, model, raw_payload, prompt_tokens, completion_tokens, latency_ms, discrepant_fields)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		invoiceID, passNumber, model, rawPayload, promptTokens, completionTokens, latencyMs, discrepantFields)
	return err
}

const invoiceColumns = `
	id, status, created_at, updated_at, deleted_at,
	storage_path, file_name, file_size, mime_type,
	source, source_email,
	invoice_number, vendor_id, vendor_name_raw, vendor_addr_raw, purchase_order_id,
	currency, subtotal, tax_amount, total_amount, invoice_date, due_date, payment_terms, remit_to, notes,
	normalized_amount_usd, ocr_confidence, extraction_model,
	fraud_score, fraud_signals, is_duplicate, recurring_pattern_id,
	payment_status, payment_date, payment_method, payment_reference,
	department, category`

// scannable is satisfied by both pgx.Row (QueryRow) and pgx.Rows (Query,
// per-row via Next/Scan).
type scannable interface {
	Scan(dest ...interface{}) error
}

func scanInvoice(row scannable) (domain.Invoice, error) {
	return scanInvoiceRow(row)
}

func scanInvoiceRow(row scannable) (domain.Invoice, error) {
	var inv domain.Invoice
	var status, source string
	var paymentStatus string
	err := row.Scan(
		&inv.ID, &status, &inv.CreatedAt, &inv.UpdatedAt, &inv.DeletedAt,
		&inv.StoragePath, &inv.FileName, &inv.FileSize, &inv.MimeType,
		&source, &inv.SourceEmail,
		&inv.InvoiceNumber, &inv.VendorID, &inv.VendorNameRaw, &inv.VendorAddrRaw, &inv.PurchaseOrderID,
		&inv.Currency, &inv.Subtotal, &inv.TaxAmount, &inv.TotalAmount, &inv.InvoiceDate, &inv.DueDate, &inv.PaymentTerms, &inv.RemitTo, &inv.Notes,
		&inv.NormalizedAmountUSD, &inv.OCRConfidence, &inv.ExtractionModel,
		&inv.FraudScore, &inv.FraudSignals, &inv.IsDuplicate, &inv.RecurringPatternID,
		&paymentStatus, &inv.PaymentDate, &inv.PaymentMethod, &inv.PaymentReference,
		&inv.Department, &inv.Category,
	)
	if err != nil {
		return domain.Invoice{}, err
	}
	inv.Status = domain.InvoiceStatus(status)
	inv.Source = domain.InvoiceSource(source)
	inv.PaymentStatus = domain.PaymentStatus(paymentStatus)
	return inv, nil
}

func swallowNoRows(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	return err
}
