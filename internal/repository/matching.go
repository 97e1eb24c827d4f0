package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/dukerupert/apcore/internal/domain"
)

// --- Purchase orders (read-only in the core's view, spec §3) ---

func (q *Queries) GetPurchaseOrder(ctx context.Context, id uuid.UUID) (domain.PurchaseOrder, error) {
	row := q.db.QueryRow(ctx, `
		SELECT id, number, vendor_id, status, currency, total, order_date, created_at, updated_at, deleted_at
		FROM purchase_orders WHERE id = $1`, id)
	return scanPO(row)
}

// FindPurchaseOrder is the nil-safe counterpart to GetPurchaseOrder, used
// by the matching engine's PO-resolution cascade (spec §4.7) where a
// missing or soft-deleted PO must fall through to the next resolution
// step rather than erroring.
func (q *Queries) FindPurchaseOrder(ctx context.Context, id uuid.UUID) (*domain.PurchaseOrder, error) {
	row := q.db.QueryRow(ctx, `
		SELECT id, number, vendor_id, status, currency, total, order_date, created_at, updated_at, deleted_at
		FROM purchase_orders WHERE id = $1 AND deleted_at IS NULL`, id)
	po, err := scanPO(row)
	if err != nil {
		return nil, swallowNoRows(err)
	}
	return &po, nil
}

func (q *Queries) FindPurchaseOrderByNumber(ctx context.Context, number string) (*domain.PurchaseOrder, error) {
	row := q.db.QueryRow(ctx, `
		SELECT id, number, vendor_id, status, currency, total, order_date, created_at, updated_at, deleted_at
		FROM purchase_orders WHERE lower(number) = lower($1) AND deleted_at IS NULL LIMIT 1`, number)
	po, err := scanPO(row)
	if err != nil {
		return nil, swallowNoRows(err)
	}
	return &po, nil
}

func scanPO(row scannable) (domain.PurchaseOrder, error) {
	var po domain.PurchaseOrder
	var status string
	err := row.Scan(&po.ID, &po.Number, &po.VendorID, &status, &po.Currency, &po.Total, &po.OrderDate, &po.CreatedAt, &po.UpdatedAt, &po.DeletedAt)
	po.Status = domain.PurchaseOrderStatus(status)
	return po, err
}

func (q *Queries) GetPOLineItems(ctx context.Context, poID uuid.UUID) ([]domain.POLineItem, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, purchase_order_id, line_number, description, quantity, unit_price, unit, category, gl_account, received_qty, invoiced_qty
		FROM po_line_items WHERE purchase_order_id = $1 ORDER BY line_number`, poID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.POLineItem
	for rows.Next() {
		var l domain.POLineItem
		if err := rows.Scan(&l.ID, &l.PurchaseOrderID, &l.LineNumber, &l.Description, &l.Quantity, &l.UnitPrice, &l.Unit, &l.Category, &l.GLAccount, &l.ReceivedQty, &l.InvoicedQty); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// --- Goods receipts ---

func (q *Queries) ListGoodsReceiptsForPO(ctx context.Context, poID uuid.UUID) ([]domain.GoodsReceipt, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, number, purchase_order_id, vendor_id, received_at, created_at, deleted_at
		FROM goods_receipts WHERE purchase_order_id = $1 AND deleted_at IS NULL`, poID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.GoodsReceipt
	for rows.Next() {
		var g domain.GoodsReceipt
		if err := rows.Scan(&g.ID, &g.Number, &g.PurchaseOrderID, &g.VendorID, &g.ReceivedAt, &g.CreatedAt, &g.DeletedAt); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (q *Queries) GetGRLineItems(ctx context.Context, grID uuid.UUID) ([]domain.GRLineItem, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, goods_receipt_id, po_line_item_id, line_number, description, quantity, unit
		FROM gr_line_items WHERE goods_receipt_id = $1`, grID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.GRLineItem
	for rows.Next() {
		var l domain.GRLineItem
		if err := rows.Scan(&l.ID, &l.GoodsReceiptID, &l.POLineItemID, &l.LineNumber, &l.Description, &l.Quantity, &l.Unit); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// --- Match results ---

// ReplaceMatchResult overwrites any prior MatchResult for the invoice and
// its child LineItemMatch rows atomically (spec §4.7 "Persistence"). The
// caller MUST invoke this within a transaction (q built via WithTx).
func (q *Queries) ReplaceMatchResult(ctx context.Context, mr domain.MatchResult, lines []domain.LineItemMatch) (domain.MatchResult, error) {
	if _, err := q.db.Exec(ctx, `DELETE FROM match_results WHERE invoice_id = $1`, mr.InvoiceID); err != nil {
		return domain.MatchResult{}, err
	}

	row := q.db.QueryRow(ctx, `
		INSERT INTO match_results (invoice_id, purchase_order_id, goods_receipt_id, match_type, match_status, rule_version_id, variance_abs, variance_pct, notes, matched_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9, now())
		RETURNING id, invoice_id, purchase_order_id, goods_receipt_id, match_type, match_status, rule_version_id, variance_abs, variance_pct, notes, matched_at`,
		mr.InvoiceID, mr.PurchaseOrderID, mr.GoodsReceiptID, string(mr.MatchType), string(mr.MatchStatus), mr.RuleVersionID, mr.VarianceAbs, mr.VariancePct, mr.Notes)

	saved, err := scanMatchResult(row)
	if err != nil {
		return domain.MatchResult{}, err
	}

	for _, l := range lines {
		_, err := q.db.Exec(ctx, `
			INSERT INTO line_item_matches (match_result_id, invoice_line_id, po_line_item_id, gr_line_item_id, status, qty_variance, price_variance, price_variance_pct)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			saved.ID, l.InvoiceLineID, l.POLineItemID, l.GRLineItemID, string(l.Status), l.QtyVariance, l.PriceVariance, l.PriceVariancePct)
		if err != nil {
			return domain.MatchResult{}, err
		}
	}

	return saved, nil
}

func scanMatchResult(row scannable) (domain.MatchResult, error) {
	var mr domain.MatchResult
	var matchType, matchStatus string
	err := row.Scan(&mr.ID, &mr.InvoiceID, &mr.PurchaseOrderID, &mr.GoodsReceiptID, &matchType, &matchStatus, &mr.RuleVersionID, &mr.VarianceAbs, &mr.VariancePct, &mr.Notes, &mr.MatchedAt)
	mr.MatchType = domain.MatchType(matchType)
	mr.MatchStatus = domain.MatchStatus(matchStatus)
	return mr, err
}

func (q *Queries) GetMatchResult(ctx context.Context, invoiceID uuid.UUID) (*domain.MatchResult, error) {
	row := q.db.QueryRow(ctx, `
		SELECT id, invoice_id, purchase_order_id, goods_receipt_id, match_type, match_status, rule_version_id, variance_abs, variance_pct, notes, matched_at
		FROM match_results WHERE invoice_id = $1`, invoiceID)
	mr, err := scanMatchResult(row)
	if err != nil {
		return nil, swallowNoRows(err)
	}
	return &mr, nil
}

// --- Exception records (upsert-by-code, spec §3, §4.3) ---

func (q *Queries) UpsertExceptionRecord(ctx context.Context, invoiceID uuid.UUID, code domain.ExceptionCode, description string, severity domain.ExceptionSeverity) (domain.ExceptionRecord, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO exception_records (invoice_id, code, description, severity, status)
		VALUES ($1,$2,$3,$4,'open')
		ON CONFLICT (invoice_id, code) WHERE status = 'open'
		DO UPDATE SET description = EXCLUDED.description, updated_at = now()
		RETURNING id, invoice_id, code, description, severity, status, assignee_id, resolver_id, resolved_at, resolution, ai_root_cause, created_at, updated_at`,
		invoiceID, string(code), description, string(severity))
	return scanException(row)
}

func scanException(row scannable) (domain.ExceptionRecord, error) {
	var e domain.ExceptionRecord
	var code, severity, status string
	err := row.Scan(&e.ID, &e.InvoiceID, &code, &e.Description, &severity, &status, &e.AssigneeID, &e.ResolverID, &e.ResolvedAt, &e.Resolution, &e.AIRootCause, &e.CreatedAt, &e.UpdatedAt)
	e.Code = domain.ExceptionCode(code)
	e.Severity = domain.ExceptionSeverity(severity)
	e.Status = domain.ExceptionStatus(status)
	return e, err
}

func (q *Queries) AssignException(ctx context.Context, id uuid.UUID, assigneeID uuid.UUID) error {
	_, err := q.db.Exec(ctx, `UPDATE exception_records SET assignee_id = $2, updated_at = now() WHERE id = $1`, id, assigneeID)
	return err
}

func (q *Queries) SetExceptionRootCause(ctx context.Context, id uuid.UUID, narrative string) error {
	_, err := q.db.Exec(ctx, `UPDATE exception_records SET ai_root_cause = $2, updated_at = now() WHERE id = $1`, id, narrative)
	return err
}

func (q *Queries) ResolveException(ctx context.Context, id uuid.UUID, resolverID uuid.UUID, status domain.ExceptionStatus, resolution string) error {
	_, err := q.db.Exec(ctx, `
		UPDATE exception_records
		SET status = $2, resolver_id = $3, resolved_at = now(), resolution = $4, updated_at = now()
		WHERE id = $1`, id, string(status), resolverID, resolution)
	return err
}

func (q *Queries) AddExceptionComment(ctx context.Context, c domain.ExceptionComment) (domain.ExceptionComment, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO exception_comments (exception_id, author_id, body)
		VALUES ($1,$2,$3)
		RETURNING id, exception_id, author_id, body, created_at`,
		c.ExceptionID, c.AuthorID, c.Body)
	var out domain.ExceptionComment
	err := row.Scan(&out.ID, &out.ExceptionID, &out.AuthorID, &out.Body, &out.CreatedAt)
	return out, err
}

func (q *Queries) ListExceptionComments(ctx context.Context, exceptionID uuid.UUID) ([]domain.ExceptionComment, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, exception_id, author_id, body, created_at
		FROM exception_comments WHERE exception_id = $1 ORDER BY created_at`, exceptionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.ExceptionComment
	for rows.Next() {
		var c domain.ExceptionComment
		if err := rows.Scan(&c.ID, &c.ExceptionID, &c.AuthorID, &c.Body, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (q *Queries) ListOpenExceptionsForInvoice(ctx context.Context, invoiceID uuid.UUID) ([]domain.ExceptionRecord, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, invoice_id, code, description, severity, status, assignee_id, resolver_id, resolved_at, resolution, ai_root_cause, created_at, updated_at
		FROM exception_records WHERE invoice_id = $1 AND status = 'open'`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.ExceptionRecord
	for rows.Next() {
		e, err := scanException(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
