// Package matching implements the deterministic 2-way/3-way matching
// engine (spec §4.7): PO resolution, line pairing by word-overlap
// similarity, tolerance-based variance checks, and the auto-approval
// gate that follows a successful match.
package matching

import (
	"context"
	"encoding/json"
	"regexp"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dukerupert/apcore/internal/domain"
	"github.com/dukerupert/apcore/internal/repository"
)

// Strategy selects how an invoice is matched against its resolved PO.
type Strategy string

const (
	StrategyTwoWay   Strategy = "2way"
	StrategyThreeWay Strategy = "3way"
	StrategyAuto     Strategy = "auto"
)

var poTokenPattern = regexp.MustCompile(`(?i)PO[-#:\s]?(\S+)`)

// Engine runs matching for one invoice at a time against a pool-bound
// *repository.Queries; Run opens its own transaction on it (spec §4.7
// "Persistence": the whole run commits atomically).
type Engine struct {
	q       *repository.Queries
	glCoder *GLCoder
}

func NewEngine(q *repository.Queries) *Engine {
	return &Engine{q: q, glCoder: NewGLCoder(q)}
}

// Outcome is the result of a completed, persisted matching run.
type Outcome struct {
	MatchResult      domain.MatchResult
	LineMatches      []domain.LineItemMatch
	RequiresApproval bool
}

// Run resolves the invoice's PO, performs line pairing and variance
// checks, persists the MatchResult/LineItemMatch/ExceptionRecord rows,
// advances the invoice's status, and writes one audit entry, all within a
// single transaction opened on e.q (spec §4.7 "Persistence": the whole run
// commits atomically, so the GetInvoiceForUpdate row lock holds until
// every write lands).
func (e *Engine) Run(ctx context.Context, invoiceID uuid.UUID, strategy Strategy, tol domain.MatchingTolerance, ruleVersionID *uuid.UUID, actorID *uuid.UUID) (Outcome, error) {
	tx, err := e.q.BeginTx(ctx)
	if err != nil {
		return Outcome{}, err
	}
	defer tx.Rollback(ctx)

	txq := repository.WithTx(tx)
	txe := &Engine{q: txq, glCoder: NewGLCoder(txq)}

	out, err := txe.run(ctx, invoiceID, strategy, tol, ruleVersionID, actorID)
	if err != nil {
		return Outcome{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Outcome{}, err
	}
	return out, nil
}

// run is Run's body, executed against a *repository.Queries already bound
// to the transaction Run opened.
func (e *Engine) run(ctx context.Context, invoiceID uuid.UUID, strategy Strategy, tol domain.MatchingTolerance, ruleVersionID *uuid.UUID, actorID *uuid.UUID) (Outcome, error) {
	inv, err := e.q.GetInvoiceForUpdate(ctx, invoiceID)
	if err != nil {
		return Outcome{}, err
	}

	po, err := e.resolvePO(ctx, inv)
	if err != nil {
		return Outcome{}, err
	}
	if po == nil {
		return e.finish(ctx, inv, domain.MatchResult{
			InvoiceID:   invoiceID,
			MatchType:   domain.MatchNonPO,
			MatchStatus: domain.MatchStatusException,
			Notes:       "no purchase order could be resolved",
		}, nil, []exceptionToRaise{{Code: domain.ExcMissingPO, Description: "no purchase order could be resolved for this invoice"}}, nil, nil, tol, ruleVersionID, actorID)
	}

	lines, err := e.q.GetInvoiceLineItems(ctx, invoiceID)
	if err != nil {
		return Outcome{}, err
	}
	poLines, err := e.q.GetPOLineItems(ctx, po.ID)
	if err != nil {
		return Outcome{}, err
	}
	grs, err := e.q.ListGoodsReceiptsForPO(ctx, po.ID)
	if err != nil {
		return Outcome{}, err
	}
	hasGRN := len(grs) > 0

	resolved := strategy
	if resolved == StrategyAuto {
		if hasGRN {
			resolved = StrategyThreeWay
		} else {
			resolved = StrategyTwoWay
		}
	}

	headerOK := headerCheck(inv.TotalAmount, po.Total, tol)

	var outcomes []lineOutcome
	if resolved == StrategyThreeWay {
		var allGRLines []domain.GRLineItem
		for _, gr := range grs {
			ls, err := e.q.GetGRLineItems(ctx, gr.ID)
			if err != nil {
				return Outcome{}, err
			}
			allGRLines = append(allGRLines, ls...)
		}
		received := aggregateReceivedQty(poLines, allGRLines)
		for _, line := range lines {
			poLine := pairByLineOrDescription(line.LineNumber, line.Description, poLines)
			var recv decimal.Decimal
			if poLine != nil {
				recv = received[poLine.ID]
			}
			outcomes = append(outcomes, threeWayLineCheck(line, poLine, recv, hasGRN, tol))
		}
	} else {
		for _, line := range lines {
			poLine := pairByLineOrDescription(line.LineNumber, line.Description, poLines)
			outcomes = append(outcomes, twoWayLineCheck(line, poLine, tol))
		}
	}

	matchType := domain.MatchTwoWay
	if resolved == StrategyThreeWay {
		matchType = domain.MatchThreeWay
	}
	status := overallStatus(headerOK, outcomes)

	varianceAbs := inv.TotalAmount.Sub(po.Total).Abs()
	variancePct := decimal.Zero
	if !po.Total.IsZero() {
		variancePct = varianceAbs.Div(po.Total)
	}

	poID, grID := po.ID, (*uuid.UUID)(nil)
	if len(grs) > 0 {
		id := grs[0].ID
		grID = &id
	}

	mr := domain.MatchResult{
		InvoiceID:       invoiceID,
		PurchaseOrderID: &poID,
		GoodsReceiptID:  grID,
		MatchType:       matchType,
		MatchStatus:     status,
		VarianceAbs:     varianceAbs,
		VariancePct:     variancePct,
	}

	lineMatches := make([]domain.LineItemMatch, 0, len(outcomes))
	var exceptions []exceptionToRaise
	for _, o := range outcomes {
		lineMatches = append(lineMatches, domain.LineItemMatch{
			InvoiceLineID:    o.line.ID,
			POLineItemID:     poLineID(o.poLine),
			GRLineItemID:     nil,
			Status:           o.status,
			QtyVariance:      o.qtyVariance,
			PriceVariance:    o.priceVariance,
			PriceVariancePct: o.priceVariancePct,
		})
		for _, code := range o.exceptions {
			exceptions = append(exceptions, exceptionToRaise{Code: code, Description: lineExceptionDescription(code, o)})
		}
	}

	return e.finish(ctx, inv, mr, lineMatches, exceptions, lines, poLines, tol, ruleVersionID, actorID)
}

type exceptionToRaise struct {
	Code        domain.ExceptionCode
	Description string
}

// finish persists the MatchResult, its line matches, every raised
// exception, advances the invoice's status (including the auto-approval
// gate and GL smart-coding), and writes the summarizing audit entry (spec
// §4.7 "Persistence"). invoiceLines/poLines are nil when no PO could be
// resolved, in which case GL coding is skipped.
func (e *Engine) finish(ctx context.Context, inv domain.Invoice, mr domain.MatchResult, lineMatches []domain.LineItemMatch, exceptions []exceptionToRaise, invoiceLines []domain.InvoiceLineItem, poLines []domain.POLineItem, tol domain.MatchingTolerance, ruleVersionID *uuid.UUID, actorID *uuid.UUID) (Outcome, error) {
	mr.RuleVersionID = ruleVersionID

	saved, err := e.q.ReplaceMatchResult(ctx, mr, lineMatches)
	if err != nil {
		return Outcome{}, err
	}

	for _, exc := range exceptions {
		if _, err := e.q.UpsertExceptionRecord(ctx, inv.ID, exc.Code, exc.Description, domain.DefaultSeverity(exc.Code)); err != nil {
			return Outcome{}, err
		}
	}

	nextStatus := domain.InvoiceException
	if mr.MatchStatus == domain.MatchStatusMatched || mr.MatchStatus == domain.MatchStatusPartial {
		nextStatus = domain.InvoiceMatched
	}
	if !domain.CanTransition(inv.Status, nextStatus) {
		return Outcome{}, domain.ErrInvalidTransition("matching.run", inv.Status, nextStatus)
	}
	if err := e.q.UpdateInvoiceStatus(ctx, inv.ID, nextStatus); err != nil {
		return Outcome{}, err
	}

	requiresApproval := false
	if nextStatus == domain.InvoiceMatched {
		if len(invoiceLines) > 0 {
			if err := e.glCoder.SuggestGLCodes(ctx, inv, invoiceLines, poLines); err != nil {
				return Outcome{}, err
			}
		}

		auto, err := e.checkAutoApprove(ctx, inv, mr, tol)
		if err != nil {
			return Outcome{}, err
		}
		requiresApproval = !auto
	}

	if err := e.writeAuditEntry(ctx, inv, mr, actorID); err != nil {
		return Outcome{}, err
	}

	return Outcome{MatchResult: saved, LineMatches: lineMatches, RequiresApproval: requiresApproval}, nil
}

// checkAutoApprove implements the auto-approval gate (spec §4.7): a fully
// matched invoice within the auto-approve threshold advances straight to
// approved; everything else is left at matched, pending an ApprovalTask.
func (e *Engine) checkAutoApprove(ctx context.Context, inv domain.Invoice, mr domain.MatchResult, tol domain.MatchingTolerance) (bool, error) {
	if mr.MatchStatus != domain.MatchStatusMatched {
		return false, nil
	}
	threshold := decimal.NewFromFloat(tol.AutoApproveThreshold)
	if inv.TotalAmount.GreaterThan(threshold) {
		return false, nil
	}
	if !domain.CanTransition(domain.InvoiceMatched, domain.InvoiceApproved) {
		return false, nil
	}
	if err := e.q.UpdateInvoiceStatus(ctx, inv.ID, domain.InvoiceApproved); err != nil {
		return false, err
	}
	return true, nil
}

func (e *Engine) writeAuditEntry(ctx context.Context, inv domain.Invoice, mr domain.MatchResult, actorID *uuid.UUID) error {
	after, _ := json.Marshal(struct {
		MatchType   domain.MatchType   `json:"match_type"`
		MatchStatus domain.MatchStatus `json:"match_status"`
	}{mr.MatchType, mr.MatchStatus})

	_, err := e.q.InsertAuditLog(ctx, domain.AuditLog{
		ActorID:       actorID,
		Action:        "invoice.match",
		EntityType:    "invoice",
		EntityID:      inv.ID,
		After:         after,
		RuleVersionID: mr.RuleVersionID,
	})
	return err
}

// resolvePO implements spec §4.7's three-step PO resolution: direct
// identifier, then a PO-token scan of notes, then the same scan against
// the invoice number.
func (e *Engine) resolvePO(ctx context.Context, inv domain.Invoice) (*domain.PurchaseOrder, error) {
	if inv.PurchaseOrderID != nil {
		po, err := e.q.FindPurchaseOrder(ctx, *inv.PurchaseOrderID)
		if err != nil {
			return nil, err
		}
		if po != nil {
			return po, nil
		}
	}

	if number, ok := extractPOToken(inv.Notes); ok {
		po, err := e.q.FindPurchaseOrderByNumber(ctx, number)
		if err != nil {
			return nil, err
		}
		if po != nil {
			return po, nil
		}
	}

	if number, ok := extractPOToken(inv.InvoiceNumber); ok {
		po, err := e.q.FindPurchaseOrderByNumber(ctx, number)
		if err != nil {
			return nil, err
		}
		if po != nil {
			return po, nil
		}
	}

	return nil, nil
}

func extractPOToken(s string) (string, bool) {
	m := poTokenPattern.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	return m[1], true
}

func poLineID(l *domain.POLineItem) *uuid.UUID {
	if l == nil {
		return nil
	}
	id := l.ID
	return &id
}

func lineExceptionDescription(code domain.ExceptionCode, o lineOutcome) string {
	switch code {
	case domain.ExcPriceVariance:
		return "unit price outside tolerance of the matched PO line"
	case domain.ExcQtyVariance:
		return "quantity outside tolerance of the matched PO line"
	case domain.ExcQtyOverReceipt:
		return "invoiced quantity exceeds total received quantity"
	case domain.ExcGRNNotFound:
		return "purchase order has no recorded goods receipt"
	case domain.ExcMissingPO:
		return "invoice line could not be paired with any PO line"
	default:
		return string(code)
	}
}
