package matching

import (
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dukerupert/apcore/internal/domain"
)

// minLineSimilarity is the floor below which a description-similarity
// pairing is discarded in favor of leaving the line unmatched (spec §4.7).
const minLineSimilarity = 0.1

// lineOutcome is the per-invoice-line result of a tolerance check, before
// it is translated into a domain.LineItemMatch and any raised exceptions.
type lineOutcome struct {
	line             domain.InvoiceLineItem
	poLine           *domain.POLineItem
	status           domain.LineItemMatchStatus
	qtyVariance      decimal.Decimal
	priceVariance    decimal.Decimal
	priceVariancePct decimal.Decimal
	exceptions       []domain.ExceptionCode
}

// headerCheck implements the 2-way/3-way header tolerance formula (spec
// §4.7): the invoice and PO totals must agree within either the absolute
// or the percentage tolerance.
func headerCheck(invTotal, poTotal decimal.Decimal, tol domain.MatchingTolerance) bool {
	diff := invTotal.Sub(poTotal).Abs()
	if diff.LessThanOrEqual(decimal.NewFromFloat(tol.AmountToleranceAbs)) {
		return true
	}
	if poTotal.IsZero() {
		return false
	}
	return diff.Div(poTotal).LessThanOrEqual(decimal.NewFromFloat(tol.AmountTolerancePct))
}

// pairByLineOrDescription pairs an invoice line to a PO line: first by
// exact line_number match, then by description word-overlap similarity
// (spec §4.7). Returns nil when nothing clears the similarity floor.
func pairByLineOrDescription(lineNumber int, description string, poLines []domain.POLineItem) *domain.POLineItem {
	for i := range poLines {
		if poLines[i].LineNumber == lineNumber {
			return &poLines[i]
		}
	}
	return pairByDescription(description, poLines)
}

func pairByDescription(description string, poLines []domain.POLineItem) *domain.POLineItem {
	var best *domain.POLineItem
	bestScore := 0.0
	for i := range poLines {
		score := wordOverlapSimilarity(description, poLines[i].Description)
		if score > bestScore {
			bestScore = score
			best = &poLines[i]
		}
	}
	if bestScore < minLineSimilarity {
		return nil
	}
	return best
}

// wordOverlapSimilarity computes |A∩B| / max(|A|,|B|) over lowercase word
// sets (spec §4.7).
func wordOverlapSimilarity(a, b string) float64 {
	setA, setB := wordSet(a), wordSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	intersection := 0
	for w := range setA {
		if setB[w] {
			intersection++
		}
	}
	max := len(setA)
	if len(setB) > max {
		max = len(setB)
	}
	return float64(intersection) / float64(max)
}

func wordSet(s string) map[string]bool {
	words := strings.Fields(strings.ToLower(s))
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}

// twoWayLineCheck applies the 2-way per-line tolerance formulas and the
// status/exception mapping of spec §4.7.
func twoWayLineCheck(line domain.InvoiceLineItem, po *domain.POLineItem, tol domain.MatchingTolerance) lineOutcome {
	if po == nil {
		return lineOutcome{line: line, status: domain.LineUnmatched, exceptions: []domain.ExceptionCode{domain.ExcMissingPO}}
	}

	qtyVariance := line.Quantity.Sub(po.Quantity)
	priceVariance := line.UnitPrice.Sub(po.UnitPrice)

	var priceVariancePct decimal.Decimal
	if !po.UnitPrice.IsZero() {
		priceVariancePct = priceVariance.Abs().Div(po.UnitPrice)
	}

	qtyOK := qtyVariance.IsZero()
	if !po.Quantity.IsZero() {
		qtyOK = qtyVariance.Abs().Div(po.Quantity).LessThanOrEqual(decimal.NewFromFloat(tol.QtyTolerancePct))
	}

	priceOK := priceVariancePct.LessThanOrEqual(decimal.NewFromFloat(tol.AmountTolerancePct)) ||
		priceVariance.Abs().LessThanOrEqual(decimal.NewFromFloat(tol.AmountToleranceAbs))

	out := lineOutcome{
		line: line, poLine: po,
		qtyVariance: qtyVariance, priceVariance: priceVariance, priceVariancePct: priceVariancePct,
	}

	switch {
	case qtyOK && priceOK:
		out.status = domain.LineMatched
	case !priceOK && qtyOK:
		out.status = domain.LinePriceVariance
		out.exceptions = []domain.ExceptionCode{domain.ExcPriceVariance}
	case priceOK && !qtyOK:
		out.status = domain.LineQtyVariance
		out.exceptions = []domain.ExceptionCode{domain.ExcQtyVariance}
	default:
		out.status = domain.LineQtyVariance
		out.exceptions = []domain.ExceptionCode{domain.ExcQtyVariance, domain.ExcPriceVariance}
	}

	return out
}

// aggregateReceivedQty sums goods-receipt line quantities per PO line,
// pairing GR lines by their stored po_line_item_id when present and by
// description similarity otherwise (spec §4.7).
func aggregateReceivedQty(poLines []domain.POLineItem, grLines []domain.GRLineItem) map[uuid.UUID]decimal.Decimal {
	received := make(map[uuid.UUID]decimal.Decimal)
	for _, gr := range grLines {
		var poLineID uuid.UUID
		if gr.POLineItemID != nil {
			poLineID = *gr.POLineItemID
		} else {
			best := pairByDescription(gr.Description, poLines)
			if best == nil {
				continue
			}
			poLineID = best.ID
		}
		received[poLineID] = received[poLineID].Add(gr.Quantity)
	}
	return received
}

// threeWayLineCheck applies the GRN-aggregated quantity check of spec
// §4.7: invoiced quantity may not exceed total received quantity beyond
// tolerance, and a PO with no goods receipt at all raises GRN_NOT_FOUND
// without a quantity comparison.
func threeWayLineCheck(line domain.InvoiceLineItem, po *domain.POLineItem, received decimal.Decimal, hasGRN bool, tol domain.MatchingTolerance) lineOutcome {
	if po == nil {
		return lineOutcome{line: line, status: domain.LineUnmatched, exceptions: []domain.ExceptionCode{domain.ExcMissingPO}}
	}
	if !hasGRN {
		return lineOutcome{line: line, poLine: po, status: domain.LineUnmatched, exceptions: []domain.ExceptionCode{domain.ExcGRNNotFound}}
	}

	qtyVariance := line.Quantity.Sub(received)
	maxAllowed := received.Mul(decimal.NewFromFloat(1 + tol.QtyTolerancePct))

	if line.Quantity.LessThanOrEqual(maxAllowed) {
		return lineOutcome{line: line, poLine: po, status: domain.LineMatched, qtyVariance: qtyVariance}
	}
	return lineOutcome{
		line: line, poLine: po, status: domain.LineQtyVariance, qtyVariance: qtyVariance,
		exceptions: []domain.ExceptionCode{domain.ExcQtyOverReceipt},
	}
}

// overallStatus derives the matching run's disposition (spec §4.7): a
// header failure is always an exception; a fully clean line set is
// matched; zero matched lines is an exception; anything in between is
// partial.
func overallStatus(headerOK bool, outcomes []lineOutcome) domain.MatchStatus {
	if !headerOK {
		return domain.MatchStatusException
	}

	matchedCount := 0
	anyOutOfTolerance := false
	for _, o := range outcomes {
		switch o.status {
		case domain.LineMatched:
			matchedCount++
		default:
			anyOutOfTolerance = true
		}
	}

	if !anyOutOfTolerance {
		return domain.MatchStatusMatched
	}
	if matchedCount == 0 {
		return domain.MatchStatusException
	}
	return domain.MatchStatusPartial
}
