package matching

import (
	"context"

	"github.com/dukerupert/apcore/internal/domain"
	"github.com/dukerupert/apcore/internal/repository"
)

// historySimilarityFloor is the word-overlap threshold a vendor's past
// line item must clear to donate its GL account (SPEC_FULL supplemental
// feature #1).
const historySimilarityFloor = 0.3

// categoryGLFallback is the last-resort category -> GL account map used
// when neither vendor history nor the matched PO line supplies one.
var categoryGLFallback = map[string]string{
	"office_supplies": "6100",
	"software":        "6210",
	"travel":          "6300",
	"consulting":      "6400",
	"utilities":       "6500",
	"shipping":        "6600",
	"equipment":       "1500",
	"maintenance":     "6700",
}

const defaultGLAccount = "6900"

// GLCoder proposes a system_suggested_gl_account per invoice line after a
// successful match (SPEC_FULL supplemental feature #1): vendor history
// first, then the paired PO line, then a hardcoded category fallback.
// Purely deterministic, no LLM.
type GLCoder struct {
	q *repository.Queries
}

func NewGLCoder(q *repository.Queries) *GLCoder {
	return &GLCoder{q: q}
}

// SuggestGLCodes runs at the end of a successful match (spec §4.7's
// "matched" or "partial" outcome) and persists a suggestion for every
// invoice line, regardless of whether that particular line matched.
func (g *GLCoder) SuggestGLCodes(ctx context.Context, inv domain.Invoice, lines []domain.InvoiceLineItem, poLines []domain.POLineItem) error {
	var history []domain.InvoiceLineItem
	if inv.VendorID != nil {
		h, err := g.q.ListApprovedLineItemsForVendor(ctx, *inv.VendorID)
		if err != nil {
			return err
		}
		history = h
	}

	for _, line := range lines {
		account := suggestGLAccount(line, history, poLines)
		if account == "" {
			continue
		}
		if err := g.q.SetLineItemSuggestedGL(ctx, line.ID, account); err != nil {
			return err
		}
	}
	return nil
}

func suggestGLAccount(line domain.InvoiceLineItem, history []domain.InvoiceLineItem, poLines []domain.POLineItem) string {
	if account := mostFrequentHistoricalGL(line, history); account != "" {
		return account
	}
	if poLine := pairByLineOrDescription(line.LineNumber, line.Description, poLines); poLine != nil && poLine.GLAccount != "" {
		return poLine.GLAccount
	}
	if account, ok := categoryGLFallback[line.Category]; ok {
		return account
	}
	return defaultGLAccount
}

// mostFrequentHistoricalGL picks the GL account used most often across
// the vendor's description-similar past lines (similarity >= 0.3).
func mostFrequentHistoricalGL(line domain.InvoiceLineItem, history []domain.InvoiceLineItem) string {
	counts := make(map[string]int)
	for _, h := range history {
		if wordOverlapSimilarity(line.Description, h.Description) >= historySimilarityFloor {
			counts[h.GLAccount]++
		}
	}

	best := ""
	bestCount := 0
	for account, count := range counts {
		if count > bestCount {
			best = account
			bestCount = count
		}
	}
	return best
}
