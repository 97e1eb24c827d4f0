// Package duplicate implements the exact and fuzzy duplicate-invoice
// checks of spec §4.5.
package duplicate

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/apcore/internal/domain"
	"github.com/dukerupert/apcore/internal/repository"
)

// Config mirrors the tunables from spec §9's Configuration section.
type Config struct {
	AmountTolerancePct float64
	DateWindowDays     int
}

// Result reports what the detector found, if anything, so the caller can
// raise the right exception severity and set the invoice's is_duplicate
// flag (spec §4.5).
type Result struct {
	Hit      bool
	Severity domain.ExceptionSeverity
	MatchID  uuid.UUID
}

type Detector struct {
	q   *repository.Queries
	cfg Config
}

func NewDetector(q *repository.Queries, cfg Config) *Detector {
	return &Detector{q: q, cfg: cfg}
}

// Check runs the exact check first, then the fuzzy check unless exact
// already hit (spec §4.5: "Skip if already captured by exact").
func (d *Detector) Check(ctx context.Context, inv domain.Invoice) (Result, error) {
	if inv.VendorID != nil && inv.InvoiceNumber != "" {
		match, err := d.q.FindExactDuplicate(ctx, *inv.VendorID, inv.InvoiceNumber, inv.ID)
		if err != nil {
			return Result{}, err
		}
		if match != nil {
			return Result{Hit: true, Severity: domain.SeverityHigh, MatchID: match.ID}, nil
		}
	}

	if inv.VendorID == nil || inv.NormalizedAmountUSD.IsZero() {
		return Result{}, nil
	}

	candidates, err := d.q.FindFuzzyDuplicateCandidates(ctx, *inv.VendorID, inv.NormalizedAmountUSD, d.cfg.AmountTolerancePct, inv.ID)
	if err != nil {
		return Result{}, err
	}

	targetDate := referenceDate(inv)
	window := time.Duration(d.cfg.DateWindowDays) * 24 * time.Hour

	for _, c := range candidates {
		candDate := referenceDate(c)
		diff := targetDate.Sub(candDate)
		if diff < 0 {
			diff = -diff
		}
		if diff <= window {
			return Result{Hit: true, Severity: domain.SeverityMedium, MatchID: c.ID}, nil
		}
	}

	return Result{}, nil
}

// referenceDate applies spec §4.5/§8's fallback rule: invoice date when
// present, otherwise the creation timestamp.
func referenceDate(inv domain.Invoice) time.Time {
	if inv.InvoiceDate != nil {
		return *inv.InvoiceDate
	}
	return inv.CreatedAt
}
