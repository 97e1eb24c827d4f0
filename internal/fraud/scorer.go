// Package fraud implements the deterministic, weighted-signal fraud
// scorer of spec §4.6, plus the bank-account-change supplemental signal
// (SPEC_FULL supplemental feature #3). No LLM is involved; every signal
// is a plain repository query or arithmetic check.
package fraud

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dukerupert/apcore/internal/domain"
	"github.com/dukerupert/apcore/internal/repository"
)

const (
	WeightRoundAmount        = 10
	WeightAmountSpike        = 20
	WeightPotentialDuplicate = 30
	WeightStaleInvoiceDate   = 10
	WeightNewVendor          = 5
	WeightBankAccountChanged = 25
)

// Thresholds are the configurable risk-band boundaries (spec §9,
// defaults 20/40/60).
type Thresholds struct {
	Medium   int
	High     int
	Critical int
}

// Config bundles the scorer's tunables.
type Config struct {
	Thresholds         Thresholds
	DuplicateWindowDays int
	StaleDays           int
}

// Score is the scorer's output: the summed point total, the names of
// triggered signals (persisted verbatim on the invoice, spec §3), and
// whether the result crosses into FRAUD_FLAG territory.
type Score struct {
	Total        int
	Signals      []string
	ExceedsHigh  bool
}

type Scorer struct {
	q   *repository.Queries
	cfg Config
}

func NewScorer(q *repository.Queries, cfg Config) *Scorer {
	return &Scorer{q: q, cfg: cfg}
}

// Score evaluates every signal for inv and sums the weights of those that
// trigger (spec §4.6). suppressRecurring mirrors the supplemental rule
// that an invoice matching a vendor's predicted recurring window should
// not have amount_spike/new_vendor held against it.
func (s *Scorer) Score(ctx context.Context, inv domain.Invoice, suppressRecurring bool) (Score, error) {
	var total int
	var signals []string

	if isRoundAmount(inv.TotalAmount) {
		total += WeightRoundAmount
		signals = append(signals, "round_amount")
	}

	if inv.VendorID != nil {
		approvedCount, err := s.q.CountApprovedInvoices(ctx, *inv.VendorID)
		if err != nil {
			return Score{}, err
		}

		if !suppressRecurring {
			if approvedCount >= 3 {
				mean, err := s.q.MeanApprovedTotal(ctx, *inv.VendorID)
				if err != nil {
					return Score{}, err
				}
				threshold := mean.Mul(decimal.NewFromInt(2))
				if inv.TotalAmount.GreaterThan(threshold) {
					total += WeightAmountSpike
					signals = append(signals, "amount_spike")
				}
			} else {
				total += WeightNewVendor
				signals = append(signals, "new_vendor")
			}
		}

		dup, err := s.q.RecentInvoiceForPotentialDuplicate(ctx, *inv.VendorID, inv.TotalAmount, s.cfg.DuplicateWindowDays, inv.ID)
		if err != nil {
			return Score{}, err
		}
		if dup {
			total += WeightPotentialDuplicate
			signals = append(signals, "potential_duplicate")
		}

		bankChanged, err := s.bankAccountChanged(ctx, *inv.VendorID)
		if err != nil {
			return Score{}, err
		}
		if bankChanged {
			total += WeightBankAccountChanged
			signals = append(signals, "bank_account_changed")
		}
	}

	if inv.InvoiceDate != nil && time.Since(*inv.InvoiceDate) > time.Duration(s.cfg.StaleDays)*24*time.Hour {
		total += WeightStaleInvoiceDate
		signals = append(signals, "stale_invoice_date")
	}

	return Score{
		Total:       total,
		Signals:     signals,
		ExceedsHigh: total >= s.cfg.Thresholds.High,
	}, nil
}

func (s *Scorer) bankAccountChanged(ctx context.Context, vendorID uuid.UUID) (bool, error) {
	since := time.Now().Add(-time.Duration(s.cfg.DuplicateWindowDays) * 24 * time.Hour)
	h, err := s.q.MostRecentBankChange(ctx, vendorID, since)
	if err != nil {
		return false, err
	}
	return h != nil, nil
}

// isRoundAmount reports whether total is a whole number greater than
// 1000 (spec §4.6's round_amount trigger).
func isRoundAmount(total decimal.Decimal) bool {
	return total.GreaterThan(decimal.NewFromInt(1000)) && total.Equal(total.Truncate(0))
}

// Band classifies a score into its named risk band (spec §4.6), used for
// display and logging rather than decisioning.
func Band(total int, t Thresholds) string {
	switch {
	case total >= t.Critical:
		return "critical"
	case total >= t.High:
		return "high"
	case total >= t.Medium:
		return "medium"
	default:
		return "low"
	}
}
