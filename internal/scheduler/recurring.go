package scheduler

import (
	"context"
	"time"

	"github.com/dukerupert/apcore/internal/domain"
)

// candidateFrequencies are the canonical cadences spec §4.11 names.
var candidateFrequencies = []int{7, 14, 30, 60, 90}

const (
	minApprovedInvoices = 3
	lookbackDays         = 365
	intervalTolerancePct = 0.20
	matchFractionNeeded  = 0.60
)

// runRecurringPatternDetection implements spec §4.11's weekly job: for
// every vendor with enough approved-invoice history, look for a canonical
// cadence its invoice dates cluster around and record it as the vendor's
// RecurringInvoicePattern. The fraud scorer does not read these patterns:
// the pipeline scores every invoice with suppressRecurring false.
func (s *Scheduler) runRecurringPatternDetection(ctx context.Context) {
	since := time.Now().UTC().AddDate(0, 0, -lookbackDays)

	vendorIDs, err := s.q.ListVendorIDsWithApprovedInvoiceCount(ctx, since, minApprovedInvoices)
	if err != nil {
		s.log.Error().Err(err).Msg("recurring pattern detection: list candidate vendors")
		return
	}

	for _, vendorID := range vendorIDs {
		dates, err := s.q.ListApprovedInvoiceDatesForVendor(ctx, vendorID, since)
		if err != nil {
			s.log.Error().Err(err).Str("vendor_id", vendorID.String()).Msg("recurring pattern detection: list invoice dates")
			continue
		}
		if len(dates) < minApprovedInvoices {
			continue
		}

		frequency, ok := detectFrequency(dates)
		if !ok {
			continue
		}

		avgAmount, err := s.q.MeanApprovedTotal(ctx, vendorID)
		if err != nil {
			s.log.Error().Err(err).Str("vendor_id", vendorID.String()).Msg("recurring pattern detection: mean approved total")
			continue
		}

		pattern := domain.RecurringInvoicePattern{
			VendorID:        vendorID,
			FrequencyDays:   frequency,
			AvgAmount:       avgAmount,
			LastInvoiceDate: dates[len(dates)-1],
		}
		if _, err := s.q.UpsertRecurringPattern(ctx, pattern); err != nil {
			s.log.Error().Err(err).Str("vendor_id", vendorID.String()).Msg("recurring pattern detection: upsert pattern")
		}
	}
}

// detectFrequency finds the candidate cadence that at least
// matchFractionNeeded of consecutive-date intervals fall within
// intervalTolerancePct of, preferring the candidate with the highest
// matching fraction.
func detectFrequency(dates []time.Time) (int, bool) {
	if len(dates) < 2 {
		return 0, false
	}

	intervals := make([]float64, 0, len(dates)-1)
	for i := 1; i < len(dates); i++ {
		intervals = append(intervals, dates[i].Sub(dates[i-1]).Hours()/24)
	}

	bestFreq := 0
	bestFraction := 0.0
	for _, freq := range candidateFrequencies {
		matches := 0
		for _, interval := range intervals {
			lower := float64(freq) * (1 - intervalTolerancePct)
			upper := float64(freq) * (1 + intervalTolerancePct)
			if interval >= lower && interval <= upper {
				matches++
			}
		}
		fraction := float64(matches) / float64(len(intervals))
		if fraction > bestFraction {
			bestFraction = fraction
			bestFreq = freq
		}
	}

	if bestFraction < matchFractionNeeded {
		return 0, false
	}
	return bestFreq, true
}
