// Package feedback implements spec §4.11's weekly feedback-analysis job:
// counting AiFeedback rows by type and field over a trailing window and
// turning threshold crossings into admin-reviewable RuleRecommendations.
package feedback

import (
	"context"
	"fmt"
	"time"

	"github.com/dukerupert/apcore/internal/domain"
	"github.com/dukerupert/apcore/internal/repository"
)

// analysisWindow is the "past 7 days" spec §4.11 names.
const analysisWindow = 7 * 24 * time.Hour

// recommendationThreshold is how many corrections on the same
// (type, field) pair within analysisWindow constitute a pattern worth an
// admin's attention. Spec §4.11 names the fields to watch but leaves the
// crossing count unspecified; 3 was chosen to avoid recommending off a
// single outlier correction while still catching a real emerging pattern.
const recommendationThreshold = 3

// watchedFields are the corrections §4.11 calls out by name: amount
// fields, GL overrides, and exception status-changes. extraction
// discrepancy rows (SPEC_FULL supplemental feature #8), which
// internal/extraction records, are not in this list, and AnalyzeWindow
// does not analyze them.
var watchedFields = []struct {
	feedbackType domain.AiFeedbackType
	field        string
}{
	{domain.FeedbackAmountCorrection, "total_amount"},
	{domain.FeedbackAmountCorrection, "subtotal"},
	{domain.FeedbackAmountCorrection, "tax_amount"},
	{domain.FeedbackGLOverride, "gl_account"},
	{domain.FeedbackExceptionStatusChange, "status"},
}

type Service struct {
	q *repository.Queries
}

func NewService(q *repository.Queries) *Service {
	return &Service{q: q}
}

// AnalyzeWindow runs the weekly job: for every watched (type, field) pair,
// count corrections in the trailing window, and create a pending
// RuleRecommendation for each pair that crosses recommendationThreshold.
// Returns the recommendations created.
func (s *Service) AnalyzeWindow(ctx context.Context, now time.Time) ([]domain.RuleRecommendation, error) {
	since := now.Add(-analysisWindow)

	var created []domain.RuleRecommendation
	for _, w := range watchedFields {
		count, err := s.q.CountFeedbackByField(ctx, w.feedbackType, w.field, since)
		if err != nil {
			return created, err
		}
		if count < recommendationThreshold {
			continue
		}

		rec, err := s.q.CreateRuleRecommendation(ctx, domain.RuleRecommendation{
			RuleType:    domain.RuleTypeMatchingTolerance,
			Field:       w.field,
			Rationale:   fmt.Sprintf("%d %s corrections on %q in the past 7 days", count, w.feedbackType, w.field),
			SampleCount: count,
			Status:      domain.RecommendationPending,
		})
		if err != nil {
			return created, err
		}
		created = append(created, rec)
	}
	return created, nil
}
