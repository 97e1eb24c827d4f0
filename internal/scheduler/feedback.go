package scheduler

import (
	"context"
	"time"
)

// runFeedbackAnalysis implements spec §4.11's weekly feedback-analysis
// job by delegating to internal/feedback.Service, which holds the
// threshold logic.
func (s *Scheduler) runFeedbackAnalysis(ctx context.Context) {
	created, err := s.feedback.AnalyzeWindow(ctx, time.Now().UTC())
	if err != nil {
		s.log.Error().Err(err).Msg("feedback analysis: analyze window")
		return
	}
	s.log.Info().Int("recommendations_created", len(created)).Msg("feedback analysis complete")
}
