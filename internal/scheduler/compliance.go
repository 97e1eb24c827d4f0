package scheduler

import (
	"context"
	"time"
)

// runComplianceExpiry implements spec §4.11's weekly compliance sweep:
// flip every VendorComplianceDoc past its expiry date to expired.
func (s *Scheduler) runComplianceExpiry(ctx context.Context) {
	docs, err := s.q.ListExpiringComplianceDocs(ctx, time.Now().UTC())
	if err != nil {
		s.log.Error().Err(err).Msg("compliance expiry: list expiring docs")
		return
	}

	for _, doc := range docs {
		if err := s.q.MarkComplianceDocExpired(ctx, doc.ID); err != nil {
			s.log.Error().Err(err).Str("doc_id", doc.ID.String()).Msg("compliance expiry: mark expired")
		}
	}
}
