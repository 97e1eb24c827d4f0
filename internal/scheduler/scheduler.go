// Package scheduler runs the five periodic jobs spec §4.11 names, via
// github.com/robfig/cron/v3 for cadence registration — the same cron
// expression syntax spec §4.11 already describes each job in.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/dukerupert/apcore/internal/broker"
	"github.com/dukerupert/apcore/internal/feedback"
	"github.com/dukerupert/apcore/internal/repository"
	"github.com/dukerupert/apcore/internal/storage"
)

// Config carries every tunable the five jobs need; fields map 1:1 to
// config.Config so callers can pass that struct's values directly.
type Config struct {
	MailboxInboxDir      string
	SLAWarningDaysBefore int
}

// Scheduler owns the cron runtime and every job's dependencies.
type Scheduler struct {
	cron     *cron.Cron
	q        *repository.Queries
	blob     storage.Storage
	feedback *feedback.Service
	broker   *broker.Broker // may be nil; mailbox poll degrades to ticker-only worker wake-up
	cfg      Config
	log      zerolog.Logger
}

func New(q *repository.Queries, blob storage.Storage, feedbackSvc *feedback.Service, b *broker.Broker, cfg Config, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:     cron.New(cron.WithLocation(time.UTC)),
		q:        q,
		blob:     blob,
		feedback: feedbackSvc,
		broker:   b,
		cfg:      cfg,
		log:      log,
	}
}

// Start registers all five jobs and begins the cron runtime in the
// background. Call Stop to drain in-flight runs on shutdown.
func (s *Scheduler) Start(ctx context.Context) error {
	entries := []struct {
		spec string
		name string
		run  func(context.Context)
	}{
		{"*/5 * * * *", "mailbox_poll", s.runMailboxPoll},
		{"0 9 * * *", "sla_sweep", s.runSLASweep},
		{"0 1 * * 1", "compliance_expiry", s.runComplianceExpiry},
		{"0 2 * * 1", "recurring_pattern_detection", s.runRecurringPatternDetection},
		{"0 0 * * 0", "feedback_analysis", s.runFeedbackAnalysis},
	}

	for _, e := range entries {
		run := e.run
		name := e.name
		if _, err := s.cron.AddFunc(e.spec, func() {
			s.log.Info().Str("job", name).Msg("scheduled job starting")
			run(ctx)
			s.log.Info().Str("job", name).Msg("scheduled job finished")
		}); err != nil {
			return fmt.Errorf("scheduler: register %s: %w", name, err)
		}
	}

	s.cron.Start()
	return nil
}

// Stop blocks until every running job finishes.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
