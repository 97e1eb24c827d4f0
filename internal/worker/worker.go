// Package worker implements the bounded-concurrency job poller (spec §5)
// that drives invoices through internal/pipeline.Orchestrator. Structure
// (ticker + semaphore + claim-or-skip poll loop) is carried over from the
// teacher's worker, generalized from its multi-domain job dispatch down to
// the single pipeline-run job type this system has.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/dukerupert/apcore/internal/broker"
	"github.com/dukerupert/apcore/internal/jobs"
	"github.com/dukerupert/apcore/internal/metrics"
	"github.com/dukerupert/apcore/internal/pipeline"
	"github.com/dukerupert/apcore/internal/repository"
)

// Config holds worker tuning, sourced from config.Config's WORKER_* fields.
type Config struct {
	WorkerID       string
	PollInterval   time.Duration
	MaxConcurrency int
	Queue          string
}

// Worker polls the job table and runs each claimed job to completion.
type Worker struct {
	config  Config
	queries *repository.Queries
	orch    *pipeline.Orchestrator
	metrics *metrics.Business
	broker  *broker.Broker // may be nil; wake-ups are an optimization, not a correctness requirement
	log     zerolog.Logger
}

// SetBroker attaches a wake-up broker so the poll loop can react to a
// just-enqueued job immediately instead of waiting for PollInterval.
func (w *Worker) SetBroker(b *broker.Broker) { w.broker = b }

func NewWorker(queries *repository.Queries, orch *pipeline.Orchestrator, m *metrics.Business, config Config, log zerolog.Logger) *Worker {
	if config.WorkerID == "" {
		config.WorkerID = fmt.Sprintf("worker-%d", time.Now().UnixNano())
	}
	if config.PollInterval == 0 {
		config.PollInterval = time.Second
	}
	if config.MaxConcurrency == 0 {
		config.MaxConcurrency = 4
	}
	if config.Queue == "" {
		config.Queue = jobs.Queue
	}

	return &Worker{config: config, queries: queries, orch: orch, metrics: m, log: log}
}

// Start runs the poll loop until ctx is cancelled. Each tick tries to
// acquire a concurrency slot and claim one job; if the queue is empty the
// tick is a no-op, never a busy loop, since ClaimNextJob only locks a row
// that already satisfies run_after <= now().
func (w *Worker) Start(ctx context.Context) error {
	w.log.Info().Str("worker_id", w.config.WorkerID).Str("queue", w.config.Queue).
		Dur("poll_interval", w.config.PollInterval).Int("max_concurrency", w.config.MaxConcurrency).
		Msg("worker starting")

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	sem := make(chan struct{}, w.config.MaxConcurrency)

	wake := make(chan struct{}, 1)
	if w.broker != nil {
		if err := w.broker.Subscribe(func() {
			select {
			case wake <- struct{}{}:
			default:
			}
		}); err != nil {
			w.log.Warn().Err(err).Msg("worker: broker subscribe failed, falling back to ticker-only polling")
		}
	}

	tryClaim := func() {
		select {
		case sem <- struct{}{}:
			go func() {
				defer func() { <-sem }()
				w.claimAndProcess(ctx)
			}()
		default:
			// at max concurrency, skip this signal
		}
	}

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Str("worker_id", w.config.WorkerID).Msg("worker shutting down")
			return ctx.Err()

		case <-ticker.C:
			tryClaim()

		case <-wake:
			tryClaim()
		}
	}
}

func (w *Worker) claimAndProcess(ctx context.Context) {
	job, err := w.queries.ClaimNextJob(ctx, w.config.Queue, w.config.WorkerID)
	if err != nil {
		w.log.Error().Err(err).Msg("claim job failed")
		return
	}
	if job == nil {
		return
	}

	start := time.Now()
	w.log.Info().Str("job_id", job.ID.String()).Str("job_type", job.JobType).Int("attempts", job.Attempts).Msg("processing job")

	if err := w.processJob(ctx, job); err != nil {
		w.log.Error().Err(err).Str("job_id", job.ID.String()).Str("job_type", job.JobType).Msg("job failed")
		backoff := backoffFor(job.Attempts)
		if markErr := w.queries.MarkJobFailed(ctx, job.ID, err.Error(), time.Now().Add(backoff)); markErr != nil {
			w.log.Error().Err(markErr).Str("job_id", job.ID.String()).Msg("mark job failed errored")
		}
		if w.metrics != nil {
			w.metrics.JobsFailed.WithLabelValues(job.JobType).Inc()
		}
		return
	}

	if err := w.queries.MarkJobSucceeded(ctx, job.ID); err != nil {
		w.log.Error().Err(err).Str("job_id", job.ID.String()).Msg("mark job succeeded errored")
	}
	if w.metrics != nil {
		w.metrics.JobsProcessed.WithLabelValues(job.JobType).Inc()
		w.metrics.JobDuration.WithLabelValues(job.JobType).Observe(time.Since(start).Seconds())
	}
	w.log.Info().Str("job_id", job.ID.String()).Str("job_type", job.JobType).Msg("job completed")
}

func (w *Worker) processJob(ctx context.Context, job *repository.Job) error {
	switch job.JobType {
	case jobs.JobTypePipelineRun:
		var payload jobs.PipelineRunPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return fmt.Errorf("unmarshal pipeline run payload: %w", err)
		}
		return w.orch.Run(ctx, payload.InvoiceID)
	default:
		return fmt.Errorf("unknown job type: %s", job.JobType)
	}
}

// backoffFor is a simple doubling backoff capped at five minutes; spec §5
// does not prescribe an exact curve, only that retries are bounded by
// max_attempts, which MarkJobFailed itself enforces.
func backoffFor(attempts int) time.Duration {
	const maxBackoff = 5 * time.Minute
	d := 10 * time.Second
	for i := 1; i < attempts && d < maxBackoff; i++ {
		d *= 2
	}
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}
