package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Job is the durable record backing the pipeline worker and scheduler
// (spec §5). NATS JetStream only wakes up idle pollers; this table is the
// source of truth for at-least-once delivery and retry bookkeeping.
type Job struct {
	ID          uuid.UUID
	Queue       string
	JobType     string
	Payload     json.RawMessage
	Status      string
	Attempts    int
	MaxAttempts int
	RunAfter    time.Time
	LockedBy    *string
	LockedAt    *time.Time
	LastError   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func scanJob(row scannable) (Job, error) {
	var j Job
	err := row.Scan(&j.ID, &j.Queue, &j.JobType, &j.Payload, &j.Status, &j.Attempts, &j.MaxAttempts,
		&j.RunAfter, &j.LockedBy, &j.LockedAt, &j.LastError, &j.CreatedAt, &j.UpdatedAt)
	return j, err
}

const jobColumns = `id, queue, job_type, payload, status, attempts, max_attempts, run_after, locked_by, locked_at, last_error, created_at, updated_at`

func (q *Queries) EnqueueJob(ctx context.Context, queue, jobType string, payload json.RawMessage, runAfter time.Time) (Job, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO jobs (queue, job_type, payload, run_after)
		VALUES ($1,$2,$3,$4)
		RETURNING `+jobColumns, queue, jobType, payload, runAfter)
	return scanJob(row)
}

// ClaimNextJob atomically locks and claims the oldest runnable job in the
// queue for workerID, using SKIP LOCKED so concurrent pollers never block
// on each other (spec §5's bounded worker-pool concurrency model).
func (q *Queries) ClaimNextJob(ctx context.Context, queue, workerID string) (*Job, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE jobs SET status = 'running', locked_by = $2, locked_at = now(), attempts = attempts + 1, updated_at = now()
		WHERE id = (
			SELECT id FROM jobs
			WHERE queue = $1 AND status = 'queued' AND run_after <= now()
			ORDER BY run_after
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING `+jobColumns, queue, workerID)
	j, err := scanJob(row)
	if err != nil {
		return nil, swallowNoRows(err)
	}
	return &j, nil
}

func (q *Queries) MarkJobSucceeded(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.Exec(ctx, `UPDATE jobs SET status = 'succeeded', updated_at = now() WHERE id = $1`, id)
	return err
}

// MarkJobFailed either requeues the job for retry at backoffUntil or marks
// it terminally failed once max_attempts is exhausted.
func (q *Queries) MarkJobFailed(ctx context.Context, id uuid.UUID, lastError string, backoffUntil time.Time) error {
	_, err := q.db.Exec(ctx, `
		UPDATE jobs
		SET status = CASE WHEN attempts >= max_attempts THEN 'failed' ELSE 'queued' END,
		    run_after = $3,
		    locked_by = NULL,
		    locked_at = NULL,
		    last_error = $2,
		    updated_at = now()
		WHERE id = $1`, id, lastError, backoffUntil)
	return err
}

func (q *Queries) CountQueuedJobs(ctx context.Context, queue string) (int, error) {
	row := q.db.QueryRow(ctx, `SELECT count(*) FROM jobs WHERE queue = $1 AND status = 'queued'`, queue)
	var n int
	err := row.Scan(&n)
	return n, err
}
