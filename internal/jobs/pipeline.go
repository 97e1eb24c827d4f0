// Package jobs defines the background job payloads the worker dispatches
// on (spec §4.10 "one job per invoice, launched by the ingestion endpoint
// or the mailbox poller"). The pipeline run is idempotent by construction:
// Orchestrator.Run only ever advances an invoice from its current state,
// so redelivery under the broker's at-least-once semantics (spec §5) is
// always safe to replay.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/apcore/internal/broker"
	"github.com/dukerupert/apcore/internal/repository"
)

// Queue is the only job queue this system runs; spec §5 doesn't call for
// queue partitioning, so everything shares one name.
const Queue = "pipeline"

// JobTypePipelineRun is the sole job type the worker processes: run (or
// resume) one invoice through internal/pipeline.Orchestrator.
const JobTypePipelineRun = "invoice:pipeline_run"

// PipelineRunPayload identifies which invoice a pipeline-run job advances.
type PipelineRunPayload struct {
	InvoiceID uuid.UUID `json:"invoice_id"`
}

// EnqueuePipelineRun enqueues a pipeline-run job for invoiceID, runnable
// immediately. b may be nil, in which case the worker only picks the job
// up on its next ticker-driven poll rather than immediately.
func EnqueuePipelineRun(ctx context.Context, q *repository.Queries, b *broker.Broker, invoiceID uuid.UUID) error {
	payload, err := json.Marshal(PipelineRunPayload{InvoiceID: invoiceID})
	if err != nil {
		return fmt.Errorf("jobs: marshal pipeline run payload: %w", err)
	}
	if _, err := q.EnqueueJob(ctx, Queue, JobTypePipelineRun, payload, time.Now()); err != nil {
		return err
	}
	if b != nil {
		b.NotifyJobReady()
	}
	return nil
}
