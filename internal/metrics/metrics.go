// Package metrics exposes business-level Prometheus gauges/counters for
// the AP pipeline, matching engine, approval workflow, and fraud scoring,
// grounded on the teacher's internal/telemetry.BusinessMetrics pattern
// (promauto-registered CounterVec/HistogramVec, one namespace/subsystem
// pair per domain).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Business holds every metric the core services record. Multi-tenancy is
// out of scope here, so labels carry domain dimensions (stage, status,
// code) instead of the teacher's tenant_id.
type Business struct {
	InvoicesIngested    *prometheus.CounterVec
	PipelineStageDuration *prometheus.HistogramVec
	PipelineFailures    *prometheus.CounterVec

	MatchesRun       *prometheus.CounterVec
	MatchExceptions  *prometheus.CounterVec
	AutoApprovals    prometheus.Counter

	ApprovalTasksCreated  *prometheus.CounterVec
	ApprovalDecisions     *prometheus.CounterVec
	ApprovalSLABreaches   prometheus.Counter

	FraudScoreDistribution prometheus.Histogram
	FraudFlagged           *prometheus.CounterVec

	AICallsTotal    *prometheus.CounterVec
	AICallLatency   *prometheus.HistogramVec
	AICallErrors    *prometheus.CounterVec

	JobsEnqueued  *prometheus.CounterVec
	JobsProcessed *prometheus.CounterVec
	JobsFailed    *prometheus.CounterVec
	JobDuration   *prometheus.HistogramVec
}

func New(namespace string) *Business {
	if namespace == "" {
		namespace = "apcore"
	}
	subsystem := "business"

	return &Business{
		InvoicesIngested: promauto.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Subsystem: subsystem, Name: "invoices_ingested_total", Help: "Total invoices ingested"},
			[]string{"source"},
		),
		PipelineStageDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace, Subsystem: subsystem, Name: "pipeline_stage_duration_seconds",
				Help:    "Duration of each pipeline stage",
				Buckets: []float64{.1, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"stage"},
		),
		PipelineFailures: promauto.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Subsystem: subsystem, Name: "pipeline_failures_total", Help: "Total pipeline stage failures"},
			[]string{"stage"},
		),

		MatchesRun: promauto.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Subsystem: subsystem, Name: "matches_run_total", Help: "Total matching engine runs"},
			[]string{"strategy", "status"},
		),
		MatchExceptions: promauto.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Subsystem: subsystem, Name: "match_exceptions_total", Help: "Total exceptions raised by the matching engine"},
			[]string{"code"},
		),
		AutoApprovals: promauto.NewCounter(
			prometheus.CounterOpts{Namespace: namespace, Subsystem: subsystem, Name: "auto_approvals_total", Help: "Total invoices auto-approved without a human decision"},
		),

		ApprovalTasksCreated: promauto.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Subsystem: subsystem, Name: "approval_tasks_created_total", Help: "Total approval tasks created"},
			[]string{"step_order"},
		),
		ApprovalDecisions: promauto.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Subsystem: subsystem, Name: "approval_decisions_total", Help: "Total approval decisions recorded"},
			[]string{"action", "channel"},
		),
		ApprovalSLABreaches: promauto.NewCounter(
			prometheus.CounterOpts{Namespace: namespace, Subsystem: subsystem, Name: "approval_sla_breaches_total", Help: "Total approval tasks that passed their due date unresolved"},
		),

		FraudScoreDistribution: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace, Subsystem: subsystem, Name: "fraud_score_distribution",
				Help:    "Distribution of computed fraud scores",
				Buckets: []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
			},
		),
		FraudFlagged: promauto.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Subsystem: subsystem, Name: "fraud_flagged_total", Help: "Total invoices crossing the high fraud-score threshold"},
			[]string{"signal"},
		),

		AICallsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Subsystem: subsystem, Name: "ai_calls_total", Help: "Total LLM port invocations"},
			[]string{"operation", "outcome"},
		),
		AICallLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace, Subsystem: subsystem, Name: "ai_call_latency_ms",
				Help:    "LLM port call latency in milliseconds",
				Buckets: []float64{100, 250, 500, 1000, 2500, 5000, 10000, 30000},
			},
			[]string{"operation"},
		),
		AICallErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Subsystem: subsystem, Name: "ai_call_errors_total", Help: "Total LLM port invocations that returned an error"},
			[]string{"operation"},
		),

		JobsEnqueued: promauto.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Subsystem: subsystem, Name: "jobs_enqueued_total", Help: "Total background jobs enqueued"},
			[]string{"job_type"},
		),
		JobsProcessed: promauto.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Subsystem: subsystem, Name: "jobs_processed_total", Help: "Total background jobs successfully processed"},
			[]string{"job_type"},
		),
		JobsFailed: promauto.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Subsystem: subsystem, Name: "jobs_failed_total", Help: "Total background job failures"},
			[]string{"job_type"},
		),
		JobDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace, Subsystem: subsystem, Name: "job_duration_seconds",
				Help:    "Background job execution duration",
				Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"job_type"},
		),
	}
}
