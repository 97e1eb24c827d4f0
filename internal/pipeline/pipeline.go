// Package pipeline drives one invoice through the full processing
// sequence (spec §4.10): blob download, OCR, dual-pass extraction, FX
// normalization, duplicate detection, fraud scoring, and matching. It is
// idempotent — each stage only advances an invoice from its expected
// predecessor state — so a retried job picks up from wherever it left off.
package pipeline

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/dukerupert/apcore/internal/approval"
	"github.com/dukerupert/apcore/internal/domain"
	"github.com/dukerupert/apcore/internal/duplicate"
	"github.com/dukerupert/apcore/internal/exception"
	"github.com/dukerupert/apcore/internal/extraction"
	"github.com/dukerupert/apcore/internal/fraud"
	"github.com/dukerupert/apcore/internal/fx"
	"github.com/dukerupert/apcore/internal/matching"
	"github.com/dukerupert/apcore/internal/ocr"
	"github.com/dukerupert/apcore/internal/repository"
	"github.com/dukerupert/apcore/internal/rules"
	"github.com/dukerupert/apcore/internal/storage"
	"github.com/dukerupert/apcore/internal/vendor"
)

const matchingToleranceRule = "matching_tolerance"

// Orchestrator wires every core service a pipeline run needs. Blob is the
// storage port used to download the invoice file; everything else is a
// domain service bound to the same *repository.Queries.
type Orchestrator struct {
	q          *repository.Queries
	blob       storage.Storage
	ocr        *ocr.Service
	extract    *extraction.Service
	fx         fx.Port
	dup        *duplicate.Detector
	fraud      *fraud.Scorer
	matching   *matching.Engine
	rules      *rules.Service
	approvals  *approval.Service
	exceptions *exception.Service
	vendor     *vendor.Service

	fraudCriticalThreshold int
	ocrMinConfidence       float64
	dualPassMaxMismatches  int

	// pendingRawText/pendingConfidence carry stage 2's OCR output into
	// stage 3 within a single Run call; they are not persisted as
	// Orchestrator state across invocations.
	pendingRawText    string
	pendingConfidence float64
}

func NewOrchestrator(
	q *repository.Queries,
	blob storage.Storage,
	ocrSvc *ocr.Service,
	extract *extraction.Service,
	fxPort fx.Port,
	dup *duplicate.Detector,
	fraudScorer *fraud.Scorer,
	matchEngine *matching.Engine,
	rulesSvc *rules.Service,
	approvals *approval.Service,
	exceptions *exception.Service,
	vendorSvc *vendor.Service,
	fraudCriticalThreshold int,
	ocrMinConfidence float64,
	dualPassMaxMismatches int,
) *Orchestrator {
	return &Orchestrator{
		q: q, blob: blob, ocr: ocrSvc, extract: extract, fx: fxPort,
		dup: dup, fraud: fraudScorer, matching: matchEngine, rules: rulesSvc, approvals: approvals,
		exceptions:             exceptions,
		vendor:                 vendorSvc,
		fraudCriticalThreshold: fraudCriticalThreshold,
		ocrMinConfidence:       ocrMinConfidence,
		dualPassMaxMismatches:  dualPassMaxMismatches,
	}
}

// Run executes every stage spec §4.10 names for one invoice, in order,
// stopping early (without error) once the invoice has left the pipeline's
// scope — transitioned to exception, cancelled, or handed off to matching.
func (o *Orchestrator) Run(ctx context.Context, invoiceID uuid.UUID) error {
	inv, err := o.q.GetInvoice(ctx, invoiceID)
	if err != nil {
		return fmt.Errorf("pipeline: load invoice: %w", err)
	}

	if inv.Status == domain.InvoiceIngested {
		inv, err = o.stageDownloadAndOCR(ctx, inv)
		if err != nil {
			return err
		}
	}

	if inv.Status == domain.InvoiceExtracting {
		inv, err = o.stageExtract(ctx, inv)
		if err != nil {
			return err
		}
	}

	if inv.Status != domain.InvoiceExtracted {
		return nil
	}

	if err := o.stageNormalizeAmount(ctx, inv); err != nil {
		return err
	}
	if err := o.stageDuplicateCheck(ctx, &inv); err != nil {
		return err
	}
	if err := o.stageFraudScore(ctx, &inv); err != nil {
		return err
	}

	return o.stageMatch(ctx, inv)
}

// stageDownloadAndOCR implements spec §4.10 stages 1-2: transition to
// extracting, download the blob, and run OCR.
func (o *Orchestrator) stageDownloadAndOCR(ctx context.Context, inv domain.Invoice) (domain.Invoice, error) {
	if err := o.transition(ctx, inv.ID, domain.InvoiceExtracting); err != nil {
		return inv, err
	}
	inv.Status = domain.InvoiceExtracting

	rc, err := o.blob.Get(ctx, inv.StoragePath)
	var rawText string
	var confidence float64
	if err != nil {
		// Transient blob failures are the caller's retry concern; OCR
		// failure here is terminal for this attempt and leaves raw_text
		// empty per spec §4.10's failure semantics.
		rawText, confidence = "", 0
	} else {
		defer rc.Close()
		blob, readErr := readAll(rc)
		if readErr != nil {
			rawText, confidence = "", 0
		} else {
			result, ocrErr := o.ocr.Run(ctx, blob, inv.MimeType)
			if ocrErr != nil {
				rawText, confidence = "", 0
			} else {
				rawText, confidence = result.RawText, result.Confidence
			}
		}
	}

	o.pendingRawText = rawText
	o.pendingConfidence = confidence
	return inv, nil
}

// stageExtract implements spec §4.10 stages 3-4.
func (o *Orchestrator) stageExtract(ctx context.Context, inv domain.Invoice) (domain.Invoice, error) {
	result, err := o.extract.Run(ctx, inv, o.pendingRawText, o.pendingConfidence)
	if err != nil {
		return inv, fmt.Errorf("pipeline: extraction: %w", err)
	}

	if result.BothFailed && o.pendingRawText == "" {
		if err := o.transition(ctx, inv.ID, domain.InvoiceException); err != nil {
			return inv, err
		}
		inv.Status = domain.InvoiceException
		return inv, nil
	}

	if err := o.transition(ctx, inv.ID, domain.InvoiceExtracted); err != nil {
		return inv, err
	}
	inv.Status = domain.InvoiceExtracted

	if o.pendingConfidence < o.ocrMinConfidence {
		if _, err := o.exceptions.Raise(ctx, inv.ID, domain.ExcExtractionLowConf,
			fmt.Sprintf("OCR confidence %.2f below minimum %.2f", o.pendingConfidence, o.ocrMinConfidence), domain.SeverityMedium); err != nil {
			return inv, fmt.Errorf("pipeline: raise low-confidence exception: %w", err)
		}
	}
	if len(result.Discrepancies) > o.dualPassMaxMismatches {
		if _, err := o.exceptions.Raise(ctx, inv.ID, domain.ExcExtractionDiscrepancy,
			fmt.Sprintf("extraction passes disagreed on %d fields: %v", len(result.Discrepancies), result.Discrepancies), domain.SeverityMedium); err != nil {
			return inv, fmt.Errorf("pipeline: raise extraction discrepancy exception: %w", err)
		}
	}
	return inv, nil
}

// stageNormalizeAmount implements spec §4.10 stage 5.
func (o *Orchestrator) stageNormalizeAmount(ctx context.Context, inv domain.Invoice) error {
	amount, err := o.fx.ToReference(inv.Currency, inv.TotalAmount)
	if err != nil {
		return fmt.Errorf("pipeline: fx normalize: %w", err)
	}
	return o.q.UpdateNormalizedAmount(ctx, inv.ID, amount)
}

// stageDuplicateCheck implements spec §4.10 stage 6.
func (o *Orchestrator) stageDuplicateCheck(ctx context.Context, inv *domain.Invoice) error {
	result, err := o.dup.Check(ctx, *inv)
	if err != nil {
		return fmt.Errorf("pipeline: duplicate check: %w", err)
	}
	if result.Hit {
		if err := o.q.SetDuplicateFlag(ctx, inv.ID, true); err != nil {
			return err
		}
		inv.IsDuplicate = true

		if _, err := o.exceptions.Raise(ctx, inv.ID, domain.ExcDuplicateInvoice,
			fmt.Sprintf("duplicate of invoice %s", result.MatchID), result.Severity); err != nil {
			return fmt.Errorf("pipeline: raise duplicate exception: %w", err)
		}
	}
	return nil
}

// stageFraudScore implements spec §4.10 stage 7.
func (o *Orchestrator) stageFraudScore(ctx context.Context, inv *domain.Invoice) error {
	score, err := o.fraud.Score(ctx, *inv, false)
	if err != nil {
		return fmt.Errorf("pipeline: fraud scoring: %w", err)
	}
	if err := o.q.UpdateFraudScore(ctx, inv.ID, score.Total, score.Signals); err != nil {
		return err
	}
	inv.FraudScore = score.Total
	inv.FraudSignals = score.Signals

	if score.Total >= o.fraudCriticalThreshold {
		if _, err := o.exceptions.Raise(ctx, inv.ID, domain.ExcFraudFlag,
			fmt.Sprintf("fraud score %d triggered by %v", score.Total, score.Signals), domain.SeverityCritical); err != nil {
			return fmt.Errorf("pipeline: raise fraud exception: %w", err)
		}
	}
	return nil
}

// stageMatch implements spec §4.10 stage 8: hand off to matching in auto
// mode. A matching-engine failure does not fail the overall pipeline run —
// the invoice is simply left in extracted for a later re-match.
func (o *Orchestrator) stageMatch(ctx context.Context, inv domain.Invoice) error {
	if err := o.transition(ctx, inv.ID, domain.InvoiceMatching); err != nil {
		return err
	}

	active, err := o.rules.GetActiveMatchingTolerance(ctx, matchingToleranceRule)
	if err != nil {
		return nil
	}

	outcome, err := o.matching.Run(ctx, inv.ID, matching.StrategyAuto, active.Tolerance, active.RuleVersionID, nil)
	if err != nil {
		return nil
	}

	if outcome.RequiresApproval {
		return o.createApprovalChain(ctx, inv)
	}
	return nil
}

// createApprovalChain implements spec §4.7's hand-off into §4.9: the
// matching engine only flags that approval is required, the orchestrator
// resolves the chain and opens its first task.
func (o *Orchestrator) createApprovalChain(ctx context.Context, inv domain.Invoice) error {
	steps, err := o.approvals.BuildApprovalChain(ctx, inv)
	if err != nil || len(steps) == 0 {
		return nil
	}

	first := steps[0]
	approvers, err := o.q.ListUsersByRole(ctx, first.ApproverRole)
	if err != nil || len(approvers) == 0 {
		return nil
	}

	requiredCount := approval.RequiredApprovalCount(first.StepOrder, inv.FraudScore, o.fraudCriticalThreshold)
	_, err = o.approvals.CreateApprovalTask(ctx, inv, approvers[0].ID, first.StepOrder, requiredCount)
	return err
}

func readAll(r io.Reader) ([]byte, error) {
	return io.ReadAll(r)
}

func (o *Orchestrator) transition(ctx context.Context, invoiceID uuid.UUID, to domain.InvoiceStatus) error {
	if err := o.q.UpdateInvoiceStatus(ctx, invoiceID, to); err != nil {
		return err
	}
	_, err := o.q.InsertAuditLog(ctx, domain.AuditLog{
		Action:     "invoice.status_changed",
		EntityType: "invoice",
		EntityID:   invoiceID,
		Notes:      string(to),
	})
	return err
}
