// Package exception orchestrates ExceptionRecord handling (spec §4.3,
// §4.9's exception-routing supplement): upsert-on-raise, routing-rule
// assignment, resolution, and rate-limited AI root-cause narration.
package exception

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/apcore/internal/domain"
	"github.com/dukerupert/apcore/internal/repository"
)

// narrateOperation is the ai_call_logs.operation value for root-cause
// narration, matching the extraction subsystem's "extract" naming (spec
// §4.4).
const narrateOperation = "narrate"

// narrateCooldown caps root-cause generation to once per invoice per hour
// (SPEC_FULL supplemental feature: AI root-cause narrative); the cooldown is
// shared by all of an invoice's exceptions.
const narrateCooldown = time.Hour

// Narrator produces a human-readable root-cause explanation for an
// exception. Implemented by the LLM port; kept as a narrow local interface
// so this package never depends on a specific provider.
type Narrator interface {
	Narrate(ctx context.Context, exc domain.ExceptionRecord, inv domain.Invoice) (narrative, model string, promptTokens, completionTokens int, err error)
}

// Service runs exception lifecycle operations against the
// *repository.Queries it is constructed with; it opens no transaction of
// its own.
type Service struct {
	q        *repository.Queries
	narrator Narrator
}

func NewService(q *repository.Queries, narrator Narrator) *Service {
	return &Service{q: q, narrator: narrator}
}

// Raise upserts an exception record for an invoice and code, then resolves
// and applies the routing rule for its (code, severity) pair (spec §4.3,
// exception-routing supplement).
func (s *Service) Raise(ctx context.Context, invoiceID uuid.UUID, code domain.ExceptionCode, description string, severity domain.ExceptionSeverity) (domain.ExceptionRecord, error) {
	rec, err := s.q.UpsertExceptionRecord(ctx, invoiceID, code, description, severity)
	if err != nil {
		return domain.ExceptionRecord{}, err
	}

	rule, err := s.q.FindExceptionRoutingRule(ctx, code, severity)
	if err != nil {
		return domain.ExceptionRecord{}, err
	}
	if rule != nil && rec.AssigneeID == nil {
		if err := s.q.AssignException(ctx, rec.ID, rule.AssigneeID); err != nil {
			return domain.ExceptionRecord{}, err
		}
		rec.AssigneeID = &rule.AssigneeID
	}

	if _, err := s.q.InsertAuditLog(ctx, domain.AuditLog{
		Action:     "exception.raised",
		EntityType: "exception_record",
		EntityID:   rec.ID,
		Notes:      description,
	}); err != nil {
		return domain.ExceptionRecord{}, err
	}

	return rec, nil
}

// Assign hands an exception to a specific user, overriding any routing-rule
// assignment.
func (s *Service) Assign(ctx context.Context, exceptionID, assigneeID uuid.UUID) error {
	return s.q.AssignException(ctx, exceptionID, assigneeID)
}

// Resolve closes out an exception with a terminal status and writes one
// audit entry (spec §4.3). Waiving or escalating both flow through here.
func (s *Service) Resolve(ctx context.Context, exceptionID, resolverID uuid.UUID, status domain.ExceptionStatus, resolution string) error {
	if err := s.q.ResolveException(ctx, exceptionID, resolverID, status, resolution); err != nil {
		return err
	}
	_, err := s.q.InsertAuditLog(ctx, domain.AuditLog{
		ActorID:    &resolverID,
		Action:     "exception.resolved",
		EntityType: "exception_record",
		EntityID:   exceptionID,
		Notes:      resolution,
	})
	return err
}

// AddComment appends an author-attributed comment to an exception.
func (s *Service) AddComment(ctx context.Context, exceptionID, authorID uuid.UUID, body string) (domain.ExceptionComment, error) {
	return s.q.AddExceptionComment(ctx, domain.ExceptionComment{
		ExceptionID: exceptionID,
		AuthorID:    authorID,
		Body:        body,
	})
}

// GenerateRootCause asks the Narrator for a root-cause explanation and
// persists it on the exception, logging the call via AICallLog regardless
// of outcome. A call within narrateCooldown of the previous one for this
// invoice is skipped entirely (ok=false, no error) rather than queued or
// rejected; the next pipeline pass or manual retry picks it up later.
func (s *Service) GenerateRootCause(ctx context.Context, rec domain.ExceptionRecord, inv domain.Invoice) (ok bool, err error) {
	if s.narrator == nil {
		return false, nil
	}

	last, err := s.q.MostRecentAICallLog(ctx, inv.ID, narrateOperation)
	if err != nil {
		return false, err
	}
	if last != nil && time.Since(last.CreatedAt) < narrateCooldown {
		return false, nil
	}

	narrative, model, promptTokens, completionTokens, narrateErr := s.narrator.Narrate(ctx, rec, inv)

	logErr := ""
	if narrateErr != nil {
		logErr = narrateErr.Error()
	}
	if err := s.q.InsertAICallLog(ctx, domain.AICallLog{
		InvoiceID:        &inv.ID,
		Operation:        narrateOperation,
		Model:            model,
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		Error:            logErr,
	}); err != nil {
		return false, err
	}

	if narrateErr != nil {
		return false, nil
	}

	if err := s.q.SetExceptionRootCause(ctx, rec.ID, narrative); err != nil {
		return false, err
	}
	return true, nil
}
