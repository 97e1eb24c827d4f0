// Package rules implements the draft -> published -> superseded policy
// lifecycle (spec §3, §4.2): loading the active versioned config for a
// rule type, and the publish/reject transitions that keep at most one
// published version per rule.
package rules

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/dukerupert/apcore/internal/domain"
	"github.com/dukerupert/apcore/internal/repository"
)

// ActiveConfig is the result of get_active_rules: the merged config and
// the version identifier callers must record on any decision derived
// from it, for audit reconstruction (spec §4.2).
type ActiveConfig struct {
	Tolerance     domain.MatchingTolerance
	RuleVersionID *uuid.UUID // nil when no published version exists
}

// Service loads and publishes RuleVersions against the repository.
type Service struct {
	q *repository.Queries
}

func NewService(q *repository.Queries) *Service {
	return &Service{q: q}
}

// GetActiveMatchingTolerance implements get_active_rules(matching_tolerance)
// (spec §4.2): the latest published RuleVersion's config, falling back to
// the hardcoded default with a nil version identifier when none exists.
// Keys missing from a parsed config payload fall back to the default too.
func (s *Service) GetActiveMatchingTolerance(ctx context.Context, ruleName string) (ActiveConfig, error) {
	rule, err := s.q.GetRuleByName(ctx, ruleName)
	if err != nil {
		return ActiveConfig{}, err
	}
	if rule == nil {
		return ActiveConfig{Tolerance: domain.DefaultMatchingTolerance()}, nil
	}

	v, err := s.q.GetActivePublishedRuleVersion(ctx, rule.ID)
	if err != nil {
		return ActiveConfig{}, err
	}
	if v == nil {
		return ActiveConfig{Tolerance: domain.DefaultMatchingTolerance()}, nil
	}

	tol := domain.DefaultMatchingTolerance()
	var partial map[string]interface{}
	if err := json.Unmarshal(v.Config, &partial); err == nil {
		mergeTolerance(&tol, partial)
	}

	id := v.ID
	return ActiveConfig{Tolerance: tol, RuleVersionID: &id}, nil
}

func mergeTolerance(tol *domain.MatchingTolerance, partial map[string]interface{}) {
	if f, ok := numberField(partial, "amount_tolerance_pct"); ok {
		tol.AmountTolerancePct = f
	}
	if f, ok := numberField(partial, "amount_tolerance_abs"); ok {
		tol.AmountToleranceAbs = f
	}
	if f, ok := numberField(partial, "qty_tolerance_pct"); ok {
		tol.QtyTolerancePct = f
	}
	if f, ok := numberField(partial, "auto_approve_threshold"); ok {
		tol.AutoApproveThreshold = f
	}
	if b, ok := partial["auto_approve_requires_match"].(bool); ok {
		tol.AutoApproveRequiresMatch = b
	}
}

func numberField(m map[string]interface{}, key string) (float64, bool) {
	v, ok := m[key]
	if !ok {
		return 0, false
	}
	f, ok := v.(float64)
	return f, ok
}

// CreateDraft opens a new draft version for a rule, auto-creating the rule
// row itself on first use.
func (s *Service) CreateDraft(ctx context.Context, ruleName string, ruleType domain.RuleType, source domain.RuleSource, config []byte, createdBy uuid.UUID, changeSummary string, aiExtracted bool) (domain.RuleVersion, error) {
	rule, err := s.q.GetRuleByName(ctx, ruleName)
	if err != nil {
		return domain.RuleVersion{}, err
	}
	if rule == nil {
		r, err := s.q.CreateRule(ctx, ruleName, ruleType)
		if err != nil {
			return domain.RuleVersion{}, err
		}
		rule = &r
	}

	return s.q.CreateDraftRuleVersion(ctx, domain.RuleVersion{
		RuleID:        rule.ID,
		Source:        source,
		Config:        config,
		AIExtracted:   aiExtracted,
		ChangeSummary: changeSummary,
		CreatedBy:     createdBy,
	})
}

// Publish promotes a draft/in_review version to published, atomically
// superseding the rule's previous published version (spec §4.2), within a
// transaction opened on s.q so the supersede-then-promote pair in
// PublishRuleVersion can never leave two published versions of the same
// rule visible to a concurrent reader.
func (s *Service) Publish(ctx context.Context, versionID, reviewerID uuid.UUID) (domain.RuleVersion, error) {
	tx, err := s.q.BeginTx(ctx)
	if err != nil {
		return domain.RuleVersion{}, err
	}
	defer tx.Rollback(ctx)

	v, err := repository.WithTx(tx).PublishRuleVersion(ctx, versionID, reviewerID)
	if err != nil {
		return domain.RuleVersion{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.RuleVersion{}, err
	}
	return v, nil
}

// Reject moves a draft/in_review version to rejected; it never touches
// the currently published version.
func (s *Service) Reject(ctx context.Context, versionID, reviewerID uuid.UUID) (domain.RuleVersion, error) {
	return s.q.RejectRuleVersion(ctx, versionID, reviewerID)
}
