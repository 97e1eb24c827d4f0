package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/dukerupert/apcore/internal/domain"
)

func (q *Queries) CreateRule(ctx context.Context, name string, ruleType domain.RuleType) (domain.Rule, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO rules (name, type) VALUES ($1,$2)
		RETURNING id, name, type, created_at, updated_at`, name, string(ruleType))
	var r domain.Rule
	var typ string
	err := row.Scan(&r.ID, &r.Name, &typ, &r.CreatedAt, &r.UpdatedAt)
	r.Type = domain.RuleType(typ)
	return r, err
}

func (q *Queries) GetRuleByName(ctx context.Context, name string) (*domain.Rule, error) {
	row := q.db.QueryRow(ctx, `SELECT id, name, type, created_at, updated_at FROM rules WHERE name = $1`, name)
	var r domain.Rule
	var typ string
	err := row.Scan(&r.ID, &r.Name, &typ, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, swallowNoRows(err)
	}
	r.Type = domain.RuleType(typ)
	return &r, nil
}

const ruleVersionColumns = `id, rule_id, version, status, source, config, ai_extracted, shadow_mode, change_summary, created_by, reviewed_by, published_at, archived_at, created_at`

func scanRuleVersion(row scannable) (domain.RuleVersion, error) {
	var v domain.RuleVersion
	var status, source string
	err := row.Scan(&v.ID, &v.RuleID, &v.Version, &status, &source, &v.Config, &v.AIExtracted, &v.ShadowMode,
		&v.ChangeSummary, &v.CreatedBy, &v.ReviewedBy, &v.PublishedAt, &v.ArchivedAt, &v.CreatedAt)
	v.Status = domain.RuleVersionStatus(status)
	v.Source = domain.RuleSource(source)
	return v, err
}

// CreateDraftRuleVersion inserts the next version number for a rule. The
// caller must serialize concurrent drafts for the same rule (e.g. via an
// advisory lock or row lock on the parent rule) to avoid a version-number
// race.
func (q *Queries) CreateDraftRuleVersion(ctx context.Context, v domain.RuleVersion) (domain.RuleVersion, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO rule_versions (rule_id, version, status, source, config, ai_extracted, shadow_mode, change_summary, created_by)
		VALUES ($1, COALESCE((SELECT MAX(version) FROM rule_versions WHERE rule_id = $1), 0) + 1, 'draft', $2, $3, $4, $5, $6, $7)
		RETURNING `+ruleVersionColumns,
		v.RuleID, string(v.Source), v.Config, v.AIExtracted, v.ShadowMode, v.ChangeSummary, v.CreatedBy)
	return scanRuleVersion(row)
}

func (q *Queries) GetRuleVersionForUpdate(ctx context.Context, id uuid.UUID) (domain.RuleVersion, error) {
	row := q.db.QueryRow(ctx, `SELECT `+ruleVersionColumns+` FROM rule_versions WHERE id = $1 FOR UPDATE`, id)
	return scanRuleVersion(row)
}

func (q *Queries) GetActivePublishedRuleVersion(ctx context.Context, ruleID uuid.UUID) (*domain.RuleVersion, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+ruleVersionColumns+` FROM rule_versions WHERE rule_id = $1 AND status = 'published'`, ruleID)
	v, err := scanRuleVersion(row)
	if err != nil {
		return nil, swallowNoRows(err)
	}
	return &v, nil
}

// PublishRuleVersion supersedes any currently-published version of the
// same rule and promotes the given draft/in_review version, atomically
// (spec §4.2). Must run within a transaction (q built via WithTx).
func (q *Queries) PublishRuleVersion(ctx context.Context, id uuid.UUID, reviewerID uuid.UUID) (domain.RuleVersion, error) {
	v, err := q.GetRuleVersionForUpdate(ctx, id)
	if err != nil {
		return domain.RuleVersion{}, err
	}
	if !v.CanPublish() {
		return domain.RuleVersion{}, domain.ErrRuleVersionNotDraft
	}

	if _, err := q.db.Exec(ctx, `
		UPDATE rule_versions SET status = 'superseded', archived_at = now()
		WHERE rule_id = $1 AND status = 'published'`, v.RuleID); err != nil {
		return domain.RuleVersion{}, err
	}

	row := q.db.QueryRow(ctx, `
		UPDATE rule_versions SET status = 'published', reviewed_by = $2, published_at = now()
		WHERE id = $1
		RETURNING `+ruleVersionColumns, id, reviewerID)
	return scanRuleVersion(row)
}

func (q *Queries) RejectRuleVersion(ctx context.Context, id uuid.UUID, reviewerID uuid.UUID) (domain.RuleVersion, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE rule_versions SET status = 'rejected', reviewed_by = $2
		WHERE id = $1 AND status IN ('draft','in_review')
		RETURNING `+ruleVersionColumns, id, reviewerID)
	return scanRuleVersion(row)
}

func (q *Queries) ListRuleVersions(ctx context.Context, ruleID uuid.UUID) ([]domain.RuleVersion, error) {
	rows, err := q.db.Query(ctx, `SELECT `+ruleVersionColumns+` FROM rule_versions WHERE rule_id = $1 ORDER BY version DESC`, ruleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.RuleVersion
	for rows.Next() {
		v, err := scanRuleVersion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
