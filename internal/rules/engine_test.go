package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dukerupert/apcore/internal/domain"
)

func TestMergeToleranceFillsOnlyPresentKeys(t *testing.T) {
	tol := domain.DefaultMatchingTolerance()
	mergeTolerance(&tol, map[string]interface{}{
		"amount_tolerance_pct": 0.05,
	})

	assert.Equal(t, 0.05, tol.AmountTolerancePct)
	assert.Equal(t, domain.DefaultMatchingTolerance().AmountToleranceAbs, tol.AmountToleranceAbs)
	assert.Equal(t, domain.DefaultMatchingTolerance().AutoApproveRequiresMatch, tol.AutoApproveRequiresMatch)
}

func TestMergeToleranceBooleanField(t *testing.T) {
	tol := domain.DefaultMatchingTolerance()
	mergeTolerance(&tol, map[string]interface{}{
		"auto_approve_requires_match": false,
	})

	assert.False(t, tol.AutoApproveRequiresMatch)
}

func TestMergeToleranceIgnoresUnknownKeys(t *testing.T) {
	tol := domain.DefaultMatchingTolerance()
	before := tol
	mergeTolerance(&tol, map[string]interface{}{"not_a_real_field": 123})
	assert.Equal(t, before, tol)
}
