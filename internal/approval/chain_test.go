package approval

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dukerupert/apcore/internal/domain"
)

func ptrF(f float64) *float64 { return &f }
func ptrS(s string) *string   { return &s }

func TestRuleCoversUnboundedRuleMatchesAnyInvoice(t *testing.T) {
	r := domain.ApprovalMatrixRule{StepOrder: 1, ApproverRole: "APPROVER"}
	assert.True(t, ruleCovers(r, 999999, "ops", "travel"))
}

func TestRuleCoversAmountBounds(t *testing.T) {
	r := domain.ApprovalMatrixRule{MinAmount: ptrF(1000), MaxAmount: ptrF(5000)}
	assert.True(t, ruleCovers(r, 2500, "", ""))
	assert.False(t, ruleCovers(r, 999, "", ""))
	assert.False(t, ruleCovers(r, 5001, "", ""))
}

func TestRuleCoversDepartmentMustMatchExactly(t *testing.T) {
	r := domain.ApprovalMatrixRule{Department: ptrS("finance")}
	assert.True(t, ruleCovers(r, 100, "finance", "any"))
	assert.False(t, ruleCovers(r, 100, "ops", "any"))
	assert.False(t, ruleCovers(r, 100, "", "any"))
}

func TestRuleCoversCategoryMustMatchExactly(t *testing.T) {
	r := domain.ApprovalMatrixRule{Category: ptrS("travel")}
	assert.True(t, ruleCovers(r, 100, "any", "travel"))
	assert.False(t, ruleCovers(r, 100, "any", "consulting"))
}

func TestChainStepsOrdersByInputAndFiltersNonCoveringRules(t *testing.T) {
	rules := []domain.ApprovalMatrixRule{
		{StepOrder: 1, ApproverRole: "MANAGER", MaxAmount: ptrF(1000)},
		{StepOrder: 2, ApproverRole: "DIRECTOR", MinAmount: ptrF(1000)},
		{StepOrder: 3, ApproverRole: "CFO", MinAmount: ptrF(50000)},
	}
	steps := chainSteps(rules, 2000, "", "")
	assert.Equal(t, []domain.ApprovalChainStep{
		{StepOrder: 2, ApproverRole: "DIRECTOR"},
	}, steps)
}

func TestRequiredApprovalCountDualAuthorizationOnFirstStepOnly(t *testing.T) {
	assert.Equal(t, 2, RequiredApprovalCount(1, 80, 60))
	assert.Equal(t, 1, RequiredApprovalCount(1, 10, 60))
	assert.Equal(t, 1, RequiredApprovalCount(2, 80, 60))
}
