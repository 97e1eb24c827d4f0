package approval

import "github.com/dukerupert/apcore/internal/domain"

// ruleCovers reports whether an approval-matrix rule's amount/department/
// category bounds cover the given invoice (spec §4.9's build_approval_chain).
// A nil bound matches any invoice; a non-nil bound must equal exactly.
func ruleCovers(r domain.ApprovalMatrixRule, totalAmount float64, department, category string) bool {
	if r.MinAmount != nil && totalAmount < *r.MinAmount {
		return false
	}
	if r.MaxAmount != nil && totalAmount > *r.MaxAmount {
		return false
	}
	if r.Department != nil && department != *r.Department {
		return false
	}
	if r.Category != nil && category != *r.Category {
		return false
	}
	return true
}

// chainSteps filters and orders the active matrix rules that cover an
// invoice into its approval chain.
func chainSteps(rules []domain.ApprovalMatrixRule, totalAmount float64, department, category string) []domain.ApprovalChainStep {
	var steps []domain.ApprovalChainStep
	for _, r := range rules {
		if ruleCovers(r, totalAmount, department, category) {
			steps = append(steps, domain.ApprovalChainStep{StepOrder: r.StepOrder, ApproverRole: r.ApproverRole})
		}
	}
	return steps
}
