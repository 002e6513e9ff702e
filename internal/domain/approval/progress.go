package approval

import "github.com/jm-sky/saasbase-approvals/internal/domain/entity"

// StepSatisfied reports whether a step's completion condition is met by the
// decisions recorded for it, given the approver set resolved at decision
// time. With require-all, every eligible approver must have an APPROVED
// decision; otherwise the count of APPROVED decisions must reach the step's
// minimum (a minimum below one counts as one).
//
// The function is pure over (step, eligible, decisions) so step state can be
// reconstructed and audited from the decision log alone.
func StepSatisfied(step *entity.WorkflowStep, eligible []string, decisions []*entity.ApprovalDecision) bool {
	approvedBy := make(map[string]bool, len(decisions))
	for _, d := range decisions {
		if d.StepID == step.ID && d.IsApproval() {
			approvedBy[d.ApproverID] = true
		}
	}

	if step.RequireAllApprovers {
		if len(eligible) == 0 {
			return false
		}
		for _, userID := range eligible {
			if !approvedBy[userID] {
				return false
			}
		}
		return true
	}

	min := step.MinApprovers
	if min < 1 {
		min = 1
	}
	return len(approvedBy) >= min
}

// HasRejection reports whether any decision for the given step is a
// rejection. A single rejection vetoes the whole execution.
func HasRejection(stepID int64, decisions []*entity.ApprovalDecision) bool {
	for _, d := range decisions {
		if d.StepID == stepID && d.Decision == entity.DecisionRejected {
			return true
		}
	}
	return false
}

// DecisionBy returns the decision the given approver recorded for the step,
// or nil when none exists yet.
func DecisionBy(stepID int64, approverID string, decisions []*entity.ApprovalDecision) *entity.ApprovalDecision {
	for _, d := range decisions {
		if d.StepID == stepID && d.ApproverID == approverID {
			return d
		}
	}
	return nil
}
