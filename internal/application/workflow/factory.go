package workflow

import (
	domainwf "github.com/garyjia/pr-workflow/internal/domain/workflow"
)

// BuildRequisitionStateMachine creates a state machine configured for the PR
// lifecycle. hasNextApprover decides whether APPROVE keeps the PR in
// PENDING_APPROVAL (another role follows in the path) or completes it.
func BuildRequisitionStateMachine(initialState domainwf.State, hasNextApprover domainwf.GuardFunc) (domainwf.StateMachine, error) {
	builder := domainwf.NewBuilder()

	// DRAFT state transitions
	builder.Configure(domainwf.StateDraft).
		Permit(domainwf.TriggerSubmit, domainwf.StatePendingApproval)

	// BUDGET_EXCEPTION_PENDING state transitions
	builder.Configure(domainwf.StateBudgetExceptionPending).
		Permit(domainwf.TriggerExceptionApprove, domainwf.StateDraft).
		Permit(domainwf.TriggerExceptionReject, domainwf.StateRejected)

	// PENDING_APPROVAL state transitions
	approve := builder.Configure(domainwf.StatePendingApproval)
	if hasNextApprover != nil {
		approve.PermitIf(domainwf.TriggerApprove, domainwf.StatePendingApproval, hasNextApprover)
	}
	approve.
		Permit(domainwf.TriggerApprove, domainwf.StateApproved).
		Permit(domainwf.TriggerReject, domainwf.StateRejected).
		Permit(domainwf.TriggerReturn, domainwf.StateDraft)

	// APPROVED state transitions
	builder.Configure(domainwf.StateApproved).
		Permit(domainwf.TriggerIssuePO, domainwf.StatePOCreated)

	// REJECTED and PO_CREATED are terminal states - no outgoing transitions

	return builder.Build(initialState)
}
