package workflow

import (
	"context"
	"errors"

	"github.com/garyjia/pr-workflow/internal/domain/apperr"
	"github.com/garyjia/pr-workflow/internal/domain/entity"
	domainwf "github.com/garyjia/pr-workflow/internal/domain/workflow"
)

// Decision is the outcome of applying a trigger to a PR
type Decision struct {
	From     entity.Status
	To       entity.Status
	FromRole entity.Role
	// NextRole is the approver that holds the PR afterwards, empty when none.
	NextRole entity.Role
	Path     []entity.Role
}

// Advanced reports whether an approval moved to another role without completing.
func (d Decision) Advanced() bool {
	return d.To == entity.StatusPendingApproval && d.From == entity.StatusPendingApproval
}

// WorkflowEngine resolves PR transitions
type WorkflowEngine interface {
	// Path returns the approval path for the PR as it stands now
	Path(pr *entity.Requisition) []entity.Role

	// Decide computes the transition for trigger without persisting anything
	Decide(ctx context.Context, pr *entity.Requisition, trigger domainwf.Trigger) (Decision, error)

	// Permitted lists the triggers registered for the PR's current status
	Permitted(pr *entity.Requisition) ([]domainwf.Trigger, error)
}

type engine struct {
	thresholds domainwf.Thresholds
}

// NewWorkflowEngine creates an engine routing with the given thresholds
func NewWorkflowEngine(thresholds domainwf.Thresholds) WorkflowEngine {
	return &engine{thresholds: thresholds}
}

func (e *engine) Path(pr *entity.Requisition) []entity.Role {
	return e.thresholds.Path(pr.TotalAmount, pr.BudgetStatus)
}

// Decide builds a fresh machine per call; the path is recomputed from the
// PR's current amount and budget status every time.
func (e *engine) Decide(ctx context.Context, pr *entity.Requisition, trigger domainwf.Trigger) (Decision, error) {
	path := e.Path(pr)
	d := Decision{
		From:     pr.Status,
		FromRole: pr.CurrentApproverRole,
		Path:     path,
	}

	var next entity.Role
	hasNext := func(context.Context) bool { return false }
	if trigger == domainwf.TriggerApprove && pr.Status == entity.StatusPendingApproval {
		role, ok, err := domainwf.NextApprover(path, pr.CurrentApproverRole)
		if err != nil {
			return d, apperr.Conflict("PR %s is held by %s, which is not in its approval path", pr.PRNo, pr.CurrentApproverRole)
		}
		next = role
		hasNext = func(context.Context) bool { return ok }
	}

	sm, err := BuildRequisitionStateMachine(domainwf.State(pr.Status), hasNext)
	if err != nil {
		return d, apperr.Conflict("PR %s has unknown status %s", pr.PRNo, pr.Status)
	}
	if err := sm.Fire(ctx, trigger); err != nil {
		if errors.Is(err, domainwf.ErrTerminalState) {
			return d, apperr.Conflict("PR %s is %s and can no longer change", pr.PRNo, pr.Status)
		}
		return d, apperr.Conflict("PR %s cannot %s while %s", pr.PRNo, actionVerb(trigger), pr.Status)
	}

	d.To = entity.Status(sm.State())
	switch {
	case trigger == domainwf.TriggerSubmit:
		d.NextRole = path[0]
	case d.Advanced():
		d.NextRole = next
	}
	return d, nil
}

func (e *engine) Permitted(pr *entity.Requisition) ([]domainwf.Trigger, error) {
	sm, err := BuildRequisitionStateMachine(domainwf.State(pr.Status), nil)
	if err != nil {
		return nil, err
	}
	return sm.PermittedTriggers(), nil
}

func actionVerb(trigger domainwf.Trigger) string {
	switch trigger {
	case domainwf.TriggerSubmit:
		return "be submitted"
	case domainwf.TriggerApprove:
		return "be approved"
	case domainwf.TriggerReject:
		return "be rejected"
	case domainwf.TriggerReturn:
		return "be returned"
	case domainwf.TriggerExceptionApprove, domainwf.TriggerExceptionReject:
		return "take a budget exception decision"
	case domainwf.TriggerIssuePO:
		return "be issued a PO"
	}
	return "fire " + trigger.String()
}
