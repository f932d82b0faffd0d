package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/pr-workflow/internal/application/dispatcher"
	"github.com/garyjia/pr-workflow/internal/application/port"
	"github.com/garyjia/pr-workflow/internal/application/workflow"
	"github.com/garyjia/pr-workflow/internal/domain/apperr"
	"github.com/garyjia/pr-workflow/internal/domain/entity"
	"github.com/garyjia/pr-workflow/internal/domain/event"
	domainwf "github.com/garyjia/pr-workflow/internal/domain/workflow"
)

// Action is an approver's decision on a pending PR
type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
	ActionReturn  Action = "return"
)

// ParseAction validates a decision taken from a request path
func ParseAction(raw string) (Action, error) {
	switch a := Action(strings.ToLower(strings.TrimSpace(raw))); a {
	case ActionApprove, ActionReject, ActionReturn:
		return a, nil
	}
	return "", apperr.Validation("unknown action %q", raw)
}

// PendingWork is what an approver has to act on
type PendingWork struct {
	Approvals        []*entity.Requisition `json:"approvals"`
	BudgetExceptions []*entity.Requisition `json:"budget_exceptions"`
}

// ApprovalService drives PRs through the approval chain
type ApprovalService interface {
	Submit(ctx context.Context, actor entity.Actor, id int64) (*entity.Requisition, error)
	Act(ctx context.Context, actor entity.Actor, id int64, action Action, comments string) (*entity.Requisition, error)
	DecideBudgetException(ctx context.Context, actor entity.Actor, id int64, approve bool, comments string) (*entity.Requisition, error)
	ListPending(ctx context.Context, actor entity.Actor) (*PendingWork, error)
}

type approvalServiceImpl struct {
	reqRepo        port.RequisitionRepository
	slotRepo       port.SlotRepository
	historyRepo    port.HistoryRepository
	notifier       notifier
	engine         workflow.WorkflowEngine
	exceptionRoles map[entity.Role]bool
	txManager      port.TransactionManager
	publisher      publisher
	now            Clock
	logger         Logger
}

// ApprovalDeps groups the collaborators of the approval service
type ApprovalDeps struct {
	Requisitions  port.RequisitionRepository
	Slots         port.SlotRepository
	History       port.HistoryRepository
	Users         port.UserRepository
	Notifications port.NotificationRepository
	Engine        workflow.WorkflowEngine
	// ExceptionRoles may decide budget exceptions; empty means approver1-4 and superadmin.
	ExceptionRoles []entity.Role
	TxManager      port.TransactionManager
	Dispatcher     dispatcher.Dispatcher
	Clock          Clock
}

// DefaultExceptionRoles are the roles allowed to decide a budget exception
func DefaultExceptionRoles() []entity.Role {
	return []entity.Role{
		entity.RoleApprover1, entity.RoleApprover2, entity.RoleApprover3,
		entity.RoleApprover4, entity.RoleSuperAdmin,
	}
}

// NewApprovalService creates a new ApprovalService
func NewApprovalService(deps ApprovalDeps, logger Logger) ApprovalService {
	now := deps.Clock
	if now == nil {
		now = systemClock
	}
	roles := deps.ExceptionRoles
	if len(roles) == 0 {
		roles = DefaultExceptionRoles()
	}
	allowed := make(map[entity.Role]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return &approvalServiceImpl{
		reqRepo:        deps.Requisitions,
		slotRepo:       deps.Slots,
		historyRepo:    deps.History,
		notifier:       notifier{users: deps.Users, notifications: deps.Notifications},
		engine:         deps.Engine,
		exceptionRoles: allowed,
		txManager:      deps.TxManager,
		publisher:      publisher{dispatcher: deps.Dispatcher, logger: logger},
		now:            now,
		logger:         logger,
	}
}

func (s *approvalServiceImpl) Submit(ctx context.Context, actor entity.Actor, id int64) (*entity.Requisition, error) {
	if err := requireRole(actor, entity.RoleUser); err != nil {
		return nil, err
	}

	var pr *entity.Requisition
	var events []*event.Event
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		events = nil
		now := s.now()

		var err error
		pr, err = s.reqRepo.GetByID(txCtx, id)
		if err != nil {
			return err
		}
		if pr.CreatedBy != actor.UserID {
			return apperr.NotFound("PR %d not found", id)
		}

		d, err := s.engine.Decide(txCtx, pr, domainwf.TriggerSubmit)
		if err != nil {
			return err
		}
		if err := s.reqRepo.Transition(txCtx, port.Transition{
			ID:         id,
			FromStatus: d.From,
			FromRole:   d.FromRole,
			ToStatus:   d.To,
			ToRole:     d.NextRole,
			At:         now,
		}); err != nil {
			return err
		}
		if err := s.slotRepo.Reset(txCtx, id, d.Path); err != nil {
			return fmt.Errorf("reset approval slots: %w", err)
		}
		if err := appendHistory(txCtx, s.historyRepo, id, entity.ActionSubmit, actor, d.From, d.To, "", now); err != nil {
			return err
		}
		if _, err := s.notifier.notifyRole(txCtx, d.NextRole, "PR Pending Approval",
			fmt.Sprintf("PR %s requires your approval.", pr.PRNo),
			entity.NotificationWarning, id, now); err != nil {
			return fmt.Errorf("notify approver: %w", err)
		}

		pr.Status, pr.CurrentApproverRole, pr.UpdatedAt = d.To, d.NextRole, now
		events = append(events, event.NewEvent(event.TypeRequisitionSubmitted, id, actor.UserID, map[string]interface{}{
			"pr_no":     pr.PRNo,
			"next_role": string(d.NextRole),
			"path":      rolesToStrings(d.Path),
		}))
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to submit requisition", "error", err, "pr_id", id, "user_id", actor.UserID)
		return nil, err
	}

	s.logger.Info("Requisition submitted", "pr_id", id, "pr_no", pr.PRNo, "next_role", string(pr.CurrentApproverRole))
	s.publisher.publish(ctx, events)
	return pr, nil
}

// precheck classifies why actor cannot act on pr. The transition itself is
// still guarded by the conditional update, so a concurrent winner between
// this read and the write surfaces as a conflict.
func (s *approvalServiceImpl) precheck(pr *entity.Requisition, actor entity.Actor) error {
	if pr.Status != entity.StatusPendingApproval {
		return apperr.Conflict("PR %s is %s, not pending approval", pr.PRNo, pr.Status)
	}
	if actor.Role == pr.CurrentApproverRole {
		return nil
	}
	path := s.engine.Path(pr)
	mine, current := domainwf.Position(path, actor.Role), domainwf.Position(path, pr.CurrentApproverRole)
	if mine >= 0 && current >= 0 && mine < current {
		return apperr.Conflict("PR %s has already moved past %s", pr.PRNo, actor.Role)
	}
	return apperr.Authorization("PR %s is awaiting %s, not %s", pr.PRNo, pr.CurrentApproverRole, actor.Role)
}

func (s *approvalServiceImpl) Act(ctx context.Context, actor entity.Actor, id int64, action Action, comments string) (*entity.Requisition, error) {
	if !actor.Role.IsApprover() {
		return nil, apperr.Authorization("role %s may not act on approvals", actor.Role)
	}
	trigger, historyAction, slotStatus, err := actionMapping(action)
	if err != nil {
		return nil, err
	}
	comments = strings.TrimSpace(comments)

	var pr *entity.Requisition
	var events []*event.Event
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		events = nil
		now := s.now()

		var err error
		pr, err = s.reqRepo.GetByID(txCtx, id)
		if err != nil {
			return err
		}
		if err := s.precheck(pr, actor); err != nil {
			return err
		}

		d, err := s.engine.Decide(txCtx, pr, trigger)
		if err != nil {
			return err
		}

		t := port.Transition{
			ID:         id,
			FromStatus: d.From,
			FromRole:   d.FromRole,
			ToStatus:   d.To,
			ToRole:     d.NextRole,
			At:         now,
		}
		var reason string
		switch action {
		case ActionReject:
			reason = fmt.Sprintf("Rejected by %s: %s", actor.Role, comments)
			t.RejectionReason = &reason
		case ActionReturn:
			reason = fmt.Sprintf("Returned by %s for revision: %s", actor.Role, comments)
			t.RejectionReason = &reason
		}
		if err := s.reqRepo.Transition(txCtx, t); err != nil {
			return err
		}
		if err := s.slotRepo.Record(txCtx, id, actor.Role, slotStatus, actor.UserID, comments, now); err != nil {
			return fmt.Errorf("record approval slot: %w", err)
		}
		if err := appendHistory(txCtx, s.historyRepo, id, historyAction, actor, d.From, d.To, comments, now); err != nil {
			return err
		}

		evt, err := s.notifyOutcome(txCtx, pr, actor, action, d, now)
		if err != nil {
			return err
		}
		events = append(events, evt)

		pr.Status, pr.CurrentApproverRole, pr.UpdatedAt = d.To, d.NextRole, now
		if reason != "" {
			pr.RejectionReason = reason
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to process approval action", "error", err, "pr_id", id,
			"action", string(action), "role", string(actor.Role))
		return nil, err
	}

	s.logger.Info("Approval action processed", "pr_id", id, "pr_no", pr.PRNo, "action", string(action),
		"role", string(actor.Role), "status", string(pr.Status), "next_role", string(pr.CurrentApproverRole))
	s.publisher.publish(ctx, events)
	return pr, nil
}

// notifyOutcome writes the notifications for an approval decision and returns its event
func (s *approvalServiceImpl) notifyOutcome(ctx context.Context, pr *entity.Requisition, actor entity.Actor,
	action Action, d workflow.Decision, now time.Time) (*event.Event, error) {
	payload := map[string]interface{}{
		"pr_no":    pr.PRNo,
		"role":     string(actor.Role),
		"decision": string(action),
	}

	switch {
	case action == ActionApprove && d.Advanced():
		if _, err := s.notifier.notifyRole(ctx, d.NextRole, "PR Pending Your Approval",
			fmt.Sprintf("PR %s has been approved by %s and now requires your approval.", pr.PRNo, actor.Role),
			entity.NotificationWarning, pr.ID, now); err != nil {
			return nil, fmt.Errorf("notify next approver: %w", err)
		}
		payload["next_role"] = string(d.NextRole)
		return event.NewEvent(event.TypeRequisitionAdvanced, pr.ID, actor.UserID, payload), nil

	case action == ActionApprove:
		if _, err := s.notifier.notifyRole(ctx, entity.RoleProcurement, "PR Approved - Ready for Procurement",
			fmt.Sprintf("PR %s has been fully approved and is ready for procurement processing.", pr.PRNo),
			entity.NotificationSuccess, pr.ID, now); err != nil {
			return nil, fmt.Errorf("notify procurement: %w", err)
		}
		if err := s.notifier.notifyUser(ctx, pr.CreatedBy, "PR Fully Approved",
			fmt.Sprintf("Your PR %s has been fully approved!", pr.PRNo),
			entity.NotificationSuccess, pr.ID, now); err != nil {
			return nil, fmt.Errorf("notify requester: %w", err)
		}
		return event.NewEvent(event.TypeRequisitionApproved, pr.ID, actor.UserID, payload), nil

	case action == ActionReject:
		if err := s.notifier.notifyUser(ctx, pr.CreatedBy, "PR Rejected",
			fmt.Sprintf("Your PR %s has been rejected by %s.", pr.PRNo, actor.Role),
			entity.NotificationDanger, pr.ID, now); err != nil {
			return nil, fmt.Errorf("notify requester: %w", err)
		}
		return event.NewEvent(event.TypeRequisitionRejected, pr.ID, actor.UserID, payload), nil

	default:
		if err := s.notifier.notifyUser(ctx, pr.CreatedBy, "PR Returned for Revision",
			fmt.Sprintf("Your PR %s has been returned for revision by %s.", pr.PRNo, actor.Role),
			entity.NotificationWarning, pr.ID, now); err != nil {
			return nil, fmt.Errorf("notify requester: %w", err)
		}
		return event.NewEvent(event.TypeRequisitionReturned, pr.ID, actor.UserID, payload), nil
	}
}

func (s *approvalServiceImpl) DecideBudgetException(ctx context.Context, actor entity.Actor, id int64, approve bool, comments string) (*entity.Requisition, error) {
	if !s.exceptionRoles[actor.Role] {
		return nil, apperr.Authorization("role %s may not decide budget exceptions", actor.Role)
	}
	comments = strings.TrimSpace(comments)

	trigger, action := domainwf.TriggerExceptionReject, entity.ActionBudgetExceptionReject
	if approve {
		trigger, action = domainwf.TriggerExceptionApprove, entity.ActionBudgetExceptionApprove
	}

	var pr *entity.Requisition
	var events []*event.Event
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		events = nil
		now := s.now()

		var err error
		pr, err = s.reqRepo.GetByID(txCtx, id)
		if err != nil {
			return err
		}
		if pr.BudgetStatus != entity.BudgetOutOfBudget {
			return apperr.NotFound("PR %s does not require a budget exception", pr.PRNo)
		}

		d, err := s.engine.Decide(txCtx, pr, trigger)
		if err != nil {
			return err
		}

		t := port.Transition{
			ID:         id,
			FromStatus: d.From,
			FromRole:   d.FromRole,
			ToStatus:   d.To,
			ToRole:     "",
			At:         now,
		}
		var evt *event.Event
		payload := map[string]interface{}{"pr_no": pr.PRNo, "role": string(actor.Role)}
		if approve {
			status := entity.BudgetExceptionApproved
			t.BudgetStatus = &status
			t.ExceptionApprover = int64Ptr(actor.UserID)
			t.ExceptionNotes = &comments
			t.ExceptionAt = &now
			evt = event.NewEvent(event.TypeBudgetExceptionApproved, id, actor.UserID, payload)
		} else {
			reason := "Budget exception rejected: " + comments
			t.RejectionReason = &reason
			pr.RejectionReason = reason
			evt = event.NewEvent(event.TypeBudgetExceptionRejected, id, actor.UserID, payload)
		}
		if err := s.reqRepo.Transition(txCtx, t); err != nil {
			return err
		}
		if err := appendHistory(txCtx, s.historyRepo, id, action, actor, d.From, d.To, comments, now); err != nil {
			return err
		}

		title, message, kind := "Budget Exception Rejected",
			fmt.Sprintf("Budget exception for PR %s has been rejected.", pr.PRNo), entity.NotificationDanger
		if approve {
			title, message, kind = "Budget Exception Approved",
				fmt.Sprintf("Budget exception for PR %s has been approved.", pr.PRNo), entity.NotificationSuccess
		}
		if err := s.notifier.notifyUser(txCtx, pr.CreatedBy, title, message, kind, id, now); err != nil {
			return fmt.Errorf("notify requester: %w", err)
		}

		pr.Status, pr.UpdatedAt = d.To, now
		if approve {
			pr.BudgetStatus = entity.BudgetExceptionApproved
			pr.BudgetExceptionApprover = int64Ptr(actor.UserID)
			pr.BudgetExceptionNotes = comments
			pr.BudgetExceptionDate = &now
		}
		events = append(events, evt)
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to decide budget exception", "error", err, "pr_id", id, "approve", approve)
		return nil, err
	}

	s.logger.Info("Budget exception decided", "pr_id", id, "pr_no", pr.PRNo, "approve", approve, "status", string(pr.Status))
	s.publisher.publish(ctx, events)
	return pr, nil
}

func (s *approvalServiceImpl) ListPending(ctx context.Context, actor entity.Actor) (*PendingWork, error) {
	if !actor.Role.IsApprover() && !s.exceptionRoles[actor.Role] {
		return nil, apperr.Authorization("role %s has no approval queue", actor.Role)
	}

	work := &PendingWork{
		Approvals:        []*entity.Requisition{},
		BudgetExceptions: []*entity.Requisition{},
	}
	if actor.Role.IsApprover() {
		prs, err := s.reqRepo.ListByStatus(ctx, entity.StatusPendingApproval, actor.Role)
		if err != nil {
			s.logger.Error("Failed to list pending approvals", "error", err, "role", string(actor.Role))
			return nil, err
		}
		work.Approvals = prs
	}
	if s.exceptionRoles[actor.Role] {
		prs, err := s.reqRepo.ListByStatus(ctx, entity.StatusBudgetExceptionPending, "")
		if err != nil {
			s.logger.Error("Failed to list budget exceptions", "error", err, "role", string(actor.Role))
			return nil, err
		}
		work.BudgetExceptions = prs
	}
	return work, nil
}

func actionMapping(action Action) (domainwf.Trigger, string, string, error) {
	switch action {
	case ActionApprove:
		return domainwf.TriggerApprove, entity.ActionApprove, entity.SlotStatusApproved, nil
	case ActionReject:
		return domainwf.TriggerReject, entity.ActionReject, entity.SlotStatusRejected, nil
	case ActionReturn:
		return domainwf.TriggerReturn, entity.ActionReturn, entity.SlotStatusReturned, nil
	}
	return "", "", "", apperr.Validation("unknown action %q", action)
}

func rolesToStrings(roles []entity.Role) []string {
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = string(r)
	}
	return out
}
