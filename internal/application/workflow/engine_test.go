package workflow

import (
	"context"
	"testing"

	"github.com/garyjia/pr-workflow/internal/domain/apperr"
	"github.com/garyjia/pr-workflow/internal/domain/entity"
	domainwf "github.com/garyjia/pr-workflow/internal/domain/workflow"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPR(amount string, budget entity.BudgetStatus, status entity.Status, role entity.Role) *entity.Requisition {
	return &entity.Requisition{
		PRNo:                "PR-2026-IT-001",
		TotalAmount:         decimal.RequireFromString(amount),
		BudgetStatus:        budget,
		Status:              status,
		CurrentApproverRole: role,
	}
}

func TestBuildRequisitionStateMachine(t *testing.T) {
	ctx := context.Background()
	yes := func(context.Context) bool { return true }
	no := func(context.Context) bool { return false }

	tests := []struct {
		name    string
		initial domainwf.State
		guard   domainwf.GuardFunc
		trigger domainwf.Trigger
		want    domainwf.State
		wantErr error
	}{
		{"submit draft", domainwf.StateDraft, nil, domainwf.TriggerSubmit, domainwf.StatePendingApproval, nil},
		{"approve with next role", domainwf.StatePendingApproval, yes, domainwf.TriggerApprove, domainwf.StatePendingApproval, nil},
		{"approve last role", domainwf.StatePendingApproval, no, domainwf.TriggerApprove, domainwf.StateApproved, nil},
		{"approve without guard", domainwf.StatePendingApproval, nil, domainwf.TriggerApprove, domainwf.StateApproved, nil},
		{"reject", domainwf.StatePendingApproval, nil, domainwf.TriggerReject, domainwf.StateRejected, nil},
		{"return", domainwf.StatePendingApproval, nil, domainwf.TriggerReturn, domainwf.StateDraft, nil},
		{"exception approve", domainwf.StateBudgetExceptionPending, nil, domainwf.TriggerExceptionApprove, domainwf.StateDraft, nil},
		{"exception reject", domainwf.StateBudgetExceptionPending, nil, domainwf.TriggerExceptionReject, domainwf.StateRejected, nil},
		{"issue po", domainwf.StateApproved, nil, domainwf.TriggerIssuePO, domainwf.StatePOCreated, nil},
		{"approve draft", domainwf.StateDraft, nil, domainwf.TriggerApprove, domainwf.StateDraft, domainwf.ErrInvalidTransition},
		{"submit exception pending", domainwf.StateBudgetExceptionPending, nil, domainwf.TriggerSubmit, domainwf.StateBudgetExceptionPending, domainwf.ErrInvalidTransition},
		{"issue po twice", domainwf.StatePOCreated, nil, domainwf.TriggerIssuePO, domainwf.StatePOCreated, domainwf.ErrTerminalState},
		{"act on rejected", domainwf.StateRejected, nil, domainwf.TriggerApprove, domainwf.StateRejected, domainwf.ErrTerminalState},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sm, err := BuildRequisitionStateMachine(tt.initial, tt.guard)
			require.NoError(t, err)

			err = sm.Fire(ctx, tt.trigger)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, sm.State())
		})
	}
}

func TestBuildRequisitionStateMachine_InvalidInitial(t *testing.T) {
	_, err := BuildRequisitionStateMachine(domainwf.State("SUBMITTED"), nil)
	assert.ErrorIs(t, err, domainwf.ErrInvalidState)
}

func TestEngine_Decide(t *testing.T) {
	ctx := context.Background()
	eng := NewWorkflowEngine(domainwf.DefaultThresholds())

	t.Run("submit routes to first role", func(t *testing.T) {
		d, err := eng.Decide(ctx, newPR("30000", entity.BudgetInBudget, entity.StatusDraft, ""), domainwf.TriggerSubmit)
		require.NoError(t, err)
		assert.Equal(t, entity.StatusPendingApproval, d.To)
		assert.Equal(t, entity.RoleApprover2, d.NextRole)
		assert.Equal(t, []entity.Role{entity.RoleApprover2, entity.RoleApprover3}, d.Path)
	})

	t.Run("approve advances within path", func(t *testing.T) {
		d, err := eng.Decide(ctx, newPR("30000", entity.BudgetInBudget, entity.StatusPendingApproval, entity.RoleApprover2), domainwf.TriggerApprove)
		require.NoError(t, err)
		assert.True(t, d.Advanced())
		assert.Equal(t, entity.RoleApprover3, d.NextRole)
		assert.Equal(t, entity.RoleApprover2, d.FromRole)
	})

	t.Run("approve by last role completes", func(t *testing.T) {
		d, err := eng.Decide(ctx, newPR("30000", entity.BudgetInBudget, entity.StatusPendingApproval, entity.RoleApprover3), domainwf.TriggerApprove)
		require.NoError(t, err)
		assert.False(t, d.Advanced())
		assert.Equal(t, entity.StatusApproved, d.To)
		assert.Empty(t, d.NextRole)
	})

	t.Run("exception approved PR routes by amount", func(t *testing.T) {
		d, err := eng.Decide(ctx, newPR("75000", entity.BudgetExceptionApproved, entity.StatusDraft, ""), domainwf.TriggerSubmit)
		require.NoError(t, err)
		assert.Equal(t, entity.RoleApprover4, d.NextRole)
	})

	t.Run("role outside path is a conflict", func(t *testing.T) {
		_, err := eng.Decide(ctx, newPR("5000", entity.BudgetInBudget, entity.StatusPendingApproval, entity.RoleApprover4), domainwf.TriggerApprove)
		assert.ErrorIs(t, err, apperr.ErrConflict)
	})

	t.Run("invalid transition is a conflict", func(t *testing.T) {
		_, err := eng.Decide(ctx, newPR("5000", entity.BudgetInBudget, entity.StatusApproved, ""), domainwf.TriggerSubmit)
		assert.ErrorIs(t, err, apperr.ErrConflict)
	})

	t.Run("terminal state is a conflict", func(t *testing.T) {
		_, err := eng.Decide(ctx, newPR("5000", entity.BudgetInBudget, entity.StatusPOCreated, ""), domainwf.TriggerIssuePO)
		assert.ErrorIs(t, err, apperr.ErrConflict)
	})
}

func TestEngine_Permitted(t *testing.T) {
	eng := NewWorkflowEngine(domainwf.DefaultThresholds())

	triggers, err := eng.Permitted(newPR("1", entity.BudgetInBudget, entity.StatusPendingApproval, entity.RoleApprover1))
	require.NoError(t, err)
	assert.Equal(t, []domainwf.Trigger{domainwf.TriggerApprove, domainwf.TriggerReject, domainwf.TriggerReturn}, triggers)

	triggers, err = eng.Permitted(newPR("1", entity.BudgetInBudget, entity.StatusRejected, ""))
	require.NoError(t, err)
	assert.Empty(t, triggers)
}
