package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/pr-workflow/internal/domain/event"
	"github.com/garyjia/pr-workflow/internal/infrastructure/persistence/repository"
	"github.com/garyjia/pr-workflow/internal/testutil"
)

func TestAuditRecorder_Handle(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	recorder := NewAuditRecorder(repository.NewAuditRepository(db.DB, zap.NewNop()), NopLogger())

	evt := event.NewEvent(event.TypeRequisitionSubmitted, 42, 7, map[string]interface{}{"pr_no": "PR-0042"})
	require.NoError(t, recorder.Handle(ctx, evt))

	// no PR attached: recorded, but not part of any trail
	require.NoError(t, recorder.Handle(ctx, event.NewEvent(event.TypeBudgetCategoryAllocated, 0, 7, nil)))

	trail, err := recorder.Trail(ctx, 42)
	require.NoError(t, err)
	require.Len(t, trail, 1)

	rec := trail[0]
	assert.Equal(t, evt.ID, rec.EventID)
	assert.Equal(t, "requisition.submitted", rec.EventType)
	assert.JSONEq(t, `{"pr_no":"PR-0042"}`, rec.Payload)
	require.NotNil(t, rec.ActorID)
	assert.Equal(t, int64(7), *rec.ActorID)

	var total int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_log`).Scan(&total))
	assert.Equal(t, 2, total)
}

func TestAuditRecorder_TrailEmpty(t *testing.T) {
	db := testutil.NewDB(t)
	recorder := NewAuditRecorder(repository.NewAuditRepository(db.DB, zap.NewNop()), NopLogger())

	trail, err := recorder.Trail(context.Background(), 999)
	require.NoError(t, err)
	assert.Empty(t, trail)
}
