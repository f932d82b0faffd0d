package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/garyjia/pr-workflow/internal/application/dispatcher"
	"github.com/garyjia/pr-workflow/internal/application/port"
	"github.com/garyjia/pr-workflow/internal/domain/entity"
	"github.com/garyjia/pr-workflow/internal/domain/event"
)

// AuditRecorderName is the dispatcher subscription name of the recorder.
const AuditRecorderName = "audit-recorder"

// AuditRecorder persists every dispatched domain event to the audit log
type AuditRecorder struct {
	auditRepo port.AuditRepository
	logger    Logger
}

// NewAuditRecorder creates a new AuditRecorder
func NewAuditRecorder(auditRepo port.AuditRepository, logger Logger) *AuditRecorder {
	return &AuditRecorder{auditRepo: auditRepo, logger: logger}
}

// Register subscribes the recorder to all event types.
func (a *AuditRecorder) Register(d dispatcher.Dispatcher) {
	d.SubscribeAll(AuditRecorderName, a.Handle)
}

// Handle is a dispatcher.Handler
func (a *AuditRecorder) Handle(ctx context.Context, evt *event.Event) error {
	payload, err := json.Marshal(evt.Payload)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	rec := &entity.AuditRecord{
		EventID:   evt.ID,
		EventType: evt.Type.String(),
		Payload:   string(payload),
		CreatedAt: evt.Timestamp.UTC(),
	}
	if evt.PRID != 0 {
		rec.PRID = int64Ptr(evt.PRID)
	}
	if evt.ActorID != 0 {
		rec.ActorID = int64Ptr(evt.ActorID)
	}

	if err := a.auditRepo.Append(ctx, rec); err != nil {
		a.logger.Error("Failed to record audit event", "error", err, "event_id", evt.ID, "event_type", evt.Type.String())
		return err
	}

	a.logger.Info("Audit event recorded", "event_type", evt.Type.String(), "pr_id", evt.PRID, "actor_id", evt.ActorID)
	return nil
}

// Trail returns the recorded events of a PR
func (a *AuditRecorder) Trail(ctx context.Context, prID int64) ([]*entity.AuditRecord, error) {
	return a.auditRepo.ListByPR(ctx, prID)
}
