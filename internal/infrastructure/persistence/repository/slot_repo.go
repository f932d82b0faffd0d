package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/garyjia/pr-workflow/internal/application/port"
	"github.com/garyjia/pr-workflow/internal/domain/apperr"
	"github.com/garyjia/pr-workflow/internal/domain/entity"
	"github.com/garyjia/pr-workflow/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// SlotRepository implements port.SlotRepository. Slots are addressed by
// (pr_id, role) and ordered by their position in the approval path.
type SlotRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSlotRepository creates a new approval slot repository
func NewSlotRepository(db *sql.DB, logger *zap.Logger) port.SlotRepository {
	return &SlotRepository{db: db, logger: logger}
}

// Reset must run inside a transaction to keep delete and insert together.
func (r *SlotRepository) Reset(ctx context.Context, prID int64, path []entity.Role) error {
	exec := sqlite.Conn(ctx, r.db)

	if _, err := exec.ExecContext(ctx, `DELETE FROM pr_approval_slots WHERE pr_id = ?`, prID); err != nil {
		r.logger.Error("Failed to clear approval slots", zap.Int64("pr_id", prID), zap.Error(err))
		return fmt.Errorf("failed to clear approval slots: %w", err)
	}

	for i, role := range path {
		_, err := exec.ExecContext(ctx,
			`INSERT INTO pr_approval_slots (pr_id, position, role, status) VALUES (?, ?, ?, ?)`,
			prID, i, role, entity.SlotStatusPending)
		if err != nil {
			return insertError(r.logger, err, fmt.Sprintf("role %s appears twice in approval path", role),
				zap.Int64("pr_id", prID))
		}
	}
	return nil
}

// Record stores one role's decision
func (r *SlotRepository) Record(ctx context.Context, prID int64, role entity.Role, status string, approverID int64, notes string, at time.Time) error {
	result, err := sqlite.Conn(ctx, r.db).ExecContext(ctx,
		`UPDATE pr_approval_slots SET status = ?, approver_id = ?, acted_at = ?, notes = ?
		WHERE pr_id = ? AND role = ?`,
		status, approverID, at.UTC(), notes, prID, role)
	if err != nil {
		r.logger.Error("Failed to record approval slot",
			zap.Int64("pr_id", prID), zap.String("role", string(role)), zap.Error(err))
		return fmt.Errorf("failed to record approval slot: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return apperr.NotFound("no approval slot for %s on PR %d", role, prID)
	}
	return nil
}

// ListByPR returns the slots in path order
func (r *SlotRepository) ListByPR(ctx context.Context, prID int64) ([]entity.ApprovalSlot, error) {
	rows, err := sqlite.Conn(ctx, r.db).QueryContext(ctx,
		`SELECT id, pr_id, position, role, status, approver_id, acted_at, notes
		FROM pr_approval_slots WHERE pr_id = ? ORDER BY position`, prID)
	if err != nil {
		r.logger.Error("Failed to list approval slots", zap.Int64("pr_id", prID), zap.Error(err))
		return nil, fmt.Errorf("failed to list approval slots: %w", err)
	}
	defer rows.Close()

	var slots []entity.ApprovalSlot
	for rows.Next() {
		var s entity.ApprovalSlot
		var approver sql.NullInt64
		var acted sql.NullTime
		if err := rows.Scan(&s.ID, &s.PRID, &s.Position, &s.Role, &s.Status, &approver, &acted, &s.Notes); err != nil {
			return nil, fmt.Errorf("failed to scan approval slot: %w", err)
		}
		s.ApproverID = int64Ptr(approver)
		s.ActedAt = timePtr(acted)
		slots = append(slots, s)
	}
	return slots, rows.Err()
}
