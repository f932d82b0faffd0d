package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/garyjia/pr-workflow/internal/application/port"
	"github.com/garyjia/pr-workflow/internal/domain/entity"
	"github.com/garyjia/pr-workflow/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// AuditRepository implements port.AuditRepository
type AuditRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAuditRepository creates a new audit log repository
func NewAuditRepository(db *sql.DB, logger *zap.Logger) port.AuditRepository {
	return &AuditRepository{db: db, logger: logger}
}

// Append inserts an audit record
func (r *AuditRepository) Append(ctx context.Context, rec *entity.AuditRecord) error {
	result, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, `
		INSERT INTO audit_log (event_id, event_type, pr_id, actor_id, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.EventID, rec.EventType, nullableInt64(rec.PRID), nullableInt64(rec.ActorID), rec.Payload, rec.CreatedAt.UTC())
	if err != nil {
		r.logger.Error("Failed to append audit record", zap.String("event_id", rec.EventID), zap.Error(err))
		return fmt.Errorf("failed to append audit record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	rec.ID = id
	return nil
}

// ListByPR returns the audit trail of a PR in insertion order
func (r *AuditRepository) ListByPR(ctx context.Context, prID int64) ([]*entity.AuditRecord, error) {
	rows, err := sqlite.Conn(ctx, r.db).QueryContext(ctx, `
		SELECT id, event_id, event_type, pr_id, actor_id, payload, created_at
		FROM audit_log WHERE pr_id = ? ORDER BY id`, prID)
	if err != nil {
		r.logger.Error("Failed to list audit records", zap.Int64("pr_id", prID), zap.Error(err))
		return nil, fmt.Errorf("failed to list audit records: %w", err)
	}
	defer rows.Close()

	var out []*entity.AuditRecord
	for rows.Next() {
		var rec entity.AuditRecord
		var pr, actor sql.NullInt64
		if err := rows.Scan(&rec.ID, &rec.EventID, &rec.EventType, &pr, &actor, &rec.Payload, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit record: %w", err)
		}
		rec.PRID = int64Ptr(pr)
		rec.ActorID = int64Ptr(actor)
		out = append(out, &rec)
	}
	return out, rows.Err()
}
