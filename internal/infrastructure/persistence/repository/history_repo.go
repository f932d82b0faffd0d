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

// HistoryRepository implements port.HistoryRepository
type HistoryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *sql.DB, logger *zap.Logger) port.HistoryRepository {
	return &HistoryRepository{db: db, logger: logger}
}

// Append inserts a history record. Rows are never updated afterwards; the
// schema rejects updates with a trigger.
func (r *HistoryRepository) Append(ctx context.Context, entry *entity.HistoryEntry) error {
	query := `
		INSERT INTO approval_history (
			pr_id, action, actor_id, actor_role, previous_status, new_status, comments, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, query,
		entry.PRID,
		entry.Action,
		nullableInt64(entry.ActorID),
		entry.ActorRole,
		entry.PreviousStatus,
		entry.NewStatus,
		entry.Comments,
		entry.CreatedAt.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to create history record", zap.Int64("pr_id", entry.PRID), zap.Error(err))
		return fmt.Errorf("failed to create history: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	entry.ID = id
	return nil
}

// ListByPR retrieves all history records for a PR in insertion order
func (r *HistoryRepository) ListByPR(ctx context.Context, prID int64) ([]entity.HistoryEntry, error) {
	query := `
		SELECT id, pr_id, action, actor_id, actor_role, previous_status, new_status, comments, created_at
		FROM approval_history
		WHERE pr_id = ?
		ORDER BY id ASC
	`

	rows, err := sqlite.Conn(ctx, r.db).QueryContext(ctx, query, prID)
	if err != nil {
		r.logger.Error("Failed to get history by PR", zap.Int64("pr_id", prID), zap.Error(err))
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	defer rows.Close()

	var records []entity.HistoryEntry
	for rows.Next() {
		var record entity.HistoryEntry
		var actor sql.NullInt64
		if err := rows.Scan(
			&record.ID,
			&record.PRID,
			&record.Action,
			&actor,
			&record.ActorRole,
			&record.PreviousStatus,
			&record.NewStatus,
			&record.Comments,
			&record.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan history: %w", err)
		}
		record.ActorID = int64Ptr(actor)
		records = append(records, record)
	}
	return records, rows.Err()
}
