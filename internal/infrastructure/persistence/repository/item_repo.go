package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/garyjia/pr-workflow/internal/application/port"
	"github.com/garyjia/pr-workflow/internal/domain/entity"
	"github.com/garyjia/pr-workflow/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/pr-workflow/pkg/utils"
	"go.uber.org/zap"
)

// ItemRepository implements port.ItemRepository
type ItemRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewItemRepository creates a new line item repository
func NewItemRepository(db *sql.DB, logger *zap.Logger) port.ItemRepository {
	return &ItemRepository{db: db, logger: logger}
}

// CreateBatch inserts the PR's line items in order
func (r *ItemRepository) CreateBatch(ctx context.Context, prID int64, items []entity.LineItem) error {
	query := `
		INSERT INTO pr_items (pr_id, item_no, description, quantity, unit_of_measure, unit_price_cents, total_price_cents)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	exec := sqlite.Conn(ctx, r.db)
	for i := range items {
		item := &items[i]
		result, err := exec.ExecContext(ctx, query,
			prID, item.ItemNo, item.Description, item.Quantity, item.UnitOfMeasure,
			utils.ToCents(item.UnitPrice), utils.ToCents(item.TotalPrice))
		if err != nil {
			return insertError(r.logger, err, fmt.Sprintf("item %d already exists on PR %d", item.ItemNo, prID),
				zap.Int64("pr_id", prID), zap.Int("item_no", item.ItemNo))
		}
		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
		item.ID = id
		item.PRID = prID
	}
	return nil
}

// ListByPR returns the PR's items ordered by item number
func (r *ItemRepository) ListByPR(ctx context.Context, prID int64) ([]entity.LineItem, error) {
	query := `
		SELECT id, pr_id, item_no, description, quantity, unit_of_measure, unit_price_cents, total_price_cents
		FROM pr_items WHERE pr_id = ? ORDER BY item_no
	`

	rows, err := sqlite.Conn(ctx, r.db).QueryContext(ctx, query, prID)
	if err != nil {
		r.logger.Error("Failed to list items", zap.Int64("pr_id", prID), zap.Error(err))
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	var items []entity.LineItem
	for rows.Next() {
		var item entity.LineItem
		var unit, total int64
		if err := rows.Scan(&item.ID, &item.PRID, &item.ItemNo, &item.Description, &item.Quantity,
			&item.UnitOfMeasure, &unit, &total); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		item.UnitPrice = utils.FromCents(unit)
		item.TotalPrice = utils.FromCents(total)
		items = append(items, item)
	}
	return items, rows.Err()
}
