package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/garyjia/pr-workflow/internal/application/port"
	"github.com/garyjia/pr-workflow/internal/domain/apperr"
	"github.com/garyjia/pr-workflow/internal/domain/entity"
	"github.com/garyjia/pr-workflow/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/pr-workflow/pkg/utils"
	"go.uber.org/zap"
)

// PurchaseOrderRepository implements port.PurchaseOrderRepository
type PurchaseOrderRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPurchaseOrderRepository creates a new PO repository
func NewPurchaseOrderRepository(db *sql.DB, logger *zap.Logger) port.PurchaseOrderRepository {
	return &PurchaseOrderRepository{db: db, logger: logger}
}

const poColumns = `id, pr_id, po_no, po_date, vendor_name, total_cents, currency, created_by, created_at`

func scanPO(row interface{ Scan(...interface{}) error }) (*entity.PurchaseOrder, error) {
	var po entity.PurchaseOrder
	var total int64
	if err := row.Scan(&po.ID, &po.PRID, &po.PONo, &po.PODate, &po.VendorName, &total,
		&po.Currency, &po.CreatedBy, &po.CreatedAt); err != nil {
		return nil, err
	}
	po.TotalAmount = utils.FromCents(total)
	return &po, nil
}

// Create inserts a PO. UNIQUE(pr_id) and UNIQUE(po_no) both surface as a conflict.
func (r *PurchaseOrderRepository) Create(ctx context.Context, po *entity.PurchaseOrder) error {
	query := `
		INSERT INTO po (pr_id, po_no, po_date, vendor_name, total_cents, currency, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, query,
		po.PRID, po.PONo, po.PODate.UTC(), po.VendorName, utils.ToCents(po.TotalAmount),
		po.Currency, po.CreatedBy, po.CreatedAt.UTC())
	if err != nil {
		return insertError(r.logger, err,
			fmt.Sprintf("a PO already exists for PR %d or PO number %s is taken", po.PRID, po.PONo),
			zap.Int64("pr_id", po.PRID), zap.String("po_no", po.PONo))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	po.ID = id
	return nil
}

// GetByID retrieves a PO
func (r *PurchaseOrderRepository) GetByID(ctx context.Context, id int64) (*entity.PurchaseOrder, error) {
	po, err := scanPO(sqlite.Conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT `+poColumns+` FROM po WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("PO %d not found", id)
	}
	if err != nil {
		r.logger.Error("Failed to get PO", zap.Int64("po_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get PO: %w", err)
	}
	return po, nil
}

// GetByPRID retrieves the PO issued for a PR
func (r *PurchaseOrderRepository) GetByPRID(ctx context.Context, prID int64) (*entity.PurchaseOrder, error) {
	po, err := scanPO(sqlite.Conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT `+poColumns+` FROM po WHERE pr_id = ?`, prID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("no PO for PR %d", prID)
	}
	if err != nil {
		r.logger.Error("Failed to get PO by PR", zap.Int64("pr_id", prID), zap.Error(err))
		return nil, fmt.Errorf("failed to get PO: %w", err)
	}
	return po, nil
}

// CountByYear counts auto-numbered POs for a year
func (r *PurchaseOrderRepository) CountByYear(ctx context.Context, year int) (int, error) {
	var n int
	err := sqlite.Conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM po WHERE po_no LIKE ?`,
		fmt.Sprintf("PO-%04d-%%", year)).Scan(&n)
	if err != nil {
		r.logger.Error("Failed to count POs", zap.Int("year", year), zap.Error(err))
		return 0, fmt.Errorf("failed to count POs: %w", err)
	}
	return n, nil
}
