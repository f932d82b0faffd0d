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
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// BudgetRepository implements port.BudgetRepository
type BudgetRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewBudgetRepository creates a new budget repository
func NewBudgetRepository(db *sql.DB, logger *zap.Logger) port.BudgetRepository {
	return &BudgetRepository{db: db, logger: logger}
}

const budgetColumns = `id, department, category, fiscal_year, allocated_cents, spent_cents, remaining_cents`

func scanBudget(row interface{ Scan(...interface{}) error }) (*entity.BudgetCategory, error) {
	var b entity.BudgetCategory
	var allocated, spent, remaining int64
	if err := row.Scan(&b.ID, &b.Department, &b.Category, &b.FiscalYear, &allocated, &spent, &remaining); err != nil {
		return nil, err
	}
	b.Allocated = utils.FromCents(allocated)
	b.Spent = utils.FromCents(spent)
	b.Remaining = utils.FromCents(remaining)
	return &b, nil
}

// Get retrieves one budget line by its key
func (r *BudgetRepository) Get(ctx context.Context, department, category, fiscalYear string) (*entity.BudgetCategory, error) {
	query := `SELECT ` + budgetColumns + ` FROM budget_categories
		WHERE department = ? AND category = ? AND fiscal_year = ?`

	b, err := scanBudget(sqlite.Conn(ctx, r.db).QueryRowContext(ctx, query, department, category, fiscalYear))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("budget category %s/%s for %s not found", department, category, fiscalYear)
	}
	if err != nil {
		r.logger.Error("Failed to get budget category",
			zap.String("department", department),
			zap.String("category", category),
			zap.String("fiscal_year", fiscalYear),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get budget category: %w", err)
	}
	return b, nil
}

// List retrieves budget lines ordered by department and category
func (r *BudgetRepository) List(ctx context.Context, department, fiscalYear string) ([]*entity.BudgetCategory, error) {
	query := `SELECT ` + budgetColumns + ` FROM budget_categories
		WHERE (? = '' OR department = ?) AND (? = '' OR fiscal_year = ?)
		ORDER BY fiscal_year DESC, department, category`

	rows, err := sqlite.Conn(ctx, r.db).QueryContext(ctx, query, department, department, fiscalYear, fiscalYear)
	if err != nil {
		r.logger.Error("Failed to list budget categories", zap.Error(err))
		return nil, fmt.Errorf("failed to list budget categories: %w", err)
	}
	defer rows.Close()

	var budgets []*entity.BudgetCategory
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan budget category: %w", err)
		}
		budgets = append(budgets, b)
	}
	return budgets, rows.Err()
}

// Create inserts a new budget line; a duplicate key is a conflict
func (r *BudgetRepository) Create(ctx context.Context, budget *entity.BudgetCategory) error {
	query := `INSERT INTO budget_categories (department, category, fiscal_year, allocated_cents, spent_cents)
		VALUES (?, ?, ?, ?, ?)`

	result, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, query,
		budget.Department, budget.Category, budget.FiscalYear,
		utils.ToCents(budget.Allocated), utils.ToCents(budget.Spent))
	if err != nil {
		return insertError(r.logger, err,
			fmt.Sprintf("budget category %s/%s already exists for %s", budget.Department, budget.Category, budget.FiscalYear),
			zap.String("department", budget.Department), zap.String("category", budget.Category))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	budget.ID = id
	budget.Remaining = budget.Allocated.Sub(budget.Spent)
	return nil
}

// CreateIfMissing inserts the budget line unless its key already exists
func (r *BudgetRepository) CreateIfMissing(ctx context.Context, budget *entity.BudgetCategory) (bool, error) {
	query := `INSERT OR IGNORE INTO budget_categories (department, category, fiscal_year, allocated_cents, spent_cents)
		VALUES (?, ?, ?, ?, ?)`

	result, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, query,
		budget.Department, budget.Category, budget.FiscalYear,
		utils.ToCents(budget.Allocated), utils.ToCents(budget.Spent))
	if err != nil {
		r.logger.Error("Failed to seed budget category", zap.Error(err))
		return false, fmt.Errorf("failed to seed budget category: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n == 1, nil
}

// Reserve performs the availability check and the spend in one statement,
// so two concurrent reservations can never both pass on the same funds.
func (r *BudgetRepository) Reserve(ctx context.Context, department, category, fiscalYear string, amount decimal.Decimal) (bool, error) {
	cents := utils.ToCents(amount)
	query := `UPDATE budget_categories
		SET spent_cents = spent_cents + ?
		WHERE department = ? AND category = ? AND fiscal_year = ?
			AND allocated_cents - spent_cents >= ?`

	result, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, query, cents, department, category, fiscalYear, cents)
	if err != nil {
		r.logger.Error("Failed to reserve budget",
			zap.String("department", department),
			zap.String("category", category),
			zap.Int64("amount_cents", cents),
			zap.Error(err))
		return false, fmt.Errorf("failed to reserve budget: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n == 1, nil
}
