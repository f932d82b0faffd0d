package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/garyjia/pr-workflow/internal/application/dispatcher"
	"github.com/garyjia/pr-workflow/internal/application/port"
	"github.com/garyjia/pr-workflow/internal/domain/apperr"
	"github.com/garyjia/pr-workflow/internal/domain/entity"
	"github.com/garyjia/pr-workflow/internal/domain/event"
	"github.com/garyjia/pr-workflow/pkg/utils"
	"github.com/shopspring/decimal"
)

// Availability is the result of a budget check or reservation
type Availability struct {
	Available bool            `json:"available"`
	Remaining decimal.Decimal `json:"remaining"`
	Message   string          `json:"message"`
}

// BudgetService manages the budget ledger
type BudgetService interface {
	// CheckAvailability reports whether amount fits in the category without reserving it
	CheckAvailability(ctx context.Context, department, category string, amount decimal.Decimal, fiscalYear string) (Availability, error)
	// Reserve checks and commits amount in one atomic step. On success
	// Remaining is the balance after the reservation.
	Reserve(ctx context.Context, department, category string, amount decimal.Decimal, fiscalYear string) (Availability, error)
	Allocate(ctx context.Context, actor entity.Actor, budget *entity.BudgetCategory) error
	List(ctx context.Context, department, fiscalYear string) ([]*entity.BudgetCategory, error)
	// SeedDefaults inserts the standard categories for fiscalYear, skipping existing keys
	SeedDefaults(ctx context.Context, fiscalYear string) (int, error)
}

// DefaultBudgetCategories are seeded for a new fiscal year
var DefaultBudgetCategories = []entity.BudgetCategory{
	{Department: "IT", Category: "Hardware", Allocated: decimal.NewFromInt(500000)},
	{Department: "IT", Category: "Software", Allocated: decimal.NewFromInt(300000)},
	{Department: "HR", Category: "Training", Allocated: decimal.NewFromInt(200000)},
	{Department: "FINANCE", Category: "Office Supplies", Allocated: decimal.NewFromInt(100000)},
	{Department: "OPERATIONS", Category: "Maintenance", Allocated: decimal.NewFromInt(400000)},
}

type budgetServiceImpl struct {
	budgetRepo port.BudgetRepository
	txManager  port.TransactionManager
	publisher  publisher
	logger     Logger
}

// NewBudgetService creates a new BudgetService
func NewBudgetService(
	budgetRepo port.BudgetRepository,
	txManager port.TransactionManager,
	d dispatcher.Dispatcher,
	logger Logger,
) BudgetService {
	return &budgetServiceImpl{
		budgetRepo: budgetRepo,
		txManager:  txManager,
		publisher:  publisher{dispatcher: d, logger: logger},
		logger:     logger,
	}
}

func (s *budgetServiceImpl) CheckAvailability(ctx context.Context, department, category string, amount decimal.Decimal, fiscalYear string) (Availability, error) {
	budget, err := s.budgetRepo.Get(ctx, department, category, fiscalYear)
	if errors.Is(err, apperr.ErrNotFound) {
		return Availability{Remaining: decimal.Zero, Message: "Budget category not found"}, nil
	}
	if err != nil {
		return Availability{}, fmt.Errorf("get budget: %w", err)
	}

	if budget.Remaining.GreaterThanOrEqual(amount) {
		return Availability{Available: true, Remaining: budget.Remaining, Message: "Within budget"}, nil
	}
	return Availability{
		Remaining: budget.Remaining,
		Message:   "Insufficient budget. Remaining: " + utils.FormatAmount(budget.Remaining),
	}, nil
}

func (s *budgetServiceImpl) Reserve(ctx context.Context, department, category string, amount decimal.Decimal, fiscalYear string) (Availability, error) {
	if err := utils.ValidateAmount(amount); err != nil {
		return Availability{}, apperr.Validation("%s", err.Error())
	}

	ok, err := s.budgetRepo.Reserve(ctx, department, category, fiscalYear, amount)
	if err != nil {
		return Availability{}, fmt.Errorf("reserve budget: %w", err)
	}
	if !ok {
		// Nothing was written; report why from the current row.
		return s.CheckAvailability(ctx, department, category, amount, fiscalYear)
	}

	budget, err := s.budgetRepo.Get(ctx, department, category, fiscalYear)
	if err != nil {
		return Availability{}, fmt.Errorf("get budget: %w", err)
	}
	return Availability{Available: true, Remaining: budget.Remaining, Message: "Within budget"}, nil
}

func (s *budgetServiceImpl) Allocate(ctx context.Context, actor entity.Actor, budget *entity.BudgetCategory) error {
	if err := requireRole(actor, entity.RoleSuperAdmin); err != nil {
		return err
	}

	budget.Department = utils.NormalizeDepartment(budget.Department)
	budget.Category = utils.SanitizeString(budget.Category)
	if budget.Department == "" || budget.Category == "" {
		return apperr.Validation("department and category are required")
	}
	if err := utils.ValidateFiscalYear(budget.FiscalYear); err != nil {
		return apperr.Validation("%s", err.Error())
	}
	if err := utils.ValidateAmount(budget.Allocated); err != nil {
		return apperr.Validation("%s", err.Error())
	}
	budget.Spent = decimal.Zero

	if err := s.budgetRepo.Create(ctx, budget); err != nil {
		s.logger.Error("Failed to allocate budget", "error", err,
			"department", budget.Department, "category", budget.Category, "fiscal_year", budget.FiscalYear)
		return err
	}

	s.logger.Info("Budget allocated", "id", budget.ID, "department", budget.Department,
		"category", budget.Category, "fiscal_year", budget.FiscalYear, "allocated", budget.Allocated.String())
	s.publisher.publish(ctx, []*event.Event{
		event.NewEvent(event.TypeBudgetCategoryAllocated, 0, actor.UserID, map[string]interface{}{
			"department":  budget.Department,
			"category":    budget.Category,
			"fiscal_year": budget.FiscalYear,
			"allocated":   budget.Allocated.String(),
		}),
	})
	return nil
}

func (s *budgetServiceImpl) List(ctx context.Context, department, fiscalYear string) ([]*entity.BudgetCategory, error) {
	budgets, err := s.budgetRepo.List(ctx, utils.NormalizeDepartment(department), strings.TrimSpace(fiscalYear))
	if err != nil {
		s.logger.Error("Failed to list budgets", "error", err, "department", department, "fiscal_year", fiscalYear)
		return nil, err
	}
	return budgets, nil
}

func (s *budgetServiceImpl) SeedDefaults(ctx context.Context, fiscalYear string) (int, error) {
	if err := utils.ValidateFiscalYear(fiscalYear); err != nil {
		return 0, apperr.Validation("%s", err.Error())
	}

	inserted := 0
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		inserted = 0
		for _, def := range DefaultBudgetCategories {
			b := def
			b.FiscalYear = fiscalYear
			ok, err := s.budgetRepo.CreateIfMissing(txCtx, &b)
			if err != nil {
				return fmt.Errorf("seed %s/%s: %w", b.Department, b.Category, err)
			}
			if ok {
				inserted++
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to seed budgets", "error", err, "fiscal_year", fiscalYear)
		return 0, err
	}

	s.logger.Info("Default budgets seeded", "fiscal_year", fiscalYear, "inserted", inserted)
	return inserted, nil
}
