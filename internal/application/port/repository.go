package port

import (
	"context"
	"time"

	"github.com/garyjia/pr-workflow/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// BudgetRepository defines persistence operations for the budget ledger
type BudgetRepository interface {
	Get(ctx context.Context, department, category, fiscalYear string) (*entity.BudgetCategory, error)
	// List filters by department and fiscal year; an empty filter matches all.
	List(ctx context.Context, department, fiscalYear string) ([]*entity.BudgetCategory, error)
	Create(ctx context.Context, budget *entity.BudgetCategory) error
	// CreateIfMissing inserts the row unless the key exists and reports whether it inserted.
	CreateIfMissing(ctx context.Context, budget *entity.BudgetCategory) (bool, error)
	// Reserve adds amount to spent only if the remaining amount covers it.
	// It returns false when no row matched (missing key or insufficient funds).
	Reserve(ctx context.Context, department, category, fiscalYear string, amount decimal.Decimal) (bool, error)
}

// Transition is a guarded status change on a PR. The update applies only
// while the row still has FromStatus and FromRole; optional fields left nil
// keep their stored value.
type Transition struct {
	ID         int64
	FromStatus entity.Status
	FromRole   entity.Role
	ToStatus   entity.Status
	ToRole     entity.Role

	RejectionReason   *string
	BudgetStatus      *entity.BudgetStatus
	ExceptionApprover *int64
	ExceptionNotes    *string
	ExceptionAt       *time.Time

	At time.Time
}

// RequisitionRepository defines persistence operations for PR headers
type RequisitionRepository interface {
	Create(ctx context.Context, pr *entity.Requisition) error
	GetByID(ctx context.Context, id int64) (*entity.Requisition, error)
	CountByDepartmentYear(ctx context.Context, department, fiscalYear string) (int, error)
	ListByCreator(ctx context.Context, userID int64) ([]*entity.Requisition, error)
	// ListByStatus returns PRs in status; a non-empty role also filters on current_approver_role.
	ListByStatus(ctx context.Context, status entity.Status, role entity.Role) ([]*entity.Requisition, error)
	// Transition returns apperr.ErrConflict when the guard matched no row.
	Transition(ctx context.Context, t Transition) error
	SetQuotation(ctx context.Context, id int64, path string, at time.Time) error
	MarkProcurementReceived(ctx context.Context, id, officerID int64, at time.Time) error
}

// ItemRepository defines persistence operations for PR line items
type ItemRepository interface {
	CreateBatch(ctx context.Context, prID int64, items []entity.LineItem) error
	ListByPR(ctx context.Context, prID int64) ([]entity.LineItem, error)
}

// SlotRepository defines persistence operations for approval slots
type SlotRepository interface {
	// Reset replaces the PR's slots with PENDING slots for path.
	Reset(ctx context.Context, prID int64, path []entity.Role) error
	Record(ctx context.Context, prID int64, role entity.Role, status string, approverID int64, notes string, at time.Time) error
	ListByPR(ctx context.Context, prID int64) ([]entity.ApprovalSlot, error)
}

// HistoryRepository defines persistence operations for the append-only approval history
type HistoryRepository interface {
	Append(ctx context.Context, entry *entity.HistoryEntry) error
	ListByPR(ctx context.Context, prID int64) ([]entity.HistoryEntry, error)
}

// PurchaseOrderRepository defines persistence operations for POs
type PurchaseOrderRepository interface {
	Create(ctx context.Context, po *entity.PurchaseOrder) error
	GetByID(ctx context.Context, id int64) (*entity.PurchaseOrder, error)
	GetByPRID(ctx context.Context, prID int64) (*entity.PurchaseOrder, error)
	CountByYear(ctx context.Context, year int) (int, error)
}

// NotificationRepository defines persistence operations for in-app notifications
type NotificationRepository interface {
	Create(ctx context.Context, n *entity.Notification) error
	ListByUser(ctx context.Context, userID int64, limit int) ([]*entity.Notification, error)
	CountUnread(ctx context.Context, userID int64) (int, error)
	MarkRead(ctx context.Context, userID, id int64) error
	MarkAllRead(ctx context.Context, userID int64) (int64, error)
}

// VendorRepository defines persistence operations for vendors
type VendorRepository interface {
	Create(ctx context.Context, v *entity.Vendor) error
	GetByCode(ctx context.Context, code string) (*entity.Vendor, error)
	List(ctx context.Context, activeOnly bool) ([]*entity.Vendor, error)
	Search(ctx context.Context, query string, limit int) ([]*entity.Vendor, error)
	SetActive(ctx context.Context, code string, active bool) error
}

// UserRepository defines persistence operations for accounts
type UserRepository interface {
	Create(ctx context.Context, u *entity.User) error
	GetByID(ctx context.Context, id int64) (*entity.User, error)
	GetByUsername(ctx context.Context, username string) (*entity.User, error)
	ListActiveByRole(ctx context.Context, role entity.Role) ([]*entity.User, error)
	List(ctx context.Context) ([]*entity.User, error)
	SetActive(ctx context.Context, id int64, active bool) error
	SetPasswordHash(ctx context.Context, id int64, hash string) error
	TouchLastLogin(ctx context.Context, id int64, at time.Time) error
}

// AuditRepository persists domain events
type AuditRepository interface {
	Append(ctx context.Context, rec *entity.AuditRecord) error
	ListByPR(ctx context.Context, prID int64) ([]*entity.AuditRecord, error)
}

// TransactionManager handles database transactions. fn may run more than
// once when the store reports lock contention, so it must not leak side
// effects outside the transaction.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
