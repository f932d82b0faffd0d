package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/garyjia/pr-workflow/internal/application/port"
	"github.com/garyjia/pr-workflow/internal/domain/apperr"
	"github.com/garyjia/pr-workflow/internal/domain/entity"
	"github.com/garyjia/pr-workflow/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/pr-workflow/pkg/utils"
	"go.uber.org/zap"
)

// RequisitionRepository implements port.RequisitionRepository
type RequisitionRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewRequisitionRepository creates a new requisition repository
func NewRequisitionRepository(db *sql.DB, logger *zap.Logger) port.RequisitionRepository {
	return &RequisitionRepository{db: db, logger: logger}
}

const requisitionColumns = `id, pr_no, fiscal_year, created_at, created_by, requester_name, department,
	budget_category, budget_status, budget_exception_approver, budget_exception_date, budget_exception_notes,
	purpose, priority, vendor_name, vendor_code, vendor_contact,
	total_cents, tax_cents, grand_total_cents, currency,
	status, current_approver_role, rejection_reason, quotation_path,
	procurement_received_at, procurement_officer_id, updated_at`

func scanRequisition(row interface{ Scan(...interface{}) error }) (*entity.Requisition, error) {
	var pr entity.Requisition
	var exceptionApprover, officer sql.NullInt64
	var exceptionDate, receivedAt sql.NullTime
	var total, tax, grand int64

	err := row.Scan(
		&pr.ID, &pr.PRNo, &pr.FiscalYear, &pr.CreatedAt, &pr.CreatedBy, &pr.RequesterName, &pr.Department,
		&pr.BudgetCategory, &pr.BudgetStatus, &exceptionApprover, &exceptionDate, &pr.BudgetExceptionNotes,
		&pr.Purpose, &pr.Priority, &pr.VendorName, &pr.VendorCode, &pr.VendorContact,
		&total, &tax, &grand, &pr.Currency,
		&pr.Status, &pr.CurrentApproverRole, &pr.RejectionReason, &pr.QuotationPath,
		&receivedAt, &officer, &pr.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	pr.BudgetExceptionApprover = int64Ptr(exceptionApprover)
	pr.BudgetExceptionDate = timePtr(exceptionDate)
	pr.ProcurementReceivedAt = timePtr(receivedAt)
	pr.ProcurementOfficerID = int64Ptr(officer)
	pr.TotalAmount = utils.FromCents(total)
	pr.TaxAmount = utils.FromCents(tax)
	pr.GrandTotal = utils.FromCents(grand)
	return &pr, nil
}

func (r *RequisitionRepository) queryList(ctx context.Context, query string, args ...interface{}) ([]*entity.Requisition, error) {
	rows, err := sqlite.Conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list requisitions", zap.Error(err))
		return nil, fmt.Errorf("failed to list requisitions: %w", err)
	}
	defer rows.Close()

	var prs []*entity.Requisition
	for rows.Next() {
		pr, err := scanRequisition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan requisition: %w", err)
		}
		prs = append(prs, pr)
	}
	return prs, rows.Err()
}

// Create inserts the PR header and sets its ID
func (r *RequisitionRepository) Create(ctx context.Context, pr *entity.Requisition) error {
	query := `
		INSERT INTO pr (
			pr_no, fiscal_year, created_at, created_by, requester_name, department,
			budget_category, budget_status, purpose, priority,
			vendor_name, vendor_code, vendor_contact,
			total_cents, tax_cents, currency,
			status, current_approver_role, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, query,
		pr.PRNo, pr.FiscalYear, pr.CreatedAt.UTC(), pr.CreatedBy, pr.RequesterName, pr.Department,
		pr.BudgetCategory, pr.BudgetStatus, pr.Purpose, pr.Priority,
		pr.VendorName, pr.VendorCode, pr.VendorContact,
		utils.ToCents(pr.TotalAmount), utils.ToCents(pr.TaxAmount), pr.Currency,
		pr.Status, pr.CurrentApproverRole, pr.UpdatedAt.UTC(),
	)
	if err != nil {
		return insertError(r.logger, err, fmt.Sprintf("PR number %s already exists", pr.PRNo),
			zap.String("pr_no", pr.PRNo))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	pr.ID = id
	pr.GrandTotal = pr.TotalAmount.Add(pr.TaxAmount)
	return nil
}

// GetByID retrieves a PR header
func (r *RequisitionRepository) GetByID(ctx context.Context, id int64) (*entity.Requisition, error) {
	query := `SELECT ` + requisitionColumns + ` FROM pr WHERE id = ?`

	pr, err := scanRequisition(sqlite.Conn(ctx, r.db).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("PR %d not found", id)
	}
	if err != nil {
		r.logger.Error("Failed to get requisition", zap.Int64("pr_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get requisition: %w", err)
	}
	return pr, nil
}

// CountByDepartmentYear counts PRs already numbered for a department and year
func (r *RequisitionRepository) CountByDepartmentYear(ctx context.Context, department, fiscalYear string) (int, error) {
	var n int
	err := sqlite.Conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pr WHERE department = ? AND fiscal_year = ?`,
		department, fiscalYear).Scan(&n)
	if err != nil {
		r.logger.Error("Failed to count requisitions", zap.String("department", department), zap.Error(err))
		return 0, fmt.Errorf("failed to count requisitions: %w", err)
	}
	return n, nil
}

// ListByCreator returns a user's PRs, newest first
func (r *RequisitionRepository) ListByCreator(ctx context.Context, userID int64) ([]*entity.Requisition, error) {
	return r.queryList(ctx,
		`SELECT `+requisitionColumns+` FROM pr WHERE created_by = ? ORDER BY created_at DESC, id DESC`,
		userID)
}

// ListByStatus returns PRs in a status, oldest first
func (r *RequisitionRepository) ListByStatus(ctx context.Context, status entity.Status, role entity.Role) ([]*entity.Requisition, error) {
	return r.queryList(ctx,
		`SELECT `+requisitionColumns+` FROM pr
		WHERE status = ? AND (? = '' OR current_approver_role = ?)
		ORDER BY created_at ASC, id ASC`,
		status, role, role)
}

// Transition applies a guarded status change. The WHERE clause carries the
// expected status and approver role, so of two racing writers only the
// first matches a row.
func (r *RequisitionRepository) Transition(ctx context.Context, t port.Transition) error {
	query := `
		UPDATE pr SET
			status = ?,
			current_approver_role = ?,
			rejection_reason = COALESCE(?, rejection_reason),
			budget_status = COALESCE(?, budget_status),
			budget_exception_approver = COALESCE(?, budget_exception_approver),
			budget_exception_notes = COALESCE(?, budget_exception_notes),
			budget_exception_date = COALESCE(?, budget_exception_date),
			updated_at = ?
		WHERE id = ? AND status = ? AND current_approver_role = ?
	`

	var budgetStatus interface{}
	if t.BudgetStatus != nil {
		budgetStatus = string(*t.BudgetStatus)
	}

	result, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, query,
		t.ToStatus, t.ToRole,
		nullableString(t.RejectionReason),
		budgetStatus,
		nullableInt64(t.ExceptionApprover),
		nullableString(t.ExceptionNotes),
		nullableTime(t.ExceptionAt),
		t.At.UTC(),
		t.ID, t.FromStatus, t.FromRole,
	)
	if err != nil {
		r.logger.Error("Failed to transition requisition",
			zap.Int64("pr_id", t.ID),
			zap.String("from", string(t.FromStatus)),
			zap.String("to", string(t.ToStatus)),
			zap.Error(err))
		return fmt.Errorf("failed to transition requisition: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n != 1 {
		return apperr.Conflict("PR %d is no longer %s awaiting %s", t.ID, t.FromStatus, roleOrNone(t.FromRole))
	}
	return nil
}

func roleOrNone(role entity.Role) string {
	if role == "" {
		return "no approver"
	}
	return string(role)
}

// SetQuotation records the stored quotation file path
func (r *RequisitionRepository) SetQuotation(ctx context.Context, id int64, path string, at time.Time) error {
	result, err := sqlite.Conn(ctx, r.db).ExecContext(ctx,
		`UPDATE pr SET quotation_path = ?, updated_at = ? WHERE id = ?`,
		path, at.UTC(), id)
	if err != nil {
		r.logger.Error("Failed to set quotation", zap.Int64("pr_id", id), zap.Error(err))
		return fmt.Errorf("failed to set quotation: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return apperr.NotFound("PR %d not found", id)
	}
	return nil
}

// MarkProcurementReceived stamps an approved PR as picked up by procurement
func (r *RequisitionRepository) MarkProcurementReceived(ctx context.Context, id, officerID int64, at time.Time) error {
	result, err := sqlite.Conn(ctx, r.db).ExecContext(ctx,
		`UPDATE pr SET procurement_received_at = ?, procurement_officer_id = ?, updated_at = ?
		WHERE id = ? AND status = ? AND procurement_received_at IS NULL`,
		at.UTC(), officerID, at.UTC(), id, entity.StatusApproved)
	if err != nil {
		r.logger.Error("Failed to mark procurement received", zap.Int64("pr_id", id), zap.Error(err))
		return fmt.Errorf("failed to mark procurement received: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return apperr.Conflict("PR %d is not an unreceived approved requisition", id)
	}
	return nil
}
