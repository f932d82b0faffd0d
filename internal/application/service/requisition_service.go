package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/garyjia/pr-workflow/internal/application/dispatcher"
	"github.com/garyjia/pr-workflow/internal/application/port"
	"github.com/garyjia/pr-workflow/internal/domain/apperr"
	"github.com/garyjia/pr-workflow/internal/domain/entity"
	"github.com/garyjia/pr-workflow/internal/domain/event"
	"github.com/garyjia/pr-workflow/pkg/utils"
	"github.com/shopspring/decimal"
)

// MaxQuotationSize caps an uploaded quotation file.
const MaxQuotationSize = 10 << 20

var quotationExtensions = map[string]bool{
	".pdf": true, ".png": true, ".jpg": true, ".jpeg": true,
	".doc": true, ".docx": true, ".xls": true, ".xlsx": true,
}

var validPriorities = map[string]bool{
	entity.PriorityLow:    true,
	entity.PriorityNormal: true,
	entity.PriorityHigh:   true,
	entity.PriorityUrgent: true,
}

// LineItemInput is one requested item; its total is computed, never supplied.
type LineItemInput struct {
	Description   string          `json:"description"`
	Quantity      int64           `json:"quantity"`
	UnitOfMeasure string          `json:"uom"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
}

// CreateRequisitionInput carries the fields of a new PR
type CreateRequisitionInput struct {
	Department     string          `json:"department"`
	BudgetCategory string          `json:"budget_category"`
	FiscalYear     string          `json:"fiscal_year"`
	RequesterName  string          `json:"requester_name"`
	Purpose        string          `json:"purpose"`
	Priority       string          `json:"priority"`
	VendorName     string          `json:"vendor_name"`
	VendorCode     string          `json:"vendor_code"`
	VendorContact  string          `json:"vendor_contact"`
	Currency       string          `json:"currency"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	Items          []LineItemInput `json:"items"`
}

// RequisitionService manages PR records
type RequisitionService interface {
	Create(ctx context.Context, actor entity.Actor, input CreateRequisitionInput) (*entity.Requisition, error)
	// Get returns the PR with items, approval slots and history. Requesters
	// only see their own PRs; anything else reads as not found.
	Get(ctx context.Context, actor entity.Actor, id int64) (*entity.Requisition, error)
	ListMine(ctx context.Context, actor entity.Actor) ([]*entity.Requisition, error)
	AttachQuotation(ctx context.Context, actor entity.Actor, id int64, filename string, content []byte) (*entity.Requisition, error)
}

type requisitionServiceImpl struct {
	reqRepo     port.RequisitionRepository
	itemRepo    port.ItemRepository
	slotRepo    port.SlotRepository
	historyRepo port.HistoryRepository
	vendorRepo  port.VendorRepository
	budgets     BudgetService
	notifier    notifier
	storage     port.FileStorage
	txManager   port.TransactionManager
	publisher   publisher
	now         Clock
	logger      Logger
}

// RequisitionDeps groups the collaborators of the requisition service
type RequisitionDeps struct {
	Requisitions  port.RequisitionRepository
	Items         port.ItemRepository
	Slots         port.SlotRepository
	History       port.HistoryRepository
	Vendors       port.VendorRepository
	Users         port.UserRepository
	Notifications port.NotificationRepository
	Budgets       BudgetService
	Storage       port.FileStorage
	TxManager     port.TransactionManager
	Dispatcher    dispatcher.Dispatcher
	Clock         Clock
}

// NewRequisitionService creates a new RequisitionService
func NewRequisitionService(deps RequisitionDeps, logger Logger) RequisitionService {
	now := deps.Clock
	if now == nil {
		now = systemClock
	}
	return &requisitionServiceImpl{
		reqRepo:     deps.Requisitions,
		itemRepo:    deps.Items,
		slotRepo:    deps.Slots,
		historyRepo: deps.History,
		vendorRepo:  deps.Vendors,
		budgets:     deps.Budgets,
		notifier:    notifier{users: deps.Users, notifications: deps.Notifications},
		storage:     deps.Storage,
		txManager:   deps.TxManager,
		publisher:   publisher{dispatcher: deps.Dispatcher, logger: logger},
		now:         now,
		logger:      logger,
	}
}

// normalize validates input in place and returns the computed line items
func (s *requisitionServiceImpl) normalize(actor entity.Actor, in *CreateRequisitionInput) ([]entity.LineItem, error) {
	in.Department = utils.NormalizeDepartment(in.Department)
	if in.Department == "" {
		in.Department = utils.NormalizeDepartment(actor.Department)
	}
	if in.Department == "" {
		return nil, apperr.Validation("department is required")
	}
	if err := utils.ValidateCode("department", in.Department); err != nil {
		return nil, apperr.Validation("%s", err.Error())
	}

	in.FiscalYear = strings.TrimSpace(in.FiscalYear)
	if in.FiscalYear == "" {
		in.FiscalYear = strconv.Itoa(s.now().Year())
	}
	if err := utils.ValidateFiscalYear(in.FiscalYear); err != nil {
		return nil, apperr.Validation("%s", err.Error())
	}

	in.Purpose = utils.SanitizeString(in.Purpose)
	if in.Purpose == "" {
		return nil, apperr.Validation("purpose is required")
	}

	in.Priority = strings.ToUpper(strings.TrimSpace(in.Priority))
	if in.Priority == "" {
		in.Priority = entity.PriorityNormal
	}
	if !validPriorities[in.Priority] {
		return nil, apperr.Validation("unknown priority %q", in.Priority)
	}

	in.Currency = strings.ToUpper(strings.TrimSpace(in.Currency))
	if in.Currency == "" {
		in.Currency = entity.DefaultCurrency
	}

	in.BudgetCategory = utils.SanitizeString(in.BudgetCategory)
	in.VendorName = utils.SanitizeString(in.VendorName)
	in.VendorCode = strings.TrimSpace(in.VendorCode)
	in.VendorContact = utils.SanitizeString(in.VendorContact)
	in.RequesterName = utils.SanitizeString(in.RequesterName)
	if in.RequesterName == "" {
		in.RequesterName = actor.FullName
	}

	if err := utils.ValidateAmount(in.TaxAmount); err != nil {
		return nil, apperr.Validation("tax: %s", err.Error())
	}

	if len(in.Items) == 0 {
		return nil, apperr.Validation("at least one line item is required")
	}
	items := make([]entity.LineItem, 0, len(in.Items))
	for i, it := range in.Items {
		desc := utils.SanitizeString(it.Description)
		if desc == "" {
			return nil, apperr.Validation("item %d: description is required", i+1)
		}
		if it.Quantity <= 0 {
			return nil, apperr.Validation("item %d: quantity must be positive", i+1)
		}
		if err := utils.ValidateAmount(it.UnitPrice); err != nil {
			return nil, apperr.Validation("item %d: %s", i+1, err.Error())
		}
		uom := strings.ToUpper(strings.TrimSpace(it.UnitOfMeasure))
		if uom == "" {
			uom = "UNIT"
		}
		item := entity.LineItem{
			ItemNo:        i + 1,
			Description:   desc,
			Quantity:      it.Quantity,
			UnitOfMeasure: uom,
			UnitPrice:     it.UnitPrice,
		}
		item.TotalPrice = item.LineTotal()
		if err := utils.ValidateAmount(item.TotalPrice); err != nil {
			return nil, apperr.Validation("item %d total: %s", i+1, err.Error())
		}
		items = append(items, item)
	}

	// tax is non-negative, so bounding the grand total bounds the subtotal too
	if err := utils.ValidateAmount(entity.SumLineItems(items).Add(in.TaxAmount)); err != nil {
		return nil, apperr.Validation("grand total: %s", err.Error())
	}
	return items, nil
}

func (s *requisitionServiceImpl) Create(ctx context.Context, actor entity.Actor, input CreateRequisitionInput) (*entity.Requisition, error) {
	if err := requireRole(actor, entity.RoleUser); err != nil {
		return nil, err
	}
	items, err := s.normalize(actor, &input)
	if err != nil {
		return nil, err
	}
	total := entity.SumLineItems(items)

	var pr *entity.Requisition
	var events []*event.Event
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		events = nil
		now := s.now()

		vendorName := input.VendorName
		if input.VendorCode != "" {
			vendor, err := s.vendorRepo.GetByCode(txCtx, input.VendorCode)
			if errors.Is(err, apperr.ErrNotFound) || (err == nil && !vendor.Active) {
				return apperr.Validation("unknown vendor code %s", input.VendorCode)
			}
			if err != nil {
				return fmt.Errorf("get vendor: %w", err)
			}
			if vendorName == "" {
				vendorName = vendor.Name
			}
		}
		if vendorName == "" {
			return apperr.Validation("vendor name is required")
		}

		count, err := s.reqRepo.CountByDepartmentYear(txCtx, input.Department, input.FiscalYear)
		if err != nil {
			return fmt.Errorf("count requisitions: %w", err)
		}
		prNo := fmt.Sprintf("PR-%s-%s-%03d", input.FiscalYear, input.Department, count+1)

		status, budgetStatus := entity.StatusBudgetExceptionPending, entity.BudgetOutOfBudget
		if input.BudgetCategory != "" {
			avail, err := s.budgets.Reserve(txCtx, input.Department, input.BudgetCategory, total, input.FiscalYear)
			if err != nil {
				return err
			}
			if avail.Available {
				status, budgetStatus = entity.StatusDraft, entity.BudgetInBudget
			}
		}

		pr = &entity.Requisition{
			PRNo:           prNo,
			FiscalYear:     input.FiscalYear,
			CreatedAt:      now,
			CreatedBy:      actor.UserID,
			RequesterName:  input.RequesterName,
			Department:     input.Department,
			BudgetCategory: input.BudgetCategory,
			BudgetStatus:   budgetStatus,
			Purpose:        input.Purpose,
			Priority:       input.Priority,
			VendorName:     vendorName,
			VendorCode:     input.VendorCode,
			VendorContact:  input.VendorContact,
			TotalAmount:    total,
			TaxAmount:      input.TaxAmount,
			GrandTotal:     total.Add(input.TaxAmount),
			Currency:       input.Currency,
			Status:         status,
			UpdatedAt:      now,
		}
		if err := s.reqRepo.Create(txCtx, pr); err != nil {
			return fmt.Errorf("create requisition: %w", err)
		}
		if err := s.itemRepo.CreateBatch(txCtx, pr.ID, items); err != nil {
			return fmt.Errorf("create items: %w", err)
		}
		pr.Items = items

		if err := appendHistory(txCtx, s.historyRepo, pr.ID, entity.ActionCreate, actor, "", status, "", now); err != nil {
			return err
		}

		if err := s.notifier.notifyUser(txCtx, actor.UserID, "PR Created",
			fmt.Sprintf("PR %s has been created successfully.", prNo),
			entity.NotificationSuccess, pr.ID, now); err != nil {
			return fmt.Errorf("notify creator: %w", err)
		}
		if status == entity.StatusBudgetExceptionPending {
			if _, err := s.notifier.notifyRole(txCtx, entity.RoleApprover1, "Budget Exception Pending",
				fmt.Sprintf("PR %s exceeds the available budget and needs a budget exception decision.", prNo),
				entity.NotificationWarning, pr.ID, now); err != nil {
				return fmt.Errorf("notify exception approvers: %w", err)
			}
		}

		events = append(events, event.NewEvent(event.TypeRequisitionCreated, pr.ID, actor.UserID, map[string]interface{}{
			"pr_no":         prNo,
			"status":        string(status),
			"budget_status": string(budgetStatus),
			"total_amount":  total.String(),
		}))
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to create requisition", "error", err, "user_id", actor.UserID, "department", input.Department)
		return nil, err
	}

	s.logger.Info("Requisition created", "id", pr.ID, "pr_no", pr.PRNo, "status", string(pr.Status),
		"budget_status", string(pr.BudgetStatus), "total_amount", pr.TotalAmount.String())
	s.publisher.publish(ctx, events)
	return pr, nil
}

func (s *requisitionServiceImpl) Get(ctx context.Context, actor entity.Actor, id int64) (*entity.Requisition, error) {
	pr, err := s.visible(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	if pr.Items, err = s.itemRepo.ListByPR(ctx, id); err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	if pr.Slots, err = s.slotRepo.ListByPR(ctx, id); err != nil {
		return nil, fmt.Errorf("list approval slots: %w", err)
	}
	if pr.History, err = s.historyRepo.ListByPR(ctx, id); err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	return pr, nil
}

// visible loads a PR and hides other requesters' PRs from role user
func (s *requisitionServiceImpl) visible(ctx context.Context, actor entity.Actor, id int64) (*entity.Requisition, error) {
	pr, err := s.reqRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role == entity.RoleUser && pr.CreatedBy != actor.UserID {
		return nil, apperr.NotFound("PR %d not found", id)
	}
	return pr, nil
}

func (s *requisitionServiceImpl) ListMine(ctx context.Context, actor entity.Actor) ([]*entity.Requisition, error) {
	prs, err := s.reqRepo.ListByCreator(ctx, actor.UserID)
	if err != nil {
		s.logger.Error("Failed to list requisitions", "error", err, "user_id", actor.UserID)
		return nil, err
	}
	return prs, nil
}

func (s *requisitionServiceImpl) AttachQuotation(ctx context.Context, actor entity.Actor, id int64, filename string, content []byte) (*entity.Requisition, error) {
	if s.storage == nil {
		return nil, fmt.Errorf("quotation storage is not configured")
	}
	if len(content) == 0 {
		return nil, apperr.Validation("quotation file is empty")
	}
	if len(content) > MaxQuotationSize {
		return nil, apperr.Validation("quotation file exceeds %d MB", MaxQuotationSize>>20)
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if !quotationExtensions[ext] {
		return nil, apperr.Validation("quotation must be a PDF, image, Word or Excel file")
	}

	pr, err := s.visible(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if pr.CreatedBy != actor.UserID {
		return nil, apperr.Authorization("only the requester can attach a quotation")
	}
	if pr.Status == entity.StatusRejected || pr.Status == entity.StatusPOCreated {
		return nil, apperr.Conflict("PR %s is %s and can no longer change", pr.PRNo, pr.Status)
	}

	path := quotationPath(pr.PRNo, filename)
	if err := s.storage.Save(ctx, path, content); err != nil {
		s.logger.Error("Failed to store quotation", "error", err, "pr_id", id)
		return nil, fmt.Errorf("store quotation: %w", err)
	}

	var events []*event.Event
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		events = nil
		now := s.now()
		current, err := s.reqRepo.GetByID(txCtx, id)
		if err != nil {
			return err
		}
		if current.Status == entity.StatusRejected || current.Status == entity.StatusPOCreated {
			return apperr.Conflict("PR %s is %s and can no longer change", current.PRNo, current.Status)
		}
		if err := s.reqRepo.SetQuotation(txCtx, id, path, now); err != nil {
			return fmt.Errorf("set quotation: %w", err)
		}
		if err := appendHistory(txCtx, s.historyRepo, id, entity.ActionQuotationAttached, actor,
			current.Status, current.Status, filepath.Base(path), now); err != nil {
			return err
		}
		events = append(events, event.NewEvent(event.TypeQuotationAttached, id, actor.UserID, map[string]interface{}{
			"pr_no": current.PRNo,
			"path":  path,
			"size":  len(content),
		}))
		pr = current
		pr.QuotationPath = path
		pr.UpdatedAt = now
		return nil
	})
	if err != nil {
		if path != pr.QuotationPath {
			_ = s.storage.Delete(ctx, path)
		}
		s.logger.Error("Failed to attach quotation", "error", err, "pr_id", id)
		return nil, err
	}

	s.logger.Info("Quotation attached", "pr_id", id, "pr_no", pr.PRNo, "path", path)
	s.publisher.publish(ctx, events)
	return pr, nil
}

// quotationPath keys the file by PR number and keeps the extension
func quotationPath(prNo, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	return filepath.Join(prNo, "quotation"+ext)
}

func appendHistory(ctx context.Context, repo port.HistoryRepository, prID int64, action string, actor entity.Actor,
	from, to entity.Status, comments string, at time.Time) error {
	entry := &entity.HistoryEntry{
		PRID:           prID,
		Action:         action,
		ActorID:        int64Ptr(actor.UserID),
		ActorRole:      actor.Role,
		PreviousStatus: from,
		NewStatus:      to,
		Comments:       comments,
		CreatedAt:      at,
	}
	if err := repo.Append(ctx, entry); err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}
