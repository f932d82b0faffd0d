package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/pr-workflow/internal/application/dispatcher"
	"github.com/garyjia/pr-workflow/internal/application/port"
	"github.com/garyjia/pr-workflow/internal/application/workflow"
	"github.com/garyjia/pr-workflow/internal/domain/apperr"
	"github.com/garyjia/pr-workflow/internal/domain/entity"
	"github.com/garyjia/pr-workflow/internal/domain/event"
	domainwf "github.com/garyjia/pr-workflow/internal/domain/workflow"
	"github.com/garyjia/pr-workflow/pkg/utils"
)

// CreatePOInput carries the optional overrides for a new PO
type CreatePOInput struct {
	PRID       int64     `json:"pr_id"`
	PONo       string    `json:"po_no"`
	PODate     time.Time `json:"po_date"`
	VendorName string    `json:"vendor_name"`
}

// ExportedDocument is a rendered PO ready for download
type ExportedDocument struct {
	Filename    string
	ContentType string
	Content     []byte
}

// ProcurementService converts approved PRs into purchase orders
type ProcurementService interface {
	ListApproved(ctx context.Context, actor entity.Actor) ([]*entity.Requisition, error)
	Receive(ctx context.Context, actor entity.Actor, prID int64) (*entity.Requisition, error)
	CreatePO(ctx context.Context, actor entity.Actor, input CreatePOInput) (*entity.PurchaseOrder, error)
	GetPO(ctx context.Context, actor entity.Actor, id int64) (*entity.PurchaseOrder, error)
	ExportPO(ctx context.Context, actor entity.Actor, id int64) (*ExportedDocument, error)
}

type procurementServiceImpl struct {
	reqRepo          port.RequisitionRepository
	itemRepo         port.ItemRepository
	poRepo           port.PurchaseOrderRepository
	historyRepo      port.HistoryRepository
	notifier         notifier
	engine           workflow.WorkflowEngine
	exporter         port.PurchaseOrderExporter
	archive          port.FileStorage
	requireQuotation bool
	txManager        port.TransactionManager
	publisher        publisher
	now              Clock
	logger           Logger
}

// ProcurementDeps groups the collaborators of the procurement service
type ProcurementDeps struct {
	Requisitions     port.RequisitionRepository
	Items            port.ItemRepository
	PurchaseOrders   port.PurchaseOrderRepository
	History          port.HistoryRepository
	Users            port.UserRepository
	Notifications    port.NotificationRepository
	Engine           workflow.WorkflowEngine
	Exporter         port.PurchaseOrderExporter
	Archive          port.FileStorage // optional copy of every exported PO
	RequireQuotation bool
	TxManager        port.TransactionManager
	Dispatcher       dispatcher.Dispatcher
	Clock            Clock
}

// NewProcurementService creates a new ProcurementService
func NewProcurementService(deps ProcurementDeps, logger Logger) ProcurementService {
	now := deps.Clock
	if now == nil {
		now = systemClock
	}
	return &procurementServiceImpl{
		reqRepo:          deps.Requisitions,
		itemRepo:         deps.Items,
		poRepo:           deps.PurchaseOrders,
		historyRepo:      deps.History,
		notifier:         notifier{users: deps.Users, notifications: deps.Notifications},
		engine:           deps.Engine,
		exporter:         deps.Exporter,
		archive:          deps.Archive,
		requireQuotation: deps.RequireQuotation,
		txManager:        deps.TxManager,
		publisher:        publisher{dispatcher: deps.Dispatcher, logger: logger},
		now:              now,
		logger:           logger,
	}
}

func (s *procurementServiceImpl) ListApproved(ctx context.Context, actor entity.Actor) ([]*entity.Requisition, error) {
	if err := requireRole(actor, entity.RoleProcurement, entity.RoleSuperAdmin); err != nil {
		return nil, err
	}
	prs, err := s.reqRepo.ListByStatus(ctx, entity.StatusApproved, "")
	if err != nil {
		s.logger.Error("Failed to list approved requisitions", "error", err)
		return nil, err
	}
	return prs, nil
}

func (s *procurementServiceImpl) Receive(ctx context.Context, actor entity.Actor, prID int64) (*entity.Requisition, error) {
	if err := requireRole(actor, entity.RoleProcurement); err != nil {
		return nil, err
	}

	var pr *entity.Requisition
	var events []*event.Event
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		events = nil
		now := s.now()

		var err error
		pr, err = s.reqRepo.GetByID(txCtx, prID)
		if err != nil {
			return err
		}
		if pr.Status != entity.StatusApproved {
			return apperr.Conflict("PR %s is %s, not approved", pr.PRNo, pr.Status)
		}
		if err := s.reqRepo.MarkProcurementReceived(txCtx, prID, actor.UserID, now); err != nil {
			return err
		}
		if err := appendHistory(txCtx, s.historyRepo, prID, entity.ActionProcurementReceived, actor,
			pr.Status, pr.Status, "", now); err != nil {
			return err
		}
		if err := s.notifier.notifyUser(txCtx, pr.CreatedBy, "PR Received by Procurement",
			fmt.Sprintf("Your PR %s has been received by the procurement department.", pr.PRNo),
			entity.NotificationInfo, prID, now); err != nil {
			return fmt.Errorf("notify requester: %w", err)
		}

		pr.ProcurementReceivedAt = &now
		pr.ProcurementOfficerID = int64Ptr(actor.UserID)
		events = append(events, event.NewEvent(event.TypeProcurementReceived, prID, actor.UserID,
			map[string]interface{}{"pr_no": pr.PRNo}))
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to receive requisition", "error", err, "pr_id", prID)
		return nil, err
	}

	s.logger.Info("Requisition received by procurement", "pr_id", prID, "pr_no", pr.PRNo, "officer_id", actor.UserID)
	s.publisher.publish(ctx, events)
	return pr, nil
}

func (s *procurementServiceImpl) CreatePO(ctx context.Context, actor entity.Actor, input CreatePOInput) (*entity.PurchaseOrder, error) {
	if err := requireRole(actor, entity.RoleProcurement); err != nil {
		return nil, err
	}
	input.PONo = strings.ToUpper(strings.TrimSpace(input.PONo))
	if input.PONo != "" {
		if err := utils.ValidateCode("po_no", input.PONo); err != nil {
			return nil, apperr.Validation("%s", err.Error())
		}
	}
	input.VendorName = utils.SanitizeString(input.VendorName)

	var po *entity.PurchaseOrder
	var events []*event.Event
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		events = nil
		now := s.now()

		pr, err := s.reqRepo.GetByID(txCtx, input.PRID)
		if err != nil {
			return err
		}
		if err := s.checkIssuable(txCtx, pr); err != nil {
			return err
		}
		d, err := s.engine.Decide(txCtx, pr, domainwf.TriggerIssuePO)
		if err != nil {
			return err
		}

		poDate := input.PODate
		if poDate.IsZero() {
			poDate = now
		}
		poNo := input.PONo
		if poNo == "" {
			count, err := s.poRepo.CountByYear(txCtx, poDate.Year())
			if err != nil {
				return fmt.Errorf("count purchase orders: %w", err)
			}
			poNo = fmt.Sprintf("PO-%04d-%04d", poDate.Year(), count+1)
		}
		vendor := input.VendorName
		if vendor == "" {
			vendor = pr.VendorName
		}

		po = &entity.PurchaseOrder{
			PRID:        pr.ID,
			PONo:        poNo,
			PODate:      poDate,
			VendorName:  vendor,
			TotalAmount: pr.GrandTotal,
			Currency:    pr.Currency,
			CreatedBy:   actor.UserID,
			CreatedAt:   now,
		}
		if err := s.poRepo.Create(txCtx, po); err != nil {
			return err
		}
		if err := s.reqRepo.Transition(txCtx, port.Transition{
			ID:         pr.ID,
			FromStatus: d.From,
			FromRole:   d.FromRole,
			ToStatus:   d.To,
			ToRole:     "",
			At:         now,
		}); err != nil {
			return err
		}
		if err := appendHistory(txCtx, s.historyRepo, pr.ID, entity.ActionPOCreated, actor, d.From, d.To, poNo, now); err != nil {
			return err
		}
		if err := s.notifier.notifyUser(txCtx, pr.CreatedBy, "Purchase Order Issued",
			fmt.Sprintf("PO %s has been issued for your PR %s.", poNo, pr.PRNo),
			entity.NotificationSuccess, pr.ID, now); err != nil {
			return fmt.Errorf("notify requester: %w", err)
		}

		events = append(events, event.NewEvent(event.TypePurchaseOrderCreated, pr.ID, actor.UserID, map[string]interface{}{
			"pr_no":        pr.PRNo,
			"po_no":        poNo,
			"total_amount": po.TotalAmount.String(),
		}))
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to create purchase order", "error", err, "pr_id", input.PRID)
		return nil, err
	}

	s.logger.Info("Purchase order created", "po_id", po.ID, "po_no", po.PONo, "pr_id", po.PRID,
		"total_amount", po.TotalAmount.String())
	s.publisher.publish(ctx, events)
	return po, nil
}

// checkIssuable enforces the PO preconditions on a loaded PR
func (s *procurementServiceImpl) checkIssuable(ctx context.Context, pr *entity.Requisition) error {
	existing, err := s.poRepo.GetByPRID(ctx, pr.ID)
	if err == nil {
		return apperr.Conflict("PO %s already exists for PR %s", existing.PONo, pr.PRNo)
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return fmt.Errorf("check existing PO: %w", err)
	}

	if pr.Status != entity.StatusApproved {
		return apperr.Validation("PR %s is %s; only fully approved PRs can be converted to a PO", pr.PRNo, pr.Status)
	}
	if s.requireQuotation && !pr.HasQuotation() {
		return apperr.Validation("PR %s has no quotation attached", pr.PRNo)
	}
	return nil
}

func (s *procurementServiceImpl) GetPO(ctx context.Context, actor entity.Actor, id int64) (*entity.PurchaseOrder, error) {
	po, err := s.poRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role == entity.RoleProcurement || actor.Role == entity.RoleSuperAdmin {
		return po, nil
	}

	pr, err := s.reqRepo.GetByID(ctx, po.PRID)
	if err != nil {
		return nil, err
	}
	if pr.CreatedBy != actor.UserID {
		return nil, apperr.NotFound("PO %d not found", id)
	}
	return po, nil
}

func (s *procurementServiceImpl) ExportPO(ctx context.Context, actor entity.Actor, id int64) (*ExportedDocument, error) {
	if s.exporter == nil {
		return nil, fmt.Errorf("purchase order export is not configured")
	}
	po, err := s.GetPO(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	pr, err := s.reqRepo.GetByID(ctx, po.PRID)
	if err != nil {
		return nil, err
	}
	if pr.Items, err = s.itemRepo.ListByPR(ctx, pr.ID); err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}

	content, err := s.exporter.Export(po, pr)
	if err != nil {
		s.logger.Error("Failed to export purchase order", "error", err, "po_id", id)
		return nil, fmt.Errorf("export purchase order: %w", err)
	}
	doc := &ExportedDocument{
		Filename:    po.PONo + s.exporter.Extension(),
		ContentType: s.exporter.ContentType(),
		Content:     content,
	}
	if s.archive != nil {
		if err := s.archive.Save(ctx, doc.Filename, content); err != nil {
			s.logger.Error("Failed to archive exported purchase order", "error", err, "po_no", po.PONo)
		}
	}

	s.logger.Info("Purchase order exported", "po_id", id, "po_no", po.PONo, "size", len(content))
	return doc, nil
}
