package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/garyjia/pr-workflow/internal/application/port"
	"github.com/garyjia/pr-workflow/internal/domain/apperr"
	"github.com/garyjia/pr-workflow/internal/domain/entity"
	"github.com/garyjia/pr-workflow/pkg/utils"
)

// VendorSearchLimit caps autocomplete results
const VendorSearchLimit = 20

// VendorService manages the vendor register
type VendorService interface {
	Create(ctx context.Context, actor entity.Actor, vendor *entity.Vendor) error
	// Get hides inactive vendors from everyone but vendor managers
	Get(ctx context.Context, actor entity.Actor, code string) (*entity.Vendor, error)
	List(ctx context.Context, actor entity.Actor, includeInactive bool) ([]*entity.Vendor, error)
	Search(ctx context.Context, query string) ([]*entity.Vendor, error)
	SetActive(ctx context.Context, actor entity.Actor, code string, active bool) error
}

type vendorServiceImpl struct {
	vendorRepo port.VendorRepository
	notifier   notifier
	txManager  port.TransactionManager
	now        Clock
	logger     Logger
}

// NewVendorService creates a new VendorService
func NewVendorService(
	vendorRepo port.VendorRepository,
	userRepo port.UserRepository,
	notificationRepo port.NotificationRepository,
	txManager port.TransactionManager,
	logger Logger,
) VendorService {
	return &vendorServiceImpl{
		vendorRepo: vendorRepo,
		notifier:   notifier{users: userRepo, notifications: notificationRepo},
		txManager:  txManager,
		now:        systemClock,
		logger:     logger,
	}
}

func managesVendors(actor entity.Actor) bool {
	return actor.Role == entity.RoleProcurement || actor.Role == entity.RoleSuperAdmin
}

func (s *vendorServiceImpl) Create(ctx context.Context, actor entity.Actor, v *entity.Vendor) error {
	if !managesVendors(actor) {
		return apperr.Authorization("role %s may not register vendors", actor.Role)
	}

	v.Code = strings.ToUpper(strings.TrimSpace(v.Code))
	v.Name = utils.SanitizeString(v.Name)
	if v.Code == "" || v.Name == "" {
		return apperr.Validation("vendor code and vendor name are required")
	}
	if err := utils.ValidateCode("vendor code", v.Code); err != nil {
		return apperr.Validation("%s", err.Error())
	}
	v.ContactEmail = strings.TrimSpace(v.ContactEmail)
	if v.ContactEmail != "" {
		if err := utils.ValidateEmail(v.ContactEmail); err != nil {
			return apperr.Validation("%s", err.Error())
		}
	}
	if v.Type == "" {
		v.Type = "Supplier"
	}
	if v.PaymentTerms == "" {
		v.PaymentTerms = "NET30"
	}
	if v.Currency == "" {
		v.Currency = entity.DefaultCurrency
	}
	v.Active = true

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		now := s.now()
		v.CreatedAt = now
		if err := s.vendorRepo.Create(txCtx, v); err != nil {
			return err
		}
		return s.notifier.notifyUser(txCtx, actor.UserID, "New Vendor Registered",
			fmt.Sprintf("Vendor %s (%s) has been registered", v.Name, v.Code),
			entity.NotificationSuccess, 0, now)
	})
	if err != nil {
		s.logger.Error("Failed to register vendor", "error", err, "vendor_code", v.Code)
		return err
	}

	s.logger.Info("Vendor registered", "id", v.ID, "vendor_code", v.Code, "user_id", actor.UserID)
	return nil
}

func (s *vendorServiceImpl) Get(ctx context.Context, actor entity.Actor, code string) (*entity.Vendor, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	v, err := s.vendorRepo.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if !v.Active && !managesVendors(actor) {
		return nil, apperr.NotFound("vendor %s not found", code)
	}
	return v, nil
}

func (s *vendorServiceImpl) List(ctx context.Context, actor entity.Actor, includeInactive bool) ([]*entity.Vendor, error) {
	activeOnly := !(includeInactive && managesVendors(actor))
	vendors, err := s.vendorRepo.List(ctx, activeOnly)
	if err != nil {
		s.logger.Error("Failed to list vendors", "error", err)
		return nil, err
	}
	return vendors, nil
}

func (s *vendorServiceImpl) Search(ctx context.Context, query string) ([]*entity.Vendor, error) {
	vendors, err := s.vendorRepo.Search(ctx, strings.TrimSpace(query), VendorSearchLimit)
	if err != nil {
		s.logger.Error("Failed to search vendors", "error", err, "query", query)
		return nil, err
	}
	return vendors, nil
}

func (s *vendorServiceImpl) SetActive(ctx context.Context, actor entity.Actor, code string, active bool) error {
	if !managesVendors(actor) {
		return apperr.Authorization("role %s may not change vendors", actor.Role)
	}
	code = strings.ToUpper(strings.TrimSpace(code))
	if err := s.vendorRepo.SetActive(ctx, code, active); err != nil {
		s.logger.Error("Failed to change vendor status", "error", err, "vendor_code", code)
		return err
	}
	s.logger.Info("Vendor status changed", "vendor_code", code, "active", active)
	return nil
}
