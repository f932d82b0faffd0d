package container

import (
	"database/sql"
	"fmt"

	"github.com/garyjia/pr-workflow/internal/application/dispatcher"
	"github.com/garyjia/pr-workflow/internal/application/port"
	"github.com/garyjia/pr-workflow/internal/application/service"
	"github.com/garyjia/pr-workflow/internal/application/workflow"
	"github.com/garyjia/pr-workflow/internal/infrastructure/auth"
	"github.com/garyjia/pr-workflow/internal/infrastructure/export"
	"github.com/garyjia/pr-workflow/internal/infrastructure/persistence/repository"
	"github.com/garyjia/pr-workflow/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/pr-workflow/internal/infrastructure/storage"
	"github.com/garyjia/pr-workflow/pkg/database"
	"github.com/garyjia/pr-workflow/pkg/utils"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	SqlDB          *sql.DB
	TransactionMgr *sqlite.DB
	// Applied is the number of migrations run while opening
	Applied int
}

// StorageBundle holds storage-related components.
type StorageBundle struct {
	Quotations port.FileStorage
	// Exports is nil when no export archive directory is configured
	Exports  port.FileStorage
	Exporter port.PurchaseOrderExporter
}

// ProvideDatabase opens the SQLite store, applies pending migrations and
// wraps the connection in a retrying transaction manager.
func ProvideDatabase(cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	db, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		BusyTimeout:     cfg.BusyTimeout,
	}, utils.Component(logger, "database"))
	if err != nil {
		return nil, err
	}

	applied, err := database.NewMigrator(db, utils.Component(logger, "migrator")).Run()
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	retry := sqlite.DefaultRetryConfig()
	if cfg.MaxRetries > 0 {
		retry.MaxTries = uint(cfg.MaxRetries)
	}
	if cfg.RetryInitialInterval > 0 {
		retry.InitialInterval = cfg.RetryInitialInterval
	}
	tx := sqlite.NewDB(db.DB, utils.Component(logger, "tx"), sqlite.WithRetry(retry))

	return &DatabaseBundle{
		SqlDB:          db.DB,
		TransactionMgr: tx,
		Applied:        applied,
	}, nil
}

// ProvideRepositories creates all repositories from a database connection.
func ProvideRepositories(sqlDB *sql.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if sqlDB == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	repoLogger := utils.Component(logger, "repository")
	return &RepositoryBundle{
		Requisition:   repository.NewRequisitionRepository(sqlDB, repoLogger),
		Item:          repository.NewItemRepository(sqlDB, repoLogger),
		Slot:          repository.NewSlotRepository(sqlDB, repoLogger),
		History:       repository.NewHistoryRepository(sqlDB, repoLogger),
		Budget:        repository.NewBudgetRepository(sqlDB, repoLogger),
		PurchaseOrder: repository.NewPurchaseOrderRepository(sqlDB, repoLogger),
		Vendor:        repository.NewVendorRepository(sqlDB, repoLogger),
		User:          repository.NewUserRepository(sqlDB, repoLogger),
		Notification:  repository.NewNotificationRepository(sqlDB, repoLogger),
		Audit:         repository.NewAuditRepository(sqlDB, repoLogger),
	}, nil
}

// ProvideStorage creates the quotation store, the optional export archive
// and the PO spreadsheet exporter.
func ProvideStorage(cfg *StorageConfig, logger *zap.Logger) (*StorageBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("storage config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	storageLogger := utils.Component(logger, "storage")
	bundle := &StorageBundle{
		Quotations: storage.NewLocalFileStorage(cfg.QuotationDir, storageLogger),
		Exporter:   export.NewExcelExporter(cfg.CompanyName, utils.Component(logger, "export")),
	}
	if cfg.ExportDir != "" {
		bundle.Exports = storage.NewLocalFileStorage(cfg.ExportDir, storageLogger)
	}
	return bundle, nil
}

// ProvideDispatcher creates the event dispatcher.
func ProvideDispatcher(logger *zap.Logger) (dispatcher.Dispatcher, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return dispatcher.NewDispatcher(dispatcher.WithLogger(utils.Component(logger, "dispatcher"))), nil
}

// ProvideWorkflowEngine creates the routing engine.
func ProvideWorkflowEngine(cfg *WorkflowConfig) (workflow.WorkflowEngine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("workflow config is required")
	}
	if err := cfg.Thresholds.Validate(); err != nil {
		return nil, fmt.Errorf("invalid thresholds: %w", err)
	}
	return workflow.NewWorkflowEngine(cfg.Thresholds), nil
}

// ServiceDeps holds dependencies needed to create services.
type ServiceDeps struct {
	Repos      *RepositoryBundle
	TxManager  port.TransactionManager
	Storage    *StorageBundle
	Dispatcher dispatcher.Dispatcher
	Engine     workflow.WorkflowEngine
	Workflow   *WorkflowConfig
	// RequireQuotation blocks PO creation for PRs without a quotation
	RequireQuotation bool
	// BcryptCost; zero means bcrypt.DefaultCost
	BcryptCost int
	Logger     *zap.Logger
}

// ProvideServices creates all application services and registers the
// audit recorder on the dispatcher.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil {
		return nil, fmt.Errorf("service deps are required")
	}
	if deps.Repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if deps.TxManager == nil {
		return nil, fmt.Errorf("transaction manager is required")
	}
	if deps.Storage == nil {
		return nil, fmt.Errorf("storage is required")
	}
	if deps.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if deps.Engine == nil {
		return nil, fmt.Errorf("workflow engine is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	named := func(name string) service.Logger {
		return NewServiceLogger(utils.Component(deps.Logger, name))
	}
	repos := deps.Repos

	cost := deps.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}

	exceptionRoles := service.DefaultExceptionRoles()
	if deps.Workflow != nil && len(deps.Workflow.ExceptionRoles) > 0 {
		exceptionRoles = deps.Workflow.ExceptionRoles
	}

	recorder := service.NewAuditRecorder(repos.Audit, named("audit"))
	recorder.Register(deps.Dispatcher)

	budgets := service.NewBudgetService(repos.Budget, deps.TxManager, deps.Dispatcher, named("budget"))

	return &ServiceBundle{
		Users:   service.NewUserService(repos.User, auth.NewBcryptHasher(cost), named("user")),
		Budgets: budgets,
		Requisitions: service.NewRequisitionService(service.RequisitionDeps{
			Requisitions:  repos.Requisition,
			Items:         repos.Item,
			Slots:         repos.Slot,
			History:       repos.History,
			Vendors:       repos.Vendor,
			Users:         repos.User,
			Notifications: repos.Notification,
			Budgets:       budgets,
			Storage:       deps.Storage.Quotations,
			TxManager:     deps.TxManager,
			Dispatcher:    deps.Dispatcher,
		}, named("requisition")),
		Approvals: service.NewApprovalService(service.ApprovalDeps{
			Requisitions:   repos.Requisition,
			Slots:          repos.Slot,
			History:        repos.History,
			Users:          repos.User,
			Notifications:  repos.Notification,
			Engine:         deps.Engine,
			ExceptionRoles: exceptionRoles,
			TxManager:      deps.TxManager,
			Dispatcher:     deps.Dispatcher,
		}, named("approval")),
		Procurement: service.NewProcurementService(service.ProcurementDeps{
			Requisitions:     repos.Requisition,
			Items:            repos.Item,
			PurchaseOrders:   repos.PurchaseOrder,
			History:          repos.History,
			Users:            repos.User,
			Notifications:    repos.Notification,
			Engine:           deps.Engine,
			Exporter:         deps.Storage.Exporter,
			Archive:          deps.Storage.Exports,
			RequireQuotation: deps.RequireQuotation,
			TxManager:        deps.TxManager,
			Dispatcher:       deps.Dispatcher,
		}, named("procurement")),
		Vendors:       service.NewVendorService(repos.Vendor, repos.User, repos.Notification, deps.TxManager, named("vendor")),
		Notifications: service.NewNotificationService(repos.Notification, named("notification")),
		Audit:         recorder,
	}, nil
}
