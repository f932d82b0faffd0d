package service

import (
	"context"
	"testing"
	"time"

	"github.com/garyjia/pr-workflow/internal/application/dispatcher"
	"github.com/garyjia/pr-workflow/internal/application/workflow"
	"github.com/garyjia/pr-workflow/internal/domain/entity"
	domainwf "github.com/garyjia/pr-workflow/internal/domain/workflow"
	"github.com/garyjia/pr-workflow/internal/infrastructure/auth"
	"github.com/garyjia/pr-workflow/internal/infrastructure/export"
	"github.com/garyjia/pr-workflow/internal/infrastructure/persistence/repository"
	"github.com/garyjia/pr-workflow/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/pr-workflow/internal/infrastructure/storage"
	"github.com/garyjia/pr-workflow/internal/testutil"
	"github.com/garyjia/pr-workflow/pkg/database"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var fixedNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// fixture wires every service over one migrated store
type fixture struct {
	db *database.DB

	users         UserService
	budgets       BudgetService
	requisitions  RequisitionService
	approvals     ApprovalService
	procurement   ProcurementService
	vendors       VendorService
	notifications NotificationService
	audit         *AuditRecorder
	archive       *storage.LocalFileStorage

	requester   entity.Actor
	colleague   entity.Actor
	approver1   entity.Actor
	approver2   entity.Actor
	approver3   entity.Actor
	approver4   entity.Actor
	buyer       entity.Actor
	admin       entity.Actor
}

type fixtureOption func(*ProcurementDeps)

func requireQuotation(d *ProcurementDeps) { d.RequireQuotation = true }

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()

	db := testutil.NewDB(t)
	log := zap.NewNop()
	tx := sqlite.NewDB(db.DB, log)

	reqRepo := repository.NewRequisitionRepository(db.DB, log)
	itemRepo := repository.NewItemRepository(db.DB, log)
	slotRepo := repository.NewSlotRepository(db.DB, log)
	historyRepo := repository.NewHistoryRepository(db.DB, log)
	userRepo := repository.NewUserRepository(db.DB, log)
	vendorRepo := repository.NewVendorRepository(db.DB, log)
	noteRepo := repository.NewNotificationRepository(db.DB, log)
	poRepo := repository.NewPurchaseOrderRepository(db.DB, log)
	auditRepo := repository.NewAuditRepository(db.DB, log)

	d := dispatcher.NewDispatcher()
	recorder := NewAuditRecorder(auditRepo, NopLogger())
	recorder.Register(d)

	engine := workflow.NewWorkflowEngine(domainwf.DefaultThresholds())
	budgets := NewBudgetService(repository.NewBudgetRepository(db.DB, log), tx, d, NopLogger())

	archive := storage.NewLocalFileStorage(t.TempDir(), log)
	procDeps := ProcurementDeps{
		Requisitions:   reqRepo,
		Items:          itemRepo,
		PurchaseOrders: poRepo,
		History:        historyRepo,
		Users:          userRepo,
		Notifications:  noteRepo,
		Engine:         engine,
		Exporter:       export.NewExcelExporter("Test Sdn Bhd", log),
		Archive:        archive,
		TxManager:      tx,
		Dispatcher:     d,
		Clock:          fixedClock,
	}
	for _, opt := range opts {
		opt(&procDeps)
	}

	f := &fixture{
		db:      db,
		users:   NewUserService(userRepo, auth.NewBcryptHasher(bcrypt.MinCost), NopLogger()),
		budgets: budgets,
		requisitions: NewRequisitionService(RequisitionDeps{
			Requisitions:  reqRepo,
			Items:         itemRepo,
			Slots:         slotRepo,
			History:       historyRepo,
			Vendors:       vendorRepo,
			Users:         userRepo,
			Notifications: noteRepo,
			Budgets:       budgets,
			Storage:       storage.NewLocalFileStorage(t.TempDir(), log),
			TxManager:     tx,
			Dispatcher:    d,
			Clock:         fixedClock,
		}, NopLogger()),
		approvals: NewApprovalService(ApprovalDeps{
			Requisitions:  reqRepo,
			Slots:         slotRepo,
			History:       historyRepo,
			Users:         userRepo,
			Notifications: noteRepo,
			Engine:        engine,
			TxManager:     tx,
			Dispatcher:    d,
			Clock:         fixedClock,
		}, NopLogger()),
		procurement:   NewProcurementService(procDeps, NopLogger()),
		vendors:       NewVendorService(vendorRepo, userRepo, noteRepo, tx, NopLogger()),
		notifications: NewNotificationService(noteRepo, NopLogger()),
		audit:         recorder,
		archive:       archive,
	}

	f.requester = f.actor(t, "alice", entity.RoleUser, "IT")
	f.colleague = f.actor(t, "bob", entity.RoleUser, "IT")
	f.approver1 = f.actor(t, "director", entity.RoleApprover1, "IT")
	f.approver2 = f.actor(t, "cfo", entity.RoleApprover2, "")
	f.approver3 = f.actor(t, "ceo", entity.RoleApprover3, "")
	f.approver4 = f.actor(t, "md", entity.RoleApprover4, "")
	f.buyer = f.actor(t, "buyer", entity.RoleProcurement, "PROC")
	f.admin = f.actor(t, "root", entity.RoleSuperAdmin, "")
	return f
}

func (f *fixture) actor(t *testing.T, username string, role entity.Role, dept string) entity.Actor {
	t.Helper()
	id := testutil.InsertUser(t, f.db, username, role, dept)
	return entity.Actor{UserID: id, Username: username, FullName: username, Role: role, Department: dept}
}

func (f *fixture) budget(t *testing.T, category string, allocated int64) {
	t.Helper()
	testutil.InsertBudget(t, f.db, "IT", category, "2026", allocated)
}

// createPR raises a single-line PR for amount in the Hardware category
func (f *fixture) createPR(t *testing.T, amount string) *entity.Requisition {
	t.Helper()
	pr, err := f.requisitions.Create(context.Background(), f.requester, CreateRequisitionInput{
		BudgetCategory: "Hardware",
		Purpose:        "Replacement laptops",
		VendorName:     "ACME Supplies",
		Items: []LineItemInput{
			{Description: "Laptop", Quantity: 1, UnitPrice: dec(amount)},
		},
	})
	require.NoError(t, err)
	return pr
}

func (f *fixture) unread(t *testing.T, actor entity.Actor) []*entity.Notification {
	t.Helper()
	inbox, err := f.notifications.List(context.Background(), actor, 0)
	require.NoError(t, err)
	return inbox.Notifications
}

func titles(notes []*entity.Notification) []string {
	out := make([]string, len(notes))
	for i, n := range notes {
		out[i] = n.Title
	}
	return out
}
