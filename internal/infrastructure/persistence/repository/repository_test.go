package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/garyjia/pr-workflow/internal/application/port"
	"github.com/garyjia/pr-workflow/internal/domain/apperr"
	"github.com/garyjia/pr-workflow/internal/domain/entity"
	"github.com/garyjia/pr-workflow/internal/testutil"
	"github.com/garyjia/pr-workflow/pkg/database"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newRequisition(t *testing.T, db *database.DB, creator int64, prNo string, total string) *entity.Requisition {
	t.Helper()
	now := time.Now()
	pr := &entity.Requisition{
		PRNo:          prNo,
		FiscalYear:    "2026",
		CreatedAt:     now,
		CreatedBy:     creator,
		RequesterName: "Requester",
		Department:    "IT",
		BudgetStatus:  entity.BudgetInBudget,
		Purpose:       "laptops",
		Priority:      entity.PriorityNormal,
		VendorName:    "ACME",
		TotalAmount:   dec(total),
		TaxAmount:     dec("6.00"),
		Currency:      entity.DefaultCurrency,
		Status:        entity.StatusDraft,
		UpdatedAt:     now,
	}
	require.NoError(t, NewRequisitionRepository(db.DB, zap.NewNop()).Create(context.Background(), pr))
	return pr
}

func TestBudgetRepository_Reserve(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewBudgetRepository(db.DB, zap.NewNop())
	ctx := context.Background()
	testutil.InsertBudget(t, db, "IT", "Hardware", "2026", 10000)

	ok, err := repo.Reserve(ctx, "IT", "Hardware", "2026", dec("9999.99"))
	require.NoError(t, err)
	assert.True(t, ok)

	b, err := repo.Get(ctx, "IT", "Hardware", "2026")
	require.NoError(t, err)
	assert.True(t, b.Spent.Equal(dec("9999.99")))
	assert.True(t, b.Remaining.Equal(dec("0.01")), "remaining is allocated minus spent")

	ok, err = repo.Reserve(ctx, "IT", "Hardware", "2026", dec("0.02"))
	require.NoError(t, err)
	assert.False(t, ok, "insufficient funds must not reserve")

	ok, err = repo.Reserve(ctx, "IT", "Hardware", "2026", dec("0.01"))
	require.NoError(t, err)
	assert.True(t, ok, "exact remaining amount is reservable")

	ok, err = repo.Reserve(ctx, "HR", "Hardware", "2026", dec("1"))
	require.NoError(t, err)
	assert.False(t, ok, "missing category does not reserve")
}

func TestBudgetRepository_ConcurrentReserveNeverOverspends(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewBudgetRepository(db.DB, zap.NewNop())
	testutil.InsertBudget(t, db, "OPS", "Maintenance", "2026", 1000)

	var wg sync.WaitGroup
	var mu sync.Mutex
	granted := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.Reserve(context.Background(), "OPS", "Maintenance", "2026", dec("300"))
			if err == nil && ok {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, granted)
	b, err := repo.Get(context.Background(), "OPS", "Maintenance", "2026")
	require.NoError(t, err)
	assert.True(t, b.Spent.Equal(dec("900")))
}

func TestBudgetRepository_CreateAndList(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewBudgetRepository(db.DB, zap.NewNop())
	ctx := context.Background()

	b := &entity.BudgetCategory{Department: "HR", Category: "Training", FiscalYear: "2026", Allocated: dec("200000")}
	require.NoError(t, repo.Create(ctx, b))
	assert.NotZero(t, b.ID)

	err := repo.Create(ctx, &entity.BudgetCategory{Department: "HR", Category: "Training", FiscalYear: "2026", Allocated: dec("1")})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	inserted, err := repo.CreateIfMissing(ctx, &entity.BudgetCategory{Department: "HR", Category: "Training", FiscalYear: "2026", Allocated: dec("5")})
	require.NoError(t, err)
	assert.False(t, inserted)

	inserted, err = repo.CreateIfMissing(ctx, &entity.BudgetCategory{Department: "IT", Category: "Software", FiscalYear: "2026", Allocated: dec("300000")})
	require.NoError(t, err)
	assert.True(t, inserted)

	all, err := repo.List(ctx, "", "2026")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	hr, err := repo.List(ctx, "HR", "")
	require.NoError(t, err)
	require.Len(t, hr, 1)
	assert.True(t, hr[0].Allocated.Equal(dec("200000")))

	_, err = repo.Get(ctx, "HR", "Travel", "2026")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestRequisitionRepository_TransitionGuard(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewRequisitionRepository(db.DB, zap.NewNop())
	ctx := context.Background()
	user := testutil.InsertUser(t, db, "alice", entity.RoleUser, "IT")
	pr := newRequisition(t, db, user, "PR-2026-IT-001", "5000")

	got, err := repo.GetByID(ctx, pr.ID)
	require.NoError(t, err)
	assert.True(t, got.GrandTotal.Equal(dec("5006")), "grand total is derived from total and tax")

	submit := port.Transition{
		ID: pr.ID, FromStatus: entity.StatusDraft, FromRole: "",
		ToStatus: entity.StatusPendingApproval, ToRole: entity.RoleApprover1, At: time.Now(),
	}
	require.NoError(t, repo.Transition(ctx, submit))

	// Replaying the same guarded update must not match again.
	assert.ErrorIs(t, repo.Transition(ctx, submit), apperr.ErrConflict)

	reason := "Rejected by approver1: no"
	require.NoError(t, repo.Transition(ctx, port.Transition{
		ID: pr.ID, FromStatus: entity.StatusPendingApproval, FromRole: entity.RoleApprover1,
		ToStatus: entity.StatusRejected, ToRole: "", RejectionReason: &reason, At: time.Now(),
	}))

	got, err = repo.GetByID(ctx, pr.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusRejected, got.Status)
	assert.Equal(t, entity.Role(""), got.CurrentApproverRole)
	assert.Equal(t, reason, got.RejectionReason)
	assert.Equal(t, entity.BudgetInBudget, got.BudgetStatus, "unset optional fields keep their value")

	_, err = repo.GetByID(ctx, 999)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestRequisitionRepository_ListsAndCounts(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewRequisitionRepository(db.DB, zap.NewNop())
	ctx := context.Background()
	alice := testutil.InsertUser(t, db, "alice", entity.RoleUser, "IT")
	bob := testutil.InsertUser(t, db, "bob", entity.RoleUser, "IT")

	newRequisition(t, db, alice, "PR-2026-IT-001", "100")
	second := newRequisition(t, db, alice, "PR-2026-IT-002", "200")
	newRequisition(t, db, bob, "PR-2026-IT-003", "300")

	n, err := repo.CountByDepartmentYear(ctx, "IT", "2026")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	mine, err := repo.ListByCreator(ctx, alice)
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	require.NoError(t, repo.Transition(ctx, port.Transition{
		ID: second.ID, FromStatus: entity.StatusDraft, ToStatus: entity.StatusPendingApproval,
		ToRole: entity.RoleApprover1, At: time.Now(),
	}))

	pending, err := repo.ListByStatus(ctx, entity.StatusPendingApproval, entity.RoleApprover1)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "PR-2026-IT-002", pending[0].PRNo)

	none, err := repo.ListByStatus(ctx, entity.StatusPendingApproval, entity.RoleApprover4)
	require.NoError(t, err)
	assert.Empty(t, none)

	err = newRequisitionErr(db, alice, "PR-2026-IT-001")
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func newRequisitionErr(db *database.DB, creator int64, prNo string) error {
	now := time.Now()
	return NewRequisitionRepository(db.DB, zap.NewNop()).Create(context.Background(), &entity.Requisition{
		PRNo: prNo, FiscalYear: "2026", CreatedAt: now, CreatedBy: creator, RequesterName: "x",
		Department: "IT", BudgetStatus: entity.BudgetInBudget, Purpose: "p", Priority: entity.PriorityNormal,
		VendorName: "v", Currency: entity.DefaultCurrency, Status: entity.StatusDraft, UpdatedAt: now,
	})
}

func TestRequisitionRepository_ProcurementReceivedOnlyOnce(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewRequisitionRepository(db.DB, zap.NewNop())
	ctx := context.Background()
	alice := testutil.InsertUser(t, db, "alice", entity.RoleUser, "IT")
	officer := testutil.InsertUser(t, db, "proc", entity.RoleProcurement, "PROC")
	pr := newRequisition(t, db, alice, "PR-2026-IT-001", "100")

	assert.ErrorIs(t, repo.MarkProcurementReceived(ctx, pr.ID, officer, time.Now()), apperr.ErrConflict,
		"draft PRs cannot be received")

	_, err := db.Exec(`UPDATE pr SET status = 'APPROVED' WHERE id = ?`, pr.ID)
	require.NoError(t, err)

	require.NoError(t, repo.MarkProcurementReceived(ctx, pr.ID, officer, time.Now()))
	assert.ErrorIs(t, repo.MarkProcurementReceived(ctx, pr.ID, officer, time.Now()), apperr.ErrConflict)

	got, err := repo.GetByID(ctx, pr.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ProcurementOfficerID)
	assert.Equal(t, officer, *got.ProcurementOfficerID)
	assert.NotNil(t, got.ProcurementReceivedAt)
}

func TestItemAndSlotRepositories(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	alice := testutil.InsertUser(t, db, "alice", entity.RoleUser, "IT")
	approver := testutil.InsertUser(t, db, "boss", entity.RoleApprover2, "IT")
	pr := newRequisition(t, db, alice, "PR-2026-IT-001", "30000")

	items := NewItemRepository(db.DB, zap.NewNop())
	require.NoError(t, items.CreateBatch(ctx, pr.ID, []entity.LineItem{
		{ItemNo: 1, Description: "Laptop", Quantity: 10, UnitOfMeasure: "UNIT", UnitPrice: dec("2500"), TotalPrice: dec("25000")},
		{ItemNo: 2, Description: "Dock", Quantity: 10, UnitOfMeasure: "UNIT", UnitPrice: dec("500"), TotalPrice: dec("5000")},
	}))

	got, err := items.ListByPR(ctx, pr.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, entity.SumLineItems(got).Equal(dec("30000")))

	slots := NewSlotRepository(db.DB, zap.NewNop())
	require.NoError(t, slots.Reset(ctx, pr.ID, []entity.Role{entity.RoleApprover2, entity.RoleApprover3}))
	require.NoError(t, slots.Record(ctx, pr.ID, entity.RoleApprover2, entity.SlotStatusApproved, approver, "ok", time.Now()))
	assert.ErrorIs(t, slots.Record(ctx, pr.ID, entity.RoleApprover4, entity.SlotStatusApproved, approver, "", time.Now()), apperr.ErrNotFound)

	list, err := slots.ListByPR(ctx, pr.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, entity.RoleApprover2, list[0].Role)
	assert.Equal(t, entity.SlotStatusApproved, list[0].Status)
	require.NotNil(t, list[0].ApproverID)
	assert.Equal(t, entity.SlotStatusPending, list[1].Status)

	// A fresh submission replaces the previous round.
	require.NoError(t, slots.Reset(ctx, pr.ID, []entity.Role{entity.RoleApprover1}))
	list, err = slots.ListByPR(ctx, pr.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, entity.SlotStatusPending, list[0].Status)
}

func TestHistoryRepository_AppendOnly(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	alice := testutil.InsertUser(t, db, "alice", entity.RoleUser, "IT")
	pr := newRequisition(t, db, alice, "PR-2026-IT-001", "100")

	repo := NewHistoryRepository(db.DB, zap.NewNop())
	require.NoError(t, repo.Append(ctx, &entity.HistoryEntry{
		PRID: pr.ID, Action: entity.ActionCreate, ActorID: &alice, ActorRole: entity.RoleUser,
		NewStatus: entity.StatusDraft, CreatedAt: time.Now(),
	}))
	require.NoError(t, repo.Append(ctx, &entity.HistoryEntry{
		PRID: pr.ID, Action: entity.ActionSubmit, ActorID: &alice, ActorRole: entity.RoleUser,
		PreviousStatus: entity.StatusDraft, NewStatus: entity.StatusPendingApproval, CreatedAt: time.Now(),
	}))

	entries, err := repo.ListByPR(ctx, pr.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, entity.ActionCreate, entries[0].Action)
	assert.Equal(t, entity.ActionSubmit, entries[1].Action)

	_, err = db.Exec(`UPDATE approval_history SET comments = 'edited' WHERE pr_id = ?`, pr.ID)
	assert.Error(t, err)
}

func TestPurchaseOrderRepository_Uniqueness(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	alice := testutil.InsertUser(t, db, "alice", entity.RoleUser, "IT")
	officer := testutil.InsertUser(t, db, "proc", entity.RoleProcurement, "PROC")
	pr1 := newRequisition(t, db, alice, "PR-2026-IT-001", "100")
	pr2 := newRequisition(t, db, alice, "PR-2026-IT-002", "100")

	repo := NewPurchaseOrderRepository(db.DB, zap.NewNop())
	now := time.Now()
	po := &entity.PurchaseOrder{PRID: pr1.ID, PONo: "PO-2026-0001", PODate: now, VendorName: "ACME",
		TotalAmount: dec("106"), Currency: "MYR", CreatedBy: officer, CreatedAt: now}
	require.NoError(t, repo.Create(ctx, po))

	dupPR := &entity.PurchaseOrder{PRID: pr1.ID, PONo: "PO-2026-0002", PODate: now, VendorName: "ACME",
		TotalAmount: dec("106"), Currency: "MYR", CreatedBy: officer, CreatedAt: now}
	assert.ErrorIs(t, repo.Create(ctx, dupPR), apperr.ErrConflict)

	dupNo := &entity.PurchaseOrder{PRID: pr2.ID, PONo: "PO-2026-0001", PODate: now, VendorName: "ACME",
		TotalAmount: dec("106"), Currency: "MYR", CreatedBy: officer, CreatedAt: now}
	assert.ErrorIs(t, repo.Create(ctx, dupNo), apperr.ErrConflict)

	got, err := repo.GetByPRID(ctx, pr1.ID)
	require.NoError(t, err)
	assert.Equal(t, po.ID, got.ID)
	assert.True(t, got.TotalAmount.Equal(dec("106")))

	n, err := repo.CountByYear(ctx, 2026)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = repo.GetByPRID(ctx, pr2.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestNotificationRepository_ScopedToUser(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	alice := testutil.InsertUser(t, db, "alice", entity.RoleUser, "IT")
	bob := testutil.InsertUser(t, db, "bob", entity.RoleUser, "IT")

	repo := NewNotificationRepository(db.DB, zap.NewNop())
	n1 := &entity.Notification{UserID: alice, Title: "a", Message: "m", Type: entity.NotificationInfo, CreatedAt: time.Now()}
	n2 := &entity.Notification{UserID: alice, Title: "b", Message: "m", Type: entity.NotificationInfo, CreatedAt: time.Now()}
	require.NoError(t, repo.Create(ctx, n1))
	require.NoError(t, repo.Create(ctx, n2))

	assert.ErrorIs(t, repo.MarkRead(ctx, bob, n1.ID), apperr.ErrNotFound)
	require.NoError(t, repo.MarkRead(ctx, alice, n1.ID))

	unread, err := repo.CountUnread(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, 1, unread)

	changed, err := repo.MarkAllRead(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, int64(1), changed)

	list, err := repo.ListByUser(ctx, alice, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.True(t, list[0].IsRead && list[1].IsRead)
}

func TestVendorRepository(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	repo := NewVendorRepository(db.DB, zap.NewNop())

	v := &entity.Vendor{Code: "V001", Name: "Acme_Supplies", Type: "Supplier", PaymentTerms: "NET30",
		Currency: "MYR", Active: true, CreatedAt: time.Now()}
	require.NoError(t, repo.Create(ctx, v))
	assert.ErrorIs(t, repo.Create(ctx, &entity.Vendor{Code: "V001", Name: "Other", CreatedAt: time.Now()}), apperr.ErrConflict)
	require.NoError(t, repo.Create(ctx, &entity.Vendor{Code: "V002", Name: "AcmeXSupplies", Active: true, CreatedAt: time.Now()}))

	found, err := repo.Search(ctx, "acme_", 10)
	require.NoError(t, err)
	require.Len(t, found, 1, "underscore is matched literally")
	assert.Equal(t, "V001", found[0].Code)

	require.NoError(t, repo.SetActive(ctx, "V001", false))
	active, err := repo.List(ctx, true)
	require.NoError(t, err)
	assert.Len(t, active, 1)

	all, err := repo.List(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	assert.ErrorIs(t, repo.SetActive(ctx, "NOPE", true), apperr.ErrNotFound)
	_, err = repo.GetByCode(ctx, "NOPE")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestUserRepository(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	repo := NewUserRepository(db.DB, zap.NewNop())

	u := &entity.User{Username: "carol", PasswordHash: "h", FullName: "Carol", Role: entity.RoleApprover1,
		Department: "IT", Active: true, CreatedAt: time.Now()}
	require.NoError(t, repo.Create(ctx, u))
	assert.ErrorIs(t, repo.Create(ctx, &entity.User{Username: "carol", PasswordHash: "h", FullName: "C",
		Role: entity.RoleUser, CreatedAt: time.Now()}), apperr.ErrConflict)

	got, err := repo.GetByUsername(ctx, "carol")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Nil(t, got.LastLogin)

	require.NoError(t, repo.TouchLastLogin(ctx, u.ID, time.Now()))
	got, err = repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.LastLogin)

	approvers, err := repo.ListActiveByRole(ctx, entity.RoleApprover1)
	require.NoError(t, err)
	assert.Len(t, approvers, 1)

	require.NoError(t, repo.SetActive(ctx, u.ID, false))
	approvers, err = repo.ListActiveByRole(ctx, entity.RoleApprover1)
	require.NoError(t, err)
	assert.Empty(t, approvers)

	_, err = repo.GetByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestAuditRepository(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	repo := NewAuditRepository(db.DB, zap.NewNop())

	prID := int64(42)
	require.NoError(t, repo.Append(ctx, &entity.AuditRecord{EventID: "e1", EventType: "requisition.created",
		PRID: &prID, Payload: `{"pr_no":"PR-2026-IT-001"}`, CreatedAt: time.Now()}))
	require.NoError(t, repo.Append(ctx, &entity.AuditRecord{EventID: "e2", EventType: "budget.allocated",
		Payload: `{}`, CreatedAt: time.Now()}))

	recs, err := repo.ListByPR(ctx, prID)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "e1", recs[0].EventID)
	assert.Nil(t, recs[0].ActorID)
}
