package service

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/garyjia/pr-workflow/internal/domain/apperr"
	"github.com/garyjia/pr-workflow/internal/domain/entity"
	"github.com/garyjia/pr-workflow/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequisitionService_Create(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.budget(t, "Hardware", 10000)

	pr, err := f.requisitions.Create(ctx, f.requester, CreateRequisitionInput{
		BudgetCategory: "Hardware",
		Purpose:        "Monitors",
		VendorName:     "ACME Supplies",
		TaxAmount:      dec("60.00"),
		Items: []LineItemInput{
			{Description: "27in monitor", Quantity: 2, UnitPrice: dec("450.00")},
			{Description: "HDMI cable", Quantity: 4, UnitOfMeasure: "pcs", UnitPrice: dec("25.00")},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "PR-2026-IT-001", pr.PRNo)
	assert.Equal(t, "2026", pr.FiscalYear)
	assert.Equal(t, "IT", pr.Department)
	assert.Equal(t, "alice", pr.RequesterName)
	assert.Equal(t, entity.PriorityNormal, pr.Priority)
	assert.Equal(t, entity.DefaultCurrency, pr.Currency)
	assert.True(t, pr.TotalAmount.Equal(dec("1000.00")), pr.TotalAmount.String())
	assert.True(t, pr.GrandTotal.Equal(dec("1060.00")), pr.GrandTotal.String())

	got, err := f.requisitions.Get(ctx, f.requester, pr.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 2)
	assert.Equal(t, 1, got.Items[0].ItemNo)
	assert.True(t, got.Items[0].TotalPrice.Equal(dec("900.00")))
	assert.Equal(t, "UNIT", got.Items[0].UnitOfMeasure)
	assert.Equal(t, "PCS", got.Items[1].UnitOfMeasure)

	budgets, err := f.budgets.List(ctx, "IT", "2026")
	require.NoError(t, err)
	require.Len(t, budgets, 1)
	assert.True(t, budgets[0].Spent.Equal(dec("1000.00")), "tax is not reserved")
	assert.True(t, budgets[0].Remaining.Equal(dec("9000.00")))

	assert.Contains(t, titles(f.unread(t, f.requester)), "PR Created")

	second := f.createPR(t, "10")
	assert.Equal(t, "PR-2026-IT-002", second.PRNo)
}

func TestRequisitionService_CreateExhaustsBudgetExactly(t *testing.T) {
	f := newFixture(t)
	f.budget(t, "Hardware", 10000)

	first := f.createPR(t, "10000")
	assert.Equal(t, entity.BudgetInBudget, first.BudgetStatus)

	second := f.createPR(t, "0.01")
	assert.Equal(t, entity.BudgetOutOfBudget, second.BudgetStatus)
	assert.Equal(t, entity.StatusBudgetExceptionPending, second.Status)
}

func TestRequisitionService_CreateValidation(t *testing.T) {
	valid := func() CreateRequisitionInput {
		return CreateRequisitionInput{
			Purpose:    "Chairs",
			VendorName: "Office Co",
			Items:      []LineItemInput{{Description: "Chair", Quantity: 1, UnitPrice: dec("100")}},
		}
	}

	tests := []struct {
		name   string
		mutate func(*CreateRequisitionInput)
	}{
		{name: "no items", mutate: func(in *CreateRequisitionInput) { in.Items = nil }},
		{name: "zero quantity", mutate: func(in *CreateRequisitionInput) { in.Items[0].Quantity = 0 }},
		{name: "negative price", mutate: func(in *CreateRequisitionInput) { in.Items[0].UnitPrice = dec("-1") }},
		{name: "sub-cent price", mutate: func(in *CreateRequisitionInput) { in.Items[0].UnitPrice = dec("1.001") }},
		{name: "blank description", mutate: func(in *CreateRequisitionInput) { in.Items[0].Description = "  " }},
		{name: "negative tax", mutate: func(in *CreateRequisitionInput) { in.TaxAmount = dec("-5") }},
		{name: "price above maximum", mutate: func(in *CreateRequisitionInput) { in.Items[0].UnitPrice = dec("10000000000000.01") }},
		{name: "line total above maximum", mutate: func(in *CreateRequisitionInput) {
			in.Items[0].UnitPrice = dec("5000000000000.01")
			in.Items[0].Quantity = 2
		}},
		{name: "grand total above maximum", mutate: func(in *CreateRequisitionInput) { in.TaxAmount = dec("9999999999900.01") }},
		{name: "missing purpose", mutate: func(in *CreateRequisitionInput) { in.Purpose = "" }},
		{name: "missing vendor", mutate: func(in *CreateRequisitionInput) { in.VendorName = "" }},
		{name: "bad priority", mutate: func(in *CreateRequisitionInput) { in.Priority = "ASAP" }},
		{name: "bad fiscal year", mutate: func(in *CreateRequisitionInput) { in.FiscalYear = "26" }},
		{name: "bad department", mutate: func(in *CreateRequisitionInput) { in.Department = "I T" }},
		{name: "unknown vendor code", mutate: func(in *CreateRequisitionInput) { in.VendorCode = "NOPE" }},
	}

	f := newFixture(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid()
			tt.mutate(&in)
			_, err := f.requisitions.Create(context.Background(), f.requester, in)
			assert.True(t, errors.Is(err, apperr.ErrValidation), "got %v", err)
		})
	}

	_, err := f.requisitions.Create(context.Background(), f.approver1, valid())
	assert.True(t, errors.Is(err, apperr.ErrAuthorization), "got %v", err)
}

func TestRequisitionService_CreateRejectsUnrepresentableAmount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.budget(t, "Hardware", 100000)

	// exceeds int64 once expressed in cents
	_, err := f.requisitions.Create(ctx, f.requester, CreateRequisitionInput{
		BudgetCategory: "Hardware",
		Purpose:        "Servers",
		VendorName:     "ACME Supplies",
		Items:          []LineItemInput{{Description: "Rack", Quantity: 1, UnitPrice: dec("184467440737100516.16")}},
	})
	require.True(t, errors.Is(err, apperr.ErrValidation), "got %v", err)

	mine, err := f.requisitions.ListMine(ctx, f.requester)
	require.NoError(t, err)
	assert.Empty(t, mine)

	budgets, err := f.budgets.List(ctx, "IT", "2026")
	require.NoError(t, err)
	require.Len(t, budgets, 1)
	assert.True(t, budgets[0].Spent.IsZero(), "spent %s", budgets[0].Spent)

	// the largest accepted amount round-trips unchanged and routes by its real size
	pr, err := f.requisitions.Create(ctx, f.requester, CreateRequisitionInput{
		BudgetCategory: "Hardware",
		Purpose:        "Data centre",
		VendorName:     "ACME Supplies",
		Items:          []LineItemInput{{Description: "Building", Quantity: 1, UnitPrice: utils.MaxAmount}},
	})
	require.NoError(t, err)
	assert.Equal(t, entity.BudgetOutOfBudget, pr.BudgetStatus)

	got, err := f.requisitions.Get(ctx, f.requester, pr.ID)
	require.NoError(t, err)
	assert.True(t, got.TotalAmount.Equal(utils.MaxAmount), got.TotalAmount.String())
	assert.True(t, got.GrandTotal.Equal(utils.MaxAmount), got.GrandTotal.String())
}

func TestRequisitionService_DepartmentCaseInsensitive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.budget(t, "Hardware", 10000)

	create := func(dept string) *entity.Requisition {
		t.Helper()
		pr, err := f.requisitions.Create(ctx, f.requester, CreateRequisitionInput{
			Department:     dept,
			BudgetCategory: "Hardware",
			Purpose:        "Keyboards",
			VendorName:     "ACME Supplies",
			Items:          []LineItemInput{{Description: "Keyboard", Quantity: 1, UnitPrice: dec("100")}},
		})
		require.NoError(t, err, dept)
		return pr
	}

	first := create("it")
	second := create("IT")
	third := create(" It ")

	assert.Equal(t, "PR-2026-IT-001", first.PRNo)
	assert.Equal(t, "PR-2026-IT-002", second.PRNo)
	assert.Equal(t, "PR-2026-IT-003", third.PRNo)
	for _, pr := range []*entity.Requisition{first, second, third} {
		assert.Equal(t, "IT", pr.Department)
		assert.Equal(t, entity.BudgetInBudget, pr.BudgetStatus)
	}

	budgets, err := f.budgets.List(ctx, "IT", "2026")
	require.NoError(t, err)
	require.Len(t, budgets, 1)
	assert.True(t, budgets[0].Spent.Equal(dec("300")), "spent %s", budgets[0].Spent)
}

func TestRequisitionService_CreateWithVendorCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.vendors.Create(ctx, f.buyer, &entity.Vendor{Code: "acme", Name: "ACME Berhad"}))

	pr, err := f.requisitions.Create(ctx, f.requester, CreateRequisitionInput{
		Purpose:    "Toner",
		VendorCode: "ACME",
		Items:      []LineItemInput{{Description: "Toner", Quantity: 3, UnitPrice: dec("80")}},
	})
	require.NoError(t, err)
	assert.Equal(t, "ACME Berhad", pr.VendorName)

	require.NoError(t, f.vendors.SetActive(ctx, f.buyer, "ACME", false))
	_, err = f.requisitions.Create(ctx, f.requester, CreateRequisitionInput{
		Purpose:    "Toner",
		VendorCode: "ACME",
		Items:      []LineItemInput{{Description: "Toner", Quantity: 1, UnitPrice: dec("80")}},
	})
	assert.True(t, errors.Is(err, apperr.ErrValidation), "got %v", err)
}

func TestRequisitionService_Visibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.budget(t, "Hardware", 1000)
	pr := f.createPR(t, "100")

	_, err := f.requisitions.Get(ctx, f.colleague, pr.ID)
	assert.True(t, errors.Is(err, apperr.ErrNotFound), "got %v", err)

	for _, viewer := range []entity.Actor{f.requester, f.approver3, f.buyer, f.admin} {
		_, err := f.requisitions.Get(ctx, viewer, pr.ID)
		assert.NoError(t, err, viewer.Username)
	}

	mine, err := f.requisitions.ListMine(ctx, f.requester)
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	theirs, err := f.requisitions.ListMine(ctx, f.colleague)
	require.NoError(t, err)
	assert.Empty(t, theirs)
}

func TestRequisitionService_AttachQuotation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.budget(t, "Hardware", 1000)
	pr := f.createPR(t, "100")
	pdf := []byte("%PDF-1.4 quotation")

	_, err := f.requisitions.AttachQuotation(ctx, f.requester, pr.ID, "quote.exe", pdf)
	assert.True(t, errors.Is(err, apperr.ErrValidation), "got %v", err)

	_, err = f.requisitions.AttachQuotation(ctx, f.requester, pr.ID, "quote.pdf", nil)
	assert.True(t, errors.Is(err, apperr.ErrValidation), "got %v", err)

	_, err = f.requisitions.AttachQuotation(ctx, f.requester, pr.ID, "quote.pdf", bytes.Repeat([]byte("x"), MaxQuotationSize+1))
	assert.True(t, errors.Is(err, apperr.ErrValidation), "got %v", err)

	_, err = f.requisitions.AttachQuotation(ctx, f.colleague, pr.ID, "quote.pdf", pdf)
	assert.True(t, errors.Is(err, apperr.ErrNotFound), "got %v", err)

	_, err = f.requisitions.AttachQuotation(ctx, f.approver1, pr.ID, "quote.pdf", pdf)
	assert.True(t, errors.Is(err, apperr.ErrAuthorization), "got %v", err)

	updated, err := f.requisitions.AttachQuotation(ctx, f.requester, pr.ID, "Vendor Quote.PDF", pdf)
	require.NoError(t, err)
	assert.Equal(t, "PR-2026-IT-001/quotation.pdf", updated.QuotationPath)
	assert.True(t, updated.HasQuotation())

	got, err := f.requisitions.Get(ctx, f.requester, pr.ID)
	require.NoError(t, err)
	assert.Equal(t, updated.QuotationPath, got.QuotationPath)
	last := got.History[len(got.History)-1]
	assert.Equal(t, entity.ActionQuotationAttached, last.Action)
}

func TestQuotationPath(t *testing.T) {
	assert.Equal(t, "PR-2026-IT-007/quotation.xlsx", quotationPath("PR-2026-IT-007", "Q1 prices.XLSX"))
}
