package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Requisition is a purchase requisition header.
// The approval path is not stored on the record: it is derived from
// TotalAmount and BudgetStatus at every step, and only the current
// position (CurrentApproverRole) is persisted.
type Requisition struct {
	ID            int64     `json:"id"`
	PRNo          string    `json:"pr_no"`
	FiscalYear    string    `json:"fiscal_year"`
	CreatedAt     time.Time `json:"created_at"`
	CreatedBy     int64     `json:"created_by"`
	RequesterName string    `json:"requester_name"`
	Department    string    `json:"department"`

	BudgetCategory          string       `json:"budget_category,omitempty"`
	BudgetStatus            BudgetStatus `json:"budget_status"`
	BudgetExceptionApprover *int64       `json:"budget_exception_approver,omitempty"`
	BudgetExceptionDate     *time.Time   `json:"budget_exception_date,omitempty"`
	BudgetExceptionNotes    string       `json:"budget_exception_notes,omitempty"`

	Purpose  string `json:"purpose"`
	Priority string `json:"priority"`

	VendorName    string `json:"vendor_name"`
	VendorCode    string `json:"vendor_code,omitempty"`
	VendorContact string `json:"vendor_contact,omitempty"`

	TotalAmount decimal.Decimal `json:"total_amount"`
	TaxAmount   decimal.Decimal `json:"tax_amount"`
	GrandTotal  decimal.Decimal `json:"grand_total"`
	Currency    string          `json:"currency"`

	Status              Status `json:"status"`
	CurrentApproverRole Role   `json:"current_approver_role,omitempty"`
	RejectionReason     string `json:"rejection_reason,omitempty"`
	QuotationPath       string `json:"quotation_path,omitempty"`

	ProcurementReceivedAt *time.Time `json:"procurement_received_at,omitempty"`
	ProcurementOfficerID  *int64     `json:"procurement_officer_id,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`

	Items   []LineItem     `json:"items,omitempty"`
	Slots   []ApprovalSlot `json:"approval_slots,omitempty"`
	History []HistoryEntry `json:"history,omitempty"`
}

// HasQuotation reports whether a quotation file has been attached.
func (r *Requisition) HasQuotation() bool {
	return r.QuotationPath != ""
}

// LineItem is a single requested item of a PR. ItemNo is 1-based.
type LineItem struct {
	ID            int64           `json:"id"`
	PRID          int64           `json:"pr_id"`
	ItemNo        int             `json:"item_no"`
	Description   string          `json:"description"`
	Quantity      int64           `json:"quantity"`
	UnitOfMeasure string          `json:"unit_of_measure"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	TotalPrice    decimal.Decimal `json:"total_price"`
}

// LineTotal returns quantity × unit price.
func (i LineItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(i.Quantity))
}

// SumLineItems returns the sum of the items' TotalPrice.
func SumLineItems(items []LineItem) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(it.TotalPrice)
	}
	return sum
}

// ApprovalSlot records one role's decision in the approval path.
type ApprovalSlot struct {
	ID         int64      `json:"id"`
	PRID       int64      `json:"pr_id"`
	Position   int        `json:"position"`
	Role       Role       `json:"role"`
	Status     string     `json:"status"`
	ApproverID *int64     `json:"approver_id,omitempty"`
	ActedAt    *time.Time `json:"acted_at,omitempty"`
	Notes      string     `json:"notes,omitempty"`
}
