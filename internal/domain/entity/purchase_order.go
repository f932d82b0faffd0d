package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// PurchaseOrder is issued once for a fully approved PR.
type PurchaseOrder struct {
	ID          int64           `json:"id"`
	PRID        int64           `json:"pr_id"`
	PONo        string          `json:"po_no"`
	PODate      time.Time       `json:"po_date"`
	VendorName  string          `json:"vendor_name"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Currency    string          `json:"currency"`
	CreatedBy   int64           `json:"created_by"`
	CreatedAt   time.Time       `json:"created_at"`
}
