package entity

import "github.com/shopspring/decimal"

// BudgetCategory is one allocation line of the budget ledger.
type BudgetCategory struct {
	ID         int64           `json:"id"`
	Department string          `json:"department"`
	Category   string          `json:"category"`
	FiscalYear string          `json:"fiscal_year"`
	Allocated  decimal.Decimal `json:"allocated_amount"`
	Spent      decimal.Decimal `json:"spent_amount"`
	Remaining  decimal.Decimal `json:"remaining_amount"`
}
