package workflow

import (
	"errors"
	"fmt"

	"github.com/garyjia/pr-workflow/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// ErrRoleNotInPath is returned when the PR's current approver role is absent
// from the freshly computed approval path.
var ErrRoleNotInPath = errors.New("role not in approval path")

// Thresholds are the inclusive upper bounds of each approval level.
// Level3 is informational: everything above Level2 routes to approver4.
type Thresholds struct {
	Level1 decimal.Decimal
	Level2 decimal.Decimal
	Level3 decimal.Decimal
}

// DefaultThresholds returns 10,000 / 50,000 / 100,000.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Level1: decimal.NewFromInt(10000),
		Level2: decimal.NewFromInt(50000),
		Level3: decimal.NewFromInt(100000),
	}
}

// Validate checks that the levels are positive and strictly increasing.
func (t Thresholds) Validate() error {
	if !t.Level1.IsPositive() {
		return fmt.Errorf("approval level1 must be positive, got %s", t.Level1)
	}
	if !t.Level2.GreaterThan(t.Level1) {
		return fmt.Errorf("approval level2 (%s) must exceed level1 (%s)", t.Level2, t.Level1)
	}
	if !t.Level3.GreaterThan(t.Level2) {
		return fmt.Errorf("approval level3 (%s) must exceed level2 (%s)", t.Level3, t.Level2)
	}
	return nil
}

// Path returns the ordered approver roles for a PR. It is a pure function of
// its inputs and must be called again at every approval step; the result is
// never persisted.
func (t Thresholds) Path(amount decimal.Decimal, status entity.BudgetStatus) []entity.Role {
	switch {
	case status == entity.BudgetOutOfBudget:
		return []entity.Role{entity.RoleApprover1}
	case amount.LessThanOrEqual(t.Level1):
		return []entity.Role{entity.RoleApprover1}
	case amount.LessThanOrEqual(t.Level2):
		return []entity.Role{entity.RoleApprover2, entity.RoleApprover3}
	default:
		return []entity.Role{entity.RoleApprover4}
	}
}

// ApprovalPath routes with DefaultThresholds.
func ApprovalPath(amount decimal.Decimal, status entity.BudgetStatus) []entity.Role {
	return DefaultThresholds().Path(amount, status)
}

// Position returns the index of role within path, or -1.
func Position(path []entity.Role, role entity.Role) int {
	for i, r := range path {
		if r == role {
			return i
		}
	}
	return -1
}

// NextApprover returns the role after current in path. ok is false when
// current is the last role.
func NextApprover(path []entity.Role, current entity.Role) (next entity.Role, ok bool, err error) {
	idx := Position(path, current)
	if idx < 0 {
		return "", false, fmt.Errorf("%w: %s", ErrRoleNotInPath, current)
	}
	if idx+1 < len(path) {
		return path[idx+1], true, nil
	}
	return "", false, nil
}
