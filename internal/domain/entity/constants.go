package entity

// Role is the access role carried in a user's session.
type Role string

const (
	RoleUser        Role = "user"
	RoleApprover1   Role = "approver1" // Division Head / Director
	RoleApprover2   Role = "approver2" // Group CFO
	RoleApprover3   Role = "approver3" // Group CEO
	RoleApprover4   Role = "approver4" // Group MD
	RoleProcurement Role = "procurement"
	RoleSuperAdmin  Role = "superadmin"
)

var validRoles = map[Role]bool{
	RoleUser:        true,
	RoleApprover1:   true,
	RoleApprover2:   true,
	RoleApprover3:   true,
	RoleApprover4:   true,
	RoleProcurement: true,
	RoleSuperAdmin:  true,
}

// IsValid reports whether r is a known role.
func (r Role) IsValid() bool {
	return validRoles[r]
}

// IsApprover reports whether r can sit in an approval path.
func (r Role) IsApprover() bool {
	switch r {
	case RoleApprover1, RoleApprover2, RoleApprover3, RoleApprover4:
		return true
	}
	return false
}

func (r Role) String() string {
	return string(r)
}

// BudgetStatus tracks how a PR relates to its budget category.
type BudgetStatus string

const (
	BudgetInBudget          BudgetStatus = "IN_BUDGET"
	BudgetOutOfBudget       BudgetStatus = "OUT_OF_BUDGET"
	BudgetExceptionApproved BudgetStatus = "EXCEPTION_APPROVED"
	BudgetExceptionPending  BudgetStatus = "BUDGET_EXCEPTION_PENDING"
)

// Status constants for PurchaseRequisition
type Status string

const (
	StatusDraft                  Status = "DRAFT"
	StatusBudgetExceptionPending Status = "BUDGET_EXCEPTION_PENDING"
	StatusPendingApproval        Status = "PENDING_APPROVAL"
	StatusApproved               Status = "APPROVED"
	StatusRejected               Status = "REJECTED"
	StatusPOCreated              Status = "PO_CREATED"
)

// Approval slot status constants
const (
	SlotStatusPending  = "PENDING"
	SlotStatusApproved = "APPROVED"
	SlotStatusRejected = "REJECTED"
	SlotStatusReturned = "RETURNED"
)

// History action constants
const (
	ActionCreate                 = "CREATE"
	ActionSubmit                 = "SUBMIT_FOR_APPROVAL"
	ActionApprove                = "APPROVE"
	ActionReject                 = "REJECT"
	ActionReturn                 = "RETURN"
	ActionBudgetExceptionApprove = "BUDGET_EXCEPTION_APPROVE"
	ActionBudgetExceptionReject  = "BUDGET_EXCEPTION_REJECT"
	ActionQuotationAttached      = "QUOTATION_ATTACHED"
	ActionProcurementReceived    = "PROCUREMENT_RECEIVED"
	ActionPOCreated              = "PO_CREATED"
)

// Notification type constants
const (
	NotificationInfo    = "INFO"
	NotificationSuccess = "SUCCESS"
	NotificationWarning = "WARNING"
	NotificationDanger  = "DANGER"
)

// Priority constants
const (
	PriorityLow    = "LOW"
	PriorityNormal = "NORMAL"
	PriorityHigh   = "HIGH"
	PriorityUrgent = "URGENT"
)

// DefaultCurrency is used when a PR or vendor does not specify one.
const DefaultCurrency = "MYR"
