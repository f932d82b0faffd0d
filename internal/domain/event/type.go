package event

// Type identifies the type of domain event
type Type string

const (
	TypeRequisitionCreated      Type = "requisition.created"
	TypeRequisitionSubmitted    Type = "requisition.submitted"
	TypeRequisitionAdvanced     Type = "requisition.advanced"
	TypeRequisitionApproved     Type = "requisition.approved"
	TypeRequisitionRejected     Type = "requisition.rejected"
	TypeRequisitionReturned     Type = "requisition.returned"
	TypeQuotationAttached       Type = "requisition.quotation_attached"
	TypeBudgetExceptionApproved Type = "budget_exception.approved"
	TypeBudgetExceptionRejected Type = "budget_exception.rejected"
	TypeProcurementReceived     Type = "procurement.received"
	TypePurchaseOrderCreated    Type = "purchase_order.created"
	TypeBudgetCategoryAllocated Type = "budget.allocated"
)

var validTypes = map[Type]bool{
	TypeRequisitionCreated:      true,
	TypeRequisitionSubmitted:    true,
	TypeRequisitionAdvanced:     true,
	TypeRequisitionApproved:     true,
	TypeRequisitionRejected:     true,
	TypeRequisitionReturned:     true,
	TypeQuotationAttached:       true,
	TypeBudgetExceptionApproved: true,
	TypeBudgetExceptionRejected: true,
	TypeProcurementReceived:     true,
	TypePurchaseOrderCreated:    true,
	TypeBudgetCategoryAllocated: true,
}

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	return validTypes[t]
}
