package workflow

// State represents a purchase requisition status in the approval lifecycle
type State string

const (
	StateDraft                  State = "DRAFT"
	StateBudgetExceptionPending State = "BUDGET_EXCEPTION_PENDING"
	StatePendingApproval        State = "PENDING_APPROVAL"
	StateApproved               State = "APPROVED"
	StateRejected               State = "REJECTED"
	StatePOCreated              State = "PO_CREATED"
)

var validStates = map[State]bool{
	StateDraft:                  true,
	StateBudgetExceptionPending: true,
	StatePendingApproval:        true,
	StateApproved:               true,
	StateRejected:               true,
	StatePOCreated:              true,
}

var terminalStates = map[State]bool{
	StateRejected:  true,
	StatePOCreated: true,
}

// IsTerminal returns true if no further transitions are allowed from the state
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a valid workflow state
func (s State) IsValid() bool {
	return validStates[s]
}
