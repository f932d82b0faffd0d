package workflow

// Trigger represents an action that can cause a state transition
type Trigger string

const (
	TriggerSubmit           Trigger = "SUBMIT"
	TriggerApprove          Trigger = "APPROVE"
	TriggerReject           Trigger = "REJECT"
	TriggerReturn           Trigger = "RETURN"
	TriggerExceptionApprove Trigger = "EXCEPTION_APPROVE"
	TriggerExceptionReject  Trigger = "EXCEPTION_REJECT"
	TriggerIssuePO          Trigger = "ISSUE_PO"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}
