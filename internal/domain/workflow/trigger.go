package workflow

// Trigger represents an action that can cause a status transition
type Trigger string

const (
	TriggerStartReview Trigger = "START_REVIEW"
	TriggerApprove     Trigger = "APPROVE"
	TriggerReject      Trigger = "REJECT"
	TriggerWithdraw    Trigger = "WITHDRAW"
	TriggerReopen      Trigger = "REOPEN"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}
