package approval

// Trigger represents an event that can cause a lifecycle transition
type Trigger string

const (
	// TriggerComplete fires when the final step's completion condition is met.
	TriggerComplete Trigger = "COMPLETE"

	// TriggerReject fires on any rejected decision; a single rejection vetoes
	// the whole execution.
	TriggerReject Trigger = "REJECT"

	// TriggerCancel fires on explicit cancellation by the initiator.
	TriggerCancel Trigger = "CANCEL"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}
