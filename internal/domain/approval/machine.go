package approval

import "fmt"

// Lifecycle tracks an execution's state and validates transitions. It is a
// plain value over the persisted status column; the durable representation
// of "current state" stays in the execution row and its decision log.
type Lifecycle struct {
	current State
}

// lifecycle transition table: every trigger is only permitted from PENDING,
// terminal states have no outgoing transitions.
var transitions = map[State]map[Trigger]State{
	StatePending: {
		TriggerComplete: StateApproved,
		TriggerReject:   StateRejected,
		TriggerCancel:   StateCancelled,
	},
}

// NewLifecycle creates a lifecycle positioned at the given state.
func NewLifecycle(initial State) (*Lifecycle, error) {
	if !initial.IsValid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidState, initial)
	}
	return &Lifecycle{current: initial}, nil
}

// State returns the current state.
func (l *Lifecycle) State() State {
	return l.current
}

// CanFire returns true if the trigger is permitted in the current state.
func (l *Lifecycle) CanFire(trigger Trigger) bool {
	_, ok := transitions[l.current][trigger]
	return ok
}

// Fire executes the trigger, moving to the target state if allowed.
func (l *Lifecycle) Fire(trigger Trigger) error {
	to, ok := transitions[l.current][trigger]
	if !ok {
		return fmt.Errorf("%w: cannot fire %s from state %s", ErrInvalidTransition, trigger, l.current)
	}
	l.current = to
	return nil
}

// PermittedTriggers returns all triggers that can be fired in the current state.
func (l *Lifecycle) PermittedTriggers() []Trigger {
	out := make([]Trigger, 0, len(transitions[l.current]))
	for t := range transitions[l.current] {
		out = append(out, t)
	}
	return out
}
