package engine

import "errors"

var (
	// ErrNotAuthorized is returned when the user is not in the resolved
	// approver set of the execution's current step.
	ErrNotAuthorized = errors.New("user is not an eligible approver for the current step")

	// ErrStepAlreadyCompleted is returned for a late decision from an
	// approver of a step the execution has already advanced past. Late
	// decisions are rejected outright, never recorded as inert history.
	ErrStepAlreadyCompleted = errors.New("step already completed")

	// ErrExecutionFinished is returned when an operation targets an
	// execution in a terminal status.
	ErrExecutionFinished = errors.New("execution already finished")

	// ErrInvalidStepConfiguration is returned at start time when the
	// workflow has no steps or a step resolves to zero approvers; surfaced
	// up front rather than letting the execution stall forever.
	ErrInvalidStepConfiguration = errors.New("invalid step configuration")

	// ErrInvalidDecision is returned for a decision value outside
	// APPROVED/REJECTED.
	ErrInvalidDecision = errors.New("invalid decision value")
)
