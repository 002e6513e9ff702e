package port

import "errors"

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateExecution is returned when a pending execution already
	// exists for the expense. Concurrency-conflict error: the loser of a
	// concurrent start must not retry blindly.
	ErrDuplicateExecution = errors.New("pending execution already exists for expense")

	// ErrAlreadyDecided is returned when a decision already exists for the
	// (execution, step, approver) triple.
	ErrAlreadyDecided = errors.New("approver already decided on this step")
)
