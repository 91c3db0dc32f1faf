package workflow

import "errors"

var (
	// ErrInvalidTransition is returned when a status transition is not allowed
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrTerminalStatus is returned when an operation targets an application
	// whose status permits no further transitions
	ErrTerminalStatus = errors.New("application status is terminal")
)
