package queue

import "errors"

var (
	// ErrInvalidRequest is returned for malformed download requests
	ErrInvalidRequest = errors.New("invalid request")

	// ErrNotFound is returned for unknown task ids
	ErrNotFound = errors.New("task not found")

	// ErrAlreadyTerminal is returned when cancelling a finished task
	ErrAlreadyTerminal = errors.New("task already finished")

	// ErrNotActive is returned when an operation needs an active task
	ErrNotActive = errors.New("task is not active")
)
