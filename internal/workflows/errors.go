package workflows

import "errors"

var (
	// ErrWorkflowNotFound is returned when a workflow is not registered
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrValidation marks upload validation failures; nothing has been written
	// when it is returned
	ErrValidation = errors.New("invalid upload")

	// ErrInvalidRequest is returned when a job request is invalid
	ErrInvalidRequest = errors.New("invalid workflow request")
)
