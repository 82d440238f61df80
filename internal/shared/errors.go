package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates the request failed boundary validation.
	ErrValidation = errors.New("validation failed")
	// ErrForbidden indicates the actor lacks the role required for the operation.
	ErrForbidden = errors.New("forbidden")
	// ErrConflict indicates the record is not in a state that allows the change.
	ErrConflict = errors.New("conflict")
)
