package booking

import (
	"errors"
	"fmt"

	"clinicbook/internal/clinic"
)

var (
	ErrIncompleteDraft    = errors.New("draft is incomplete")
	ErrNotesTooLong       = errors.New("notes are too long")
	ErrPastDate           = errors.New("date is in the past")
	ErrDateTooFar         = errors.New("date is too far ahead")
	ErrUnknownOption      = errors.New("option is not in the current list")
	ErrSlotUnavailable    = errors.New("time slot is not available")
	ErrMissingDependency  = errors.New("an earlier step is not selected")
	ErrNotAuthenticated   = errors.New("booking: patient is not authenticated")
	ErrSubmissionInFlight = errors.New("booking: submission already in progress")
	ErrStaleResult        = errors.New("booking: result superseded by a newer request")
)

// ValidationError is a local rejection; no network call was made.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("booking: invalid %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(field string, err error) error {
	return &ValidationError{Field: field, Err: err}
}

// FetchError is a transient collaborator failure: network, timeout or 5xx.
type FetchError struct {
	Op  string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("booking: %s: %v", e.Op, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ConflictError is the booking ledger refusing a submission. Message is the backend's text.
type ConflictError struct {
	Message string
	Err     error
}

func (e *ConflictError) Error() string { return e.Message }

func (e *ConflictError) Unwrap() error { return e.Err }

// classify turns a collaborator error into the booking taxonomy.
func classify(op string, err error) error {
	if errors.Is(err, clinic.ErrUnauthorized) {
		return fmt.Errorf("%w: %w", ErrNotAuthenticated, err)
	}
	if clinic.IsRejection(err) {
		var apiErr *clinic.APIError
		errors.As(err, &apiErr)
		return &ConflictError{Message: apiErr.Message, Err: err}
	}
	return &FetchError{Op: op, Err: err}
}
