package models

import "errors"

// GenericFailureMessage replaces a service failure that carried no message.
const GenericFailureMessage = "Failed to review code"

var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("review not found")
	ErrNoResult   = errors.New("no completed review to export")
	ErrBusy       = errors.New("a review is already in progress")
)

// ValidationError is a precondition failure detected before any network call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// Is makes errors.Is(err, ErrValidation) hold for every ValidationError.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// ServiceFailure is a failed remote call or a structured failure reported by
// the service. Message is shown to the user as-is.
type ServiceFailure struct {
	Op      string
	Message string
	Err     error
}

// NewServiceFailure builds a ServiceFailure, substituting fallback when msg is empty.
func NewServiceFailure(op, msg, fallback string, err error) *ServiceFailure {
	if msg == "" {
		msg = fallback
	}
	if msg == "" {
		msg = GenericFailureMessage
	}
	return &ServiceFailure{Op: op, Message: msg, Err: err}
}

func (e *ServiceFailure) Error() string { return e.Message }

func (e *ServiceFailure) Unwrap() error { return e.Err }

// IsServiceFailure reports whether err is or wraps a ServiceFailure.
func IsServiceFailure(err error) bool {
	var sf *ServiceFailure
	return errors.As(err, &sf)
}
