package domain

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("resource not found")
	ErrJobNotFound        = errors.New("job not found")
	ErrValidation         = errors.New("validation failed")
	ErrDocumentsNotFound  = errors.New("required documents not found")
	ErrStageInputMissing  = errors.New("stage input artifact missing or malformed")
	ErrTransientExhausted = errors.New("transient failure persisted")
	ErrInvalidTransition  = errors.New("invalid job status transition")
	ErrJobCanceled        = errors.New("job canceled")
	ErrJobTerminal        = errors.New("job already finished")
	ErrTemplateUnreadable = errors.New("form template cannot be opened")
	ErrCapabilityMissing  = errors.New("external capability unavailable")
	ErrUnauthorized       = errors.New("unauthorized")
)

// ValidationError describes a rejected submission. It matches ErrValidation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// NewValidationError creates a ValidationError for the given field.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// StageError carries the retry classification of a stage failure across the
// stage boundary.
type StageError struct {
	Stage StageName
	Kind  ErrorKind
	Err   error
}

func (e *StageError) Error() string {
	if e.Stage == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Transient marks err as retry-worthy.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Kind: ErrorKindTransient, Err: err}
}

// Permanent marks err as not retry-worthy.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Kind: ErrorKindPermanent, Err: err}
}

// KindOf classifies err. Unclassified errors are permanent so an unexpected
// failure can never cause an unbounded retry loop. A deadline exceeded on the
// attempt context is transient.
func KindOf(err error) ErrorKind {
	var se *StageError
	if errors.As(err, &se) && se.Kind != "" {
		return se.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorKindTransient
	}
	return ErrorKindPermanent
}
