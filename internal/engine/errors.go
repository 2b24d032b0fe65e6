package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/gameledger/internal/model"
)

// Error is returned by every Engine command and query that fails.
//
// Errors fall into five categories:
//   - VALIDATION: a hard invariant would break (subject exclusivity, time
//     range, bad period or formation). Nothing was written.
//   - NOT_FOUND: a referenced game team or event does not exist. A kind of
//     validation failure.
//   - STATE: the command does not fit the current state (wrong period
//     state, player not on the field). State carries what was found.
//   - INTEGRITY_BLOCK: a cascade pre-check refused the delete.
//   - TRANSIENT: storage stayed locked after every retry. Safe to retry.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Op is the command or query that failed, e.g. "startPeriod".
	Op string

	// Message is a human-readable description.
	Message string

	// EventID identifies the event involved, if any.
	EventID string

	// State is the current state that made a STATE error.
	State string

	// Details contains additional context.
	Details map[string]string

	// Err is the underlying cause, if any.
	Err error
}

// ErrorCode categorizes engine errors.
type ErrorCode string

const (
	ErrCodeValidation     ErrorCode = "VALIDATION"
	ErrCodeNotFound       ErrorCode = "NOT_FOUND"
	ErrCodeState          ErrorCode = "STATE"
	ErrCodeIntegrityBlock ErrorCode = "INTEGRITY_BLOCK"
	ErrCodeTransient      ErrorCode = "TRANSIENT"
)

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.State != "" {
		msg += fmt.Sprintf(" (state=%s)", e.State)
	}
	if e.EventID != "" {
		msg += fmt.Sprintf(" (event=%s)", e.EventID)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

func hasCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// IsValidation returns true for VALIDATION and NOT_FOUND errors.
func IsValidation(err error) bool {
	return hasCode(err, ErrCodeValidation) || hasCode(err, ErrCodeNotFound)
}

// IsNotFound returns true if a referenced entity does not exist.
func IsNotFound(err error) bool {
	return hasCode(err, ErrCodeNotFound)
}

// IsState returns true if the command did not fit the current state.
func IsState(err error) bool {
	return hasCode(err, ErrCodeState)
}

// IsIntegrityBlock returns true if a cascade pre-check refused a delete.
func IsIntegrityBlock(err error) bool {
	return hasCode(err, ErrCodeIntegrityBlock)
}

// IsTransient returns true if the storage layer gave up retrying.
func IsTransient(err error) bool {
	return hasCode(err, ErrCodeTransient)
}

// CodeOf returns the error's code, or "" for errors not raised by the engine.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

func validationError(op string, err error) *Error {
	e := &Error{Code: ErrCodeValidation, Op: op, Message: err.Error(), Err: err}
	var fe *model.FieldError
	if errors.As(err, &fe) {
		e.Message = fe.Message
		e.Details = map[string]string{"field": fe.Field}
	}
	return e
}

func invalid(op, format string, args ...any) *Error {
	return &Error{Code: ErrCodeValidation, Op: op, Message: fmt.Sprintf(format, args...)}
}

func notFound(op, kind, id string) *Error {
	return &Error{
		Code:    ErrCodeNotFound,
		Op:      op,
		Message: fmt.Sprintf("%s %s does not exist", kind, id),
		EventID: eventIDIf(kind, id),
		Details: map[string]string{"kind": kind, "id": id},
	}
}

func eventIDIf(kind, id string) string {
	if kind == "event" {
		return id
	}
	return ""
}

func stateError(op, state, format string, args ...any) *Error {
	return &Error{Code: ErrCodeState, Op: op, State: state, Message: fmt.Sprintf(format, args...)}
}

func integrityBlock(op string, r model.DependentEventsResult) *Error {
	return &Error{
		Code:    ErrCodeIntegrityBlock,
		Op:      op,
		Message: r.Warning,
		EventID: r.Event.ID,
		Details: map[string]string{"dependents": fmt.Sprintf("%d", r.Count)},
	}
}

func transientError(op string, err error) *Error {
	return &Error{Code: ErrCodeTransient, Op: op, Message: "storage busy, retry later", Err: err}
}
