// Package apperr defines the error taxonomy shared by the approval service,
// its HTTP client and the view controller.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for callers that must react differently to it.
type Kind string

const (
	KindValidation   Kind = "VALIDATION_ERROR"
	KindInvalidState Kind = "INVALID_STATE"
	KindNotFound     Kind = "NOT_FOUND"
	KindService      Kind = "SERVICE_ERROR"
	KindNetwork      Kind = "NETWORK_ERROR"
)

// Error carries a Kind plus the field that failed validation, if any.
type Error struct {
	Kind    Kind
	Field   string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Validation reports bad input on field.
func Validation(field, message string) *Error {
	return &Error{Kind: KindValidation, Field: field, Message: message}
}

// InvalidState reports an action on a request that is no longer pending.
func InvalidState(id, status string) *Error {
	return &Error{Kind: KindInvalidState, Message: fmt.Sprintf("approval request %s is already %s", id, status)}
}

func NotFound(id string) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("approval request %s not found", id)}
}

// Service wraps a failure of the backing store.
func Service(message string, err error) *Error {
	return &Error{Kind: KindService, Message: message, Err: err}
}

// Network wraps a failure to reach the approval service.
func Network(err error) *Error {
	return &Error{Kind: KindNetwork, Message: "approval service unreachable", Err: err}
}

// New builds an error of an arbitrary kind, used when decoding remote errors.
func New(kind Kind, field, message string) *Error {
	return &Error{Kind: kind, Field: field, Message: message}
}

// KindOf returns the kind of err, defaulting to KindService for foreign errors.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindService
}

// Is reports whether err has the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// FieldOf returns the offending field of a validation error.
func FieldOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Field
	}
	return ""
}

// MessageOf returns the caller-facing message of err without the wrapped
// cause. Foreign errors get a generic message.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return "Failed to process request"
}
