package apperrors

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies an error for the caller-facing boundary
type Kind string

const (
	KindValidation      Kind = "validation"
	KindNotFound        Kind = "not_found"
	KindPermission      Kind = "permission"
	KindStateConflict   Kind = "state_conflict"
	KindExternalService Kind = "external_service"
	KindDataIntegrity   Kind = "data_integrity"
	KindInternal        Kind = "internal"
)

// GenericMessage is what callers see for failures whose details stay internal
const GenericMessage = "service temporarily unavailable, please retry"

// Error is the typed error every service operation returns
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, apperrors.ErrStateConflict) works
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Err == nil && t.Kind == e.Kind
}

// Sentinels for errors.Is comparisons
var (
	ErrValidation      = &Error{Kind: KindValidation}
	ErrNotFound        = &Error{Kind: KindNotFound}
	ErrPermission      = &Error{Kind: KindPermission}
	ErrStateConflict   = &Error{Kind: KindStateConflict}
	ErrExternalService = &Error{Kind: KindExternalService}
	ErrDataIntegrity   = &Error{Kind: KindDataIntegrity}
)

func Validation(format string, args ...any) error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func Permission(format string, args ...any) error {
	return &Error{Kind: KindPermission, Message: fmt.Sprintf(format, args...)}
}

func StateConflict(format string, args ...any) error {
	return &Error{Kind: KindStateConflict, Message: fmt.Sprintf(format, args...)}
}

// External wraps a failure of a moderation, AI, blob or store dependency
func External(service string, err error) error {
	return &Error{Kind: KindExternalService, Message: service + " unavailable", Err: err}
}

// Integrity reports drift detected while reconciling derived data
func Integrity(format string, args ...any) error {
	return &Error{Kind: KindDataIntegrity, Message: fmt.Sprintf(format, args...)}
}

// Internal wraps an unexpected failure (usually the store)
func Internal(op string, err error) error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &Error{Kind: KindExternalService, Message: op + " timed out", Err: err}
	}
	return &Error{Kind: KindInternal, Message: op, Err: err}
}

// KindOf returns the kind of err, KindInternal for untyped errors
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// PublicMessage returns the text that may be shown to a caller
func PublicMessage(err error) string {
	var appErr *Error
	if !errors.As(err, &appErr) {
		return GenericMessage
	}
	switch appErr.Kind {
	case KindValidation, KindNotFound, KindPermission, KindStateConflict:
		return appErr.Message
	default:
		return GenericMessage
	}
}

// Detailed reports whether the error carries internal detail that must be logged, not shown
func Detailed(err error) bool {
	switch KindOf(err) {
	case KindExternalService, KindDataIntegrity, KindInternal:
		return true
	}
	return false
}
