package domain

import (
	"errors"
	"fmt"
)

// ErrorKind is the closed set of error categories a response can carry.
type ErrorKind string

const (
	KindFraming         ErrorKind = "framing_error"
	KindInvalidRequest  ErrorKind = "invalid_request"
	KindDeadlineExpired ErrorKind = "deadline_expired"
	KindInternal        ErrorKind = "internal_error"
	KindDataReload      ErrorKind = "data_reload_failure"
)

// Error is a recoverable domain error.
//
// Kind drives how the error surfaces to clients; Code optionally refines it
// (e.g. the two reload failure severities).
type Error struct {
	Kind    ErrorKind
	Code    string // Optional refinement (e.g., "reload_retained")
	Message string // Human-readable message
	Details string // Optional additional details
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Kind, e.Message)
	if e.Details != "" {
		msg += ": " + e.Details
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches by kind, and by code when the target carries one.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if e.Kind != t.Kind {
		return false
	}
	return t.Code == "" || e.Code == t.Code
}

// NewError creates a new Error with the given kind and message.
func NewError(kind ErrorKind, message string) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *Error) WithDetails(details string) *Error {
	cp := *e
	cp.Details = details
	return &cp
}

// WithDetailsf is WithDetails with formatting.
func (e *Error) WithDetailsf(format string, args ...any) *Error {
	return e.WithDetails(fmt.Sprintf(format, args...))
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *Error) WithCause(cause error) *Error {
	cp := *e
	cp.Cause = cause
	return &cp
}

// IsKind reports whether err is (or wraps) a domain Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind == kind
	}
	return false
}

// KindOf extracts the error kind. Errors outside the taxonomy are reported
// as internal.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// AsError returns the domain Error carried by err, if any.
func AsError(err error) (*Error, bool) {
	var de *Error
	ok := errors.As(err, &de)
	return de, ok
}

// Request handling errors.
var (
	// ErrFraming indicates a malformed multi-frame message.
	ErrFraming = NewError(KindFraming, "malformed multi-frame message")

	// ErrInvalidRequest indicates the payload could not be decoded or validated.
	ErrInvalidRequest = NewError(KindInvalidRequest, "invalid request")

	// ErrUnknownAPI indicates the request names an API this server does not serve.
	ErrUnknownAPI = &Error{Kind: KindInvalidRequest, Code: "unknown_api", Message: "unknown api"}

	// ErrUnknownPlace indicates an entry point that cannot be resolved.
	ErrUnknownPlace = &Error{Kind: KindInvalidRequest, Code: "unknown_place", Message: "unknown place"}

	// ErrDeadlineExpired indicates the request deadline elapsed before the work completed.
	ErrDeadlineExpired = NewError(KindDeadlineExpired, "deadline expired")

	// ErrInternal is the catch-all for recoverable failures during handling.
	ErrInternal = NewError(KindInternal, "internal error")

	// ErrDataNotLoaded indicates no loaded snapshot is available yet.
	ErrDataNotLoaded = &Error{Kind: KindInternal, Code: "data_not_loaded", Message: "data not loaded"}
)

// Reload errors.
var (
	// ErrReloadRetained indicates a reload failed and the previous snapshot stays current.
	ErrReloadRetained = &Error{Kind: KindDataReload, Code: "reload_retained", Message: "data reload failed, previous snapshot retained"}

	// ErrReloadFatal indicates both the primary build and the base-only fallback failed.
	ErrReloadFatal = &Error{Kind: KindDataReload, Code: "reload_fatal", Message: "data reload and fallback rebuild failed"}
)
