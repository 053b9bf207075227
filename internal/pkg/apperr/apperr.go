// Package apperr defines the error taxonomy shared by services and handlers.
//
// Services return *Error values (or wrap them with fmt.Errorf and %w) so the
// HTTP layer can map a failure to a stable machine category and status code
// without string matching.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the machine-readable category of a failure.
type Kind string

const (
	KindValidation         Kind = "VALIDATION_ERROR"
	KindNotFound           Kind = "NOT_FOUND"
	KindConflict           Kind = "CONFLICT"
	KindStorageUnavailable Kind = "SERVICE_UNAVAILABLE"
	KindUpstreamWrite      Kind = "UPSTREAM_WRITE_ERROR"
	KindPartialBatch       Kind = "PARTIAL_BATCH_FAILURE"
	KindInternal           Kind = "INTERNAL_ERROR"
)

// Error carries a Kind, a human-readable message, and the underlying cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error of the same Kind with no message, so
// errors.Is(err, apperr.NotFound) works across wrapping.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == "" && t.Err == nil
}

// Kind-only targets for errors.Is.
var (
	Validation         = &Error{Kind: KindValidation}
	NotFound           = &Error{Kind: KindNotFound}
	Conflict           = &Error{Kind: KindConflict}
	StorageUnavailable = &Error{Kind: KindStorageUnavailable}
	UpstreamWrite      = &Error{Kind: KindUpstreamWrite}
	PartialBatch       = &Error{Kind: KindPartialBatch}
)

// New builds an *Error without a cause.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an *Error around cause.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: cause}
}

// KindOf returns the Kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// MessageOf returns the human-readable message of the first *Error in err's
// chain, or fallback when err carries none.
func MessageOf(err error, fallback string) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return fallback
}

// HTTPStatus maps a Kind to its response status code.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindStorageUnavailable:
		return http.StatusServiceUnavailable
	case KindUpstreamWrite:
		return http.StatusBadGateway
	case KindPartialBatch:
		return http.StatusMultiStatus
	default:
		return http.StatusInternalServerError
	}
}
