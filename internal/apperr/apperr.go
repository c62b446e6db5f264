// Package apperr defines the application-wide error-kind taxonomy used by
// every core package to classify failures in a way callers can branch on
// without parsing message strings.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies the nature of a failure.
type Kind string

const (
	NotFound                   Kind = "not_found"
	AlreadyExists              Kind = "already_exists"
	PermissionDenied           Kind = "permission_denied"
	IoFailure                  Kind = "io_failure"
	DatabaseFailure            Kind = "database_failure"
	InvalidArgument            Kind = "invalid_argument"
	ExternalServiceUnavailable Kind = "external_service_unavailable"
	ExternalServiceRejected    Kind = "external_service_rejected"
	Cancelled                  Kind = "cancelled"
	Conflict                   Kind = "conflict"
	Timeout                    Kind = "timeout"
	Internal                   Kind = "internal"
)

// Error is the concrete error type returned by core packages.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New creates an *Error with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates an *Error carrying cause as its Unwrap target.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Is reports whether err carries the given Kind, anywhere in its chain.
func Is(err error, kind Kind) bool {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind == kind
	}
	return false
}

// KindOf extracts the Kind of err, defaulting to Internal if err is not
// (or does not wrap) an *Error.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return Internal
}
