package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Guard failures wrap exactly one of these so callers can
// discriminate with errors.Is instead of matching on message text.
var (
	ErrDenied       = errors.New("access denied")
	ErrPrecondition = errors.New("precondition failed")
	ErrConflict     = errors.New("conflict")
	ErrNotFound     = errors.New("not found")
	ErrInvalid      = errors.New("invalid input")
)

// Deniedf builds an AuthorizationDenied error.
func Deniedf(format string, args ...any) error {
	return wrapf(ErrDenied, format, args...)
}

// Preconditionf builds a PreconditionFailed error (wrong status, passed
// deadline).
func Preconditionf(format string, args ...any) error {
	return wrapf(ErrPrecondition, format, args...)
}

// Conflictf builds a Conflict error (duplicate engagement).
func Conflictf(format string, args ...any) error {
	return wrapf(ErrConflict, format, args...)
}

// NotFoundf builds a NotFound error.
func NotFoundf(format string, args ...any) error {
	return wrapf(ErrNotFound, format, args...)
}

// Invalidf builds a ValidationFailed error.
func Invalidf(format string, args ...any) error {
	return wrapf(ErrInvalid, format, args...)
}

func wrapf(kind error, format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), kind)
}

// ErrorCode returns a short machine-readable code for an error kind, for
// presentation layers.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrDenied):
		return "DENIED"
	case errors.Is(err, ErrPrecondition):
		return "PRECONDITION_FAILED"
	case errors.Is(err, ErrConflict):
		return "CONFLICT"
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrInvalid):
		return "INVALID"
	}
	return "ERROR"
}
