// Package errors provides error handling for warden.
//
// This package re-exports github.com/cockroachdb/errors, providing:
//   - Stack traces for debugging
//   - Error wrapping and context
//   - PII-safe error formatting
//   - Network portability for distributed systems
//
// Usage:
//
//	// Create new error
//	err := errors.New("something went wrong")
//
//	// Wrap with context
//	if err := doSomething(); err != nil {
//	    return errors.Wrap(err, "failed to do something")
//	}
//
//	// Add hints for users
//	return errors.WithHint(err, "run 'warden start' first")
//
//	// Check errors
//	if errors.Is(err, errors.ErrJobNotFound) {
//	    // handle missing job
//	}
//
// For full documentation see: https://pkg.go.dev/github.com/cockroachdb/errors
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	Mark         = crdb.Mark
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
)

// User-facing messages and details
var (
	WithHint           = crdb.WithHint
	WithHintf          = crdb.WithHintf
	WithDetail         = crdb.WithDetail
	WithDetailf        = crdb.WithDetailf
	WithSafeDetails    = crdb.WithSafeDetails
	WithSecondaryError = crdb.WithSecondaryError
)

// Error inspection
var (
	Is             = crdb.Is
	IsAny          = crdb.IsAny
	As             = crdb.As
	Unwrap         = crdb.Unwrap
	UnwrapOnce     = crdb.UnwrapOnce
	UnwrapAll      = crdb.UnwrapAll
	GetAllHints    = crdb.GetAllHints
	GetAllDetails  = crdb.GetAllDetails
	FlattenHints   = crdb.FlattenHints
	FlattenDetails = crdb.FlattenDetails

	GetReportableStackTrace = crdb.GetReportableStackTrace
)

// GetStack is an alias for GetReportableStackTrace for convenience.
var GetStack = crdb.GetReportableStackTrace

// Assertions and panics
var (
	AssertionFailedf                 = crdb.AssertionFailedf
	NewAssertionErrorWithWrappedErrf = crdb.NewAssertionErrorWithWrappedErrf
)

// Common sentinel errors for use across warden.
// Use these with errors.Is() for type-safe error checking.
// Wrap these with errors.Wrap() to add context while preserving the type.
var (
	// ErrNotFound indicates the requested resource does not exist
	ErrNotFound = New("not found")

	// ErrJobNotFound indicates a job lookup failed (unknown id, number,
	// name pattern, or process id)
	ErrJobNotFound = Wrap(ErrNotFound, "job")

	// ErrScalarNotFound indicates a requested scalar name was never reported
	ErrScalarNotFound = Wrap(ErrNotFound, "scalar")

	// ErrInvalidRequest indicates the request was malformed or invalid
	ErrInvalidRequest = New("invalid request")

	// ErrUnauthorized indicates authentication was rejected after exhausting
	// token-refresh retries
	ErrUnauthorized = New("unauthorized")

	// ErrTransient indicates a network or server failure that the caller may
	// retry; it is propagated no further than the invoking notifier
	ErrTransient = New("transient network error")

	// ErrConditionInvalid indicates a condition registration was rejected
	// (arity mismatch, empty scalar list, or malformed expression)
	ErrConditionInvalid = New("invalid condition")

	// ErrExecutableNotFound indicates a referenced script file could not be
	// resolved to an existing path
	ErrExecutableNotFound = New("executable not found")

	// ErrAlreadyExists indicates a resource conflict (e.g., duplicate notifier name)
	ErrAlreadyExists = New("already exists")

	// ErrAgentNotRunning indicates the daemon could not be reached
	ErrAgentNotRunning = New("agent not running")

	// ErrTimeout indicates an operation timed out
	ErrTimeout = New("operation timed out")
)

// IsNotFoundError checks if an error is or wraps ErrNotFound.
// Also provides backward compatibility with string-based "not found" errors.
func IsNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	// Check if error is or wraps our sentinel error
	if Is(err, ErrNotFound) {
		return true
	}
	// Backward compatibility: check error message
	errMsg := err.Error()
	return len(errMsg) >= 9 && (errMsg == "not found" ||
		errMsg[len(errMsg)-9:] == "not found" ||
		len(errMsg) > 10 && errMsg[:10] == "not found:")
}

// IsJobNotFoundError checks if an error is or wraps ErrJobNotFound
func IsJobNotFoundError(err error) bool {
	return err != nil && Is(err, ErrJobNotFound)
}

// IsScalarNotFoundError checks if an error is or wraps ErrScalarNotFound
func IsScalarNotFoundError(err error) bool {
	return err != nil && Is(err, ErrScalarNotFound)
}

// IsUnauthorizedError checks if an error is or wraps ErrUnauthorized
func IsUnauthorizedError(err error) bool {
	return err != nil && Is(err, ErrUnauthorized)
}

// IsTransientError checks if an error is or wraps ErrTransient
func IsTransientError(err error) bool {
	return err != nil && Is(err, ErrTransient)
}

// IsInvalidRequestError checks if an error is or wraps ErrInvalidRequest
func IsInvalidRequestError(err error) bool {
	return err != nil && Is(err, ErrInvalidRequest)
}

// WrapJobNotFound wraps an error as a job-not-found error with context
func WrapJobNotFound(err error, context string) error {
	return Wrap(Wrap(ErrJobNotFound, err.Error()), context)
}

// NewJobNotFoundError creates a job-not-found error with a formatted message
func NewJobNotFoundError(format string, args ...interface{}) error {
	return Wrap(ErrJobNotFound, Newf(format, args...).Error())
}

// NewScalarNotFoundError creates a scalar-not-found error naming the scalar
func NewScalarNotFoundError(name string) error {
	return Wrap(ErrScalarNotFound, Newf("no scalar reported with name %q", name).Error())
}

// NewConditionError creates a condition-registration error with a formatted message
func NewConditionError(format string, args ...interface{}) error {
	return Wrap(ErrConditionInvalid, Newf(format, args...).Error())
}

// NewInvalidRequestError creates an invalid-request error with a formatted message
func NewInvalidRequestError(format string, args ...interface{}) error {
	return Wrap(ErrInvalidRequest, Newf(format, args...).Error())
}
