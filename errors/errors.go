// Package errors provides error handling for vacancy.
//
// This package re-exports github.com/cockroachdb/errors, providing:
//   - Stack traces for debugging
//   - Error wrapping and context
//   - PII-safe error formatting
//
// On top of that it defines the job board's error taxonomy as sentinels.
// Wrap a sentinel to add context; callers classify with errors.Is:
//
//	if errors.Is(err, errors.ErrDuplicateApplication) {
//	    // user already applied
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
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
)

// User-facing messages and details
var (
	WithHint        = crdb.WithHint
	WithHintf       = crdb.WithHintf
	WithDetail      = crdb.WithDetail
	WithDetailf     = crdb.WithDetailf
	WithSafeDetails = crdb.WithSafeDetails
)

// Error inspection
var (
	Is             = crdb.Is
	IsAny          = crdb.IsAny
	As             = crdb.As
	Unwrap         = crdb.Unwrap
	UnwrapAll      = crdb.UnwrapAll
	GetAllHints    = crdb.GetAllHints
	GetAllDetails  = crdb.GetAllDetails
	FlattenHints   = crdb.FlattenHints
	FlattenDetails = crdb.FlattenDetails
)

// Job board error taxonomy.
var (
	// ErrValidation indicates bad input shape or range (user-correctable)
	ErrValidation = New("validation failed")

	// ErrAuthorization indicates the caller lacks rights over the target entity
	ErrAuthorization = New("not authorized")

	// ErrNotFound indicates the requested resource does not exist or is not visible
	ErrNotFound = New("not found")

	// ErrNotEligible indicates the caller or target state precludes the operation
	ErrNotEligible = New("not eligible")

	// ErrDuplicateApplication indicates a uniqueness rule was hit
	ErrDuplicateApplication = New("already applied to this job")

	// ErrAuthenticity indicates a signature or verification failure
	ErrAuthenticity = New("event authenticity check failed")

	// ErrCorrelation indicates a payment event without a usable correlation id
	ErrCorrelation = New("event correlation failed")

	// ErrReconciliation indicates a payment event that maps to no known or matching entity
	ErrReconciliation = New("event reconciliation failed")

	// ErrConfiguration indicates an internal misconfiguration (e.g. missing price tier)
	ErrConfiguration = New("configuration error")

	// ErrAdmissionDenied indicates the admission gate rejected the request
	ErrAdmissionDenied = New("forbidden")

	// ErrConflict indicates a generic resource conflict (e.g., duplicate key)
	ErrConflict = New("resource conflict")
)

// taxonomy is ordered; Kind returns the first match.
var taxonomy = []struct {
	kind string
	err  error
}{
	{"validation", ErrValidation},
	{"authorization", ErrAuthorization},
	{"not_found", ErrNotFound},
	{"not_eligible", ErrNotEligible},
	{"duplicate_application", ErrDuplicateApplication},
	{"authenticity", ErrAuthenticity},
	{"correlation", ErrCorrelation},
	{"reconciliation", ErrReconciliation},
	{"configuration", ErrConfiguration},
	{"admission_denied", ErrAdmissionDenied},
	{"conflict", ErrConflict},
}

// Kind names the taxonomy kind of err for structured logging.
// Returns "internal" for errors outside the taxonomy and "" for nil.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, t := range taxonomy {
		if Is(err, t.err) {
			return t.kind
		}
	}
	return "internal"
}

func mark(sentinel error, format string, args ...interface{}) error {
	return Wrap(sentinel, Newf(format, args...).Error())
}

// NewValidationError creates a validation error with a formatted message
func NewValidationError(format string, args ...interface{}) error {
	return mark(ErrValidation, format, args...)
}

// NewAuthorizationError creates an authorization error with a formatted message
func NewAuthorizationError(format string, args ...interface{}) error {
	return mark(ErrAuthorization, format, args...)
}

// NewNotFoundError creates a not-found error with a formatted message
func NewNotFoundError(format string, args ...interface{}) error {
	return mark(ErrNotFound, format, args...)
}

// NewNotEligibleError creates a not-eligible error with a formatted message
func NewNotEligibleError(format string, args ...interface{}) error {
	return mark(ErrNotEligible, format, args...)
}

// NewDuplicateApplicationError creates a duplicate-application error with a formatted message
func NewDuplicateApplicationError(format string, args ...interface{}) error {
	return mark(ErrDuplicateApplication, format, args...)
}

// NewCorrelationError creates a correlation error with a formatted message
func NewCorrelationError(format string, args ...interface{}) error {
	return mark(ErrCorrelation, format, args...)
}

// NewReconciliationError creates a reconciliation error with a formatted message
func NewReconciliationError(format string, args ...interface{}) error {
	return mark(ErrReconciliation, format, args...)
}

// NewConfigurationError creates a configuration error with a formatted message
func NewConfigurationError(format string, args ...interface{}) error {
	return mark(ErrConfiguration, format, args...)
}

// WrapAuthenticity marks a verification failure as an authenticity error, keeping the cause
func WrapAuthenticity(err error) error {
	return WithSecondaryError(ErrAuthenticity, err)
}

// WithSecondaryError attaches a secondary cause without changing the primary error's identity
var WithSecondaryError = crdb.WithSecondaryError

// IsNotFoundError checks if an error is or wraps ErrNotFound.
func IsNotFoundError(err error) bool {
	return err != nil && Is(err, ErrNotFound)
}

// IsValidationError checks if an error is or wraps ErrValidation
func IsValidationError(err error) bool {
	return err != nil && Is(err, ErrValidation)
}

// IsAdmissionDenied checks if an error is or wraps ErrAdmissionDenied
func IsAdmissionDenied(err error) bool {
	return err != nil && Is(err, ErrAdmissionDenied)
}
