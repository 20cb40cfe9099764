package errors

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrorCategory represents different categories of errors
type ErrorCategory string

const (
	CategoryValidation    ErrorCategory = "validation"
	CategoryIllegalState  ErrorCategory = "illegal_state"
	CategoryNotFound      ErrorCategory = "not_found"
	CategoryInvariant     ErrorCategory = "invariant"
	CategoryConcurrency   ErrorCategory = "concurrency"
	CategoryStorage       ErrorCategory = "storage"
	CategoryConfiguration ErrorCategory = "configuration"
)

// ErrorCode represents specific error codes within categories
type ErrorCode string

const (
	// Validation errors
	CodeMissingField   ErrorCode = "missing_field"
	CodeInvalidAmount  ErrorCode = "invalid_amount"
	CodeInvalidDate    ErrorCode = "invalid_date"
	CodeInvalidFormula ErrorCode = "invalid_formula"

	// Illegal state errors
	CodeNotDraft        ErrorCode = "not_draft"
	CodeNotPosted       ErrorCode = "not_posted"
	CodeAlreadyComplete ErrorCode = "already_complete"
	CodeUnmatchedItems  ErrorCode = "unmatched_items"
	CodeAlreadyMatched  ErrorCode = "already_matched"

	// Not found errors
	CodeEntityNotFound ErrorCode = "entity_not_found"

	// Invariant errors
	CodeUnbalancedJournal ErrorCode = "unbalanced_journal"

	// Concurrency errors
	CodeLockContention ErrorCode = "lock_contention"

	// Storage errors
	CodeStorageFailure ErrorCode = "storage_failure"

	// Configuration errors
	CodeInvalidConfig ErrorCode = "invalid_config"
)

// LedgerError is the base error type for all engine errors
type LedgerError struct {
	Category   ErrorCategory     `json:"category"`
	Code       ErrorCode         `json:"code"`
	Message    string            `json:"message"`
	Context    Context           `json:"context,omitempty"`
	Cause      error             `json:"-"`
	StackTrace errors.StackTrace `json:"-"`
}

// Context provides additional information about the error
type Context map[string]interface{}

// Error implements the error interface
func (e *LedgerError) Error() string {
	return e.Message
}

// Unwrap returns the underlying cause error
func (e *LedgerError) Unwrap() error {
	return e.Cause
}

// WithContext adds context information to the error
func (e *LedgerError) WithContext(key string, value interface{}) *LedgerError {
	if e.Context == nil {
		e.Context = make(Context)
	}
	e.Context[key] = value
	return e
}

// New creates a new LedgerError
func New(category ErrorCategory, code ErrorCode, message string) *LedgerError {
	return &LedgerError{
		Category:   category,
		Code:       code,
		Message:    message,
		StackTrace: errors.New("").(stackTracer).StackTrace(),
	}
}

// Wrap wraps an existing error with LedgerError context
func Wrap(err error, category ErrorCategory, code ErrorCode, message string) *LedgerError {
	if err == nil {
		return nil
	}

	return &LedgerError{
		Category:   category,
		Code:       code,
		Message:    message,
		Cause:      err,
		StackTrace: errors.WithStack(err).(stackTracer).StackTrace(),
	}
}

// stackTracer interface for extracting stack traces
type stackTracer interface {
	StackTrace() errors.StackTrace
}

// Specific error constructors

// ValidationError rejects malformed input before any mutation happens.
func ValidationError(code ErrorCode, field string, value interface{}) *LedgerError {
	return New(CategoryValidation, code, fmt.Sprintf("invalid value for '%s': %v", field, value)).
		WithContext("field", field).
		WithContext("value", value)
}

// ValidationErrorf creates a validation error with a custom message.
func ValidationErrorf(code ErrorCode, format string, args ...interface{}) *LedgerError {
	return New(CategoryValidation, code, fmt.Sprintf(format, args...))
}

// IllegalStateError rejects a lifecycle transition that is not permitted
// from the entity's current state. No partial effect survives.
func IllegalStateError(code ErrorCode, format string, args ...interface{}) *LedgerError {
	return New(CategoryIllegalState, code, fmt.Sprintf(format, args...))
}

// NotFoundError reports an unknown identifier.
func NotFoundError(entity string, id interface{}) *LedgerError {
	return New(CategoryNotFound, CodeEntityNotFound,
		fmt.Sprintf("%s not found with id: %v", entity, id)).
		WithContext("entity", entity).
		WithContext("id", id)
}

// InvariantViolation reports a broken accounting invariant. The enclosing
// unit of work must abort; nothing is persisted.
func InvariantViolation(code ErrorCode, format string, args ...interface{}) *LedgerError {
	return New(CategoryInvariant, code, fmt.Sprintf(format, args...))
}

// ConcurrencyError reports sequence-lock contention. The caller must retry
// the whole operation from scratch.
func ConcurrencyError(err error, seqType string, year int) *LedgerError {
	return Wrap(err, CategoryConcurrency, CodeLockContention,
		fmt.Sprintf("could not acquire sequence lock for (%s, %d)", seqType, year)).
		WithContext("sequence_type", seqType).
		WithContext("year", year)
}

// StorageError wraps an unexpected failure from the persistence layer.
func StorageError(err error, operation string) *LedgerError {
	return Wrap(err, CategoryStorage, CodeStorageFailure,
		fmt.Sprintf("storage failure during %s", operation)).
		WithContext("operation", operation)
}

// ConfigurationError reports invalid runtime configuration.
func ConfigurationError(setting string, value interface{}) *LedgerError {
	return New(CategoryConfiguration, CodeInvalidConfig,
		fmt.Sprintf("invalid configuration for '%s': %v", setting, value)).
		WithContext("setting", setting).
		WithContext("value", value)
}

// Category predicates

// IsCategory checks whether err carries the given category.
func IsCategory(err error, category ErrorCategory) bool {
	ledgerErr, ok := AsLedgerError(err)
	return ok && ledgerErr.Category == category
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool { return IsCategory(err, CategoryValidation) }

// IsIllegalState reports whether err is an illegal-state error.
func IsIllegalState(err error) bool { return IsCategory(err, CategoryIllegalState) }

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool { return IsCategory(err, CategoryNotFound) }

// IsInvariantViolation reports whether err is an invariant violation.
func IsInvariantViolation(err error) bool { return IsCategory(err, CategoryInvariant) }

// IsConcurrency reports whether err is a concurrency-contention error.
func IsConcurrency(err error) bool { return IsCategory(err, CategoryConcurrency) }

// AsLedgerError extracts a LedgerError from an error chain
func AsLedgerError(err error) (*LedgerError, bool) {
	var ledgerErr *LedgerError
	if errors.As(err, &ledgerErr) {
		return ledgerErr, true
	}
	return nil, false
}

// WrapIfNeeded wraps an error if it's not already a LedgerError
func WrapIfNeeded(err error, category ErrorCategory, code ErrorCode, message string) *LedgerError {
	if err == nil {
		return nil
	}

	if ledgerErr, ok := AsLedgerError(err); ok {
		return ledgerErr
	}

	return Wrap(err, category, code, message)
}
