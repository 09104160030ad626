package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory represents the different failure classes of a fetch run
type ErrorCategory string

const (
	// Input errors abort the whole run before any job is created
	ErrorCategoryInput ErrorCategory = "INPUT"

	// Per-job errors, isolated to the job that produced them
	ErrorCategoryNotFound     ErrorCategory = "NOT_FOUND"
	ErrorCategoryTransfer     ErrorCategory = "TRANSFER"
	ErrorCategoryVerification ErrorCategory = "VERIFICATION"

	// Degradation errors: the run continues on a fallback path
	ErrorCategoryCache ErrorCategory = "CACHE"
	ErrorCategoryMerge ErrorCategory = "MERGE"
)

// FetchError represents a categorized error with component and operation context
type FetchError struct {
	Category   ErrorCategory
	Component  string
	Operation  string
	Message    string
	Underlying error
}

// Error implements the error interface
func (e *FetchError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("[%s:%s] %s: %s: %v", e.Category, e.Component, e.Operation, e.Message, e.Underlying)
	}
	return fmt.Sprintf("[%s:%s] %s: %s", e.Category, e.Component, e.Operation, e.Message)
}

// Unwrap returns the underlying error for error unwrapping
func (e *FetchError) Unwrap() error {
	return e.Underlying
}

// IsFatal reports whether this error should abort the whole run.
// Only caller-input errors are fatal; everything else is recorded per job.
func (e *FetchError) IsFatal() bool {
	return e.Category == ErrorCategoryInput
}

// New creates a new categorized fetch error
func New(category ErrorCategory, component, operation, message string) *FetchError {
	return &FetchError{
		Category:  category,
		Component: component,
		Operation: operation,
		Message:   message,
	}
}

// Wrap wraps an existing error with fetch error context
func Wrap(err error, category ErrorCategory, component, operation string) *FetchError {
	if err == nil {
		return nil
	}
	return &FetchError{
		Category:   category,
		Component:  component,
		Operation:  operation,
		Message:    "operation failed",
		Underlying: err,
	}
}

// Newf creates a new categorized fetch error with a formatted message
func Newf(category ErrorCategory, component, operation, format string, args ...interface{}) *FetchError {
	return New(category, component, operation, fmt.Sprintf(format, args...))
}

// CategoryOf returns the category of err if it is a FetchError, or "" otherwise
func CategoryOf(err error) ErrorCategory {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Category
	}
	return ""
}

// IsInputError reports whether err is a caller-input error
func IsInputError(err error) bool {
	return CategoryOf(err) == ErrorCategoryInput
}

// Common constructors

func NewInputError(component, operation, message string) *FetchError {
	return New(ErrorCategoryInput, component, operation, message)
}

func NewTransferError(component, operation string, err error) *FetchError {
	return Wrap(err, ErrorCategoryTransfer, component, operation)
}

func NewVerificationError(component, operation, message string) *FetchError {
	return New(ErrorCategoryVerification, component, operation, message)
}

func NewCacheError(component, operation string, err error) *FetchError {
	return Wrap(err, ErrorCategoryCache, component, operation)
}

func NewMergeError(component, operation string, err error) *FetchError {
	return Wrap(err, ErrorCategoryMerge, component, operation)
}
