// Package errors provides a lightweight structured error type (TimingError)
// for category-based classification across the load, controller, fit and
// console boundaries.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory represents the category of a TimingError for classification.
type ErrorCategory string

const (
	// User-facing input and request errors
	CategoryLoad       ErrorCategory = "load"
	CategoryParse      ErrorCategory = "parse"
	CategoryValidation ErrorCategory = "validation"

	// Fit orchestration errors
	CategoryFit ErrorCategory = "fit"

	// Console binding errors
	CategoryStale ErrorCategory = "stale"

	// Runtime and infrastructure errors
	CategoryInternal ErrorCategory = "internal"
)

// ErrorSeverity indicates how critical an error is.
type ErrorSeverity string

const (
	SeverityFatal   ErrorSeverity = "fatal"   // Stops the current operation entirely
	SeverityError   ErrorSeverity = "error"   // Error, but the session survives
	SeverityWarning ErrorSeverity = "warning" // Continues with degraded functionality
)

// TimingError is a structured error with category, severity and context.
type TimingError struct {
	Category ErrorCategory `json:"category"`
	Severity ErrorSeverity `json:"severity"`
	Message  string        `json:"message"`
	Cause    error         `json:"cause,omitempty"`
	Context  ContextFields `json:"context,omitempty"`
}

// ContextFields carries structured context for TimingError.
type ContextFields map[string]any

// Error implements the error interface.
func (e *TimingError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (%s): %s: %v", e.Category, e.Severity, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s (%s): %s", e.Category, e.Severity, e.Message)
}

// Unwrap implements error unwrapping for Go 1.13+ error handling.
func (e *TimingError) Unwrap() error {
	return e.Cause
}

// WithContext adds context information to the error.
func (e *TimingError) WithContext(key string, value any) *TimingError {
	if e.Context == nil {
		e.Context = make(ContextFields)
	}
	e.Context[key] = value
	return e
}

// New creates a new TimingError.
func New(category ErrorCategory, severity ErrorSeverity, message string) *TimingError {
	return &TimingError{
		Category: category,
		Severity: severity,
		Message:  message,
	}
}

// Wrap creates a new TimingError that wraps an existing error.
func Wrap(err error, category ErrorCategory, severity ErrorSeverity, message string) *TimingError {
	return &TimingError{
		Category: category,
		Severity: severity,
		Message:  message,
		Cause:    err,
	}
}

// IsCategory checks if an error belongs to a specific category, unwrapping as needed.
func IsCategory(err error, category ErrorCategory) bool {
	var te *TimingError
	if errors.As(err, &te) {
		return te.Category == category
	}
	return false
}

// GetCategory extracts the category from an error, or returns CategoryInternal
// if it is not a TimingError.
func GetCategory(err error) ErrorCategory {
	var te *TimingError
	if errors.As(err, &te) {
		return te.Category
	}
	return CategoryInternal
}
