// Package apperror provides structured error handling for sync jobs.
// Record-level errors carry a code that decides how the reconciler reports them.
package apperror

import (
	"context"
	"errors"
	"fmt"
)

// Error codes
const (
	// Infrastructure errors
	CodeInternal     = "INTERNAL_ERROR"
	CodeDatabase     = "DATABASE_ERROR"
	CodeConnectivity = "CONNECTIVITY_ERROR"

	// Validation errors
	CodeValidation = "VALIDATION_ERROR"

	// Record-level outcomes
	CodeMissingKey    = "MISSING_KEY"
	CodeNotFound      = "NOT_FOUND"
	CodeUnmappedCode  = "UNMAPPED_CODE"
	CodeWriteRejected = "WRITE_REJECTED"
	CodeSkip          = "SKIPPED"
)

// AppError is the standard error type for the sync jobs.
type AppError struct {
	// Code is a machine-readable error identifier
	Code string `json:"code"`

	// Message is a human-readable error description
	Message string `json:"message"`

	// Details contains additional context (entity, code, remote fault)
	Details map[string]any `json:"details,omitempty"`

	// Skip downgrades the error to a Skipped outcome
	Skip bool `json:"-"`

	// Err is the underlying error
	Err error `json:"-"`
}

// Error implements error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail adds a key-value pair to error details
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause sets the underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Err = err
	return e
}

// AsSkip marks the error as a non-failure: the record is reported as Skipped.
func (e *AppError) AsSkip() *AppError {
	e.Skip = true
	return e
}

// --- Factory functions ---

// NewMissingKey is returned when a source record has no usable natural key.
func NewMissingKey() *AppError {
	return &AppError{
		Code:    CodeMissingKey,
		Message: "missing key",
		Skip:    true,
	}
}

// NewNotFound creates a not found error for a referenced record.
func NewNotFound(entity string, id any) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s %v not found", entity, id),
		Details: map[string]any{"entity": entity, "id": id},
	}
}

// NewUnmappedCode is returned when a source code has no entry in a code table.
func NewUnmappedCode(table, code string) *AppError {
	return &AppError{
		Code:    CodeUnmappedCode,
		Message: fmt.Sprintf("code %q is not mapped in table %s", code, table),
		Details: map[string]any{"table": table, "code": code},
	}
}

// NewWriteRejected wraps a create/write/unlink refused by the directory.
func NewWriteRejected(kind string, err error) *AppError {
	return &AppError{
		Code:    CodeWriteRejected,
		Message: fmt.Sprintf("%s write rejected", kind),
		Details: map[string]any{"kind": kind},
		Err:     err,
	}
}

// NewConnectivity marks an unreachable store. It aborts the running batch.
func NewConnectivity(system string, err error) *AppError {
	return &AppError{
		Code:    CodeConnectivity,
		Message: fmt.Sprintf("%s unreachable", system),
		Details: map[string]any{"system": system},
		Err:     err,
	}
}

// NewSkip reports a record that was deliberately left alone.
func NewSkip(reason string) *AppError {
	return &AppError{
		Code:    CodeSkip,
		Message: reason,
		Skip:    true,
	}
}

// NewValidation creates a validation error
func NewValidation(message string) *AppError {
	return &AppError{
		Code:    CodeValidation,
		Message: message,
	}
}

// NewDatabase wraps a catalog store query failure.
func NewDatabase(op string, err error) *AppError {
	return &AppError{
		Code:    CodeDatabase,
		Message: op,
		Err:     err,
	}
}

// NewInternal creates an internal error
func NewInternal(err error) *AppError {
	return &AppError{
		Code:    CodeInternal,
		Message: "Internal error",
		Err:     err,
	}
}

// --- Helper functions ---

// AsAppError extracts AppError from error chain
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// CodeOf returns the error code, CodeInternal for foreign errors and "" for nil.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code
	}
	return CodeInternal
}

// IsNotFound checks if error is CodeNotFound
func IsNotFound(err error) bool {
	return hasCode(err, CodeNotFound)
}

// IsSkip reports whether the error should become a Skipped outcome.
func IsSkip(err error) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Skip
	}
	return false
}

// IsConnectivity reports errors that must abort a batch.
// Context cancellation and deadlines count as connectivity loss.
func IsConnectivity(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return hasCode(err, CodeConnectivity)
}

func hasCode(err error, code string) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == code
	}
	return false
}
