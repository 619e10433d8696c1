package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType classifies pipeline errors. The type decides the failure policy:
// per-record types drop the record and continue, batch types abort the run
// before any store mutation, warning types are logged and surfaced but never
// abort.
type ErrorType string

const (
	// Per-record, recoverable.
	ErrTypeCurrencyMismatch ErrorType = "CURRENCY_MISMATCH"
	ErrTypeUnparsableValue  ErrorType = "UNPARSABLE_VALUE"

	// Batch/run fatal.
	ErrTypeNoAssetColumn ErrorType = "NO_ASSET_COLUMN_FOUND"
	ErrTypeStoreRead     ErrorType = "STORE_READ_FAILURE"
	ErrTypeStoreLocked   ErrorType = "STORE_LOCKED"

	// Non-fatal warnings.
	ErrTypePrune    ErrorType = "PRUNE_FAILURE"
	ErrTypeLogWrite ErrorType = "LOG_WRITE_FAILURE"

	// Supporting infrastructure.
	ErrTypeStorage    ErrorType = "STORAGE"
	ErrTypeNetwork    ErrorType = "NETWORK"
	ErrTypeValidation ErrorType = "VALIDATION"
	ErrTypeConfig     ErrorType = "CONFIG"
)

// AppError represents an application-specific error
type AppError struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap allows errors.Is and errors.As to work with AppError
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewAppError creates a new application error
func NewAppError(errType ErrorType, message string, cause error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// IsType reports whether err (or anything it wraps) is an AppError of the
// given type.
func IsType(err error, errType ErrorType) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Type == errType
	}
	return false
}

// TypeOf returns the ErrorType of err, or the empty string when err is not an
// AppError.
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Type
	}
	return ""
}

// Helper functions for common error types

// NewCurrencyMismatchError reports a record whose source currency does not
// match the quote. The record is dropped; the batch continues.
func NewCurrencyMismatchError(name, got, want string) *AppError {
	return NewAppError(ErrTypeCurrencyMismatch,
		fmt.Sprintf("record %q carries currency %s, quote is for %s", name, got, want), nil)
}

// NewUnparsableValueError reports an asset field that yielded no numeric
// substring. The record is dropped; the batch continues.
func NewUnparsableValueError(name, value string) *AppError {
	return NewAppError(ErrTypeUnparsableValue,
		fmt.Sprintf("record %q has no numeric asset value in %q", name, value), nil)
}

// NewNoAssetColumnError reports that zero or more than one column matched the
// asset-figure pattern. Fatal for the run: there is no safe default.
func NewNoAssetColumnError(candidates []string, columns []string) *AppError {
	err := NewAppError(ErrTypeNoAssetColumn,
		fmt.Sprintf("expected exactly one asset column, found %d", len(candidates)), nil)
	err.Context["candidates"] = candidates
	err.Context["columns"] = columns
	return err
}

// NewStoreReadError reports a failed read of an existing store file during a
// merge. Fatal: merging against an unknown prior state risks data integrity.
func NewStoreReadError(path string, cause error) *AppError {
	return NewAppError(ErrTypeStoreRead, fmt.Sprintf("cannot read store file %s", path), cause)
}

// NewStoreLockedError reports a lock acquisition that timed out.
func NewStoreLockedError(path string, cause error) *AppError {
	return NewAppError(ErrTypeStoreLocked, fmt.Sprintf("store file %s is locked by another run", path), cause)
}

// NewPruneError reports a snapshot deletion failure. Non-fatal.
func NewPruneError(path string, cause error) *AppError {
	return NewAppError(ErrTypePrune, fmt.Sprintf("cannot prune snapshot %s", path), cause)
}

// NewLogWriteError reports an execution-log append failure. Non-fatal.
func NewLogWriteError(path string, cause error) *AppError {
	return NewAppError(ErrTypeLogWrite, fmt.Sprintf("cannot append to execution log %s", path), cause)
}

// NewStorageError creates a storage-related error
func NewStorageError(message string, cause error) *AppError {
	return NewAppError(ErrTypeStorage, message, cause)
}

// NewNetworkError creates a network-related error
func NewNetworkError(message string, cause error) *AppError {
	return NewAppError(ErrTypeNetwork, message, cause)
}

// NewValidationError creates a validation error
func NewValidationError(message string, cause error) *AppError {
	return NewAppError(ErrTypeValidation, message, cause)
}

// NewConfigError creates a configuration error
func NewConfigError(message string, cause error) *AppError {
	return NewAppError(ErrTypeConfig, message, cause)
}
