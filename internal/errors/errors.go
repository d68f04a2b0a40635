// Package errors provides domain-specific error types and sentinel errors
// for improved error handling across the application.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common scenarios.
// Use errors.Is() to check these errors in your code.
var (
	// ErrNotFound indicates a requested resource was not found.
	ErrNotFound = errors.New("resource not found")

	// ErrRateLimitExceeded indicates rate limit has been exceeded.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")

	// ErrInvalidInput indicates user provided invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrTimeout indicates an operation timed out.
	ErrTimeout = errors.New("operation timed out")

	// ErrUnsupportedFormat indicates an upload that is neither xlsx nor csv.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrEmptyUpload indicates an upload without a single usable record.
	ErrEmptyUpload = errors.New("upload contains no records")

	// ErrCatalogUnavailable indicates the reference catalog could not be loaded.
	ErrCatalogUnavailable = errors.New("reference catalog unavailable")
)

// ValidationError represents input validation failures.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

// NewValidationError creates a new validation error.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// SheetError locates a failure inside an uploaded spreadsheet.
// Row is 1-based as shown by spreadsheet tools; 0 means the whole sheet.
type SheetError struct {
	Sheet string
	Row   int
	Err   error
}

func (e *SheetError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("sheet %q row %d: %v", e.Sheet, e.Row, e.Err)
	}
	return fmt.Sprintf("sheet %q: %v", e.Sheet, e.Err)
}

func (e *SheetError) Unwrap() error {
	return e.Err
}

// NewSheetError creates a new sheet error.
func NewSheetError(sheet string, row int, err error) *SheetError {
	return &SheetError{
		Sheet: sheet,
		Row:   row,
		Err:   err,
	}
}
