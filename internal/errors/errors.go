package errors

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for common error conditions
var (
	// ErrNotReady is returned when a query arrives before any snapshot has been published
	ErrNotReady = errors.New("index not ready")

	// ErrPackageNotFound is returned when a package is not in the document store
	ErrPackageNotFound = errors.New("package not found")

	// ErrJobNotFound is returned when a job is not found
	ErrJobNotFound = errors.New("job not found")

	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")
)

// NotReadyError carries how long the controller has been waiting for its first snapshot.
type NotReadyError struct {
	Since time.Time
}

func (e *NotReadyError) Error() string {
	if e.Since.IsZero() {
		return "index not ready: no snapshot has been published yet"
	}
	return fmt.Sprintf("index not ready: no snapshot published since %s", e.Since.UTC().Format(time.RFC3339))
}

func (e *NotReadyError) Is(target error) bool {
	return target == ErrNotReady
}

// NewNotReadyError creates a new NotReadyError
func NewNotReadyError(since time.Time) *NotReadyError {
	return &NotReadyError{Since: since}
}

// PackageNotFoundError represents a package not found error with context
type PackageNotFoundError struct {
	Name string
}

func (e *PackageNotFoundError) Error() string {
	return fmt.Sprintf("package '%s' not found", e.Name)
}

func (e *PackageNotFoundError) Is(target error) bool {
	return target == ErrPackageNotFound
}

// NewPackageNotFoundError creates a new PackageNotFoundError
func NewPackageNotFoundError(name string) *PackageNotFoundError {
	return &PackageNotFoundError{Name: name}
}

// JobNotFoundError represents a job not found error with context
type JobNotFoundError struct {
	JobID string
}

func (e *JobNotFoundError) Error() string {
	return fmt.Sprintf("job with ID '%s' not found", e.JobID)
}

func (e *JobNotFoundError) Is(target error) bool {
	return target == ErrJobNotFound
}

// NewJobNotFoundError creates a new JobNotFoundError
func NewJobNotFoundError(jobID string) *JobNotFoundError {
	return &JobNotFoundError{JobID: jobID}
}

// ValidationError represents an input validation error with context
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}
