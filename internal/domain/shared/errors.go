// Package shared contains the error taxonomy used across canvasinfo packages.
// This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base error kinds that can be checked with errors.Is().
var (
	// ErrConfig marks invalid or missing user settings. Surfaced before any
	// network activity and never retried.
	ErrConfig = errors.New("configuration error")

	// ErrUnauthorized marks credentials rejected by the course data source.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound marks a missing course or an unreachable base URL.
	ErrNotFound = errors.New("not found")

	// ErrConnectivity marks a transport failure talking to the data source.
	ErrConnectivity = errors.New("connectivity error")

	// ErrIO marks a failure writing one output file.
	ErrIO = errors.New("io error")

	// ErrInvalidFormat marks a response or file that could not be decoded.
	ErrInvalidFormat = errors.New("invalid format")
)

// DomainError represents an error with the component and operation that
// produced it.
type DomainError struct {
	Domain  string // e.g. "config", "canvas", "output"
	Op      string // operation that failed, e.g. "Validate", "Course"
	Kind    error  // base error kind for errors.Is() checking
	Message string // human-readable message
	Err     error  // underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Config errors
var (
	ErrMissingAccessToken = NewDomainError("config", "Validate", ErrConfig, "Invalid access token. Please finish the settings")
	ErrMissingBaseURL     = NewDomainError("config", "Validate", ErrConfig, "Invalid base url. Please finish the settings")
	ErrInvalidCourseID    = NewDomainError("config", "Validate", ErrConfig, "Invalid course ID. Please finish the settings")
	ErrNoOutputSelected   = NewDomainError("config", "Validate", ErrConfig, "no output selected")
	ErrNoRepoNameOption   = NewDomainError("config", "Validate", ErrConfig, "no repo name option selected: include the group name and/or member names")
	ErrInvalidMemberOpt   = NewDomainError("config", "Validate", ErrConfig, "invalid member option")
)

// Course data source errors
var (
	ErrAccessTokenInvalid = NewDomainError("canvas", "Request", ErrUnauthorized, "Access Token invalid")
	ErrCourseNotFound     = NewDomainError("canvas", "Course", ErrNotFound, "Non-existing Course ID")
	ErrBaseURLInvalid     = NewDomainError("canvas", "Request", ErrNotFound, "Erroneous Base URL")
)

// IsConfig checks if the error is a configuration error.
func IsConfig(err error) bool {
	return errors.Is(err, ErrConfig)
}

// IsUnauthorized checks if the error is an authentication error.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsIO checks if the error is an output write error.
func IsIO(err error) bool {
	return errors.Is(err, ErrIO)
}

// IsFatal reports whether the export pipeline must halt on err.
// Only per-file IO errors are non-fatal.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	return !IsIO(err)
}
