// Package services defines the business logic for trackpoint ingestion,
// datalogger resolution, and track reconstruction. This file centralizes the
// service-level error taxonomy so that service methods return consistent
// values and callers can branch on them with errors.Is.
//
// Translation into user-facing messages or HTTP status codes is performed at
// the handler layer.
package services

import (
	"errors"
	"fmt"
)

// Error kinds.
var (
	// ErrValidation marks input that cannot be turned into a trackpoint or a
	// query (bad timestamp, bad coordinates, malformed time window).
	ErrValidation = errors.New("validation failed")

	// ErrConflict marks a write that lost a uniqueness race.
	ErrConflict = errors.New("conflict")

	// ErrNotFound marks a lookup for an entity that does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDependency marks a failure of the store or the message bus.
	ErrDependency = errors.New("dependency failure")
)

// Specific errors. Each wraps one of the kinds above.
var (
	// ErrInvalidTimestamp is returned when the payload has no usable "tst".
	ErrInvalidTimestamp = fmt.Errorf("%w: invalid or missing timestamp", ErrValidation)

	// ErrInvalidCoordinates is returned when "lat" or "lon" is missing,
	// non-numeric, or out of range.
	ErrInvalidCoordinates = fmt.Errorf("%w: invalid or missing coordinates", ErrValidation)

	// ErrDeviceNotFound is returned when a datalogger has never stored a trackpoint.
	ErrDeviceNotFound = fmt.Errorf("%w: datalogger has no trackpoints", ErrNotFound)
)

// DependencyError reports a failed call to an external dependency.
type DependencyError struct {
	Op  string
	Err error
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying cause.
func (e *DependencyError) Unwrap() error { return e.Err }

// Is makes every DependencyError match ErrDependency.
func (e *DependencyError) Is(target error) bool { return target == ErrDependency }

func depErr(op string, err error) error {
	return &DependencyError{Op: op, Err: err}
}
