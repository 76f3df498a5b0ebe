/*
errors.go - Centralized error types for the time-tracking engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers (API handlers, admin tools) classify errors with the helper
  predicates and render the matching HTTP status or UI message.

ERROR CATEGORIES:
  1. Conflict errors      - clock-in while already clocked in
  2. Not-found errors     - no open segment / unknown entry or employee
  3. Validation errors    - malformed input, out-of-order timestamps
  4. Precondition errors  - payout toggle on a still-open segment

USAGE:
  if engine.IsConflict(err) {
      // offer "clock out instead?" to the terminal user
  }

SEE ALSO:
  - lifecycle.go:  Produces conflict and not-found errors
  - correction.go: Produces validation and not-found errors
  - payout.go:     Produces precondition errors
*/
package engine

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrAlreadyClockedIn is returned when an employee with an open segment
	// attempts another clock-in. Expected under duplicate RFID scans.
	ErrAlreadyClockedIn = errors.New("employee is already clocked in")

	// ErrNoOpenEntry is returned when a clock-out finds no open segment.
	ErrNoOpenEntry = errors.New("no open time entry for employee")

	// ErrEntryNotFound is returned when a correction or payout references
	// an entry id with no matching record.
	ErrEntryNotFound = errors.New("time entry not found")

	// ErrEmployeeNotFound is returned when an employee id or RFID tag does
	// not resolve to a known employee.
	ErrEmployeeNotFound = errors.New("employee not found")

	// ErrEntryStillOpen is returned when a payout toggle targets a segment
	// that has not been clocked out yet.
	ErrEntryStillOpen = errors.New("time entry is still open")

	// ErrInvalidInput is the root of all validation failures.
	ErrInvalidInput = errors.New("invalid input")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ConflictError reports a clock-in attempt against an existing open segment.
// The open entry is attached so the caller can offer a clock-out instead.
type ConflictError struct {
	EmployeeID EmployeeID
	OpenEntry  *TimeEntry
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("employee %s is already clocked in since %s",
		e.EmployeeID, e.OpenEntry.ClockIn.Format("2006-01-02 15:04"))
}

func (e *ConflictError) Unwrap() error { return ErrAlreadyClockedIn }

// NotFoundError reports a missing employee, entry, or open segment.
type NotFoundError struct {
	Resource string // "employee", "time entry", "open time entry"
	ID       string
	wrapped  error
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s not found", e.Resource)
	}
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

func (e *NotFoundError) Unwrap() error { return e.wrapped }

func newEntryNotFound(id EntryID) *NotFoundError {
	return &NotFoundError{Resource: "time entry", ID: string(id), wrapped: ErrEntryNotFound}
}

func newEmployeeNotFound(id string) *NotFoundError {
	return &NotFoundError{Resource: "employee", ID: id, wrapped: ErrEmployeeNotFound}
}

func newNoOpenEntry(id EmployeeID) *NotFoundError {
	return &NotFoundError{Resource: "open time entry for employee", ID: string(id), wrapped: ErrNoOpenEntry}
}

// FieldError is one field-level validation failure, specific enough for a
// correction UI to highlight the offending input.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError aggregates field-level failures for one operation.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ": " + f.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

// Add appends a field failure and returns the error for chaining.
func (e *ValidationError) Add(field, message string) *ValidationError {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
	return e
}

// Err returns nil when no field failed, the error otherwise.
func (e *ValidationError) Err() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// PreconditionError reports an operation applied to an entry in the wrong
// state, currently only payout toggles on open segments.
type PreconditionError struct {
	EntryID EntryID
	Reason  string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("entry %s: %s", e.EntryID, e.Reason)
}

func (e *PreconditionError) Unwrap() error { return ErrEntryStillOpen }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsConflict reports an "already in this state" failure, distinct from
// not-found so the UI can render the right corrective action.
func IsConflict(err error) bool {
	return errors.Is(err, ErrAlreadyClockedIn)
}

// IsNotFound reports a missing employee, entry, or open segment.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrEntryNotFound) ||
		errors.Is(err, ErrEmployeeNotFound) ||
		errors.Is(err, ErrNoOpenEntry)
}

// IsValidation reports malformed or out-of-order input.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsPrecondition reports an operation on an entry in the wrong state.
func IsPrecondition(err error) bool {
	return errors.Is(err, ErrEntryStillOpen)
}
