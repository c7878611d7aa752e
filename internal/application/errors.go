package application

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Error kinds. Every error returned by the services matches exactly one of these with
// errors.Is, or is a *ValidationError.
var (
	// ErrUnauthenticated is returned when the caller has no valid identity.
	ErrUnauthenticated = errors.New("application: unauthenticated")
	// ErrForbidden is returned when the acting principal lacks permission for an operation.
	ErrForbidden = errors.New("application: forbidden")
	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrInvalidTransition is returned when a task action does not fit its current state.
	ErrInvalidTransition = errors.New("application: invalid transition")
	// ErrConflict is returned when an operation would break a uniqueness or scheduling rule.
	ErrConflict = errors.New("application: conflict")
)

// domainError is a specific failure tagged with one kind.
type domainError struct {
	kind error
	msg  string
}

func (e *domainError) Error() string { return e.msg }

func (e *domainError) Unwrap() error { return e.kind }

func newError(kind error, msg string) error {
	return &domainError{kind: kind, msg: msg}
}

var (
	ErrUserNotFound    = newError(ErrNotFound, "user not found")
	ErrTeamNotFound    = newError(ErrNotFound, "team not found")
	ErrTaskNotFound    = newError(ErrNotFound, "task not found")
	ErrCommentNotFound = newError(ErrNotFound, "comment not found")
	ErrMeetingNotFound = newError(ErrNotFound, "meeting not found")

	ErrNotAssignee        = newError(ErrForbidden, "only the assignee can complete this task")
	ErrAlreadyRegistered  = newError(ErrForbidden, "already registered")
	ErrInvalidCredentials = newError(ErrUnauthenticated, "invalid credentials")
	ErrAccountDisabled    = newError(ErrUnauthenticated, "account disabled")

	ErrNotDone           = newError(ErrInvalidTransition, "task is not done")
	ErrUnassigned        = newError(ErrInvalidTransition, "task has no assignee")
	ErrTaskNotOpened     = newError(ErrInvalidTransition, "task is not open")
	ErrTaskNotInProgress = newError(ErrInvalidTransition, "task is not in progress")

	ErrUserAlreadyOnAnotherTeam = newError(ErrConflict, "user already belongs to another team")
	ErrDuplicateManager         = newError(ErrConflict, "a team can have only one manager")
	ErrDuplicateManagerOnAssign = newError(ErrConflict, "the user's team already has a manager")
	ErrSchedulingConflict       = newError(ErrConflict, "meeting conflicts with another meeting")
	ErrAlreadyEvaluated         = newError(ErrConflict, "task has already been evaluated")
	ErrEmailTaken               = newError(ErrConflict, "email already registered")
	ErrNameTaken                = newError(ErrConflict, "name already taken")
)

// SchedulingConflictError names the meeting time that blocked a new meeting.
type SchedulingConflictError struct {
	MeetingID string
	At        time.Time
}

func (e *SchedulingConflictError) Error() string {
	return fmt.Sprintf("meeting conflicts with another meeting at %s", e.At.UTC().Format(time.RFC3339))
}

func (e *SchedulingConflictError) Unwrap() error { return ErrSchedulingConflict }

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
	cause       error
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	if len(v.FieldErrors) == 0 {
		return "validation failed"
	}
	fields := make([]string, 0, len(v.FieldErrors))
	for field := range v.FieldErrors {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return "validation failed: " + strings.Join(fields, ", ")
}

// Unwrap exposes the sentinel a validation error was raised for, if any.
func (v *ValidationError) Unwrap() error {
	if v == nil {
		return nil
	}
	return v.cause
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error. The first message per field wins.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	if _, exists := v.FieldErrors[field]; exists {
		return
	}
	v.FieldErrors[field] = message
}

// merge copies entries from another validation error into the receiver.
func (v *ValidationError) merge(other *ValidationError) {
	if other == nil || len(other.FieldErrors) == 0 {
		return
	}
	for field, msg := range other.FieldErrors {
		v.add(field, msg)
	}
}

func fieldError(field, message string) *ValidationError {
	v := &ValidationError{}
	v.add(field, message)
	return v
}

// ErrInvalidRange matches, via errors.Is, the *ValidationError returned by range queries
// whose end precedes the start.
var ErrInvalidRange = errors.New("application: invalid range")

func invalidRange() *ValidationError {
	v := fieldError("end", "end date must not be before start date")
	v.cause = ErrInvalidRange
	return v
}
