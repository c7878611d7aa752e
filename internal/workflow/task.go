// Package workflow holds the task lifecycle rules independent of storage.
//
// Tasks move forward only: opened → in_progress → done. Claim and Complete are the
// two actions ordinary users may take; a manager override bypasses these rules and
// is handled by the application layer.
package workflow

import (
	"errors"
	"strings"
)

// Status is the lifecycle state of a task.
type Status string

const (
	// StatusOpened marks a task nobody has claimed yet.
	StatusOpened Status = "opened"
	// StatusInProgress marks a claimed task.
	StatusInProgress Status = "in_progress"
	// StatusDone marks a task the assignee completed.
	StatusDone Status = "done"
)

var (
	// ErrInvalidTransition is returned when an action does not apply to the current status.
	ErrInvalidTransition = errors.New("workflow: invalid transition")
	// ErrNotAssignee is returned when someone other than the assignee completes a task.
	ErrNotAssignee = errors.New("workflow: not the assignee")
	// ErrUnknownStatus is returned by ParseStatus for unrecognised values.
	ErrUnknownStatus = errors.New("workflow: unknown status")
)

// ParseStatus converts a wire value into a Status. "in progress" is accepted as an
// alias of in_progress.
func ParseStatus(value string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case string(StatusOpened):
		return StatusOpened, nil
	case string(StatusInProgress), "in progress", "in-progress":
		return StatusInProgress, nil
	case string(StatusDone):
		return StatusDone, nil
	}
	return "", ErrUnknownStatus
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	return s.rank() >= 0
}

func (s Status) rank() int {
	switch s {
	case StatusOpened:
		return 0
	case StatusInProgress:
		return 1
	case StatusDone:
		return 2
	default:
		return -1
	}
}

// CanTransition reports whether the normal flow allows moving from one status to the next.
func CanTransition(from, to Status) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	return to.rank() == from.rank()+1
}

// Snapshot is the part of a task the lifecycle rules look at. An empty AssigneeID
// means the task is unassigned.
type Snapshot struct {
	Status     Status
	AssigneeID string
}

// Claim assigns an opened task to the claimant and moves it to in_progress.
func Claim(current Snapshot, claimantID string) (Snapshot, error) {
	if current.Status != StatusOpened || !CanTransition(current.Status, StatusInProgress) {
		return current, ErrInvalidTransition
	}
	return Snapshot{Status: StatusInProgress, AssigneeID: claimantID}, nil
}

// Complete marks an in-progress task done. Only the assignee may complete it.
func Complete(current Snapshot, actorID string) (Snapshot, error) {
	if current.Status != StatusInProgress {
		return current, ErrInvalidTransition
	}
	if current.AssigneeID == "" || current.AssigneeID != actorID {
		return current, ErrNotAssignee
	}
	return Snapshot{Status: StatusDone, AssigneeID: current.AssigneeID}, nil
}
