package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/example/taskboard/internal/workflow"
)

// TaskRepository captures the persistence operations needed by the task service.
type TaskRepository interface {
	CreateTask(ctx context.Context, task Task) (Task, error)
	GetTask(ctx context.Context, id string) (Task, error)
	UpdateTask(ctx context.Context, task Task) (Task, error)
	TransitionTask(ctx context.Context, change TaskTransition) (bool, error)
	DeleteTask(ctx context.Context, id string) error
	ListTasks(ctx context.Context, filter TaskFilter) ([]Task, error)
}

// CommentLister loads the comments shown with a task.
type CommentLister interface {
	ListCommentsForTask(ctx context.Context, taskID string) ([]Comment, error)
}

// UserLookup resolves a single user.
type UserLookup interface {
	GetUser(ctx context.Context, id string) (User, error)
}

const maxDescriptionLength = 500

// TaskService drives tasks through their workflow and applies manager overrides.
type TaskService struct {
	tasks       TaskRepository
	comments    CommentLister
	users       UserLookup
	tx          Transactor
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewTaskService wires dependencies for the task service.
func NewTaskService(tasks TaskRepository, comments CommentLister, users UserLookup, tx Transactor, idGenerator func() string, now func() time.Time) *TaskService {
	return NewTaskServiceWithLogger(tasks, comments, users, tx, idGenerator, now, nil)
}

// NewTaskServiceWithLogger wires dependencies for the task service with a specific logger.
func NewTaskServiceWithLogger(tasks TaskRepository, comments CommentLister, users UserLookup, tx Transactor, idGenerator func() string, now func() time.Time, logger *slog.Logger) *TaskService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &TaskService{
		tasks:       tasks,
		comments:    comments,
		users:       users,
		tx:          defaultTransactor(tx),
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *TaskService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "TaskService", operation, attrs...)
}

func (s *TaskService) ready() error {
	if s == nil {
		return fmt.Errorf("TaskService is nil")
	}
	if s.tasks == nil || s.users == nil {
		return fmt.Errorf("task repositories not configured")
	}
	return nil
}

// Create opens a new unassigned task. Managers only.
func (s *TaskService) Create(ctx context.Context, principal Principal, input TaskInput) (task Task, err error) {
	if err = s.ready(); err != nil {
		return
	}

	input.Description = strings.TrimSpace(input.Description)
	logger := s.loggerWith(ctx, "Create", "principal_id", principal.UserID)
	defer func() {
		logOutcome(ctx, logger, err, "task created", "task_id", task.ID)
	}()

	if err = requireRole(principal, RoleManager); err != nil {
		return
	}
	if vErr := validateInput(input); vErr.HasErrors() {
		err = vErr
		return
	}

	now := s.now().UTC()
	task, err = s.tasks.CreateTask(ctx, Task{
		ID:          s.idGenerator(),
		Description: input.Description,
		Deadline:    calendarDate(input.Deadline),
		Status:      workflow.StatusOpened,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	return
}

// Claim assigns an opened task to the caller and starts it.
func (s *TaskService) Claim(ctx context.Context, principal Principal, taskID string) (task Task, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "Claim", "principal_id", principal.UserID, "task_id", taskID)
	defer func() {
		logOutcome(ctx, logger, err, "task claimed")
	}()

	if err = requireRole(principal, RoleStaff, RoleManager); err != nil {
		return
	}

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if _, getErr := s.users.GetUser(ctx, principal.UserID); getErr != nil {
			return fromStore(getErr, ErrUserNotFound)
		}
		current, getErr := s.tasks.GetTask(ctx, taskID)
		if getErr != nil {
			return fromStore(getErr, ErrTaskNotFound)
		}

		from := snapshotOf(current)
		to, claimErr := workflow.Claim(from, principal.UserID)
		if claimErr != nil {
			return ErrTaskNotOpened
		}

		updated, transErr := s.transition(ctx, TaskTransition{TaskID: taskID, From: from, To: to}, ErrTaskNotOpened)
		if transErr != nil {
			return transErr
		}
		task = updated
		return nil
	})
	return
}

// Complete marks the caller's in-progress task done.
func (s *TaskService) Complete(ctx context.Context, principal Principal, taskID string) (task Task, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "Complete", "principal_id", principal.UserID, "task_id", taskID)
	defer func() {
		logOutcome(ctx, logger, err, "task completed")
	}()

	if err = requireAuthenticated(principal); err != nil {
		return
	}

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		current, getErr := s.tasks.GetTask(ctx, taskID)
		if getErr != nil {
			return fromStore(getErr, ErrTaskNotFound)
		}

		from := snapshotOf(current)
		to, completeErr := workflow.Complete(from, principal.UserID)
		switch {
		case errors.Is(completeErr, workflow.ErrNotAssignee):
			return ErrNotAssignee
		case completeErr != nil:
			return ErrTaskNotInProgress
		}

		completedAt := s.now().UTC()
		updated, transErr := s.transition(ctx, TaskTransition{TaskID: taskID, From: from, To: to, CompletedAt: &completedAt}, ErrTaskNotInProgress)
		if transErr != nil {
			return transErr
		}
		task = updated
		return nil
	})
	return
}

// transition applies a compare-and-set change and reloads the task. A lost race reports lost.
func (s *TaskService) transition(ctx context.Context, change TaskTransition, lost error) (Task, error) {
	change.At = s.now().UTC()
	applied, err := s.tasks.TransitionTask(ctx, change)
	if err != nil {
		return Task{}, err
	}
	if !applied {
		return Task{}, lost
	}
	task, err := s.tasks.GetTask(ctx, change.TaskID)
	if err != nil {
		return Task{}, fromStore(err, ErrTaskNotFound)
	}
	return task, nil
}

// ManagerUpdate overwrites the fields set in patch, bypassing the workflow rules.
// Managers only.
func (s *TaskService) ManagerUpdate(ctx context.Context, principal Principal, taskID string, patch TaskPatch) (task Task, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "ManagerUpdate", "principal_id", principal.UserID, "task_id", taskID)
	defer func() {
		logOutcome(ctx, logger, err, "task updated")
	}()

	if err = requireRole(principal, RoleManager); err != nil {
		return
	}
	if vErr := validateTaskPatch(patch); vErr.HasErrors() {
		err = vErr
		return
	}

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		current, getErr := s.tasks.GetTask(ctx, taskID)
		if getErr != nil {
			return fromStore(getErr, ErrTaskNotFound)
		}

		next := current
		if patch.Description.Set {
			next.Description = strings.TrimSpace(patch.Description.Value)
		}
		if patch.Deadline.Set {
			next.Deadline = calendarDate(patch.Deadline.Value)
		}
		if patch.AssigneeID.Set {
			next.AssigneeID = nil
			if id := patch.AssigneeID.Value; id != nil && strings.TrimSpace(*id) != "" {
				assignee, lookupErr := s.users.GetUser(ctx, strings.TrimSpace(*id))
				if lookupErr != nil {
					return fromStore(lookupErr, ErrUserNotFound)
				}
				next.AssigneeID = &assignee.ID
			}
		}

		now := s.now().UTC()
		if patch.Status.Set {
			next.Status = patch.Status.Value
		}
		switch {
		case next.Status != workflow.StatusDone:
			next.CompletedAt = nil
		case current.Status != workflow.StatusDone || current.CompletedAt == nil:
			next.CompletedAt = &now
		}
		next.UpdatedAt = now

		updated, updateErr := s.tasks.UpdateTask(ctx, next)
		if updateErr != nil {
			return fromStore(updateErr, ErrTaskNotFound)
		}
		task = updated
		return nil
	})
	return
}

func validateTaskPatch(patch TaskPatch) *ValidationError {
	vErr := &ValidationError{}
	if patch.Description.Set {
		switch n := utf8.RuneCountInString(strings.TrimSpace(patch.Description.Value)); {
		case n == 0:
			vErr.add("description", "description is required")
		case n > maxDescriptionLength:
			vErr.add("description", fmt.Sprintf("description must be at most %d characters", maxDescriptionLength))
		}
	}
	if patch.Deadline.Set && patch.Deadline.Value.IsZero() {
		vErr.add("deadline", "deadline is required")
	}
	if patch.Status.Set && !patch.Status.Value.Valid() {
		vErr.add("status", "status must be one of opened, in_progress, done")
	}
	return vErr
}

// Delete removes a task with its comments and evaluations. Managers only.
func (s *TaskService) Delete(ctx context.Context, principal Principal, taskID string) (err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "Delete", "principal_id", principal.UserID, "task_id", taskID)
	defer func() {
		logOutcome(ctx, logger, err, "task deleted")
	}()

	if err = requireRole(principal, RoleManager); err != nil {
		return
	}
	err = fromStore(s.tasks.DeleteTask(ctx, taskID), ErrTaskNotFound)
	return
}

// Get returns a task with its comments, oldest first.
func (s *TaskService) Get(ctx context.Context, principal Principal, taskID string) (Task, error) {
	if err := s.ready(); err != nil {
		return Task{}, err
	}
	if err := requireAuthenticated(principal); err != nil {
		return Task{}, err
	}

	task, err := s.tasks.GetTask(ctx, taskID)
	if err != nil {
		return Task{}, fromStore(err, ErrTaskNotFound)
	}
	if s.comments != nil {
		comments, err := s.comments.ListCommentsForTask(ctx, taskID)
		if err != nil {
			return Task{}, err
		}
		task.Comments = comments
	}
	return task, nil
}

// ListAll returns every task ordered by deadline.
func (s *TaskService) ListAll(ctx context.Context, principal Principal) ([]Task, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if err := requireAuthenticated(principal); err != nil {
		return nil, err
	}
	return s.tasks.ListTasks(ctx, TaskFilter{})
}

// ListMine returns the tasks assigned to the caller ordered by deadline.
func (s *TaskService) ListMine(ctx context.Context, principal Principal) ([]Task, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if err := requireAuthenticated(principal); err != nil {
		return nil, err
	}
	return s.tasks.ListTasks(ctx, TaskFilter{AssigneeID: principal.UserID})
}

func snapshotOf(task Task) workflow.Snapshot {
	snap := workflow.Snapshot{Status: task.Status}
	if task.AssigneeID != nil {
		snap.AssigneeID = *task.AssigneeID
	}
	return snap
}

// calendarDate drops the clock part of t, keeping the date as written.
func calendarDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
