package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/example/taskboard/internal/application"
	"github.com/example/taskboard/internal/persistence"
	"github.com/example/taskboard/internal/workflow"
)

// TaskRepository stores tasks.
type TaskRepository struct {
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewTaskRepository creates a new SQLite task repository.
func NewTaskRepository(pool *ConnectionPool) *TaskRepository {
	return &TaskRepository{
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

const taskColumns = `id, description, deadline, status, assigned_to, completed_at, created_at, updated_at`

// CreateTask inserts a task.
func (r *TaskRepository) CreateTask(ctx context.Context, task application.Task) (application.Task, error) {
	if task.ID == "" {
		return application.Task{}, persistence.ErrConstraintViolation
	}
	_, err := r.helper.Exec(ctx, `
		INSERT INTO tasks (`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID,
		task.Description,
		formatDate(task.Deadline),
		string(task.Status),
		nullableString(task.AssigneeID),
		nullableTime(task.CompletedAt),
		formatTime(task.CreatedAt),
		formatTime(task.UpdatedAt),
	)
	if err != nil {
		return application.Task{}, r.mapper.MapError(err)
	}
	return r.GetTask(ctx, task.ID)
}

// GetTask retrieves a task by ID.
func (r *TaskRepository) GetTask(ctx context.Context, id string) (application.Task, error) {
	task, err := scanTask(r.helper.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id))
	if err != nil {
		return application.Task{}, r.mapper.MapError(err)
	}
	return task, nil
}

// UpdateTask overwrites every mutable column of a task.
func (r *TaskRepository) UpdateTask(ctx context.Context, task application.Task) (application.Task, error) {
	result, err := r.helper.Exec(ctx, `
		UPDATE tasks
		SET description = ?, deadline = ?, status = ?, assigned_to = ?, completed_at = ?, updated_at = ?
		WHERE id = ?`,
		task.Description,
		formatDate(task.Deadline),
		string(task.Status),
		nullableString(task.AssigneeID),
		nullableTime(task.CompletedAt),
		formatTime(task.UpdatedAt),
		task.ID,
	)
	if err != nil {
		return application.Task{}, r.mapper.MapError(err)
	}
	if err := expectAffected(result); err != nil {
		return application.Task{}, err
	}
	return r.GetTask(ctx, task.ID)
}

// TransitionTask applies a status change only if the row still has the expected status
// and assignee. It reports whether the row was updated.
func (r *TaskRepository) TransitionTask(ctx context.Context, change application.TaskTransition) (bool, error) {
	query := `
		UPDATE tasks
		SET status = ?, assigned_to = ?, completed_at = ?, updated_at = ?
		WHERE id = ? AND status = ?`
	args := []any{
		string(change.To.Status),
		nullableString(optionalID(change.To.AssigneeID)),
		nullableTime(change.CompletedAt),
		formatTime(change.At),
		change.TaskID,
		string(change.From.Status),
	}
	if change.From.AssigneeID == "" {
		query += ` AND assigned_to IS NULL`
	} else {
		query += ` AND assigned_to = ?`
		args = append(args, change.From.AssigneeID)
	}

	result, err := r.helper.Exec(ctx, query, args...)
	if err != nil {
		return false, r.mapper.MapError(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n == 1, nil
}

// DeleteTask removes a task together with its comments and evaluations.
func (r *TaskRepository) DeleteTask(ctx context.Context, id string) error {
	result, err := r.helper.Exec(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return expectAffected(result)
}

// ListTasks returns tasks matching filter ordered by deadline, then creation time.
func (r *TaskRepository) ListTasks(ctx context.Context, filter application.TaskFilter) ([]application.Task, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.AssigneeID != "" {
		clauses = append(clauses, "assigned_to = ?")
		args = append(args, filter.AssigneeID)
	}
	if !filter.DeadlineFrom.IsZero() {
		clauses = append(clauses, "deadline >= ?")
		args = append(args, formatDate(filter.DeadlineFrom))
	}
	if !filter.DeadlineTo.IsZero() {
		clauses = append(clauses, "deadline <= ?")
		args = append(args, formatDate(filter.DeadlineTo))
	}

	query := `SELECT ` + taskColumns + ` FROM tasks`
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY deadline ASC, created_at ASC, id ASC`

	rows, err := r.helper.Query(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var tasks []application.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

func scanTask(row rowScanner) (application.Task, error) {
	var (
		task        application.Task
		deadline    string
		status      string
		assignedTo  sql.NullString
		completedAt sql.NullString
		createdAt   string
		updatedAt   string
	)
	if err := row.Scan(&task.ID, &task.Description, &deadline, &status, &assignedTo, &completedAt, &createdAt, &updatedAt); err != nil {
		return application.Task{}, err
	}

	var err error
	if task.Deadline, err = parseDate(deadline); err != nil {
		return application.Task{}, err
	}
	task.Status = workflow.Status(status)
	task.AssigneeID = stringPtr(assignedTo)
	if task.CompletedAt, err = timePtr(completedAt, "completed_at"); err != nil {
		return application.Task{}, err
	}
	if task.CreatedAt, err = parseTime(createdAt, "created_at"); err != nil {
		return application.Task{}, err
	}
	if task.UpdatedAt, err = parseTime(updatedAt, "updated_at"); err != nil {
		return application.Task{}, err
	}
	return task, nil
}

func optionalID(id string) *string {
	if id == "" {
		return nil
	}
	return &id
}
