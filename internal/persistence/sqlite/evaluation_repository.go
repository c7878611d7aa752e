package sqlite

import (
	"context"

	"github.com/example/taskboard/internal/application"
	"github.com/example/taskboard/internal/persistence"
)

// EvaluationRepository stores grades given for completed tasks.
type EvaluationRepository struct {
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewEvaluationRepository creates a new SQLite evaluation repository.
func NewEvaluationRepository(pool *ConnectionPool) *EvaluationRepository {
	return &EvaluationRepository{
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

const evaluationColumns = `id, task_id, employee_id, grade, evaluated_at`

// CreateEvaluation inserts an evaluation.
func (r *EvaluationRepository) CreateEvaluation(ctx context.Context, evaluation application.Evaluation) (application.Evaluation, error) {
	if evaluation.ID == "" {
		return application.Evaluation{}, persistence.ErrConstraintViolation
	}
	_, err := r.helper.Exec(ctx,
		`INSERT INTO evaluations (`+evaluationColumns+`) VALUES (?, ?, ?, ?, ?)`,
		evaluation.ID, evaluation.TaskID, evaluation.EmployeeID, evaluation.Grade, formatTime(evaluation.EvaluatedAt),
	)
	if err != nil {
		return application.Evaluation{}, r.mapper.MapError(err)
	}

	stored, err := scanEvaluation(r.helper.QueryRow(ctx, `SELECT `+evaluationColumns+` FROM evaluations WHERE id = ?`, evaluation.ID))
	if err != nil {
		return application.Evaluation{}, r.mapper.MapError(err)
	}
	return stored, nil
}

// LatestEvaluationForTask returns the most recent evaluation of a task, or
// persistence.ErrNotFound when it has none.
func (r *EvaluationRepository) LatestEvaluationForTask(ctx context.Context, taskID string) (application.Evaluation, error) {
	evaluation, err := scanEvaluation(r.helper.QueryRow(ctx,
		`SELECT `+evaluationColumns+` FROM evaluations WHERE task_id = ? ORDER BY evaluated_at DESC, id DESC LIMIT 1`,
		taskID,
	))
	if err != nil {
		return application.Evaluation{}, r.mapper.MapError(err)
	}
	return evaluation, nil
}

// ListEvaluations returns the evaluations matching filter ordered by grading time.
func (r *EvaluationRepository) ListEvaluations(ctx context.Context, filter application.EvaluationFilter) ([]application.Evaluation, error) {
	rows, err := r.helper.Query(ctx, `
		SELECT `+evaluationColumns+`
		FROM evaluations
		WHERE employee_id = ? AND evaluated_at >= ? AND evaluated_at < ?
		ORDER BY evaluated_at ASC, id ASC`,
		filter.EmployeeID, formatTime(filter.From), formatTime(filter.Before),
	)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var evaluations []application.Evaluation
	for rows.Next() {
		evaluation, err := scanEvaluation(rows)
		if err != nil {
			return nil, err
		}
		evaluations = append(evaluations, evaluation)
	}
	return evaluations, rows.Err()
}

func scanEvaluation(row rowScanner) (application.Evaluation, error) {
	var (
		evaluation  application.Evaluation
		evaluatedAt string
	)
	if err := row.Scan(&evaluation.ID, &evaluation.TaskID, &evaluation.EmployeeID, &evaluation.Grade, &evaluatedAt); err != nil {
		return application.Evaluation{}, err
	}
	var err error
	if evaluation.EvaluatedAt, err = parseTime(evaluatedAt, "evaluated_at"); err != nil {
		return application.Evaluation{}, err
	}
	return evaluation, nil
}
