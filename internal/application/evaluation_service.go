package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/example/taskboard/internal/persistence"
	"github.com/example/taskboard/internal/workflow"
)

// EvaluationRepository captures the persistence operations needed by the evaluation service.
type EvaluationRepository interface {
	CreateEvaluation(ctx context.Context, evaluation Evaluation) (Evaluation, error)
	LatestEvaluationForTask(ctx context.Context, taskID string) (Evaluation, error)
	ListEvaluations(ctx context.Context, filter EvaluationFilter) ([]Evaluation, error)
}

// EvaluationService records grades for completed tasks and reports on them.
type EvaluationService struct {
	evaluations EvaluationRepository
	tasks       TaskLookup
	tx          Transactor
	idGenerator func() string
	now         func() time.Time
	location    *time.Location
	logger      *slog.Logger
}

// NewEvaluationService wires dependencies for the evaluation service. Date ranges are
// interpreted in location, or UTC when nil.
func NewEvaluationService(evaluations EvaluationRepository, tasks TaskLookup, tx Transactor, idGenerator func() string, now func() time.Time, location *time.Location) *EvaluationService {
	return NewEvaluationServiceWithLogger(evaluations, tasks, tx, idGenerator, now, location, nil)
}

// NewEvaluationServiceWithLogger wires dependencies for the evaluation service with a specific logger.
func NewEvaluationServiceWithLogger(evaluations EvaluationRepository, tasks TaskLookup, tx Transactor, idGenerator func() string, now func() time.Time, location *time.Location, logger *slog.Logger) *EvaluationService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	if location == nil {
		location = time.UTC
	}
	return &EvaluationService{
		evaluations: evaluations,
		tasks:       tasks,
		tx:          defaultTransactor(tx),
		idGenerator: idGenerator,
		now:         now,
		location:    location,
		logger:      defaultLogger(logger),
	}
}

func (s *EvaluationService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "EvaluationService", operation, attrs...)
}

func (s *EvaluationService) ready() error {
	if s == nil {
		return fmt.Errorf("EvaluationService is nil")
	}
	if s.evaluations == nil || s.tasks == nil {
		return fmt.Errorf("evaluation repositories not configured")
	}
	return nil
}

// Create grades a done task on behalf of its assignee. A task may be graded once per
// completion. Managers only.
func (s *EvaluationService) Create(ctx context.Context, principal Principal, taskID string, input EvaluationInput) (evaluation Evaluation, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "Create", "principal_id", principal.UserID, "task_id", taskID, "grade", input.Grade)
	defer func() {
		logOutcome(ctx, logger, err, "task evaluated", "evaluation_id", evaluation.ID)
	}()

	if err = requireRole(principal, RoleManager); err != nil {
		return
	}
	if vErr := validateInput(input); vErr.HasErrors() {
		err = vErr
		return
	}

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		task, getErr := s.tasks.GetTask(ctx, taskID)
		if getErr != nil {
			return fromStore(getErr, ErrTaskNotFound)
		}
		if task.Status != workflow.StatusDone {
			return ErrNotDone
		}
		if task.AssigneeID == nil {
			return ErrUnassigned
		}

		latest, latestErr := s.evaluations.LatestEvaluationForTask(ctx, taskID)
		switch {
		case latestErr == nil:
			if task.CompletedAt == nil || !latest.EvaluatedAt.Before(*task.CompletedAt) {
				return ErrAlreadyEvaluated
			}
		case !errors.Is(latestErr, persistence.ErrNotFound):
			return latestErr
		}

		created, createErr := s.evaluations.CreateEvaluation(ctx, Evaluation{
			ID:          s.idGenerator(),
			TaskID:      task.ID,
			EmployeeID:  *task.AssigneeID,
			Grade:       input.Grade,
			EvaluatedAt: s.now().UTC(),
		})
		if createErr != nil {
			return createErr
		}
		evaluation = created
		return nil
	})
	return
}

// QueryRange returns the evaluations of userID graded between the calendar dates of start
// and end, both inclusive, with their average rounded to one decimal. Users may query
// themselves; managers and administrators may query anyone.
func (s *EvaluationService) QueryRange(ctx context.Context, principal Principal, userID string, start, end time.Time) (report EvaluationReport, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "QueryRange", "principal_id", principal.UserID, "user_id", userID)
	defer func() {
		logOutcome(ctx, logger, err, "evaluations queried", "count", len(report.Evaluations))
	}()

	if err = requireSelfOrRole(principal, userID, RoleManager, RoleAdmin); err != nil {
		return
	}

	from := startOfDay(start, s.location)
	last := startOfDay(end, s.location)
	if last.Before(from) {
		err = invalidRange()
		return
	}

	var evaluations []Evaluation
	evaluations, err = s.evaluations.ListEvaluations(ctx, EvaluationFilter{
		EmployeeID: userID,
		From:       from.UTC(),
		Before:     last.AddDate(0, 0, 1).UTC(),
	})
	if err != nil {
		return
	}

	report = EvaluationReport{
		UserID:       userID,
		Start:        from,
		End:          last,
		Evaluations:  evaluations,
		AverageGrade: averageGrade(evaluations),
	}
	return
}

func averageGrade(evaluations []Evaluation) float64 {
	if len(evaluations) == 0 {
		return 0
	}
	total := 0
	for _, e := range evaluations {
		total += e.Grade
	}
	avg := float64(total) / float64(len(evaluations))
	return math.Round(avg*10) / 10
}

// startOfDay returns midnight in loc of the calendar date written in t.
func startOfDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
