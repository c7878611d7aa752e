package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// CommentRepository captures the persistence operations needed by the comment service.
type CommentRepository interface {
	CreateComment(ctx context.Context, comment Comment) (Comment, error)
	GetComment(ctx context.Context, id string) (Comment, error)
	UpdateComment(ctx context.Context, comment Comment) (Comment, error)
	DeleteComment(ctx context.Context, id string) error
}

// TaskLookup resolves a single task.
type TaskLookup interface {
	GetTask(ctx context.Context, id string) (Task, error)
}

// CommentService lets users discuss tasks. Only the author may change a comment.
type CommentService struct {
	comments    CommentRepository
	tasks       TaskLookup
	tx          Transactor
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewCommentService wires dependencies for the comment service.
func NewCommentService(comments CommentRepository, tasks TaskLookup, tx Transactor, idGenerator func() string, now func() time.Time) *CommentService {
	return NewCommentServiceWithLogger(comments, tasks, tx, idGenerator, now, nil)
}

// NewCommentServiceWithLogger wires dependencies for the comment service with a specific logger.
func NewCommentServiceWithLogger(comments CommentRepository, tasks TaskLookup, tx Transactor, idGenerator func() string, now func() time.Time, logger *slog.Logger) *CommentService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &CommentService{
		comments:    comments,
		tasks:       tasks,
		tx:          defaultTransactor(tx),
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *CommentService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "CommentService", operation, attrs...)
}

func (s *CommentService) ready() error {
	if s == nil {
		return fmt.Errorf("CommentService is nil")
	}
	if s.comments == nil || s.tasks == nil {
		return fmt.Errorf("comment repositories not configured")
	}
	return nil
}

// Add attaches a comment by the caller to a task.
func (s *CommentService) Add(ctx context.Context, principal Principal, taskID string, input CommentInput) (comment Comment, err error) {
	if err = s.ready(); err != nil {
		return
	}

	input.Text = strings.TrimSpace(input.Text)
	logger := s.loggerWith(ctx, "Add", "principal_id", principal.UserID, "task_id", taskID)
	defer func() {
		logOutcome(ctx, logger, err, "comment added", "comment_id", comment.ID)
	}()

	if err = requireAuthenticated(principal); err != nil {
		return
	}
	if vErr := validateInput(input); vErr.HasErrors() {
		err = vErr
		return
	}

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if _, getErr := s.tasks.GetTask(ctx, taskID); getErr != nil {
			return fromStore(getErr, ErrTaskNotFound)
		}
		created, createErr := s.comments.CreateComment(ctx, Comment{
			ID:        s.idGenerator(),
			TaskID:    taskID,
			AuthorID:  principal.UserID,
			Text:      input.Text,
			CreatedAt: s.now().UTC(),
		})
		if createErr != nil {
			return createErr
		}
		comment = created
		return nil
	})
	return
}

// Update replaces the text of the caller's comment and refreshes its timestamp.
func (s *CommentService) Update(ctx context.Context, principal Principal, commentID string, input CommentInput) (comment Comment, err error) {
	if err = s.ready(); err != nil {
		return
	}

	input.Text = strings.TrimSpace(input.Text)
	logger := s.loggerWith(ctx, "Update", "principal_id", principal.UserID, "comment_id", commentID)
	defer func() {
		logOutcome(ctx, logger, err, "comment updated")
	}()

	if err = requireAuthenticated(principal); err != nil {
		return
	}
	if vErr := validateInput(input); vErr.HasErrors() {
		err = vErr
		return
	}

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		current, getErr := s.ownComment(ctx, principal, commentID)
		if getErr != nil {
			return getErr
		}
		current.Text = input.Text
		current.CreatedAt = s.now().UTC()
		updated, updateErr := s.comments.UpdateComment(ctx, current)
		if updateErr != nil {
			return fromStore(updateErr, ErrCommentNotFound)
		}
		comment = updated
		return nil
	})
	return
}

// Delete removes the caller's comment.
func (s *CommentService) Delete(ctx context.Context, principal Principal, commentID string) (err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "Delete", "principal_id", principal.UserID, "comment_id", commentID)
	defer func() {
		logOutcome(ctx, logger, err, "comment deleted")
	}()

	if err = requireAuthenticated(principal); err != nil {
		return
	}

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if _, getErr := s.ownComment(ctx, principal, commentID); getErr != nil {
			return getErr
		}
		return fromStore(s.comments.DeleteComment(ctx, commentID), ErrCommentNotFound)
	})
	return
}

func (s *CommentService) ownComment(ctx context.Context, principal Principal, commentID string) (Comment, error) {
	comment, err := s.comments.GetComment(ctx, commentID)
	if err != nil {
		return Comment{}, fromStore(err, ErrCommentNotFound)
	}
	if comment.AuthorID != principal.UserID {
		return Comment{}, ErrForbidden
	}
	return comment, nil
}
