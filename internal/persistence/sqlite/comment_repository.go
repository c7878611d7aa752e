package sqlite

import (
	"context"

	"github.com/example/taskboard/internal/application"
	"github.com/example/taskboard/internal/persistence"
)

// CommentRepository stores task comments.
type CommentRepository struct {
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewCommentRepository creates a new SQLite comment repository.
func NewCommentRepository(pool *ConnectionPool) *CommentRepository {
	return &CommentRepository{
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

const commentColumns = `id, task_id, author_id, text, created_at`

// CreateComment inserts a comment.
func (r *CommentRepository) CreateComment(ctx context.Context, comment application.Comment) (application.Comment, error) {
	if comment.ID == "" {
		return application.Comment{}, persistence.ErrConstraintViolation
	}
	_, err := r.helper.Exec(ctx,
		`INSERT INTO comments (`+commentColumns+`) VALUES (?, ?, ?, ?, ?)`,
		comment.ID, comment.TaskID, comment.AuthorID, comment.Text, formatTime(comment.CreatedAt),
	)
	if err != nil {
		return application.Comment{}, r.mapper.MapError(err)
	}
	return r.GetComment(ctx, comment.ID)
}

// GetComment retrieves a comment by ID.
func (r *CommentRepository) GetComment(ctx context.Context, id string) (application.Comment, error) {
	comment, err := scanComment(r.helper.QueryRow(ctx, `SELECT `+commentColumns+` FROM comments WHERE id = ?`, id))
	if err != nil {
		return application.Comment{}, r.mapper.MapError(err)
	}
	return comment, nil
}

// UpdateComment replaces the text and timestamp of a comment.
func (r *CommentRepository) UpdateComment(ctx context.Context, comment application.Comment) (application.Comment, error) {
	result, err := r.helper.Exec(ctx,
		`UPDATE comments SET text = ?, created_at = ? WHERE id = ?`,
		comment.Text, formatTime(comment.CreatedAt), comment.ID,
	)
	if err != nil {
		return application.Comment{}, r.mapper.MapError(err)
	}
	if err := expectAffected(result); err != nil {
		return application.Comment{}, err
	}
	return r.GetComment(ctx, comment.ID)
}

// DeleteComment removes a comment.
func (r *CommentRepository) DeleteComment(ctx context.Context, id string) error {
	result, err := r.helper.Exec(ctx, `DELETE FROM comments WHERE id = ?`, id)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return expectAffected(result)
}

// ListCommentsForTask returns the comments of a task, oldest first.
func (r *CommentRepository) ListCommentsForTask(ctx context.Context, taskID string) ([]application.Comment, error) {
	rows, err := r.helper.Query(ctx,
		`SELECT `+commentColumns+` FROM comments WHERE task_id = ? ORDER BY created_at ASC, id ASC`,
		taskID,
	)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var comments []application.Comment
	for rows.Next() {
		comment, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		comments = append(comments, comment)
	}
	return comments, rows.Err()
}

func scanComment(row rowScanner) (application.Comment, error) {
	var (
		comment   application.Comment
		createdAt string
	)
	if err := row.Scan(&comment.ID, &comment.TaskID, &comment.AuthorID, &comment.Text, &createdAt); err != nil {
		return application.Comment{}, err
	}
	var err error
	if comment.CreatedAt, err = parseTime(createdAt, "created_at"); err != nil {
		return application.Comment{}, err
	}
	return comment, nil
}
