package testfixtures

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/example/taskboard/internal/persistence/sqlite"
	"github.com/example/taskboard/internal/persistence/sqlite/migration"
)

// SQLiteHarness bundles a migrated temporary database with every repository built on it.
type SQLiteHarness struct {
	Pool          *sqlite.ConnectionPool
	Clock         *Clock
	Users         *sqlite.UserRepository
	Teams         *sqlite.TeamRepository
	Tasks         *sqlite.TaskRepository
	Comments      *sqlite.CommentRepository
	Evaluations   *sqlite.EvaluationRepository
	Meetings      *sqlite.MeetingRepository
	RevokedTokens *sqlite.RevokedTokenRepository
}

// NewSQLiteHarness opens a file database under tb.TempDir, applies the embedded
// migrations and closes the pool when the test ends.
func NewSQLiteHarness(tb testing.TB) *SQLiteHarness {
	tb.Helper()

	ctx := context.Background()
	path := filepath.Join(tb.TempDir(), "taskboard.db")
	pool, err := sqlite.NewConnectionPool(ctx, migration.DefaultSQLiteConfig(path))
	if err != nil {
		tb.Fatalf("failed to open database: %v", err)
	}
	tb.Cleanup(func() { _ = pool.Close() })

	if err := pool.Migrate(ctx, QuietLogger()); err != nil {
		tb.Fatalf("failed to migrate database: %v", err)
	}

	clock := NewClock(ReferenceTime())
	return &SQLiteHarness{
		Pool:          pool,
		Clock:         clock,
		Users:         sqlite.NewUserRepository(pool),
		Teams:         sqlite.NewTeamRepository(pool),
		Tasks:         sqlite.NewTaskRepository(pool),
		Comments:      sqlite.NewCommentRepository(pool),
		Evaluations:   sqlite.NewEvaluationRepository(pool),
		Meetings:      sqlite.NewMeetingRepository(pool),
		RevokedTokens: sqlite.NewRevokedTokenRepository(pool, clock.Now),
	}
}

// QuietLogger discards every record.
func QuietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
