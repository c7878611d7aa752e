package sqlite_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/example/taskboard/internal/application"
	"github.com/example/taskboard/internal/persistence"
	"github.com/example/taskboard/internal/persistence/sqlite"
	"github.com/example/taskboard/internal/testfixtures"
)

func TestErrorMapper_MapError(t *testing.T) {
	t.Parallel()

	mapper := sqlite.NewErrorMapper()
	other := errors.New("disk I/O error")

	tests := []struct {
		name       string
		in         error
		sentinel   error
		constraint string
	}{
		{"no rows", sql.ErrNoRows, persistence.ErrNotFound, ""},
		{"wrapped no rows", fmt.Errorf("scan: %w", sql.ErrNoRows), persistence.ErrNotFound, ""},
		{"unique", errors.New("constraint failed: UNIQUE constraint failed: users.email (2067)"), persistence.ErrDuplicate, "users.email"},
		{"primary key", errors.New("PRIMARY KEY constraint failed: teams.id"), persistence.ErrDuplicate, "teams.id"},
		{"foreign key", errors.New("FOREIGN KEY constraint failed (787)"), persistence.ErrForeignKeyViolation, ""},
		{"check", errors.New("CHECK constraint failed: grade BETWEEN 1 AND 5 (275)"), persistence.ErrConstraintViolation, "grade BETWEEN 1 AND 5"},
		{"not null", errors.New("NOT NULL constraint failed: tasks.description"), persistence.ErrConstraintViolation, "tasks.description"},
		{"passthrough", other, other, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapper.MapError(tt.in)
			if !errors.Is(got, tt.sentinel) {
				t.Fatalf("MapError(%v) = %v, want %v", tt.in, got, tt.sentinel)
			}
			var constraintErr *persistence.ConstraintError
			if errors.As(got, &constraintErr) && constraintErr.Constraint != tt.constraint {
				t.Fatalf("expected constraint %q, got %q", tt.constraint, constraintErr.Constraint)
			}
		})
	}

	if mapper.MapError(nil) != nil {
		t.Fatal("expected nil to map to nil")
	}
}

func TestConnectionPool_WithinTransaction(t *testing.T) {
	t.Parallel()

	h := testfixtures.NewSQLiteHarness(t)
	ctx := context.Background()
	boom := errors.New("boom")

	user := testfixtures.NewUser()
	err := h.Pool.WithinTransaction(ctx, func(ctx context.Context) error {
		if _, err := h.Users.CreateUser(ctx, application.UserCredentials{User: user, PasswordHash: "hash"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected fn error, got %v", err)
	}
	if _, err := h.Users.GetUser(ctx, user.ID); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected insert rolled back, got %v", err)
	}

	team := application.Team{ID: "team-nested", Name: "nested", CreatedAt: h.Clock.Peek()}
	err = h.Pool.WithinTransaction(ctx, func(ctx context.Context) error {
		return h.Pool.WithinTransaction(ctx, func(ctx context.Context) error {
			_, err := h.Teams.CreateTeam(ctx, team)
			return err
		})
	})
	if err != nil {
		t.Fatalf("nested transaction: %v", err)
	}
	if _, err := h.Teams.GetTeam(ctx, team.ID); err != nil {
		t.Fatalf("expected nested write committed: %v", err)
	}

	if err := h.Pool.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}
