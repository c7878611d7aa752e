package testfixtures

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/example/taskboard/internal/application"
	"github.com/example/taskboard/internal/workflow"
)

var (
	userCounter    atomic.Uint64
	teamCounter    atomic.Uint64
	taskCounter    atomic.Uint64
	meetingCounter atomic.Uint64
)

// FixturePasswordHash is a syntactically valid argon2id hash used for seeded users.
// It does not verify against any password; tests that log in register through
// UserService instead.
const FixturePasswordHash = "$argon2id$v=19$m=1024,t=1,p=1$c2FsdHNhbHQ$aGFzaGhhc2hoYXNoaGFzaA"

// ----------------------------- User fixtures -----------------------------

// UserOption configures a generated user.
type UserOption func(*application.User)

// NewUser returns a deterministic active staff user.
func NewUser(opts ...UserOption) application.User {
	idx := userCounter.Add(1)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	user := application.User{
		ID:        fmt.Sprintf("user-%03d", idx),
		Email:     fmt.Sprintf("user%03d@example.com", idx),
		Name:      fmt.Sprintf("user%03d", idx),
		Role:      application.RoleStaff,
		Active:    true,
		CreatedAt: created,
		UpdatedAt: created,
	}
	for _, opt := range opts {
		opt(&user)
	}
	return user
}

// WithUserID overrides the generated ID.
func WithUserID(id string) UserOption {
	return func(u *application.User) { u.ID = id }
}

// WithUserName overrides the generated name.
func WithUserName(name string) UserOption {
	return func(u *application.User) { u.Name = name }
}

// WithUserEmail overrides the generated email.
func WithUserEmail(email string) UserOption {
	return func(u *application.User) { u.Email = email }
}

// WithRole sets the role.
func WithRole(role application.Role) UserOption {
	return func(u *application.User) { u.Role = role }
}

// WithTeam places the user on teamID.
func WithTeam(teamID string) UserOption {
	return func(u *application.User) { u.TeamID = &teamID }
}

// Inactive marks the user as disabled.
func Inactive() UserOption {
	return func(u *application.User) { u.Active = false }
}

// PrincipalFor returns the principal acting as user.
func PrincipalFor(user application.User) application.Principal {
	return application.Principal{UserID: user.ID, Name: user.Name, Role: user.Role}
}

// ----------------------------- Task fixtures -----------------------------

// TaskOption configures a generated task.
type TaskOption func(*application.Task)

// NewTask returns a deterministic opened task due the day after ReferenceTime.
func NewTask(opts ...TaskOption) application.Task {
	idx := taskCounter.Add(1)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	task := application.Task{
		ID:          fmt.Sprintf("task-%03d", idx),
		Description: fmt.Sprintf("Task %03d", idx),
		Deadline:    time.Date(2024, time.May, 2, 0, 0, 0, 0, time.UTC),
		Status:      workflow.StatusOpened,
		CreatedAt:   created,
		UpdatedAt:   created,
	}
	for _, opt := range opts {
		opt(&task)
	}
	return task
}

// WithTaskID overrides the generated ID.
func WithTaskID(id string) TaskOption {
	return func(t *application.Task) { t.ID = id }
}

// WithDeadline sets the deadline date.
func WithDeadline(year int, month time.Month, day int) TaskOption {
	return func(t *application.Task) { t.Deadline = time.Date(year, month, day, 0, 0, 0, 0, time.UTC) }
}

// AssignedTo assigns the task and moves it to in_progress.
func AssignedTo(userID string) TaskOption {
	return func(t *application.Task) {
		t.AssigneeID = &userID
		t.Status = workflow.StatusInProgress
	}
}

// CompletedAt marks the task done at the given time.
func CompletedAt(at time.Time) TaskOption {
	return func(t *application.Task) {
		t.Status = workflow.StatusDone
		t.CompletedAt = &at
	}
}

// ----------------------------- Meeting fixtures -----------------------------

// NewMeeting returns a meeting hosted by hostID at the given time. The host is always
// a participant.
func NewMeeting(hostID string, at time.Time, participants ...string) application.Meeting {
	idx := meetingCounter.Add(1)
	ids := append([]string{hostID}, participants...)
	return application.Meeting{
		ID:             fmt.Sprintf("meeting-%03d", idx),
		HostID:         hostID,
		Title:          fmt.Sprintf("Meeting %03d", idx),
		At:             at.UTC(),
		ParticipantIDs: ids,
		CreatedAt:      referenceTime,
	}
}

// ----------------------------- Seeding -----------------------------

// SeedUser stores a generated user.
func (h *SQLiteHarness) SeedUser(tb testing.TB, opts ...UserOption) application.User {
	tb.Helper()
	user, err := h.Users.CreateUser(context.Background(), application.UserCredentials{
		User:         NewUser(opts...),
		PasswordHash: FixturePasswordHash,
	})
	if err != nil {
		tb.Fatalf("seed user: %v", err)
	}
	return user
}

// SeedTeam stores a team named name.
func (h *SQLiteHarness) SeedTeam(tb testing.TB, name string) application.Team {
	tb.Helper()
	idx := teamCounter.Add(1)
	team, err := h.Teams.CreateTeam(context.Background(), application.Team{
		ID:        fmt.Sprintf("team-%03d", idx),
		Name:      name,
		CreatedAt: referenceTime,
	})
	if err != nil {
		tb.Fatalf("seed team: %v", err)
	}
	return team
}

// SeedTask stores a generated task.
func (h *SQLiteHarness) SeedTask(tb testing.TB, opts ...TaskOption) application.Task {
	tb.Helper()
	task, err := h.Tasks.CreateTask(context.Background(), NewTask(opts...))
	if err != nil {
		tb.Fatalf("seed task: %v", err)
	}
	return task
}

// SeedMeeting stores meeting with its participants.
func (h *SQLiteHarness) SeedMeeting(tb testing.TB, meeting application.Meeting) application.Meeting {
	tb.Helper()
	stored, err := h.Meetings.CreateMeeting(context.Background(), meeting)
	if err != nil {
		tb.Fatalf("seed meeting: %v", err)
	}
	return stored
}
