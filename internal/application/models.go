package application

import (
	"time"

	"github.com/example/taskboard/internal/workflow"
)

// DateLayout is the textual form of calendar dates such as task deadlines.
const DateLayout = "2006-01-02"

// Principal represents the authenticated user invoking a service method.
type Principal struct {
	UserID string
	Name   string
	Role   Role
}

// User represents an account exposed by the application services.
type User struct {
	ID        string
	Email     string
	Name      string
	Role      Role
	Active    bool
	TeamID    *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UserCredentials models the authentication attributes persisted for a user.
type UserCredentials struct {
	User         User
	PasswordHash string
}

// RegisterInput captures the fields of a self-service registration.
type RegisterInput struct {
	Email    string `validate:"required,email,max=254"`
	Name     string `validate:"required,max=150"`
	Password string `validate:"required,min=8,max=128"`
}

// RegisterParams wraps the data required to register a user. Principal is nil for
// anonymous callers.
type RegisterParams struct {
	Principal *Principal
	Input     RegisterInput
}

// LoginParams captures the data required to authenticate a user. Username is either
// the user name or the email address.
type LoginParams struct {
	Username string
	Password string
}

// LoginResult captures the outcome of a successful authentication attempt.
type LoginResult struct {
	User      User
	Token     string
	ExpiresAt time.Time
}

// ChangePasswordInput captures a password change by the account owner.
type ChangePasswordInput struct {
	OldPassword string `validate:"required"`
	NewPassword string `validate:"required,min=8,max=128"`
}

// Team groups users. Members is populated on detail reads only.
type Team struct {
	ID        string
	Name      string
	Members   []User
	CreatedAt time.Time
}

// TeamInput captures the fields of a new team.
type TeamInput struct {
	Name string `validate:"required,max=150"`
}

// Task is a unit of work moving through the workflow states.
type Task struct {
	ID          string
	Description string
	Deadline    time.Time
	Status      workflow.Status
	AssigneeID  *string
	CompletedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Comments    []Comment
}

// TaskInput captures the fields of a new task.
type TaskInput struct {
	Description string    `validate:"required,max=500"`
	Deadline    time.Time `validate:"required"`
}

// TaskPatch captures a manager override. Unset fields keep their stored value.
type TaskPatch struct {
	Description Optional[string]
	Deadline    Optional[time.Time]
	Status      Optional[workflow.Status]
	AssigneeID  Optional[*string]
}

// CommentInput captures the text of a comment.
type CommentInput struct {
	Text string `validate:"required,max=2000"`
}

// Comment is a note left on a task.
type Comment struct {
	ID        string
	TaskID    string
	AuthorID  string
	Text      string
	CreatedAt time.Time
}

// EvaluationInput captures a grade for a completed task.
type EvaluationInput struct {
	Grade int `validate:"gte=1,lte=5"`
}

// Evaluation is a grade given for a completed task.
type Evaluation struct {
	ID          string
	TaskID      string
	EmployeeID  string
	Grade       int
	EvaluatedAt time.Time
}

// EvaluationReport is the result of a range query over a user's evaluations.
type EvaluationReport struct {
	UserID       string
	Start        time.Time
	End          time.Time
	Evaluations  []Evaluation
	AverageGrade float64
}

// Meeting is a scheduled gathering. ParticipantIDs always includes the host.
type Meeting struct {
	ID             string
	HostID         string
	Title          string
	Description    string
	At             time.Time
	ParticipantIDs []string
	CreatedAt      time.Time
}

// MeetingInput captures the fields of a new meeting.
type MeetingInput struct {
	Title          string `validate:"required,max=150"`
	Description    string `validate:"max=2000"`
	At             time.Time
	ParticipantIDs []string
}

// CalendarView lists a user's tasks and meetings within [From, To).
type CalendarView struct {
	UserID   string
	From     time.Time
	To       time.Time
	Tasks    []Task
	Meetings []Meeting
}

// TaskTransition is a compare-and-set status change: it applies only while the stored
// task still matches From.
type TaskTransition struct {
	TaskID      string
	From        workflow.Snapshot
	To          workflow.Snapshot
	CompletedAt *time.Time
	At          time.Time
}

// TaskFilter narrows task listings. Zero values are ignored; deadline bounds are inclusive.
type TaskFilter struct {
	AssigneeID   string
	DeadlineFrom time.Time
	DeadlineTo   time.Time
}

// EvaluationFilter selects evaluations of one employee graded within [From, Before).
type EvaluationFilter struct {
	EmployeeID string
	From       time.Time
	Before     time.Time
}

// MeetingFilter selects meetings a user participates in starting within [From, Before).
// A zero Before leaves the range open-ended.
type MeetingFilter struct {
	ParticipantID string
	From          time.Time
	Before        time.Time
}
