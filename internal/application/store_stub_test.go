package application

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/example/taskboard/internal/persistence"
)

// memoryStore implements every repository interface of the package on top of maps. It
// mirrors the store's error behaviour: missing rows report persistence.ErrNotFound and
// uniqueness violations a *persistence.ConstraintError.
type memoryStore struct {
	mu          sync.Mutex
	users       map[string]UserCredentials
	teams       map[string]Team
	tasks       map[string]Task
	comments    map[string]Comment
	evaluations []Evaluation
	meetings    map[string]Meeting
	failures    map[string]error
	calls       map[string]int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		users:    map[string]UserCredentials{},
		teams:    map[string]Team{},
		tasks:    map[string]Task{},
		comments: map[string]Comment{},
		meetings: map[string]Meeting{},
		failures: map[string]error{},
		calls:    map[string]int{},
	}
}

func (s *memoryStore) failOn(method string, err error) { s.failures[method] = err }

func (s *memoryStore) enter(method string) error {
	s.calls[method]++
	return s.failures[method]
}

func (s *memoryStore) callCount(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

type storeSnapshot struct {
	users       map[string]UserCredentials
	teams       map[string]Team
	tasks       map[string]Task
	comments    map[string]Comment
	evaluations []Evaluation
	meetings    map[string]Meeting
}

func (s *memoryStore) snapshot() storeSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := storeSnapshot{
		users:       make(map[string]UserCredentials, len(s.users)),
		teams:       make(map[string]Team, len(s.teams)),
		tasks:       make(map[string]Task, len(s.tasks)),
		comments:    make(map[string]Comment, len(s.comments)),
		evaluations: append([]Evaluation(nil), s.evaluations...),
		meetings:    make(map[string]Meeting, len(s.meetings)),
	}
	for k, v := range s.users {
		snap.users[k] = v
	}
	for k, v := range s.teams {
		snap.teams[k] = v
	}
	for k, v := range s.tasks {
		snap.tasks[k] = v
	}
	for k, v := range s.comments {
		snap.comments[k] = v
	}
	for k, v := range s.meetings {
		snap.meetings[k] = v
	}
	return snap
}

func (s *memoryStore) restore(snap storeSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = snap.users
	s.teams = snap.teams
	s.tasks = snap.tasks
	s.comments = snap.comments
	s.evaluations = snap.evaluations
	s.meetings = snap.meetings
}

// rollbackTransactor restores the store when fn fails.
type rollbackTransactor struct {
	store *memoryStore
	calls int
}

func (t *rollbackTransactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	t.calls++
	snap := t.store.snapshot()
	if err := fn(ctx); err != nil {
		t.store.restore(snap)
		return err
	}
	return nil
}

func ptr[T any](v T) *T { return &v }

// seedUser stores a user directly and returns it.
func (s *memoryStore) seedUser(t *testing.T, id, name string, role Role, teamID *string) User {
	t.Helper()
	now := time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)
	user, err := s.CreateUser(context.Background(), UserCredentials{
		User: User{
			ID:        id,
			Email:     strings.ToLower(name) + "@example.com",
			Name:      name,
			Role:      role,
			Active:    true,
			TeamID:    teamID,
			CreatedAt: now,
			UpdatedAt: now,
		},
		PasswordHash: "unused",
	})
	if err != nil {
		t.Fatalf("seed user %s: %v", id, err)
	}
	return user
}

func (s *memoryStore) seedTeam(t *testing.T, id, name string) Team {
	t.Helper()
	team, err := s.CreateTeam(context.Background(), Team{ID: id, Name: name})
	if err != nil {
		t.Fatalf("seed team %s: %v", id, err)
	}
	return team
}

func (s *memoryStore) seedTask(t *testing.T, task Task) Task {
	t.Helper()
	if task.Status == "" {
		task.Status = "opened"
	}
	created, err := s.CreateTask(context.Background(), task)
	if err != nil {
		t.Fatalf("seed task %s: %v", task.ID, err)
	}
	return created
}

func duplicate(constraint string) error {
	return &persistence.ConstraintError{Err: persistence.ErrDuplicate, Constraint: constraint}
}

// users

func (s *memoryStore) CreateUser(ctx context.Context, creds UserCredentials) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("CreateUser"); err != nil {
		return User{}, err
	}
	if err := s.checkUnique(creds.User); err != nil {
		return User{}, err
	}
	s.users[creds.User.ID] = creds
	return creds.User, nil
}

func (s *memoryStore) checkUnique(user User) error {
	for id, existing := range s.users {
		if id == user.ID {
			continue
		}
		if strings.EqualFold(existing.User.Email, user.Email) {
			return duplicate("users.email")
		}
		if strings.EqualFold(existing.User.Name, user.Name) {
			return duplicate("users.name")
		}
	}
	return nil
}

func (s *memoryStore) GetUser(ctx context.Context, id string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("GetUser"); err != nil {
		return User{}, err
	}
	creds, ok := s.users[id]
	if !ok {
		return User{}, persistence.ErrNotFound
	}
	return creds.User, nil
}

func (s *memoryStore) GetUserCredentials(ctx context.Context, id string) (UserCredentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("GetUserCredentials"); err != nil {
		return UserCredentials{}, err
	}
	creds, ok := s.users[id]
	if !ok {
		return UserCredentials{}, persistence.ErrNotFound
	}
	return creds, nil
}

func (s *memoryStore) FindCredentialsByLogin(ctx context.Context, login string) (UserCredentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("FindCredentialsByLogin"); err != nil {
		return UserCredentials{}, err
	}
	for _, creds := range s.users {
		if strings.EqualFold(creds.User.Name, login) || strings.EqualFold(creds.User.Email, login) {
			return creds, nil
		}
	}
	return UserCredentials{}, persistence.ErrNotFound
}

func (s *memoryStore) UpdateUser(ctx context.Context, user User) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("UpdateUser"); err != nil {
		return User{}, err
	}
	creds, ok := s.users[user.ID]
	if !ok {
		return User{}, persistence.ErrNotFound
	}
	if err := s.checkUnique(user); err != nil {
		return User{}, err
	}
	creds.User = user
	s.users[user.ID] = creds
	return user, nil
}

func (s *memoryStore) UpdatePasswordHash(ctx context.Context, id, hash string, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("UpdatePasswordHash"); err != nil {
		return err
	}
	creds, ok := s.users[id]
	if !ok {
		return persistence.ErrNotFound
	}
	creds.PasswordHash = hash
	creds.User.UpdatedAt = updatedAt
	s.users[id] = creds
	return nil
}

func (s *memoryStore) DeleteUser(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("DeleteUser"); err != nil {
		return err
	}
	if _, ok := s.users[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(s.users, id)
	return nil
}

func (s *memoryStore) ListUsers(ctx context.Context) ([]User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("ListUsers"); err != nil {
		return nil, err
	}
	return s.usersWhere(func(User) bool { return true }), nil
}

func (s *memoryStore) usersWhere(keep func(User) bool) []User {
	var out []User
	for _, creds := range s.users {
		if keep(creds.User) {
			out = append(out, creds.User)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *memoryStore) MissingUserIDs(ctx context.Context, ids []string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("MissingUserIDs"); err != nil {
		return nil, err
	}
	var missing []string
	for _, id := range ids {
		if _, ok := s.users[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

// teams

func (s *memoryStore) CreateTeam(ctx context.Context, team Team) (Team, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("CreateTeam"); err != nil {
		return Team{}, err
	}
	s.teams[team.ID] = team
	return team, nil
}

func (s *memoryStore) GetTeam(ctx context.Context, id string) (Team, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("GetTeam"); err != nil {
		return Team{}, err
	}
	team, ok := s.teams[id]
	if !ok {
		return Team{}, persistence.ErrNotFound
	}
	return team, nil
}

func (s *memoryStore) ListTeams(ctx context.Context) ([]Team, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Team
	for _, team := range s.teams {
		out = append(out, team)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *memoryStore) DeleteTeam(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.teams[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(s.teams, id)
	for uid, creds := range s.users {
		if creds.User.TeamID != nil && *creds.User.TeamID == id {
			creds.User.TeamID = nil
			s.users[uid] = creds
		}
	}
	return nil
}

func (s *memoryStore) ListMembers(ctx context.Context, teamID string) ([]User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("ListMembers"); err != nil {
		return nil, err
	}
	return s.usersWhere(func(u User) bool { return u.TeamID != nil && *u.TeamID == teamID }), nil
}

func (s *memoryStore) ReplaceMembers(ctx context.Context, teamID string, userIDs []string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("ReplaceMembers"); err != nil {
		return err
	}
	for uid, creds := range s.users {
		if creds.User.TeamID != nil && *creds.User.TeamID == teamID {
			creds.User.TeamID = nil
			s.users[uid] = creds
		}
	}
	for _, uid := range userIDs {
		creds, ok := s.users[uid]
		if !ok {
			return persistence.ErrNotFound
		}
		creds.User.TeamID = ptr(teamID)
		creds.User.UpdatedAt = at
		s.users[uid] = creds
	}
	return nil
}

// tasks

func (s *memoryStore) CreateTask(ctx context.Context, task Task) (Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("CreateTask"); err != nil {
		return Task{}, err
	}
	s.tasks[task.ID] = task
	return task, nil
}

func (s *memoryStore) GetTask(ctx context.Context, id string) (Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("GetTask"); err != nil {
		return Task{}, err
	}
	task, ok := s.tasks[id]
	if !ok {
		return Task{}, persistence.ErrNotFound
	}
	return task, nil
}

func (s *memoryStore) UpdateTask(ctx context.Context, task Task) (Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("UpdateTask"); err != nil {
		return Task{}, err
	}
	if _, ok := s.tasks[task.ID]; !ok {
		return Task{}, persistence.ErrNotFound
	}
	s.tasks[task.ID] = task
	return task, nil
}

func (s *memoryStore) TransitionTask(ctx context.Context, change TaskTransition) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("TransitionTask"); err != nil {
		return false, err
	}
	task, ok := s.tasks[change.TaskID]
	if !ok || snapshotOf(task) != change.From {
		return false, nil
	}
	task.Status = change.To.Status
	task.AssigneeID = nil
	if change.To.AssigneeID != "" {
		task.AssigneeID = ptr(change.To.AssigneeID)
	}
	task.CompletedAt = change.CompletedAt
	task.UpdatedAt = change.At
	s.tasks[task.ID] = task
	return true, nil
}

func (s *memoryStore) DeleteTask(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(s.tasks, id)
	return nil
}

func (s *memoryStore) ListTasks(ctx context.Context, filter TaskFilter) ([]Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("ListTasks"); err != nil {
		return nil, err
	}
	var out []Task
	for _, task := range s.tasks {
		if filter.AssigneeID != "" && (task.AssigneeID == nil || *task.AssigneeID != filter.AssigneeID) {
			continue
		}
		day := task.Deadline.Format(DateLayout)
		if !filter.DeadlineFrom.IsZero() && day < filter.DeadlineFrom.Format(DateLayout) {
			continue
		}
		if !filter.DeadlineTo.IsZero() && day > filter.DeadlineTo.Format(DateLayout) {
			continue
		}
		out = append(out, task)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Deadline.Equal(out[j].Deadline) {
			return out[i].Deadline.Before(out[j].Deadline)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// comments

func (s *memoryStore) CreateComment(ctx context.Context, comment Comment) (Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.comments[comment.ID] = comment
	return comment, nil
}

func (s *memoryStore) GetComment(ctx context.Context, id string) (Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	comment, ok := s.comments[id]
	if !ok {
		return Comment{}, persistence.ErrNotFound
	}
	return comment, nil
}

func (s *memoryStore) UpdateComment(ctx context.Context, comment Comment) (Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.comments[comment.ID]; !ok {
		return Comment{}, persistence.ErrNotFound
	}
	s.comments[comment.ID] = comment
	return comment, nil
}

func (s *memoryStore) DeleteComment(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.comments[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(s.comments, id)
	return nil
}

func (s *memoryStore) ListCommentsForTask(ctx context.Context, taskID string) ([]Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Comment
	for _, comment := range s.comments {
		if comment.TaskID == taskID {
			out = append(out, comment)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// evaluations

func (s *memoryStore) CreateEvaluation(ctx context.Context, evaluation Evaluation) (Evaluation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("CreateEvaluation"); err != nil {
		return Evaluation{}, err
	}
	s.evaluations = append(s.evaluations, evaluation)
	return evaluation, nil
}

func (s *memoryStore) LatestEvaluationForTask(ctx context.Context, taskID string) (Evaluation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var (
		latest Evaluation
		found  bool
	)
	for _, e := range s.evaluations {
		if e.TaskID == taskID && (!found || e.EvaluatedAt.After(latest.EvaluatedAt)) {
			latest, found = e, true
		}
	}
	if !found {
		return Evaluation{}, persistence.ErrNotFound
	}
	return latest, nil
}

func (s *memoryStore) ListEvaluations(ctx context.Context, filter EvaluationFilter) ([]Evaluation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("ListEvaluations"); err != nil {
		return nil, err
	}
	var out []Evaluation
	for _, e := range s.evaluations {
		if e.EmployeeID != filter.EmployeeID || e.EvaluatedAt.Before(filter.From) || !e.EvaluatedAt.Before(filter.Before) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EvaluatedAt.Before(out[j].EvaluatedAt) })
	return out, nil
}

// meetings

func (s *memoryStore) CreateMeeting(ctx context.Context, meeting Meeting) (Meeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("CreateMeeting"); err != nil {
		return Meeting{}, err
	}
	if _, exists := s.meetings[meeting.ID]; exists {
		return Meeting{}, duplicate("meetings.id")
	}
	s.meetings[meeting.ID] = meeting
	return meeting, nil
}

func (s *memoryStore) GetMeeting(ctx context.Context, id string) (Meeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	meeting, ok := s.meetings[id]
	if !ok {
		return Meeting{}, persistence.ErrNotFound
	}
	return meeting, nil
}

func (s *memoryStore) DeleteMeeting(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.meetings[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(s.meetings, id)
	return nil
}

func (s *memoryStore) ListMeetingsForParticipant(ctx context.Context, filter MeetingFilter) ([]Meeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("ListMeetingsForParticipant"); err != nil {
		return nil, err
	}
	var out []Meeting
	for _, meeting := range s.meetings {
		if !containsID(meeting.ParticipantIDs, filter.ParticipantID) || meeting.At.Before(filter.From) {
			continue
		}
		if !filter.Before.IsZero() && !meeting.At.Before(filter.Before) {
			continue
		}
		out = append(out, meeting)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].At.Before(out[j].At) })
	return out, nil
}

func containsID(ids []string, id string) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

// testClock is a settable clock for service tests.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(now time.Time) *testClock { return &testClock{now: now} }

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func sequence(prefix string) func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

var (
	adminPrincipal   = Principal{UserID: "admin-1", Name: "admin", Role: RoleAdmin}
	managerPrincipal = Principal{UserID: "manager-1", Name: "manager", Role: RoleManager}
)
