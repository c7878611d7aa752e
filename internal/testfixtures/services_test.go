package testfixtures

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/taskboard/internal/application"
	"github.com/example/taskboard/internal/workflow"
)

// TestServicesOnSQLite drives the main workflows through the real repositories.
func TestServicesOnSQLite(t *testing.T) {
	t.Parallel()

	h := NewSQLiteHarness(t)
	svc := NewServices(t, h)
	ctx := context.Background()

	admin, created, err := svc.Users.EnsureAdmin(ctx, application.RegisterInput{
		Email: "root@example.com", Name: "root", Password: "rootpass1",
	})
	if err != nil || !created || admin.Role != application.RoleAdmin {
		t.Fatalf("EnsureAdmin: user=%+v created=%v err=%v", admin, created, err)
	}
	if _, created, err := svc.Users.EnsureAdmin(ctx, application.RegisterInput{
		Email: "ROOT@example.com", Name: "root", Password: "rootpass1",
	}); err != nil || created {
		t.Fatalf("expected second EnsureAdmin to be a no-op, created=%v err=%v", created, err)
	}

	register := func(name string) application.User {
		t.Helper()
		user, err := svc.Users.Register(ctx, application.RegisterParams{Input: application.RegisterInput{
			Email: name + "@example.com", Name: name, Password: "password1",
		}})
		if err != nil {
			t.Fatalf("Register %s: %v", name, err)
		}
		return user
	}
	login := func(username, password string) application.Principal {
		t.Helper()
		result, err := svc.Auth.Login(ctx, application.LoginParams{Username: username, Password: password})
		if err != nil {
			t.Fatalf("Login %s: %v", username, err)
		}
		principal, _, err := svc.Auth.Authenticate(ctx, result.Token)
		if err != nil {
			t.Fatalf("Authenticate %s: %v", username, err)
		}
		return principal
	}

	rootP := login("root", "rootpass1")
	mia := register("mia")
	sam := register("sam")
	kim := register("kim")

	if _, err := svc.Users.Register(ctx, application.RegisterParams{Input: application.RegisterInput{
		Email: "MIA@example.com", Name: "mia2", Password: "password1",
	}}); !errors.Is(err, application.ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}

	if _, err := svc.Teams.ChangeUserRole(ctx, rootP, mia.ID, "manager"); err != nil {
		t.Fatalf("ChangeUserRole: %v", err)
	}
	if _, err := svc.Teams.ChangeUserRole(ctx, rootP, kim.ID, "manager"); err != nil {
		t.Fatalf("ChangeUserRole: %v", err)
	}
	miaP := login("mia@example.com", "password1")
	samP := login("sam", "password1")
	if miaP.Role != application.RoleManager {
		t.Fatalf("expected manager role from token, got %q", miaP.Role)
	}

	t.Run("teams keep a single manager", func(t *testing.T) {
		team, err := svc.Teams.CreateTeam(ctx, rootP, application.TeamInput{Name: "core"})
		if err != nil {
			t.Fatalf("CreateTeam: %v", err)
		}
		if _, err := svc.Teams.AddMembers(ctx, rootP, team.ID, []string{mia.ID, kim.ID}); !errors.Is(err, application.ErrDuplicateManager) {
			t.Fatalf("expected ErrDuplicateManager, got %v", err)
		}
		team, err = svc.Teams.AddMembers(ctx, rootP, team.ID, []string{mia.ID, sam.ID})
		if err != nil {
			t.Fatalf("AddMembers: %v", err)
		}
		if len(team.Members) != 2 {
			t.Fatalf("expected two members, got %+v", team.Members)
		}
		mine, err := svc.Teams.MyTeam(ctx, samP)
		if err != nil || mine.ID != team.ID {
			t.Fatalf("MyTeam: team=%+v err=%v", mine, err)
		}
	})

	t.Run("task lifecycle", func(t *testing.T) {
		task, err := svc.Tasks.Create(ctx, miaP, application.TaskInput{Description: "write report", Deadline: h.Clock.Peek()})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		claimed, err := svc.Tasks.Claim(ctx, samP, task.ID)
		if err != nil || claimed.Status != workflow.StatusInProgress || *claimed.AssigneeID != sam.ID {
			t.Fatalf("Claim: task=%+v err=%v", claimed, err)
		}
		if _, err := svc.Tasks.Claim(ctx, miaP, task.ID); !errors.Is(err, application.ErrInvalidTransition) {
			t.Fatalf("expected second claim to fail, got %v", err)
		}
		if _, err := svc.Tasks.Complete(ctx, miaP, task.ID); !errors.Is(err, application.ErrNotAssignee) {
			t.Fatalf("expected ErrNotAssignee, got %v", err)
		}
		if _, err := svc.Comments.Add(ctx, samP, task.ID, application.CommentInput{Text: "half way"}); err != nil {
			t.Fatalf("Add comment: %v", err)
		}
		done, err := svc.Tasks.Complete(ctx, samP, task.ID)
		if err != nil || done.Status != workflow.StatusDone || done.CompletedAt == nil {
			t.Fatalf("Complete: task=%+v err=%v", done, err)
		}

		detail, err := svc.Tasks.Get(ctx, samP, task.ID)
		if err != nil || len(detail.Comments) != 1 {
			t.Fatalf("Get: task=%+v err=%v", detail, err)
		}

		if _, err := svc.Evaluations.Create(ctx, miaP, task.ID, application.EvaluationInput{Grade: 4}); err != nil {
			t.Fatalf("evaluate: %v", err)
		}
		if _, err := svc.Evaluations.Create(ctx, miaP, task.ID, application.EvaluationInput{Grade: 5}); !errors.Is(err, application.ErrAlreadyEvaluated) {
			t.Fatalf("expected ErrAlreadyEvaluated, got %v", err)
		}
		report, err := svc.Evaluations.QueryRange(ctx, samP, sam.ID, h.Clock.Peek(), h.Clock.Peek())
		if err != nil || len(report.Evaluations) != 1 || report.AverageGrade != 4 {
			t.Fatalf("QueryRange: report=%+v err=%v", report, err)
		}

		view, err := svc.Calendar.Daily(ctx, samP)
		if err != nil || len(view.Tasks) != 1 || view.Tasks[0].ID != task.ID {
			t.Fatalf("Daily: view=%+v err=%v", view, err)
		}
	})

	t.Run("meetings of one host stay an hour apart", func(t *testing.T) {
		at := h.Clock.Peek().Add(2 * time.Hour)
		first, err := svc.Meetings.Create(ctx, miaP, application.MeetingInput{Title: "plan", At: at, ParticipantIDs: []string{sam.ID}})
		if err != nil {
			t.Fatalf("Create meeting: %v", err)
		}
		_, err = svc.Meetings.Create(ctx, miaP, application.MeetingInput{Title: "clash", At: at.Add(time.Hour)})
		var conflict *application.SchedulingConflictError
		if !errors.As(err, &conflict) || conflict.MeetingID != first.ID {
			t.Fatalf("expected conflict with %s, got %v", first.ID, err)
		}
		if _, err := svc.Meetings.Create(ctx, miaP, application.MeetingInput{Title: "later", At: at.Add(61 * time.Minute)}); err != nil {
			t.Fatalf("expected meeting 61 minutes later to succeed: %v", err)
		}

		upcoming, err := svc.Meetings.ListUpcomingForUser(ctx, samP, sam.ID)
		if err != nil || len(upcoming) != 1 || upcoming[0].ID != first.ID {
			t.Fatalf("ListUpcomingForUser: meetings=%+v err=%v", upcoming, err)
		}
	})

	t.Run("logout revokes the token", func(t *testing.T) {
		result, err := svc.Auth.Login(ctx, application.LoginParams{Username: "sam", Password: "password1"})
		if err != nil {
			t.Fatalf("Login: %v", err)
		}
		_, identity, err := svc.Auth.Authenticate(ctx, result.Token)
		if err != nil {
			t.Fatalf("Authenticate: %v", err)
		}
		if err := svc.Auth.Logout(ctx, identity); err != nil {
			t.Fatalf("Logout: %v", err)
		}
		if _, _, err := svc.Auth.Authenticate(ctx, result.Token); !errors.Is(err, application.ErrUnauthenticated) {
			t.Fatalf("expected revoked token to fail, got %v", err)
		}
	})

	t.Run("disabled accounts cannot log in", func(t *testing.T) {
		if _, err := svc.Users.SetActive(ctx, rootP, kim.ID, false); err != nil {
			t.Fatalf("SetActive: %v", err)
		}
		_, err := svc.Auth.Login(ctx, application.LoginParams{Username: "kim", Password: "password1"})
		if !errors.Is(err, application.ErrAccountDisabled) {
			t.Fatalf("expected ErrAccountDisabled, got %v", err)
		}
	})
}
