package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/taskboard/internal/application"
	"github.com/example/taskboard/internal/persistence"
	"github.com/example/taskboard/internal/testfixtures"
)

func TestMeetingRepository_Participants(t *testing.T) {
	t.Parallel()

	h := testfixtures.NewSQLiteHarness(t)
	ctx := context.Background()
	host := h.SeedUser(t)
	guest := h.SeedUser(t)
	at := h.Clock.Peek().Add(2 * time.Hour)

	meeting := h.SeedMeeting(t, testfixtures.NewMeeting(host.ID, at, guest.ID))
	if len(meeting.ParticipantIDs) != 2 || meeting.ParticipantIDs[0] != host.ID || meeting.ParticipantIDs[1] != guest.ID {
		t.Fatalf("unexpected participants %v", meeting.ParticipantIDs)
	}
	if !meeting.At.Equal(at) {
		t.Fatalf("expected start %s, got %s", at, meeting.At)
	}

	h.SeedMeeting(t, testfixtures.NewMeeting(host.ID, at.Add(24*time.Hour)))

	tests := []struct {
		name   string
		filter application.MeetingFilter
		want   int
	}{
		{"guest open ended", application.MeetingFilter{ParticipantID: guest.ID, From: h.Clock.Peek()}, 1},
		{"host open ended", application.MeetingFilter{ParticipantID: host.ID, From: h.Clock.Peek()}, 2},
		{"host bounded", application.MeetingFilter{ParticipantID: host.ID, From: at, Before: at.Add(time.Hour)}, 1},
		{"after every meeting", application.MeetingFilter{ParticipantID: host.ID, From: at.Add(48 * time.Hour)}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meetings, err := h.Meetings.ListMeetingsForParticipant(ctx, tt.filter)
			if err != nil {
				t.Fatalf("ListMeetingsForParticipant: %v", err)
			}
			if len(meetings) != tt.want {
				t.Fatalf("expected %d meetings, got %+v", tt.want, meetings)
			}
			for _, m := range meetings {
				if len(m.ParticipantIDs) == 0 {
					t.Fatalf("meeting %s loaded without participants", m.ID)
				}
			}
		})
	}
}

func TestMeetingRepository_CreateIsAtomic(t *testing.T) {
	t.Parallel()

	h := testfixtures.NewSQLiteHarness(t)
	ctx := context.Background()
	host := h.SeedUser(t)

	meeting := testfixtures.NewMeeting(host.ID, h.Clock.Peek().Add(time.Hour), "ghost")
	if _, err := h.Meetings.CreateMeeting(ctx, meeting); !errors.Is(err, persistence.ErrForeignKeyViolation) {
		t.Fatalf("expected foreign key violation, got %v", err)
	}
	if _, err := h.Meetings.GetMeeting(ctx, meeting.ID); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected meeting row rolled back, got %v", err)
	}
}

func TestMeetingRepository_DeleteCascades(t *testing.T) {
	t.Parallel()

	h := testfixtures.NewSQLiteHarness(t)
	ctx := context.Background()
	host := h.SeedUser(t)
	guest := h.SeedUser(t)
	at := h.Clock.Peek().Add(time.Hour)
	hosted := h.SeedMeeting(t, testfixtures.NewMeeting(host.ID, at, guest.ID))

	if err := h.Users.DeleteUser(ctx, guest.ID); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}
	meeting, err := h.Meetings.GetMeeting(ctx, hosted.ID)
	if err != nil || len(meeting.ParticipantIDs) != 1 {
		t.Fatalf("expected guest removed from participants, meeting=%+v err=%v", meeting, err)
	}

	if err := h.Users.DeleteUser(ctx, host.ID); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}
	if _, err := h.Meetings.GetMeeting(ctx, hosted.ID); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected meeting removed with its host, got %v", err)
	}
	if err := h.Meetings.DeleteMeeting(ctx, hosted.ID); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRevokedTokenRepository(t *testing.T) {
	t.Parallel()

	h := testfixtures.NewSQLiteHarness(t)
	ctx := context.Background()
	now := h.Clock.Peek()

	if err := h.RevokedTokens.Revoke(ctx, "jti-live", now.Add(20*time.Minute)); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if err := h.RevokedTokens.Revoke(ctx, "jti-short", now.Add(time.Minute)); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if err := h.RevokedTokens.Revoke(ctx, "jti-live", now.Add(30*time.Minute)); err != nil {
		t.Fatalf("Revoke twice: %v", err)
	}

	for _, id := range []string{"jti-live", "jti-short"} {
		if revoked, err := h.RevokedTokens.IsRevoked(ctx, id); err != nil || !revoked {
			t.Fatalf("IsRevoked(%s) = %v, %v", id, revoked, err)
		}
	}
	if revoked, err := h.RevokedTokens.IsRevoked(ctx, "jti-unknown"); err != nil || revoked {
		t.Fatalf("IsRevoked(unknown) = %v, %v", revoked, err)
	}

	h.Clock.Advance(5 * time.Minute)
	if revoked, err := h.RevokedTokens.IsRevoked(ctx, "jti-short"); err != nil || revoked {
		t.Fatalf("expected lapsed entry to be ignored, got %v, %v", revoked, err)
	}
	pruned, err := h.RevokedTokens.PruneExpired(ctx)
	if err != nil || pruned != 1 {
		t.Fatalf("PruneExpired = %d, %v", pruned, err)
	}
	if revoked, err := h.RevokedTokens.IsRevoked(ctx, "jti-live"); err != nil || !revoked {
		t.Fatalf("expected live entry to survive pruning, got %v, %v", revoked, err)
	}
}
