package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/taskboard/internal/scheduler"
)

// MeetingRepository captures the persistence operations needed by the meeting service.
type MeetingRepository interface {
	CreateMeeting(ctx context.Context, meeting Meeting) (Meeting, error)
	GetMeeting(ctx context.Context, id string) (Meeting, error)
	DeleteMeeting(ctx context.Context, id string) error
	ListMeetingsForParticipant(ctx context.Context, filter MeetingFilter) ([]Meeting, error)
}

// UserDirectory reports which of a set of user ids do not exist.
type UserDirectory interface {
	MissingUserIDs(ctx context.Context, ids []string) ([]string, error)
}

// MeetingService schedules meetings and keeps a host's meetings at least an hour apart.
type MeetingService struct {
	meetings    MeetingRepository
	users       UserDirectory
	tx          Transactor
	idGenerator func() string
	now         func() time.Time
	location    *time.Location
	window      time.Duration
	logger      *slog.Logger
}

// NewMeetingService wires dependencies for the meeting service. "Today" is computed in
// location, or UTC when nil.
func NewMeetingService(meetings MeetingRepository, users UserDirectory, tx Transactor, idGenerator func() string, now func() time.Time, location *time.Location) *MeetingService {
	return NewMeetingServiceWithLogger(meetings, users, tx, idGenerator, now, location, nil)
}

// NewMeetingServiceWithLogger wires dependencies for the meeting service with a specific logger.
func NewMeetingServiceWithLogger(meetings MeetingRepository, users UserDirectory, tx Transactor, idGenerator func() string, now func() time.Time, location *time.Location, logger *slog.Logger) *MeetingService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	if location == nil {
		location = time.UTC
	}
	return &MeetingService{
		meetings:    meetings,
		users:       users,
		tx:          defaultTransactor(tx),
		idGenerator: idGenerator,
		now:         now,
		location:    location,
		window:      scheduler.DefaultWindow,
		logger:      defaultLogger(logger),
	}
}

func (s *MeetingService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "MeetingService", operation, attrs...)
}

func (s *MeetingService) ready() error {
	if s == nil {
		return fmt.Errorf("MeetingService is nil")
	}
	if s.meetings == nil || s.users == nil {
		return fmt.Errorf("meeting repositories not configured")
	}
	return nil
}

// Create schedules a meeting hosted by the caller. The host always participates.
func (s *MeetingService) Create(ctx context.Context, principal Principal, input MeetingInput) (meeting Meeting, err error) {
	if err = s.ready(); err != nil {
		return
	}

	input.Title = strings.TrimSpace(input.Title)
	input.Description = strings.TrimSpace(input.Description)
	at := input.At.UTC().Truncate(time.Minute)
	logger := s.loggerWith(ctx, "Create", "principal_id", principal.UserID, "at", at)
	defer func() {
		logOutcome(ctx, logger, err, "meeting scheduled", "meeting_id", meeting.ID)
	}()

	if err = requireAuthenticated(principal); err != nil {
		return
	}

	vErr := validateInput(input)
	switch {
	case input.At.IsZero():
		vErr.add("date", "date is required")
	case !input.At.After(s.now()):
		vErr.add("date", "date must be in the future")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	participants := uniqueIDs(append([]string{principal.UserID}, input.ParticipantIDs...))

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		missing, lookupErr := s.users.MissingUserIDs(ctx, participants)
		if lookupErr != nil {
			return lookupErr
		}
		if len(missing) > 0 {
			return fmt.Errorf("%w: %s", ErrUserNotFound, strings.Join(missing, ", "))
		}

		existing, found, conflictErr := s.HasConflict(ctx, principal.UserID, at)
		if conflictErr != nil {
			return conflictErr
		}
		if found {
			return &SchedulingConflictError{MeetingID: existing.ID, At: existing.At}
		}

		created, createErr := s.meetings.CreateMeeting(ctx, Meeting{
			ID:             s.idGenerator(),
			HostID:         principal.UserID,
			Title:          input.Title,
			Description:    input.Description,
			At:             at,
			ParticipantIDs: participants,
			CreatedAt:      s.now().UTC(),
		})
		if createErr != nil {
			return createErr
		}
		meeting = created
		return nil
	})
	return
}

// HasConflict returns the meeting of hostID closest to at within an hour either side,
// bounds included.
func (s *MeetingService) HasConflict(ctx context.Context, hostID string, at time.Time) (Meeting, bool, error) {
	if err := s.ready(); err != nil {
		return Meeting{}, false, err
	}

	from, to := scheduler.Window(at, s.window)
	nearby, err := s.meetings.ListMeetingsForParticipant(ctx, MeetingFilter{
		ParticipantID: hostID,
		From:          from,
		Before:        to.Add(time.Second),
	})
	if err != nil {
		return Meeting{}, false, err
	}

	candidates := make([]scheduler.Meeting, len(nearby))
	byID := make(map[string]Meeting, len(nearby))
	for i, m := range nearby {
		candidates[i] = scheduler.Meeting{ID: m.ID, Start: m.At}
		byID[m.ID] = m
	}
	conflict, found := scheduler.DetectConflict(candidates, at, s.window)
	if !found {
		return Meeting{}, false, nil
	}
	return byID[conflict.WithMeetingID], true, nil
}

// Delete cancels a meeting. Only its host may do so.
func (s *MeetingService) Delete(ctx context.Context, principal Principal, meetingID string) (err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "Delete", "principal_id", principal.UserID, "meeting_id", meetingID)
	defer func() {
		logOutcome(ctx, logger, err, "meeting cancelled")
	}()

	if err = requireAuthenticated(principal); err != nil {
		return
	}

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		meeting, getErr := s.meetings.GetMeeting(ctx, meetingID)
		if getErr != nil {
			return fromStore(getErr, ErrMeetingNotFound)
		}
		if meeting.HostID != principal.UserID {
			return ErrForbidden
		}
		return fromStore(s.meetings.DeleteMeeting(ctx, meetingID), ErrMeetingNotFound)
	})
	return
}

// ListUpcomingForUser returns the meetings userID takes part in from the start of today
// onwards, ordered by time. Users may list their own; managers and administrators anyone's.
func (s *MeetingService) ListUpcomingForUser(ctx context.Context, principal Principal, userID string) ([]Meeting, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if err := requireSelfOrRole(principal, userID, RoleManager, RoleAdmin); err != nil {
		return nil, err
	}

	today := startOfDay(s.now().In(s.location), s.location)
	return s.meetings.ListMeetingsForParticipant(ctx, MeetingFilter{
		ParticipantID: userID,
		From:          today.UTC(),
	})
}
