package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// TaskLister lists tasks matching a filter.
type TaskLister interface {
	ListTasks(ctx context.Context, filter TaskFilter) ([]Task, error)
}

// MeetingLister lists the meetings a user takes part in.
type MeetingLister interface {
	ListMeetingsForParticipant(ctx context.Context, filter MeetingFilter) ([]Meeting, error)
}

// CalendarService combines a user's task deadlines and meetings for a day or a month.
type CalendarService struct {
	tasks    TaskLister
	meetings MeetingLister
	now      func() time.Time
	location *time.Location
	logger   *slog.Logger
}

// NewCalendarService wires dependencies for the calendar service. Days are computed in
// location, or UTC when nil.
func NewCalendarService(tasks TaskLister, meetings MeetingLister, now func() time.Time, location *time.Location) *CalendarService {
	return NewCalendarServiceWithLogger(tasks, meetings, now, location, nil)
}

// NewCalendarServiceWithLogger wires dependencies for the calendar service with a specific logger.
func NewCalendarServiceWithLogger(tasks TaskLister, meetings MeetingLister, now func() time.Time, location *time.Location, logger *slog.Logger) *CalendarService {
	if now == nil {
		now = time.Now
	}
	if location == nil {
		location = time.UTC
	}
	return &CalendarService{
		tasks:    tasks,
		meetings: meetings,
		now:      now,
		location: location,
		logger:   defaultLogger(logger),
	}
}

// Daily returns the caller's tasks due today and meetings taking place today.
func (s *CalendarService) Daily(ctx context.Context, principal Principal) (CalendarView, error) {
	today := startOfDay(s.now().In(s.location), s.location)
	return s.view(ctx, principal, "Daily", today, today.AddDate(0, 0, 1))
}

// Monthly returns the caller's tasks due and meetings taking place in the current month.
func (s *CalendarService) Monthly(ctx context.Context, principal Principal) (CalendarView, error) {
	y, m, _ := s.now().In(s.location).Date()
	first := time.Date(y, m, 1, 0, 0, 0, 0, s.location)
	return s.view(ctx, principal, "Monthly", first, first.AddDate(0, 1, 0))
}

func (s *CalendarService) view(ctx context.Context, principal Principal, operation string, from, to time.Time) (view CalendarView, err error) {
	if s == nil {
		err = fmt.Errorf("CalendarService is nil")
		return
	}
	if s.tasks == nil || s.meetings == nil {
		err = fmt.Errorf("calendar repositories not configured")
		return
	}

	logger := s.loggerWith(ctx, operation, "principal_id", principal.UserID)
	defer func() {
		if err != nil {
			logOutcome(ctx, logger, err, "calendar built")
			return
		}
		logger.DebugContext(ctx, "calendar built", "tasks", len(view.Tasks), "meetings", len(view.Meetings))
	}()

	if err = requireAuthenticated(principal); err != nil {
		return
	}

	view = CalendarView{UserID: principal.UserID, From: from, To: to}
	view.Tasks, err = s.tasks.ListTasks(ctx, TaskFilter{
		AssigneeID:   principal.UserID,
		DeadlineFrom: from,
		DeadlineTo:   to.AddDate(0, 0, -1),
	})
	if err != nil {
		return
	}
	view.Meetings, err = s.meetings.ListMeetingsForParticipant(ctx, MeetingFilter{
		ParticipantID: principal.UserID,
		From:          from.UTC(),
		Before:        to.UTC(),
	})
	return
}

func (s *CalendarService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "CalendarService", operation, attrs...)
}
