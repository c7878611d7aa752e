package sqlite

import (
	"context"
	"fmt"

	"github.com/example/taskboard/internal/application"
	"github.com/example/taskboard/internal/persistence"
)

// MeetingRepository stores meetings and their participant lists.
type MeetingRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewMeetingRepository creates a new SQLite meeting repository.
func NewMeetingRepository(pool *ConnectionPool) *MeetingRepository {
	return &MeetingRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

const meetingColumns = `m.id, m.host_id, m.title, m.description, m.starts_at, m.created_at`

// CreateMeeting inserts a meeting and its participants atomically.
func (r *MeetingRepository) CreateMeeting(ctx context.Context, meeting application.Meeting) (application.Meeting, error) {
	if meeting.ID == "" || meeting.HostID == "" {
		return application.Meeting{}, persistence.ErrConstraintViolation
	}

	err := r.pool.WithinTransaction(ctx, func(ctx context.Context) error {
		if _, err := r.helper.Exec(ctx, `
			INSERT INTO meetings (id, host_id, title, description, starts_at, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			meeting.ID, meeting.HostID, meeting.Title, meeting.Description,
			formatTime(meeting.At), formatTime(meeting.CreatedAt),
		); err != nil {
			return r.mapper.MapError(err)
		}
		for _, userID := range meeting.ParticipantIDs {
			if _, err := r.helper.Exec(ctx,
				`INSERT INTO meeting_participants (meeting_id, user_id) VALUES (?, ?)`,
				meeting.ID, userID,
			); err != nil {
				return r.mapper.MapError(err)
			}
		}
		return nil
	})
	if err != nil {
		return application.Meeting{}, err
	}
	return r.GetMeeting(ctx, meeting.ID)
}

// GetMeeting retrieves a meeting with its participants.
func (r *MeetingRepository) GetMeeting(ctx context.Context, id string) (application.Meeting, error) {
	meeting, err := scanMeeting(r.helper.QueryRow(ctx, `SELECT `+meetingColumns+` FROM meetings m WHERE m.id = ?`, id))
	if err != nil {
		return application.Meeting{}, r.mapper.MapError(err)
	}
	participants, err := r.participants(ctx, []string{meeting.ID})
	if err != nil {
		return application.Meeting{}, err
	}
	meeting.ParticipantIDs = participants[meeting.ID]
	return meeting, nil
}

// DeleteMeeting removes a meeting and its participant rows.
func (r *MeetingRepository) DeleteMeeting(ctx context.Context, id string) error {
	result, err := r.helper.Exec(ctx, `DELETE FROM meetings WHERE id = ?`, id)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return expectAffected(result)
}

// ListMeetingsForParticipant returns meetings the user takes part in, ordered by start.
func (r *MeetingRepository) ListMeetingsForParticipant(ctx context.Context, filter application.MeetingFilter) ([]application.Meeting, error) {
	query := `
		SELECT ` + meetingColumns + `
		FROM meetings m
		JOIN meeting_participants p ON p.meeting_id = m.id
		WHERE p.user_id = ? AND m.starts_at >= ?`
	args := []any{filter.ParticipantID, formatTime(filter.From)}
	if !filter.Before.IsZero() {
		query += ` AND m.starts_at < ?`
		args = append(args, formatTime(filter.Before))
	}
	query += ` ORDER BY m.starts_at ASC, m.id ASC`

	rows, err := r.helper.Query(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}

	var meetings []application.Meeting
	for rows.Next() {
		meeting, err := scanMeeting(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		meetings = append(meetings, meeting)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if len(meetings) == 0 {
		return nil, nil
	}

	ids := make([]string, len(meetings))
	for i, meeting := range meetings {
		ids[i] = meeting.ID
	}
	participants, err := r.participants(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range meetings {
		meetings[i].ParticipantIDs = participants[meetings[i].ID]
	}
	return meetings, nil
}

func (r *MeetingRepository) participants(ctx context.Context, meetingIDs []string) (map[string][]string, error) {
	args := make([]any, len(meetingIDs))
	for i, id := range meetingIDs {
		args[i] = id
	}
	rows, err := r.helper.Query(ctx, `
		SELECT meeting_id, user_id
		FROM meeting_participants
		WHERE meeting_id IN (`+placeholders(len(meetingIDs))+`)
		ORDER BY meeting_id, user_id`,
		args...,
	)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	out := make(map[string][]string, len(meetingIDs))
	for rows.Next() {
		var meetingID, userID string
		if err := rows.Scan(&meetingID, &userID); err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		out[meetingID] = append(out[meetingID], userID)
	}
	return out, rows.Err()
}

func scanMeeting(row rowScanner) (application.Meeting, error) {
	var (
		meeting   application.Meeting
		startsAt  string
		createdAt string
	)
	if err := row.Scan(&meeting.ID, &meeting.HostID, &meeting.Title, &meeting.Description, &startsAt, &createdAt); err != nil {
		return application.Meeting{}, err
	}
	var err error
	if meeting.At, err = parseTime(startsAt, "starts_at"); err != nil {
		return application.Meeting{}, err
	}
	if meeting.CreatedAt, err = parseTime(createdAt, "created_at"); err != nil {
		return application.Meeting{}, err
	}
	return meeting, nil
}
