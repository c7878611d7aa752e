package testfixtures

import (
	"log/slog"
	"testing"
	"time"

	"github.com/example/taskboard/internal/application"
	"github.com/example/taskboard/internal/token"
)

// FastArgon2Params keeps password hashing cheap in tests.
var FastArgon2Params = application.Argon2idParams{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 8, KeyLength: 16}

// Services is the full application graph wired onto a SQLiteHarness.
type Services struct {
	Tokens      *token.Service
	Users       *application.UserService
	Auth        *application.AuthService
	Teams       *application.TeamService
	Tasks       *application.TaskService
	Comments    *application.CommentService
	Evaluations *application.EvaluationService
	Meetings    *application.MeetingService
	Calendar    *application.CalendarService
}

// ServiceOption configures NewServices.
type ServiceOption func(*serviceConfig)

type serviceConfig struct {
	location *time.Location
	logger   *slog.Logger
	ids      *IDGenerator
}

// WithLocation sets the timezone used for calendar days.
func WithLocation(loc *time.Location) ServiceOption {
	return func(c *serviceConfig) { c.location = loc }
}

// WithLogger routes service logs to logger instead of discarding them.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(c *serviceConfig) { c.logger = logger }
}

// WithIDs replaces the shared identifier generator.
func WithIDs(ids *IDGenerator) ServiceOption {
	return func(c *serviceConfig) { c.ids = ids }
}

// NewServices builds every service on top of h, sharing h.Clock and one transactor.
func NewServices(tb testing.TB, h *SQLiteHarness, opts ...ServiceOption) *Services {
	tb.Helper()

	cfg := serviceConfig{location: time.UTC, logger: QuietLogger(), ids: NewIDGenerator("id")}
	for _, opt := range opts {
		opt(&cfg)
	}

	now := h.Clock.Now
	ids := cfg.ids.Func()
	hasher := application.NewArgon2idHasher(FastArgon2Params)

	tokens, err := token.NewService(token.Options{
		Secret:   []byte("test-secret"),
		TTL:      token.DefaultTTL,
		Now:      now,
		NewID:    NewIDGenerator("jti").Func(),
		Denylist: h.RevokedTokens,
	})
	if err != nil {
		tb.Fatalf("token service: %v", err)
	}

	return &Services{
		Tokens:      tokens,
		Users:       application.NewUserServiceWithLogger(h.Users, h.Pool, hasher, ids, now, cfg.logger),
		Auth:        application.NewAuthServiceWithLogger(h.Users, tokens, hasher, cfg.logger),
		Teams:       application.NewTeamServiceWithLogger(h.Teams, h.Users, h.Pool, ids, now, cfg.logger),
		Tasks:       application.NewTaskServiceWithLogger(h.Tasks, h.Comments, h.Users, h.Pool, ids, now, cfg.logger),
		Comments:    application.NewCommentServiceWithLogger(h.Comments, h.Tasks, h.Pool, ids, now, cfg.logger),
		Evaluations: application.NewEvaluationServiceWithLogger(h.Evaluations, h.Tasks, h.Pool, ids, now, cfg.location, cfg.logger),
		Meetings:    application.NewMeetingServiceWithLogger(h.Meetings, h.Users, h.Pool, ids, now, cfg.location, cfg.logger),
		Calendar:    application.NewCalendarServiceWithLogger(h.Tasks, h.Meetings, now, cfg.location, cfg.logger),
	}
}
