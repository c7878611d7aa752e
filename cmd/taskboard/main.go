package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/example/taskboard/internal/application"
	"github.com/example/taskboard/internal/config"
	httptransport "github.com/example/taskboard/internal/http"
	"github.com/example/taskboard/internal/logging"
	"github.com/example/taskboard/internal/persistence/sqlite"
	"github.com/example/taskboard/internal/persistence/sqlite/migration"
	"github.com/example/taskboard/internal/token"
)

func main() {
	bootstrap := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.Load()
	if err != nil {
		bootstrap.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger, logCloser, err := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		bootstrap.Error("failed to configure logging", "error", err)
		os.Exit(1)
	}
	defer logCloser.Close()

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			Environment:      cfg.Environment,
			AttachStacktrace: true,
		}); err != nil {
			logger.Error("failed to initialise sentry", "error", err)
			os.Exit(1)
		}
		defer sentry.Flush(2 * time.Second)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("taskboard stopped with error", "error", err)
		stop()
		os.Exit(1)
	}
}

// run serves the API until ctx is cancelled, then drains in-flight requests.
func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	app, err := newApp(ctx, cfg, logger, appOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if cerr := app.Close(); cerr != nil {
			logger.Error("failed to release resources", "error", cerr)
		}
	}()

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           app.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("taskboard API listening", "addr", server.Addr, "timezone", cfg.Location.String())
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down", "timeout", cfg.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

type appOptions struct {
	now    func() time.Time
	argon2 application.Argon2idParams
}

type app struct {
	handler http.Handler
	closers []io.Closer
}

// newApp opens the database, wires every service and builds the HTTP handler.
func newApp(ctx context.Context, cfg config.Config, logger *slog.Logger, opts appOptions) (_ *app, err error) {
	now := opts.now
	if now == nil {
		now = time.Now
	}
	location := cfg.Location
	if location == nil {
		location = time.UTC
	}

	a := &app{}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	pool, err := sqlite.NewConnectionPool(ctx, migration.DefaultSQLiteConfig(cfg.SQLitePath))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	a.closers = append(a.closers, pool)

	if err := pool.Migrate(ctx, logger); err != nil {
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	users := sqlite.NewUserRepository(pool)
	teams := sqlite.NewTeamRepository(pool)
	tasks := sqlite.NewTaskRepository(pool)
	comments := sqlite.NewCommentRepository(pool)
	evaluations := sqlite.NewEvaluationRepository(pool)
	meetings := sqlite.NewMeetingRepository(pool)

	var denylist token.Denylist = sqlite.NewRevokedTokenRepository(pool, now)
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		a.closers = append(a.closers, client)
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("connect to redis at %s: %w", cfg.RedisAddr, err)
		}
		denylist = token.NewRedisDenylist(client, "", now)
		logger.Info("token denylist backed by redis", "addr", cfg.RedisAddr)
	}

	tokens, err := token.NewService(token.Options{
		Secret:   []byte(cfg.TokenSecret),
		TTL:      cfg.TokenTTL,
		Now:      now,
		Denylist: denylist,
	})
	if err != nil {
		return nil, err
	}

	hasher := application.NewArgon2idHasher(opts.argon2)
	ids := uuid.NewString

	userService := application.NewUserServiceWithLogger(users, pool, hasher, ids, now, logger)
	authService := application.NewAuthServiceWithLogger(users, tokens, hasher, logger)
	teamService := application.NewTeamServiceWithLogger(teams, users, pool, ids, now, logger)
	taskService := application.NewTaskServiceWithLogger(tasks, comments, users, pool, ids, now, logger)
	commentService := application.NewCommentServiceWithLogger(comments, tasks, pool, ids, now, logger)
	evaluationService := application.NewEvaluationServiceWithLogger(evaluations, tasks, pool, ids, now, location, logger)
	meetingService := application.NewMeetingServiceWithLogger(meetings, users, pool, ids, now, location, logger)
	calendarService := application.NewCalendarServiceWithLogger(tasks, meetings, now, location, logger)

	if cfg.Admin.Enabled() {
		admin, created, err := userService.EnsureAdmin(ctx, application.RegisterInput{
			Email:    cfg.Admin.Email,
			Name:     cfg.Admin.Name,
			Password: cfg.Admin.Password,
		})
		if err != nil {
			return nil, fmt.Errorf("bootstrap administrator: %w", err)
		}
		if created {
			logger.Info("administrator account created", "user_id", admin.ID, "email", admin.Email)
		}
	}

	a.handler = httptransport.NewRouter(httptransport.RouterConfig{
		Authenticator: authService,
		Auth:          httptransport.NewAuthHandler(authService, logger),
		Users:         httptransport.NewUserHandler(userService, teamService, logger),
		Teams:         httptransport.NewTeamHandler(teamService, logger),
		Tasks:         httptransport.NewTaskHandler(taskService, logger),
		Comments:      httptransport.NewCommentHandler(commentService, logger),
		Evaluations:   httptransport.NewEvaluationHandler(evaluationService, logger),
		Meetings:      httptransport.NewMeetingHandler(meetingService, logger),
		Calendar:      httptransport.NewCalendarHandler(calendarService, logger),
		Health:        pool.Ping,
		Logger:        logger,
		Middleware: []func(http.Handler) http.Handler{
			httptransport.RequestLogger(logger),
			httptransport.Recover(logger),
		},
	})
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
