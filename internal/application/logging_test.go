package application

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/example/taskboard/internal/logging"
)

func TestDefaultLogger(t *testing.T) {
	t.Parallel()

	custom := slog.New(slog.NewTextHandler(io.Discard, nil))
	if got := defaultLogger(custom); got != custom {
		t.Fatalf("expected custom logger to be returned")
	}

	if got := defaultLogger(nil); got != slog.Default() {
		t.Fatalf("expected default logger when none provided")
	}
}

func TestServiceLoggerPrefersContextLogger(t *testing.T) {
	t.Parallel()

	var ctxBuf, baseBuf bytes.Buffer
	ctxLogger := slog.New(slog.NewTextHandler(&ctxBuf, nil))
	base := slog.New(slog.NewTextHandler(&baseBuf, nil))

	ctx := logging.ContextWithLogger(context.Background(), ctxLogger)
	serviceLogger(ctx, base, "TaskService", "Claim", "task_id", "t-1").Info("hello")

	if baseBuf.Len() != 0 {
		t.Fatalf("expected base logger to stay unused")
	}
	out := ctxBuf.String()
	for _, want := range []string{"service=TaskService", "operation=Claim", "task_id=t-1"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in %q", want, out)
		}
	}
}

func TestErrorKind(t *testing.T) {
	t.Parallel()

	cases := map[string]error{
		"":                   nil,
		"validation":         &ValidationError{FieldErrors: map[string]string{"a": "b"}},
		"unauthenticated":    ErrInvalidCredentials,
		"forbidden":          ErrNotAssignee,
		"not_found":          ErrTaskNotFound,
		"invalid_transition": ErrNotDone,
		"conflict":           &SchedulingConflictError{},
		"unexpected":         errors.New("boom"),
	}
	for want, err := range cases {
		if got := ErrorKind(err); got != want {
			t.Fatalf("ErrorKind(%v) = %q, want %q", err, got, want)
		}
	}
	if got := ErrorKind(invalidRange()); got != "validation" {
		t.Fatalf("expected an invalid range to be validation, got %q", got)
	}
}
