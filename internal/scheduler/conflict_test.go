package scheduler

import (
	"testing"
	"time"
)

func TestDetectConflict(t *testing.T) {
	base := time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)

	t.Run("meeting inside the window produces conflict", func(t *testing.T) {
		existing := []Meeting{{ID: "m-1", Start: base.Add(30 * time.Minute)}}

		conflict, ok := DetectConflict(existing, base, DefaultWindow)
		if !ok {
			t.Fatalf("expected a conflict")
		}
		if conflict.WithMeetingID != "m-1" || !conflict.At.Equal(existing[0].Start) {
			t.Fatalf("unexpected conflict: %#v", conflict)
		}
	})

	t.Run("window bounds are inclusive on both sides", func(t *testing.T) {
		for _, offset := range []time.Duration{time.Hour, -time.Hour} {
			existing := []Meeting{{ID: "edge", Start: base.Add(offset)}}
			if _, ok := DetectConflict(existing, base, DefaultWindow); !ok {
				t.Fatalf("expected conflict at offset %s", offset)
			}
		}
	})

	t.Run("meetings outside the window yield no conflict", func(t *testing.T) {
		existing := []Meeting{
			{ID: "before", Start: base.Add(-time.Hour - time.Minute)},
			{ID: "after", Start: base.Add(time.Hour + time.Minute)},
		}
		if conflict, ok := DetectConflict(existing, base, DefaultWindow); ok {
			t.Fatalf("unexpected conflict: %#v", conflict)
		}
	})

	t.Run("closest meeting is reported", func(t *testing.T) {
		existing := []Meeting{
			{ID: "far", Start: base.Add(-50 * time.Minute)},
			{ID: "near", Start: base.Add(10 * time.Minute)},
		}
		conflict, ok := DetectConflict(existing, base, 0)
		if !ok || conflict.WithMeetingID != "near" {
			t.Fatalf("expected nearest conflict, got %#v (ok=%v)", conflict, ok)
		}
		if conflict.Distance != 10*time.Minute {
			t.Fatalf("unexpected distance %s", conflict.Distance)
		}
	})
}

func TestWindow(t *testing.T) {
	at := time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)
	from, to := Window(at, 0)
	if !from.Equal(at.Add(-time.Hour)) || !to.Equal(at.Add(time.Hour)) {
		t.Fatalf("unexpected window %s..%s", from, to)
	}
}
