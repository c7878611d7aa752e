package scheduler

import (
	"sort"
	"time"
)

// DefaultWindow is the minimum distance between two meetings of the same person.
const DefaultWindow = time.Hour

// Meeting is the slice of a meeting the conflict check needs.
type Meeting struct {
	ID    string
	Start time.Time
}

// Conflict describes an existing meeting that collides with a candidate time.
type Conflict struct {
	WithMeetingID string
	At            time.Time
	Distance      time.Duration
}

// Window returns the closed interval around at that another meeting must not fall into.
func Window(at time.Time, window time.Duration) (time.Time, time.Time) {
	if window <= 0 {
		window = DefaultWindow
	}
	return at.Add(-window), at.Add(window)
}

// DetectConflict reports the existing meeting closest to candidate whose start lies within
// window of it, bounds included. Ties are broken by the earlier meeting, then by ID.
func DetectConflict(existing []Meeting, candidate time.Time, window time.Duration) (Conflict, bool) {
	if window <= 0 {
		window = DefaultWindow
	}

	hits := make([]Conflict, 0, len(existing))
	for _, meeting := range existing {
		distance := absDuration(meeting.Start.Sub(candidate))
		if distance > window {
			continue
		}
		hits = append(hits, Conflict{
			WithMeetingID: meeting.ID,
			At:            meeting.Start,
			Distance:      distance,
		})
	}
	if len(hits) == 0 {
		return Conflict{}, false
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Distance != hits[j].Distance {
			return hits[i].Distance < hits[j].Distance
		}
		if !hits[i].At.Equal(hits[j].At) {
			return hits[i].At.Before(hits[j].At)
		}
		return hits[i].WithMeetingID < hits[j].WithMeetingID
	})
	return hits[0], true
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
