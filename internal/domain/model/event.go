// Package model contains domain models passed between layers.
package model

import "time"

// Known auxiliary counter keys recorded alongside a score event.
const (
	CounterHintsUsed          = "hints_used"
	CounterAttempts           = "attempts"
	CounterSuccessfulAttempts = "successful_attempts"
	CounterFailedAttempts     = "failed_attempts"
	CounterMaxStreak          = "max_streak"
)

// Score bounds shared by the event store, the feature builder and the predictor.
const (
	MinScore = 0
	MaxScore = 100
)

// ScoreEvent is one recorded attempt of a user at an activity.
// Events are owned by the event-logging subsystem and are read-only here.
type ScoreEvent struct {
	EventID         string             // opaque id assigned by the writer, may be empty
	UserID          int64              // subject identifier
	Activity        Activity           // game the attempt belongs to
	Score           int                // 0..100
	DurationSeconds *int               // nil when the client did not report a duration
	Counters        map[string]float64 // auxiliary counters, e.g. hints_used
	OccurredAt      time.Time          // when the attempt finished
}

// Duration returns the reported duration in seconds, or 0 when absent.
func (e ScoreEvent) Duration() float64 {
	if e.DurationSeconds == nil {
		return 0
	}
	return float64(*e.DurationSeconds)
}

// Counter returns the named auxiliary counter, or 0 when absent.
func (e ScoreEvent) Counter(name string) float64 {
	if e.Counters == nil {
		return 0
	}
	return e.Counters[name]
}

// GroupKey identifies the (user, activity) series an event belongs to.
type GroupKey struct {
	UserID   int64
	Activity Activity
}

// Key returns the group key of the event.
func (e ScoreEvent) Key() GroupKey {
	return GroupKey{UserID: e.UserID, Activity: e.Activity}
}

// Less reports whether a orders before b: by user, activity code, then time.
func Less(a, b ScoreEvent) bool {
	if a.UserID != b.UserID {
		return a.UserID < b.UserID
	}
	if a.Activity != b.Activity {
		return a.Activity.Code() < b.Activity.Code()
	}
	return a.OccurredAt.Before(b.OccurredAt)
}
