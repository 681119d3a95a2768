// Package features turns ordered score histories into fixed-width feature vectors.
//
// A window is a contiguous run of windowSize events of one (user, activity)
// group. Every vector is computed from its window plus the first event of the
// group (for tenure); the event after the window is only ever used as a label.
package features

import (
	"fmt"
	"math"
	"sort"

	"github.com/okian/progresscast/internal/domain/model"
	"gonum.org/v1/gonum/stat"
)

const (
	secondsPerDay  = 86400
	minutesPerHour = 60
)

// FeatureNames is the ordered feature schema. Persisted scalers record it and
// are rejected on load when it no longer matches.
var FeatureNames = []string{ //nolint:gochecknoglobals // schema definition
	"attempt_number",
	"avg_score",
	"std_score",
	"avg_duration",
	"total_hints",
	"avg_successful_attempts",
	"avg_failed_attempts",
	"failed_attempts_trend",
	"avg_max_streak",
	"time_of_day",
	"score_trend",
	"last_score",
	"score_improvement",
	"days_since_start",
}

// Arity is the number of features a fitted scaler or model expects.
var Arity = len(FeatureNames) //nolint:gochecknoglobals // derived from FeatureNames

// FeatureVector is one window's worth of engineered features.
// Field order matches FeatureNames.
type FeatureVector struct {
	AttemptNumber         float64 `json:"attempt_number"`
	AvgScore              float64 `json:"avg_score"`
	StdScore              float64 `json:"std_score"`
	AvgDuration           float64 `json:"avg_duration"`
	TotalHints            float64 `json:"total_hints"`
	AvgSuccessfulAttempts float64 `json:"avg_successful_attempts"`
	AvgFailedAttempts     float64 `json:"avg_failed_attempts"`
	FailedAttemptsTrend   float64 `json:"failed_attempts_trend"`
	AvgMaxStreak          float64 `json:"avg_max_streak"`
	TimeOfDay             float64 `json:"time_of_day"`
	ScoreTrend            float64 `json:"score_trend"`
	LastScore             float64 `json:"last_score"`
	ScoreImprovement      float64 `json:"score_improvement"`
	DaysSinceStart        float64 `json:"days_since_start"`
}

// Values returns the features in schema order. Non-finite values become 0.
func (v FeatureVector) Values() []float64 {
	out := []float64{
		v.AttemptNumber,
		v.AvgScore,
		v.StdScore,
		v.AvgDuration,
		v.TotalHints,
		v.AvgSuccessfulAttempts,
		v.AvgFailedAttempts,
		v.FailedAttemptsTrend,
		v.AvgMaxStreak,
		v.TimeOfDay,
		v.ScoreTrend,
		v.LastScore,
		v.ScoreImprovement,
		v.DaysSinceStart,
	}
	for i, x := range out {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			out[i] = 0
		}
	}
	return out
}

// TrainingSet pairs feature vectors with the next observed score.
type TrainingSet struct {
	X []FeatureVector
	Y []float64
}

// Len returns the number of examples.
func (s TrainingSet) Len() int { return len(s.X) }

// Matrix returns X as rows of schema-ordered values.
func (s TrainingSet) Matrix() [][]float64 {
	rows := make([][]float64, len(s.X))
	for i, v := range s.X {
		rows[i] = v.Values()
	}
	return rows
}

// Group is the ordered history of one (user, activity) pair.
type Group struct {
	Key    model.GroupKey
	Events []model.ScoreEvent
}

// GroupEvents sorts a copy of rows by user, activity and time and splits it
// into groups in that order.
func GroupEvents(rows []model.ScoreEvent) []Group {
	sorted := make([]model.ScoreEvent, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool { return model.Less(sorted[i], sorted[j]) })

	var groups []Group
	for _, e := range sorted {
		n := len(groups)
		if n == 0 || groups[n-1].Key != e.Key() {
			groups = append(groups, Group{Key: e.Key()})
			n++
		}
		groups[n-1].Events = append(groups[n-1].Events, e)
	}
	return groups
}

// BuildTrainingSet slides a window of windowSize over every group with at
// least windowSize+1 events and labels each window with the following score.
func BuildTrainingSet(rows []model.ScoreEvent, windowSize int) (TrainingSet, error) {
	if windowSize < 1 {
		return TrainingSet{}, fmt.Errorf("%w: %d", ErrInvalidWindow, windowSize)
	}
	if len(rows) < windowSize+1 {
		return TrainingSet{}, fmt.Errorf("%w: need at least %d entries, got %d",
			model.ErrInsufficientData, windowSize+1, len(rows))
	}

	var set TrainingSet
	for _, g := range GroupEvents(rows) {
		if len(g.Events) < windowSize+1 {
			continue
		}
		for i := windowSize; i < len(g.Events); i++ {
			set.X = append(set.X, vectorAt(g.Events, i, windowSize))
			set.Y = append(set.Y, float64(g.Events[i].Score))
		}
	}

	if set.Len() == 0 {
		return TrainingSet{}, fmt.Errorf("%w: need at least %d sequential entries per user-activity pair",
			model.ErrInsufficientData, windowSize+1)
	}
	return set, nil
}

// BuildLatest computes the vector of the most recent window of a single
// group's history. It reports false when fewer than windowSize events exist.
func BuildLatest(rows []model.ScoreEvent, windowSize int) (FeatureVector, bool) {
	if windowSize < 1 || len(rows) < windowSize {
		return FeatureVector{}, false
	}
	groups := GroupEvents(rows)
	if len(groups) != 1 {
		// Callers filter by user and activity; anything else is a bug upstream.
		return FeatureVector{}, false
	}
	events := groups[0].Events
	return vectorAt(events, len(events), windowSize), true
}

// vectorAt computes the vector of events[end-windowSize:end]. end is the
// index of the label (or len(events) for live inference) and is never read.
func vectorAt(events []model.ScoreEvent, end, windowSize int) FeatureVector {
	window := events[end-windowSize : end]
	last := window[len(window)-1]

	scores := make([]float64, len(window))
	durations := make([]float64, len(window))
	successful := make([]float64, len(window))
	failed := make([]float64, len(window))
	streaks := make([]float64, len(window))
	var hints float64
	for i, e := range window {
		scores[i] = float64(e.Score)
		durations[i] = e.Duration()
		successful[i] = e.Counter(model.CounterSuccessfulAttempts)
		failed[i] = e.Counter(model.CounterFailedAttempts)
		streaks[i] = e.Counter(model.CounterMaxStreak)
		hints += e.Counter(model.CounterHintsUsed)
	}

	v := FeatureVector{
		AttemptNumber:         float64(end + 1),
		AvgScore:              stat.Mean(scores, nil),
		AvgDuration:           stat.Mean(durations, nil),
		TotalHints:            hints,
		AvgSuccessfulAttempts: stat.Mean(successful, nil),
		AvgFailedAttempts:     stat.Mean(failed, nil),
		AvgMaxStreak:          stat.Mean(streaks, nil),
		TimeOfDay:             float64(last.OccurredAt.Hour()) + float64(last.OccurredAt.Minute())/minutesPerHour,
		LastScore:             float64(last.Score),
		DaysSinceStart:        last.OccurredAt.Sub(events[0].OccurredAt).Seconds() / secondsPerDay,
	}
	if len(window) > 1 {
		v.StdScore = stat.StdDev(scores, nil)
		v.ScoreTrend = Slope(scores)
		v.FailedAttemptsTrend = Slope(failed)
		v.ScoreImprovement = scores[len(scores)-1] - scores[len(scores)-2]
	}
	return v
}

// Slope is the least-squares slope of ys against their 0-based positions.
// It is 0 for fewer than two points.
func Slope(ys []float64) float64 {
	if len(ys) < 2 {
		return 0
	}
	xs := make([]float64, len(ys))
	for i := range xs {
		xs[i] = float64(i)
	}
	_, beta := stat.LinearRegression(xs, ys, nil, false)
	return beta
}
