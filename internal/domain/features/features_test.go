package features_test

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/okian/progresscast/internal/domain/features"
	"github.com/okian/progresscast/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

var start = time.Date(2024, 9, 2, 9, 30, 0, 0, time.UTC)

// history builds one group's events, one per day.
func history(userID int64, activity model.Activity, scores ...int) []model.ScoreEvent {
	events := make([]model.ScoreEvent, len(scores))
	for i, s := range scores {
		d := 60 + i
		events[i] = model.ScoreEvent{
			UserID:          userID,
			Activity:        activity,
			Score:           s,
			DurationSeconds: &d,
			Counters: map[string]float64{
				model.CounterHintsUsed:      1,
				model.CounterFailedAttempts: float64(i),
			},
			OccurredAt: start.Add(time.Duration(i) * 24 * time.Hour),
		}
	}
	return events
}

func TestBuildTrainingSet(t *testing.T) {
	Convey("Given six strictly increasing scores for one user and activity", t, func() {
		rows := history(7, model.ActivityMath, 40, 45, 50, 55, 60, 65)

		Convey("When building with a window of three", func() {
			set, err := features.BuildTrainingSet(rows, 3)
			So(err, ShouldBeNil)

			Convey("Then it yields exactly three windows labelled by indices 3, 4 and 5", func() {
				So(set.Len(), ShouldEqual, 3)
				So(set.Y, ShouldResemble, []float64{55, 60, 65})
			})

			Convey("Then attempt_number is the label index plus one", func() {
				for k, v := range set.X {
					So(v.AttemptNumber, ShouldEqual, float64(3+k+1))
				}
			})

			Convey("Then window statistics are computed from the window only", func() {
				first := set.X[0]
				So(first.AvgScore, ShouldAlmostEqual, 45, 1e-9)
				So(first.StdScore, ShouldAlmostEqual, 5, 1e-9)
				So(first.ScoreTrend, ShouldAlmostEqual, 5, 1e-9)
				So(first.LastScore, ShouldEqual, 50)
				So(first.ScoreImprovement, ShouldEqual, 5)
				So(first.TotalHints, ShouldEqual, 3)
				So(first.AvgDuration, ShouldAlmostEqual, 61, 1e-9)
				So(first.FailedAttemptsTrend, ShouldAlmostEqual, 1, 1e-9)
				So(first.TimeOfDay, ShouldAlmostEqual, 9.5, 1e-9)
			})

			Convey("Then days_since_start tracks tenure from the first event of the group", func() {
				So(set.X[0].DaysSinceStart, ShouldAlmostEqual, 2, 1e-9)
				So(set.X[2].DaysSinceStart, ShouldAlmostEqual, 4, 1e-9)
			})

			Convey("Then the matrix follows the schema order", func() {
				m := set.Matrix()
				So(len(m), ShouldEqual, 3)
				So(len(m[0]), ShouldEqual, features.Arity)
				So(m[0][0], ShouldEqual, 4)
				So(m[0][11], ShouldEqual, 50)
			})
		})

		Convey("When the label event is mutated", func() {
			before, err := features.BuildTrainingSet(rows, 3)
			So(err, ShouldBeNil)

			mutated := make([]model.ScoreEvent, len(rows))
			copy(mutated, rows)
			mutated[5].Score = 0
			mutated[5].Counters = map[string]float64{model.CounterHintsUsed: 99}
			after, err := features.BuildTrainingSet(mutated, 3)
			So(err, ShouldBeNil)

			Convey("Then no feature vector changes, only the label", func() {
				So(after.X, ShouldResemble, before.X)
				So(after.Y[2], ShouldEqual, 0)
			})
		})

		Convey("When rows arrive out of order", func() {
			shuffled := []model.ScoreEvent{rows[3], rows[0], rows[5], rows[1], rows[4], rows[2]}
			a, err := features.BuildTrainingSet(shuffled, 3)
			So(err, ShouldBeNil)
			b, _ := features.BuildTrainingSet(rows, 3)

			Convey("Then the result matches the ordered input", func() {
				So(a, ShouldResemble, b)
			})
		})
	})

	Convey("Given a window of size one", t, func() {
		rows := history(1, model.ActivityMemory, 30, 80, 20)
		set, err := features.BuildTrainingSet(rows, 1)
		So(err, ShouldBeNil)

		Convey("Then trend, improvement and spread are zero", func() {
			So(set.Len(), ShouldEqual, 2)
			for _, v := range set.X {
				So(v.ScoreTrend, ShouldEqual, 0)
				So(v.ScoreImprovement, ShouldEqual, 0)
				So(v.StdScore, ShouldEqual, 0)
				So(v.FailedAttemptsTrend, ShouldEqual, 0)
			}
		})
	})

	Convey("Given several groups", t, func() {
		rows := append(history(1, model.ActivityMath, 10, 20, 30, 40), history(2, model.ActivityMath, 50, 60)...)
		rows = append(rows, history(1, model.ActivitySound, 70, 71, 72)...)

		Convey("Then groups shorter than window+1 are skipped", func() {
			set, err := features.BuildTrainingSet(rows, 2)
			So(err, ShouldBeNil)
			// user 1 math: 2 windows, user 2 math: 0, user 1 sound: 1
			So(set.Len(), ShouldEqual, 3)
			So(set.Y, ShouldResemble, []float64{30, 40, 72})
		})
	})

	Convey("Given too little history", t, func() {
		Convey("When fewer than window+1 rows are supplied", func() {
			_, err := features.BuildTrainingSet(history(1, model.ActivityMath, 10, 20, 30), 3)
			So(errors.Is(err, model.ErrInsufficientData), ShouldBeTrue)
		})

		Convey("When no single group is long enough", func() {
			rows := append(history(1, model.ActivityMath, 10, 20, 30), history(2, model.ActivityMath, 10, 20, 30)...)
			_, err := features.BuildTrainingSet(rows, 3)
			So(errors.Is(err, model.ErrInsufficientData), ShouldBeTrue)
		})

		Convey("When the window is not positive", func() {
			_, err := features.BuildTrainingSet(history(1, model.ActivityMath, 10, 20), 0)
			So(errors.Is(err, features.ErrInvalidWindow), ShouldBeTrue)
		})
	})
}

func TestBuildLatest(t *testing.T) {
	Convey("Given a user's history", t, func() {
		rows := history(7, model.ActivityMath, 40, 45, 50, 55, 60, 65)

		Convey("When building the latest window", func() {
			v, ok := features.BuildLatest(rows, 3)

			Convey("Then it uses the last three events with training semantics", func() {
				So(ok, ShouldBeTrue)
				So(v.AttemptNumber, ShouldEqual, 7)
				So(v.LastScore, ShouldEqual, 65)
				So(v.AvgScore, ShouldAlmostEqual, 60, 1e-9)
				So(v.ScoreTrend, ShouldAlmostEqual, 5, 1e-9)
				So(v.DaysSinceStart, ShouldAlmostEqual, 5, 1e-9)
			})
		})

		Convey("When the history is shorter than the window", func() {
			_, ok := features.BuildLatest(rows[:2], 3)

			Convey("Then no vector is produced", func() {
				So(ok, ShouldBeFalse)
			})
		})

		Convey("When the rows span more than one group", func() {
			mixed := append(history(1, model.ActivityMath, 1, 2, 3), history(2, model.ActivityMath, 1, 2, 3)...)
			_, ok := features.BuildLatest(mixed, 3)
			So(ok, ShouldBeFalse)
		})
	})
}

func TestSlope(t *testing.T) {
	Convey("Given score sequences", t, func() {
		So(features.Slope([]float64{1}), ShouldEqual, 0)
		So(features.Slope([]float64{3, 3, 3}), ShouldAlmostEqual, 0, 1e-12)
		So(features.Slope([]float64{90, 80, 70, 60}), ShouldAlmostEqual, -10, 1e-9)
	})
}

func TestValues(t *testing.T) {
	Convey("Given a vector with non-finite entries", t, func() {
		v := features.FeatureVector{AvgScore: 50, StdScore: math.NaN(), ScoreTrend: math.Inf(1)}
		vals := v.Values()

		Convey("Then they are replaced by zero", func() {
			So(len(vals), ShouldEqual, len(features.FeatureNames))
			So(vals[1], ShouldEqual, 50)
			So(vals[2], ShouldEqual, 0)
			So(vals[10], ShouldEqual, 0)
		})
	})
}
