package model_test

import (
	"errors"
	"testing"
	"time"

	model "github.com/okian/progresscast/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestScoreEvent(t *testing.T) {
	convey.Convey("Given a ScoreEvent", t, func() {
		convey.Convey("When duration and counters are absent", func() {
			event := model.ScoreEvent{UserID: 1, Activity: model.ActivityMath, Score: 40}

			convey.Convey("Then accessors fall back to zero", func() {
				convey.So(event.Duration(), convey.ShouldEqual, 0)
				convey.So(event.Counter(model.CounterHintsUsed), convey.ShouldEqual, 0)
			})
		})

		convey.Convey("When duration and counters are present", func() {
			d := 42
			event := model.ScoreEvent{
				DurationSeconds: &d,
				Counters:        map[string]float64{model.CounterHintsUsed: 3},
			}

			convey.Convey("Then accessors return the recorded values", func() {
				convey.So(event.Duration(), convey.ShouldEqual, 42)
				convey.So(event.Counter(model.CounterHintsUsed), convey.ShouldEqual, 3)
				convey.So(event.Counter(model.CounterMaxStreak), convey.ShouldEqual, 0)
			})
		})
	})
}

func TestLess(t *testing.T) {
	convey.Convey("Given events from different groups", t, func() {
		ts := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
		a := model.ScoreEvent{UserID: 1, Activity: model.ActivityMemory, OccurredAt: ts}
		b := model.ScoreEvent{UserID: 1, Activity: model.ActivityMath, OccurredAt: ts.Add(time.Hour)}
		c := model.ScoreEvent{UserID: 2, Activity: model.ActivityMath, OccurredAt: ts.Add(-time.Hour)}
		d := model.ScoreEvent{UserID: 1, Activity: model.ActivityMemory, OccurredAt: ts.Add(time.Minute)}

		convey.Convey("Then ordering is user, activity code, then time", func() {
			convey.So(model.Less(b, a), convey.ShouldBeTrue) // math(1) before memory(2)
			convey.So(model.Less(a, c), convey.ShouldBeTrue)
			convey.So(model.Less(a, d), convey.ShouldBeTrue)
			convey.So(model.Less(d, a), convey.ShouldBeFalse)
		})
	})
}

func TestActivity(t *testing.T) {
	convey.Convey("Given the activity table", t, func() {
		convey.Convey("Then every activity has a distinct, stable code", func() {
			seen := map[int]bool{}
			for i, a := range model.AllActivities() {
				convey.So(a.Code(), convey.ShouldEqual, i+1)
				convey.So(seen[a.Code()], convey.ShouldBeFalse)
				seen[a.Code()] = true
			}
			convey.So(model.Activity("chess").Code(), convey.ShouldEqual, 0)
		})

		convey.Convey("When parsing names", func() {
			a, err := model.ParseActivity("  Memory ")
			convey.So(err, convey.ShouldBeNil)
			convey.So(a, convey.ShouldEqual, model.ActivityMemory)

			_, err = model.ParseActivity("chess")
			convey.So(errors.Is(err, model.ErrUnknownActivity), convey.ShouldBeTrue)
			convey.So(err.Error(), convey.ShouldContainSubstring, "articulation")
		})

		convey.Convey("When building keys", func() {
			a := model.ActivitySound
			convey.So(model.KeyFor(&a), convey.ShouldEqual, "sound")
			convey.So(model.KeyFor(nil), convey.ShouldEqual, model.AllKey)
		})
	})
}
