package testevents_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/progresscast/internal/adapters/eventstore"
	"github.com/okian/progresscast/internal/domain/model"
	"github.com/okian/progresscast/internal/testevents"
	"github.com/okian/progresscast/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

func smallConfig() testevents.Config {
	cfg := testevents.DefaultConfig()
	cfg.Users = 8
	cfg.Events = 12
	cfg.Activities = []model.Activity{model.ActivityMath, model.ActivityWords}
	cfg.Start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg.BatchSize = 50
	return cfg
}

func scores(events []model.ScoreEvent) []int {
	out := make([]int, len(events))
	for i, e := range events {
		out[i] = e.Score
	}
	return out
}

func TestRun(t *testing.T) {
	Convey("Given a small seed config", t, func() {
		ctx := context.Background()
		cfg := smallConfig()

		Convey("When seeding a memory store", func() {
			store := eventstore.NewMemoryStore()
			stats, err := testevents.Run(ctx, cfg, store)
			So(err, ShouldBeNil)

			Convey("Then every user gets a full history per activity", func() {
				So(stats.EventsGenerated, ShouldEqual, 8*12*2)
				So(stats.EventsWritten, ShouldEqual, 8*12*2)
				So(stats.Batches, ShouldEqual, 4)
				So(store.Len(), ShouldEqual, 8*12*2)

				rows, err := store.Fetch(ctx, eventstore.Query{MinEntries: 12})
				So(err, ShouldBeNil)
				So(len(rows), ShouldEqual, 8*12*2)
			})

			Convey("Then events are valid and time-ordered within a group", func() {
				rows, _ := store.Fetch(ctx, eventstore.Query{})
				for i, e := range rows {
					So(e.Score, ShouldBeBetweenOrEqual, 0, 100)
					So(e.EventID, ShouldNotBeEmpty)
					So(e.Duration(), ShouldBeGreaterThan, 0)
					So(e.Counter(model.CounterSuccessfulAttempts)+e.Counter(model.CounterFailedAttempts),
						ShouldEqual, e.Counter(model.CounterAttempts))
					if i > 0 && rows[i-1].Key() == e.Key() {
						So(e.OccurredAt.After(rows[i-1].OccurredAt), ShouldBeTrue)
					}
				}
			})

			Convey("Then learners improve on average", func() {
				rows, _ := store.Fetch(ctx, eventstore.Query{})
				var early, late float64
				for i := 0; i < len(rows); i += cfg.Events {
					group := rows[i : i+cfg.Events]
					for _, e := range group[:3] {
						early += float64(e.Score)
					}
					for _, e := range group[len(group)-3:] {
						late += float64(e.Score)
					}
				}
				So(late, ShouldBeGreaterThan, early)
			})
		})

		Convey("When seeding twice with the same seed", func() {
			a, b := eventstore.NewMemoryStore(), eventstore.NewMemoryStore()
			_, err := testevents.Run(ctx, cfg, a)
			So(err, ShouldBeNil)
			_, err = testevents.Run(ctx, cfg, b)
			So(err, ShouldBeNil)

			Convey("Then the scores are identical", func() {
				ra, _ := a.Fetch(ctx, eventstore.Query{})
				rb, _ := b.Fetch(ctx, eventstore.Query{})
				So(scores(ra), ShouldResemble, scores(rb))
			})
		})

		Convey("When the config is invalid", func() {
			cfg.Users = 0
			_, err := testevents.Run(ctx, cfg, eventstore.NewMemoryStore())
			So(errors.Is(err, testevents.ErrInvalidConfig), ShouldBeTrue)
		})

		Convey("When an activity is unknown", func() {
			cfg.Activities = []model.Activity{"chess"}
			_, err := testevents.Run(ctx, cfg, eventstore.NewMemoryStore())
			So(errors.Is(err, model.ErrUnknownActivity), ShouldBeTrue)
		})

		Convey("When the context is already cancelled", func() {
			cfg.Users = 200
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			store := eventstore.NewMemoryStore()
			_, err := testevents.Run(cctx, cfg, store)

			Convey("Then nothing is written", func() {
				So(errors.Is(err, context.Canceled), ShouldBeTrue)
				So(store.Len(), ShouldEqual, 0)
			})
		})
	})
}
