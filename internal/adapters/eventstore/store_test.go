package eventstore_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/progresscast/internal/adapters/eventstore"
	"github.com/okian/progresscast/internal/domain/model"
	"github.com/okian/progresscast/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

var t0 = time.Date(2024, 5, 6, 8, 15, 0, 0, time.UTC)

func ev(user int64, a model.Activity, score int, day int) model.ScoreEvent {
	return model.ScoreEvent{
		UserID:     user,
		Activity:   a,
		Score:      score,
		OccurredAt: t0.Add(time.Duration(day) * 24 * time.Hour),
	}
}

func fixture() []model.ScoreEvent {
	return []model.ScoreEvent{
		ev(2, model.ActivityMath, 70, 1),
		ev(1, model.ActivityMemory, 50, 2),
		ev(1, model.ActivityMath, 30, 3),
		ev(1, model.ActivityMath, 20, 0),
		ev(1, model.ActivityMemory, 55, 4),
		ev(1, model.ActivityMath, 25, 1),
		ev(2, model.ActivityMath, 75, 2),
	}
}

func int64p(v int64) *int64 { return &v }

func activityp(a model.Activity) *model.Activity { return &a }

// storeContract runs the shared Fetch semantics against any Store.
func storeContract(store eventstore.Store) {
	ctx := context.Background()

	Convey("When fetching everything", func() {
		rows, err := store.Fetch(ctx, eventstore.Query{})
		So(err, ShouldBeNil)

		Convey("Then rows are ordered by user, activity and time", func() {
			So(len(rows), ShouldEqual, 7)
			scores := make([]int, len(rows))
			for i, r := range rows {
				scores[i] = r.Score
			}
			So(scores, ShouldResemble, []int{20, 25, 30, 50, 55, 70, 75})
		})
	})

	Convey("When filtering by user and activity", func() {
		rows, err := store.Fetch(ctx, eventstore.Query{UserID: int64p(1), Activity: activityp(model.ActivityMemory)})
		So(err, ShouldBeNil)
		So(len(rows), ShouldEqual, 2)
		So(rows[0].Score, ShouldEqual, 50)
		So(rows[0].OccurredAt.Equal(t0.Add(48*time.Hour)), ShouldBeTrue)
	})

	Convey("When applying a minimum group size", func() {
		rows, err := store.Fetch(ctx, eventstore.Query{MinEntries: 3})

		Convey("Then only qualifying groups survive", func() {
			So(err, ShouldBeNil)
			So(len(rows), ShouldEqual, 3)
			for _, r := range rows {
				So(r.Key(), ShouldResemble, model.GroupKey{UserID: 1, Activity: model.ActivityMath})
			}
		})
	})

	Convey("When no group reaches the minimum", func() {
		_, err := store.Fetch(ctx, eventstore.Query{MinEntries: 4})
		So(errors.Is(err, model.ErrInsufficientData), ShouldBeTrue)
	})

	Convey("When nothing matches", func() {
		_, err := store.Fetch(ctx, eventstore.Query{UserID: int64p(99)})
		So(errors.Is(err, model.ErrInsufficientData), ShouldBeTrue)
	})
}

func TestMemoryStore(t *testing.T) {
	Convey("Given a memory store", t, func() {
		store := eventstore.NewMemoryStore(fixture()...)
		storeContract(store)

		Convey("When inserting an invalid event", func() {
			err := store.Insert(context.Background(), []model.ScoreEvent{ev(1, "chess", 10, 0)})
			So(errors.Is(err, eventstore.ErrInvalidEvent), ShouldBeTrue)
			So(store.Len(), ShouldEqual, 7)
		})
	})
}

func openSQLite(t *testing.T) *eventstore.SQLStore {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "events.db")
	store, err := eventstore.Open(context.Background(), eventstore.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() error: %v", err)
	}
	return store
}

func TestSQLStore(t *testing.T) {
	Convey("Given a migrated sqlite store", t, func() {
		store := openSQLite(t)
		ctx := context.Background()
		So(store.Migrate(ctx), ShouldBeNil) // idempotent
		So(store.Insert(ctx, fixture()), ShouldBeNil)

		storeContract(store)

		Convey("When an event carries duration and counters", func() {
			d := 95
			e := ev(3, model.ActivityAttention, 64, 0)
			e.EventID = "evt-1"
			e.DurationSeconds = &d
			e.Counters = map[string]float64{model.CounterHintsUsed: 2, model.CounterMaxStreak: 5}
			So(store.Insert(ctx, []model.ScoreEvent{e}), ShouldBeNil)

			Convey("Then they round-trip", func() {
				rows, err := store.Fetch(ctx, eventstore.Query{UserID: int64p(3)})
				So(err, ShouldBeNil)
				So(len(rows), ShouldEqual, 1)
				So(rows[0].EventID, ShouldEqual, "evt-1")
				So(rows[0].Duration(), ShouldEqual, 95)
				So(rows[0].Counter(model.CounterHintsUsed), ShouldEqual, 2)
				So(rows[0].Counter(model.CounterMaxStreak), ShouldEqual, 5)
				So(rows[0].Activity, ShouldEqual, model.ActivityAttention)
			})
		})

		Convey("When an event has no id or duration", func() {
			rows, err := store.Fetch(ctx, eventstore.Query{UserID: int64p(2)})
			So(err, ShouldBeNil)

			Convey("Then a UUID is assigned and duration stays absent", func() {
				So(len(rows[0].EventID), ShouldEqual, 36)
				So(rows[0].DurationSeconds, ShouldBeNil)
				So(rows[0].Counters, ShouldBeEmpty)
			})
		})

		Convey("When a batch contains an invalid event", func() {
			bad := ev(4, model.ActivityMath, 101, 0)
			err := store.Insert(ctx, []model.ScoreEvent{ev(4, model.ActivityMath, 10, 0), bad})

			Convey("Then nothing from the batch is written", func() {
				So(errors.Is(err, eventstore.ErrInvalidEvent), ShouldBeTrue)
				_, err := store.Fetch(ctx, eventstore.Query{UserID: int64p(4)})
				So(errors.Is(err, model.ErrInsufficientData), ShouldBeTrue)
			})
		})
	})

	Convey("Given an unsupported driver", t, func() {
		_, err := eventstore.Open(context.Background(), "mysql", "x")
		So(errors.Is(err, eventstore.ErrUnsupportedDriver), ShouldBeTrue)
	})
}
