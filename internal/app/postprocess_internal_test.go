package app

import (
	"math"
	"testing"

	"github.com/okian/progresscast/internal/domain/features"
	"github.com/okian/progresscast/internal/domain/insight"
	"github.com/okian/progresscast/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestFinalize(t *testing.T) {
	Convey("Given a raw model output", t, func() {
		table := insight.New()

		Convey("When it is outside the score range", func() {
			v := features.FeatureVector{LastScore: 50, ScoreTrend: 1}

			Convey("Then it is clamped to [0, 100]", func() {
				So(finalize(150, 80, v, model.ActivityMath, table).PredictedScore, ShouldEqual, 100)
				So(finalize(-20, 80, v, model.ActivityMath, table).PredictedScore, ShouldEqual, 0)
				So(finalize(math.NaN(), 80, v, model.ActivityMath, table).PredictedScore, ShouldEqual, 0)
			})
		})

		Convey("When a high, improving learner is forecast to collapse", func() {
			v := features.FeatureVector{LastScore: 95, ScoreTrend: 1, AttemptNumber: 10, DaysSinceStart: 9}
			res := finalize(50, 80, v, model.ActivityMath, table)

			Convey("Then the forecast is held within 15 points of the last score", func() {
				So(res.PredictedScore, ShouldEqual, 80)
				So(res.Insight, ShouldStartWith, "Confident command of the skill.")
			})
		})

		Convey("When the same collapse is forecast without a positive trend", func() {
			v := features.FeatureVector{LastScore: 95, ScoreTrend: 0}

			Convey("Then the raw forecast stands", func() {
				So(finalize(50, 80, v, model.ActivityMath, table).PredictedScore, ShouldEqual, 50)
			})
		})

		Convey("When values carry many decimals", func() {
			v := features.FeatureVector{LastScore: 60, ScoreTrend: 1.23456}
			res := finalize(72.3456, 87.6543, v, model.ActivityMath, table)

			Convey("Then prediction and confidence get one decimal and trend two", func() {
				So(res.PredictedScore, ShouldEqual, 72.3)
				So(res.Confidence, ShouldEqual, 87.7)
				So(res.ScoreTrend, ShouldEqual, 1.23)
				So(res.CurrentScore, ShouldEqual, 60)
			})
		})
	})
}

func TestEstimateMastery(t *testing.T) {
	Convey("Given mastery estimation", t, func() {
		Convey("When the learner is already at mastery", func() {
			days, attempts := estimateMastery(90, -3, 10, 11)
			So(*days, ShouldEqual, 0)
			So(*attempts, ShouldEqual, 0)
		})

		Convey("When the trend is too flat", func() {
			days, attempts := estimateMastery(70, 0.05, 10, 11)
			So(days, ShouldBeNil)
			So(attempts, ShouldBeNil)
		})

		Convey("When progress is steady", func() {
			days, attempts := estimateMastery(70, 5, 5, 7)

			Convey("Then attempts and days are rounded up", func() {
				So(*attempts, ShouldEqual, 4)
				So(*days, ShouldEqual, 4)
			})
		})

		Convey("When there is no pace to extrapolate from", func() {
			days, attempts := estimateMastery(70, 5, 0, 1)
			So(days, ShouldBeNil)
			So(*attempts, ShouldEqual, 4)
		})
	})
}

func TestConfidence(t *testing.T) {
	Convey("Given per-tree predictions", t, func() {
		So(ensembleConfidence([]float64{50, 60}), ShouldAlmostEqual, 90, 1e-9)
		So(ensembleConfidence([]float64{70, 70, 70}), ShouldEqual, 100)
		So(ensembleConfidence([]float64{42}), ShouldEqual, 100)
		So(ensembleConfidence([]float64{0, 100}), ShouldEqual, 0)
	})

	Convey("Given a held-out RMSE", t, func() {
		So(errorConfidence(12.5), ShouldEqual, 87.5)
		So(errorConfidence(140), ShouldEqual, 0)
	})
}
