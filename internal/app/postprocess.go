package app

import (
	"math"

	"github.com/okian/progresscast/internal/domain/features"
	"github.com/okian/progresscast/internal/domain/insight"
	"github.com/okian/progresscast/internal/domain/model"
	"gonum.org/v1/gonum/stat"
)

// Post-processing constants.
const (
	masteryScore = 90.0
	// Business rule: a high, improving learner is never forecast to fall
	// more than guardMaxDrop points below the last score.
	guardScore   = 90.0
	guardMaxDrop = 15.0
	// Below this slope no mastery timeline is estimated.
	minMasteryTrend = 0.1
	// Spread of tree predictions costs this many confidence points each.
	spreadPenalty = 2.0
)

// Result is one forecast for a (user, activity) pair.
type Result struct {
	PredictedScore    float64 `json:"predicted_score"`
	CurrentScore      float64 `json:"current_score"`
	Confidence        float64 `json:"confidence"`
	Insight           string  `json:"insight"`
	DaysToMastery     *int    `json:"days_to_mastery"`
	AttemptsToMastery *int    `json:"attempts_to_mastery"`
	ScoreTrend        float64 `json:"score_trend"`
}

// finalize turns a raw model output into a Result.
func finalize(raw, confidence float64, v features.FeatureVector, activity model.Activity, table *insight.Table) Result {
	current, trend := v.LastScore, v.ScoreTrend

	predicted := clampScore(raw)
	if current >= guardScore && trend > 0 {
		predicted = math.Max(predicted, current-guardMaxDrop)
	}

	days, attempts := estimateMastery(current, trend, v.DaysSinceStart, v.AttemptNumber)
	return Result{
		PredictedScore: round(predicted, 1),
		CurrentScore:   current,
		Confidence:     round(clampScore(confidence), 1),
		Insight: table.Generate(insight.Input{
			Predicted: predicted,
			Current:   current,
			Trend:     trend,
			Activity:  activity,
		}),
		DaysToMastery:     days,
		AttemptsToMastery: attempts,
		ScoreTrend:        round(trend, 2),
	}
}

// ensembleConfidence is 100 minus twice the population spread of the
// per-tree predictions.
func ensembleConfidence(perTree []float64) float64 {
	if len(perTree) < 2 {
		return model.MaxScore
	}
	_, variance := stat.MeanVariance(perTree, nil)
	n := float64(len(perTree))
	variance *= (n - 1) / n
	return clampScore(model.MaxScore - spreadPenalty*math.Sqrt(math.Max(0, variance)))
}

// errorConfidence is 100 minus the held-out RMSE.
func errorConfidence(testRMSE float64) float64 {
	return clampScore(model.MaxScore - testRMSE)
}

// estimateMastery projects how many attempts, and at the current pace how
// many days, it takes to reach the mastery score. Both are 0 at mastery
// already and nil when the trend is too flat to extrapolate.
func estimateMastery(current, trend, daysSinceStart, attemptNumber float64) (*int, *int) {
	if current >= masteryScore {
		days, attempts := 0, 0
		return &days, &attempts
	}
	if trend <= minMasteryTrend {
		return nil, nil
	}
	attempts := int(math.Ceil((masteryScore - current) / trend))
	if attemptNumber > 1 && daysSinceStart > 0 {
		days := int(math.Ceil(float64(attempts) * daysSinceStart / (attemptNumber - 1)))
		return &days, &attempts
	}
	return nil, &attempts
}

func clampScore(x float64) float64 {
	if math.IsNaN(x) {
		return model.MinScore
	}
	return math.Max(model.MinScore, math.Min(model.MaxScore, x))
}

func round(x float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(x*p) / p
}
