package testevents

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/okian/progresscast/internal/domain/model"
	"github.com/okian/progresscast/pkg/logger"
)

// Learning curve ranges.
const (
	abilityMin     = 15.0
	abilityRange   = 35.0
	ceilingMin     = 75.0
	ceilingRange   = 25.0
	tauMin         = 2.0
	tauRange       = 10.0
	durationMax    = 300.0
	durationMin    = 30.0
	attemptsMin    = 5
	attemptsRange  = 6
	hintsMax       = 4
	userSeedStride = 7919
)

// curve is one user's learning curve at one activity.
type curve struct {
	ability float64 // expected first score
	ceiling float64 // asymptotic score
	tau     float64 // attempts to cover ~63% of the gap
}

func (c curve) mean(attempt int) float64 {
	return c.ceiling - (c.ceiling-c.ability)*math.Exp(-float64(attempt)/c.tau)
}

// generateEvents creates the history of every user, spreading users over
// cfg.Workers goroutines. Output is ordered by user then activity then time.
func generateEvents(ctx context.Context, cfg Config, stats *Stats) ([]model.ScoreEvent, error) {
	logger.Get().Info(ctx, "generating score events",
		logger.Int("users", cfg.Users),
		logger.Int("events", cfg.Events),
		logger.Int("activities", len(cfg.Activities)))

	type userResult struct {
		index  int
		events []model.ScoreEvent
		err    error
	}

	resultChan := make(chan userResult, cfg.Users)

	workerCount := max(1, min(cfg.Workers, cfg.Users))
	usersPerWorker := cfg.Users / workerCount

	for worker := 0; worker < workerCount; worker++ {
		start := worker * usersPerWorker
		end := start + usersPerWorker
		if worker == workerCount-1 {
			end = cfg.Users // Last worker gets remaining users
		}

		go func(start, end int) {
			for i := start; i < end; i++ {
				select {
				case <-ctx.Done():
					resultChan <- userResult{index: i, err: ctx.Err()}
					return
				default:
					resultChan <- userResult{index: i, events: generateUser(cfg, int64(i+1))}
				}
			}
		}(start, end)
	}

	perUser := make([][]model.ScoreEvent, cfg.Users)
	for i := 0; i < cfg.Users; i++ {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("context cancelled during event generation: %w", ctx.Err())
		case result := <-resultChan:
			if result.err != nil {
				return nil, fmt.Errorf("failed to generate user %d: %w", result.index+1, result.err)
			}
			perUser[result.index] = result.events
		}
	}

	events := make([]model.ScoreEvent, 0, cfg.Users*cfg.Events*len(cfg.Activities))
	for _, evs := range perUser {
		events = append(events, evs...)
	}
	stats.EventsGenerated = len(events)
	logger.Get().Info(ctx, "generated score events", logger.Int("count", len(events)))
	return events, nil
}

// generateUser draws every activity curve of one user from a seed derived
// from cfg.Seed and the user id, so results do not depend on scheduling.
func generateUser(cfg Config, userID int64) []model.ScoreEvent {
	rng := rand.New(rand.NewSource(cfg.Seed + userID*userSeedStride)) //nolint:gosec // synthetic data

	events := make([]model.ScoreEvent, 0, cfg.Events*len(cfg.Activities))
	for _, activity := range cfg.Activities {
		c := curve{
			ability: abilityMin + rng.Float64()*abilityRange,
			ceiling: ceilingMin + rng.Float64()*ceilingRange,
			tau:     tauMin + rng.Float64()*tauRange,
		}
		day := cfg.Start.Truncate(24 * time.Hour)
		for i := 0; i < cfg.Events; i++ {
			score := clamp(math.Round(c.mean(i) + rng.NormFloat64()*cfg.Noise))
			at := day.Add(time.Duration(workdayStartHour+rng.Intn(workdayHours))*time.Hour +
				time.Duration(rng.Intn(60))*time.Minute)
			events = append(events, event(rng, userID, activity, int(score), at))
			day = day.Add(cfg.Spacing + time.Duration(rng.Intn(maxSpacingJitterH))*time.Hour)
		}
	}
	return events
}

// event fills duration and counters consistently with the score: better
// attempts are faster, need fewer hints and have longer streaks.
func event(rng *rand.Rand, userID int64, activity model.Activity, score int, at time.Time) model.ScoreEvent {
	skill := float64(score) / model.MaxScore
	duration := int(durationMax - (durationMax-durationMin)*skill + rng.Float64()*durationMin)

	attempts := attemptsMin + rng.Intn(attemptsRange)
	successful := int(math.Round(float64(attempts) * skill))
	failed := attempts - successful
	hints := rng.Intn(hintsMax - int(skill*(hintsMax-1)))
	streak := 0
	if successful > 0 {
		streak = 1 + rng.Intn(successful)
	}

	return model.ScoreEvent{
		EventID:         uuid.NewString(),
		UserID:          userID,
		Activity:        activity,
		Score:           score,
		DurationSeconds: &duration,
		Counters: map[string]float64{
			model.CounterAttempts:           float64(attempts),
			model.CounterSuccessfulAttempts: float64(successful),
			model.CounterFailedAttempts:     float64(failed),
			model.CounterHintsUsed:          float64(hints),
			model.CounterMaxStreak:          float64(streak),
		},
		OccurredAt: at,
	}
}

func clamp(x float64) float64 {
	return math.Max(model.MinScore, math.Min(model.MaxScore, x))
}
