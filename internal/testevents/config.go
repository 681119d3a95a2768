package testevents

import (
	"fmt"
	"time"

	"github.com/okian/progresscast/internal/domain/model"
)

// Defaults for a seeding run.
const (
	DefaultUsers      = 50
	DefaultEvents     = 20
	DefaultNoise      = 4.0
	DefaultSeed       = 42
	DefaultBatchSize  = 500
	DefaultSpacing    = 24 * time.Hour
	defaultWorkers    = 4
	workdayStartHour  = 9
	workdayHours      = 10
	maxSpacingJitterH = 8
)

// Config holds configuration for a seeding run.
type Config struct {
	Users      int              // number of synthetic users, ids 1..Users
	Events     int              // events per user and activity
	Activities []model.Activity // activities to generate, all when empty
	Start      time.Time        // first day of history
	Spacing    time.Duration    // mean gap between attempts
	Noise      float64          // std of the per-attempt score noise
	Seed       int64            // base seed; the same seed yields the same scores
	Workers    int              // concurrent generators
	BatchSize  int              // events per Insert call
}

// DefaultConfig returns a Config that produces enough history to train on.
func DefaultConfig() Config {
	return Config{
		Users:      DefaultUsers,
		Events:     DefaultEvents,
		Activities: model.AllActivities(),
		Start:      time.Now().UTC().Truncate(24*time.Hour).AddDate(0, 0, -2*DefaultEvents),
		Spacing:    DefaultSpacing,
		Noise:      DefaultNoise,
		Seed:       DefaultSeed,
		Workers:    defaultWorkers,
		BatchSize:  DefaultBatchSize,
	}
}

func (c Config) validate() error {
	switch {
	case c.Users < 1:
		return fmt.Errorf("%w: users must be at least 1", ErrInvalidConfig)
	case c.Events < 1:
		return fmt.Errorf("%w: events must be at least 1", ErrInvalidConfig)
	case c.Spacing <= 0:
		return fmt.Errorf("%w: spacing must be positive", ErrInvalidConfig)
	case c.Noise < 0:
		return fmt.Errorf("%w: noise must not be negative", ErrInvalidConfig)
	}
	for _, a := range c.Activities {
		if !a.Valid() {
			return fmt.Errorf("%w: %w: %q", ErrInvalidConfig, model.ErrUnknownActivity, a)
		}
	}
	return nil
}

// Stats holds seeding statistics.
type Stats struct {
	EventsGenerated int
	EventsWritten   int
	Batches         int
	StartTime       time.Time
	EndTime         time.Time
	Duration        time.Duration
}
