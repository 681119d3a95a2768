// Package testevents generates synthetic score histories with per-user
// learning curves and writes them to an event store.
package testevents

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/progresscast/internal/adapters/eventstore"
	"github.com/okian/progresscast/internal/domain/model"
	"github.com/okian/progresscast/pkg/logger"
	"github.com/okian/progresscast/pkg/metrics"
)

// Run generates the configured history and inserts it into w in batches.
func Run(ctx context.Context, cfg Config, w eventstore.Writer) (*Stats, error) {
	if len(cfg.Activities) == 0 {
		cfg.Activities = model.AllActivities()
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = DefaultBatchSize
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	stats := &Stats{StartTime: time.Now()}
	logger.Get().Info(ctx, "starting seed run",
		logger.Int("users", cfg.Users),
		logger.Int("events", cfg.Events),
		logger.Int64("seed", cfg.Seed),
		logger.Int("workers", cfg.Workers))

	events, err := generateEvents(ctx, cfg, stats)
	if err != nil {
		return nil, fmt.Errorf("event generation failed: %w", err)
	}

	for start := 0; start < len(events); start += cfg.BatchSize {
		end := min(start+cfg.BatchSize, len(events))
		if err := w.Insert(ctx, events[start:end]); err != nil {
			return stats, fmt.Errorf("inserting batch %d: %w", stats.Batches+1, err)
		}
		stats.Batches++
		stats.EventsWritten += end - start
		metrics.RecordEventsSeeded(end - start)
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats)
	return stats, nil
}

// displayFinalStats logs the final seeding statistics.
func displayFinalStats(ctx context.Context, stats *Stats) {
	var eventsPerSecond float64
	if stats.Duration > 0 {
		eventsPerSecond = float64(stats.EventsWritten) / stats.Duration.Seconds()
	}

	logger.Get().Info(ctx, "final statistics",
		logger.Int("eventsGenerated", stats.EventsGenerated),
		logger.Int("eventsWritten", stats.EventsWritten),
		logger.Int("batches", stats.Batches),
		logger.Duration("duration", stats.Duration),
		logger.Float64("eventsPerSecond", eventsPerSecond))
}
