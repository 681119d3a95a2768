// Package eventstore reads per-user score histories for training and inference.
package eventstore

import (
	"context"
	"fmt"
	"sort"

	"github.com/okian/progresscast/internal/domain/model"
)

// Query selects score events. Nil filters match everything.
type Query struct {
	UserID   *int64
	Activity *model.Activity
	// MinEntries drops (user, activity) groups with fewer rows. Values <= 1
	// disable the threshold.
	MinEntries int
}

// Matches reports whether e passes the user and activity filters.
func (q Query) Matches(e model.ScoreEvent) bool {
	if q.UserID != nil && e.UserID != *q.UserID {
		return false
	}
	if q.Activity != nil && e.Activity != *q.Activity {
		return false
	}
	return true
}

// Store provides read access to score events.
type Store interface {
	// Fetch returns matching events ordered by user, activity and time.
	// Returns an error wrapping model.ErrInsufficientData when nothing
	// qualifies.
	Fetch(ctx context.Context, q Query) ([]model.ScoreEvent, error)
}

// Writer appends score events. Only the synthetic seeder writes.
type Writer interface {
	Insert(ctx context.Context, events []model.ScoreEvent) error
}

// FilterGroups applies q to rows, orders the result and enforces the
// MinEntries threshold. Every Store implementation funnels through it.
func FilterGroups(rows []model.ScoreEvent, q Query) ([]model.ScoreEvent, error) {
	out := make([]model.ScoreEvent, 0, len(rows))
	for _, e := range rows {
		if q.Matches(e) {
			out = append(out, e)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no score events match", model.ErrInsufficientData)
	}
	sort.SliceStable(out, func(i, j int) bool { return model.Less(out[i], out[j]) })

	if q.MinEntries <= 1 {
		return out, nil
	}

	kept := out[:0:0]
	for start := 0; start < len(out); {
		end := start
		for end < len(out) && out[end].Key() == out[start].Key() {
			end++
		}
		if end-start >= q.MinEntries {
			kept = append(kept, out[start:end]...)
		}
		start = end
	}
	if len(kept) == 0 {
		return nil, fmt.Errorf("%w: no user-activity pair has at least %d entries",
			model.ErrInsufficientData, q.MinEntries)
	}
	return kept, nil
}
