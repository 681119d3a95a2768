package eventstore

import (
	"context"
	"sync"

	"github.com/okian/progresscast/internal/domain/model"
)

// MemoryStore keeps events in process.
type MemoryStore struct {
	mu     sync.RWMutex
	events []model.ScoreEvent
}

// NewMemoryStore returns a store holding a copy of events.
func NewMemoryStore(events ...model.ScoreEvent) *MemoryStore {
	s := &MemoryStore{}
	s.events = append(s.events, events...)
	return s
}

// Fetch implements Store.
func (s *MemoryStore) Fetch(ctx context.Context, q Query) ([]model.ScoreEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return FilterGroups(s.events, q)
}

// Insert implements Writer.
func (s *MemoryStore) Insert(ctx context.Context, events []model.ScoreEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, e := range events {
		if err := validate(e); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, events...)
	return nil
}

// Len returns the number of stored events.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}
