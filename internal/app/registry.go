package app

import (
	"context"
	"sort"
	"sync"

	"github.com/okian/progresscast/internal/domain/estimator"
	"github.com/okian/progresscast/internal/domain/model"
)

// Factory builds an untrained predictor of the given family.
type Factory func(family estimator.Family) *Predictor

type registryKey struct {
	family estimator.Family
	key    string
}

// Registry caches loaded predictors by (family, activity key). Predictors
// are loaded from disk on first use; failed loads are not cached so a model
// saved later is picked up.
type Registry struct {
	mu         sync.Mutex
	factory    Factory
	predictors map[registryKey]*Predictor
}

// NewRegistry returns an empty registry.
func NewRegistry(factory Factory) *Registry {
	return &Registry{
		factory:    factory,
		predictors: make(map[registryKey]*Predictor),
	}
}

// Put registers an already trained predictor under activity (or "all").
func (r *Registry) Put(activity *model.Activity, p *Predictor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.predictors[registryKey{family: p.Family(), key: model.KeyFor(activity)}] = p
}

// Get returns the predictor for (family, activity), loading it if needed.
func (r *Registry) Get(ctx context.Context, family estimator.Family, activity *model.Activity) (*Predictor, bool) {
	k := registryKey{family: family, key: model.KeyFor(activity)}

	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.predictors[k]; ok {
		return p, true
	}
	p := r.factory(family)
	if !p.Load(ctx, activity) {
		return nil, false
	}
	r.predictors[k] = p
	return p, true
}

// Predict serves from the activity's own model and falls back to the model
// trained across all activities.
func (r *Registry) Predict(ctx context.Context, family estimator.Family, userID int64, activity model.Activity) (Result, bool) {
	p, ok := r.Get(ctx, family, &activity)
	if !ok {
		p, ok = r.Get(ctx, family, nil)
	}
	if !ok {
		return Result{}, false
	}
	return p.Predict(ctx, userID, activity)
}

// Reset drops every cached predictor.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.predictors = make(map[registryKey]*Predictor)
}

// Infos describes every cached predictor, ordered by family then key.
func (r *Registry) Infos() []ModelInfo {
	r.mu.Lock()
	ps := make([]*Predictor, 0, len(r.predictors))
	for _, p := range r.predictors {
		ps = append(ps, p)
	}
	r.mu.Unlock()

	out := make([]ModelInfo, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.Info())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Family != out[j].Family {
			return out[i].Family < out[j].Family
		}
		return out[i].Key < out[j].Key
	})
	return out
}
