// Package app wires the event store, feature builder, estimators and
// artifact store into a trainable, persistable progress predictor.
package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/progresscast/internal/adapters/artifact"
	"github.com/okian/progresscast/internal/adapters/eventstore"
	"github.com/okian/progresscast/internal/domain/estimator"
	"github.com/okian/progresscast/internal/domain/features"
	"github.com/okian/progresscast/internal/domain/insight"
	"github.com/okian/progresscast/internal/domain/model"
	"github.com/okian/progresscast/pkg/logger"
	"github.com/okian/progresscast/pkg/metrics"
)

// Defaults for a new Predictor.
const (
	DefaultWindowSize = 3
	DefaultTestSize   = 0.2
	DefaultMinEntries = 5
	defaultSplitSeed  = 42
	topImportances    = 5
)

// ModelInfo describes a predictor's current model.
type ModelInfo struct {
	Family       estimator.Family   `json:"family"`
	Key          string             `json:"key"`
	Trained      bool               `json:"trained"`
	WindowSize   int                `json:"window_size"`
	RunID        string             `json:"run_id,omitempty"`
	TrainedAt    *time.Time         `json:"trained_at,omitempty"`
	Metrics      estimator.Metrics  `json:"metrics,omitempty"`
	FeatureNames []string           `json:"feature_names"`
	Importances  map[string]float64 `json:"feature_importances,omitempty"`
}

// Predictor trains one regression model and serves forecasts from it.
// It is safe for concurrent Predict calls.
type Predictor struct {
	mu sync.RWMutex

	// Configuration
	family     estimator.Family
	windowSize int
	forest     estimator.ForestConfig
	splitSeed  int64
	store      eventstore.Store
	artifacts  *artifact.Store
	insights   *insight.Table
	metrics    *metrics.Manager
	now        func() time.Time

	// State
	trained   bool
	key       string
	window    int
	regressor estimator.Regressor
	scaler    *estimator.Scaler
	scores    estimator.Metrics
	runID     string
	trainedAt time.Time

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Predictor.
type Option func(*Predictor)

// WithFamily selects the regression family.
func WithFamily(f estimator.Family) Option {
	return func(p *Predictor) {
		if f != "" {
			p.family = f
		}
	}
}

// WithWindowSize sets how many past events form one feature window.
func WithWindowSize(w int) Option {
	return func(p *Predictor) {
		if w > 0 {
			p.windowSize = w
		}
	}
}

// WithForestConfig sets the forest hyperparameters.
func WithForestConfig(c estimator.ForestConfig) Option {
	return func(p *Predictor) { p.forest = c }
}

// WithSplitSeed sets the train/test shuffle seed.
func WithSplitSeed(seed int64) Option {
	return func(p *Predictor) { p.splitSeed = seed }
}

// WithStore sets the event store.
func WithStore(s eventstore.Store) Option {
	return func(p *Predictor) { p.store = s }
}

// WithArtifacts sets where models are saved and loaded.
func WithArtifacts(a *artifact.Store) Option {
	return func(p *Predictor) { p.artifacts = a }
}

// WithInsightTable replaces the default insight table.
func WithInsightTable(t *insight.Table) Option {
	return func(p *Predictor) {
		if t != nil {
			p.insights = t
		}
	}
}

// WithMetrics sets the metrics manager.
func WithMetrics(m *metrics.Manager) Option {
	return func(p *Predictor) {
		if m != nil {
			p.metrics = m
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(p *Predictor) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Predictor) {
		if now != nil {
			p.now = now
		}
	}
}

// New constructs an untrained Predictor.
func New(opts ...Option) *Predictor {
	p := &Predictor{
		family:     estimator.DefaultFamily,
		windowSize: DefaultWindowSize,
		forest:     estimator.DefaultForestConfig(),
		splitSeed:  defaultSplitSeed,
		insights:   insight.New(),
		metrics:    metrics.Default(),
		now:        time.Now,
	}

	// Apply all options
	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = logger.Get().Named("predictor")
	}
	return p
}

// Family returns the regression family.
func (p *Predictor) Family() estimator.Family { return p.family }

// Trained reports whether a model is ready.
func (p *Predictor) Trained() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.trained
}

// Train fits a scaler and regressor on the history of activity (all
// activities when nil) and returns train and held-out metrics. The fitted
// state replaces the previous one only on success.
func (p *Predictor) Train(ctx context.Context, activity *model.Activity, testSize float64, minEntries int) (estimator.Metrics, error) {
	if !(testSize > 0 && testSize < 1) {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidTestSize, testSize)
	}
	if minEntries < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidMinEntries, minEntries)
	}
	if p.store == nil {
		return nil, ErrNoStore
	}

	key := model.KeyFor(activity)
	runID := uuid.NewString()
	start := p.now()
	log := p.logger
	fields := []logger.Field{
		logger.String("run_id", runID),
		logger.String("family", string(p.family)),
		logger.String("key", key),
	}
	log.Info(ctx, "training started", append(fields,
		logger.Int("window_size", p.windowSize),
		logger.Float64("test_size", testSize),
		logger.Int("min_entries", minEntries))...)

	scores, fitted, err := p.fit(ctx, activity, testSize, minEntries)
	elapsed := p.now().Sub(start)
	if err != nil {
		outcome := metrics.OutcomeError
		if errors.Is(err, model.ErrInsufficientData) || errors.Is(err, estimator.ErrTooFewSamples) {
			outcome = metrics.OutcomeInsufficient
		}
		p.metrics.RecordTraining(string(p.family), key, outcome, elapsed)
		log.Warn(ctx, "training failed", append(fields, logger.Error(err))...)
		return nil, err
	}

	p.mu.Lock()
	p.trained = true
	p.key = key
	p.window = p.windowSize
	p.regressor = fitted.regressor
	p.scaler = fitted.scaler
	p.scores = scores
	p.runID = runID
	p.trainedAt = start.UTC()
	p.mu.Unlock()

	p.metrics.RecordTraining(string(p.family), key, metrics.OutcomeOK, elapsed)
	p.metrics.UpdateTrainingSamples(string(p.family), key, int(scores[estimator.NSamples]))
	for _, k := range []string{estimator.TestMAE, estimator.TestRMSE, estimator.TestR2} {
		p.metrics.UpdateModelQuality(string(p.family), key, k, scores[k])
	}

	log.Info(ctx, "training completed", append(fields,
		logger.Duration("elapsed", elapsed),
		logger.Float64("n_samples", scores[estimator.NSamples]),
		logger.Float64("train_mae", scores[estimator.TrainMAE]),
		logger.Float64("test_mae", scores[estimator.TestMAE]),
		logger.Float64("test_rmse", scores[estimator.TestRMSE]),
		logger.Float64("test_r2", scores[estimator.TestR2]))...)
	if f, ok := fitted.regressor.(*estimator.Forest); ok {
		log.Debug(ctx, "feature importances", append(fields,
			logger.Any("top", rankImportances(f.Importances(), topImportances)))...)
	}
	return scores, nil
}

type fittedModel struct {
	regressor estimator.Regressor
	scaler    *estimator.Scaler
}

func (p *Predictor) fit(ctx context.Context, activity *model.Activity, testSize float64, minEntries int) (estimator.Metrics, fittedModel, error) {
	rows, err := p.fetch(ctx, eventstore.Query{Activity: activity, MinEntries: minEntries})
	if err != nil {
		return nil, fittedModel{}, err
	}
	set, err := features.BuildTrainingSet(rows, p.windowSize)
	if err != nil {
		return nil, fittedModel{}, fmt.Errorf("building training set: %w", err)
	}

	split, err := estimator.TrainTestSplit(set.Matrix(), set.Y, testSize, p.splitSeed)
	if err != nil {
		return nil, fittedModel{}, fmt.Errorf("splitting %d samples: %w", set.Len(), err)
	}

	scaler := &estimator.Scaler{}
	if err := scaler.Fit(split.TrainX); err != nil {
		return nil, fittedModel{}, fmt.Errorf("fitting scaler: %w", err)
	}
	trainX, err := scaler.TransformAll(split.TrainX)
	if err != nil {
		return nil, fittedModel{}, err
	}
	testX, err := scaler.TransformAll(split.TestX)
	if err != nil {
		return nil, fittedModel{}, err
	}

	reg, err := estimator.New(p.family, estimator.WithForestConfig(p.forest))
	if err != nil {
		return nil, fittedModel{}, err
	}
	if err := reg.Fit(trainX, split.TrainY); err != nil {
		return nil, fittedModel{}, fmt.Errorf("fitting %s model: %w", p.family, err)
	}

	train, err := estimator.Evaluate(reg, trainX, split.TrainY)
	if err != nil {
		return nil, fittedModel{}, err
	}
	test, err := estimator.Evaluate(reg, testX, split.TestY)
	if err != nil {
		return nil, fittedModel{}, err
	}

	scores := estimator.Metrics{
		estimator.TrainMAE:  train.MAE,
		estimator.TrainRMSE: train.RMSE,
		estimator.TrainR2:   train.R2,
		estimator.TestMAE:   test.MAE,
		estimator.TestRMSE:  test.RMSE,
		estimator.TestR2:    test.R2,
		estimator.NSamples:  float64(set.Len()),
		estimator.NFeatures: float64(features.Arity),
	}
	return scores, fittedModel{regressor: reg, scaler: scaler}, nil
}

// Predict forecasts the next score of userID at activity. It reports false,
// and logs why, when the model is untrained, the history is shorter than the
// window, or anything fails along the way. It never returns an error.
func (p *Predictor) Predict(ctx context.Context, userID int64, activity model.Activity) (Result, bool) {
	start := p.now()
	family := string(p.family)
	fields := []logger.Field{logger.Int64("user_id", userID), logger.String("activity", string(activity))}

	p.mu.RLock()
	trained, window, reg, scaler, scores := p.trained, p.window, p.regressor, p.scaler, p.scores
	p.mu.RUnlock()

	fail := func(outcome, msg string, extra ...logger.Field) (Result, bool) {
		p.metrics.RecordPrediction(family, outcome, p.now().Sub(start))
		if outcome == metrics.OutcomeError {
			p.metrics.RecordErrorByComponent("predictor", msg)
			p.logger.Error(ctx, msg, append(fields, extra...)...)
		} else {
			p.logger.Warn(ctx, msg, append(fields, extra...)...)
		}
		return Result{}, false
	}

	if !trained {
		return fail(metrics.OutcomeUntrained, "model not trained")
	}
	if p.store == nil {
		return fail(metrics.OutcomeError, "no event store")
	}

	rows, err := p.fetch(ctx, eventstore.Query{UserID: &userID, Activity: &activity})
	if errors.Is(err, model.ErrInsufficientData) {
		return fail(metrics.OutcomeColdStart, "cold start", logger.Int("history", 0), logger.Int("window_size", window))
	}
	if err != nil {
		return fail(metrics.OutcomeError, "fetching history failed", logger.Error(err))
	}
	vec, ok := features.BuildLatest(rows, window)
	if !ok {
		return fail(metrics.OutcomeColdStart, "cold start", logger.Int("history", len(rows)), logger.Int("window_size", window))
	}

	x, err := scaler.Transform(vec.Values())
	if err != nil {
		return fail(metrics.OutcomeError, "scaling features failed", logger.Error(err))
	}
	raw, err := reg.Predict(x)
	if err != nil {
		return fail(metrics.OutcomeError, "model prediction failed", logger.Error(err))
	}

	var confidence float64
	if ens, ok := reg.(estimator.Ensemble); ok {
		perTree, err := ens.PredictAll(x)
		if err != nil {
			return fail(metrics.OutcomeError, "ensemble prediction failed", logger.Error(err))
		}
		confidence = ensembleConfidence(perTree)
	} else {
		rmse, ok := scores.Get(estimator.TestRMSE)
		if !ok {
			rmse = estimator.DefaultRMSE
		}
		confidence = errorConfidence(rmse)
	}

	res := finalize(raw, confidence, vec, activity, p.insights)
	p.metrics.RecordPrediction(family, metrics.OutcomeOK, p.now().Sub(start))
	p.logger.Info(ctx, "prediction", append(fields,
		logger.Float64("predicted_score", res.PredictedScore),
		logger.Float64("confidence", res.Confidence))...)
	return res, true
}

// Save persists the current model under the key of activity (or "all").
// The key must be the one the model was trained or loaded for.
func (p *Predictor) Save(ctx context.Context, activity *model.Activity) (string, error) {
	if p.artifacts == nil {
		return "", ErrNoArtifacts
	}
	key := model.KeyFor(activity)
	p.mu.RLock()
	if !p.trained {
		p.mu.RUnlock()
		return "", ErrNotTrained
	}
	if key != p.key {
		trainedFor := p.key
		p.mu.RUnlock()
		return "", fmt.Errorf("%w: trained for %q, saving as %q", ErrKeyMismatch, trainedFor, key)
	}
	b := artifact.Bundle{
		Family:     p.family,
		Key:        key,
		WindowSize: p.window,
		RunID:      p.runID,
		TrainedAt:  p.trainedAt,
		Regressor:  p.regressor,
		Scaler:     p.scaler,
		Metrics:    p.scores,
	}
	p.mu.RUnlock()

	path, err := p.artifacts.Save(ctx, b)
	if err != nil {
		return "", fmt.Errorf("saving model: %w", err)
	}
	return path, nil
}

// Load replaces the current model with the saved one for activity (or "all").
// It reports false, leaving the predictor unchanged, when nothing usable is
// on disk.
func (p *Predictor) Load(ctx context.Context, activity *model.Activity) bool {
	key := model.KeyFor(activity)
	family := string(p.family)
	fields := []logger.Field{logger.String("family", family), logger.String("key", key)}
	if p.artifacts == nil {
		p.metrics.RecordModelLoad(family, metrics.OutcomeError)
		p.logger.Error(ctx, "no artifact store configured", fields...)
		return false
	}

	b, err := p.artifacts.Load(ctx, p.family, key)
	switch {
	case errors.Is(err, artifact.ErrNotFound):
		p.metrics.RecordModelLoad(family, metrics.OutcomeMissing)
		p.logger.Info(ctx, "no saved model", append(fields, logger.String("dir", p.artifacts.Dir()))...)
		return false
	case errors.Is(err, artifact.ErrSchemaMismatch):
		p.metrics.RecordModelLoad(family, metrics.OutcomeSchemaMismatch)
		p.logger.Warn(ctx, "saved model does not match the feature schema", append(fields,
			logger.Int("expected_features", features.Arity), logger.Error(err))...)
		return false
	case err != nil:
		p.metrics.RecordModelLoad(family, metrics.OutcomeError)
		p.logger.Error(ctx, "loading model failed", append(fields, logger.Error(err))...)
		return false
	}

	window := b.WindowSize
	if window < 1 {
		window = p.windowSize
	}

	p.mu.Lock()
	p.trained = true
	p.key = key
	p.window = window
	p.regressor = b.Regressor
	p.scaler = b.Scaler
	p.scores = b.Metrics
	p.runID = b.RunID
	p.trainedAt = b.TrainedAt
	p.mu.Unlock()

	p.metrics.RecordModelLoad(family, metrics.OutcomeOK)
	p.logger.Info(ctx, "model loaded", append(fields, logger.Int("window_size", window))...)
	return true
}

// Info describes the current model.
func (p *Predictor) Info() ModelInfo {
	p.mu.RLock()
	defer p.mu.RUnlock()

	info := ModelInfo{
		Family:       p.family,
		Key:          p.key,
		Trained:      p.trained,
		WindowSize:   p.windowSize,
		FeatureNames: append([]string(nil), features.FeatureNames...),
	}
	if !p.trained {
		return info
	}
	info.WindowSize = p.window
	info.RunID = p.runID
	if !p.trainedAt.IsZero() {
		t := p.trainedAt
		info.TrainedAt = &t
	}
	if p.scores != nil {
		info.Metrics = make(estimator.Metrics, len(p.scores))
		for k, v := range p.scores {
			info.Metrics[k] = v
		}
	}
	if f, ok := p.regressor.(*estimator.Forest); ok {
		info.Importances = make(map[string]float64, features.Arity)
		for i, v := range f.Importances() {
			if i < len(features.FeatureNames) {
				info.Importances[features.FeatureNames[i]] = v
			}
		}
	}
	return info
}

func (p *Predictor) fetch(ctx context.Context, q eventstore.Query) ([]model.ScoreEvent, error) {
	start := time.Now()
	rows, err := p.store.Fetch(ctx, q)
	var storeErr error
	if err != nil && !errors.Is(err, model.ErrInsufficientData) {
		storeErr = err
	}
	p.metrics.RecordStoreQuery(time.Since(start), storeErr)
	if err != nil {
		return nil, fmt.Errorf("fetching score events: %w", err)
	}
	return rows, nil
}

type importance struct {
	Feature string  `json:"feature"`
	Weight  float64 `json:"weight"`
}

// rankImportances returns the n largest importances with their names.
func rankImportances(weights []float64, n int) []importance {
	out := make([]importance, 0, len(weights))
	for i, w := range weights {
		if i < len(features.FeatureNames) {
			out = append(out, importance{Feature: features.FeatureNames[i], Weight: w})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Weight > out[j].Weight })
	if len(out) > n {
		out = out[:n]
	}
	return out
}
