// Package artifact persists fitted models, scalers and their metrics as JSON
// files in one flat directory.
//
// For a family F and key K (an activity or "all") the files are
// progress_predictor_F_K.json, scaler_F_K.json and metrics_F_K.json.
package artifact

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/okian/progresscast/internal/domain/estimator"
	"github.com/okian/progresscast/internal/domain/features"
	"github.com/okian/progresscast/pkg/logger"
)

// SchemaVersion is bumped whenever the feature schema or blob layout changes.
const SchemaVersion = 1

const (
	dirPerm  = 0o755
	filePerm = 0o644
)

// ModelBlob is the on-disk model envelope. Payload is family specific.
type ModelBlob struct {
	Family        estimator.Family `json:"family"`
	SchemaVersion int              `json:"schema_version"`
	FeatureNames  []string         `json:"feature_names"`
	WindowSize    int              `json:"window_size"`
	RunID         string           `json:"run_id,omitempty"`
	TrainedAt     time.Time        `json:"trained_at"`
	Payload       json.RawMessage  `json:"payload"`
}

// ScalerBlob is the on-disk scaler.
type ScalerBlob struct {
	NFeaturesIn  int       `json:"n_features_in"`
	FeatureNames []string  `json:"feature_names"`
	Mean         []float64 `json:"mean"`
	Scale        []float64 `json:"scale"`
}

// Bundle is everything needed to serve one trained model.
type Bundle struct {
	Family     estimator.Family
	Key        string
	WindowSize int
	RunID      string
	TrainedAt  time.Time
	Regressor  estimator.Regressor
	Scaler     *estimator.Scaler
	Metrics    estimator.Metrics
}

// Paths lists the files of one (family, key).
type Paths struct {
	Model   string
	Scaler  string
	Metrics string
}

// Option applies a configuration option to the Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// Store reads and writes bundles under a directory.
type Store struct {
	dir string
	log logger.Logger
}

// NewStore returns a store rooted at dir. The directory is created on Save.
func NewStore(dir string, opts ...Option) *Store {
	s := &Store{dir: dir, log: logger.Get().Named("artifact")}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dir returns the root directory.
func (s *Store) Dir() string { return s.dir }

// Paths returns the file names for (family, key).
func (s *Store) Paths(family estimator.Family, key string) Paths {
	suffix := fmt.Sprintf("%s_%s.json", family, key)
	return Paths{
		Model:   filepath.Join(s.dir, "progress_predictor_"+suffix),
		Scaler:  filepath.Join(s.dir, "scaler_"+suffix),
		Metrics: filepath.Join(s.dir, "metrics_"+suffix),
	}
}

// Save writes the bundle, overwriting earlier files, and returns the model path.
func (s *Store) Save(ctx context.Context, b Bundle) (string, error) {
	if b.Regressor == nil || !b.Regressor.Fitted() || b.Scaler == nil || !b.Scaler.Fitted() {
		return "", ErrNotFitted
	}
	if b.Scaler.NFeatures() != features.Arity {
		return "", fmt.Errorf("%w: scaler has %d features, schema has %d",
			ErrSchemaMismatch, b.Scaler.NFeatures(), features.Arity)
	}
	if err := os.MkdirAll(s.dir, dirPerm); err != nil {
		return "", fmt.Errorf("creating model dir: %w", err)
	}

	payload, err := json.Marshal(b.Regressor)
	if err != nil {
		return "", fmt.Errorf("encoding %s model: %w", b.Family, err)
	}
	paths := s.Paths(b.Family, b.Key)
	model := ModelBlob{
		Family:        b.Family,
		SchemaVersion: SchemaVersion,
		FeatureNames:  features.FeatureNames,
		WindowSize:    b.WindowSize,
		RunID:         b.RunID,
		TrainedAt:     b.TrainedAt.UTC(),
		Payload:       payload,
	}
	scaler := ScalerBlob{
		NFeaturesIn:  b.Scaler.NFeatures(),
		FeatureNames: features.FeatureNames,
		Mean:         b.Scaler.Mean,
		Scale:        b.Scaler.Scale,
	}

	if err := writeJSON(paths.Scaler, scaler); err != nil {
		return "", err
	}
	if b.Metrics != nil {
		if err := writeJSON(paths.Metrics, b.Metrics); err != nil {
			return "", err
		}
	} else if err := os.Remove(paths.Metrics); err != nil && !errors.Is(err, fs.ErrNotExist) {
		// A stale file would pair the new model with an earlier run's metrics.
		return "", fmt.Errorf("removing stale metrics: %w", err)
	}
	// The model file goes last; its presence marks a complete bundle.
	if err := writeJSON(paths.Model, model); err != nil {
		return "", err
	}
	s.log.Info(ctx, "saved model", logger.String("path", paths.Model), logger.String("family", string(b.Family)),
		logger.String("key", b.Key))
	return paths.Model, nil
}

// Load reads the bundle for (family, key). A missing model or scaler file
// yields ErrNotFound; a bundle built for another feature schema yields
// ErrSchemaMismatch. Metrics are optional.
func (s *Store) Load(ctx context.Context, family estimator.Family, key string) (Bundle, error) {
	paths := s.Paths(family, key)

	var model ModelBlob
	if err := readJSON(paths.Model, &model); err != nil {
		return Bundle{}, err
	}
	if model.Family != family {
		return Bundle{}, fmt.Errorf("%w: %s holds family %q, want %q", ErrSchemaMismatch, paths.Model, model.Family, family)
	}
	if model.SchemaVersion != SchemaVersion || !slices.Equal(model.FeatureNames, features.FeatureNames) {
		return Bundle{}, fmt.Errorf("%w: model schema v%d with %d features, want v%d with %d",
			ErrSchemaMismatch, model.SchemaVersion, len(model.FeatureNames), SchemaVersion, features.Arity)
	}

	var sb ScalerBlob
	if err := readJSON(paths.Scaler, &sb); err != nil {
		return Bundle{}, err
	}
	if sb.NFeaturesIn != features.Arity || len(sb.Mean) != features.Arity || len(sb.Scale) != features.Arity {
		return Bundle{}, fmt.Errorf("%w: scaler expects %d features, schema has %d",
			ErrSchemaMismatch, sb.NFeaturesIn, features.Arity)
	}
	if sb.FeatureNames != nil && !slices.Equal(sb.FeatureNames, features.FeatureNames) {
		return Bundle{}, fmt.Errorf("%w: scaler feature names differ from schema", ErrSchemaMismatch)
	}

	reg, err := estimator.New(family)
	if err != nil {
		return Bundle{}, err
	}
	if err := json.Unmarshal(model.Payload, reg); err != nil {
		return Bundle{}, fmt.Errorf("decoding %s: %w", paths.Model, err)
	}

	var metrics estimator.Metrics
	if err := readJSON(paths.Metrics, &metrics); err != nil {
		s.log.Debug(ctx, "metrics unavailable", logger.String("path", paths.Metrics), logger.Error(err))
		metrics = nil
	}

	return Bundle{
		Family:     family,
		Key:        key,
		WindowSize: model.WindowSize,
		RunID:      model.RunID,
		TrainedAt:  model.TrainedAt,
		Regressor:  reg,
		Scaler:     &estimator.Scaler{Mean: sb.Mean, Scale: sb.Scale},
		Metrics:    metrics,
	}, nil
}

// writeJSON replaces path atomically through a temp file in the same directory.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", filepath.Base(path), err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("syncing %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", filepath.Base(path), err)
	}
	if err := os.Chmod(tmp.Name(), filePerm); err != nil {
		return fmt.Errorf("chmod %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("renaming %s: %w", filepath.Base(path), err)
	}
	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}
