// Package config defines process configuration and its layered loader.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Loading errors wrap ErrLoadConfig, validation errors wrap ErrInvalidConfig.
package config

import (
	"fmt"
	"strings"

	"github.com/okian/progresscast/internal/adapters/eventstore"
	"github.com/okian/progresscast/internal/domain/estimator"
	"github.com/okian/progresscast/internal/domain/insight"
	"github.com/okian/progresscast/pkg/logger"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects text or json log output.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// ModelDir is where model, scaler and metrics files live.
	ModelDir string `koanf:"model_dir"`

	// ModelFamily selects linear or forest.
	ModelFamily string `koanf:"model_family"`

	// WindowSize is the number of past events per feature vector.
	WindowSize int `koanf:"window_size"`

	// MinEntries drops user-activity histories shorter than this from training.
	MinEntries int `koanf:"min_entries"`

	// TestSize is the held-out fraction in (0, 1).
	TestSize float64 `koanf:"test_size"`

	Store   Store          `koanf:"store"`
	Forest  Forest         `koanf:"forest"`
	Insight insight.Policy `koanf:"insight"`
}

// Store configures the score event database.
type Store struct {
	// Driver is sqlite3 or postgres.
	Driver string `koanf:"driver"`
	DSN    string `koanf:"dsn"`
}

// Forest holds the random forest hyperparameters.
type Forest struct {
	Trees           int   `koanf:"trees"`
	MaxDepth        int   `koanf:"max_depth"`
	MinSamplesSplit int   `koanf:"min_samples_split"`
	MinSamplesLeaf  int   `koanf:"min_samples_leaf"`
	Seed            int64 `koanf:"seed"`
}

// Estimator converts f to the estimator package's config.
func (f Forest) Estimator() estimator.ForestConfig {
	return estimator.ForestConfig{
		Trees:           f.Trees,
		MaxDepth:        f.MaxDepth,
		MinSamplesSplit: f.MinSamplesSplit,
		MinSamplesLeaf:  f.MinSamplesLeaf,
		Seed:            f.Seed,
	}
}

// New creates a Config holding the defaults.
func New() *Config {
	fc := estimator.DefaultForestConfig()
	return &Config{
		LogLevel:    "info",
		LogFormat:   logger.FormatText,
		Addr:        ":9080",
		ModelDir:    "models",
		ModelFamily: string(estimator.DefaultFamily),
		WindowSize:  3,
		MinEntries:  5,
		TestSize:    0.2,
		Store: Store{
			Driver: eventstore.DriverSQLite,
			DSN:    "progresscast.db",
		},
		Forest: Forest{
			Trees:           fc.Trees,
			MaxDepth:        fc.MaxDepth,
			MinSamplesSplit: fc.MinSamplesSplit,
			MinSamplesLeaf:  fc.MinSamplesLeaf,
			Seed:            fc.Seed,
		},
		Insight: insight.DefaultPolicy(),
	}
}

// Family returns the parsed model family.
func (c *Config) Family() (estimator.Family, error) {
	return estimator.ParseFamily(c.ModelFamily)
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.ModelDir == "":
		return fmt.Errorf("%w: model_dir must not be empty", ErrInvalidConfig)
	case c.WindowSize < 1:
		return fmt.Errorf("%w: window_size must be at least 1, got %d", ErrInvalidConfig, c.WindowSize)
	case c.MinEntries < 1:
		return fmt.Errorf("%w: min_entries must be at least 1, got %d", ErrInvalidConfig, c.MinEntries)
	case !(c.TestSize > 0 && c.TestSize < 1):
		return fmt.Errorf("%w: test_size must be in (0, 1), got %v", ErrInvalidConfig, c.TestSize)
	case c.Forest.Trees < 1:
		return fmt.Errorf("%w: forest needs at least one tree", ErrInvalidConfig)
	case c.Forest.MaxDepth < 0:
		return fmt.Errorf("%w: forest max_depth must be >= 0 (0 is unlimited), got %d", ErrInvalidConfig, c.Forest.MaxDepth)
	case c.Forest.MinSamplesSplit < 2 || c.Forest.MinSamplesLeaf < 1:
		return fmt.Errorf("%w: forest min_samples_split must be >= 2 and min_samples_leaf >= 1", ErrInvalidConfig)
	}

	switch strings.ToLower(c.LogFormat) {
	case logger.FormatText, logger.FormatJSON:
	default:
		return fmt.Errorf("%w: log_format %q", ErrInvalidConfig, c.LogFormat)
	}
	switch c.Store.Driver {
	case eventstore.DriverSQLite, eventstore.DriverPostgres:
	default:
		return fmt.Errorf("%w: store.driver %q", ErrInvalidConfig, c.Store.Driver)
	}
	if c.Store.DSN == "" {
		return fmt.Errorf("%w: store.dsn must not be empty", ErrInvalidConfig)
	}
	if _, err := c.Family(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := c.Insight.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}
