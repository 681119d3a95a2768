package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/okian/progresscast/internal/adapters/artifact"
	"github.com/okian/progresscast/internal/adapters/eventstore"
	"github.com/okian/progresscast/internal/app"
	"github.com/okian/progresscast/internal/config"
	"github.com/okian/progresscast/internal/domain/estimator"
	"github.com/okian/progresscast/internal/domain/insight"
	"github.com/okian/progresscast/internal/domain/model"
	"github.com/okian/progresscast/pkg/logger"
)

// cli carries the resolved configuration to subcommands.
type cli struct {
	cfg    *config.Config
	family estimator.Family

	// Persistent flags
	configPath  string
	logLevel    string
	logFormat   string
	modelDir    string
	familyName  string
	windowSize  int
	storeDriver string
	storeDSN    string
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   "progresscast",
		Short: "Forecast learners' next scores from their score history",
		Long: `progresscast trains regression models on per-user score histories and
forecasts the next score, a confidence, an insight and a mastery timeline.

Configuration is layered: defaults, then the YAML file named by --config or
PROGRESSCAST_CONFIG, then PROGRESSCAST_* environment variables, then flags.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.setup,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&c.configPath, "config", "", "YAML config file")
	pf.StringVar(&c.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&c.logFormat, "log-format", "", "log format: text or json")
	pf.StringVar(&c.modelDir, "model-dir", "", "directory holding model artifacts")
	pf.StringVar(&c.familyName, "family", "", "model family: linear or forest")
	pf.IntVar(&c.windowSize, "window-size", 0, "past events per feature window")
	pf.StringVar(&c.storeDriver, "store-driver", "", "event store driver: sqlite3 or postgres")
	pf.StringVar(&c.storeDSN, "store-dsn", "", "event store data source name")

	root.AddCommand(
		newTrainCmd(c),
		newPredictCmd(c),
		newInfoCmd(c),
		newServeCmd(c),
		newSeedCmd(c),
	)
	return root
}

// setup loads configuration, applies explicitly set flags and initializes logging.
func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	if c.configPath != "" {
		if err := os.Setenv(config.FileEnv, c.configPath); err != nil {
			return fmt.Errorf("setting %s: %w", config.FileEnv, err)
		}
	}
	cfg, err := config.Load(cmd.Context())
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.LogLevel = c.logLevel
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = c.logFormat
	}
	if flags.Changed("model-dir") {
		cfg.ModelDir = c.modelDir
	}
	if flags.Changed("family") {
		cfg.ModelFamily = c.familyName
	}
	if flags.Changed("window-size") {
		cfg.WindowSize = c.windowSize
	}
	if flags.Changed("store-driver") {
		cfg.Store.Driver = c.storeDriver
	}
	if flags.Changed("store-dsn") {
		cfg.Store.DSN = c.storeDSN
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	// Logs go to stderr so JSON results on stdout stay clean.
	if err := logger.InitWith(logger.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Writer: cmd.ErrOrStderr(),
	}); err != nil {
		return fmt.Errorf("initializing logging: %w", err)
	}

	c.cfg = cfg
	c.family, err = cfg.Family()
	return err
}

// openStore connects to the configured event store and applies migrations.
func (c *cli) openStore(ctx context.Context) (*eventstore.SQLStore, error) {
	store, err := eventstore.Open(ctx, c.cfg.Store.Driver, c.cfg.Store.DSN)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

// newPredictor builds an untrained predictor of family from the configuration.
func (c *cli) newPredictor(store eventstore.Store, family estimator.Family) *app.Predictor {
	return app.New(
		app.WithFamily(family),
		app.WithWindowSize(c.cfg.WindowSize),
		app.WithForestConfig(c.cfg.Forest.Estimator()),
		app.WithStore(store),
		app.WithArtifacts(artifact.NewStore(c.cfg.ModelDir)),
		app.WithInsightTable(insight.New(insight.WithPolicy(c.cfg.Insight))),
	)
}

// parseActivity returns nil for an empty name.
func parseActivity(name string) (*model.Activity, error) {
	if name == "" {
		return nil, nil
	}
	a, err := model.ParseActivity(name)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func closeStore(ctx context.Context, store *eventstore.SQLStore) {
	if err := store.Close(); err != nil {
		logger.Get().Warn(ctx, "closing event store", logger.Error(err))
	}
}
