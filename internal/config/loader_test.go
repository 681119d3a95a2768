package config_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/okian/progresscast/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()

		convey.Convey("When loading config with defaults only", func() {
			clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldResemble, config.New())
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("PROGRESSCAST_ADDR", ":8080")
			_ = os.Setenv("PROGRESSCAST_MODEL_DIR", "/var/lib/models")
			_ = os.Setenv("PROGRESSCAST_WINDOW_SIZE", "5")
			_ = os.Setenv("PROGRESSCAST_TEST_SIZE", "0.25")
			_ = os.Setenv("PROGRESSCAST_FOREST__TREES", "40")
			_ = os.Setenv("PROGRESSCAST_STORE__DRIVER", "postgres")
			_ = os.Setenv("PROGRESSCAST_INSIGHT__MASTERY_SCORE", "85")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.ModelDir, convey.ShouldEqual, "/var/lib/models")
				convey.So(cfg.WindowSize, convey.ShouldEqual, 5)
				convey.So(cfg.TestSize, convey.ShouldEqual, 0.25)
				convey.So(cfg.Forest.Trees, convey.ShouldEqual, 40)
				convey.So(cfg.Forest.MaxDepth, convey.ShouldEqual, 10)
				convey.So(cfg.Store.Driver, convey.ShouldEqual, "postgres")
				convey.So(cfg.Insight.MasteryScore, convey.ShouldEqual, 85)
				convey.So(cfg.Insight.ConfidentScore, convey.ShouldEqual, 75)
			})
		})

		convey.Convey("When loading config with YAML file", func() {
			yamlContent := `
# comment
addr: ":9090"
model_family: linear
min_entries: 8
store:
  driver: sqlite3
  dsn: /tmp/events.db
forest:
  seed: 7
`
			tmpFile := createTempConfigFile(t, yamlContent)
			_ = os.Setenv("PROGRESSCAST_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should merge the file over the defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.ModelFamily, convey.ShouldEqual, "linear")
				convey.So(cfg.MinEntries, convey.ShouldEqual, 8)
				convey.So(cfg.Store.DSN, convey.ShouldEqual, "/tmp/events.db")
				convey.So(cfg.Forest.Seed, convey.ShouldEqual, 7)
				convey.So(cfg.Forest.Trees, convey.ShouldEqual, 100)
				convey.So(cfg.WindowSize, convey.ShouldEqual, 3)
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			tmpFile := createTempConfigFile(t, "addr: \":9090\"\nmin_entries: 8\n")
			_ = os.Setenv("PROGRESSCAST_CONFIG", tmpFile)
			_ = os.Setenv("PROGRESSCAST_ADDR", ":8080")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080") // Overridden by env
				convey.So(cfg.MinEntries, convey.ShouldEqual, 8) // From file
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			tmpFile := createTempConfigFile(t, `invalid: yaml: content: [`)
			_ = os.Setenv("PROGRESSCAST_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("PROGRESSCAST_CONFIG", "/non/existent/file.yaml")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			_ = os.Setenv("PROGRESSCAST_WINDOW_SIZE", "not_a_number")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with an out-of-range test size", func() {
			_ = os.Setenv("PROGRESSCAST_TEST_SIZE", "1.5")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "test_size")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

// Helper functions.

func clearConfigEnvVars() {
	envVars := []string{
		"PROGRESSCAST_CONFIG",
		"PROGRESSCAST_ADDR",
		"PROGRESSCAST_MODEL_DIR",
		"PROGRESSCAST_WINDOW_SIZE",
		"PROGRESSCAST_TEST_SIZE",
		"PROGRESSCAST_FOREST__TREES",
		"PROGRESSCAST_STORE__DRIVER",
		"PROGRESSCAST_INSIGHT__MASTERY_SCORE",
	}
	for _, envVar := range envVars {
		_ = os.Unsetenv(envVar)
	}
}

func createTempConfigFile(t *testing.T, content string) string {
	tmpFile, err := os.CreateTemp(t.TempDir(), "progresscast-config-*.yaml")
	if err != nil {
		panic(err)
	}

	if _, err := tmpFile.WriteString(content); err != nil {
		panic(err)
	}

	if err := tmpFile.Close(); err != nil {
		panic(err)
	}

	return tmpFile.Name()
}
