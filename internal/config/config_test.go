package config_test

import (
	"errors"
	"testing"

	"github.com/okian/progresscast/internal/config"
	"github.com/okian/progresscast/internal/domain/estimator"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.ModelDir, convey.ShouldEqual, "models")
			convey.So(cfg.ModelFamily, convey.ShouldEqual, "forest")
			convey.So(cfg.WindowSize, convey.ShouldEqual, 3)
			convey.So(cfg.MinEntries, convey.ShouldEqual, 5)
			convey.So(cfg.TestSize, convey.ShouldEqual, 0.2)
			convey.So(cfg.Store.Driver, convey.ShouldEqual, "sqlite3")
			convey.So(cfg.Forest.Estimator(), convey.ShouldResemble, estimator.DefaultForestConfig())
			convey.So(cfg.Insight.MasteryScore, convey.ShouldEqual, 90)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given a default config", t, func() {
		cases := []struct {
			name   string
			mutate func(*config.Config)
		}{
			{"empty addr", func(c *config.Config) { c.Addr = "" }},
			{"empty model dir", func(c *config.Config) { c.ModelDir = "" }},
			{"zero window", func(c *config.Config) { c.WindowSize = 0 }},
			{"zero min entries", func(c *config.Config) { c.MinEntries = 0 }},
			{"test size of one", func(c *config.Config) { c.TestSize = 1 }},
			{"no trees", func(c *config.Config) { c.Forest.Trees = 0 }},
			{"negative depth", func(c *config.Config) { c.Forest.MaxDepth = -1 }},
			{"split below two", func(c *config.Config) { c.Forest.MinSamplesSplit = 1 }},
			{"unknown log format", func(c *config.Config) { c.LogFormat = "xml" }},
			{"unknown driver", func(c *config.Config) { c.Store.Driver = "mysql" }},
			{"empty dsn", func(c *config.Config) { c.Store.DSN = "" }},
			{"unknown family", func(c *config.Config) { c.ModelFamily = "svm" }},
			{"unordered insight", func(c *config.Config) { c.Insight.FormingScore = 80 }},
		}

		for _, tc := range cases {
			convey.Convey("When it has "+tc.name, func() {
				cfg := config.New()
				tc.mutate(cfg)

				convey.Convey("Then validation fails with ErrInvalidConfig", func() {
					convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
				})
			})
		}

		convey.Convey("When max_depth is zero", func() {
			cfg := config.New()
			cfg.Forest.MaxDepth = 0

			convey.Convey("Then it is accepted as unlimited depth", func() {
				convey.So(cfg.Validate(), convey.ShouldBeNil)
				convey.So(cfg.Forest.Estimator().MaxDepth, convey.ShouldEqual, 0)
			})
		})
	})
}
