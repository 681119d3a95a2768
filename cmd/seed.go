package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/progresscast/internal/domain/model"
	"github.com/okian/progresscast/internal/testevents"
)

func newSeedCmd(c *cli) *cobra.Command {
	cfg := testevents.DefaultConfig()
	var activityNames []string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Write synthetic score histories to the event store",
		Long: `Generate per-user learning curves with noise for every activity and write
them to the configured event store. The same --seed yields the same scores.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if len(activityNames) > 0 {
				cfg.Activities = cfg.Activities[:0]
				for _, name := range activityNames {
					a, err := model.ParseActivity(name)
					if err != nil {
						return err
					}
					cfg.Activities = append(cfg.Activities, a)
				}
			}

			ctx := cmd.Context()
			store, err := c.openStore(ctx)
			if err != nil {
				return err
			}
			defer closeStore(ctx, store)

			stats, err := testevents.Run(ctx, cfg, store)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d events for %d users in %s\n",
				stats.EventsWritten, cfg.Users, stats.Duration.Round(time.Millisecond))
			return nil
		},
	}

	f := cmd.Flags()
	f.IntVar(&cfg.Users, "users", cfg.Users, "number of users")
	f.IntVar(&cfg.Events, "events", cfg.Events, "events per user and activity")
	f.StringSliceVar(&activityNames, "activity", nil, "activities to generate (repeatable), all when omitted")
	f.Int64Var(&cfg.Seed, "seed", cfg.Seed, "random seed")
	f.Float64Var(&cfg.Noise, "noise", cfg.Noise, "std of per-attempt score noise")
	f.DurationVar(&cfg.Spacing, "spacing", cfg.Spacing, "mean gap between attempts")
	f.IntVar(&cfg.Workers, "workers", cfg.Workers, "concurrent generators")
	f.IntVar(&cfg.BatchSize, "batch-size", cfg.BatchSize, "events per insert")
	return cmd
}
