package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/okian/progresscast/internal/domain/estimator"
	"github.com/okian/progresscast/internal/domain/model"
	"github.com/okian/progresscast/pkg/logger"
)

// ErrNothingTrained is returned when every requested model failed to train.
var ErrNothingTrained = errors.New("no model was trained")

func newTrainCmd(c *cli) *cobra.Command {
	var (
		activityName  string
		allActivities bool
		minEntries    int
		testSize      float64
	)
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train and save next-score models",
		Long: `Train a model on the history of one activity (--activity), one model per
activity (--all-activities), or a single model across all activities.
Per-activity failures are reported and skipped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if activityName != "" && allActivities {
				return errors.New("--activity and --all-activities are mutually exclusive")
			}
			if !cmd.Flags().Changed("min-entries") {
				minEntries = c.cfg.MinEntries
			}
			if !cmd.Flags().Changed("test-size") {
				testSize = c.cfg.TestSize
			}

			var targets []*model.Activity
			switch {
			case allActivities:
				for _, a := range model.AllActivities() {
					targets = append(targets, &a)
				}
			default:
				a, err := parseActivity(activityName)
				if err != nil {
					return err
				}
				targets = append(targets, a)
			}

			ctx := cmd.Context()
			store, err := c.openStore(ctx)
			if err != nil {
				return err
			}
			defer closeStore(ctx, store)

			out := cmd.OutOrStdout()
			var trained []estimator.Metrics
			for _, a := range targets {
				key := model.KeyFor(a)
				p := c.newPredictor(store, c.family)
				m, err := p.Train(ctx, a, testSize, minEntries)
				if err != nil {
					fmt.Fprintf(out, "%s: skipped: %v\n", key, err)
					continue
				}
				path, err := p.Save(ctx, a)
				if err != nil {
					fmt.Fprintf(out, "%s: trained but not saved: %v\n", key, err)
					continue
				}
				trained = append(trained, m)
				fmt.Fprintf(out, "%s: saved %s (n=%d, test MAE=%.2f, test RMSE=%.2f, test R2=%.3f)\n",
					key, path, int(m[estimator.NSamples]), m[estimator.TestMAE], m[estimator.TestRMSE], m[estimator.TestR2])
			}

			if len(trained) == 0 {
				return ErrNothingTrained
			}
			if len(trained) > 1 {
				var mae, r2 float64
				for _, m := range trained {
					mae += m[estimator.TestMAE]
					r2 += m[estimator.TestR2]
				}
				n := float64(len(trained))
				fmt.Fprintf(out, "trained %d of %d models: mean test MAE=%.2f, mean test R2=%.3f\n",
					len(trained), len(targets), mae/n, r2/n)
			}
			logger.Get().Info(ctx, "training finished",
				logger.Int("trained", len(trained)), logger.Int("requested", len(targets)))
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&activityName, "activity", "", "train on one activity only")
	f.BoolVar(&allActivities, "all-activities", false, "train one model per activity")
	f.IntVar(&minEntries, "min-entries", 0, "skip user-activity histories shorter than this")
	f.Float64Var(&testSize, "test-size", 0, "held-out fraction in (0, 1)")
	return cmd
}
