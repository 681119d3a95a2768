package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/okian/progresscast/internal/app"
	"github.com/okian/progresscast/internal/domain/estimator"
	"github.com/okian/progresscast/internal/domain/model"
)

func newPredictCmd(c *cli) *cobra.Command {
	var (
		userID       int64
		activityName string
	)
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Forecast the next score of a user at an activity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if userID < 1 {
				return errors.New("--user must be a positive id")
			}
			activity, err := model.ParseActivity(activityName)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			store, err := c.openStore(ctx)
			if err != nil {
				return err
			}
			defer closeStore(ctx, store)

			registry := app.NewRegistry(func(f estimator.Family) *app.Predictor {
				return c.newPredictor(store, f)
			})
			res, ok := registry.Predict(ctx, c.family, userID, activity)
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "no prediction available")
				return nil
			}
			return printJSON(cmd, res)
		},
	}

	f := cmd.Flags()
	f.Int64Var(&userID, "user", 0, "user id")
	f.StringVar(&activityName, "activity", "", "activity name")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("activity")
	return cmd
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	return nil
}
