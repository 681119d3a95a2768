package main

import (
	"github.com/spf13/cobra"
)

func newInfoCmd(c *cli) *cobra.Command {
	var activityName string
	cmd := &cobra.Command{
		Use:   "info",
		Short: "Describe a saved model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			activity, err := parseActivity(activityName)
			if err != nil {
				return err
			}
			p := c.newPredictor(nil, c.family)
			p.Load(cmd.Context(), activity)
			return printJSON(cmd, p.Info())
		},
	}
	cmd.Flags().StringVar(&activityName, "activity", "", "activity of the model, all activities when empty")
	return cmd
}
