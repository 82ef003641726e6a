package commands

import (
	"github.com/spf13/cobra"
	"go.trai.ch/sift/internal/app"
)

func (c *CLI) newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [stages...]",
		Short: "Build, then rebuild whenever a source tree changes",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			metricsFile, _ := cmd.Flags().GetString("metrics-file")
			return c.app.Watch(cmd.Context(), app.WatchOptions{
				ConfigPath:  c.configPath,
				Stages:      args,
				MetricsFile: metricsFile,
			})
		},
	}
	cmd.Flags().String("metrics-file", "", "Rewrite pass metrics to this file after every pass")
	return cmd
}
