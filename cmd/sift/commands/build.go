package commands

import (
	"github.com/spf13/cobra"
	"go.trai.ch/sift/internal/app"
)

func (c *CLI) newBuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build [stages...]",
		Short: "Run one build pass for the given stages, or all of them",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			metricsFile, _ := cmd.Flags().GetString("metrics-file")
			return c.app.Build(cmd.Context(), app.BuildOptions{
				ConfigPath:  c.configPath,
				Stages:      args,
				MetricsFile: metricsFile,
			})
		},
	}
	cmd.Flags().String("metrics-file", "", "Write pass metrics to this file in Prometheus text format")
	return cmd
}
