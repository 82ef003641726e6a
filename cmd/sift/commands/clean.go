package commands

import (
	"github.com/spf13/cobra"
	"go.trai.ch/sift/internal/app"
)

func (c *CLI) newCleanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clean [stages...]",
		Short: "Remove the cached artifacts and index of the given stages, or all of them",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.app.Clean(cmd.Context(), app.CleanOptions{
				ConfigPath: c.configPath,
				Stages:     args,
			})
		},
	}
}
