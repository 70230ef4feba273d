package main

import (
	"fmt"

	"github.com/recera/tnsprep/cmd/tnsprep/internal/ui"
	"github.com/spf13/cobra"
)

func newCacheCommand(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the result cache",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show cache statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := flags.setup(cmd)
			if err != nil {
				return err
			}
			e.cfg.Cache.Enabled = true
			c, err := e.openCache(false)
			if err != nil {
				return err
			}
			defer c.Close()

			ui.RenderCacheStats(cmd.OutOrStdout(), c.Dir(), c.GetStats())
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove every cached result",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := flags.setup(cmd)
			if err != nil {
				return err
			}
			e.cfg.Cache.Enabled = true
			c, err := e.openCache(false)
			if err != nil {
				return err
			}
			defer c.Close()

			before := c.GetStats()
			if err := c.Clear(); err != nil {
				return fmt.Errorf("failed to clear cache: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), ui.Success(fmt.Sprintf("removed %d entries (%s)", before.EntryCount, ui.FormatBytes(before.TotalSize))))
			return nil
		},
	})

	return cmd
}
