package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bft-labs/rescript/plugins/cachecleanup"
)

func newCacheCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage downloads kept with --keep-downloads",
	}
	cmd.AddCommand(newCachePruneCmd(c))
	return cmd
}

// bindCleanupFlags registers the watermark flags on cmd.
func bindCleanupFlags(cmd *cobra.Command, cfg *cachecleanup.Config) {
	f := cmd.Flags()
	f.Int64Var(&cfg.HighWatermark, "high-watermark", cfg.HighWatermark, "Cache size in bytes above which old runs are removed")
	f.Int64Var(&cfg.LowWatermark, "low-watermark", cfg.LowWatermark, "Cache size in bytes to prune down to")
	f.DurationVar(&cfg.MinAge, "min-age", cfg.MinAge, "Never remove runs modified more recently than this")
}

func newCachePruneCmd(c *cli) *cobra.Command {
	cfg := cachecleanup.DefaultConfig()
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Remove the oldest kept downloads when the cache exceeds the high watermark",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.Dir = c.cfg.CacheDir
			freed, err := cachecleanup.Prune(cmd.Context(), cfg, c.logger)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "freed %d bytes from %s\n", freed, cfg.Dir)
			return err
		},
	}
	bindCleanupFlags(cmd, &cfg)
	return cmd
}
