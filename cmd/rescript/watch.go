package main

import (
	"github.com/spf13/cobra"

	"github.com/bft-labs/rescript/internal/app"
	"github.com/bft-labs/rescript/internal/ports"
	"github.com/bft-labs/rescript/plugins/cachecleanup"
	"github.com/bft-labs/rescript/plugins/inboxwatcher"
)

func newWatchCmd(c *cli) *cobra.Command {
	cfg := inboxwatcher.DefaultConfig()
	cleanup := cachecleanup.DefaultConfig()
	var pruneCache bool
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Curate FASTA files as they are written to a directory",
		Long: "Watch a directory and curate every *.fasta, *.fa or *.fna file written to it:\n" +
			"reverse-transcribe, degap and cull. Results are written as <name>" + inboxwatcher.CuratedSuffix + ".\n" +
			"Runs until interrupted.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg.Runner = c.runner

			plugins := []ports.Plugin{inboxwatcher.New(cfg)}
			if pruneCache {
				cleanup.Dir = c.cfg.CacheDir
				plugins = append(plugins, cachecleanup.New(cleanup))
			}

			host := app.NewPluginHost(c.logger, plugins...)
			if err := host.Start(ctx); err != nil {
				return err
			}
			<-ctx.Done()
			return host.Stop(app.ShutdownTimeout)
		},
	}
	f := cmd.Flags()
	f.StringVar(&cfg.Dir, "dir", "", "Directory to watch")
	f.StringVar(&cfg.OutDir, "out", "", "Directory for curated files (default: --dir)")
	f.DurationVar(&cfg.DebounceDelay, "debounce", cfg.DebounceDelay, "Quiet period after the last write before a file is processed")
	f.IntVar(&cfg.MinLength, "min-length", cfg.MinLength, "Drop degapped sequences shorter than this")
	f.IntVar(&cfg.Cull.NumDegenerates, "num-degenerates", cfg.Cull.NumDegenerates, "Drop sequences with this many or more degenerate bases")
	f.IntVar(&cfg.Cull.HomopolymerLength, "homopolymer-length", cfg.Cull.HomopolymerLength, "Drop sequences with a homopolymer of this length or longer")
	f.BoolVar(&pruneCache, "prune-cache", false, "Also prune kept downloads from the cache directory periodically")
	bindCleanupFlags(cmd, &cleanup)
	_ = cmd.MarkFlagRequired("dir")
	return cmd
}
