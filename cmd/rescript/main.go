package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bft-labs/rescript/internal/cliconfig"
)

const helpBanner = `
                         _       _
  _ __ ___  ___  ___ _ __(_)_ __ | |_
 | '__/ _ \/ __|/ __| '__| | '_ \| __|
 | | |  __/\__ \ (__| |  | | |_) | |_
 |_|  \___||___/\___|_|  |_| .__/ \__|
                           |_|
`

const helpDescription = `rescript - reference sequence and taxonomy database manager

Downloads reference databases (SILVA, NCBI GenBank, GTDB, UNITE, MIDORI2)
and curates them: culling, dereplication, length and taxon filtering,
orientation, segment extraction and evaluation.

Inputs and outputs are plain FASTA and Feature ID/Taxon TSV files. Every
action is recorded in a local SQLite catalog (see "rescript catalog").

Configuration precedence (highest first): flags > env (RESCRIPT_*) > config file > defaults.`

const exampleUsage = `  # SILVA 138.2 SSU NR99 with default ranks
  rescript get-silva-data --output-sequences silva-seqs.fasta --output-taxonomy silva-tax.tsv

  # NCBI records for a query, four concurrent requests with an API key
  rescript get-ncbi-data --query 'txid2[ORGN] AND 16S[TITL]' --jobs 4 --ncbi-api-key KEY \
    --output-sequences ncbi-seqs.fasta --output-taxonomy ncbi-tax.tsv

  # Cull then dereplicate with LCA labels
  rescript cull-seqs --sequences seqs.fasta --output-sequences culled.fasta
  rescript dereplicate --sequences culled.fasta --taxonomy tax.tsv --mode lca \
    --output-sequences derep.fasta --output-taxonomy derep-tax.tsv

  # Curate FASTA files dropped into a directory
  rescript watch --dir ./inbox --out ./curated`

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		if v := info.Main.Version; v != "" && v != "(devel)" {
			return v
		}
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" && len(s.Value) >= 7 {
				return "dev-" + s.Value[:7]
			}
		}
	}
	return "dev"
}

func main() {
	c := &cli{cfg: cliconfig.DefaultConfig()}
	root := newRootCmd(c)

	ctx, cancel := context.WithCancel(context.Background())
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		c.log.Info().Msg("shutting down")
		cancel()
	}()

	err := root.ExecuteContext(ctx)
	c.close()
	cancel()
	if err != nil {
		l := c.errorLogger()
		l.Error().Err(err).Msg("rescript failed")
		os.Exit(1)
	}
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:           "rescript",
		Short:         "Reference sequence and taxonomy database manager",
		Long:          helpBanner + "\n" + helpDescription,
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup(cmd)
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&c.configPath, "config", "", "Path to TOML config file (default ~/.rescript/config.toml)")
	f.StringVar(&c.cfg.CacheDir, "cache-dir", c.cfg.CacheDir, "Directory for downloaded files (default ~/.rescript/cache)")
	f.StringVar(&c.cfg.CatalogPath, "catalog", c.cfg.CatalogPath, "Path to the run catalog (default ~/.rescript/catalog.db)")
	f.BoolVar(&c.cfg.NoCatalog, "no-catalog", c.cfg.NoCatalog, "Do not record runs in the catalog")
	f.BoolVar(&c.keepDownloads, "keep-downloads", false, "Keep downloaded files in the cache directory after a run")
	f.DurationVar(&c.cfg.HTTPTimeout, "timeout", c.cfg.HTTPTimeout, "Per-request HTTP timeout")
	f.IntVar(&c.cfg.Retries, "retries", c.cfg.Retries, "Attempts per download")
	f.DurationVar(&c.cfg.BackoffInitial, "backoff-initial", c.cfg.BackoffInitial, "Initial retry backoff")
	f.DurationVar(&c.cfg.BackoffMax, "backoff-max", c.cfg.BackoffMax, "Maximum retry backoff")
	f.StringVar(&c.cfg.UserAgent, "user-agent", c.cfg.UserAgent, "HTTP User-Agent")
	f.IntVar(&c.cfg.Jobs, "jobs", c.cfg.Jobs, "Concurrent workers for downloads and alignment")
	f.StringVar(&c.cfg.NCBIAPIKey, "ncbi-api-key", c.cfg.NCBIAPIKey, "NCBI API key (env NCBI_API_KEY)")
	f.DurationVar(&c.cfg.EntrezDelay, "entrez-delay", c.cfg.EntrezDelay, "Minimum delay between Entrez requests")
	f.StringVar(&c.cfg.LogLevel, "log-level", c.cfg.LogLevel, "Log level: debug|info|warn|error")

	root.AddCommand(
		newSilvaCmd(c),
		newParseSilvaTaxonomyCmd(c),
		newNCBICmd(c),
		newGTDBCmd(c),
		newUniteCmd(c),
		newMidori2Cmd(c),

		newCullCmd(c),
		newDegapCmd(c),
		newReverseTranscribeCmd(c),
		newDereplicateCmd(c),
		newFilterLengthCmd(c),
		newFilterLengthByTaxonCmd(c),
		newFilterTaxaCmd(c),
		newEditTaxonomyCmd(c),
		newMergeTaxaCmd(c),
		newSubsampleCmd(c),
		newOrientCmd(c),
		newExtractSegmentsCmd(c),
		newEvaluateTaxonomyCmd(c),
		newEvaluateSeqsCmd(c),

		newCatalogCmd(c),
		newCacheCmd(c),
		newWatchCmd(c),
	)
	return root
}
