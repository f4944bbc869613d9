package main

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bft-labs/rescript/internal/adapters/fs"
	"github.com/bft-labs/rescript/internal/app"
	"github.com/bft-labs/rescript/internal/domain"
	"github.com/bft-labs/rescript/internal/sources"
)

func choices(vals []string) string { return strings.Join(vals, "|") }

func newSilvaCmd(c *cli) *cobra.Command {
	p := sources.DefaultSilvaParams()
	var (
		out     datasetOutputs
		baseURL string
	)
	cmd := &cobra.Command{
		Use:   "get-silva-data",
		Short: "Download a SILVA release and build its taxonomy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if p.DownloadSequences && out.sequences == "" {
				return fmt.Errorf("%w: --output-sequences is required unless --download-sequences=false", domain.ErrInvalidParameter)
			}
			return c.run(cmd, func(ctx context.Context, s *app.Session) (app.Result, error) {
				dir, done, err := c.workDir(s, cmd.Name())
				if err != nil {
					return app.Result{}, err
				}
				defer done()
				ds, err := sources.NewSilva(c.fetcher(s), s.Logger(), baseURL).Get(ctx, p, dir)
				if err != nil {
					return app.Result{}, err
				}
				return out.write(ds.Sequences, ds.Taxonomy)
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&p.Version, "version", p.Version, "SILVA release: "+choices(sources.SilvaVersions))
	f.StringVar(&p.Target, "target", p.Target, "Reference target: "+choices(sources.SilvaTargets))
	f.BoolVar(&p.IncludeSpeciesLabels, "include-species-labels", p.IncludeSpeciesLabels, "Append species labels taken from organism names")
	f.BoolVar(&p.RankPropagation, "rank-propagation", p.RankPropagation, "Fill missing ranks from the nearest higher rank")
	f.StringSliceVar(&p.Ranks, "ranks", p.Ranks, "Ranks to include in labels")
	f.BoolVar(&p.DownloadSequences, "download-sequences", p.DownloadSequences, "Download the sequence file as well as the taxonomy")
	f.StringVar(&baseURL, "silva-url", sources.DefaultSilvaURL, "Base URL of the SILVA archive")
	out.bind(cmd, true)
	return cmd
}

func newParseSilvaTaxonomyCmd(c *cli) *cobra.Command {
	p := sources.DefaultSilvaParams()
	var rankFile, taxMap, output string
	cmd := &cobra.Command{
		Use:   "parse-silva-taxonomy",
		Short: "Build a taxonomy from local SILVA rank and taxmap files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(ctx context.Context, s *app.Session) (app.Result, error) {
				if err := p.Validate(); err != nil {
					return app.Result{}, err
				}
				rc, err := fs.Open(rankFile)
				if err != nil {
					return app.Result{}, err
				}
				ranks, err := sources.ReadSilvaRanks(rc)
				rc.Close()
				if err != nil {
					return app.Result{}, fmt.Errorf("read %s: %w", rankFile, err)
				}

				rc, err = fs.Open(taxMap)
				if err != nil {
					return app.Result{}, err
				}
				defer rc.Close()
				tax, err := sources.ParseSilvaTaxonomy(rc, ranks, p)
				if err != nil {
					return app.Result{}, fmt.Errorf("read %s: %w", taxMap, err)
				}

				res := newResult()
				return res, writeTax(&res, "taxonomy", output, tax)
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&rankFile, "rank-file", "", "SILVA tax_slv_*.txt(.gz) file")
	f.StringVar(&taxMap, "taxonomy-map", "", "SILVA taxmap_slv_*.txt(.gz) file")
	f.BoolVar(&p.IncludeSpeciesLabels, "include-species-labels", p.IncludeSpeciesLabels, "Append species labels taken from organism names")
	f.BoolVar(&p.RankPropagation, "rank-propagation", p.RankPropagation, "Fill missing ranks from the nearest higher rank")
	f.StringSliceVar(&p.Ranks, "ranks", p.Ranks, "Ranks to include in labels")
	f.StringVar(&output, "output-taxonomy", "", "Output taxonomy TSV file")
	for _, name := range []string{"rank-file", "taxonomy-map", "output-taxonomy"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func newNCBICmd(c *cli) *cobra.Command {
	p := sources.DefaultNCBIParams()
	var (
		out     datasetOutputs
		baseURL string
		idsFile string
	)
	cmd := &cobra.Command{
		Use:   "get-ncbi-data",
		Short: "Download GenBank records and their NCBI taxonomy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(ctx context.Context, s *app.Session) (app.Result, error) {
				if idsFile != "" {
					ids, err := fs.ReadIDs(idsFile)
					if err != nil {
						return app.Result{}, err
					}
					p.AccessionIDs = append(p.AccessionIDs, ids...)
				}
				p.Jobs = c.cfg.Jobs
				p.APIKey = c.cfg.NCBIAPIKey
				p.EntrezDelay = c.cfg.EntrezDelay

				ds, err := sources.NewNCBI(c.fetcher(s), s.Logger(), baseURL).Get(ctx, p)
				if err != nil {
					return app.Result{}, err
				}
				return out.write(ds.Sequences, ds.Taxonomy)
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&p.Query, "query", "", "Entrez nuccore query")
	f.StringSliceVar(&p.AccessionIDs, "accession-ids", nil, "Accession numbers to fetch")
	f.StringVar(&idsFile, "accession-ids-file", "", "File with one accession number per line (first column of a TSV)")
	f.StringSliceVar(&p.Ranks, "ranks", p.Ranks, "Ranks to include in labels")
	f.BoolVar(&p.RankPropagation, "rank-propagation", p.RankPropagation, "Fill missing ranks from the nearest higher rank")
	f.StringVar(&baseURL, "entrez-url", sources.DefaultEntrezURL, "Base URL of the Entrez E-utilities")
	out.bind(cmd, true)
	_ = cmd.MarkFlagRequired("output-sequences")
	return cmd
}

func newGTDBCmd(c *cli) *cobra.Command {
	p := sources.DefaultGTDBParams()
	var (
		out     datasetOutputs
		baseURL string
	)
	cmd := &cobra.Command{
		Use:   "get-gtdb-data",
		Short: "Download GTDB SSU sequences and taxonomy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(ctx context.Context, s *app.Session) (app.Result, error) {
				dir, done, err := c.workDir(s, cmd.Name())
				if err != nil {
					return app.Result{}, err
				}
				defer done()
				ds, err := sources.NewGTDB(c.fetcher(s), s.Logger(), baseURL).Get(ctx, p, dir)
				if err != nil {
					return app.Result{}, err
				}
				return out.write(ds.Sequences, ds.Taxonomy)
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&p.Version, "version", p.Version, "GTDB release: "+choices(sources.GTDBVersions))
	f.StringVar(&p.Domain, "domain", p.Domain, "Domain: "+choices(sources.GTDBDomains))
	f.StringVar(&p.DBType, "db-type", p.DBType, "Database type: "+choices(sources.GTDBDBTypes))
	f.StringVar(&baseURL, "gtdb-url", sources.DefaultGTDBURL, "Base URL of the GTDB releases")
	out.bind(cmd, true)
	_ = cmd.MarkFlagRequired("output-sequences")
	return cmd
}

func newUniteCmd(c *cli) *cobra.Command {
	p := sources.DefaultUniteParams()
	var (
		out    datasetOutputs
		apiURL string
	)
	cmd := &cobra.Command{
		Use:   "get-unite-data",
		Short: "Download a UNITE release",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(ctx context.Context, s *app.Session) (app.Result, error) {
				dir, done, err := c.workDir(s, cmd.Name())
				if err != nil {
					return app.Result{}, err
				}
				defer done()
				ds, err := sources.NewUnite(c.fetcher(s), s.Logger(), apiURL).Get(ctx, p, dir)
				if err != nil {
					return app.Result{}, err
				}
				return out.write(ds.Sequences, ds.Taxonomy)
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&p.Version, "version", p.Version, "UNITE release: "+choices(sources.UniteVersions))
	f.StringVar(&p.TaxonGroup, "taxon-group", p.TaxonGroup, "Taxon group: "+choices(sources.UniteTaxonGroups))
	f.StringVar(&p.ClusterID, "cluster-id", p.ClusterID, "Clustering threshold: "+choices(sources.UniteClusterIDs))
	f.BoolVar(&p.Singletons, "singletons", p.Singletons, "Include singletons set as RefS")
	f.StringVar(&apiURL, "plutof-url", sources.DefaultPlutoFURL, "PlutoF DOI endpoint")
	out.bind(cmd, true)
	_ = cmd.MarkFlagRequired("output-sequences")
	return cmd
}

func newMidori2Cmd(c *cli) *cobra.Command {
	p := sources.DefaultMidori2Params()
	var baseURL, outDir string
	cmd := &cobra.Command{
		Use:   "get-midori2-data",
		Short: "Download MIDORI2 mitochondrial reference sets",
		Long: "Download MIDORI2 mitochondrial reference sets. Each gene is written to\n" +
			"<output-dir>/<gene>_seqs.fasta and <output-dir>/<gene>_taxa.tsv.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(ctx context.Context, s *app.Session) (app.Result, error) {
				dir, done, err := c.workDir(s, cmd.Name())
				if err != nil {
					return app.Result{}, err
				}
				defer done()
				p.Jobs = c.cfg.Jobs
				sets, err := sources.NewMidori2(c.fetcher(s), s.Logger(), baseURL).Get(ctx, p, dir)
				if err != nil {
					return app.Result{}, err
				}

				genes := make([]string, 0, len(sets))
				for g := range sets {
					genes = append(genes, g)
				}
				sort.Strings(genes)
				res := newResult()
				for _, g := range genes {
					ds := sets[g]
					if err := writeSeqs(&res, g+"-sequences", filepath.Join(outDir, g+"_seqs.fasta"), ds.Sequences); err != nil {
						return res, err
					}
					if err := writeTax(&res, g+"-taxonomy", filepath.Join(outDir, g+"_taxa.tsv"), ds.Taxonomy); err != nil {
						return res, err
					}
				}
				return res, nil
			})
		},
	}
	f := cmd.Flags()
	f.StringSliceVar(&p.Genes, "mito-gene", p.Genes, "Genes to download, or \"all\": "+choices(sources.Midori2Genes))
	f.StringVar(&p.Version, "version", p.Version, "MIDORI2 release, e.g. GenBank265_2025-03-08")
	f.StringVar(&p.RefSeqType, "ref-seq-type", p.RefSeqType, "Reference set: "+choices(sources.Midori2RefSeqTypes))
	f.BoolVar(&p.UnspecifiedSpecies, "unspecified-species", p.UnspecifiedSpecies, "Use the set that includes unspecified species")
	f.StringVar(&baseURL, "midori2-url", sources.DefaultMidori2URL, "Base URL of the MIDORI2 databases")
	f.StringVar(&outDir, "output-dir", "", "Directory receiving one FASTA and taxonomy file per gene")
	_ = cmd.MarkFlagRequired("output-dir")
	_ = cmd.MarkFlagRequired("mito-gene")
	return cmd
}
