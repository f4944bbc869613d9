package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bft-labs/rescript/internal/adapters/fs"
	"github.com/bft-labs/rescript/internal/app"
	"github.com/bft-labs/rescript/internal/curate"
	"github.com/bft-labs/rescript/internal/domain"
)

// seqIO holds the common --sequences/--output-sequences pair.
type seqIO struct {
	in, out string
}

func (s *seqIO) bind(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&s.in, "sequences", "", "Input FASTA file (.gz accepted)")
	f.StringVar(&s.out, "output-sequences", "", "Output FASTA file")
	_ = cmd.MarkFlagRequired("sequences")
	_ = cmd.MarkFlagRequired("output-sequences")
}

// seqAction runs a sequences-in, sequences-out transformation.
func seqAction(c *cli, cmd *cobra.Command, files *seqIO, fn func(ctx context.Context, seqs []domain.Sequence) ([]domain.Sequence, error)) error {
	return c.run(cmd, func(ctx context.Context, s *app.Session) (app.Result, error) {
		seqs, err := fs.ReadFASTAFile(files.in)
		if err != nil {
			return app.Result{}, err
		}
		out, err := fn(ctx, seqs)
		if err != nil {
			return app.Result{}, err
		}
		res := newResult()
		return res, writeSeqs(&res, "sequences", files.out, out)
	})
}

func newCullCmd(c *cli) *cobra.Command {
	p := curate.DefaultCullParams()
	var files seqIO
	cmd := &cobra.Command{
		Use:   "cull-seqs",
		Short: "Remove sequences with many degenerate bases or long homopolymers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return seqAction(c, cmd, &files, func(_ context.Context, seqs []domain.Sequence) ([]domain.Sequence, error) {
				return curate.Cull(seqs, p)
			})
		},
	}
	files.bind(cmd)
	cmd.Flags().IntVar(&p.NumDegenerates, "num-degenerates", p.NumDegenerates, "Drop sequences with this many or more degenerate bases")
	cmd.Flags().IntVar(&p.HomopolymerLength, "homopolymer-length", p.HomopolymerLength, "Drop sequences with a homopolymer of this length or longer")
	return cmd
}

func newDegapCmd(c *cli) *cobra.Command {
	var (
		files     seqIO
		minLength int
	)
	cmd := &cobra.Command{
		Use:   "degap-seqs",
		Short: "Remove alignment gaps",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return seqAction(c, cmd, &files, func(_ context.Context, seqs []domain.Sequence) ([]domain.Sequence, error) {
				return curate.Degap(seqs, minLength), nil
			})
		},
	}
	files.bind(cmd)
	cmd.Flags().IntVar(&minLength, "min-length", 1, "Drop degapped sequences shorter than this")
	return cmd
}

func newReverseTranscribeCmd(c *cli) *cobra.Command {
	var files seqIO
	cmd := &cobra.Command{
		Use:   "reverse-transcribe",
		Short: "Convert RNA sequences to DNA",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return seqAction(c, cmd, &files, func(_ context.Context, seqs []domain.Sequence) ([]domain.Sequence, error) {
				return curate.ReverseTranscribe(seqs), nil
			})
		},
	}
	files.bind(cmd)
	return cmd
}

func newSubsampleCmd(c *cli) *cobra.Command {
	var (
		files    seqIO
		fraction float64
		seed     int64
	)
	cmd := &cobra.Command{
		Use:   "subsample-fasta",
		Short: "Keep a random fraction of sequences",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return seqAction(c, cmd, &files, func(_ context.Context, seqs []domain.Sequence) ([]domain.Sequence, error) {
				return curate.Subsample(seqs, fraction, seed)
			})
		},
	}
	files.bind(cmd)
	cmd.Flags().Float64Var(&fraction, "subsample-size", 0.1, "Fraction of sequences to keep (0 < f <= 1)")
	cmd.Flags().Int64Var(&seed, "random-seed", 1, "Seed for the random generator")
	return cmd
}

func newDereplicateCmd(c *cli) *cobra.Command {
	var (
		files   seqIO
		taxIn   string
		taxOut  string
		mode    string
		prefix  bool
		handles string
	)
	cmd := &cobra.Command{
		Use:   "dereplicate",
		Short: "Collapse identical sequences and reconcile their taxonomy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(ctx context.Context, s *app.Session) (app.Result, error) {
				rh, err := domain.LookupRankHandles(handles)
				if err != nil {
					return app.Result{}, err
				}
				seqs, err := fs.ReadFASTAFile(files.in)
				if err != nil {
					return app.Result{}, err
				}
				tax, err := fs.ReadTaxonomyFile(taxIn)
				if err != nil {
					return app.Result{}, err
				}
				outSeqs, outTax, err := curate.Dereplicate(seqs, tax, curate.DerepParams{
					Mode:        curate.DerepMode(mode),
					Prefix:      prefix,
					RankHandles: rh,
				})
				if err != nil {
					return app.Result{}, err
				}
				res := newResult()
				if err := writeSeqs(&res, "sequences", files.out, outSeqs); err != nil {
					return res, err
				}
				return res, writeTax(&res, "taxonomy", taxOut, outTax)
			})
		},
	}
	files.bind(cmd)
	f := cmd.Flags()
	f.StringVar(&taxIn, "taxonomy", "", "Input taxonomy TSV")
	f.StringVar(&taxOut, "output-taxonomy", "", "Output taxonomy TSV")
	f.StringVar(&mode, "mode", string(curate.DerepUniq), "Consensus mode: "+choices(curate.DerepModes()))
	f.BoolVar(&prefix, "derep-prefix", false, "Merge sequences that are prefixes of longer sequences")
	f.StringVar(&handles, "rank-handles", "silva", "Rank handles padding truncated labels: "+choices(domain.RankHandlePresets()))
	_ = cmd.MarkFlagRequired("taxonomy")
	_ = cmd.MarkFlagRequired("output-taxonomy")
	return cmd
}

// filterOutputs writes kept and discarded sequences.
func filterOutputs(res *app.Result, keptPath, discardedPath string, kept, discarded []domain.Sequence) error {
	if err := writeSeqs(res, "sequences", keptPath, kept); err != nil {
		return err
	}
	if err := writeSeqs(res, "discarded", discardedPath, discarded); err != nil {
		return err
	}
	return nil
}

func newFilterLengthCmd(c *cli) *cobra.Command {
	var (
		files     seqIO
		discarded string
		bounds    curate.LengthBounds
	)
	cmd := &cobra.Command{
		Use:   "filter-seqs-length",
		Short: "Keep sequences within global length bounds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(ctx context.Context, s *app.Session) (app.Result, error) {
				seqs, err := fs.ReadFASTAFile(files.in)
				if err != nil {
					return app.Result{}, err
				}
				kept, dropped, err := curate.FilterLength(seqs, bounds)
				if err != nil {
					return app.Result{}, err
				}
				res := newResult()
				return res, filterOutputs(&res, files.out, discarded, kept, dropped)
			})
		},
	}
	files.bind(cmd)
	f := cmd.Flags()
	f.IntVar(&bounds.Min, "global-min", 0, "Minimum length (0 disables)")
	f.IntVar(&bounds.Max, "global-max", 0, "Maximum length (0 disables)")
	f.StringVar(&discarded, "output-discarded", "", "Write discarded sequences to this FASTA file")
	return cmd
}

func newFilterLengthByTaxonCmd(c *cli) *cobra.Command {
	var (
		files     seqIO
		taxIn     string
		discarded string
		labels    []string
		mins,     maxs []int
		global    curate.LengthBounds
	)
	cmd := &cobra.Command{
		Use:   "filter-seqs-length-by-taxon",
		Short: "Keep sequences within length bounds chosen by their taxonomy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(ctx context.Context, s *app.Session) (app.Result, error) {
				bounds, err := curate.NewTaxonBounds(labels, mins, maxs)
				if err != nil {
					return app.Result{}, err
				}
				seqs, err := fs.ReadFASTAFile(files.in)
				if err != nil {
					return app.Result{}, err
				}
				tax, err := fs.ReadTaxonomyFile(taxIn)
				if err != nil {
					return app.Result{}, err
				}
				kept, dropped, err := curate.FilterLengthByTaxon(seqs, tax, bounds, global)
				if err != nil {
					return app.Result{}, err
				}
				res := newResult()
				return res, filterOutputs(&res, files.out, discarded, kept, dropped)
			})
		},
	}
	files.bind(cmd)
	f := cmd.Flags()
	f.StringVar(&taxIn, "taxonomy", "", "Input taxonomy TSV")
	f.StringSliceVar(&labels, "labels", nil, "Taxon labels selecting the bounds")
	f.IntSliceVar(&mins, "min-lens", nil, "Minimum length per label")
	f.IntSliceVar(&maxs, "max-lens", nil, "Maximum length per label")
	f.IntVar(&global.Min, "global-min", 0, "Minimum length for every sequence (0 disables)")
	f.IntVar(&global.Max, "global-max", 0, "Maximum length for every sequence (0 disables)")
	f.StringVar(&discarded, "output-discarded", "", "Write discarded sequences to this FASTA file")
	_ = cmd.MarkFlagRequired("taxonomy")
	_ = cmd.MarkFlagRequired("labels")
	return cmd
}

func newFilterTaxaCmd(c *cli) *cobra.Command {
	var (
		taxIn,  taxOut string
		idsFile string
		filter  curate.TaxaFilter
	)
	cmd := &cobra.Command{
		Use:   "filter-taxa",
		Short: "Keep taxonomy rows matching include/exclude strings or an id list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(ctx context.Context, s *app.Session) (app.Result, error) {
				tax, err := fs.ReadTaxonomyFile(taxIn)
				if err != nil {
					return app.Result{}, err
				}
				if idsFile != "" {
					ids, err := fs.ReadIDs(idsFile)
					if err != nil {
						return app.Result{}, err
					}
					filter.IDs = make(map[string]bool, len(ids))
					for _, id := range ids {
						filter.IDs[id] = true
					}
				}
				out, err := curate.FilterTaxa(tax, filter)
				if err != nil {
					return app.Result{}, err
				}
				res := newResult()
				return res, writeTax(&res, "taxonomy", taxOut, out)
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&taxIn, "taxonomy", "", "Input taxonomy TSV")
	f.StringVar(&taxOut, "output-taxonomy", "", "Output taxonomy TSV")
	f.StringVar(&idsFile, "ids-to-keep", "", "File listing the feature ids to keep")
	f.StringSliceVar(&filter.Include, "include", nil, "Keep labels containing any of these strings")
	f.StringSliceVar(&filter.Exclude, "exclude", nil, "Drop labels containing any of these strings")
	f.BoolVar(&filter.IgnoreCase, "ignore-case", false, "Match include/exclude strings case-insensitively")
	_ = cmd.MarkFlagRequired("taxonomy")
	_ = cmd.MarkFlagRequired("output-taxonomy")
	return cmd
}

func newEditTaxonomyCmd(c *cli) *cobra.Command {
	var (
		taxIn,   taxOut   string
		search,  replace []string
		mapFile  string
		useRegex bool
	)
	cmd := &cobra.Command{
		Use:   "edit-taxonomy",
		Short: "Replace strings in taxonomy labels",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(ctx context.Context, s *app.Session) (app.Result, error) {
				if mapFile != "" {
					pairs, err := fs.ReadPairs(mapFile)
					if err != nil {
						return app.Result{}, err
					}
					for _, p := range pairs {
						search = append(search, p[0])
						replace = append(replace, p[1])
					}
				}
				reps, err := curate.NewReplacements(search, replace)
				if err != nil {
					return app.Result{}, err
				}
				tax, err := fs.ReadTaxonomyFile(taxIn)
				if err != nil {
					return app.Result{}, err
				}
				out, err := curate.EditTaxonomy(tax, reps, useRegex)
				if err != nil {
					return app.Result{}, err
				}
				res := newResult()
				return res, writeTax(&res, "taxonomy", taxOut, out)
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&taxIn, "taxonomy", "", "Input taxonomy TSV")
	f.StringVar(&taxOut, "output-taxonomy", "", "Output taxonomy TSV")
	f.StringSliceVar(&search, "search-strings", nil, "Strings to search for")
	f.StringSliceVar(&replace, "replacement-strings", nil, "Replacements, one per search string")
	f.StringVar(&mapFile, "replacement-map", "", "Two-column TSV of search and replacement strings")
	f.BoolVar(&useRegex, "use-regex", false, "Treat search strings as regular expressions")
	_ = cmd.MarkFlagRequired("taxonomy")
	_ = cmd.MarkFlagRequired("output-taxonomy")
	return cmd
}

func newMergeTaxaCmd(c *cli) *cobra.Command {
	var (
		inputs  []string
		taxOut  string
		mode    string
		regex   string
		handles string
	)
	cmd := &cobra.Command{
		Use:   "merge-taxa",
		Short: "Merge two or more taxonomies by feature id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(ctx context.Context, s *app.Session) (app.Result, error) {
				rh, err := domain.LookupRankHandles(handles)
				if err != nil {
					return app.Result{}, err
				}
				tables := make([]*domain.Taxonomy, 0, len(inputs))
				for _, path := range inputs {
					tax, err := fs.ReadTaxonomyFile(path)
					if err != nil {
						return app.Result{}, err
					}
					tables = append(tables, tax)
				}
				out, err := curate.MergeTaxa(tables, curate.MergeParams{
					Mode:            curate.MergeMode(mode),
					RankHandleRegex: regex,
					NewRankHandles:  rh,
				})
				if err != nil {
					return app.Result{}, err
				}
				res := newResult()
				return res, writeTax(&res, "taxonomy", taxOut, out)
			})
		},
	}
	f := cmd.Flags()
	f.StringSliceVar(&inputs, "data", nil, "Taxonomy TSV files to merge (at least two)")
	f.StringVar(&taxOut, "output-taxonomy", "", "Output taxonomy TSV")
	f.StringVar(&mode, "mode", string(curate.MergeLen), "Merge mode: "+choices(curate.MergeModes()))
	f.StringVar(&regex, "rank-handle-regex", curate.DefaultRankHandleRegex, "Regex removed from each rank before comparison")
	f.StringVar(&handles, "new-rank-handles", "disable", "Rank handles applied to merged labels: "+choices(domain.RankHandlePresets()))
	_ = cmd.MarkFlagRequired("data")
	_ = cmd.MarkFlagRequired("output-taxonomy")
	return cmd
}

func newOrientCmd(c *cli) *cobra.Command {
	p := curate.DefaultOrientParams()
	var (
		files     seqIO
		refs      string
		unmatched string
	)
	cmd := &cobra.Command{
		Use:   "orient-seqs",
		Short: "Orient sequences against a reference by k-mer containment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(ctx context.Context, s *app.Session) (app.Result, error) {
				seqs, ref, err := readPair(files.in, refs)
				if err != nil {
					return app.Result{}, err
				}
				p.Jobs = c.cfg.Jobs
				oriented, rest, err := curate.Orient(ctx, seqs, ref, p)
				if err != nil {
					return app.Result{}, err
				}
				res := newResult()
				if err := writeSeqs(&res, "sequences", files.out, oriented); err != nil {
					return res, err
				}
				return res, writeSeqs(&res, "unmatched", unmatched, rest)
			})
		},
	}
	files.bind(cmd)
	f := cmd.Flags()
	f.StringVar(&refs, "reference-sequences", "", "Reference FASTA in the desired orientation")
	f.IntVar(&p.K, "kmer-length", p.K, "k-mer length")
	f.Float64Var(&p.Threshold, "threshold", p.Threshold, "Minimum fraction of shared k-mers")
	f.StringVar(&unmatched, "output-unmatched", "", "Write sequences that could not be oriented to this FASTA file")
	_ = cmd.MarkFlagRequired("reference-sequences")
	return cmd
}

func newExtractSegmentsCmd(c *cli) *cobra.Command {
	p := curate.DefaultSegmentParams()
	var (
		files     seqIO
		refs      string
		unmatched string
	)
	cmd := &cobra.Command{
		Use:   "extract-seq-segments",
		Short: "Extract the regions of sequences matching reference segments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(ctx context.Context, s *app.Session) (app.Result, error) {
				seqs, ref, err := readPair(files.in, refs)
				if err != nil {
					return app.Result{}, err
				}
				p.Jobs = c.cfg.Jobs
				segs, rest, err := curate.ExtractSegments(ctx, seqs, ref, p)
				if err != nil {
					return app.Result{}, err
				}
				res := newResult()
				if err := writeSeqs(&res, "sequences", files.out, segs); err != nil {
					return res, err
				}
				return res, writeSeqs(&res, "unmatched", unmatched, rest)
			})
		},
	}
	files.bind(cmd)
	f := cmd.Flags()
	f.StringVar(&refs, "reference-segment-sequences", "", "FASTA of the segments to extract")
	f.Float64Var(&p.PercIdentity, "perc-identity", p.PercIdentity, "Minimum identity of a placement (0-1]")
	f.IntVar(&p.MinSeqLen, "min-seq-len", p.MinSeqLen, "Minimum length of an extracted segment")
	f.StringVar(&unmatched, "output-unmatched", "", "Write sequences without a segment to this FASTA file")
	_ = cmd.MarkFlagRequired("reference-segment-sequences")
	return cmd
}

func readPair(seqsPath, refsPath string) (seqs, refs []domain.Sequence, err error) {
	if seqs, err = fs.ReadFASTAFile(seqsPath); err != nil {
		return nil, nil, err
	}
	if refs, err = fs.ReadFASTAFile(refsPath); err != nil {
		return nil, nil, err
	}
	if len(refs) == 0 {
		return nil, nil, fmt.Errorf("%w: %s has no sequences", domain.ErrNoRecords, refsPath)
	}
	return seqs, refs, nil
}

func newEvaluateTaxonomyCmd(c *cli) *cobra.Command {
	var taxIn, output string
	cmd := &cobra.Command{
		Use:   "evaluate-taxonomy",
		Short: "Report label diversity per rank depth",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(ctx context.Context, s *app.Session) (app.Result, error) {
				tax, err := fs.ReadTaxonomyFile(taxIn)
				if err != nil {
					return app.Result{}, err
				}
				stats, err := curate.EvaluateTaxonomy(tax)
				if err != nil {
					return app.Result{}, err
				}
				header, rows := curate.RankStatsTable(stats)
				res := newResult()
				return res, writeTable(&res, "report", output, header, rows)
			})
		},
	}
	cmd.Flags().StringVar(&taxIn, "taxonomy", "", "Input taxonomy TSV")
	cmd.Flags().StringVar(&output, "output", "", "Output report TSV")
	_ = cmd.MarkFlagRequired("taxonomy")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

func newEvaluateSeqsCmd(c *cli) *cobra.Command {
	var (
		seqsIn, output string
		k       int
	)
	cmd := &cobra.Command{
		Use:   "evaluate-seqs",
		Short: "Report length distribution and k-mer entropy of sequences",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(ctx context.Context, s *app.Session) (app.Result, error) {
				seqs, err := fs.ReadFASTAFile(seqsIn)
				if err != nil {
					return app.Result{}, err
				}
				stats, err := curate.EvaluateSeqs(seqs, k)
				if err != nil {
					return app.Result{}, err
				}
				header, rows := stats.Table()
				res := newResult()
				return res, writeTable(&res, "report", output, header, rows)
			})
		},
	}
	cmd.Flags().StringVar(&seqsIn, "sequences", "", "Input FASTA file")
	cmd.Flags().StringVar(&output, "output", "", "Output report TSV")
	cmd.Flags().IntVar(&k, "kmer-length", 10, "k-mer length for the entropy estimate")
	_ = cmd.MarkFlagRequired("sequences")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}
