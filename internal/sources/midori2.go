package sources

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/bft-labs/rescript/internal/adapters/fs"
	"github.com/bft-labs/rescript/internal/domain"
	"github.com/bft-labs/rescript/internal/ports"
)

// DefaultMidori2URL is the root of the MIDORI2 download tree.
const DefaultMidori2URL = "https://www.reference-midori.info/download/Databases"

// Midori2Genes are the mitochondrial genes published by MIDORI2.
var Midori2Genes = []string{
	"A6", "A8", "CO1", "CO2", "CO3", "Cytb",
	"ND1", "ND2", "ND3", "ND4L", "ND4",
	"ND5", "ND6", "lrRNA", "srRNA",
}

// Midori2RefSeqTypes are the accepted reference sequence types.
var Midori2RefSeqTypes = []string{"uniq", "longest"}

// Midori2Params selects MIDORI2 files.
type Midori2Params struct {
	Genes              []string
	Version            string
	RefSeqType         string
	UnspecifiedSpecies bool
	Jobs               int
}

// DefaultMidori2Params returns the current release settings without genes.
func DefaultMidori2Params() Midori2Params {
	return Midori2Params{Version: "GenBank265_2025-03-08", RefSeqType: "uniq", Jobs: 1}
}

// Midori2 downloads MIDORI2 mitochondrial references.
type Midori2 struct {
	fetcher ports.Fetcher
	logger  ports.Logger
	baseURL string
}

// NewMidori2 creates a MIDORI2 client. An empty baseURL uses DefaultMidori2URL.
func NewMidori2(fetcher ports.Fetcher, logger ports.Logger, baseURL string) *Midori2 {
	if baseURL == "" {
		baseURL = DefaultMidori2URL
	}
	return &Midori2{fetcher: fetcher, logger: logger, baseURL: trimSlash(baseURL)}
}

// ResolveGenes validates gene names, expands "all" and drops repeats,
// keeping the first occurrence order.
func ResolveGenes(genes []string) ([]string, error) {
	if len(genes) == 0 {
		return nil, fmt.Errorf("%w: at least one mito gene is required", domain.ErrInvalidParameter)
	}
	choices := append(append([]string{}, Midori2Genes...), "all")
	all := false
	for _, g := range genes {
		if err := domain.CheckChoice("mito-gene", g, choices); err != nil {
			return nil, err
		}
		if g == "all" {
			all = true
		}
	}
	if all {
		return append([]string{}, Midori2Genes...), nil
	}
	// Each gene downloads into its own directory, so a repeat would race.
	seen := make(map[string]bool, len(genes))
	out := make([]string, 0, len(genes))
	for _, g := range genes {
		if !seen[g] {
			seen[g] = true
			out = append(out, g)
		}
	}
	return out, nil
}

// URLs returns the FASTA and taxonomy URLs of gene.
func (m *Midori2) URLs(gene string, p Midori2Params) (fastaURL, taxURL string) {
	spec, sp := "QIIME", ""
	if p.UnspecifiedSpecies {
		spec, sp = "QIIME_sp", "SP_"
	}
	vernum := strings.SplitN(strings.Trim(p.Version, "GenBank"), "_", 2)[0]
	prefix := fmt.Sprintf("%s/%s/%s/%s/MIDORI2_%s_NUC_%sGB%s_%s_QIIME",
		m.baseURL, p.Version, spec, p.RefSeqType, strings.ToUpper(p.RefSeqType), sp, vernum, gene)
	return prefix + ".fasta.gz", prefix + ".taxon.gz"
}

// Get downloads every requested gene, up to p.Jobs at a time. The result is
// keyed by gene.
func (m *Midori2) Get(ctx context.Context, p Midori2Params, workDir string) (map[string]Dataset, error) {
	genes, err := ResolveGenes(p.Genes)
	if err != nil {
		return nil, err
	}
	if err := domain.CheckChoice("ref-seq-type", p.RefSeqType, Midori2RefSeqTypes); err != nil {
		return nil, err
	}
	if p.Version == "" {
		return nil, fmt.Errorf("%w: version is required", domain.ErrInvalidParameter)
	}

	var mu sync.Mutex
	out := make(map[string]Dataset, len(genes))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(p.Jobs, 1))
	for _, gene := range genes {
		gene := gene
		g.Go(func() error {
			ds, err := m.getGene(ctx, gene, p, filepath.Join(workDir, gene))
			if err != nil {
				return fmt.Errorf("midori2 %s: %w", gene, err)
			}
			mu.Lock()
			out[gene] = ds
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (m *Midori2) getGene(ctx context.Context, gene string, p Midori2Params, dir string) (Dataset, error) {
	fastaURL, taxURL := m.URLs(gene, p)
	m.logger.Info("retrieving MIDORI2 data", ports.String("gene", gene))

	fastaPath := filepath.Join(dir, fileName(fastaURL))
	if _, err := m.fetcher.Fetch(ctx, fastaURL, fastaPath); err != nil {
		return Dataset{}, err
	}
	taxPath := filepath.Join(dir, fileName(taxURL))
	if _, err := m.fetcher.Fetch(ctx, taxURL, taxPath); err != nil {
		return Dataset{}, err
	}

	seqs, err := fs.ReadFASTAFile(fastaPath)
	if err != nil {
		return Dataset{}, err
	}
	tax, err := fs.ReadTaxonomyFile(taxPath)
	if err != nil {
		return Dataset{}, err
	}
	return Dataset{Sequences: seqs, Taxonomy: tax}, nil
}
