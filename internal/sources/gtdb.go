package sources

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/bft-labs/rescript/internal/adapters/fs"
	"github.com/bft-labs/rescript/internal/domain"
	"github.com/bft-labs/rescript/internal/ports"
)

// DefaultGTDBURL is the root of the GTDB release tree.
const DefaultGTDBURL = "https://data.gtdb.ecogenomic.org/releases"

var (
	GTDBVersions = []string{"202.0", "207.0", "214.1", "220.0", "226.0"}
	GTDBDomains  = []string{"Both", "Bacteria", "Archaea"}
	GTDBDBTypes  = []string{"SpeciesReps", "All"}
)

// GTDBParams selects a GTDB release.
type GTDBParams struct {
	Version string
	Domain  string
	DBType  string
}

// DefaultGTDBParams returns the newest species-representative release.
func DefaultGTDBParams() GTDBParams {
	return GTDBParams{Version: "226.0", Domain: "Both", DBType: "SpeciesReps"}
}

// Validate checks every choice.
func (p GTDBParams) Validate() error {
	if err := domain.CheckChoice("version", p.Version, GTDBVersions); err != nil {
		return err
	}
	if err := domain.CheckChoice("domain", p.Domain, GTDBDomains); err != nil {
		return err
	}
	return domain.CheckChoice("db-type", p.DBType, GTDBDBTypes)
}

// GTDB downloads GTDB SSU releases.
type GTDB struct {
	fetcher ports.Fetcher
	logger  ports.Logger
	baseURL string
}

// NewGTDB creates a GTDB client. An empty baseURL uses DefaultGTDBURL.
func NewGTDB(fetcher ports.Fetcher, logger ports.Logger, baseURL string) *GTDB {
	if baseURL == "" {
		baseURL = DefaultGTDBURL
	}
	return &GTDB{fetcher: fetcher, logger: logger, baseURL: trimSlash(baseURL)}
}

// gtdbFile is one file to download; filter restricts records to a domain.
type gtdbFile struct {
	url    string
	filter string
}

// files returns the .fna.gz URLs of p.
func (g *GTDB) files(p GTDBParams) []gtdbFile {
	major := strings.SplitN(p.Version, ".", 2)[0]
	root := fmt.Sprintf("%s/release%s/%s/", g.baseURL, major, p.Version)

	if p.DBType == "All" {
		f := gtdbFile{url: fmt.Sprintf("%sgenomic_files_all/ssu_all_r%s.fna.gz", root, major)}
		if p.Domain != "Both" {
			f.filter = "d__" + p.Domain
		}
		return []gtdbFile{f}
	}

	archaea := "ar53"
	if p.Version == "202.0" {
		archaea = "ar122"
	}
	var out []gtdbFile
	if p.Domain != "Archaea" {
		out = append(out, gtdbFile{url: fmt.Sprintf("%sgenomic_files_reps/bac120_ssu_reps_r%s.fna.gz", root, major)})
	}
	if p.Domain != "Bacteria" {
		out = append(out, gtdbFile{url: fmt.Sprintf("%sgenomic_files_reps/%s_ssu_reps_r%s.fna.gz", root, archaea, major)})
	}
	return out
}

// Get downloads and parses the release selected by p.
func (g *GTDB) Get(ctx context.Context, p GTDBParams, workDir string) (Dataset, error) {
	if err := p.Validate(); err != nil {
		return Dataset{}, err
	}
	ds := Dataset{Taxonomy: domain.NewTaxonomy()}
	for _, f := range g.files(p) {
		paths, err := g.fetchFNA(ctx, f.url, workDir)
		if err != nil {
			return Dataset{}, err
		}
		for _, path := range paths {
			err := readFileErr(path, func(r io.Reader) error {
				return ParseGTDBFasta(r, f.filter, &ds)
			})
			if err != nil {
				return Dataset{}, err
			}
		}
	}
	if len(ds.Sequences) == 0 {
		return Dataset{}, fmt.Errorf("%w: no GTDB sequences parsed", domain.ErrNoRecords)
	}
	g.logger.Info("parsed GTDB data", ports.Int("sequences", len(ds.Sequences)))
	return ds, nil
}

// fetchFNA downloads a .fna.gz file. Some releases ship the same data as a
// .tar.gz archive instead, which is tried when the .fna.gz is missing.
func (g *GTDB) fetchFNA(ctx context.Context, fnaURL, workDir string) ([]string, error) {
	dst := filepath.Join(workDir, fileName(fnaURL))
	_, err := g.fetcher.Fetch(ctx, fnaURL, dst)
	if err == nil {
		return []string{dst}, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	tgzURL := strings.TrimSuffix(fnaURL, ".fna.gz") + ".tar.gz"
	g.logger.Debug("falling back to tar archive", ports.String("url", tgzURL))
	tgz := filepath.Join(workDir, fileName(tgzURL))
	if _, err := g.fetcher.Fetch(ctx, tgzURL, tgz); err != nil {
		return nil, err
	}
	return fs.ExtractTarGz(tgz, filepath.Join(workDir, strings.TrimSuffix(fileName(tgzURL), ".tar.gz")), func(name string) bool {
		return strings.HasSuffix(name, ".fna") || strings.HasSuffix(name, ".fna.gz")
	})
}

// ParseGTDBFasta appends records of a GTDB SSU FASTA file to ds. The header
// description holds the lineage followed by " [key=value]" annotations. When
// filter is non-empty only records whose lineage contains it are kept.
func ParseGTDBFasta(r io.Reader, filter string, ds *Dataset) error {
	return fs.ScanFASTADesc(r, func(s domain.Sequence, desc string) error {
		lineage := desc
		if i := strings.Index(lineage, " ["); i >= 0 {
			lineage = lineage[:i]
		}
		lineage = strings.TrimSpace(lineage)
		if filter != "" && !strings.Contains(lineage, filter) {
			return nil
		}
		if lineage == "" {
			return fmt.Errorf("%w: %s has no lineage", domain.ErrMissingTaxonomy, s.ID)
		}
		ds.Sequences = append(ds.Sequences, s)
		ds.Taxonomy.Set(s.ID, domain.JoinRanks(domain.SplitRanks(lineage)))
		return nil
	})
}
