package sources

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/bft-labs/rescript/internal/adapters/fs"
	"github.com/bft-labs/rescript/internal/domain"
	"github.com/bft-labs/rescript/internal/ports"
)

// DefaultSilvaURL is the root of the SILVA release archive.
const DefaultSilvaURL = "https://www.arb-silva.de/fileadmin/silva_databases"

var (
	SilvaVersions = []string{"128", "132", "138", "138.1", "138.2"}
	SilvaTargets  = []string{"SSURef_NR99", "SSURef", "LSURef_NR99", "LSURef"}

	// SilvaRanks are the ranks that appear in SILVA rank files.
	SilvaRanks = []string{
		"domain", "major_clade", "superkingdom", "kingdom", "subkingdom",
		"superphylum", "phylum", "subphylum", "infraphylum",
		"superclass", "class", "subclass", "infraclass",
		"superorder", "order", "suborder",
		"superfamily", "family", "subfamily", "genus",
	}

	DefaultSilvaTaxRanks = []string{"domain", "phylum", "class", "order", "family", "genus"}
)

// SilvaParams selects a SILVA release and how its taxonomy is built.
type SilvaParams struct {
	Version              string
	Target               string
	IncludeSpeciesLabels bool
	RankPropagation      bool
	Ranks                []string
	DownloadSequences    bool
}

// DefaultSilvaParams returns the newest NR99 SSU release settings.
func DefaultSilvaParams() SilvaParams {
	return SilvaParams{
		Version:           "138.2",
		Target:            "SSURef_NR99",
		RankPropagation:   true,
		Ranks:             DefaultSilvaTaxRanks,
		DownloadSequences: true,
	}
}

// Validate checks version, target and ranks.
func (p SilvaParams) Validate() error {
	if err := domain.CheckChoice("version", p.Version, SilvaVersions); err != nil {
		return err
	}
	if err := domain.CheckChoice("target", p.Target, SilvaTargets); err != nil {
		return err
	}
	return checkRanks(p.Ranks, SilvaRanks)
}

// SilvaURLs are the files making up one SILVA release.
type SilvaURLs struct {
	Sequences string
	RankFile  string
	TaxMap    string
}

// Silva downloads SILVA releases.
type Silva struct {
	fetcher ports.Fetcher
	logger  ports.Logger
	baseURL string
}

// NewSilva creates a SILVA client. An empty baseURL uses DefaultSilvaURL.
func NewSilva(fetcher ports.Fetcher, logger ports.Logger, baseURL string) *Silva {
	if baseURL == "" {
		baseURL = DefaultSilvaURL
	}
	return &Silva{fetcher: fetcher, logger: logger, baseURL: trimSlash(baseURL)}
}

// URLs returns the download locations for p.
func (s *Silva) URLs(p SilvaParams) SilvaURLs {
	release := "release_" + p.Version
	if p.Version == "138.2" {
		release = "release_138_2"
	}
	root := s.baseURL + "/" + release + "/Exports/"

	subunit := "ssu"
	if strings.HasPrefix(p.Target, "LSU") {
		subunit = "lsu"
	}
	mapKind := "ref"
	target := p.Target
	if strings.HasSuffix(p.Target, "_NR99") {
		mapKind = "ref_nr"
		if p.Version == "128" || p.Version == "132" {
			target = strings.TrimSuffix(p.Target, "_NR99") + "_Nr99"
		}
	}
	return SilvaURLs{
		Sequences: fmt.Sprintf("%sSILVA_%s_%s_tax_silva.fasta.gz", root, p.Version, target),
		RankFile:  fmt.Sprintf("%staxonomy/tax_slv_%s_%s.txt.gz", root, subunit, p.Version),
		TaxMap:    fmt.Sprintf("%staxonomy/taxmap_slv_%s_%s_%s.txt.gz", root, subunit, mapKind, p.Version),
	}
}

// Get downloads the release and builds its taxonomy. Sequences are
// reverse-transcribed to DNA. With DownloadSequences off only the taxonomy
// is returned.
func (s *Silva) Get(ctx context.Context, p SilvaParams, workDir string) (Dataset, error) {
	if err := p.Validate(); err != nil {
		return Dataset{}, err
	}
	urls := s.URLs(p)

	paths := make(map[string]string, 3)
	for _, u := range []string{urls.RankFile, urls.TaxMap} {
		dst := filepath.Join(workDir, fileName(u))
		if _, err := s.fetcher.Fetch(ctx, u, dst); err != nil {
			return Dataset{}, err
		}
		paths[u] = dst
	}

	ranks, err := readFile(paths[urls.RankFile], ReadSilvaRanks)
	if err != nil {
		return Dataset{}, err
	}
	tax, err := readFile(paths[urls.TaxMap], func(r io.Reader) (*domain.Taxonomy, error) {
		return ParseSilvaTaxonomy(r, ranks, p)
	})
	if err != nil {
		return Dataset{}, err
	}
	s.logger.Info("parsed SILVA taxonomy", ports.Int("features", tax.Len()))

	ds := Dataset{Taxonomy: tax}
	if !p.DownloadSequences {
		return ds, nil
	}
	dst := filepath.Join(workDir, fileName(urls.Sequences))
	if _, err := s.fetcher.Fetch(ctx, urls.Sequences, dst); err != nil {
		return Dataset{}, err
	}
	err = readFileErr(dst, func(r io.Reader) error {
		return fs.ScanFASTA(r, func(seq domain.Sequence) error {
			seq.Seq = domain.ReverseTranscribe(seq.Seq)
			ds.Sequences = append(ds.Sequences, seq)
			return nil
		})
	})
	if err != nil {
		return Dataset{}, err
	}
	return ds, nil
}

// ReadSilvaRanks parses a SILVA rank file ("path<TAB>taxid<TAB>rank...") into
// a map from taxonomy path (with trailing ';') to rank.
func ReadSilvaRanks(r io.Reader) (map[string]string, error) {
	out := make(map[string]string)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if line == "" {
			continue
		}
		cols := strings.Split(line, "\t")
		if len(cols) < 3 {
			return nil, fmt.Errorf("rank file: malformed line %q", line)
		}
		out[cols[0]] = strings.TrimSpace(cols[2])
	}
	return out, sc.Err()
}

// ParseSilvaTaxonomy builds labels from a SILVA taxmap file. Feature ids are
// "accession.start.stop".
func ParseSilvaTaxonomy(r io.Reader, rankOf map[string]string, p SilvaParams) (*domain.Taxonomy, error) {
	tax := domain.NewTaxonomy()
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	first := true
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if first {
			first = false
			if strings.HasPrefix(line, "primaryAccession") {
				continue
			}
		}
		if line == "" {
			continue
		}
		cols := strings.Split(line, "\t")
		if len(cols) < 5 {
			return nil, fmt.Errorf("taxmap: malformed line %q", line)
		}
		id := cols[0] + "." + cols[1] + "." + cols[2]

		names := make(map[string]string)
		parts := strings.Split(strings.TrimSuffix(cols[3], ";"), ";")
		for i := range parts {
			prefix := strings.Join(parts[:i+1], ";") + ";"
			if rank, ok := rankOf[prefix]; ok {
				names[rank] = parts[i]
			}
		}

		label := buildLabel(names, p.Ranks, p.RankPropagation)
		if p.IncludeSpeciesLabels {
			if sp := silvaSpecies(cols[4], names["genus"]); sp != "" {
				label += domain.RankSeparator + "s__" + sp
			}
		}
		tax.Set(id, label)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if tax.Len() == 0 {
		return nil, fmt.Errorf("%w: taxmap is empty", domain.ErrNoRecords)
	}
	return tax, nil
}

// silvaSpecies returns "Genus_species" from an organism name that starts with
// genus.
func silvaSpecies(organism, genus string) string {
	words := strings.Fields(organism)
	if len(words) < 2 || genus == "" || words[0] != genus {
		return ""
	}
	return words[0] + "_" + words[1]
}

func readFile[T any](path string, parse func(io.Reader) (T, error)) (T, error) {
	var zero T
	rc, err := fs.Open(path)
	if err != nil {
		return zero, err
	}
	defer rc.Close()
	v, err := parse(rc)
	if err != nil {
		return zero, fmt.Errorf("read %s: %w", path, err)
	}
	return v, nil
}

func readFileErr(path string, fn func(io.Reader) error) error {
	_, err := readFile(path, func(r io.Reader) (struct{}, error) { return struct{}{}, fn(r) })
	return err
}
