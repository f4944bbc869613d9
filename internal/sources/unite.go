package sources

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/bft-labs/rescript/internal/adapters/fs"
	"github.com/bft-labs/rescript/internal/domain"
	"github.com/bft-labs/rescript/internal/ports"
)

// DefaultPlutoFURL is the PlutoF endpoint resolving UNITE DOIs.
const DefaultPlutoFURL = "https://api.plutof.ut.ee/v1/public/dois/"

// uniteDOIs is keyed by version, taxon group and whether singletons are
// included. See https://unite.ut.ee/repository.php.
var uniteDOIs = map[string]map[string]map[bool]string{
	"10.0": {
		"fungi":      {false: "10.15156/BIO/2959336", true: "10.15156/BIO/2959337"},
		"eukaryotes": {false: "10.15156/BIO/2959338", true: "10.15156/BIO/2959339"},
	},
	"9.0": {
		"fungi":      {false: "10.15156/BIO/2938079", true: "10.15156/BIO/2938080"},
		"eukaryotes": {false: "10.15156/BIO/2938081", true: "10.15156/BIO/2938082"},
	},
	"8.3": {
		"fungi":      {false: "10.15156/BIO/1264708", true: "10.15156/BIO/1264763"},
		"eukaryotes": {false: "10.15156/BIO/1264819", true: "10.15156/BIO/1264861"},
	},
	"8.2": {
		"fungi":      {false: "10.15156/BIO/786385", true: "10.15156/BIO/786387"},
		"eukaryotes": {false: "10.15156/BIO/786386", true: "10.15156/BIO/786388"},
	},
}

var (
	UniteVersions    = []string{"10.0", "9.0", "8.3", "8.2"}
	UniteTaxonGroups = []string{"fungi", "eukaryotes"}
	UniteClusterIDs  = []string{"99", "97", "dynamic"}
)

// UniteParams selects a UNITE release.
type UniteParams struct {
	Version    string
	TaxonGroup string
	ClusterID  string
	Singletons bool
}

// DefaultUniteParams returns the newest fungal release at 99% clustering.
func DefaultUniteParams() UniteParams {
	return UniteParams{Version: "10.0", TaxonGroup: "fungi", ClusterID: "99"}
}

// UniteDOI looks up the DOI of a release.
func UniteDOI(p UniteParams) (string, error) {
	if err := domain.CheckChoice("version", p.Version, UniteVersions); err != nil {
		return "", err
	}
	if err := domain.CheckChoice("taxon-group", p.TaxonGroup, UniteTaxonGroups); err != nil {
		return "", err
	}
	doi, ok := uniteDOIs[p.Version][p.TaxonGroup][p.Singletons]
	if !ok {
		return "", fmt.Errorf("%w: unknown DOI for version %s, taxon group %s, singletons %t",
			domain.ErrInvalidParameter, p.Version, p.TaxonGroup, p.Singletons)
	}
	return doi, nil
}

// Unite downloads UNITE releases through PlutoF.
type Unite struct {
	fetcher ports.Fetcher
	logger  ports.Logger
	apiURL  string
}

// NewUnite creates a UNITE client. An empty apiURL uses DefaultPlutoFURL.
func NewUnite(fetcher ports.Fetcher, logger ports.Logger, apiURL string) *Unite {
	if apiURL == "" {
		apiURL = DefaultPlutoFURL
	}
	return &Unite{fetcher: fetcher, logger: logger, apiURL: apiURL}
}

type plutofResponse struct {
	Data []struct {
		Attributes struct {
			Media []struct {
				URL string `json:"url"`
			} `json:"media"`
		} `json:"attributes"`
	} `json:"data"`
}

// ResolveDOI returns the download URL of the newest file attached to doi.
func (u *Unite) ResolveDOI(ctx context.Context, doi string) (string, error) {
	q := u.apiURL + "?format=vnd.api%2Bjson&identifier=" + url.QueryEscape(doi)
	var resp plutofResponse
	if err := u.fetcher.GetJSON(ctx, q, &resp); err != nil {
		return "", fmt.Errorf("resolve DOI %s: %w", doi, err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Attributes.Media) == 0 {
		return "", fmt.Errorf("%w: DOI %s has no files", domain.ErrNoRecords, doi)
	}
	// Files attached to a DOI can be updated; the last one is the newest.
	media := resp.Data[0].Attributes.Media
	return media[len(media)-1].URL, nil
}

// Get downloads and parses the release selected by p.
func (u *Unite) Get(ctx context.Context, p UniteParams, workDir string) (Dataset, error) {
	if err := domain.CheckChoice("cluster-id", p.ClusterID, UniteClusterIDs); err != nil {
		return Dataset{}, err
	}
	doi, err := UniteDOI(p)
	if err != nil {
		return Dataset{}, err
	}
	link, err := u.ResolveDOI(ctx, doi)
	if err != nil {
		return Dataset{}, err
	}
	u.logger.Info("resolved UNITE DOI", ports.String("doi", doi), ports.String("url", link))

	tgz := filepath.Join(workDir, "unitefile.tar.gz")
	if _, err := u.fetcher.Fetch(ctx, link, tgz); err != nil {
		return Dataset{}, err
	}
	return ReadUniteArchive(tgz, filepath.Join(workDir, "unite"), p.ClusterID)
}

// ReadUniteArchive extracts the "_dev" members of a UNITE archive into dir
// and reads the sequence and taxonomy files for clusterID.
func ReadUniteArchive(tgz, dir, clusterID string) (Dataset, error) {
	files, err := fs.ExtractTarGz(tgz, dir, func(name string) bool {
		return strings.Contains(name, "_dev")
	})
	if err != nil {
		return Dataset{}, err
	}
	if len(files) == 0 {
		return Dataset{}, fmt.Errorf("%w: no '_dev' files found", domain.ErrNoRecords)
	}

	ds := Dataset{Taxonomy: domain.NewTaxonomy()}
	matched := 0
	for _, f := range files {
		// sh_refs_qiime_ver10_99_04.04.2024_dev.fasta
		fields := strings.Split(filepath.Base(f), "_")
		if len(fields) < 5 || fields[4] != clusterID {
			continue
		}
		switch {
		case strings.HasSuffix(f, ".txt"):
			tax, err := fs.ReadTaxonomyFile(f)
			if err != nil {
				return Dataset{}, err
			}
			for _, id := range tax.IDs() {
				l, _ := tax.Get(id)
				ds.Taxonomy.Set(id, l)
			}
			matched++
		case strings.HasSuffix(f, ".fasta"):
			seqs, err := fs.ReadFASTAFile(f)
			if err != nil {
				return Dataset{}, err
			}
			ds.Sequences = append(ds.Sequences, seqs...)
			matched++
		}
	}
	if matched == 0 {
		return Dataset{}, fmt.Errorf("%w: no files found with cluster_id = %s", domain.ErrNoRecords, clusterID)
	}
	return ds, nil
}
