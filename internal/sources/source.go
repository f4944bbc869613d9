package sources

import (
	"net/url"
	"path"
	"strings"

	"github.com/bft-labs/rescript/internal/domain"
)

// Dataset is a set of reference sequences with their taxonomy.
type Dataset struct {
	Sequences []domain.Sequence
	Taxonomy  *domain.Taxonomy
}

// rankHandles maps a rank name to the label prefix used for it.
var rankHandles = map[string]string{
	"domain":       "d__",
	"superkingdom": "sk__",
	"kingdom":      "k__",
	"subkingdom":   "ks__",
	"major_clade":  "mc__",
	"superphylum":  "sp__",
	"phylum":       "p__",
	"subphylum":    "ps__",
	"infraphylum":  "pi__",
	"superclass":   "sc__",
	"class":        "c__",
	"subclass":     "cs__",
	"infraclass":   "ci__",
	"superorder":   "so__",
	"order":        "o__",
	"suborder":     "os__",
	"superfamily":  "sf__",
	"family":       "f__",
	"subfamily":    "fs__",
	"tribe":        "t__",
	"genus":        "g__",
	"subgenus":     "gs__",
	"species":      "s__",
	"subspecies":   "ssp__",
}

// checkRanks rejects rank names outside allowed.
func checkRanks(ranks, allowed []string) error {
	if len(ranks) == 0 {
		return domain.InvalidChoice("ranks", "", allowed)
	}
	for _, r := range ranks {
		if err := domain.CheckChoice("ranks", r, allowed); err != nil {
			return err
		}
	}
	return nil
}

// buildLabel renders names (rank -> name) for the requested ranks. With
// propagate, a missing rank takes the name of the nearest higher rank that
// has one.
func buildLabel(names map[string]string, ranks []string, propagate bool) string {
	parts := make([]string, len(ranks))
	last := ""
	for i, r := range ranks {
		name := names[r]
		if name == "" && propagate {
			name = last
		}
		if name != "" {
			last = name
		}
		parts[i] = rankHandles[r] + name
	}
	return domain.JoinRanks(parts)
}

// fileName returns the last path element of rawURL without its query.
func fileName(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil {
		return path.Base(u.Path)
	}
	return path.Base(rawURL)
}

func trimSlash(s string) string { return strings.TrimRight(s, "/") }
