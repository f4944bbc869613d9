package curate

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/bft-labs/rescript/internal/domain"
)

// Replacement is one search/replace pair.
type Replacement struct {
	Search  string
	Replace string
}

// NewReplacements zips parallel search and replacement lists.
func NewReplacements(search, replace []string) ([]Replacement, error) {
	if len(search) != len(replace) {
		return nil, fmt.Errorf("%w: %d search strings for %d replacement strings",
			domain.ErrInvalidParameter, len(search), len(replace))
	}
	out := make([]Replacement, len(search))
	for i := range search {
		if search[i] == "" {
			return nil, fmt.Errorf("%w: search string %d is empty", domain.ErrInvalidParameter, i+1)
		}
		out[i] = Replacement{Search: search[i], Replace: replace[i]}
	}
	return out, nil
}

// EditTaxonomy applies replacements to every label in order. With useRegex
// each Search is a regular expression and Replace may reference groups as $1.
func EditTaxonomy(tax *domain.Taxonomy, reps []Replacement, useRegex bool) (*domain.Taxonomy, error) {
	if len(reps) == 0 {
		return nil, fmt.Errorf("%w: no replacements given", domain.ErrInvalidParameter)
	}
	edits := make([]func(string) string, len(reps))
	for i, r := range reps {
		r := r
		// An empty search matches between every character.
		if r.Search == "" {
			return nil, fmt.Errorf("%w: empty search string", domain.ErrInvalidParameter)
		}
		if !useRegex {
			edits[i] = func(s string) string { return strings.ReplaceAll(s, r.Search, r.Replace) }
			continue
		}
		re, err := regexp.Compile(r.Search)
		if err != nil {
			return nil, fmt.Errorf("%w: search pattern %q: %v", domain.ErrInvalidParameter, r.Search, err)
		}
		edits[i] = func(s string) string { return re.ReplaceAllString(s, r.Replace) }
	}

	out := domain.NewTaxonomy()
	for _, id := range tax.IDs() {
		label, _ := tax.Get(id)
		for _, e := range edits {
			label = e(label)
		}
		out.Set(id, label)
	}
	return out, nil
}
