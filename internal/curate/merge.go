package curate

import (
	"fmt"
	"regexp"

	"github.com/bft-labs/rescript/internal/domain"
)

// MergeMode selects how conflicting labels are resolved by MergeTaxa.
type MergeMode string

const (
	MergeLen      MergeMode = "len"
	MergeLCA      MergeMode = "lca"
	MergeMajority MergeMode = "majority"
	MergeSuper    MergeMode = "super"
)

// MergeModes lists the accepted modes.
func MergeModes() []string {
	return []string{string(MergeLen), string(MergeLCA), string(MergeMajority), string(MergeSuper)}
}

// DefaultRankHandleRegex matches the usual single-letter rank handles.
const DefaultRankHandleRegex = `^[dkpcofgs]__`

// MergeParams controls MergeTaxa.
type MergeParams struct {
	Mode MergeMode

	// RankHandleRegex is removed from every rank before comparison. Empty
	// disables stripping.
	RankHandleRegex string

	// NewRankHandles are applied to merged labels. Nil leaves ranks bare.
	NewRankHandles domain.RankHandles
}

// MergeTaxa merges two or more taxonomies by feature id. Ids appear in the
// order they are first seen across tables.
func MergeTaxa(tables []*domain.Taxonomy, p MergeParams) (*domain.Taxonomy, error) {
	if len(tables) < 2 {
		return nil, fmt.Errorf("%w: at least two taxonomies are required", domain.ErrInvalidParameter)
	}
	if err := domain.CheckChoice("mode", string(p.Mode), MergeModes()); err != nil {
		return nil, err
	}
	var strip *regexp.Regexp
	if p.RankHandleRegex != "" {
		re, err := regexp.Compile(p.RankHandleRegex)
		if err != nil {
			return nil, fmt.Errorf("%w: rank-handle-regex: %v", domain.ErrInvalidParameter, err)
		}
		strip = re
	}

	var order []string
	labels := make(map[string][]string)
	for _, t := range tables {
		for _, id := range t.IDs() {
			l, _ := t.Get(id)
			if _, ok := labels[id]; !ok {
				order = append(order, id)
			}
			labels[id] = append(labels[id], normalizeLabel(l, strip))
		}
	}

	out := domain.NewTaxonomy()
	for _, id := range order {
		var ranks []string
		ls := labels[id]
		switch p.Mode {
		case MergeLen:
			ranks = trimEmpty(domain.SplitRanks(longestLabel(ls)))
		case MergeMajority:
			ranks = domain.SplitRanks(majorityLabel(ls))
		case MergeSuper:
			ranks = superRanks(splitAll(ls))
		default:
			ranks = lcaRanks(splitAll(ls))
		}
		if p.NewRankHandles != nil {
			ranks = p.NewRankHandles.Apply(ranks)
		}
		out.Set(id, domain.JoinRanks(ranks))
	}
	return out, nil
}

func normalizeLabel(label string, strip *regexp.Regexp) string {
	ranks := domain.SplitRanks(label)
	if strip != nil {
		for i, r := range ranks {
			ranks[i] = strip.ReplaceAllString(r, "")
		}
	}
	return domain.JoinRanks(trimEmpty(ranks))
}
