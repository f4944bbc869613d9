package curate

import (
	"fmt"
	"sort"

	"github.com/bft-labs/rescript/internal/domain"
)

// DerepMode selects how taxonomy is resolved for duplicate sequences.
type DerepMode string

const (
	DerepUniq     DerepMode = "uniq"
	DerepLCA      DerepMode = "lca"
	DerepMajority DerepMode = "majority"
	DerepSuper    DerepMode = "super"
)

// DerepModes lists the accepted modes.
func DerepModes() []string {
	return []string{string(DerepUniq), string(DerepLCA), string(DerepMajority), string(DerepSuper)}
}

// DerepParams controls Dereplicate.
type DerepParams struct {
	Mode DerepMode

	// Prefix collapses sequences that are a prefix of a longer sequence
	// into that sequence's group.
	Prefix bool

	// RankHandles pads truncated consensus labels. Nil disables padding.
	RankHandles domain.RankHandles
}

type derepGroup struct {
	seq string
	ids []string
}

// Dereplicate collapses identical sequences. Every sequence id must have a
// taxonomy row. The returned sequences and taxonomy are ordered by the first
// occurrence of each group in seqs.
func Dereplicate(seqs []domain.Sequence, tax *domain.Taxonomy, p DerepParams) ([]domain.Sequence, *domain.Taxonomy, error) {
	if err := domain.CheckChoice("mode", string(p.Mode), DerepModes()); err != nil {
		return nil, nil, err
	}
	for _, s := range seqs {
		if _, ok := tax.Get(s.ID); !ok {
			return nil, nil, fmt.Errorf("%w: sequence %q", domain.ErrMissingTaxonomy, s.ID)
		}
	}

	groups := groupExact(seqs)
	if p.Prefix {
		groups = mergePrefixes(groups)
	}

	outSeqs := make([]domain.Sequence, 0, len(groups))
	outTax := domain.NewTaxonomy()
	for _, g := range groups {
		labels := make([]string, len(g.ids))
		for i, id := range g.ids {
			labels[i], _ = tax.Get(id)
		}

		if p.Mode == DerepUniq {
			seen := make(map[string]bool, len(labels))
			for i, l := range labels {
				if seen[l] {
					continue
				}
				seen[l] = true
				outSeqs = append(outSeqs, domain.Sequence{ID: g.ids[i], Seq: g.seq})
				outTax.Set(g.ids[i], l)
			}
			continue
		}

		rep := g.ids[0]
		outSeqs = append(outSeqs, domain.Sequence{ID: rep, Seq: g.seq})
		outTax.Set(rep, consensus(p.Mode, labels, p.RankHandles))
	}
	return outSeqs, outTax, nil
}

func consensus(mode DerepMode, labels []string, handles domain.RankHandles) string {
	switch mode {
	case DerepMajority:
		return majorityLabel(labels)
	case DerepSuper:
		return domain.JoinRanks(superRanks(splitAll(labels)))
	default:
		ranks := lcaRanks(splitAll(labels))
		if handles != nil {
			ranks = handles.Pad(ranks)
		}
		return domain.JoinRanks(ranks)
	}
}

func groupExact(seqs []domain.Sequence) []*derepGroup {
	index := make(map[string]*derepGroup, len(seqs))
	var groups []*derepGroup
	for _, s := range seqs {
		g, ok := index[s.Seq]
		if !ok {
			g = &derepGroup{seq: s.Seq}
			index[s.Seq] = g
			groups = append(groups, g)
		}
		g.ids = append(g.ids, s.ID)
	}
	return groups
}

// mergePrefixes folds every group whose sequence is a prefix of a longer one
// into the group of that longer sequence. In lexical order a prefix sorts
// directly before the strings it prefixes, so each group only needs to be
// compared with its successor.
func mergePrefixes(groups []*derepGroup) []*derepGroup {
	order := make([]int, len(groups))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return groups[order[a]].seq < groups[order[b]].seq })

	target := make([]int, len(groups))
	for i := range target {
		target[i] = i
	}
	for k := len(order) - 2; k >= 0; k-- {
		cur, next := order[k], order[k+1]
		if len(groups[cur].seq) < len(groups[next].seq) && hasPrefix(groups[next].seq, groups[cur].seq) {
			target[cur] = target[next]
		}
	}

	merged := make(map[int]*derepGroup, len(groups))
	var out []*derepGroup
	for i, g := range groups {
		t := target[i]
		m, ok := merged[t]
		if !ok {
			m = &derepGroup{seq: groups[t].seq}
			merged[t] = m
			out = append(out, m)
		}
		m.ids = append(m.ids, g.ids...)
	}
	return out
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}
