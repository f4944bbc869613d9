package domain

import (
	"fmt"
	"sort"
	"strings"
)

// RankSeparator joins ranks in a taxonomy label.
const RankSeparator = "; "

// Taxonomy is an ordered mapping from feature id to lineage label.
// Insertion order is kept so that outputs are stable.
type Taxonomy struct {
	ids    []string
	labels map[string]string
}

// NewTaxonomy creates an empty Taxonomy.
func NewTaxonomy() *Taxonomy {
	return &Taxonomy{labels: make(map[string]string)}
}

// Set adds or replaces the label for id.
func (t *Taxonomy) Set(id, label string) {
	if _, ok := t.labels[id]; !ok {
		t.ids = append(t.ids, id)
	}
	t.labels[id] = label
}

// Get returns the label for id.
func (t *Taxonomy) Get(id string) (string, bool) {
	l, ok := t.labels[id]
	return l, ok
}

// IDs returns the feature ids in insertion order.
func (t *Taxonomy) IDs() []string {
	out := make([]string, len(t.ids))
	copy(out, t.ids)
	return out
}

// Len returns the number of rows.
func (t *Taxonomy) Len() int { return len(t.ids) }

// Subset returns a new Taxonomy restricted to the given ids, in t's order.
func (t *Taxonomy) Subset(keep map[string]bool) *Taxonomy {
	out := NewTaxonomy()
	for _, id := range t.ids {
		if keep[id] {
			out.Set(id, t.labels[id])
		}
	}
	return out
}

// SplitRanks splits a label into trimmed ranks. Empty trailing ranks are kept
// so that positions stay aligned with rank handles.
func SplitRanks(label string) []string {
	if strings.TrimSpace(label) == "" {
		return nil
	}
	parts := strings.Split(label, ";")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}

// JoinRanks joins ranks with RankSeparator.
func JoinRanks(ranks []string) string {
	return strings.Join(ranks, RankSeparator)
}

// RankHandles are the per-rank prefixes of a taxonomy label, e.g. "d__".
type RankHandles []string

var rankHandlePresets = map[string]RankHandles{
	"silva":      {"d__", "p__", "c__", "o__", "f__", "g__", "s__"},
	"gtdb":       {"d__", "p__", "c__", "o__", "f__", "g__", "s__"},
	"greengenes": {"k__", "p__", "c__", "o__", "f__", "g__", "s__"},
	"ncbi":       {"k__", "p__", "c__", "o__", "f__", "g__", "s__"},
	"disable":    nil,
}

// RankHandlePresets returns the preset names in sorted order.
func RankHandlePresets() []string {
	names := make([]string, 0, len(rankHandlePresets))
	for k := range rankHandlePresets {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// LookupRankHandles returns the handles for a preset name.
func LookupRankHandles(name string) (RankHandles, error) {
	h, ok := rankHandlePresets[name]
	if !ok {
		return nil, InvalidChoice("rank-handles", name, RankHandlePresets())
	}
	return h, nil
}

// Apply prefixes each rank with its handle, skipping ranks that already carry
// one. Ranks beyond the handle list are left untouched.
func (h RankHandles) Apply(ranks []string) []string {
	out := make([]string, len(ranks))
	for i, r := range ranks {
		if i < len(h) && !strings.HasPrefix(r, h[i]) {
			r = h[i] + r
		}
		out[i] = r
	}
	return out
}

// Pad extends ranks to the length of h with bare handles.
func (h RankHandles) Pad(ranks []string) []string {
	if len(ranks) >= len(h) {
		return ranks
	}
	out := make([]string, len(h))
	copy(out, ranks)
	for i := len(ranks); i < len(h); i++ {
		out[i] = h[i]
	}
	return out
}

// String implements fmt.Stringer.
func (h RankHandles) String() string {
	return fmt.Sprintf("%v", []string(h))
}
