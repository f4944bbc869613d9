package curate

import (
	"fmt"
	"strings"

	"github.com/bft-labs/rescript/internal/domain"
)

// LengthBounds is an inclusive length range. Zero means unbounded.
type LengthBounds struct {
	Min int
	Max int
}

func (b LengthBounds) validate(name string) error {
	if b.Min < 0 || b.Max < 0 {
		return fmt.Errorf("%w: %s length bounds must not be negative", domain.ErrInvalidParameter, name)
	}
	if b.Max > 0 && b.Min > b.Max {
		return fmt.Errorf("%w: %s min %d exceeds max %d", domain.ErrInvalidParameter, name, b.Min, b.Max)
	}
	return nil
}

func (b LengthBounds) set() bool { return b.Min > 0 || b.Max > 0 }

func (b LengthBounds) contains(n int) bool {
	if b.Min > 0 && n < b.Min {
		return false
	}
	if b.Max > 0 && n > b.Max {
		return false
	}
	return true
}

// FilterLength splits seqs into those within bounds and those outside.
// At least one bound is required.
func FilterLength(seqs []domain.Sequence, bounds LengthBounds) (kept, discarded []domain.Sequence, err error) {
	if !bounds.set() {
		return nil, nil, fmt.Errorf("%w: global-min or global-max is required", domain.ErrInvalidParameter)
	}
	if err := bounds.validate("global"); err != nil {
		return nil, nil, err
	}
	for _, s := range seqs {
		if bounds.contains(s.Len()) {
			kept = append(kept, s)
		} else {
			discarded = append(discarded, s)
		}
	}
	return kept, discarded, nil
}

// TaxonBounds applies to sequences whose taxonomy contains Label.
type TaxonBounds struct {
	Label string
	LengthBounds
}

// NewTaxonBounds zips parallel label and bound lists. Either bound list may
// be empty; otherwise it must match labels in length.
func NewTaxonBounds(labels []string, mins, maxs []int) ([]TaxonBounds, error) {
	if len(labels) == 0 {
		return nil, fmt.Errorf("%w: labels are required", domain.ErrInvalidParameter)
	}
	if len(mins) == 0 && len(maxs) == 0 {
		return nil, fmt.Errorf("%w: min-lens or max-lens is required", domain.ErrInvalidParameter)
	}
	if len(mins) > 0 && len(mins) != len(labels) {
		return nil, fmt.Errorf("%w: %d min-lens for %d labels", domain.ErrInvalidParameter, len(mins), len(labels))
	}
	if len(maxs) > 0 && len(maxs) != len(labels) {
		return nil, fmt.Errorf("%w: %d max-lens for %d labels", domain.ErrInvalidParameter, len(maxs), len(labels))
	}
	out := make([]TaxonBounds, len(labels))
	for i, l := range labels {
		out[i].Label = l
		if len(mins) > 0 {
			out[i].Min = mins[i]
		}
		if len(maxs) > 0 {
			out[i].Max = maxs[i]
		}
		if err := out[i].validate(l); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// FilterLengthByTaxon keeps sequences satisfying the bounds of every label
// found in their taxonomy and the optional global bounds.
func FilterLengthByTaxon(seqs []domain.Sequence, tax *domain.Taxonomy, bounds []TaxonBounds, global LengthBounds) (kept, discarded []domain.Sequence, err error) {
	if err := global.validate("global"); err != nil {
		return nil, nil, err
	}
	for _, s := range seqs {
		label, ok := tax.Get(s.ID)
		if !ok {
			return nil, nil, fmt.Errorf("%w: sequence %q", domain.ErrMissingTaxonomy, s.ID)
		}
		keep := global.contains(s.Len())
		for _, b := range bounds {
			if !keep {
				break
			}
			if strings.Contains(label, b.Label) && !b.contains(s.Len()) {
				keep = false
			}
		}
		if keep {
			kept = append(kept, s)
		} else {
			discarded = append(discarded, s)
		}
	}
	return kept, discarded, nil
}

// TaxaFilter selects taxonomy rows.
type TaxaFilter struct {
	// IDs restricts the result to these ids when non-empty.
	IDs map[string]bool

	// Include keeps rows whose label contains any of these strings.
	Include []string

	// Exclude drops rows whose label contains any of these strings.
	Exclude []string

	IgnoreCase bool
}

// FilterTaxa applies f to tax. An empty result is an error.
func FilterTaxa(tax *domain.Taxonomy, f TaxaFilter) (*domain.Taxonomy, error) {
	if len(f.IDs) == 0 && len(f.Include) == 0 && len(f.Exclude) == 0 {
		return nil, fmt.Errorf("%w: ids-to-keep, include or exclude is required", domain.ErrInvalidParameter)
	}
	norm := func(s string) string {
		if f.IgnoreCase {
			return strings.ToLower(s)
		}
		return s
	}
	keep := make(map[string]bool)
	for _, id := range tax.IDs() {
		if len(f.IDs) > 0 && !f.IDs[id] {
			continue
		}
		label, _ := tax.Get(id)
		label = norm(label)
		if len(f.Include) > 0 && !containsAny(label, f.Include, norm) {
			continue
		}
		if containsAny(label, f.Exclude, norm) {
			continue
		}
		keep[id] = true
	}
	if len(keep) == 0 {
		return nil, fmt.Errorf("%w: all features were filtered out", domain.ErrNoRecords)
	}
	return tax.Subset(keep), nil
}

func containsAny(s string, subs []string, norm func(string) string) bool {
	for _, sub := range subs {
		if strings.Contains(s, norm(sub)) {
			return true
		}
	}
	return false
}
