package curate

import (
	"errors"
	"testing"

	"github.com/bft-labs/rescript/internal/domain"
)

func TestEditTaxonomy(t *testing.T) {
	tax := taxonomyOf(
		[2]string{"a", "d__Bacteria; p__Firmicutes"},
		[2]string{"b", "d__Bacteria; p__Firmicutes_A"},
	)
	tests := []struct {
		name     string
		reps     []Replacement
		useRegex bool
		want     map[string]string
	}{
		{
			name: "literal",
			reps: []Replacement{{Search: "Firmicutes", Replace: "Bacillota"}},
			want: map[string]string{"a": "d__Bacteria; p__Bacillota", "b": "d__Bacteria; p__Bacillota_A"},
		},
		{
			name:     "regex",
			reps:     []Replacement{{Search: `_[A-Z]$`, Replace: ""}, {Search: `p__(\w+)`, Replace: "p__[$1]"}},
			useRegex: true,
			want:     map[string]string{"a": "d__Bacteria; p__[Firmicutes]", "b": "d__Bacteria; p__[Firmicutes]"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EditTaxonomy(tax, tt.reps, tt.useRegex)
			if err != nil {
				t.Fatalf("EditTaxonomy() error = %v", err)
			}
			for id, want := range tt.want {
				if l, _ := got.Get(id); l != want {
					t.Errorf("[%s] = %q, want %q", id, l, want)
				}
			}
		})
	}
}

func TestEditTaxonomyErrors(t *testing.T) {
	tax := taxonomyOf([2]string{"a", "d__B"})
	if _, err := EditTaxonomy(tax, []Replacement{{Search: "(", Replace: ""}}, true); !errors.Is(err, domain.ErrInvalidParameter) {
		t.Errorf("bad regex error = %v", err)
	}
	if _, err := NewReplacements([]string{"a"}, nil); !errors.Is(err, domain.ErrInvalidParameter) {
		t.Errorf("length mismatch error = %v", err)
	}
	if _, err := NewReplacements([]string{"B", ""}, []string{"b", "x"}); !errors.Is(err, domain.ErrInvalidParameter) {
		t.Errorf("empty search error = %v", err)
	}
	for _, useRegex := range []bool{false, true} {
		if _, err := EditTaxonomy(tax, []Replacement{{Search: "", Replace: "x"}}, useRegex); !errors.Is(err, domain.ErrInvalidParameter) {
			t.Errorf("EditTaxonomy(empty search, regex=%v) error = %v", useRegex, err)
		}
	}
}

func TestMergeTaxa(t *testing.T) {
	t1 := taxonomyOf(
		[2]string{"x", "d__Bacteria; p__Firmicutes; c__Bacilli"},
		[2]string{"y", "d__Archaea"},
	)
	t2 := taxonomyOf(
		[2]string{"x", "k__Bacteria; p__Firmicutes"},
		[2]string{"z", "k__Eukaryota"},
	)
	t3 := taxonomyOf(
		[2]string{"x", "Bacteria; Firmicutes"},
	)
	tests := []struct {
		mode    MergeMode
		handles domain.RankHandles
		want    map[string]string
	}{
		{MergeLen, nil, map[string]string{"x": "Bacteria; Firmicutes; Bacilli", "y": "Archaea", "z": "Eukaryota"}},
		{MergeLCA, nil, map[string]string{"x": "Bacteria; Firmicutes"}},
		{MergeMajority, nil, map[string]string{"x": "Bacteria; Firmicutes"}},
		{MergeSuper, nil, map[string]string{"x": "Bacteria; Firmicutes; Bacilli"}},
		{MergeLen, domain.RankHandles{"d__", "p__", "c__"}, map[string]string{"x": "d__Bacteria; p__Firmicutes; c__Bacilli", "z": "d__Eukaryota"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			got, err := MergeTaxa([]*domain.Taxonomy{t1, t2, t3}, MergeParams{
				Mode:            tt.mode,
				RankHandleRegex: DefaultRankHandleRegex,
				NewRankHandles:  tt.handles,
			})
			if err != nil {
				t.Fatalf("MergeTaxa() error = %v", err)
			}
			if !equalStrings(got.IDs(), []string{"x", "y", "z"}) {
				t.Errorf("ids = %v", got.IDs())
			}
			for id, want := range tt.want {
				if l, _ := got.Get(id); l != want {
					t.Errorf("[%s] = %q, want %q", id, l, want)
				}
			}
		})
	}
}

func TestMergeTaxaErrors(t *testing.T) {
	one := taxonomyOf([2]string{"a", "d__B"})
	if _, err := MergeTaxa([]*domain.Taxonomy{one}, MergeParams{Mode: MergeLen}); !errors.Is(err, domain.ErrInvalidParameter) {
		t.Errorf("single table error = %v", err)
	}
	if _, err := MergeTaxa([]*domain.Taxonomy{one, one}, MergeParams{Mode: "longest"}); !errors.Is(err, domain.ErrInvalidParameter) {
		t.Errorf("bad mode error = %v", err)
	}
	if _, err := MergeTaxa([]*domain.Taxonomy{one, one}, MergeParams{Mode: MergeLen, RankHandleRegex: "["}); !errors.Is(err, domain.ErrInvalidParameter) {
		t.Errorf("bad regex error = %v", err)
	}
}

func TestSubsample(t *testing.T) {
	var seqs []domain.Sequence
	for i := 0; i < 1000; i++ {
		seqs = append(seqs, domain.Sequence{ID: string(rune('a'+i%26)) + string(rune('0'+i%10)), Seq: "ACGT"})
	}
	a, err := Subsample(seqs, 0.3, 42)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := Subsample(seqs, 0.3, 42)
	if len(a) != len(b) {
		t.Fatalf("same seed gave %d and %d sequences", len(a), len(b))
	}
	if len(a) < 200 || len(a) > 400 {
		t.Errorf("Subsample(0.3) kept %d of 1000", len(a))
	}
	all, _ := Subsample(seqs, 1, 7)
	if len(all) != len(seqs) {
		t.Errorf("Subsample(1) kept %d of %d", len(all), len(seqs))
	}
	for _, f := range []float64{0, -0.1, 1.5} {
		if _, err := Subsample(seqs, f, 1); !errors.Is(err, domain.ErrInvalidParameter) {
			t.Errorf("Subsample(%g) error = %v", f, err)
		}
	}
}
