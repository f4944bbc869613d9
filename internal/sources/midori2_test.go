package sources

import (
	"context"
	"errors"
	"reflect"
	"testing"

	logAdapter "github.com/bft-labs/rescript/internal/adapters/log"
	"github.com/bft-labs/rescript/internal/domain"
)

func TestMidori2URLs(t *testing.T) {
	m := NewMidori2(nil, logAdapter.NewNoopLogger(), "https://example.org/db/")
	p := DefaultMidori2Params()

	fasta, tax := m.URLs("CO1", p)
	want := "https://example.org/db/GenBank265_2025-03-08/QIIME/uniq/MIDORI2_UNIQ_NUC_GB265_CO1_QIIME"
	if fasta != want+".fasta.gz" || tax != want+".taxon.gz" {
		t.Errorf("URLs() = %s, %s", fasta, tax)
	}

	p.UnspecifiedSpecies = true
	p.RefSeqType = "longest"
	fasta, _ = m.URLs("srRNA", p)
	want = "https://example.org/db/GenBank265_2025-03-08/QIIME_sp/longest/MIDORI2_LONGEST_NUC_SP_GB265_srRNA_QIIME.fasta.gz"
	if fasta != want {
		t.Errorf("URLs() = %s, want %s", fasta, want)
	}
}

func TestResolveGenes(t *testing.T) {
	tests := []struct {
		name  string
		genes []string
		want  []string
	}{
		{"single", []string{"CO1"}, []string{"CO1"}},
		{"keeps order", []string{"Cytb", "CO1"}, []string{"Cytb", "CO1"}},
		{"drops repeats", []string{"CO1", "Cytb", "CO1", "Cytb"}, []string{"CO1", "Cytb"}},
		{"all", []string{"CO1", "all", "CO1"}, Midori2Genes},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveGenes(tt.genes)
			if err != nil {
				t.Fatalf("ResolveGenes() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ResolveGenes() = %v, want %v", got, tt.want)
			}
		})
	}

	if _, err := ResolveGenes([]string{"COI"}); !errors.Is(err, domain.ErrInvalidParameter) {
		t.Errorf("bad gene error = %v", err)
	}
	if _, err := ResolveGenes(nil); !errors.Is(err, domain.ErrInvalidParameter) {
		t.Errorf("no genes error = %v", err)
	}
}

func TestMidori2Get(t *testing.T) {
	prefix := "/GenBank265_2025-03-08/QIIME/uniq/MIDORI2_UNIQ_NUC_GB265_"
	srv := newFileServer(t, map[string][]byte{
		prefix + "CO1_QIIME.fasta.gz":  gz(t, ">AB1.1.1\nacgt\n"),
		prefix + "CO1_QIIME.taxon.gz":  gz(t, "AB1.1.1\tk__Eukaryota_2759;p__Chordata_7711\n"),
		prefix + "Cytb_QIIME.fasta.gz": gz(t, ">CD2.1.1\nGGCC\n>CD3.1.1\nTTAA\n"),
		prefix + "Cytb_QIIME.taxon.gz": gz(t, "CD2.1.1\tk__Eukaryota_2759\nCD3.1.1\tk__Eukaryota_2759\n"),
	})

	m := NewMidori2(testFetcher(), logAdapter.NewNoopLogger(), srv.URL)
	p := DefaultMidori2Params()
	p.Genes = []string{"CO1", "Cytb", "CO1"}
	p.Jobs = 3
	got, err := m.Get(context.Background(), p, t.TempDir())
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d genes, want 2", len(got))
	}
	co1 := got["CO1"]
	if len(co1.Sequences) != 1 || co1.Sequences[0].Seq != "ACGT" {
		t.Errorf("CO1 sequences = %+v", co1.Sequences)
	}
	if l, _ := co1.Taxonomy.Get("AB1.1.1"); l != "k__Eukaryota_2759; p__Chordata_7711" {
		t.Errorf("CO1 taxonomy = %q", l)
	}
	if got["Cytb"].Taxonomy.Len() != 2 {
		t.Errorf("Cytb taxonomy rows = %d", got["Cytb"].Taxonomy.Len())
	}
}

func TestMidori2GetMissingGene(t *testing.T) {
	srv := newFileServer(t, map[string][]byte{})
	m := NewMidori2(testFetcher(), logAdapter.NewNoopLogger(), srv.URL)
	p := DefaultMidori2Params()
	p.Genes = []string{"ND1"}
	if _, err := m.Get(context.Background(), p, t.TempDir()); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}
