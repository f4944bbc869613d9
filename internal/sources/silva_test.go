package sources

import (
	"context"
	"errors"
	"strings"
	"testing"

	logAdapter "github.com/bft-labs/rescript/internal/adapters/log"
	"github.com/bft-labs/rescript/internal/domain"
)

const silvaRankFile = "Bacteria;\t3\tdomain\t\t138\n" +
	"Bacteria;Firmicutes;\t10\tphylum\t\t138\n" +
	"Bacteria;Firmicutes;Bacilli;\t11\tclass\t\t138\n" +
	"Bacteria;Firmicutes;Bacilli;Lactobacillales;\t12\torder\t\t138\n" +
	"Bacteria;Firmicutes;Bacilli;Lactobacillales;Lactobacillaceae;\t13\tfamily\t\t138\n" +
	"Bacteria;Firmicutes;Bacilli;Lactobacillales;Lactobacillaceae;Lactobacillus;\t14\tgenus\t\t138\n" +
	"Bacteria;Firmicutes;Clostridia;\t20\tclass\t\t138\n" +
	"Bacteria;Firmicutes;Clostridia;Incertae Sedis;\t21\tgenus\t\t138\n"

const silvaTaxMap = "primaryAccession\tstart\tstop\tpath\torganism_name\ttaxid\n" +
	"AB001\t1\t1500\tBacteria;Firmicutes;Bacilli;Lactobacillales;Lactobacillaceae;Lactobacillus;\tLactobacillus casei\t14\n" +
	"AB002\t5\t1400\tBacteria;Firmicutes;Clostridia;Incertae Sedis;\tuncultured bacterium\t21\n"

func TestParseSilvaTaxonomy(t *testing.T) {
	ranks, err := ReadSilvaRanks(strings.NewReader(silvaRankFile))
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name    string
		mutate  func(*SilvaParams)
		wantAB1 string
		wantAB2 string
	}{
		{
			name:    "propagated",
			mutate:  func(*SilvaParams) {},
			wantAB1: "d__Bacteria; p__Firmicutes; c__Bacilli; o__Lactobacillales; f__Lactobacillaceae; g__Lactobacillus",
			wantAB2: "d__Bacteria; p__Firmicutes; c__Clostridia; o__Clostridia; f__Clostridia; g__Incertae Sedis",
		},
		{
			name:    "not propagated",
			mutate:  func(p *SilvaParams) { p.RankPropagation = false },
			wantAB2: "d__Bacteria; p__Firmicutes; c__Clostridia; o__; f__; g__Incertae Sedis",
		},
		{
			name:    "species",
			mutate:  func(p *SilvaParams) { p.IncludeSpeciesLabels = true },
			wantAB1: "d__Bacteria; p__Firmicutes; c__Bacilli; o__Lactobacillales; f__Lactobacillaceae; g__Lactobacillus; s__Lactobacillus_casei",
			wantAB2: "d__Bacteria; p__Firmicutes; c__Clostridia; o__Clostridia; f__Clostridia; g__Incertae Sedis",
		},
		{
			name:    "custom ranks",
			mutate:  func(p *SilvaParams) { p.Ranks = []string{"domain", "class", "genus"} },
			wantAB1: "d__Bacteria; c__Bacilli; g__Lactobacillus",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultSilvaParams()
			tt.mutate(&p)
			tax, err := ParseSilvaTaxonomy(strings.NewReader(silvaTaxMap), ranks, p)
			if err != nil {
				t.Fatalf("ParseSilvaTaxonomy() error = %v", err)
			}
			if got, _ := tax.Get("AB001.1.1500"); tt.wantAB1 != "" && got != tt.wantAB1 {
				t.Errorf("AB001 = %q, want %q", got, tt.wantAB1)
			}
			if got, _ := tax.Get("AB002.5.1400"); tt.wantAB2 != "" && got != tt.wantAB2 {
				t.Errorf("AB002 = %q, want %q", got, tt.wantAB2)
			}
		})
	}
}

func TestSilvaURLs(t *testing.T) {
	s := NewSilva(nil, logAdapter.NewNoopLogger(), "")
	tests := []struct {
		version, target string
		want            SilvaURLs
	}{
		{"138.2", "SSURef_NR99", SilvaURLs{
			Sequences: DefaultSilvaURL + "/release_138_2/Exports/SILVA_138.2_SSURef_NR99_tax_silva.fasta.gz",
			RankFile:  DefaultSilvaURL + "/release_138_2/Exports/taxonomy/tax_slv_ssu_138.2.txt.gz",
			TaxMap:    DefaultSilvaURL + "/release_138_2/Exports/taxonomy/taxmap_slv_ssu_ref_nr_138.2.txt.gz",
		}},
		{"132", "LSURef_NR99", SilvaURLs{
			Sequences: DefaultSilvaURL + "/release_132/Exports/SILVA_132_LSURef_Nr99_tax_silva.fasta.gz",
			RankFile:  DefaultSilvaURL + "/release_132/Exports/taxonomy/tax_slv_lsu_132.txt.gz",
			TaxMap:    DefaultSilvaURL + "/release_132/Exports/taxonomy/taxmap_slv_lsu_ref_nr_132.txt.gz",
		}},
		{"138.1", "SSURef", SilvaURLs{
			Sequences: DefaultSilvaURL + "/release_138.1/Exports/SILVA_138.1_SSURef_tax_silva.fasta.gz",
			RankFile:  DefaultSilvaURL + "/release_138.1/Exports/taxonomy/tax_slv_ssu_138.1.txt.gz",
			TaxMap:    DefaultSilvaURL + "/release_138.1/Exports/taxonomy/taxmap_slv_ssu_ref_138.1.txt.gz",
		}},
	}
	for _, tt := range tests {
		p := DefaultSilvaParams()
		p.Version, p.Target = tt.version, tt.target
		if got := s.URLs(p); got != tt.want {
			t.Errorf("URLs(%s, %s) = %+v, want %+v", tt.version, tt.target, got, tt.want)
		}
	}
}

func TestSilvaGet(t *testing.T) {
	root := "/release_138_2/Exports/"
	srv := newFileServer(t, map[string][]byte{
		root + "taxonomy/tax_slv_ssu_138.2.txt.gz":           gz(t, silvaRankFile),
		root + "taxonomy/taxmap_slv_ssu_ref_nr_138.2.txt.gz": gz(t, silvaTaxMap),
		root + "SILVA_138.2_SSURef_NR99_tax_silva.fasta.gz":  gz(t, ">AB001.1.1500 Bacteria;Firmicutes\nacgu\n>AB002.5.1400 x\nUUUU\n"),
	})
	s := NewSilva(testFetcher(), logAdapter.NewNoopLogger(), srv.URL)

	ds, err := s.Get(context.Background(), DefaultSilvaParams(), t.TempDir())
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(ds.Sequences) != 2 || ds.Sequences[0].Seq != "ACGT" || ds.Sequences[1].Seq != "TTTT" {
		t.Errorf("sequences = %+v", ds.Sequences)
	}
	if ds.Taxonomy.Len() != 2 {
		t.Errorf("taxonomy rows = %d", ds.Taxonomy.Len())
	}

	p := DefaultSilvaParams()
	p.DownloadSequences = false
	ds, err = s.Get(context.Background(), p, t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if ds.Sequences != nil || ds.Taxonomy.Len() != 2 {
		t.Errorf("taxonomy-only result = %d seqs, %d rows", len(ds.Sequences), ds.Taxonomy.Len())
	}
}

func TestSilvaParamsValidate(t *testing.T) {
	p := DefaultSilvaParams()
	p.Version = "138.3"
	err := p.Validate()
	if !errors.Is(err, domain.ErrInvalidParameter) || !strings.Contains(err.Error(), "did you mean") {
		t.Errorf("Validate() = %v", err)
	}
	p = DefaultSilvaParams()
	p.Ranks = []string{"domain", "species"}
	if err := p.Validate(); !errors.Is(err, domain.ErrInvalidParameter) {
		t.Errorf("bad rank error = %v", err)
	}
}
