package fs

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bft-labs/rescript/internal/domain"
)

func TestReadFASTA(t *testing.T) {
	in := ">seq1 some description\nacgt\nACGU\n>seq2\nNNNN\n"
	seqs, err := ReadFASTA(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ReadFASTA() error = %v", err)
	}
	if len(seqs) != 2 {
		t.Fatalf("got %d records, want 2", len(seqs))
	}
	if seqs[0].ID != "seq1" {
		t.Errorf("ID = %q, want seq1", seqs[0].ID)
	}
	if seqs[0].Seq != "ACGTACGU" {
		t.Errorf("Seq = %q, want ACGTACGU", seqs[0].Seq)
	}
	if seqs[1].Seq != "NNNN" {
		t.Errorf("Seq = %q, want NNNN", seqs[1].Seq)
	}
}

func TestScanFASTADesc(t *testing.T) {
	in := ">RS_1~NC_1 d__Bacteria;s__Escherichia coli [location=1..10]\nACGT\n"
	var gotID, gotDesc string
	err := ScanFASTADesc(strings.NewReader(in), func(s domain.Sequence, desc string) error {
		gotID, gotDesc = s.ID, desc
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if gotID != "RS_1~NC_1" {
		t.Errorf("ID = %q", gotID)
	}
	if gotDesc != "d__Bacteria;s__Escherichia coli [location=1..10]" {
		t.Errorf("Desc = %q", gotDesc)
	}
}

func TestFASTARoundTripGzip(t *testing.T) {
	dir := t.TempDir()
	plain := filepath.Join(dir, "out.fasta")
	seqs := []domain.Sequence{{ID: "a", Seq: "ACGT"}, {ID: "b", Seq: "GG"}}
	if err := WriteFASTAFile(plain, seqs); err != nil {
		t.Fatal(err)
	}
	raw, err := os.ReadFile(plain)
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) != ">a\nACGT\n>b\nGG\n" {
		t.Errorf("file = %q", raw)
	}

	gz := filepath.Join(dir, "out.fasta.gz")
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	zw.Write(raw)
	zw.Close()
	if err := os.WriteFile(gz, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := ReadFASTAFile(gz)
	if err != nil {
		t.Fatalf("ReadFASTAFile(gz) error = %v", err)
	}
	if len(got) != 2 || got[1].ID != "b" {
		t.Errorf("got %+v", got)
	}
}

func TestReadTaxonomy(t *testing.T) {
	tests := []struct {
		name  string
		input string
		ids   []string
		label string
	}{
		{
			name:  "with header",
			input: "Feature ID\tTaxon\tConfidence\nA1\tk__Fungi;p__Ascomycota\t0.9\n",
			ids:   []string{"A1"},
			label: "k__Fungi; p__Ascomycota",
		},
		{
			name:  "headerless",
			input: "A1\tk__Fungi; p__Ascomycota\nA2\tk__Fungi\n",
			ids:   []string{"A1", "A2"},
			label: "k__Fungi; p__Ascomycota",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tax, err := ReadTaxonomy(strings.NewReader(tt.input))
			if err != nil {
				t.Fatalf("ReadTaxonomy() error = %v", err)
			}
			ids := tax.IDs()
			if len(ids) != len(tt.ids) {
				t.Fatalf("IDs() = %v, want %v", ids, tt.ids)
			}
			if l, _ := tax.Get("A1"); l != tt.label {
				t.Errorf("label = %q, want %q", l, tt.label)
			}
		})
	}
}

func TestReadTaxonomyRejectsSingleColumn(t *testing.T) {
	if _, err := ReadTaxonomy(strings.NewReader("A1\n")); err == nil {
		t.Fatal("expected error for single column")
	}
}

func TestWriteTaxonomy(t *testing.T) {
	tax := domain.NewTaxonomy()
	tax.Set("x", "d__Bacteria")
	var buf bytes.Buffer
	if err := WriteTaxonomy(&buf, tax); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "Feature ID\tTaxon\nx\td__Bacteria\n" {
		t.Errorf("output = %q", buf.String())
	}
}

func writeTarGz(t *testing.T, path string, files map[string]string, order []string) {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(zw)
	for _, name := range order {
		body := files[name]
		if err := tw.WriteHeader(&tar.Header{Name: name, Mode: 0o644, Size: int64(len(body)), Typeflag: tar.TypeReg}); err != nil {
			t.Fatal(err)
		}
		tw.Write([]byte(body))
	}
	tw.Close()
	zw.Close()
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestExtractTarGzFlattensAndFilters(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "db.tar.gz")
	files := map[string]string{
		"release/sh_refs_qiime_ver9_99_dev.fasta": ">a\nACGT\n",
		"release/sh_refs_qiime_ver9_99.fasta":     ">b\nACGT\n",
		"a/b/c/other_dev.txt":                     "x",
	}
	writeTarGz(t, src, files, []string{
		"release/sh_refs_qiime_ver9_99_dev.fasta",
		"release/sh_refs_qiime_ver9_99.fasta",
		"a/b/c/other_dev.txt",
	})

	out := filepath.Join(dir, "out")
	paths, err := ExtractTarGz(src, out, func(name string) bool { return strings.Contains(name, "_dev") })
	if err != nil {
		t.Fatalf("ExtractTarGz() error = %v", err)
	}
	if len(paths) != 2 {
		t.Fatalf("extracted %v, want 2 files", paths)
	}
	for _, p := range paths {
		if filepath.Dir(p) != out {
			t.Errorf("%s escaped %s", p, out)
		}
	}
	if _, err := os.Stat(filepath.Join(out, "sh_refs_qiime_ver9_99_dev.fasta")); err != nil {
		t.Errorf("flattened file missing: %v", err)
	}
}

func TestReadIDs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ids.tsv")
	body := "Feature ID\tTaxon\nA1\td__Bacteria\n\n# note\nB2\n  C3 \n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := ReadIDs(path)
	if err != nil {
		t.Fatalf("ReadIDs() error = %v", err)
	}
	want := []string{"A1", "B2", "C3"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("ReadIDs() = %v, want %v", got, want)
	}
}
