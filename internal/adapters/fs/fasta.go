package fs

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/biogo/biogo/alphabet"
	"github.com/biogo/biogo/io/seqio"
	"github.com/biogo/biogo/io/seqio/fasta"
	"github.com/biogo/biogo/seq/linear"

	"github.com/bft-labs/rescript/internal/domain"
)

// ScanFASTA reads FASTA records from r and calls fn for each one.
// Residues are upper-cased. Scanning stops at the first error from fn.
func ScanFASTA(r io.Reader, fn func(domain.Sequence) error) error {
	return ScanFASTADesc(r, func(s domain.Sequence, _ string) error { return fn(s) })
}

// ScanFASTADesc is ScanFASTA but also passes the header text following the id.
func ScanFASTADesc(r io.Reader, fn func(s domain.Sequence, desc string) error) error {
	template := linear.NewSeq("", nil, alphabet.DNAredundant)
	sc := seqio.NewScanner(fasta.NewReader(r, template))
	for sc.Next() {
		s, ok := sc.Seq().(*linear.Seq)
		if !ok {
			return fmt.Errorf("unexpected sequence type %T", sc.Seq())
		}
		if err := fn(domain.Sequence{ID: s.ID, Seq: lettersToUpper(s.Seq)}, s.Desc); err != nil {
			return err
		}
	}
	return sc.Error()
}

// ReadFASTA reads all FASTA records from r.
func ReadFASTA(r io.Reader) ([]domain.Sequence, error) {
	var out []domain.Sequence
	err := ScanFASTA(r, func(s domain.Sequence) error {
		out = append(out, s)
		return nil
	})
	return out, err
}

// ReadFASTAFile reads a FASTA file, decompressing it when the name ends in .gz.
func ReadFASTAFile(path string) ([]domain.Sequence, error) {
	rc, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	seqs, err := ReadFASTA(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return seqs, nil
}

// WriteFASTA writes records with one sequence line per record.
func WriteFASTA(w io.Writer, seqs []domain.Sequence) error {
	bw := bufio.NewWriter(w)
	for _, s := range seqs {
		if _, err := fmt.Fprintf(bw, ">%s\n%s\n", s.ID, s.Seq); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteFASTAFile writes records to path, creating parent directories.
func WriteFASTAFile(path string, seqs []domain.Sequence) error {
	return writeFile(path, func(w io.Writer) error { return WriteFASTA(w, seqs) })
}

// Open opens path for reading, transparently decompressing .gz files.
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(path, ".gz") {
		return f, nil
	}
	zr, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("gunzip %s: %w", path, err)
	}
	return &gzipFile{Reader: zr, f: f}, nil
}

type gzipFile struct {
	*gzip.Reader
	f *os.File
}

func (g *gzipFile) Close() error {
	zerr := g.Reader.Close()
	if err := g.f.Close(); err != nil {
		return err
	}
	return zerr
}

// writeFile writes through a temp file and renames it into place.
func writeFile(path string, fn func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func lettersToUpper(ls alphabet.Letters) string {
	b := make([]byte, len(ls))
	for i, l := range ls {
		c := byte(l)
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		b[i] = c
	}
	return string(b)
}
