package fs

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/bft-labs/rescript/internal/domain"
)

// TaxonomyHeader is the header written before taxonomy rows.
const TaxonomyHeader = "Feature ID\tTaxon"

// ReadTaxonomy parses a taxonomy TSV. A leading header row ("Feature ID",
// "#OTU ID" or "#Feature ID") is optional; extra columns are ignored.
// Labels are normalised to "; " separated ranks.
func ReadTaxonomy(r io.Reader) (*domain.Taxonomy, error) {
	tax := domain.NewTaxonomy()
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)

	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		if lineNo == 1 && isTaxonomyHeader(line) {
			continue
		}
		if strings.HasPrefix(line, "#") {
			continue
		}
		cols := strings.Split(line, "\t")
		if len(cols) < 2 {
			return nil, fmt.Errorf("taxonomy line %d: expected at least 2 tab-separated columns", lineNo)
		}
		id := strings.TrimSpace(cols[0])
		if id == "" {
			return nil, fmt.Errorf("taxonomy line %d: empty feature id", lineNo)
		}
		tax.Set(id, domain.JoinRanks(domain.SplitRanks(cols[1])))
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return tax, nil
}

// ReadTaxonomyFile reads a taxonomy TSV, decompressing .gz files.
func ReadTaxonomyFile(path string) (*domain.Taxonomy, error) {
	rc, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	tax, err := ReadTaxonomy(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return tax, nil
}

// WriteTaxonomy writes the header and one row per feature in insertion order.
func WriteTaxonomy(w io.Writer, tax *domain.Taxonomy) error {
	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintln(bw, TaxonomyHeader); err != nil {
		return err
	}
	for _, id := range tax.IDs() {
		label, _ := tax.Get(id)
		if _, err := fmt.Fprintf(bw, "%s\t%s\n", id, label); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteTaxonomyFile writes tax to path, creating parent directories.
func WriteTaxonomyFile(path string, tax *domain.Taxonomy) error {
	return writeFile(path, func(w io.Writer) error { return WriteTaxonomy(w, tax) })
}

// WriteTable writes a TSV with a header row. Used for id lists and reports.
func WriteTable(path string, header []string, rows [][]string) error {
	return writeFile(path, func(w io.Writer) error {
		bw := bufio.NewWriter(w)
		if _, err := fmt.Fprintln(bw, strings.Join(header, "\t")); err != nil {
			return err
		}
		for _, r := range rows {
			if _, err := fmt.Fprintln(bw, strings.Join(r, "\t")); err != nil {
				return err
			}
		}
		return bw.Flush()
	})
}

// ReadPairs reads a two-column TSV (no header) such as a replacement map.
func ReadPairs(path string) ([][2]string, error) {
	rc, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var out [][2]string
	sc := bufio.NewScanner(rc)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		cols := strings.SplitN(line, "\t", 2)
		if len(cols) != 2 {
			return nil, fmt.Errorf("%s line %d: expected 2 tab-separated columns", path, lineNo)
		}
		out = append(out, [2]string{cols[0], cols[1]})
	}
	return out, sc.Err()
}

// ReadIDs reads the first column of a TSV or plain id list. Blank lines,
// "#" comments and a leading taxonomy-style header are skipped.
func ReadIDs(path string) ([]string, error) {
	rc, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var out []string
	sc := bufio.NewScanner(rc)
	first := true
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") && !isTaxonomyHeader(line) {
			continue
		}
		if first {
			first = false
			if isTaxonomyHeader(line) {
				continue
			}
		}
		out = append(out, strings.TrimSpace(strings.SplitN(line, "\t", 2)[0]))
	}
	return out, sc.Err()
}

func isTaxonomyHeader(line string) bool {
	first := strings.ToLower(strings.TrimSpace(strings.SplitN(line, "\t", 2)[0]))
	switch first {
	case "feature id", "#feature id", "#otu id", "id", "featureid":
		return true
	}
	return false
}
