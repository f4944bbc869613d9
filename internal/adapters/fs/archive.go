package fs

import (
	"archive/tar"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// ExtractTarGz extracts the regular files of a .tar.gz archive whose member
// names satisfy keep. Member paths are flattened to their base names.
// It returns the extracted file paths in archive order.
func ExtractTarGz(src, dir string, keep func(name string) bool) ([]string, error) {
	in, err := os.Open(src)
	if err != nil {
		return nil, err
	}
	defer in.Close()

	zr, err := gzip.NewReader(in)
	if err != nil {
		return nil, fmt.Errorf("gunzip %s: %w", src, err)
	}
	defer zr.Close()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	var out []string
	tr := tar.NewReader(zr)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", src, err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		if keep != nil && !keep(hdr.Name) {
			continue
		}
		base := path.Base(strings.ReplaceAll(hdr.Name, `\`, "/"))
		if base == "." || base == ".." || base == "/" || strings.HasPrefix(base, "._") {
			continue
		}
		dst := filepath.Join(dir, base)
		if err := writeFile(dst, func(w io.Writer) error {
			_, err := io.Copy(w, tr)
			return err
		}); err != nil {
			return nil, err
		}
		out = append(out, dst)
	}
	return out, nil
}
