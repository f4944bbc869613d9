package sources

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	rhttp "github.com/bft-labs/rescript/internal/adapters/http"
	logAdapter "github.com/bft-labs/rescript/internal/adapters/log"
)

func testFetcher() *rhttp.Downloader {
	return rhttp.NewDownloader(nil, logAdapter.NewNoopLogger(), rhttp.Config{
		Retries:        2,
		BackoffInitial: time.Millisecond,
		BackoffMax:     time.Millisecond,
	})
}

func gz(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write([]byte(s)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func tarGz(t *testing.T, files [][2]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(zw)
	for _, f := range files {
		hdr := &tar.Header{Name: f[0], Mode: 0o644, Size: int64(len(f[1])), Typeflag: tar.TypeReg}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write([]byte(f[1])); err != nil {
			t.Fatal(err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// fileServer serves fixed bodies by request path and records every request.
type fileServer struct {
	*httptest.Server
	files map[string][]byte

	mu       sync.Mutex
	requests []string
}

func (f *fileServer) Requests() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requests...)
}

func newFileServer(t *testing.T, files map[string][]byte) *fileServer {
	t.Helper()
	fsrv := &fileServer{files: files}
	fsrv.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fsrv.mu.Lock()
		fsrv.requests = append(fsrv.requests, r.URL.RequestURI())
		fsrv.mu.Unlock()
		body, ok := fsrv.files[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Write(body)
	}))
	t.Cleanup(fsrv.Close)
	return fsrv
}

func writeBytes(t *testing.T, path string, b []byte) {
	t.Helper()
	if err := os.WriteFile(path, b, 0o644); err != nil {
		t.Fatal(err)
	}
}
