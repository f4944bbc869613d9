package inboxwatcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bft-labs/rescript/internal/adapters/fs"
	logAdapter "github.com/bft-labs/rescript/internal/adapters/log"
	"github.com/bft-labs/rescript/internal/app"
	"github.com/bft-labs/rescript/internal/ports"
)

func waitForFile(t *testing.T, path string, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(path); err == nil {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", path)
}

func startPlugin(t *testing.T, cfg Config) *Plugin {
	t.Helper()
	p := New(cfg)
	if err := p.Initialize(context.Background(), ports.PluginConfig{Logger: logAdapter.NewNoopLogger()}); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := p.Shutdown(ctx); err != nil {
			t.Errorf("Shutdown() error = %v", err)
		}
	})
	return p
}

func TestPlugin_CuratesNewFile(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()
	p := startPlugin(t, Config{Dir: in, OutDir: out, DebounceDelay: 20 * time.Millisecond})

	src := filepath.Join(in, "batch1.fasta")
	body := ">keep\nAC-GU.ACGU\n>gaps\n----\n>degen\nNNNNNACGT\n"
	if err := os.WriteFile(src, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	dst := p.OutputPath(src)
	if dst != filepath.Join(out, "batch1.curated.fasta") {
		t.Fatalf("OutputPath() = %s", dst)
	}
	waitForFile(t, dst, 3*time.Second)

	seqs, err := fs.ReadFASTAFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if len(seqs) != 1 || seqs[0].ID != "keep" || seqs[0].Seq != "ACGTACGT" {
		t.Errorf("curated = %+v", seqs)
	}
}

func TestPlugin_ProcessesExistingFilesAndRecordsRuns(t *testing.T) {
	in := t.TempDir()
	if err := os.WriteFile(filepath.Join(in, "old.fa"), []byte(">a\nACGT\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(in, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	repo := &memRepo{}
	runner := app.NewRunner(repo, logAdapter.NewNoopLogger())
	startPlugin(t, Config{Dir: in, DebounceDelay: 10 * time.Millisecond, Runner: runner})

	waitForFile(t, filepath.Join(in, "old.curated.fasta"), 3*time.Second)

	deadline := time.Now().Add(2 * time.Second)
	for repo.finished() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if n := repo.finished(); n != 1 {
		t.Errorf("finished runs = %d, want 1", n)
	}
	if _, err := os.Stat(filepath.Join(in, "notes.curated.fasta")); err == nil {
		t.Error("non-FASTA file was curated")
	}
}

func TestPlugin_Accepts(t *testing.T) {
	p := New(Config{Dir: "x"})
	tests := []struct {
		name string
		want bool
	}{
		{"a.fasta", true},
		{"a.fa", true},
		{"a.fna.gz", true},
		{"a.curated.fasta", false},
		{"a.curated.fasta.tmp", false},
		{".hidden.fasta", false},
		{"a.txt", false},
	}
	for _, tt := range tests {
		if got := p.accepts(tt.name); got != tt.want {
			t.Errorf("accepts(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestPlugin_InitializeErrors(t *testing.T) {
	cfg := ports.PluginConfig{Logger: logAdapter.NewNoopLogger()}
	if err := New(Config{}).Initialize(context.Background(), cfg); err == nil {
		t.Error("expected error without directory")
	}
	missing := filepath.Join(t.TempDir(), "missing")
	err := New(Config{Dir: missing, OutDir: t.TempDir()}).Initialize(context.Background(), cfg)
	if err == nil || !strings.Contains(err.Error(), "missing") {
		t.Errorf("Initialize(missing dir) error = %v", err)
	}
}

func TestPlugin_InitializeScanFailureStartsNothing(t *testing.T) {
	cfg := ports.PluginConfig{Logger: logAdapter.NewNoopLogger()}
	p := New(Config{Dir: t.TempDir(), OutDir: t.TempDir()})
	denied := errors.New("permission denied")
	p.readDir = func(string) ([]os.DirEntry, error) { return nil, denied }

	if err := p.Initialize(context.Background(), cfg); !errors.Is(err, denied) {
		t.Fatalf("Initialize() error = %v, want scan error", err)
	}
	if p.cancel != nil {
		t.Error("cancel set after failed Initialize")
	}
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watch loop still running after failed Initialize")
	}
}
