package cachecleanup

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	logAdapter "github.com/bft-labs/rescript/internal/adapters/log"
	"github.com/bft-labs/rescript/internal/ports"
)

// makeRun writes a run directory holding size bytes, last modified at mod.
func makeRun(t *testing.T, dir, action, id string, size int, mod time.Time) string {
	t.Helper()
	runDir := filepath.Join(dir, action, id)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		t.Fatal(err)
	}
	f := filepath.Join(runDir, "data.gz")
	if err := os.WriteFile(f, make([]byte, size), 0o644); err != nil {
		t.Fatal(err)
	}
	for _, p := range []string{f, runDir} {
		if err := os.Chtimes(p, mod, mod); err != nil {
			t.Fatal(err)
		}
	}
	return runDir
}

func initialized(t *testing.T, cfg Config) *Plugin {
	t.Helper()
	p := New(cfg)
	p.logger = logAdapter.NewNoopLogger()
	return p
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func TestPruneRemovesOldestFirst(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	oldest := makeRun(t, dir, "get-silva-data", "a", 400, now.Add(-72*time.Hour))
	middle := makeRun(t, dir, "get-unite-data", "b", 400, now.Add(-48*time.Hour))
	newest := makeRun(t, dir, "get-silva-data", "c", 400, now.Add(-24*time.Hour))

	p := initialized(t, Config{Dir: dir, HighWatermark: 1000, LowWatermark: 500, MinAge: time.Hour})
	freed, err := p.prune(context.Background())
	if err != nil {
		t.Fatalf("prune() error = %v", err)
	}
	if freed != 800 {
		t.Errorf("freed = %d, want 800", freed)
	}
	if exists(oldest) || exists(middle) {
		t.Error("oldest runs should be removed")
	}
	if !exists(newest) {
		t.Error("newest run should be kept")
	}
}

func TestPruneBelowWatermark(t *testing.T) {
	dir := t.TempDir()
	run := makeRun(t, dir, "get-gtdb-data", "a", 100, time.Now().Add(-72*time.Hour))

	p := initialized(t, Config{Dir: dir, HighWatermark: 1000, LowWatermark: 500})
	freed, err := p.prune(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if freed != 0 || !exists(run) {
		t.Errorf("freed = %d, run kept = %v", freed, exists(run))
	}
}

func TestPruneProtectsRecentRuns(t *testing.T) {
	dir := t.TempDir()
	recent := makeRun(t, dir, "get-ncbi-data", "live", 2000, time.Now())

	p := initialized(t, Config{Dir: dir, HighWatermark: 1000, LowWatermark: 500, MinAge: time.Hour})
	if _, err := p.prune(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !exists(recent) {
		t.Error("run modified within MinAge must not be removed")
	}
}

func TestPruneMissingDir(t *testing.T) {
	cfg := Config{Dir: filepath.Join(t.TempDir(), "nope")}
	if _, err := Prune(context.Background(), cfg, logAdapter.NewNoopLogger()); err != nil {
		t.Errorf("Prune() error = %v, want nil for missing cache", err)
	}
	if _, err := Prune(context.Background(), Config{}, logAdapter.NewNoopLogger()); err == nil {
		t.Error("Prune() without a directory should fail")
	}
}

func TestNewDefaults(t *testing.T) {
	p := New(Config{HighWatermark: 100, LowWatermark: 500})
	if p.cfg.LowWatermark != 75 {
		t.Errorf("LowWatermark = %d, want 75", p.cfg.LowWatermark)
	}
	if p.cfg.CheckInterval != time.Hour {
		t.Errorf("CheckInterval = %v", p.cfg.CheckInterval)
	}
}

func TestPluginLifecycle(t *testing.T) {
	dir := t.TempDir()
	old := makeRun(t, dir, "get-silva-data", "a", 2000, time.Now().Add(-72*time.Hour))

	p := New(Config{Dir: dir, HighWatermark: 1000, LowWatermark: 500, CheckInterval: time.Hour})
	if err := p.Initialize(context.Background(), ports.PluginConfig{Logger: logAdapter.NewNoopLogger()}); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(3 * time.Second)
	for exists(old) && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatal(err)
	}
	if exists(old) {
		t.Error("initial cleanup pass did not run")
	}
}
