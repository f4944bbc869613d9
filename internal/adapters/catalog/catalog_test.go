package catalog

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/bft-labs/rescript/internal/domain"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.db")
	for i := 0; i < 2; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() #%d error = %v", i+1, err)
		}
		s.Close()
	}
}

func TestRunLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	started := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	run := domain.Run{
		ID:        "run-1",
		Action:    "get-unite-data",
		Params:    map[string]any{"version": "10.0"},
		Status:    domain.RunRunning,
		StartedAt: started,
	}
	if err := s.StartRun(ctx, run); err != nil {
		t.Fatalf("StartRun() error = %v", err)
	}

	if err := s.RecordDownload(ctx, domain.Download{
		RunID: "run-1", URL: "https://example.org/a.tgz", Bytes: 10, SHA256: "abc", Attempts: 2, FetchedAt: started,
	}); err != nil {
		t.Fatalf("RecordDownload() error = %v", err)
	}

	run.Status = domain.RunSucceeded
	run.Outputs = map[string]string{"sequences": "/tmp/seqs.fasta"}
	run.Records = map[string]int{"sequences": 5}
	run.FinishedAt = started.Add(time.Minute)
	if err := s.FinishRun(ctx, run); err != nil {
		t.Fatalf("FinishRun() error = %v", err)
	}

	runs, err := s.ListRuns(ctx, 10)
	if err != nil {
		t.Fatalf("ListRuns() error = %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("ListRuns() returned %d runs, want 1", len(runs))
	}
	got := runs[0]
	if got.Status != domain.RunSucceeded {
		t.Errorf("Status = %v, want succeeded", got.Status)
	}
	if got.Params["version"] != "10.0" {
		t.Errorf("Params = %v", got.Params)
	}
	if got.Records["sequences"] != 5 {
		t.Errorf("Records = %v", got.Records)
	}
	if !got.StartedAt.Equal(started) {
		t.Errorf("StartedAt = %v, want %v", got.StartedAt, started)
	}

	dls, err := s.ListDownloads(ctx, "run-1")
	if err != nil {
		t.Fatalf("ListDownloads() error = %v", err)
	}
	if len(dls) != 1 || dls[0].Attempts != 2 || dls[0].SHA256 != "abc" {
		t.Errorf("ListDownloads() = %+v", dls)
	}
}

func TestFinishUnknownRun(t *testing.T) {
	s := openTestStore(t)
	err := s.FinishRun(context.Background(), domain.Run{ID: "missing", Status: domain.RunFailed})
	if err == nil {
		t.Fatal("expected error for unknown run")
	}
}

func TestListRunsNewestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		if err := s.StartRun(ctx, domain.Run{ID: id, Action: "cull-seqs", Status: domain.RunRunning, StartedAt: base.Add(time.Duration(i) * time.Hour)}); err != nil {
			t.Fatal(err)
		}
	}
	runs, err := s.ListRuns(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Fatalf("ListRuns() returned %d runs, want 2", len(runs))
	}
	if runs[0].ID != "c" || runs[1].ID != "b" {
		t.Errorf("ListRuns() order = %v", []string{runs[0].ID, runs[1].ID})
	}
}
