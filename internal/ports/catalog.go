package ports

import (
	"context"

	"github.com/bft-labs/rescript/internal/domain"
)

// RunRepository persists action runs and the files they downloaded.
type RunRepository interface {
	// StartRun records a new run in the running state.
	StartRun(ctx context.Context, run domain.Run) error

	// FinishRun stores the final status, outputs and record counts of a run.
	FinishRun(ctx context.Context, run domain.Run) error

	// RecordDownload stores one retrieved file for a run.
	RecordDownload(ctx context.Context, d domain.Download) error

	// ListRuns returns the most recent runs, newest first.
	ListRuns(ctx context.Context, limit int) ([]domain.Run, error)

	// ListDownloads returns the downloads of a run, or of all runs when
	// runID is empty.
	ListDownloads(ctx context.Context, runID string) ([]domain.Download, error)
}
