package inboxwatcher

import (
	"context"
	"sync"

	"github.com/bft-labs/rescript/internal/domain"
)

type memRepo struct {
	mu   sync.Mutex
	done []domain.Run
}

func (m *memRepo) StartRun(ctx context.Context, run domain.Run) error { return nil }

func (m *memRepo) FinishRun(ctx context.Context, run domain.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.done = append(m.done, run)
	return nil
}

func (m *memRepo) RecordDownload(ctx context.Context, d domain.Download) error { return nil }

func (m *memRepo) ListRuns(ctx context.Context, limit int) ([]domain.Run, error) { return nil, nil }

func (m *memRepo) ListDownloads(ctx context.Context, runID string) ([]domain.Download, error) {
	return nil, nil
}

func (m *memRepo) finished() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.done)
}
