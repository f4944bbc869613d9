// Package app runs rescript actions and records them in the run catalog.
package app

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/bft-labs/rescript/internal/domain"
	"github.com/bft-labs/rescript/internal/ports"
)

// Result is what an action reports back to the runner.
type Result struct {
	// Outputs maps an output name ("sequences", "taxonomy") to its path.
	Outputs map[string]string

	// Records maps an output name to the number of records written.
	Records map[string]int
}

// ActionFunc is the body of an action.
type ActionFunc func(ctx context.Context, s *Session) (Result, error)

// Runner executes actions and records each execution.
type Runner struct {
	repo   ports.RunRepository
	logger ports.Logger
	now    func() time.Time
	newID  func() string
}

// NewRunner creates a Runner. repo may be nil to disable the catalog.
func NewRunner(repo ports.RunRepository, logger ports.Logger) *Runner {
	return &Runner{
		repo:   repo,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}
}

// Run executes fn as action with the given parameters. Catalog failures are
// logged and never fail the action itself.
func (r *Runner) Run(ctx context.Context, action string, params map[string]any, fn ActionFunc) (domain.Run, error) {
	run := domain.Run{
		ID:        r.newID(),
		Action:    action,
		Params:    params,
		Status:    domain.RunRunning,
		StartedAt: r.now(),
	}
	if r.repo != nil {
		if err := r.repo.StartRun(ctx, run); err != nil {
			r.logger.Warn("catalog: failed to record run start", ports.String("run_id", run.ID), ports.Err(err))
		}
	}

	r.logger.Info("action started", ports.String("action", action), ports.String("run_id", run.ID))
	s := &Session{runID: run.ID, repo: r.repo, logger: r.logger, ctx: ctx}

	res, err := fn(ctx, s)

	run.FinishedAt = r.now()
	run.Outputs = res.Outputs
	run.Records = res.Records
	if err != nil {
		run.Status = domain.RunFailed
		run.Error = err.Error()
	} else {
		run.Status = domain.RunSucceeded
	}

	if r.repo != nil {
		// The action context may already be canceled; the final status is
		// still written.
		if ferr := r.repo.FinishRun(context.WithoutCancel(ctx), run); ferr != nil {
			r.logger.Warn("catalog: failed to record run result", ports.String("run_id", run.ID), ports.Err(ferr))
		}
	}

	if err != nil {
		r.logger.Error("action failed",
			ports.String("action", action),
			ports.String("run_id", run.ID),
			ports.Err(err),
		)
		return run, err
	}

	fields := []ports.Field{
		ports.String("action", action),
		ports.String("run_id", run.ID),
		ports.Duration("elapsed", run.FinishedAt.Sub(run.StartedAt)),
	}
	for name, n := range res.Records {
		fields = append(fields, ports.Int(name, n))
	}
	r.logger.Info("action finished", fields...)
	return run, nil
}

// Session is the per-run handle passed to an action.
type Session struct {
	runID  string
	repo   ports.RunRepository
	logger ports.Logger
	ctx    context.Context
}

// ID returns the run id.
func (s *Session) ID() string { return s.runID }

// Logger returns the runner's logger.
func (s *Session) Logger() ports.Logger { return s.logger }

// OnDownload records a completed download against the run.
func (s *Session) OnDownload(d domain.Download) {
	if s.repo == nil {
		return
	}
	d.RunID = s.runID
	if err := s.repo.RecordDownload(context.WithoutCancel(s.ctx), d); err != nil {
		s.logger.Warn("catalog: failed to record download", ports.String("url", d.URL), ports.Err(err))
	}
}

var _ ports.DownloadRecorder = (*Session)(nil)
