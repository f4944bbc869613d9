// Package inboxwatcher curates FASTA files as they land in a directory.
// Each new or rewritten *.fasta, *.fa or *.fna file is reverse-transcribed,
// degapped and culled, then written to the output directory as
// <name>.curated.fasta.
package inboxwatcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bft-labs/rescript/internal/adapters/fs"
	"github.com/bft-labs/rescript/internal/app"
	"github.com/bft-labs/rescript/internal/curate"
	"github.com/bft-labs/rescript/internal/ports"
)

// CuratedSuffix is appended to the base name of every output file.
const CuratedSuffix = ".curated.fasta"

// Config holds configuration options for the inbox watcher plugin.
type Config struct {
	// Dir is the watched directory.
	Dir string

	// OutDir receives curated files. Default: Dir.
	OutDir string

	// DebounceDelay is the quiet period after the last write to a file
	// before it is processed.
	// Default: 500 milliseconds
	DebounceDelay time.Duration

	// MinLength drops degapped sequences shorter than this.
	// Default: 1
	MinLength int

	Cull curate.CullParams

	// Runner records each processed file as a run. Optional.
	Runner *app.Runner
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DebounceDelay: 500 * time.Millisecond,
		MinLength:     1,
		Cull:          curate.DefaultCullParams(),
	}
}

// Plugin implements inbox watching.
type Plugin struct {
	mu sync.Mutex

	cfg      Config
	logger   ports.Logger
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	debounce map[string]*time.Timer
	readDir  func(string) ([]os.DirEntry, error)
}

// New creates a new inbox watcher plugin with the given configuration.
func New(cfg Config) *Plugin {
	if cfg.OutDir == "" {
		cfg.OutDir = cfg.Dir
	}
	if cfg.DebounceDelay <= 0 {
		cfg.DebounceDelay = 500 * time.Millisecond
	}
	if cfg.MinLength <= 0 {
		cfg.MinLength = 1
	}
	if cfg.Cull == (curate.CullParams{}) {
		cfg.Cull = curate.DefaultCullParams()
	}
	return &Plugin{cfg: cfg, debounce: make(map[string]*time.Timer), readDir: os.ReadDir}
}

// Name returns the plugin identifier.
func (p *Plugin) Name() string {
	return "inboxwatcher"
}

// Initialize validates the directories, curates files already present and
// starts watching for new ones.
func (p *Plugin) Initialize(ctx context.Context, cfg ports.PluginConfig) error {
	p.logger = cfg.Logger
	if p.cfg.Dir == "" {
		return fmt.Errorf("inbox watcher: directory is required")
	}
	if err := p.cfg.Cull.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(p.cfg.OutDir, 0o755); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(p.cfg.Dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", p.cfg.Dir, err)
	}

	// Scan after Add so files written in between are seen by at least one.
	entries, err := p.readDir(p.cfg.Dir)
	if err != nil {
		watcher.Close()
		return fmt.Errorf("scan %s: %w", p.cfg.Dir, err)
	}

	watchCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.logger.Info("inbox watcher started", ports.String("dir", p.cfg.Dir), ports.String("out", p.cfg.OutDir))

	p.wg.Add(1)
	go p.watchLoop(watchCtx, watcher)

	for _, e := range entries {
		if !e.IsDir() && p.accepts(e.Name()) {
			p.schedule(watchCtx, filepath.Join(p.cfg.Dir, e.Name()))
		}
	}
	return nil
}

// Shutdown stops the watcher and waits for in-flight files.
func (p *Plugin) Shutdown(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}
	p.mu.Lock()
	for path, t := range p.debounce {
		if t.Stop() {
			p.wg.Done()
		}
		delete(p.debounce, path)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Plugin) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer p.wg.Done()
	defer watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if !p.accepts(filepath.Base(event.Name)) {
				continue
			}
			p.schedule(ctx, event.Name)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			p.logger.Error("inbox watcher: watcher error", ports.Err(err))
		}
	}
}

// accepts reports whether name is an input FASTA file and not one of our
// own outputs.
func (p *Plugin) accepts(name string) bool {
	if strings.HasPrefix(name, ".") || strings.HasSuffix(name, CuratedSuffix) || strings.HasSuffix(name, ".tmp") {
		return false
	}
	for _, ext := range []string{".fasta", ".fa", ".fna", ".fasta.gz", ".fa.gz", ".fna.gz"} {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

// schedule (re)starts the debounce timer of path.
func (p *Plugin) schedule(ctx context.Context, path string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if ctx.Err() != nil {
		return
	}
	if t, ok := p.debounce[path]; ok && t.Stop() {
		p.wg.Done()
	}
	p.wg.Add(1)
	var t *time.Timer
	t = time.AfterFunc(p.cfg.DebounceDelay, func() {
		defer p.wg.Done()
		p.mu.Lock()
		if p.debounce[path] == t {
			delete(p.debounce, path)
		}
		p.mu.Unlock()
		if ctx.Err() != nil {
			return
		}
		if err := p.process(ctx, path); err != nil {
			p.logger.Error("inbox watcher: failed to curate file", ports.String("file", path), ports.Err(err))
		}
	})
	p.debounce[path] = t
}

// OutputPath returns where the curated version of path is written.
func (p *Plugin) OutputPath(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, ".gz")
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(p.cfg.OutDir, base+CuratedSuffix)
}

func (p *Plugin) process(ctx context.Context, path string) error {
	curateFile := func(ctx context.Context, _ *app.Session) (app.Result, error) {
		seqs, err := fs.ReadFASTAFile(path)
		if err != nil {
			return app.Result{}, err
		}
		seqs = curate.ReverseTranscribe(seqs)
		seqs = curate.Degap(seqs, p.cfg.MinLength)
		kept, err := curate.Cull(seqs, p.cfg.Cull)
		if err != nil {
			return app.Result{}, err
		}
		out := p.OutputPath(path)
		if err := fs.WriteFASTAFile(out, kept); err != nil {
			return app.Result{}, err
		}
		return app.Result{
			Outputs: map[string]string{"sequences": out},
			Records: map[string]int{"sequences": len(kept)},
		}, nil
	}

	if p.cfg.Runner == nil {
		res, err := curateFile(ctx, nil)
		if err == nil {
			p.logger.Info("curated file", ports.String("file", path), ports.Int("sequences", res.Records["sequences"]))
		}
		return err
	}
	_, err := p.cfg.Runner.Run(ctx, "watch", map[string]any{
		"input":              path,
		"min_length":         p.cfg.MinLength,
		"num_degenerates":    p.cfg.Cull.NumDegenerates,
		"homopolymer_length": p.cfg.Cull.HomopolymerLength,
	}, curateFile)
	return err
}

// Ensure Plugin implements ports.Plugin.
var _ ports.Plugin = (*Plugin)(nil)
