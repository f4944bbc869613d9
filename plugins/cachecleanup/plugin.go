// Package cachecleanup prunes kept download directories from the rescript
// cache. When the cache grows past a high watermark, the oldest run
// directories are removed until it is back under the low watermark.
package cachecleanup

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/bft-labs/rescript/internal/ports"
)

// Config holds configuration options for the cache cleanup plugin.
type Config struct {
	// Dir is the cache directory. Run directories live at Dir/<action>/<run id>.
	Dir string

	// CheckInterval is how often the plugin checks the cache size.
	// Default: 1 hour
	CheckInterval time.Duration

	// HighWatermark is the size in bytes above which cleanup begins.
	// Default: 20 GiB
	HighWatermark int64

	// LowWatermark is the target size in bytes after cleanup.
	// Default: 15 GiB
	LowWatermark int64

	// MinAge protects run directories modified more recently than this,
	// so that downloads in progress are never removed.
	// Default: 1 hour
	MinAge time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		CheckInterval: time.Hour,
		HighWatermark: 20 << 30,
		LowWatermark:  15 << 30,
		MinAge:        time.Hour,
	}
}

// Plugin implements cache cleanup.
type Plugin struct {
	cfg    Config
	logger ports.Logger
	now    func() time.Time
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new cache cleanup plugin with the given configuration.
func New(cfg Config) *Plugin {
	def := DefaultConfig()
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = def.CheckInterval
	}
	if cfg.HighWatermark <= 0 {
		cfg.HighWatermark = def.HighWatermark
	}
	if cfg.LowWatermark <= 0 || cfg.LowWatermark > cfg.HighWatermark {
		cfg.LowWatermark = cfg.HighWatermark * 3 / 4
	}
	if cfg.MinAge < 0 {
		cfg.MinAge = 0
	}
	return &Plugin{cfg: cfg, now: time.Now}
}

// Name returns the plugin identifier.
func (p *Plugin) Name() string {
	return "cachecleanup"
}

// Initialize starts the periodic cleanup loop.
func (p *Plugin) Initialize(ctx context.Context, cfg ports.PluginConfig) error {
	p.logger = cfg.Logger
	if p.cfg.Dir == "" {
		p.logger.Warn("cache cleanup disabled: no cache directory configured")
		return nil
	}

	cleanupCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.logger.Info("cache cleanup plugin initialized",
		ports.String("dir", p.cfg.Dir),
		ports.Int64("high_watermark", p.cfg.HighWatermark),
	)

	p.wg.Add(1)
	go p.cleanupLoop(cleanupCtx)
	return nil
}

// Shutdown stops the cleanup loop.
func (p *Plugin) Shutdown(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	return nil
}

func (p *Plugin) cleanupLoop(ctx context.Context) {
	defer p.wg.Done()

	p.cleanupOnce(ctx)

	ticker := time.NewTicker(p.cfg.CheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.cleanupOnce(ctx)
		}
	}
}

func (p *Plugin) cleanupOnce(ctx context.Context) {
	if _, err := p.prune(ctx); err != nil {
		p.logger.Error("cache cleanup failed", ports.Err(err))
	}
}

// Prune runs a single cleanup pass over cfg.Dir without starting the loop and
// returns the number of bytes freed.
func Prune(ctx context.Context, cfg Config, logger ports.Logger) (int64, error) {
	if cfg.Dir == "" {
		return 0, fmt.Errorf("cache cleanup: directory is required")
	}
	p := New(cfg)
	p.logger = logger
	return p.prune(ctx)
}

func (p *Plugin) prune(ctx context.Context) (int64, error) {
	curSize, err := dirSize(p.cfg.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("size of %s: %w", p.cfg.Dir, err)
	}
	if curSize <= p.cfg.HighWatermark {
		p.logger.Debug("cache below high watermark", ports.Int64("bytes", curSize))
		return 0, nil
	}

	runs, err := runDirectories(p.cfg.Dir, p.now().Add(-p.cfg.MinAge))
	if err != nil {
		return 0, err
	}

	var freed int64
	for _, r := range runs {
		if err := ctx.Err(); err != nil {
			return freed, err
		}
		if curSize <= p.cfg.LowWatermark {
			break
		}
		if err := os.RemoveAll(r.path); err != nil {
			p.logger.Warn("cache cleanup: remove failed", ports.String("dir", r.path), ports.Err(err))
			continue
		}
		curSize -= r.size
		freed += r.size
		p.logger.Debug("removed run directory", ports.String("dir", r.path), ports.Int64("bytes", r.size))
	}

	if freed > 0 {
		p.logger.Info("cache cleanup completed", ports.Int64("freed", freed), ports.Int64("remaining", curSize))
	}
	return freed, nil
}

// runDir is one Dir/<action>/<run id> directory.
type runDir struct {
	path    string
	modTime time.Time
	size    int64
}

// runDirectories lists run directories last modified before cutoff, oldest
// first.
func runDirectories(dir string, cutoff time.Time) ([]runDir, error) {
	actions, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []runDir
	for _, a := range actions {
		if !a.IsDir() {
			continue
		}
		actionDir := filepath.Join(dir, a.Name())
		ents, err := os.ReadDir(actionDir)
		if err != nil {
			return nil, err
		}
		for _, e := range ents {
			if !e.IsDir() {
				continue
			}
			path := filepath.Join(actionDir, e.Name())
			mod, err := latestModTime(path)
			if err != nil {
				return nil, err
			}
			if !mod.Before(cutoff) {
				continue
			}
			size, err := dirSize(path)
			if err != nil {
				return nil, err
			}
			out = append(out, runDir{path: path, modTime: mod, size: size})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].modTime.Equal(out[j].modTime) {
			return out[i].path < out[j].path
		}
		return out[i].modTime.Before(out[j].modTime)
	})
	return out, nil
}

func dirSize(dir string) (int64, error) {
	var total int64
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	return total, err
}

// latestModTime is the newest modification time of dir or anything in it.
func latestModTime(dir string) (time.Time, error) {
	var latest time.Time
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.ModTime().After(latest) {
			latest = info.ModTime()
		}
		return nil
	})
	return latest, err
}
