package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bft-labs/rescript/internal/ports"
)

// ShutdownTimeout is the default maximum time to wait for plugins to stop.
const ShutdownTimeout = 30 * time.Second

var (
	ErrAlreadyRunning  = errors.New("plugins already running")
	ErrNotRunning      = errors.New("plugins not running")
	ErrShutdownTimeout = errors.New("plugin shutdown timeout")
)

// PluginHost starts plugins in registration order and stops them in reverse.
type PluginHost struct {
	mu      sync.Mutex
	plugins []ports.Plugin
	started []ports.Plugin
	running bool
	logger  ports.Logger
}

// NewPluginHost creates a host for plugins.
func NewPluginHost(logger ports.Logger, plugins ...ports.Plugin) *PluginHost {
	return &PluginHost{plugins: plugins, logger: logger}
}

// Start initializes every plugin. If one fails, the plugins already started
// are shut down and the error is returned.
func (h *PluginHost) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running {
		return ErrAlreadyRunning
	}

	cfg := ports.PluginConfig{Logger: h.logger}
	for _, p := range h.plugins {
		if err := p.Initialize(ctx, cfg); err != nil {
			h.logger.Error("plugin initialization failed", ports.String("plugin", p.Name()), ports.Err(err))
			h.shutdown(ShutdownTimeout)
			return err
		}
		h.logger.Info("plugin initialized", ports.String("plugin", p.Name()))
		h.started = append(h.started, p)
	}
	h.running = true
	return nil
}

// Stop shuts down started plugins in reverse order, waiting up to timeout in
// total. Returns ErrShutdownTimeout if the deadline passed.
func (h *PluginHost) Stop(timeout time.Duration) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.running {
		return ErrNotRunning
	}
	h.running = false
	return h.shutdown(timeout)
}

func (h *PluginHost) shutdown(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var timedOut bool
	for i := len(h.started) - 1; i >= 0; i-- {
		p := h.started[i]
		if err := p.Shutdown(ctx); err != nil {
			h.logger.Error("plugin shutdown failed", ports.String("plugin", p.Name()), ports.Err(err))
			if errors.Is(err, context.DeadlineExceeded) {
				timedOut = true
			}
			continue
		}
		h.logger.Info("plugin shutdown complete", ports.String("plugin", p.Name()))
	}
	h.started = nil
	if timedOut {
		return ErrShutdownTimeout
	}
	return nil
}
