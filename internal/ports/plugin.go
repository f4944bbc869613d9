package ports

import "context"

// Plugin is a long-running extension started by a CLI command.
// Plugins are initialized in registration order and shut down in reverse.
type Plugin interface {
	// Name returns a short identifier used in logs.
	Name() string

	// Initialize starts the plugin. It must not block.
	Initialize(ctx context.Context, cfg PluginConfig) error

	// Shutdown stops background work and waits for it to finish.
	Shutdown(ctx context.Context) error
}

// PluginConfig carries shared dependencies into a plugin.
type PluginConfig struct {
	Logger Logger
}
