// Package sandbox is the Docker Manager: per-user container lifecycle,
// naming, volume layout, and resource/network policy by permission
// tier. It never persists container state of its own — every query
// goes straight to the engine, per the spec this package implements.
package sandbox

import (
	"cc-bridge/internal/config"
	"cc-bridge/internal/dockerengine"
)

// Manager owns no container registry. It is safe for concurrent use by
// multiple goroutines handling different users' messages; the engine
// client itself (dockerengine.Engine) is expected to be safe for
// concurrent calls, which the real Docker SDK client is.
type Manager struct {
	engine dockerengine.Engine
	cfg    *config.Config
}

// New builds a Manager over the given engine and configuration.
func New(engine dockerengine.Engine, cfg *config.Config) *Manager {
	return &Manager{engine: engine, cfg: cfg}
}
