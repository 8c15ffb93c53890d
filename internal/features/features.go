package features

import (
	"sort"
	"sync"

	"salon-loyalty-api/internal/config"
)

// Flag names.
const (
	// CodeCache serves the current check-in code from the cache.
	CodeCache = "code_cache"
	// EventHooks fans domain events out to subscribers.
	EventHooks = "event_hooks"
	// QRImages attaches a PNG of the long-form code to the codes endpoint.
	QRImages = "qr_images"
)

// Flag is a runtime toggle.
type Flag struct {
	Name        string `json:"name"`
	Enabled     bool   `json:"enabled"`
	Description string `json:"description"`
}

// Manager holds feature flags.
type Manager struct {
	mu    sync.RWMutex
	flags map[string]*Flag
}

// NewManager creates an empty manager.
func NewManager() *Manager {
	return &Manager{flags: make(map[string]*Flag)}
}

// FromConfig registers the known flags with their configured state.
func FromConfig(cfg config.FeaturesConfig) *Manager {
	m := NewManager()
	m.Register(CodeCache, cfg.CodeCache, "Cache the current check-in code until it expires")
	m.Register(EventHooks, cfg.EventHooks, "Publish loyalty events to subscribers")
	m.Register(QRImages, cfg.QRImages, "Render a QR image for the current check-in code")
	return m
}

// Register adds or replaces a flag.
func (m *Manager) Register(name string, enabled bool, description string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.flags[name] = &Flag{Name: name, Enabled: enabled, Description: description}
}

// IsEnabled reports whether name is registered and on.
func (m *Manager) IsEnabled(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	flag, ok := m.flags[name]
	return ok && flag.Enabled
}

// Enabled returns a func bound to one flag.
func (m *Manager) Enabled(name string) func() bool {
	return func() bool { return m.IsEnabled(name) }
}

// Set flips a registered flag. It reports false for unknown names.
func (m *Manager) Set(name string, enabled bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	flag, ok := m.flags[name]
	if ok {
		flag.Enabled = enabled
	}
	return ok
}

// All returns copies of every flag sorted by name.
func (m *Manager) All() []Flag {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Flag, 0, len(m.flags))
	for _, f := range m.flags {
		out = append(out, *f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
