package providers

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Registry holds the configured providers by name. It is filled at startup and
// only read afterwards; the lock keeps late registrations safe anyway.
type Registry struct {
	mu       sync.RWMutex
	byName   map[string]*Config
	fallback string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*Config)}
}

// Register adds cfg. The first registered provider becomes the default.
func (r *Registry) Register(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("providers: nil config")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, dup := r.byName[cfg.Name()]; dup {
		return fmt.Errorf("providers: %q already registered", cfg.Name())
	}
	r.byName[cfg.Name()] = cfg
	if r.fallback == "" {
		r.fallback = cfg.Name()
	}
	return nil
}

// SetDefault selects the provider used when a login names none.
func (r *Registry) SetDefault(name string) error {
	name = strings.ToLower(strings.TrimSpace(name))
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byName[name]; !ok {
		return fmt.Errorf("providers: %q not registered", name)
	}
	r.fallback = name
	return nil
}

// Get returns the provider registered under name (case-insensitive).
func (r *Registry) Get(name string) (*Config, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byName[strings.ToLower(strings.TrimSpace(name))]
	return c, ok
}

// Default returns the default provider, or false when the registry is empty.
func (r *Registry) Default() (*Config, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.fallback == "" {
		return nil, false
	}
	return r.byName[r.fallback], true
}

// Names lists registered providers, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.byName))
	for n := range r.byName {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of registered providers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byName)
}
