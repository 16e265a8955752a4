// Package registry holds the named functions an experiment can bind to the
// externals of a compiled system: generators, operators, joiners and
// evaluators.
package registry

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
)

// Module is the interface built-in function packages implement to register
// themselves.
type Module interface {
	Register(r *Registry)
}

// Registry maps lowercased function names to their implementations. The
// concrete call signature of an entry is decided by the engine; the registry
// itself only stores and resolves names.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]any
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{entries: make(map[string]any)}
}

// Register adds a named function. Names are case-insensitive.
func (r *Registry) Register(name string, fn any) {
	key := strings.ToLower(name)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[key]; exists {
		panic(fmt.Sprintf("function with name '%s' already registered", key))
	}
	slog.Debug("Registering function.", "name", key)
	r.entries[key] = fn
}

// Replace adds or overwrites a named function. Register is preferred for
// module installation, where a duplicate name is a programming error.
func (r *Registry) Replace(name string, fn any) {
	key := strings.ToLower(name)
	r.mu.Lock()
	defer r.mu.Unlock()
	slog.Debug("Replacing function.", "name", key)
	r.entries[key] = fn
}

// Lookup resolves a name to its implementation.
func (r *Registry) Lookup(name string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.entries[strings.ToLower(name)]
	return fn, ok
}

// Names returns all registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.entries))
	for name := range r.entries {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Clone returns an independent copy, so one experiment can add bindings
// without affecting others.
func (r *Registry) Clone() *Registry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := New()
	for name, fn := range r.entries {
		out.entries[name] = fn
	}
	return out
}

// Install registers every module into r.
func Install(r *Registry, mods ...Module) {
	for _, m := range mods {
		m.Register(r)
	}
}
