package action

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/batonhq/baton"
)

// Registry maps action names to definitions. It is safe for concurrent use;
// registration usually happens at startup, lookups happen on every step.
type Registry struct {
	mu   sync.RWMutex
	defs map[string]*Definition
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]*Definition)}
}

// Register adds a definition. Registering a name twice is an error so a
// misconfigured integration cannot silently shadow another.
func (r *Registry) Register(def *Definition) error {
	if def == nil || def.Name == "" {
		return fmt.Errorf("baton/action: definition must have a name")
	}
	if def.Func == nil {
		return fmt.Errorf("baton/action: %q has no function", def.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.defs[def.Name]; ok {
		return fmt.Errorf("baton/action: %q: %w", def.Name, baton.ErrActionExists)
	}
	r.defs[def.Name] = def
	return nil
}

// Get returns the definition for name.
func (r *Registry) Get(name string) (*Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[name]
	return def, ok
}

// Definition returns the definition for name or baton.ErrActionNotFound.
func (r *Registry) Definition(name string) (*Definition, error) {
	if def, ok := r.Get(name); ok {
		return def, nil
	}
	return nil, fmt.Errorf("baton/action: %q: %w", name, baton.ErrActionNotFound)
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// Names returns all registered action names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.defs))
	for name := range r.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered actions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.defs)
}

// Invoke resolves the invocation's action and calls it. This is the
// terminal handler under the engine's middleware chain.
func (r *Registry) Invoke(ctx context.Context, inv *Invocation) (*Result, error) {
	def, err := r.Definition(inv.Name)
	if err != nil {
		return nil, err
	}
	return def.Func(ctx, inv.Caller, inv.Params)
}
