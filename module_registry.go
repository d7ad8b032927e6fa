// module_registry.go - Validated catalog of module kinds

package main

import (
	"fmt"
	"sync"
)

// Registry is an explicitly owned catalog of module kinds. The rack holds a
// reference supplied at construction; there is no process-wide registry.
type Registry struct {
	mu    sync.RWMutex
	kinds map[string]*ModuleKind
	order []string
}

func NewRegistry() *Registry {
	return &Registry{kinds: make(map[string]*ModuleKind)}
}

// Register validates a kind's required fields and adds it to the catalog.
// Structural validation happens here, once, so the rack never probes a kind
// at tick time. Contract violations are rejected and never reach the graph.
func (r *Registry) Register(kind *ModuleKind) error {
	if kind == nil {
		return fmt.Errorf("register: nil kind")
	}
	if kind.Type == "" {
		return fmt.Errorf("register: kind has no type identifier")
	}
	if kind.Name == "" {
		return fmt.Errorf("register %q: missing display name", kind.Type)
	}
	if kind.Width <= 0 {
		return fmt.Errorf("register %q: invalid panel width %d", kind.Type, kind.Width)
	}
	if kind.Color == "" {
		return fmt.Errorf("register %q: missing panel color", kind.Type)
	}
	if kind.Factory == nil {
		return fmt.Errorf("register %q: missing factory", kind.Type)
	}
	if len(kind.Controls) == 0 && !kind.CustomRender {
		return fmt.Errorf("register %q: kind declares neither controls nor custom render", kind.Type)
	}
	seen := make(map[string]bool, len(kind.Inputs)+len(kind.Outputs))
	for _, p := range kind.Inputs {
		if p.Name == "" || seen["in:"+p.Name] {
			return fmt.Errorf("register %q: bad input port %q", kind.Type, p.Name)
		}
		seen["in:"+p.Name] = true
	}
	for _, p := range kind.Outputs {
		if p.Name == "" || seen["out:"+p.Name] {
			return fmt.Errorf("register %q: bad output port %q", kind.Type, p.Name)
		}
		seen["out:"+p.Name] = true
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.kinds[kind.Type]; dup {
		return fmt.Errorf("register %q: already registered", kind.Type)
	}
	r.kinds[kind.Type] = kind
	r.order = append(r.order, kind.Type)
	return nil
}

// Lookup returns the kind for a type identifier.
func (r *Registry) Lookup(kindType string) (*ModuleKind, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	k, ok := r.kinds[kindType]
	return k, ok
}

// Kinds returns all registered type identifiers in registration order.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// RegisterBuiltins registers every module kind this build ships with.
func RegisterBuiltins(r *Registry) error {
	kinds := []*ModuleKind{
		envelopeKind(),
		noiseKind(),
		granularKind(),
		voicesKind(),
		oscillatorKind(),
		lfoKind(),
		filterKind(),
		mixerKind(),
		vcaKind(),
		audioOutKind(),
	}
	for _, k := range kinds {
		if err := r.Register(k); err != nil {
			return err
		}
	}
	return nil
}
