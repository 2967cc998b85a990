// Package tool defines the contract between the orchestrator and its
// tool collaborator.
//
// Plan steps name tools; the orchestrator invokes them through Invoker
// and treats the internals as opaque. An invocation either returns a
// result or an error; errors are classified by the caller, not here.
package tool

import (
	"context"
	"fmt"
	"sync"
)

// Invoker executes a named tool with parameters. Implementations may be
// local function registries, RPC clients, or anything else; the
// orchestrator only sees this surface.
type Invoker interface {
	// Invoke runs the named tool. Returns the tool's result, or an error
	// if the tool is unknown or the invocation failed.
	Invoke(ctx context.Context, name string, params Params) (interface{}, error)
}

// Func is a single tool implemented as a function.
type Func func(ctx context.Context, params Params) (interface{}, error)

// Registry is an Invoker backed by named functions. Safe for concurrent
// use.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Func
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Func)}
}

// Register adds or replaces a tool under the given name.
func (r *Registry) Register(name string, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[name] = fn
}

// Has returns true if a tool with the given name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

// Names returns the registered tool names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	return names
}

// Invoke implements Invoker.
func (r *Registry) Invoke(ctx context.Context, name string, params Params) (interface{}, error) {
	r.mu.RLock()
	fn, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("tool %q: %w", name, ErrNotFound)
	}
	return fn(ctx, params)
}
