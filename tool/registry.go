package tool

import (
	"context"
	"slices"
	"sync"

	"github.com/tmc/langchaingo/tools"
)

// Registry maps names to tools. It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]tools.Tool
}

// NewRegistry creates a registry holding ts.
func NewRegistry(ts ...tools.Tool) (*Registry, error) {
	r := &Registry{tools: make(map[string]tools.Tool, len(ts))}
	for _, t := range ts {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds t under t.Name().
func (r *Registry) Register(t tools.Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := t.Name()
	if _, exists := r.tools[name]; exists {
		return &DuplicateToolError{Name: name}
	}
	r.tools[name] = t
	return nil
}

// Get returns the tool registered under name.
func (r *Registry) Get(name string) (tools.Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Call resolves call by name and runs it.
func (r *Registry) Call(ctx context.Context, call Call) (Result, error) {
	t, ok := r.Get(call.Name)
	if !ok {
		return Result{}, &NotFoundError{Name: call.Name}
	}
	out, err := t.Call(ctx, call.Arguments)
	if err != nil {
		return Result{}, &CallError{Name: call.Name, Err: err}
	}
	return Result{CallID: call.ID, Name: call.Name, Content: out}, nil
}
