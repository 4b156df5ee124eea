package connector

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"
)

// ModuleLoader loads a connector module by its identifier.
type ModuleLoader interface {
	LoadModule(ctx context.Context, id string) (Module, error)
}

// Factory constructs a connector module.
type Factory func() (Module, error)

// Registry maps identifiers to module factories. A module is constructed on
// its first load and shared by every later load of the same identifier.
// Factories run outside the registry lock, so loads of different identifiers
// proceed in parallel and concurrent loads of one identifier share a call.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	instances map[string]Module
	building  singleflight.Group
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		instances: make(map[string]Module),
	}
}

// Register adds a factory under id.
func (r *Registry) Register(id string, factory Factory) error {
	if id == "" || factory == nil {
		return fmt.Errorf("register connector: identifier and factory are required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[id]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateModule, id)
	}
	r.factories[id] = factory
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(id string, factory Factory) {
	if err := r.Register(id, factory); err != nil {
		panic(err)
	}
}

// LoadModule implements ModuleLoader. A cancelled ctx abandons the wait but
// not a factory call already in flight; its result is still memoized.
func (r *Registry) LoadModule(ctx context.Context, id string) (Module, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	module, ok := r.instances[id]
	factory, known := r.factories[id]
	r.mu.RUnlock()
	if ok {
		return module, nil
	}
	if !known {
		return nil, fmt.Errorf("%w: %s", ErrUnknownModule, id)
	}

	ch := r.building.DoChan(id, func() (any, error) {
		r.mu.RLock()
		module, ok := r.instances[id]
		r.mu.RUnlock()
		if ok {
			return module, nil
		}

		module, err := factory()
		if err != nil {
			return nil, err
		}
		if module == nil {
			return nil, ErrNilModule
		}

		r.mu.Lock()
		r.instances[id] = module
		r.mu.Unlock()
		return module, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(Module), nil
	}
}

// List returns the registered identifiers, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.factories))
	for id := range r.factories {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
