package worker

import (
	"fmt"
	"sync"

	"github.com/ShayCichocki/krishi/pkg/models"
)

// Registry holds workers keyed by type.
// It provides thread-safe registration and lookup.
type Registry struct {
	workers map[models.WorkerType]Worker
	mu      sync.RWMutex
}

// NewRegistry creates a new Registry.
func NewRegistry() *Registry {
	return &Registry{
		workers: make(map[models.WorkerType]Worker),
	}
}

// Register adds a worker to the registry.
// Returns an error if the type is unknown or already registered.
func (r *Registry) Register(w Worker) error {
	desc := w.Descriptor()
	if !desc.Type.Valid() {
		return fmt.Errorf("register worker: unknown type %q", desc.Type)
	}
	for _, dep := range desc.DependsOn {
		if !dep.Valid() {
			return fmt.Errorf("register worker %s: unknown dependency %q", desc.Type, dep)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.workers[desc.Type]; exists {
		return fmt.Errorf("register worker: %s already registered", desc.Type)
	}
	r.workers[desc.Type] = w
	return nil
}

// MustRegister is Register that panics on error. For wiring at startup.
func (r *Registry) MustRegister(ws ...Worker) *Registry {
	for _, w := range ws {
		if err := r.Register(w); err != nil {
			panic(err)
		}
	}
	return r
}

// Get returns the worker for a type, or nil if none is registered.
func (r *Registry) Get(t models.WorkerType) Worker {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.workers[t]
}

// Types returns registered worker types in priority order.
func (r *Registry) Types() []models.WorkerType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.WorkerType, 0, len(r.workers))
	for t := range r.workers {
		out = append(out, t)
	}
	models.SortWorkers(out)
	return out
}

// Dependencies returns each registered worker's declared dependency set.
func (r *Registry) Dependencies() map[models.WorkerType][]models.WorkerType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	deps := make(map[models.WorkerType][]models.WorkerType, len(r.workers))
	for t, w := range r.workers {
		deps[t] = append([]models.WorkerType(nil), w.Descriptor().DependsOn...)
	}
	return deps
}

// Count returns the number of registered workers.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.workers)
}
