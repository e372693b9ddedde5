package worker

import (
	"errors"
	"sort"
	"sync"

	"github.com/Conte777/reaction-service/internal/domain/session/entities"
	"github.com/Conte777/reaction-service/internal/infrastructure/metrics"
)

// ErrRegistryClosed is returned by Put after Drain
var ErrRegistryClosed = errors.New("worker registry is closed")

// Registry holds the running workers by auth token
type Registry struct {
	mu      sync.Mutex
	workers map[string]*Worker
	closed  bool
	metrics *metrics.Metrics
}

// NewRegistry creates an empty registry
func NewRegistry(m *metrics.Metrics) *Registry {
	return &Registry{
		workers: make(map[string]*Worker),
		metrics: m,
	}
}

// Put registers w under token and returns the worker it replaced, if any.
// A drained registry accepts no workers.
func (r *Registry) Put(token string, w *Worker) (*Worker, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrRegistryClosed
	}

	prev := r.workers[token]
	r.workers[token] = w
	r.metrics.UpdateActiveWorkers(len(r.workers))
	return prev, nil
}

// Get returns the worker of token
func (r *Registry) Get(token string) (*Worker, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.workers[token]
	return w, ok
}

// Has reports whether a worker is registered under token
func (r *Registry) Has(token string) bool {
	_, ok := r.Get(token)
	return ok
}

// Remove unregisters the worker of token and returns it
func (r *Registry) Remove(token string) (*Worker, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.workers[token]
	if ok {
		delete(r.workers, token)
		r.metrics.UpdateActiveWorkers(len(r.workers))
	}
	return w, ok
}

// Drain unregisters every worker, closes the registry and returns the workers
func (r *Registry) Drain() map[string]*Worker {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	drained := r.workers
	r.workers = make(map[string]*Worker)
	r.metrics.UpdateActiveWorkers(0)
	return drained
}

// Closed reports whether the registry was drained
func (r *Registry) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// Len returns the number of registered workers
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.workers)
}

// List returns a snapshot of every worker sorted by auth token
func (r *Registry) List() []entities.WorkerInfo {
	r.mu.Lock()
	infos := make([]entities.WorkerInfo, 0, len(r.workers))
	for _, w := range r.workers {
		infos = append(infos, w.Info())
	}
	r.mu.Unlock()

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].AuthToken < infos[j].AuthToken
	})
	return infos
}
