package pipeline

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/quantmind-br/assetforge/internal/domain"
)

// Registry maps task names to tasks
type Registry struct {
	mu    sync.RWMutex
	tasks map[string]domain.Task
}

// NewRegistry creates a registry holding tasks
func NewRegistry(tasks ...domain.Task) *Registry {
	r := &Registry{tasks: make(map[string]domain.Task)}
	for _, t := range tasks {
		r.Register(t)
	}
	return r
}

// Register adds t, replacing any task with the same name
func (r *Registry) Register(t domain.Task) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks[t.Name()] = t
}

// Get returns the task registered under name
func (r *Registry) Get(name string) (domain.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tasks[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownTask, name)
	}
	return t, nil
}

// Names returns the registered task names in sorted order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tasks))
	for name := range r.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run runs the task registered under name
func (r *Registry) Run(ctx context.Context, name string) error {
	t, err := r.Get(name)
	if err != nil {
		return err
	}
	return t.Run(ctx)
}
