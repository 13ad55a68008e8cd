// Package pipeline composes the asset build steps into named tasks.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/quantmind-br/assetforge/internal/domain"
	"golang.org/x/sync/errgroup"
)

// TaskFunc is the body of a task
type TaskFunc func(ctx context.Context) error

type funcTask struct {
	name string
	fn   TaskFunc
}

// NewTask adapts fn into a named task
func NewTask(name string, fn TaskFunc) domain.Task {
	return &funcTask{name: name, fn: fn}
}

func (t *funcTask) Name() string {
	return t.name
}

func (t *funcTask) Run(ctx context.Context) error {
	return wrap(t.name, t.fn(ctx))
}

// Observer is notified when a task finishes
type Observer interface {
	TaskDone(name string, elapsed time.Duration, err error)
}

// ObserverFunc adapts a function into an Observer
type ObserverFunc func(name string, elapsed time.Duration, err error)

// TaskDone calls f
func (f ObserverFunc) TaskDone(name string, elapsed time.Duration, err error) {
	f(name, elapsed, err)
}

type observedTask struct {
	domain.Task
	observer Observer
}

// Observe reports every run of t to observer. A nil observer returns t.
func Observe(t domain.Task, observer Observer) domain.Task {
	if observer == nil {
		return t
	}
	return &observedTask{Task: t, observer: observer}
}

func (t *observedTask) Run(ctx context.Context) error {
	start := time.Now()
	err := t.Task.Run(ctx)
	t.observer.TaskDone(t.Name(), time.Since(start), err)
	return err
}

type seriesTask struct {
	name  string
	tasks []domain.Task
}

// Series runs tasks one after another and stops at the first error
func Series(name string, tasks ...domain.Task) domain.Task {
	return &seriesTask{name: name, tasks: tasks}
}

func (s *seriesTask) Name() string {
	return s.name
}

func (s *seriesTask) Run(ctx context.Context) error {
	for _, t := range s.tasks {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := t.Run(ctx); err != nil {
			return wrap(s.name, wrap(t.Name(), err))
		}
	}
	return nil
}

type parallelTask struct {
	name  string
	tasks []domain.Task
}

// Parallel runs tasks concurrently. The first error cancels the others and
// is returned.
func Parallel(name string, tasks ...domain.Task) domain.Task {
	return &parallelTask{name: name, tasks: tasks}
}

func (p *parallelTask) Name() string {
	return p.name
}

func (p *parallelTask) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, t := range p.tasks {
		t := t
		g.Go(func() error {
			if err := t.Run(gctx); err != nil {
				return wrap(t.Name(), err)
			}
			return nil
		})
	}
	return wrap(p.name, g.Wait())
}

// wrap attaches name to err unless err is nil, a cancellation, or already
// attributed to name
func wrap(name string, err error) error {
	if err == nil || errors.Is(err, context.Canceled) {
		return err
	}
	var taskErr *domain.TaskError
	if errors.As(err, &taskErr) && taskErr.Task == name {
		return err
	}
	return domain.NewTaskError(name, err)
}
