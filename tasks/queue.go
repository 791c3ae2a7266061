// Package tasks runs fire-and-forget work on a bounded pool of workers.
package tasks

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"marketplace-api/middlewares"
)

type Func func(ctx context.Context) error

type task struct {
	name string
	fn   Func
}

// Queue never blocks submitters: when the buffer is full the task is dropped
// and counted.
type Queue struct {
	tasks   chan task
	workers int
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewQueue(size, workers int, timeout time.Duration) *Queue {
	if size <= 0 {
		size = 1
	}
	if workers <= 0 {
		workers = 1
	}
	return &Queue{tasks: make(chan task, size), workers: workers, timeout: timeout}
}

// Start launches the workers. They exit once Shutdown has drained the queue.
func (q *Queue) Start() {
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go func() {
			defer q.wg.Done()
			for t := range q.tasks {
				q.run(t)
			}
		}()
	}
}

func (q *Queue) run(t task) {
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("task panicked", slog.String("task", t.name), slog.Any("panic", r))
		}
	}()
	if err := t.fn(ctx); err != nil {
		slog.Warn("task failed", slog.String("task", t.name), slog.String("error", err.Error()))
	}
}

// Submit enqueues fn and reports whether it was accepted.
func (q *Queue) Submit(name string, fn Func) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return false
	}
	select {
	case q.tasks <- task{name: name, fn: fn}:
		return true
	default:
		middlewares.RecordDroppedTask()
		slog.Warn("task queue full, dropping task", slog.String("task", name))
		return false
	}
}

// Shutdown stops accepting work and waits for queued tasks until ctx is done.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.tasks)
	}
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
