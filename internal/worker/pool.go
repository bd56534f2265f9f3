// Package worker runs deferred gem executions on a fixed pool with a
// bounded queue.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
)

// ErrQueueFull is returned by Submit when the queue is at capacity.
// Callers degrade to an immediate "busy" response instead of blocking
// the acknowledgment deadline.
var ErrQueueFull = errors.New("worker: queue full")

// Task is one deferred unit of work. Failures must be handled inside
// the task (typically by notifying the user); a returned error is only
// logged.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Pool executes tasks on a fixed number of workers.
type Pool struct {
	queue   chan Task
	logger  *slog.Logger
	wg      sync.WaitGroup
	mu      sync.Mutex
	closed  bool
	baseCtx context.Context
}

// New starts a pool with the given worker count and queue capacity.
// Tasks run under baseCtx, which should outlive inbound requests so a
// finished HTTP exchange does not cancel a deferred generation.
func New(baseCtx context.Context, workers, queueSize int, logger *slog.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	p := &Pool{
		queue:   make(chan Task, queueSize),
		logger:  logger,
		baseCtx: baseCtx,
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.work()
	}
	return p
}

// Submit enqueues a task without blocking.
func (p *Pool) Submit(task Task) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return fmt.Errorf("worker: pool closed")
	}
	select {
	case p.queue <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops intake and waits until queued tasks have drained.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *Pool) work() {
	defer p.wg.Done()
	for task := range p.queue {
		p.run(task)
	}
}

// run executes one task, recovering panics so a broken task never takes
// the process down.
func (p *Pool) run(task Task) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("worker task panicked",
				"task", task.Name, "panic", r, "stack", string(debug.Stack()))
		}
	}()
	if err := task.Run(p.baseCtx); err != nil {
		p.logger.Error("worker task failed", "task", task.Name, "error", err)
	}
}
