package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

var (
	// ErrQueueFull is returned by Submit when every queue slot is taken.
	ErrQueueFull = errors.New("continuation queue full")

	// ErrRunnerClosed is returned by Submit after Close.
	ErrRunnerClosed = errors.New("continuation runner closed")
)

type task struct {
	name string
	fn   func(ctx context.Context)
}

// Runner executes continuations on a fixed number of workers fed by a
// bounded queue. Submit never blocks: when the queue is full the task is
// rejected.
type Runner struct {
	queue   chan task
	timeout time.Duration
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	closed bool

	workers sync.WaitGroup
	pending sync.WaitGroup
}

// NewRunner starts workers goroutines serving a queue of queueSize
// slots. Each task runs under timeout when it is positive.
func NewRunner(workers, queueSize int, timeout time.Duration, logger *slog.Logger) *Runner {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	ctx, cancel := context.WithCancel(context.Background())
	r := &Runner{
		queue:   make(chan task, queueSize),
		timeout: timeout,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
	for i := 0; i < workers; i++ {
		r.workers.Go(r.work)
	}
	return r
}

// Submit queues fn. It returns ErrQueueFull or ErrRunnerClosed when the
// task cannot be accepted.
func (r *Runner) Submit(name string, fn func(ctx context.Context)) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		continuationsRejected.Inc()
		return ErrRunnerClosed
	}

	r.pending.Add(1)
	select {
	case r.queue <- task{name: name, fn: fn}:
		continuationQueueDepth.Set(float64(len(r.queue)))
		return nil
	default:
		r.pending.Done()
		continuationsRejected.Inc()
		return ErrQueueFull
	}
}

// Wait blocks until every accepted task has finished.
func (r *Runner) Wait() {
	r.pending.Wait()
}

// Close stops accepting tasks and waits for queued ones to finish. If ctx
// expires first, running tasks are canceled and ctx's error is returned.
func (r *Runner) Close(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.workers.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.cancel()
		return nil
	case <-ctx.Done():
		r.cancel()
		return ctx.Err()
	}
}

func (r *Runner) work() {
	for t := range r.queue {
		continuationQueueDepth.Set(float64(len(r.queue)))
		r.run(t)
	}
}

func (r *Runner) run(t task) {
	defer r.pending.Done()
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("continuation panicked", "task", t.name, "panic", rec)
		}
	}()

	ctx := r.ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	t.fn(ctx)
}
