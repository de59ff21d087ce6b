// Package notify delivers best-effort notifications to the voice service without blocking the call.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/myrjola/surveycall/internal/errors"
)

// Job is one fire-and-forget delivery.
type Job struct {
	Name  string
	Attrs []slog.Attr
	Run   func(ctx context.Context) error
}

// Dispatcher runs submitted jobs on a fixed set of workers. Each job gets its own timeout and is never retried.
// Submitting never blocks: jobs are dropped with a warning when the queue is full or the dispatcher is stopped.
type Dispatcher struct {
	mu       sync.RWMutex
	closed   bool
	jobs     chan Job
	finished chan struct{}
	workers  int
	timeout  time.Duration
	logger   *slog.Logger
}

// NewDispatcher creates a Dispatcher. Use Start to run the workers and Stop to drain them.
func NewDispatcher(queueSize, workers int, timeout time.Duration, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		mu:       sync.RWMutex{},
		closed:   false,
		jobs:     make(chan Job, queueSize),
		finished: make(chan struct{}),
		workers:  max(workers, 1),
		timeout:  timeout,
		logger:   logger.With(slog.String("source", "notify")),
	}
}

// Start runs the workers and blocks until Stop has been called and the queue is drained, so it should be called in a
// goroutine.
func (d *Dispatcher) Start() {
	var wg sync.WaitGroup
	for range d.workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range d.jobs {
				d.run(job)
			}
		}()
	}
	wg.Wait()
	close(d.finished)
}

// Stop refuses new jobs and waits for the queued ones to finish. Start must have been called.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.jobs)
	}
	d.mu.Unlock()
	<-d.finished
}

// Submit queues job and reports whether it was accepted.
func (d *Dispatcher) Submit(ctx context.Context, job Job) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.logger.LogAttrs(ctx, slog.LevelWarn, "dispatcher stopped, dropping notification",
			append(job.Attrs, slog.String("job", job.Name))...)
		return false
	}
	select {
	case d.jobs <- job:
		return true
	default:
		d.logger.LogAttrs(ctx, slog.LevelWarn, "notification queue full, dropping notification",
			append(job.Attrs, slog.String("job", job.Name))...)
		return false
	}
}

func (d *Dispatcher) run(job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	attrs := append([]slog.Attr{slog.String("job", job.Name)}, job.Attrs...)
	start := time.Now()
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = errors.New(fmt.Sprintf("panic: %v", r))
			}
		}()
		return job.Run(ctx)
	}()
	attrs = append(attrs, slog.Duration("duration", time.Since(start)))
	if err != nil {
		d.logger.LogAttrs(ctx, slog.LevelWarn, "notification failed", append(attrs, errors.SlogError(err))...)
		return
	}
	d.logger.LogAttrs(ctx, slog.LevelDebug, "notification delivered", attrs...)
}
