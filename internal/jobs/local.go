package jobs

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/JonMunkholm/royalties/internal/core"
)

// ErrQueueFull is returned by LocalQueue.Enqueue when the buffer is full.
var ErrQueueFull = errors.New("job queue is full")

// ErrQueueClosed is returned by LocalQueue.Enqueue after Close.
var ErrQueueClosed = errors.New("job queue is closed")

// DefaultQueueSize is the default LocalQueue buffer.
const DefaultQueueSize = 100

// LocalQueue runs jobs in-process on at most Workers goroutines. Jobs still
// buffered when the process exits are lost; their records stay pending and
// core.Service.RequeuePending picks them up on the next start.
type LocalQueue struct {
	jobs    chan core.Job
	limiter *Limiter

	mu     sync.RWMutex
	closed bool
}

var _ Dispatcher = (*LocalQueue)(nil)

// NewLocalQueue creates a queue with the given worker count and buffer size.
func NewLocalQueue(workers, queueSize int) *LocalQueue {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &LocalQueue{
		jobs:    make(chan core.Job, queueSize),
		limiter: NewLimiter(workers, 0),
	}
}

// Enqueue buffers job without blocking.
func (q *LocalQueue) Enqueue(ctx context.Context, job core.Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Start runs jobs until ctx is cancelled. Running jobs are detached from ctx
// so a shutdown lets them finish; Close waits for them.
func (q *LocalQueue) Start(ctx context.Context, h Handler) error {
	slog.Info("local job queue started",
		"workers", q.limiter.MaxConcurrent(),
		"queue_size", cap(q.jobs),
	)

	for {
		select {
		case <-ctx.Done():
			slog.Info("local job queue stopped", "pending", len(q.jobs))
			return nil
		case job := <-q.jobs:
			if err := q.limiter.Acquire(ctx); err != nil {
				slog.Warn("job dropped on shutdown", "job", job.String())
				return nil
			}
			go func() {
				defer q.limiter.Release()
				if err := h(context.WithoutCancel(ctx), job); err != nil {
					slog.Error("job failed", "job", job.String(), "error", err)
				}
			}()
		}
	}
}

// Close stops accepting jobs and waits for running ones.
func (q *LocalQueue) Close(ctx context.Context) error {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	return q.limiter.WaitForDrain(ctx)
}

// Status reports worker usage and buffered jobs.
func (q *LocalQueue) Status() (LimiterStatus, int) {
	return q.limiter.Status(), len(q.jobs)
}
