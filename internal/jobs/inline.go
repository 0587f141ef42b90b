package jobs

import (
	"context"
	"errors"
	"sync"

	"github.com/JonMunkholm/royalties/internal/core"
)

// InlineQueue buffers jobs until Start runs them one at a time on the calling
// goroutine. Jobs enqueued by a running job are run in the same Start call.
// It backs one-shot commands that must finish their work before exiting.
type InlineQueue struct {
	mu      sync.Mutex
	pending []core.Job
}

var _ Dispatcher = (*InlineQueue)(nil)

// NewInlineQueue creates an empty InlineQueue.
func NewInlineQueue() *InlineQueue {
	return &InlineQueue{}
}

func (q *InlineQueue) Enqueue(ctx context.Context, job core.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, job)
	return nil
}

// Start runs buffered jobs in FIFO order until none remain or ctx is done.
// Every job runs even if an earlier one fails; the errors are joined.
func (q *InlineQueue) Start(ctx context.Context, h Handler) error {
	var errs []error
	for {
		if err := ctx.Err(); err != nil {
			return errors.Join(append(errs, err)...)
		}
		job, ok := q.next()
		if !ok {
			return errors.Join(errs...)
		}
		if err := h(ctx, job); err != nil {
			errs = append(errs, err)
		}
	}
}

func (q *InlineQueue) next() (core.Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return core.Job{}, false
	}
	job := q.pending[0]
	q.pending = q.pending[1:]
	return job, true
}

// Close is a no-op; Start already waits for every job.
func (q *InlineQueue) Close(ctx context.Context) error {
	return nil
}
