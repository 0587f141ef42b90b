package jobs

// limiter.go caps how many jobs run at once.
//
// The limiter is a semaphore. When all slots are occupied, Acquire waits up to
// maxWait before failing with ErrBusy; a zero maxWait waits until the context
// ends. WaitForDrain blocks until every running job has released its slot and
// is used for graceful shutdown.

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrBusy is returned when all slots are occupied and the wait timeout expires.
var ErrBusy = errors.New("all workers are busy, please try again later")

// DefaultWorkers is the default number of concurrent jobs.
const DefaultWorkers = 4

// Limiter controls concurrent job execution.
type Limiter struct {
	semaphore chan struct{}
	maxWait   time.Duration

	mu     sync.RWMutex
	active int
}

// NewLimiter creates a limiter that allows at most maxConcurrent jobs.
func NewLimiter(maxConcurrent int, maxWait time.Duration) *Limiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultWorkers
	}
	return &Limiter{
		semaphore: make(chan struct{}, maxConcurrent),
		maxWait:   maxWait,
	}
}

// Acquire takes a slot. The caller must call Release when the job ends.
func (l *Limiter) Acquire(ctx context.Context) error {
	waitCtx := ctx
	if l.maxWait > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, l.maxWait)
		defer cancel()
	}

	select {
	case l.semaphore <- struct{}{}:
		l.mu.Lock()
		l.active++
		l.mu.Unlock()
		return nil

	case <-waitCtx.Done():
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrBusy
	}
}

// TryAcquire takes a slot without blocking.
func (l *Limiter) TryAcquire() bool {
	select {
	case l.semaphore <- struct{}{}:
		l.mu.Lock()
		l.active++
		l.mu.Unlock()
		return true
	default:
		return false
	}
}

// Release returns a slot. Call exactly once per successful Acquire/TryAcquire.
func (l *Limiter) Release() {
	l.mu.Lock()
	l.active--
	l.mu.Unlock()

	<-l.semaphore
}

// ActiveCount returns the number of running jobs.
func (l *Limiter) ActiveCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.active
}

// MaxConcurrent returns the slot count.
func (l *Limiter) MaxConcurrent() int {
	return cap(l.semaphore)
}

// Available returns the number of free slots.
func (l *Limiter) Available() int {
	return cap(l.semaphore) - len(l.semaphore)
}

// WaitForDrain blocks until no job is running or ctx ends.
func (l *Limiter) WaitForDrain(ctx context.Context) error {
	if l.ActiveCount() == 0 {
		return nil
	}

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if l.ActiveCount() == 0 {
				return nil
			}
		}
	}
}

// LimiterStatus is a snapshot of the limiter.
type LimiterStatus struct {
	Active        int `json:"active"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"max_concurrent"`
}

// Status returns the current limiter state.
func (l *Limiter) Status() LimiterStatus {
	l.mu.RLock()
	active := l.active
	l.mu.RUnlock()

	return LimiterStatus{
		Active:        active,
		Available:     cap(l.semaphore) - len(l.semaphore),
		MaxConcurrent: cap(l.semaphore),
	}
}
