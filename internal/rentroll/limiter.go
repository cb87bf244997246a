package rentroll

// limiter.go implements concurrency control for import execution.
//
// The limiter uses a semaphore pattern to restrict parallel import
// executions to a configurable maximum. When all slots are occupied, new
// requests wait up to maxWait before failing with ErrTooManyImports. It also
// supports graceful shutdown via WaitForDrain, which blocks until all active
// executions complete.

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrTooManyImports is returned when all execution slots are occupied and
// the wait timeout expires. Clients should retry after a short delay.
var ErrTooManyImports = errors.New("too many concurrent imports, please try again later")

// DefaultMaxConcurrentImports is the default limit for parallel executions.
const DefaultMaxConcurrentImports = 5

// DefaultImportWaitTime is how long to wait for a slot before rejecting.
const DefaultImportWaitTime = 30 * time.Second

// ImportLimiter controls concurrent import execution using a semaphore.
type ImportLimiter struct {
	semaphore chan struct{}
	maxWait   time.Duration

	mu     sync.RWMutex
	active int
}

// NewImportLimiter creates a limiter allowing at most maxConcurrent
// simultaneous executions. Requests that cannot acquire a slot within
// maxWait receive ErrTooManyImports.
func NewImportLimiter(maxConcurrent int, maxWait time.Duration) *ImportLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentImports
	}
	if maxWait <= 0 {
		maxWait = DefaultImportWaitTime
	}

	return &ImportLimiter{
		semaphore: make(chan struct{}, maxConcurrent),
		maxWait:   maxWait,
	}
}

// Acquire attempts to acquire an execution slot. Returns nil on success and
// ErrTooManyImports if the wait timeout expires. The caller must call
// Release exactly once per successful Acquire.
func (l *ImportLimiter) Acquire(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, l.maxWait)
	defer cancel()

	select {
	case l.semaphore <- struct{}{}:
		l.mu.Lock()
		l.active++
		l.mu.Unlock()
		return nil

	case <-waitCtx.Done():
		// Distinguish caller cancellation from slot-wait timeout.
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrTooManyImports
	}
}

// Release releases a previously acquired slot.
func (l *ImportLimiter) Release() {
	l.mu.Lock()
	l.active--
	l.mu.Unlock()

	<-l.semaphore
}

// ActiveCount returns the number of currently executing imports.
func (l *ImportLimiter) ActiveCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.active
}

// Available returns the number of free slots.
func (l *ImportLimiter) Available() int {
	return cap(l.semaphore) - len(l.semaphore)
}

// MaxConcurrent returns the maximum allowed concurrent executions.
func (l *ImportLimiter) MaxConcurrent() int {
	return cap(l.semaphore)
}

// WaitForDrain blocks until all active executions complete or ctx is
// cancelled. Used for graceful shutdown.
func (l *ImportLimiter) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
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

// LimiterStatus is a snapshot of the limiter's current state.
type LimiterStatus struct {
	Active        int `json:"active"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"maxConcurrent"`
}

// Status returns the current limiter state for monitoring.
func (l *ImportLimiter) Status() LimiterStatus {
	l.mu.RLock()
	active := l.active
	l.mu.RUnlock()

	return LimiterStatus{
		Active:        active,
		Available:     cap(l.semaphore) - len(l.semaphore),
		MaxConcurrent: cap(l.semaphore),
	}
}
