package rentroll

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestImportLimiter_AcquireRelease(t *testing.T) {
	limiter := NewImportLimiter(2, time.Second)

	if got := limiter.ActiveCount(); got != 0 {
		t.Errorf("initial ActiveCount = %d, want 0", got)
	}
	if got := limiter.Available(); got != 2 {
		t.Errorf("initial Available = %d, want 2", got)
	}

	ctx := context.Background()
	if err := limiter.Acquire(ctx); err != nil {
		t.Fatalf("first Acquire failed: %v", err)
	}
	if err := limiter.Acquire(ctx); err != nil {
		t.Fatalf("second Acquire failed: %v", err)
	}

	if got := limiter.ActiveCount(); got != 2 {
		t.Errorf("ActiveCount = %d, want 2", got)
	}
	if got := limiter.Available(); got != 0 {
		t.Errorf("Available = %d, want 0", got)
	}

	limiter.Release()
	limiter.Release()

	if got := limiter.ActiveCount(); got != 0 {
		t.Errorf("final ActiveCount = %d, want 0", got)
	}
}

func TestImportLimiter_BlocksWhenFull(t *testing.T) {
	limiter := NewImportLimiter(1, 100*time.Millisecond)

	ctx := context.Background()
	if err := limiter.Acquire(ctx); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	start := time.Now()
	err := limiter.Acquire(ctx)
	elapsed := time.Since(start)

	if !errors.Is(err, ErrTooManyImports) {
		t.Errorf("expected ErrTooManyImports, got %v", err)
	}
	if elapsed < 90*time.Millisecond {
		t.Errorf("timeout too fast: %v", elapsed)
	}
	if elapsed > 300*time.Millisecond {
		t.Errorf("timeout too slow: %v", elapsed)
	}

	limiter.Release()
}

func TestImportLimiter_ConcurrentAccess(t *testing.T) {
	const maxConcurrent = 3
	const totalRequests = 10

	limiter := NewImportLimiter(maxConcurrent, time.Second)

	var wg sync.WaitGroup
	var mu sync.Mutex
	maxObserved := 0

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			if err := limiter.Acquire(context.Background()); err != nil {
				t.Errorf("Acquire failed: %v", err)
				return
			}
			defer limiter.Release()

			mu.Lock()
			if current := limiter.ActiveCount(); current > maxObserved {
				maxObserved = current
			}
			mu.Unlock()

			time.Sleep(10 * time.Millisecond)
		}()
	}

	wg.Wait()

	if maxObserved > maxConcurrent {
		t.Errorf("exceeded max concurrent: observed %d, max %d", maxObserved, maxConcurrent)
	}
	if got := limiter.ActiveCount(); got != 0 {
		t.Errorf("final ActiveCount = %d, want 0", got)
	}
}

func TestImportLimiter_ContextCancellation(t *testing.T) {
	limiter := NewImportLimiter(1, 5*time.Second)

	if err := limiter.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	cancelCtx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		errCh <- limiter.Acquire(cancelCtx)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Error("Acquire did not return after context cancellation")
	}

	limiter.Release()
}

func TestImportLimiter_WaitForDrain(t *testing.T) {
	limiter := NewImportLimiter(2, time.Second)

	ctx := context.Background()
	limiter.Acquire(ctx)
	limiter.Acquire(ctx)

	drainDone := make(chan error, 1)
	go func() {
		drainDone <- limiter.WaitForDrain(context.Background())
	}()

	select {
	case <-drainDone:
		t.Error("WaitForDrain returned too early")
	case <-time.After(50 * time.Millisecond):
		// Expected - still waiting
	}

	limiter.Release()

	select {
	case <-drainDone:
		t.Error("WaitForDrain returned with one active")
	case <-time.After(50 * time.Millisecond):
		// Expected
	}

	limiter.Release()

	select {
	case err := <-drainDone:
		if err != nil {
			t.Errorf("WaitForDrain returned error: %v", err)
		}
	case <-time.After(time.Second):
		t.Error("WaitForDrain did not complete after all released")
	}
}

func TestImportLimiter_Status(t *testing.T) {
	limiter := NewImportLimiter(3, time.Second)

	status := limiter.Status()
	if status.Active != 0 || status.Available != 3 || status.MaxConcurrent != 3 {
		t.Errorf("initial status = %+v", status)
	}

	ctx := context.Background()
	limiter.Acquire(ctx)
	limiter.Acquire(ctx)

	status = limiter.Status()
	if status.Active != 2 || status.Available != 1 {
		t.Errorf("status = %+v, want 2 active, 1 available", status)
	}

	limiter.Release()
	limiter.Release()
}

func TestImportLimiter_DefaultValues(t *testing.T) {
	// Invalid values fall back to defaults
	limiter := NewImportLimiter(0, 0)

	if got := limiter.MaxConcurrent(); got != DefaultMaxConcurrentImports {
		t.Errorf("MaxConcurrent = %d, want %d", got, DefaultMaxConcurrentImports)
	}
}

func TestImportLimiter_UnblocksWaiter(t *testing.T) {
	limiter := NewImportLimiter(1, time.Second)

	ctx := context.Background()
	if err := limiter.Acquire(ctx); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	acquired := make(chan struct{})
	go func() {
		if err := limiter.Acquire(ctx); err != nil {
			t.Errorf("waiting Acquire failed: %v", err)
			return
		}
		close(acquired)
		limiter.Release()
	}()

	time.Sleep(50 * time.Millisecond)
	limiter.Release()

	select {
	case <-acquired:
		// Success
	case <-time.After(500 * time.Millisecond):
		t.Error("waiter did not acquire after release")
	}
}
