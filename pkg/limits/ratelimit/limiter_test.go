package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"
)

type recordingObserver struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (o *recordingObserver) ObserveRateLimitWait(backend string, wait time.Duration) {
	o.mu.Lock()
	o.waits = append(o.waits, wait)
	o.mu.Unlock()
}

func TestLimiterAcquireWithinCapacity(t *testing.T) {
	l := NewLimiter(3, 0.001)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := l.Acquire(ctx, "test"); err != nil {
			t.Fatalf("Acquire() call %d failed: %v", i+1, err)
		}
	}
}

func TestLimiterAcquireBlocksThenProceeds(t *testing.T) {
	// Capacity 2 at 100 tokens/s: the third acquire waits roughly 10ms.
	l := NewLimiter(2, 100)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := l.Acquire(ctx, "test"); err != nil {
			t.Fatalf("Acquire() call %d failed: %v", i+1, err)
		}
	}
	elapsed := time.Since(start)

	if elapsed < 5*time.Millisecond {
		t.Errorf("three acquires on capacity-2 bucket took %v, expected a refill wait", elapsed)
	}
	if elapsed > time.Second {
		t.Errorf("three acquires took %v, expected well under a second at 100 tokens/s", elapsed)
	}
}

func TestLimiterAcquireCancelled(t *testing.T) {
	// Refill so slow the acquire can only end via cancellation.
	l := NewLimiter(1, 0.0001)
	ctx := context.Background()

	if err := l.Acquire(ctx, "test"); err != nil {
		t.Fatalf("first Acquire() failed: %v", err)
	}

	cancelCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()

	err := l.Acquire(cancelCtx, "test")
	if err == nil {
		t.Fatal("Acquire() = nil on drained bucket with cancelled context")
	}
	if err != context.DeadlineExceeded {
		t.Errorf("Acquire() error = %v, want context.DeadlineExceeded", err)
	}
}

func TestLimiterObserver(t *testing.T) {
	l := NewLimiter(1, 100)
	obs := &recordingObserver{}
	l.SetObserver(obs)
	ctx := context.Background()

	if err := l.Acquire(ctx, "test"); err != nil {
		t.Fatalf("first Acquire() failed: %v", err)
	}
	if err := l.Acquire(ctx, "test"); err != nil {
		t.Fatalf("second Acquire() failed: %v", err)
	}

	obs.mu.Lock()
	defer obs.mu.Unlock()
	if len(obs.waits) == 0 {
		t.Error("observer saw no waits, second acquire had to wait for refill")
	}
}

func TestLimiterConcurrentAcquire(t *testing.T) {
	const workers = 20

	l := NewLimiter(workers, 1)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- l.Acquire(ctx, "test")
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("concurrent Acquire() failed: %v", err)
		}
	}

	if remaining := l.Remaining(); remaining > 0 {
		t.Errorf("Remaining() = %d after draining full capacity, want 0", remaining)
	}
}
