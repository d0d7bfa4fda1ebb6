package performance

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestWorkerPool_RunsAllTasks(t *testing.T) {
	pool := NewWorkerPool(4)
	pool.Start()

	var count atomic.Int64
	for i := 0; i < 100; i++ {
		if err := pool.SubmitContext(context.Background(), func() {
			count.Add(1)
		}); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}
	pool.Stop()

	if got := count.Load(); got != 100 {
		t.Errorf("ran %d tasks, want 100", got)
	}
	stats := pool.Stats()
	if stats.TasksTotal != 100 || stats.TasksDone != 100 || stats.Running {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestWorkerPool_BoundsConcurrency(t *testing.T) {
	const workers = 3
	pool := NewWorkerPool(workers)
	pool.Start()

	var (
		mu      sync.Mutex
		current int
		peak    int
	)
	for i := 0; i < 30; i++ {
		pool.SubmitContext(context.Background(), func() {
			mu.Lock()
			current++
			if current > peak {
				peak = current
			}
			mu.Unlock()

			time.Sleep(2 * time.Millisecond)

			mu.Lock()
			current--
			mu.Unlock()
		})
	}
	pool.Stop()

	if peak > workers {
		t.Errorf("peak concurrency %d exceeds %d workers", peak, workers)
	}
}

func TestWorkerPool_SubmitAfterStop(t *testing.T) {
	pool := NewWorkerPool(1)
	if err := pool.SubmitContext(context.Background(), func() {}); err != ErrPoolStopped {
		t.Errorf("submit before start: got %v, want ErrPoolStopped", err)
	}

	pool.Start()
	pool.Stop()
	pool.Stop()

	if err := pool.SubmitContext(context.Background(), func() {}); err != ErrPoolStopped {
		t.Errorf("got %v, want ErrPoolStopped", err)
	}
}

func TestWorkerPool_SubmitContextCancelled(t *testing.T) {
	pool := NewWorkerPool(1)
	pool.Start()
	defer pool.Stop()

	block := make(chan struct{})
	started := make(chan struct{})
	defer close(block)
	pool.SubmitContext(context.Background(), func() {
		close(started)
		<-block
	})
	<-started

	// fill the queue behind the blocked worker
	for i := 0; i < 4; i++ {
		if err := pool.SubmitContext(context.Background(), func() {}); err != nil {
			t.Fatalf("queue slot %d: %v", i, err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := pool.SubmitContext(ctx, func() {}); err != context.DeadlineExceeded {
		t.Errorf("got %v, want deadline exceeded", err)
	}
}

func TestRateLimiter(t *testing.T) {
	limiter := NewRateLimiter(1, 2)
	for i := 0; i < 2; i++ {
		if err := limiter.Wait(context.Background()); err != nil {
			t.Fatalf("burst request %d: %v", i, err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := limiter.Wait(ctx); err == nil {
		t.Error("third request should not fit before the deadline")
	}

	fast := NewRateLimiter(1000, 1)
	start := time.Now()
	for i := 0; i < 5; i++ {
		if err := fast.Wait(context.Background()); err != nil {
			t.Fatalf("wait on a refilling bucket: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed < 3*time.Millisecond {
		t.Errorf("5 requests at 1000/s took %v, want at least 3ms", elapsed)
	}

	var unlimited *RateLimiter
	if err := unlimited.Wait(context.Background()); err != nil {
		t.Errorf("nil limiter: %v", err)
	}
	off := NewRateLimiter(0, 0)
	for i := 0; i < 100; i++ {
		if err := off.Wait(context.Background()); err != nil {
			t.Fatalf("zero-rate limiter should not limit: %v", err)
		}
	}
}

func BenchmarkWorkerPool(b *testing.B) {
	pool := NewWorkerPool(4)
	pool.Start()
	defer pool.Stop()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		var wg sync.WaitGroup
		wg.Add(1)
		pool.SubmitContext(context.Background(), func() {
			wg.Done()
		})
		wg.Wait()
	}
}

func BenchmarkRateLimiter(b *testing.B) {
	limiter := NewRateLimiter(10000, 100)

	b.ResetTimer()
	ctx := context.Background()
	for i := 0; i < b.N; i++ {
		limiter.Wait(ctx)
	}
}
