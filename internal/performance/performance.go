// Package performance provides the bounded worker pool and request rate limiter
// used by batch runs.
package performance

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"

	"golang.org/x/time/rate"
)

// ErrPoolStopped is returned when submitting to a stopped pool.
var ErrPoolStopped = errors.New("worker pool is not running")

// WorkerPool runs submitted tasks on a fixed number of goroutines.
type WorkerPool struct {
	workers    int
	taskQueue  chan func()
	wg         sync.WaitGroup
	mu         sync.RWMutex // guards taskQueue against close while sending
	running    atomic.Bool
	tasksTotal atomic.Uint64
	tasksDone  atomic.Uint64
}

// NewWorkerPool creates a new worker pool with the specified number of workers.
// If workers is 0, it defaults to runtime.NumCPU().
func NewWorkerPool(workers int) *WorkerPool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	return &WorkerPool{
		workers:   workers,
		taskQueue: make(chan func(), workers*4),
	}
}

// Start starts the worker pool.
func (p *WorkerPool) Start() {
	if p.running.Swap(true) {
		return
	}

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

func (p *WorkerPool) worker() {
	defer p.wg.Done()

	for task := range p.taskQueue {
		task()
		p.tasksDone.Add(1)
	}
}

// SubmitContext queues a task, waiting for queue space until ctx is done.
func (p *WorkerPool) SubmitContext(ctx context.Context, task func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if !p.running.Load() {
		return ErrPoolStopped
	}

	select {
	case p.taskQueue <- task:
		p.tasksTotal.Add(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop closes the queue, lets workers drain queued tasks and waits for them.
func (p *WorkerPool) Stop() {
	p.mu.Lock()
	if !p.running.Swap(false) {
		p.mu.Unlock()
		return
	}
	close(p.taskQueue)
	p.mu.Unlock()

	p.wg.Wait()
}

// Stats returns pool statistics.
func (p *WorkerPool) Stats() PoolStats {
	return PoolStats{
		Workers:    p.workers,
		Running:    p.running.Load(),
		TasksTotal: p.tasksTotal.Load(),
		TasksDone:  p.tasksDone.Load(),
		QueueLen:   len(p.taskQueue),
	}
}

// PoolStats contains worker pool statistics.
type PoolStats struct {
	Workers    int    `json:"workers"`
	Running    bool   `json:"running"`
	TasksTotal uint64 `json:"tasks_total"`
	TasksDone  uint64 `json:"tasks_done"`
	QueueLen   int    `json:"queue_len"`
}

// RateLimiter paces requests shared by the batch workers.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter creates a limiter allowing perSecond requests with the given
// burst. A non-positive rate disables limiting.
func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	return &RateLimiter{limiter: rate.NewLimiter(limit, max(burst, 1))}
}

// Wait blocks until a request is allowed or ctx is done. A nil limiter never waits.
func (r *RateLimiter) Wait(ctx context.Context) error {
	if r == nil {
		return nil
	}
	return r.limiter.Wait(ctx)
}
