// Package parallel runs independent units of work with bounded concurrency.
package parallel

import (
	"context"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// PoolConfig configures the worker pool behavior.
type PoolConfig struct {
	// MaxWorkers is the maximum number of concurrent workers.
	// Default: min(runtime.NumCPU(), 8)
	MaxWorkers int

	// Timeout bounds the whole batch. Zero means no timeout.
	Timeout time.Duration
}

// DefaultPoolConfig returns a default pool configuration.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{MaxWorkers: max(2, min(runtime.NumCPU(), 8))}
}

// WithWorkers returns a copy with n workers.
func (c PoolConfig) WithWorkers(n int) PoolConfig {
	c.MaxWorkers = n
	return c
}

// WithTimeout returns a copy with the given batch timeout.
func (c PoolConfig) WithTimeout(d time.Duration) PoolConfig {
	c.Timeout = d
	return c
}

// PoolMetrics holds execution statistics across all batches a pool ran.
type PoolMetrics struct {
	TotalTasks     int64
	CompletedTasks int64
	FailedTasks    int64
	TotalDuration  time.Duration
	MaxTaskTime    time.Duration
}

// TaskResult holds the outcome of one input.
type TaskResult[T any, R any] struct {
	Input    T
	Result   R
	Error    error
	Duration time.Duration
}

// WorkerPool executes a function over a batch of inputs. One failing input
// does not cancel the others.
type WorkerPool[T any, R any] struct {
	config  PoolConfig
	mu      sync.Mutex
	metrics PoolMetrics
}

// NewWorkerPool creates a pool; non-positive MaxWorkers selects the default.
func NewWorkerPool[T any, R any](config PoolConfig) *WorkerPool[T, R] {
	if config.MaxWorkers <= 0 {
		config.MaxWorkers = DefaultPoolConfig().MaxWorkers
	}
	return &WorkerPool[T, R]{config: config}
}

// ExecuteFunc applies fn to every input and returns the results in input
// order. Inputs not started before ctx is done report ctx.Err().
func (p *WorkerPool[T, R]) ExecuteFunc(ctx context.Context, inputs []T, fn func(ctx context.Context, input T) (R, error)) []TaskResult[T, R] {
	if len(inputs) == 0 {
		return nil
	}
	if p.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.Timeout)
		defer cancel()
	}

	start := time.Now()
	results := make([]TaskResult[T, R], len(inputs))

	var g errgroup.Group
	g.SetLimit(p.config.MaxWorkers)
	for i, in := range inputs {
		i, in := i, in
		results[i].Input = in
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i].Error = err
				return nil
			}
			taskStart := time.Now()
			results[i].Result, results[i].Error = fn(ctx, in)
			results[i].Duration = time.Since(taskStart)
			return nil
		})
	}
	_ = g.Wait()

	p.record(results, time.Since(start))
	return results
}

func (p *WorkerPool[T, R]) record(results []TaskResult[T, R], elapsed time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.metrics.TotalDuration += elapsed
	for _, r := range results {
		p.metrics.TotalTasks++
		if r.Error != nil {
			p.metrics.FailedTasks++
		} else {
			p.metrics.CompletedTasks++
		}
		p.metrics.MaxTaskTime = max(p.metrics.MaxTaskTime, r.Duration)
	}
}

// Metrics returns a snapshot of the execution metrics.
func (p *WorkerPool[T, R]) Metrics() PoolMetrics {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.metrics
}

// ForEach runs fn for every item with at most workers goroutines and stops
// at the first error, which it returns.
func ForEach[T any](ctx context.Context, items []T, workers int, fn func(ctx context.Context, item T) error) error {
	g, ctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for _, item := range items {
		item := item
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return fn(ctx, item)
		})
	}
	return g.Wait()
}
