package revision

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"
)

// RefreshQueue runs background note regenerations on a bounded pool of
// workers. Enqueue never blocks the serving request: when the pool is
// saturated the task is dropped, which is safe because a still-stale
// note will re-trigger regeneration on its next read.
type RefreshQueue struct {
	sem    *semaphore.Weighted
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// NewRefreshQueue creates a queue running at most workers tasks
// concurrently.
func NewRefreshQueue(workers int64) *RefreshQueue {
	ctx, cancel := context.WithCancel(context.Background())
	return &RefreshQueue{
		sem:    semaphore.NewWeighted(workers),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Enqueue starts the task on a pool worker. It reports false when the
// pool is saturated or the queue is closed; the task is not run.
func (q *RefreshQueue) Enqueue(task func(ctx context.Context)) bool {
	if q.ctx.Err() != nil {
		return false
	}
	if !q.sem.TryAcquire(1) {
		return false
	}

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		defer q.sem.Release(1)
		defer func() {
			if r := recover(); r != nil {
				slog.Error("background refresh panicked", "panic", r)
			}
		}()
		task(q.ctx)
	}()
	return true
}

// Flush waits for all running tasks to finish.
func (q *RefreshQueue) Flush() {
	q.wg.Wait()
}

// Close cancels running tasks and waits for them to exit.
func (q *RefreshQueue) Close() {
	q.cancel()
	q.wg.Wait()
}
