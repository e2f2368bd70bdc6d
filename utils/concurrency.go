package utils

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// WorkerPool runs jobs on a bounded number of goroutines, spacing job starts
// by a minimum interval. The first job error cancels the pool context.
type WorkerPool struct {
	group       *errgroup.Group
	ctx         context.Context
	rateLimitMs int
	mu          sync.Mutex
	lastRequest time.Time
}

// NewWorkerPool creates a WorkerPool bound to ctx with the given concurrency
// and rate limit. The returned context is cancelled when a job fails or
// Wait returns.
func NewWorkerPool(ctx context.Context, maxWorkers, rateLimitMs int) (*WorkerPool, context.Context) {
	g, gctx := errgroup.WithContext(ctx)
	if maxWorkers > 0 {
		g.SetLimit(maxWorkers)
	}
	return &WorkerPool{
		group:       g,
		ctx:         gctx,
		rateLimitMs: rateLimitMs,
	}, gctx
}

// Submit enqueues a job for execution in the pool. It blocks while all
// workers are busy. Jobs submitted after cancellation are skipped.
func (wp *WorkerPool) Submit(job func(ctx context.Context) error) {
	wp.group.Go(func() error {
		if err := wp.enforceRateLimit(); err != nil {
			return err
		}
		return job(wp.ctx)
	})
}

// Wait blocks until all submitted jobs have completed and returns the first
// job error.
func (wp *WorkerPool) Wait() error {
	return wp.group.Wait()
}

func (wp *WorkerPool) enforceRateLimit() error {
	wp.mu.Lock()
	defer wp.mu.Unlock()

	if err := wp.ctx.Err(); err != nil {
		return err
	}

	minInterval := time.Duration(wp.rateLimitMs) * time.Millisecond
	if elapsed := time.Since(wp.lastRequest); elapsed < minInterval {
		timer := time.NewTimer(minInterval - elapsed)
		select {
		case <-wp.ctx.Done():
			timer.Stop()
			return wp.ctx.Err()
		case <-timer.C:
		}
	}
	wp.lastRequest = time.Now()
	return nil
}

// IDSet is a thread-safe set of record identifiers.
type IDSet struct {
	mu   sync.RWMutex
	seen map[string]struct{}
}

// NewIDSet creates an IDSet holding ids.
func NewIDSet(ids ...string) *IDSet {
	s := &IDSet{seen: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		s.seen[id] = struct{}{}
	}
	return s
}

// Add returns true if the id was newly added, false if already present.
func (s *IDSet) Add(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.seen[id]; exists {
		return false
	}
	s.seen[id] = struct{}{}
	return true
}

// Contains returns true if the id is in the set.
func (s *IDSet) Contains(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, exists := s.seen[id]
	return exists
}

// Size returns the number of unique ids tracked.
func (s *IDSet) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.seen)
}
