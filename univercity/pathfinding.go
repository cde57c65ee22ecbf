package univercity

import (
	"context"
	"runtime"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/thinkofname/univercity-core/ids"
)

// PathRequest asks the pool to compute a path for an entity from Start to
// Goal. Plan performs the actual search and may run on any goroutine; it
// must not touch the entity store directly (see PathfindingPool's package
// doc), only read-only level data captured by the caller's closure.
type PathRequest struct {
	Entity ids.EntityId
	Start  [2]int32
	Goal   [2]int32
	Plan   func() [][2]int32
}

// PathResult is the outcome of a previously queued PathRequest, collected
// by Drain and applied to the entity's TargetPosition by the tick that
// submitted it.
type PathResult struct {
	Entity ids.EntityId
	Path   [][2]int32
}

// PathfindingPool runs path searches off the tick goroutine so a single
// expensive search never stalls the simulation: Submit waits for a free
// worker slot (blocking while every worker is busy) and then starts the
// search in the background, Drain collects whatever has
// finished by the time it is called (typically once per tick, at the
// start of the next tick after submission). Results are never applied
// mid-flight by the pool itself — only the tick goroutine that calls
// Drain touches entity state, so no component column is ever written
// from two goroutines at once.
type PathfindingPool struct {
	sem *semaphore.Weighted

	mu      sync.Mutex
	wg      sync.WaitGroup
	pending []PathResult
}

// NewPathfindingPool builds a pool that runs at most workers searches
// concurrently. A non-positive workers defaults to runtime.GOMAXPROCS(0).
func NewPathfindingPool(workers int) *PathfindingPool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &PathfindingPool{sem: semaphore.NewWeighted(int64(workers))}
}

// Submit queues req to run as soon as a worker slot is free. ctx bounds
// how long Submit will wait to acquire that slot; it does not bound the
// search itself once started.
func (p *PathfindingPool) Submit(ctx context.Context, req PathRequest) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	p.wg.Add(1)
	go func() {
		defer p.sem.Release(1)
		defer p.wg.Done()

		path := req.Plan()

		p.mu.Lock()
		p.pending = append(p.pending, PathResult{Entity: req.Entity, Path: path})
		p.mu.Unlock()
	}()
	return nil
}

// Drain returns every result completed since the last Drain call and
// clears the pending list. Safe to call once per tick from the tick
// goroutine only.
func (p *PathfindingPool) Drain() []PathResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.pending) == 0 {
		return nil
	}
	out := p.pending
	p.pending = nil
	return out
}

// Wait blocks until every submitted search has finished, for use during
// shutdown so a search goroutine never outlives the server.
func (p *PathfindingPool) Wait() { p.wg.Wait() }
