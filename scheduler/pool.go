package scheduler

/*
   Copyright 2018 Bruno Moura <brunotm@gmail.com>

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

// Package scheduler implements the fixed-size thread pool described in
// spec.md C5: a bounded number of concurrently executing actors, each
// dequeued from a FIFO and run to completion (one RunOnce call) without
// preemption, plus wait_inactive's idle-detection poll.
//
// Grounded on the teacher's worker-pool pattern in task.go (a fixed set of
// goroutines draining a shared channel of runnable tasks). Here the bound
// is enforced with a golang.org/x/sync/semaphore.Weighted instead of a
// fixed goroutine count, so Stimulate from inside a block's own work()
// (re-enqueueing itself, or waking a downstream subscriber) never blocks
// the producer: enqueue always succeeds immediately and spawns a
// short-lived goroutine that waits its turn on the semaphore rather than
// contending for a channel send.
import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/brunotm/flowmesh/actor"
)

// YieldMode names how idle pool workers wait for the next ready actor. Pool
// records it in Config but does not act on it: waiting actors always block
// on the semaphore.
type YieldMode uint8

// Yield modes (spec 4.5's thread-pool config record).
const (
	YieldCondition YieldMode = iota
	YieldSpin
)

// Config configures a Pool (spec 4.5's thread-pool config record).
type Config struct {
	Size         int
	AffinityMask uint64 // advisory only; Go does not expose OS thread pinning
	Priority     int    // advisory only
	YieldMode    YieldMode
}

// Pool bounds the number of actors concurrently running RunOnce to its
// configured Size via a weighted semaphore.
type Pool struct {
	sem  *semaphore.Weighted
	size int64

	mu     sync.Mutex
	pending int
	closed  bool
	drained sync.WaitGroup
}

// New returns a Pool admitting at most cfg.Size concurrently-running
// actors (minimum 1).
func New(cfg Config) *Pool {
	size := int64(cfg.Size)
	if size < 1 {
		size = 1
	}
	return &Pool{sem: semaphore.NewWeighted(size), size: size}
}

// Enqueue schedules a to run. It never blocks the caller: a goroutine is
// spawned that acquires the pool's semaphore (waiting its turn behind
// `size` other concurrently running actors) before invoking a.RunOnce.
func (p *Pool) Enqueue(a *actor.Actor) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.pending++
	p.drained.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.drained.Done()
		if err := p.sem.Acquire(context.Background(), 1); err != nil {
			return
		}
		defer p.sem.Release(1)
		a.RunOnce()

		p.mu.Lock()
		p.pending--
		p.mu.Unlock()
	}()
}

// Close stops accepting new work and waits for every already-enqueued actor
// to finish running.
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.drained.Wait()
}

// Len reports the number of actors currently enqueued or running, exposed
// for work-stats.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pending
}

// Size returns the pool's configured concurrency bound.
func (p *Pool) Size() int64 { return p.size }
