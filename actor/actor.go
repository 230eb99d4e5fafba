package actor

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

// Package actor implements the per-block worker actor described in spec.md
// C4: a mailbox and execution adapter that turns heterogeneous stimuli
// (new input data, an output slot dequeued, a timer tick, a direct slot
// invocation, yield) into a single activation event, and exposes a
// monotonic activity indicator for idle detection (C5's wait_inactive).
//
// Grounded on the teacher's context.go/task.go goroutine-per-node model:
// where the teacher dedicates one buffered-channel goroutine per node task,
// an Actor here is the framework-owned equivalent, generalized to the
// reserve/back-pressure aware activation rule spec 4.4 requires.
import (
	"sync"
	"sync/atomic"
)

// Kind enumerates the stimuli that can activate a block (spec 4.4).
type Kind uint8

// Activation stimulus kinds.
const (
	KindNone Kind = iota
	KindStream
	KindMessage
	KindSlotCall
	KindTimer
	KindYield
	KindDeactivate
)

// Worker is the callback surface a block provides to its Actor. The Actor
// never touches block/port internals directly, keeping this package free of
// any dependency back on the root flowmesh package.
type Worker interface {
	// Ready reports whether min_elements honoring every input reserve is
	// satisfied, and whether any input has a pending message (which
	// activates regardless of stream availability, per spec 4.4). Output
	// write space is not part of this report.
	Ready() (streamReady bool, hasMessage bool)
	// Prepare is the optional gate hook (spec 4.3); false short-circuits
	// this tick's activation evaluation entirely.
	Prepare() bool
	// Work invokes the block's work() exactly once. yielded reports
	// whether the block called yield() during this invocation.
	Work() (yielded bool, err error)
	// Deactivate is invoked exactly once, after any in-flight Work call
	// has returned, when the actor is torn down (spec 4.4 "Cancellation").
	Deactivate()
}

// Actor is the single-owner execution adapter for one block. Work is never
// invoked concurrently with itself (spec 5 "never called concurrently with
// itself"); the owning scheduler pool serializes RunOnce calls per actor by
// construction (only one goroutine at a time dequeues a given actor,
// enforced by the queued flag below).
type Actor struct {
	worker  Worker
	enqueue func(*Actor)

	activity int64 // atomic, bumped once per admitted Work call; port traffic does not bump it

	mu            sync.Mutex
	queued        bool
	active        bool
	terminated    bool
	pendingStream bool
	pendingMsg    bool
	pendingYield  bool
	pendingSlot   bool

	lastErr atomic.Value // error
}

// New creates an Actor bound to worker, using enqueue to push itself onto
// its owning scheduler's ready queue whenever a stimulus arrives while it
// isn't already queued.
func New(worker Worker, enqueue func(*Actor)) *Actor {
	return &Actor{worker: worker, enqueue: enqueue}
}

// Activity returns the monotonic activity indicator, read without
// synchronization beyond the atomic load (spec 4.4).
func (a *Actor) Activity() int64 { return atomic.LoadInt64(&a.activity) }

func (a *Actor) bump() { atomic.AddInt64(&a.activity, 1) }

// SetActive transitions the actor between the Inactive and Active block
// states (spec 4.3's I<->A edges are driven by the owning Topology).
func (a *Actor) SetActive(active bool) {
	a.mu.Lock()
	a.active = active
	a.mu.Unlock()
}

// Active reports the actor's current active flag.
func (a *Actor) Active() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.active
}

// LastError returns the error (if any) raised by the most recent Work call
// that failed; surfaced through the block's work-stats record per spec 7's
// propagation policy ("do not tear down the topology").
func (a *Actor) LastError() error {
	if v := a.lastErr.Load(); v != nil {
		return v.(error)
	}
	return nil
}

// Stimulate records a pending activation of the given kind and enqueues the
// actor on its scheduler pool if it isn't already queued. Multiple
// stimulations before the actor runs coalesce into a single RunOnce,
// matching spec 4.4's "heterogeneous stimuli ... into a single activation
// event".
func (a *Actor) Stimulate(kind Kind) {
	a.mu.Lock()
	if a.terminated {
		a.mu.Unlock()
		return
	}

	switch kind {
	case KindStream:
		a.pendingStream = true
	case KindMessage:
		a.pendingMsg = true
	case KindYield:
		a.pendingYield = true
	case KindSlotCall:
		a.pendingSlot = true
	}

	needEnqueue := !a.queued
	a.queued = true
	a.mu.Unlock()

	if needEnqueue {
		a.enqueue(a)
	}
}

// RunOnce is invoked by exactly one scheduler worker goroutine after
// popping this actor from the ready queue. It makes at most one admission
// decision and, if admitted, calls work() exactly once.
func (a *Actor) RunOnce() {
	a.mu.Lock()
	a.queued = false
	hasStream := a.pendingStream
	hasMsg := a.pendingMsg
	hasSlot := a.pendingSlot
	yieldWanted := a.pendingYield
	a.pendingYield = false
	active := a.active
	a.mu.Unlock()

	if !active {
		return
	}

	if !a.worker.Prepare() {
		return
	}

	streamReady, messagePending := a.worker.Ready()

	// A pending message activates regardless of stream availability.
	admit := messagePending || hasMsg || hasSlot || yieldWanted || (streamReady && hasStream) || streamReady
	if !admit {
		return
	}

	yielded, err := a.worker.Work()
	a.bump()
	if err != nil {
		a.lastErr.Store(err)
	}

	a.mu.Lock()
	a.pendingStream = false
	a.pendingMsg = false
	a.pendingSlot = false
	a.mu.Unlock()

	if yielded {
		a.Stimulate(KindYield)
	}
}

// Deactivate is the highest-priority activation event: already-queued
// stream events are discarded and then Deactivate's hook runs exactly once.
// Deactivate does not wait for an in-flight Work: the caller must ensure no
// RunOnce is concurrently executing before calling this, as Topology.Destroy
// does by closing its scheduler pool first.
func (a *Actor) Deactivate() {
	a.mu.Lock()
	if a.terminated {
		a.mu.Unlock()
		return
	}
	a.terminated = true
	a.active = false
	a.pendingStream = false
	a.pendingMsg = false
	a.pendingSlot = false
	a.pendingYield = false
	a.mu.Unlock()

	a.worker.Deactivate()
}
