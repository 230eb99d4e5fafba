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

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeWorker struct {
	mu         sync.Mutex
	ready      bool
	hasMessage bool
	prepare    bool
	workCalls  int
	workErr    error
	yielded    bool
	deactivated bool
}

func (w *fakeWorker) Ready() (bool, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.ready, w.hasMessage
}

func (w *fakeWorker) Prepare() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.prepare
}

func (w *fakeWorker) Work() (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.workCalls++
	return w.yielded, w.workErr
}

func (w *fakeWorker) Deactivate() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.deactivated = true
}

func (w *fakeWorker) calls() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.workCalls
}

func immediateEnqueue(a *Actor) { a.RunOnce() }

func TestRunOnceRequiresActive(t *testing.T) {
	w := &fakeWorker{prepare: true, ready: true}
	a := New(w, immediateEnqueue)
	a.Stimulate(KindStream)
	assert.Equal(t, 0, w.calls(), "inactive actor must not invoke Work")
}

func TestRunOnceAdmitsOnStreamReady(t *testing.T) {
	w := &fakeWorker{prepare: true, ready: true}
	a := New(w, immediateEnqueue)
	a.SetActive(true)
	a.Stimulate(KindStream)
	assert.Equal(t, 1, w.calls())
	assert.Equal(t, int64(1), a.Activity())
}

func TestRunOnceAdmitsOnPendingMessageRegardlessOfStream(t *testing.T) {
	w := &fakeWorker{prepare: true, ready: false, hasMessage: true}
	a := New(w, immediateEnqueue)
	a.SetActive(true)
	a.Stimulate(KindMessage)
	assert.Equal(t, 1, w.calls())
}

func TestRunOnceSkipsWhenPrepareFalse(t *testing.T) {
	w := &fakeWorker{prepare: false, ready: true}
	a := New(w, immediateEnqueue)
	a.SetActive(true)
	a.Stimulate(KindStream)
	assert.Equal(t, 0, w.calls())
}

func TestStimulateCoalescesMultipleStimuliIntoOneEnqueue(t *testing.T) {
	w := &fakeWorker{prepare: true, ready: true}
	var enqueues int
	var a *Actor
	a = New(w, func(actor *Actor) { enqueues++ })

	a.SetActive(true)
	// Manually mark queued via repeated Stimulate calls without ever
	// draining (no RunOnce invoked), matching how two stimuli racing in
	// before the scheduler gets around to the actor should still enqueue
	// exactly once.
	a.Stimulate(KindStream)
	a.Stimulate(KindMessage)
	a.Stimulate(KindSlotCall)
	assert.Equal(t, 1, enqueues)
}

func TestWorkErrorIsRecordedAsLastError(t *testing.T) {
	wantErr := errors.New("boom")
	w := &fakeWorker{prepare: true, ready: true, workErr: wantErr}
	a := New(w, immediateEnqueue)
	a.SetActive(true)
	a.Stimulate(KindStream)
	assert.Equal(t, wantErr, a.LastError())
}

func TestYieldedWorkReStimulates(t *testing.T) {
	w := &fakeWorker{prepare: true, ready: true, yielded: true}
	var runs int
	var a *Actor
	a = New(w, func(actor *Actor) {
		runs++
		if runs > 5 {
			return
		}
		actor.RunOnce()
	})
	a.SetActive(true)
	a.Stimulate(KindStream)
	assert.True(t, w.calls() >= 2, "a yielded Work call should re-stimulate the actor")
}

func TestDeactivateInvokesWorkerOnceAndBlocksFurtherStimuli(t *testing.T) {
	w := &fakeWorker{prepare: true, ready: true}
	a := New(w, immediateEnqueue)
	a.SetActive(true)
	a.Deactivate()
	assert.True(t, w.deactivated)

	a.Stimulate(KindStream)
	assert.Equal(t, 0, w.calls(), "a terminated actor must ignore further stimuli")

	// Deactivate is idempotent.
	a.Deactivate()
}
