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

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/brunotm/flowmesh/actor"
)

type idleWorker struct{}

func (idleWorker) Ready() (bool, bool) { return false, false }
func (idleWorker) Prepare() bool       { return true }
func (idleWorker) Work() (bool, error) { return false, nil }
func (idleWorker) Deactivate()         {}

func TestWaitInactiveReturnsTrueOnEmptySet(t *testing.T) {
	assert.True(t, WaitInactive(nil, time.Millisecond, time.Second))
}

func TestWaitInactiveSettlesOnAlreadyIdleActors(t *testing.T) {
	p := New(Config{Size: 2})
	defer p.Close()

	a1 := actor.New(idleWorker{}, p.Enqueue)
	a2 := actor.New(idleWorker{}, p.Enqueue)

	ok := WaitInactive([]*actor.Actor{a1, a2}, 10*time.Millisecond, time.Second)
	assert.True(t, ok)
}

type busyWorker struct{ stop chan struct{} }

func (w *busyWorker) Ready() (bool, bool) { return true, false }
func (w *busyWorker) Prepare() bool       { return true }
func (w *busyWorker) Work() (bool, error) {
	select {
	case <-w.stop:
	default:
	}
	return false, nil
}
func (w *busyWorker) Deactivate() {}

func TestWaitInactiveTimesOutOnContinuousActivity(t *testing.T) {
	p := New(Config{Size: 1})
	defer p.Close()

	w := &busyWorker{stop: make(chan struct{})}
	a := actor.New(w, p.Enqueue)
	a.SetActive(true)

	stopPoking := make(chan struct{})
	go func() {
		for {
			select {
			case <-stopPoking:
				return
			default:
				a.Stimulate(actor.KindStream)
				time.Sleep(time.Millisecond)
			}
		}
	}()

	ok := WaitInactive([]*actor.Actor{a}, 50*time.Millisecond, 20*time.Millisecond)
	close(stopPoking)
	close(w.stop)
	assert.False(t, ok)
}
