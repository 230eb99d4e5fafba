package flowmesh

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
	"testing"

	"github.com/stretchr/testify/assert"
)

func dummyBlock() *Block {
	b := NewBlock(1, "test/dummy")
	b.AddInput("in", byteType)
	b.AddOutput("out", byteType)
	return b
}

func TestBlockLifecycleTransitions(t *testing.T) {
	b := dummyBlock()
	assert.Equal(t, StateConstructed, b.State())

	assert.NoError(t, b.Activate())
	assert.True(t, b.IsActive())

	assert.NoError(t, b.Deactivate())
	assert.False(t, b.IsActive())

	assert.NoError(t, b.Destroy())

	err := b.Activate()
	var aerr *AssertionViolationError
	assert.ErrorAs(t, err, &aerr)
}

func TestBlockCallDispatchOrder(t *testing.T) {
	b := dummyBlock()

	b.RegisterCall("tap", 1, func(args []interface{}) (interface{}, error) {
		return "exact-arity", nil
	})
	b.RegisterCall("tap", -1, func(args []interface{}) (interface{}, error) {
		return "opaque", nil
	})
	b.RegisterWildcard(func(method string, args []interface{}) (interface{}, error) {
		return "wildcard:" + method, nil
	})

	got, err := b.Call("tap", 1)
	assert.NoError(t, err)
	assert.Equal(t, "exact-arity", got)

	got, err = b.Call("tap", 1, 2)
	assert.NoError(t, err)
	assert.Equal(t, "opaque", got)

	got, err = b.Call("other")
	assert.NoError(t, err)
	assert.Equal(t, "wildcard:other", got)
}

func TestBlockCallNotFound(t *testing.T) {
	b := dummyBlock()
	_, err := b.Call("missing")
	var cerr *BlockCallNotFoundError
	assert.ErrorAs(t, err, &cerr)
	assert.True(t, errors.Is(err, ErrCallNotFound))
}

func TestBlockFailureSlotInvokedOnWorkError(t *testing.T) {
	b := dummyBlock()
	boom := errors.New("boom")
	b.SetWork(func(b *Block) error { return boom })

	var got error
	b.OnFailure(func(err error) { got = err })

	_, err := b.Work()
	assert.Equal(t, boom, err)
	assert.Equal(t, boom, got)
}

func TestBlockYieldReportedByWork(t *testing.T) {
	b := dummyBlock()
	b.SetWork(func(b *Block) error {
		b.Yield()
		return nil
	})
	yielded, err := b.Work()
	assert.NoError(t, err)
	assert.True(t, yielded)
}

func TestBlockQueryReturnsRegisteredValue(t *testing.T) {
	b := dummyBlock()
	b.RegisterQuery("answer", func() interface{} { return 42 })

	got, ok := b.Query("answer")
	assert.True(t, ok)
	assert.Equal(t, 42, got)

	_, ok = b.Query("missing")
	assert.False(t, ok)
}

func TestBlockSignalConnectedToSlotDeliversOnNextWork(t *testing.T) {
	emitter := NewBlock(1, "test/emitter")
	sig := emitter.RegisterSignal("fired")

	var gotArgs []interface{}
	receiver := NewBlock(2, "test/receiver")
	slot := receiver.RegisterSlot("onFired", func(args []interface{}) (interface{}, error) {
		gotArgs = args
		return nil, nil
	})

	sig.Subscribe(slot)
	emitter.EmitSignal("fired", "a", 1)

	// dispatchSlots only runs inside Work(); the message is already queued.
	assert.True(t, slot.HasMessage())
	_, err := receiver.Work()
	assert.NoError(t, err)
	assert.False(t, slot.HasMessage())
	assert.Equal(t, []interface{}{"a", 1}, gotArgs)
}

func TestBlockRegisterProbeCallsAndEmitsOnSignal(t *testing.T) {
	b := NewBlock(1, "test/probed")
	b.RegisterCall("count", 0, func(args []interface{}) (interface{}, error) {
		return 7, nil
	})
	sig := b.RegisterSignal("countResult")
	probe := b.RegisterProbe("getCount", "count", "countResult")

	var captured interface{}
	listener := NewBlock(2, "test/listener")
	slot := listener.RegisterSlot("onResult", func(args []interface{}) (interface{}, error) {
		if len(args) > 0 {
			captured = args[0]
		}
		return nil, nil
	})
	sig.Subscribe(slot)

	trigger := NewBlock(3, "test/trigger")
	triggerOut := trigger.RegisterSignal("trigger")
	triggerOut.Subscribe(probe)
	trigger.EmitSignal("trigger")

	_, err := b.Work()
	assert.NoError(t, err)

	_, err = listener.Work()
	assert.NoError(t, err)
	assert.Equal(t, 7, captured)
}

func TestBlockSlotFailureReportedToFailureSlots(t *testing.T) {
	b := dummyBlock()
	boom := errors.New("boom")
	slot := b.RegisterSlot("fail", func(args []interface{}) (interface{}, error) {
		return nil, boom
	})

	var got error
	b.OnFailure(func(err error) { got = err })

	trigger := NewBlock(2, "test/trigger")
	triggerOut := trigger.RegisterSignal("trigger")
	triggerOut.Subscribe(slot)
	trigger.EmitSignal("trigger")

	_, err := b.Work()
	assert.NoError(t, err) // slot errors surface via OnFailure, not Work()'s own return
	assert.Equal(t, boom, got)
}

func TestBlockInputOutputAliasDisplayRename(t *testing.T) {
	b := dummyBlock()
	assert.Equal(t, "in", b.Input("in").Alias())

	b.SetInputAlias("in", "left")
	b.SetOutputAlias("out", "right")
	assert.Equal(t, "left", b.Input("in").Alias())
	assert.Equal(t, "right", b.Output("out").Alias())
	assert.Equal(t, "in", b.Input("in").Name())
}
