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

// Block implements the runtime object described in spec.md C3: a named
// collection of ports plus an opaque call/signal/slot registry and the
// Constructed->Inactive->Active->Inactive->Destructed lifecycle. Block
// itself never touches goroutines or scheduling; it is driven entirely by
// its Actor through the Worker interface (see actor_adapter.go), keeping
// the execution model swappable without touching block authors' code.
import (
	"fmt"
	"sync"
)

// State is a Block's lifecycle state (spec 4.3).
type State uint8

// Block lifecycle states.
const (
	StateConstructed State = iota
	StateInactive
	StateActive
	StateDestructed
)

func (s State) String() string {
	switch s {
	case StateConstructed:
		return "constructed"
	case StateInactive:
		return "inactive"
	case StateActive:
		return "active"
	case StateDestructed:
		return "destructed"
	}
	return "unknown"
}

// WorkFunc is a block's work() implementation: it is handed the block so it
// can read/write its own ports, and returns an error if this invocation
// failed. Whether it called Yield is tracked by the block itself and
// reported by Block.Work.
type WorkFunc func(b *Block) error

// call is one registered opaque-call handler, keyed by method name. Exact
// arity handlers are tried first, then the opaque ([]interface{}) handler,
// then the wildcard handler, matching spec 4.3's call-dispatch order.
type call struct {
	name    string
	arity   int
	hasArgs bool // true for exact-arity handlers (arity significant)
	fn      func(args []interface{}) (interface{}, error)
}

// Block is one node in a Topology: a named, typed set of ports plus its
// opaque-call registry and lifecycle state.
type Block struct {
	id   BlockID
	path string // registry path used to construct this block, e.g. "blocks/fir"

	mu    sync.Mutex
	state State

	inputs  map[string]*Port
	outputs map[string]*Port

	work    WorkFunc
	prepare func(b *Block) bool

	calls        map[string][]call
	wildcard     func(method string, args []interface{}) (interface{}, error)
	queries      map[string]func() interface{}
	signals      map[string]*Port
	slotPorts    map[string]*Port
	slotFns      map[string]func(args []interface{}) (interface{}, error)
	failureSlots []func(err error)

	yielded  bool
	actor    actorHandle
	userData interface{}
}

// actorHandle is the minimal surface Block needs from its bound Actor,
// satisfied by *actor.Actor via the adapter in actor_adapter.go.
type actorHandle interface {
	stimulate()
	yield()
}

// NewBlock constructs a Block identified by id, registered under the given
// factory path (used by topodesc to report provenance in dumps).
func NewBlock(id BlockID, path string) *Block {
	return &Block{
		id:      id,
		path:    path,
		state:   StateConstructed,
		inputs:  make(map[string]*Port),
		outputs: make(map[string]*Port),
		calls:   make(map[string][]call),
		queries: make(map[string]func() interface{}),
		actor:   noopActorHandle{},
	}
}

type noopActorHandle struct{}

func (noopActorHandle) stimulate() {}
func (noopActorHandle) yield()     {}

// ID returns this block's stable identity.
func (b *Block) ID() BlockID { return b.id }

// Path returns the factory path this block was constructed from.
func (b *Block) Path() string { return b.path }

// State returns the block's current lifecycle state.
func (b *Block) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// SetUserData attaches arbitrary block-specific state (filter coefficients,
// socket handles, ...), retrievable via UserData. Mirrors the teacher's
// convention of a block holding its own private fields directly; exposed
// here for generic wrapper blocks (e.g. topodesc's reflection-built blocks).
func (b *Block) SetUserData(v interface{}) { b.userData = v }

// UserData returns whatever was attached via SetUserData.
func (b *Block) UserData() interface{} { return b.userData }

// AddInput registers a new named input port (spec 4.3). Must be called
// before the block is activated.
func (b *Block) AddInput(name string, dtype DType) *Port {
	p := NewInputPort(name, dtype)
	p.SetOwner(b.actor)
	b.mu.Lock()
	b.inputs[name] = p
	b.mu.Unlock()
	return p
}

// AddOutput registers a new named output port.
func (b *Block) AddOutput(name string, dtype DType) *Port {
	p := NewOutputPort(name, dtype)
	p.SetOwner(b.actor)
	b.mu.Lock()
	b.outputs[name] = p
	b.mu.Unlock()
	return p
}

// Input returns the named input port, or nil if it doesn't exist.
func (b *Block) Input(name string) *Port {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.inputs[name]
}

// Output returns the named output port, or nil if it doesn't exist.
func (b *Block) Output(name string) *Port {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.outputs[name]
}

// Inputs returns a snapshot of every declared input port.
func (b *Block) Inputs() map[string]*Port { return b.snapshotPorts(b.inputs) }

// Outputs returns a snapshot of every declared output port.
func (b *Block) Outputs() map[string]*Port { return b.snapshotPorts(b.outputs) }

func (b *Block) snapshotPorts(src map[string]*Port) map[string]*Port {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]*Port, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

// SetWork installs the block's work() callback.
func (b *Block) SetWork(fn WorkFunc) { b.work = fn }

// SetPrepare installs the optional gate hook consulted before every
// activation attempt (spec 4.3's prepare()).
func (b *Block) SetPrepare(fn func(b *Block) bool) { b.prepare = fn }

// RegisterCall registers an opaque-call handler for method, significant to
// the given arity. A handler registered with arity < 0 is the opaque
// handler for method: it accepts any argument count and is tried after every
// exact-arity handler for method fails to match, and before the block-wide
// wildcard (spec 4.3's call dispatch order).
func (b *Block) RegisterCall(method string, arity int, fn func(args []interface{}) (interface{}, error)) {
	b.mu.Lock()
	b.calls[method] = append(b.calls[method], call{name: method, arity: arity, hasArgs: arity >= 0, fn: fn})
	b.mu.Unlock()
}

// RegisterWildcard installs the block-wide fallback handler consulted when
// no method-specific handler, of any arity, matches (spec 4.3's
// "base-class converters" step, generalized to a single catch-all hook).
func (b *Block) RegisterWildcard(fn func(method string, args []interface{}) (interface{}, error)) {
	b.wildcard = fn
}

// RegisterQuery installs a named, read-only introspection hook, invoked
// through Query; Topology dumps and stats do not include query results. Unlike RegisterProbe/RegisterSignal/RegisterSlot
// (spec 4.3's message-flow signal/slot model), a query is invoked directly
// by the host process, never over a port.
func (b *Block) RegisterQuery(name string, fn func() interface{}) {
	b.mu.Lock()
	b.queries[name] = fn
	b.mu.Unlock()
}

// Query invokes a previously registered query by name.
func (b *Block) Query(name string) (interface{}, bool) {
	b.mu.Lock()
	fn, ok := b.queries[name]
	b.mu.Unlock()
	if !ok {
		return nil, false
	}
	return fn(), true
}

// RegisterSignal declares a named outbound event stream (spec 4.3): a
// message-kind output port. Connecting a signal to a slot by name (an
// ordinary Connect between their ports) creates a message-only flow.
// EmitSignal posts to it.
func (b *Block) RegisterSignal(name string) *Port {
	p := b.AddOutput(name, DType{})
	b.mu.Lock()
	if b.signals == nil {
		b.signals = make(map[string]*Port)
	}
	b.signals[name] = p
	b.mu.Unlock()
	return p
}

// EmitSignal posts args on a previously registered signal. A signal with no
// subscribers is a silent no-op, matching PostMessage's fan-out semantics.
func (b *Block) EmitSignal(name string, args ...interface{}) {
	b.mu.Lock()
	p := b.signals[name]
	b.mu.Unlock()
	if p == nil {
		return
	}
	p.PostMessage(args)
}

// RegisterSlot declares a named message-kind input port whose incoming
// messages, one per queued message, are dispatched to fn at the top of the
// next Work() call (spec 4.3). fn's args are whatever EmitSignal (or a
// direct PostMessage) posted to the connected signal.
func (b *Block) RegisterSlot(name string, fn func(args []interface{}) (interface{}, error)) *Port {
	p := b.AddInput(name, DType{})
	b.mu.Lock()
	if b.slotFns == nil {
		b.slotFns = make(map[string]func(args []interface{}) (interface{}, error))
	}
	if b.slotPorts == nil {
		b.slotPorts = make(map[string]*Port)
	}
	b.slotFns[name] = fn
	b.slotPorts[name] = p
	b.mu.Unlock()
	return p
}

// RegisterProbe installs a slot that, when invoked, calls a registered call
// by name and emits the result on a named signal (spec 4.3's literal probe
// definition — not to be confused with RegisterQuery, this package's direct
// read-only introspection hook).
func (b *Block) RegisterProbe(name, callName, signalName string) *Port {
	return b.RegisterSlot(name, func(args []interface{}) (interface{}, error) {
		result, err := b.Call(callName, args...)
		if err != nil {
			return nil, err
		}
		b.EmitSignal(signalName, result)
		return result, nil
	})
}

// dispatchSlots drains every registered slot port's pending messages,
// invoking each slot's handler once per message, in the order they arrived.
// Invoked at the top of every Work() call.
func (b *Block) dispatchSlots() {
	b.mu.Lock()
	ports := make(map[string]*Port, len(b.slotPorts))
	for k, v := range b.slotPorts {
		ports[k] = v
	}
	fns := make(map[string]func(args []interface{}) (interface{}, error), len(b.slotFns))
	for k, v := range b.slotFns {
		fns[k] = v
	}
	b.mu.Unlock()

	for name, port := range ports {
		fn := fns[name]
		if fn == nil {
			continue
		}
		for port.HasMessage() {
			m, ok := port.PopMessage()
			if !ok {
				break
			}
			args, _ := m.Data.([]interface{})
			if _, err := fn(args); err != nil {
				b.reportFailure(err)
			}
		}
	}
}

// SetInputAlias sets a human-display rename for an existing input port
// (spec 4.3's set_input_alias). A no-op if name doesn't exist.
func (b *Block) SetInputAlias(name, alias string) {
	if p := b.Input(name); p != nil {
		p.SetAlias(alias)
	}
}

// SetOutputAlias sets a human-display rename for an existing output port
// (spec 4.3's set_output_alias). A no-op if name doesn't exist.
func (b *Block) SetOutputAlias(name, alias string) {
	if p := b.Output(name); p != nil {
		p.SetAlias(alias)
	}
}

// OnFailure registers a slot invoked whenever this block's work() returns a
// non-nil error (a supplemental feature recovered from original_source/'s
// fault-reporting slot, since spec.md's error model otherwise only logs and
// continues; see DESIGN.md).
func (b *Block) OnFailure(fn func(err error)) {
	b.mu.Lock()
	b.failureSlots = append(b.failureSlots, fn)
	b.mu.Unlock()
}

func (b *Block) reportFailure(err error) {
	b.mu.Lock()
	slots := make([]func(error), len(b.failureSlots))
	copy(slots, b.failureSlots)
	b.mu.Unlock()
	for _, fn := range slots {
		fn(err)
	}
}

// Call dispatches an opaque method invocation following spec 4.3's
// resolution order: exact-arity handler for method, then an opaque handler
// registered without an arity constraint, then the block-wide wildcard,
// then a BlockCallNotFoundError.
func (b *Block) Call(method string, args ...interface{}) (interface{}, error) {
	b.mu.Lock()
	handlers := append([]call(nil), b.calls[method]...)
	wildcard := b.wildcard
	b.mu.Unlock()

	for _, h := range handlers {
		if h.hasArgs && h.arity == len(args) {
			return h.fn(args)
		}
	}
	for _, h := range handlers {
		if !h.hasArgs {
			return h.fn(args)
		}
	}
	if wildcard != nil {
		return wildcard(method, args)
	}
	return nil, &BlockCallNotFoundError{Block: b.path, Method: method}
}

// Yield records that this tick's work() wants to be reactivated immediately
// after returning, without waiting for a new external stimulus (spec 4.3's
// yield()).
func (b *Block) Yield() {
	b.yielded = true
	b.actor.yield()
}

// Prepare runs the block's optional gate hook; true (the default, if none
// is installed) allows the actor to proceed with its admission check.
func (b *Block) Prepare() bool {
	if b.prepare == nil {
		return true
	}
	return b.prepare(b)
}

// Work invokes the block's installed work() callback exactly once, clearing
// and reporting the yielded flag set by any Yield() call made during it.
func (b *Block) Work() (yielded bool, err error) {
	b.dispatchSlots()
	if b.work == nil {
		return false, nil
	}
	b.yielded = false
	err = b.work(b)
	if err != nil {
		b.reportFailure(err)
	}
	return b.yielded, err
}

// Activate transitions Inactive (or freshly Constructed) -> Active (spec
// 4.3). Activating a block in any other state is a programming error
// surfaced as an AssertionViolationError.
func (b *Block) Activate() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != StateInactive && b.state != StateConstructed {
		return &AssertionViolationError{Msg: fmt.Sprintf("block %d: activate from state %s", b.id, b.state)}
	}
	b.state = StateActive
	return nil
}

// Deactivate transitions Active -> Inactive.
func (b *Block) Deactivate() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != StateActive {
		return &AssertionViolationError{Msg: fmt.Sprintf("block %d: deactivate from state %s", b.id, b.state)}
	}
	b.state = StateInactive
	return nil
}

// Destroy transitions Inactive -> Destructed. A destroyed block rejects
// further lifecycle transitions.
func (b *Block) Destroy() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != StateInactive && b.state != StateConstructed {
		return &AssertionViolationError{Msg: fmt.Sprintf("block %d: destroy from state %s", b.id, b.state)}
	}
	b.state = StateDestructed
	return nil
}

// IsActive reports whether the block is currently in StateActive.
func (b *Block) IsActive() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state == StateActive
}

// Ready reports, for the owning Actor's admission check, whether every
// stream input honoring its configured reserve has enough queued elements
// to run (at least one, and at least its reserve) and whether any input,
// stream or message-only, has a pending out-of-band message. A block whose
// inputs are all message-only is never stream-ready. Output write space is
// not checked here.
func (b *Block) Ready() (streamReady bool, hasMessage bool) {
	b.mu.Lock()
	inputs := make([]*Port, 0, len(b.inputs))
	for _, p := range b.inputs {
		inputs = append(inputs, p)
	}
	b.mu.Unlock()

	if len(inputs) == 0 {
		// Source blocks (no inputs) are always stream-ready; admission is
		// then gated purely by output back-pressure, checked in work().
		streamReady = true
	}

	streamInputs, satisfied := 0, 0
	for _, p := range inputs {
		if p.HasMessage() {
			hasMessage = true
		}
		if p.Kind() == KindMessage {
			continue
		}
		streamInputs++
		if n := p.Elements(); n > 0 && n >= p.Reserve() {
			satisfied++
		}
	}
	if streamInputs > 0 && satisfied == streamInputs {
		streamReady = true
	}
	return streamReady, hasMessage
}

// BindActor attaches the Actor adapter driving this block's lifecycle and
// propagates it to every already-registered port so port accounting
// stimulates the right actor. Called once by the owning Topology when the
// block is added.
func (b *Block) BindActor(a actorHandle) {
	b.mu.Lock()
	b.actor = a
	for _, p := range b.inputs {
		p.SetOwner(a)
	}
	for _, p := range b.outputs {
		p.SetOwner(a)
	}
	b.mu.Unlock()
}
