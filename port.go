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

// Port implements the input/output accounting contract of spec.md C2. An
// input Port holds a FIFO of chunks produced upstream plus any labels and
// messages attached to them; an output Port holds a buffer manager, a list
// of subscriber input Ports to fan data out to, and its own pending label
// queue awaiting the next produce() (messages are delivered immediately).
import (
	"sync"

	"github.com/brunotm/flowmesh/buffer"
)

// touch is implemented by the owning Actor; an input Port stimulates its
// owner whenever data or a message is delivered to it, without this package
// needing to import the actor package back. Ports do not touch the owner's
// activity indicator; the Actor bumps it once per admitted Work call.
type touch interface {
	stimulate()
}

type noopTouch struct{}

func (noopTouch) stimulate() {}

// Port is a single named input or output on a Block.
type Port struct {
	name      string
	alias     string
	dir       PortDirection
	kind      PortKind
	dtype     DType
	owner     touch
	peerTouch touch // not used: Produce stimulates subscribers through their own owner

	mu sync.Mutex

	// Input side.
	chunks    []buffer.Chunk
	elements  int64
	labels    []Label
	messages  []Message
	reserve   int64
	mgr       buffer.Manager // negotiated manager; set on output ports only, where Buffer acquires from it

	// Output side.
	subs         []*Port
	pendingLbl   []Label
	domain       Domain
	provide      buffer.Provider
}

// NewInputPort constructs an unconnected input port of the given dtype.
func NewInputPort(name string, dtype DType) *Port {
	return &Port{name: name, dir: DirInput, kind: portKindFor(dtype), dtype: dtype, owner: noopTouch{}}
}

// NewOutputPort constructs an unconnected output port of the given dtype.
func NewOutputPort(name string, dtype DType) *Port {
	return &Port{name: name, dir: DirOutput, kind: portKindFor(dtype), dtype: dtype, owner: noopTouch{}, domain: DefaultDomain}
}

func portKindFor(dtype DType) PortKind {
	if dtype.Empty() {
		return KindMessage
	}
	return KindStream
}

// Name returns the port's declared name.
func (p *Port) Name() string { return p.name }

// SetAlias sets a human-display rename for this port (spec 4.3's
// set_input_alias/set_output_alias). It has no effect on connection
// resolution, dumps, or dispatch: those always key on Name.
func (p *Port) SetAlias(alias string) {
	p.mu.Lock()
	p.alias = alias
	p.mu.Unlock()
}

// Alias returns the port's display name: the alias set via SetAlias, or
// Name if none was set.
func (p *Port) Alias() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.alias == "" {
		return p.name
	}
	return p.alias
}

// Direction reports whether this is an input or output port.
func (p *Port) Direction() PortDirection { return p.dir }

// Kind reports whether this port carries stream elements or is message-only.
func (p *Port) Kind() PortKind { return p.kind }

// DType returns the port's element type.
func (p *Port) DType() DType { return p.dtype }

// SetOwner binds the touch callback (normally the owning Block's Actor)
// invoked whenever this port's accounting changes.
func (p *Port) SetOwner(owner touch) {
	if owner == nil {
		owner = noopTouch{}
	}
	p.owner = owner
}

// SetManager installs the buffer manager negotiated for this port (spec
// 4.1); an output port uses it to acquire write chunks. An input port only
// records it: Consume gives bytes back by releasing chunks, and never calls
// the manager itself.
func (p *Port) SetManager(mgr buffer.Manager) {
	p.mu.Lock()
	p.mgr = mgr
	p.mu.Unlock()
}

// SetProvider installs this port's (optional) buffer manager provider,
// consulted during domain negotiation (spec 4.1 resolution rule 1/2).
func (p *Port) SetProvider(domain Domain, provide buffer.Provider) {
	p.mu.Lock()
	p.domain = domain
	p.provide = provide
	p.mu.Unlock()
}

// Domain returns this port's preferred memory domain.
func (p *Port) Domain() Domain {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.domain
}

// Provider returns this port's optional buffer-manager provider, if any.
func (p *Port) Provider() buffer.Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.provide
}

// ---- Input port surface (spec 4.2) ----

// Elements returns the number of whole elements currently queued on an
// input port (0 for message-only ports).
func (p *Port) Elements() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.elements
}

// SetReserve declares the minimum number of elements that must be queued on
// this input port before its block is admitted for work (spec 4.2's
// set_reserve); Block.Ready compares it against Elements.
func (p *Port) SetReserve(n int64) {
	p.mu.Lock()
	p.reserve = n
	p.mu.Unlock()
}

// Reserve returns the currently configured reserve.
func (p *Port) Reserve() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reserve
}

// Buffer returns a contiguous view of the currently queued elements,
// coalescing the queued chunks on demand if more than one is present (spec
// 4.2's "buffer() ... may coalesce"). The returned Chunk must not be
// retained past the next Consume call.
func (p *Port) Buffer() buffer.Chunk {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch len(p.chunks) {
	case 0:
		return buffer.Chunk{}
	case 1:
		return p.chunks[0]
	default:
		total := 0
		for _, c := range p.chunks {
			total += c.Len()
		}
		coalesced := make([]byte, 0, total)
		for _, c := range p.chunks {
			coalesced = append(coalesced, c.Bytes()...)
			c.Release()
		}
		merged := buffer.WrapBytes(coalesced, p.dtype)
		p.chunks = []buffer.Chunk{merged}
		return merged
	}
}

// Labels returns the labels currently visible within the port's buffered
// view, ordered by index (spec 4.2's labels()).
func (p *Port) Labels() []Label {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Label, len(p.labels))
	copy(out, p.labels)
	return out
}

// Consume releases n elements from the front of this input port's buffer,
// releasing fully-consumed chunks (which returns a generic manager's slab
// once no view shares it), dropping labels inside the consumed range and
// shifting remaining label indices down (spec 4.2's consume()). Consuming
// more elements than available is a RangeError.
func (p *Port) Consume(n int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if n < 0 || n > p.elements {
		return &RangeError{Msg: "consume exceeds available elements"}
	}

	remaining := n
	for remaining > 0 && len(p.chunks) > 0 {
		c := p.chunks[0]
		ce := c.Elements()
		if ce == 0 {
			// Message-only dtype chunk shouldn't reach here; drop defensively.
			p.chunks = p.chunks[1:]
			continue
		}
		if ce <= remaining {
			remaining -= ce
			c.Release()
			p.chunks = p.chunks[1:]
			continue
		}
		advanced, err := c.Advance(int(remaining) * p.dtype.Size)
		if err != nil {
			return &RuntimeError{Msg: "consume advance", Cause: err}
		}
		c.Release()
		p.chunks[0] = advanced
		remaining = 0
	}

	p.elements -= n
	visible, rest := splitLabels(p.labels, n)
	_ = visible
	p.labels = rest
	return nil
}

// HasMessage reports whether a pending out-of-band message is queued.
func (p *Port) HasMessage() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.messages) > 0
}

// PopMessage dequeues the oldest pending message, if any (spec 4.2's
// pop_message()).
func (p *Port) PopMessage() (Message, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.messages) == 0 {
		return Message{}, false
	}
	m := p.messages[0]
	p.messages = p.messages[1:]
	return m, true
}

// deliver is invoked by an upstream output port's Produce/PostBuffer on
// every connected subscriber input port. labels carry indices relative to
// the first element of c; each is shifted by this subscriber's own
// queued-but-unconsumed element count so it indexes the port's buffer view.
// labels must be a copy owned by this subscriber.
func (p *Port) deliver(c buffer.Chunk, labels []Label) {
	p.mu.Lock()
	for i := range labels {
		labels[i].Index += p.elements
	}
	p.chunks = append(p.chunks, c)
	p.elements += c.Elements()
	if len(labels) > 0 {
		p.labels = append(p.labels, labels...)
		sortLabels(p.labels)
	}
	p.mu.Unlock()
	p.owner.stimulate()
}

func (p *Port) deliverMessage(m Message) {
	p.mu.Lock()
	p.messages = append(p.messages, m)
	p.mu.Unlock()
	p.owner.stimulate()
}

// ---- Output port surface (spec 4.2) ----

// Subscribe registers dst as a fan-out target of this output port. Used by
// the topology compiler when wiring a FlatFlow.
func (p *Port) Subscribe(dst *Port) {
	p.mu.Lock()
	p.subs = append(p.subs, dst)
	p.mu.Unlock()
}

// Unsubscribe removes dst from this output port's fan-out list.
func (p *Port) Unsubscribe(dst *Port) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, s := range p.subs {
		if s == dst {
			p.subs = append(p.subs[:i], p.subs[i+1:]...)
			return
		}
	}
}

// Subscribers returns a snapshot of this output port's current fan-out list.
func (p *Port) Subscribers() []*Port {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Port, len(p.subs))
	copy(out, p.subs)
	return out
}

// Buffer acquires up to size bytes of write space from the negotiated
// manager (spec 4.2's output buffer()). Returns a zero-length chunk when
// the pool is momentarily exhausted; callers must not busy-loop on this and
// should instead wait for the next activation.
func (p *Port) Buffer(size int) buffer.Chunk {
	p.mu.Lock()
	mgr := p.mgr
	p.mu.Unlock()
	if mgr == nil {
		return buffer.Chunk{}
	}
	return mgr.Acquire(size, p.dtype)
}

// Produce publishes a chunk's worth of elements to every subscriber (spec
// 4.2's produce()), retaining the chunk once per subscriber so each sees an
// independent FIFO view (I6), and hands each subscriber its own copy of the
// pending labels, which deliver shifts by that subscriber's already-queued
// element count.
func (p *Port) Produce(c buffer.Chunk) {
	p.mu.Lock()
	subs := make([]*Port, len(p.subs))
	copy(subs, p.subs)
	labels := p.pendingLbl
	p.pendingLbl = nil
	p.mu.Unlock()

	for i, s := range subs {
		var view buffer.Chunk
		if i == len(subs)-1 {
			view = c
		} else {
			view = c.Retain()
		}
		var deliverLabels []Label
		if len(labels) > 0 {
			deliverLabels = make([]Label, len(labels))
			copy(deliverLabels, labels)
		}
		s.deliver(view, deliverLabels)
	}
	if len(subs) == 0 {
		c.Release()
	}
}

// PostBuffer is a convenience for blocks that build their output in a
// scratch slice first, mirroring spec 4.2's post_buffer() helper: it wraps a
// copy of data in a chunk of its own and Produces it, without acquiring
// from the negotiated manager.
func (p *Port) PostBuffer(data []byte) {
	c := buffer.WrapBytes(append([]byte(nil), data...), p.dtype)
	p.Produce(c)
}

// PostLabel queues a label to be attached to the next chunk this port
// produces (spec 4.2's post_label()).
func (p *Port) PostLabel(l Label) {
	p.mu.Lock()
	p.pendingLbl = append(p.pendingLbl, l)
	p.mu.Unlock()
}

// PostMessage delivers an out-of-band message to every subscriber
// immediately, independent of the stream buffer (spec 4.2's post_message()).
func (p *Port) PostMessage(data interface{}) {
	p.mu.Lock()
	subs := make([]*Port, len(p.subs))
	copy(subs, p.subs)
	p.mu.Unlock()

	m := Message{Data: data}
	for _, s := range subs {
		s.deliverMessage(m)
	}
}
