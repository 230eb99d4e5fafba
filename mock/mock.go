package mock

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

// Package mock provides a minimal in-process harness for exercising a
// single flowmesh.Block's work() without standing up a full Topology:
// a source feeding a block's named input directly and a sink draining its
// named output, both bypassing buffer-manager negotiation entirely.
// Adapted from the teacher's mock/context.go test double, generalized from
// the teacher's single Context object to the Block/Port split this module
// uses.
import (
	"github.com/brunotm/flowmesh"
	"github.com/brunotm/flowmesh/buffer"
)

// Harness wires a single Block under test between a programmable Feed
// source and a Drain sink, letting tests call Block.Work() directly and
// inspect what it produced.
type Harness struct {
	Block *flowmesh.Block
	mgr   buffer.Manager
}

// New returns a Harness around b, installing a plain generic buffer manager
// on every output port so PostBuffer/Produce calls succeed without a
// Topology.Commit having run.
func New(b *flowmesh.Block) *Harness {
	mgr := buffer.NewGeneric(flowmesh.DefaultDomain, 1<<20, 64)
	for _, p := range b.Outputs() {
		p.SetManager(mgr)
	}
	return &Harness{Block: b, mgr: mgr}
}

// Feed appends raw bytes as a chunk on the named input port, as if an
// upstream producer had called Produce. It does so through a throwaway
// output port wired as this harness's sole upstream, exercising the same
// Subscribe/Produce path a real Topology would use.
func (h *Harness) Feed(port string, data []byte) {
	p := h.Block.Input(port)
	if p == nil {
		return
	}
	src := flowmesh.NewOutputPort("feed:"+port, p.DType())
	src.SetManager(h.mgr)
	src.Subscribe(p)
	c := buffer.WrapBytes(append([]byte(nil), data...), p.DType())
	src.Produce(c)
}

// FeedMessage delivers an out-of-band message to the named input port.
func (h *Harness) FeedMessage(port string, data interface{}) {
	p := h.Block.Input(port)
	if p == nil {
		return
	}
	src := flowmesh.NewOutputPort("feed:"+port, p.DType())
	src.Subscribe(p)
	src.PostMessage(data)
}

// Drain attaches a capturing sink to the named output port and returns a
// function that returns everything produced on it so far, coalesced into a
// single byte slice.
func (h *Harness) Drain(port string) func() []byte {
	src := h.Block.Output(port)
	sink := flowmesh.NewInputPort("sink", src.DType())
	src.Subscribe(sink)
	return func() []byte {
		c := sink.Buffer()
		if c.IsZero() {
			return nil
		}
		return append([]byte(nil), c.Bytes()...)
	}
}
