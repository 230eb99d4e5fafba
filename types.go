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
	"github.com/brunotm/flowmesh/buffer"
)

// BlockID is a process-unique, stable handle for a block or sub-topology
// held in a Topology's arena. Flows, dumps and stats address blocks by this
// handle; ports and actors at run time hold direct pointers (subscriber
// lists are []*Port, an actor's worker holds its *Block).
type BlockID uint64

// PortDirection distinguishes input from output ports.
type PortDirection uint8

// Port directions.
const (
	DirInput PortDirection = iota
	DirOutput
)

func (d PortDirection) String() string {
	if d == DirInput {
		return "input"
	}
	return "output"
}

// PortKind distinguishes streaming ports (element buffers) from
// signal/slot ports (message-only, no stream buffer).
type PortKind uint8

// Port kinds.
const (
	KindStream PortKind = iota
	KindMessage
)

// DType describes the element type of a streaming port: Name is an opaque
// label ("float32", "complex64", ...), Size is the per-element size in
// bytes. A zero Size means the port carries no stream payload (message-only).
type DType = buffer.DType

// Domain is an opaque tag describing the memory arena kind backing a
// buffer: "default", "circular", "CUDA:0", etc. Two domains are compatible
// only by a buffer manager on one side explicitly agreeing to serve the
// other (see buffer.Negotiate).
type Domain = buffer.Domain

// DefaultDomain is used by ports that don't request a specific memory arena.
const DefaultDomain = buffer.DefaultDomain
