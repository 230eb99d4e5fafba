package compile

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

// Package compile implements spec.md C6: flattening a hierarchical topology
// description (blocks, sub-topologies that merely pass connections through
// to their own internal endpoints, and the flows between them) into the set
// of flat flows whose endpoints are all real block ports.
//
// Grounded on the teacher's builder.go graph-resolution pass, which walks a
// user-declared set of edges and resolves named nodes into concrete task
// endpoints before wiring channels; flatten.go generalizes that single pass
// into the idempotent fixed-point closure spec 4.6 requires for arbitrarily
// nested pass-through sub-topologies, including the shared-pipe fan-in/
// fan-out case spec 8 scenario 4 describes.
import (
	"fmt"
	"sort"
)

// Endpoint mirrors the root package's flowmesh.Endpoint shape without
// importing it, keeping compile a leaf package free to be exercised by
// standalone tests with plain block-id/port-name pairs.
type Endpoint struct {
	Block uint64
	Port  string
}

func (e Endpoint) String() string { return fmt.Sprintf("%d.%s", e.Block, e.Port) }

// Flow is a declared edge between two endpoints.
type Flow struct {
	Src Endpoint
	Dst Endpoint
}

// PassThrough declares that a sub-topology's own port (Outer) is a pure
// alias for a deeper endpoint (Internal): spec 4.6 "a sub-topology port is a
// pure alias". A chain of PassThroughs is resolved transitively until an
// endpoint naming a real block is reached.
type PassThrough struct {
	Outer    Endpoint
	Internal Endpoint
}

// Error kinds returned by Flatten, matching spec 4.6's listed failure modes.
var (
	ErrUnknownBlock    = fmt.Errorf("unknown block referenced by flow or pass-through")
	ErrMultiDrive      = fmt.Errorf("input port driven by more than one flow")
	ErrDuplicateFlow   = fmt.Errorf("duplicate flow")
	ErrUnresolvedChain = fmt.Errorf("pass-through chain did not resolve to a real block")
)

// FlattenError reports a specific flow or endpoint that failed to resolve.
type FlattenError struct {
	Kind error
	Flow Flow
}

func (e *FlattenError) Error() string { return fmt.Sprintf("compile: %s: %s", e.Kind, e.Flow) }
func (e *FlattenError) Unwrap() error { return e.Kind }

// RealBlocks reports, for the closure below, whether an endpoint names a
// real (leaf) block rather than a sub-topology pass-through container.
type RealBlocks map[uint64]bool

// unionFind collapses pure-alias endpoints (PassThrough pairs) into a single
// representative node, since a sub-topology port and the internal endpoint
// it forwards to are, per spec 4.6, the same logical port.
type unionFind struct {
	parent map[Endpoint]Endpoint
}

func newUnionFind() *unionFind { return &unionFind{parent: make(map[Endpoint]Endpoint)} }

func (u *unionFind) find(e Endpoint) Endpoint {
	p, ok := u.parent[e]
	if !ok {
		return e
	}
	if p == e {
		return e
	}
	root := u.find(p)
	u.parent[e] = root
	return root
}

func (u *unionFind) union(a, b Endpoint) {
	ra, rb := u.find(a), u.find(b)
	if ra != rb {
		u.parent[ra] = rb
	}
}

// Flatten resolves every declared flow's endpoints to real block ports.
//
// passThroughs are pure 1:1 aliases (a sub-topology's own port standing in
// for a deeper endpoint); they are collapsed by union-find so both names
// refer to the same node. selfEdges are a sub-topology's internal
// transparent pipes (spec 4.6, "Sub.passIn, Sub.passOut") linking its own
// passIn port to its own passOut port: unlike an alias this is not a 1:1
// identification, so it is kept as a directed edge, letting an arbitrary
// number of external sources feeding passIn reach an arbitrary number of
// external sinks fed from passOut (spec 8 scenario 4's 2x2 cross-product).
//
// The algorithm walks forward from every flow whose resolved source is a
// real block, following declared flows and self-edge pipes through however
// many non-real nodes stand between it and a real destination, which is
// exactly the idempotent closure spec 4.6 describes: repeating the
// substitution changes nothing once every endpoint in the output set names
// a real block.
func Flatten(flows []Flow, passThroughs []PassThrough, selfEdges []Flow, isReal RealBlocks) ([]Flow, error) {
	uf := newUnionFind()
	for _, pt := range passThroughs {
		uf.union(pt.Outer, pt.Internal)
	}

	// containers is every non-real block known as a sub-topology, through a
	// pass-through or a self-edge; any other non-real block is unknown.
	containers := make(map[uint64]bool)
	for _, pt := range passThroughs {
		containers[pt.Outer.Block] = true
	}
	for _, se := range selfEdges {
		containers[se.Src.Block] = true
	}

	// outEdges indexes every declared flow and self-edge pipe, after alias
	// resolution, by its resolved source endpoint, tagging each edge as
	// pipe-derived or not. Walking forward through this index is how a flow
	// whose destination is a sub-topology port finds whatever that port
	// transparently feeds, however many layers deep.
	type edge struct {
		dst     Endpoint
		viaPipe bool
	}
	outEdges := make(map[Endpoint][]edge)
	addEdge := func(src, dst Endpoint, viaPipe bool) {
		s, d := uf.find(src), uf.find(dst)
		outEdges[s] = append(outEdges[s], edge{dst: d, viaPipe: viaPipe})
	}
	for _, f := range flows {
		addEdge(f.Src, f.Dst, false)
	}
	for _, se := range selfEdges {
		addEdge(se.Src, se.Dst, true)
	}

	seenFlow := make(map[Flow]bool, len(flows))
	driven := make(map[Endpoint]Flow, len(flows))

	// viaPipe marks a walk that has crossed a self-edge pipe: spec 8
	// scenario 4's shared pass-through lets several external sources reach
	// the same real sink through one internal pipe, which would otherwise
	// look like an ordinary multi-drive violation. Once a walk has crossed
	// a pipe edge the multi-drive check is relaxed for the flow it resolves
	// to; exact-duplicate flows are still rejected regardless.
	var walk func(node, origin Endpoint, visiting map[Endpoint]bool, viaPipe bool) error
	walk = func(node, origin Endpoint, visiting map[Endpoint]bool, viaPipe bool) error {
		if isReal[node.Block] {
			resolved := Flow{Src: origin, Dst: node}
			if seenFlow[resolved] {
				return &FlattenError{Kind: ErrDuplicateFlow, Flow: resolved}
			}
			if prior, ok := driven[node]; ok && prior != resolved && !viaPipe {
				return &FlattenError{Kind: ErrMultiDrive, Flow: resolved}
			}
			seenFlow[resolved] = true
			driven[node] = resolved
			return nil
		}
		if !containers[node.Block] {
			return &FlattenError{Kind: ErrUnknownBlock, Flow: Flow{Src: origin, Dst: node}}
		}
		if visiting[node] {
			return &FlattenError{Kind: ErrUnresolvedChain, Flow: Flow{Src: origin, Dst: node}}
		}
		visiting[node] = true
		defer delete(visiting, node)

		next := outEdges[node]
		if len(next) == 0 {
			return &FlattenError{Kind: ErrUnresolvedChain, Flow: Flow{Src: origin, Dst: node}}
		}
		for _, n := range next {
			if err := walk(n.dst, origin, visiting, viaPipe || n.viaPipe); err != nil {
				return err
			}
		}
		return nil
	}

	for _, f := range flows {
		src := uf.find(f.Src)
		if !isReal[src.Block] && !containers[src.Block] {
			return nil, &FlattenError{Kind: ErrUnknownBlock, Flow: f}
		}
		if !isReal[src.Block] {
			// This flow's source is itself a sub-topology port; it is
			// reached instead by the forward walk originating at whatever
			// real block ultimately feeds it.
			continue
		}
		dst := uf.find(f.Dst)
		if err := walk(dst, src, map[Endpoint]bool{}, false); err != nil {
			return nil, err
		}
	}

	flat := make([]Flow, 0, len(seenFlow))
	for f := range seenFlow {
		flat = append(flat, f)
	}
	sort.Slice(flat, func(i, j int) bool {
		if flat[i].Src.Block != flat[j].Src.Block {
			return flat[i].Src.Block < flat[j].Src.Block
		}
		if flat[i].Src.Port != flat[j].Src.Port {
			return flat[i].Src.Port < flat[j].Src.Port
		}
		if flat[i].Dst.Block != flat[j].Dst.Block {
			return flat[i].Dst.Block < flat[j].Dst.Block
		}
		return flat[i].Dst.Port < flat[j].Dst.Port
	})
	return flat, nil
}
