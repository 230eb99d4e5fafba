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

// Topology implements the C8 front-end: the user-facing object that holds a
// set of blocks (and nested sub-topologies as pass-through containers),
// declared flows between them, and drives Compile/Commit to turn that
// declaration into running actors scheduled on a Pool.
//
// Grounded on the teacher's Stream/Node graph builder (builder.go,
// stream.go): where the teacher resolves a fluent pipeline directly into
// channel wiring at build time, Topology separates declaration (AddBlock,
// Connect) from compilation (Commit), matching spec 4.6's transactional
// commit semantics.
import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/brunotm/flowmesh/actor"
	"github.com/brunotm/flowmesh/buffer"
	"github.com/brunotm/flowmesh/compile"
	"github.com/brunotm/flowmesh/scheduler"
)

// subTopology records a nested container's pass-through endpoints (spec
// 4.6): an outer (self) port forwards to one internal endpoint.
type subTopology struct {
	id        BlockID
	passes    []compile.PassThrough
	selfEdges []compile.Flow
}

// Topology is the top-level graph builder and runtime driver.
type Topology struct {
	mu sync.Mutex

	nextID BlockID
	blocks map[BlockID]*Block
	bound  map[BlockID]*BoundBlock
	subs   map[BlockID]*subTopology

	flows []Flow

	router    *scheduler.ShardRouter
	schedCfg  scheduler.Config
	committed bool
	destroyed bool
}

// NewTopology constructs an empty Topology. The scheduler pool is not
// started until Commit, so blocks may be added and connected freely before
// then (spec 4.6's "declare, then commit" model).
func NewTopology(schedCfg scheduler.Config) *Topology {
	return &Topology{
		blocks:   make(map[BlockID]*Block),
		bound:    make(map[BlockID]*BoundBlock),
		subs:     make(map[BlockID]*subTopology),
		schedCfg: schedCfg,
	}
}

// AddBlock registers a constructed Block under a fresh id and returns that
// id. The block must not yet be bound to another topology.
func (t *Topology) AddBlock(b *Block) BlockID {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextID++
	id := t.nextID
	b.id = id
	t.blocks[id] = b
	return id
}

// AddTopology registers an empty pass-through container identified by id,
// usable as a Connect endpoint whose ports forward to an internal endpoint
// declared via Expose.
func (t *Topology) AddTopology() BlockID {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextID++
	id := t.nextID
	t.subs[id] = &subTopology{id: id}
	return id
}

// Expose declares that outerPort on the sub-topology container id forwards
// to an internal endpoint (spec 4.6's pass-through semantics), one level
// down. Internal may itself be another sub-topology's outer port, forming a
// chain Flatten resolves transitively.
func (t *Topology) Expose(id BlockID, outerPort string, internal Endpoint) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.subs[id]
	if !ok {
		st = &subTopology{id: id}
		t.subs[id] = st
	}
	st.passes = append(st.passes, compile.PassThrough{
		Outer:    compile.Endpoint{Block: uint64(id), Port: outerPort},
		Internal: compile.Endpoint{Block: uint64(internal.Block), Port: internal.Port},
	})
}

// ExposeSelfEdge declares the sub-topology container id's internal
// transparent pipe (spec 4.6's "Sub.passIn, Sub.passOut"): unlike Expose,
// this is not a 1:1 alias — any number of external flows driving passIn are
// fanned out to every external flow fed from passOut (spec 8 scenario 4's
// shared pass-through cross-product).
func (t *Topology) ExposeSelfEdge(id BlockID, passIn, passOut string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.subs[id]
	if !ok {
		st = &subTopology{id: id}
		t.subs[id] = st
	}
	st.selfEdges = append(st.selfEdges, compile.Flow{
		Src: compile.Endpoint{Block: uint64(id), Port: passIn},
		Dst: compile.Endpoint{Block: uint64(id), Port: passOut},
	})
}

// Connect declares a flow between two endpoints. Declared flows are only
// validated and wired at Commit time.
func (t *Topology) Connect(src, dst Endpoint) {
	t.mu.Lock()
	t.flows = append(t.flows, Flow{Src: src, Dst: dst})
	t.mu.Unlock()
}

// Disconnect removes a previously declared flow, identified by its
// endpoints, from the pending declaration. No-op after Commit.
func (t *Topology) Disconnect(src, dst Endpoint) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.committed {
		return
	}
	for i, f := range t.flows {
		if f.Src == src && f.Dst == dst {
			t.flows = append(t.flows[:i], t.flows[i+1:]...)
			return
		}
	}
}

// Commit flattens the declared topology, validates every invariant spec 4.6
// lists (unknown block, self-loop, multi-drive, duplicate flow,
// domain-incompatible, the last reported as a *PortDomainError), negotiates
// a buffer manager per flow in parallel via errgroup, wires the resulting
// subscriptions, binds an Actor to every block, and starts the scheduler
// pool. Commit is all-or-nothing: any failure leaves the Topology exactly as
// it was before the call (spec 4.6 "transactional commit"). A Topology is
// committed once; a second Commit fails with ErrTopologyClosed.
func (t *Topology) Commit() error {
	t.mu.Lock()
	if t.committed {
		t.mu.Unlock()
		return &TopologyConnectError{Reason: ErrTopologyClosed}
	}
	for _, f := range t.flows {
		if f.Src.Block == f.Dst.Block && t.blocks[f.Src.Block] != nil {
			t.mu.Unlock()
			return &TopologyConnectError{Flow: f, Reason: ErrSelfLoop}
		}
	}

	real := compile.RealBlocks{}
	for id := range t.blocks {
		real[uint64(id)] = true
	}

	var passThroughs []compile.PassThrough
	var selfEdges []compile.Flow
	for _, st := range t.subs {
		passThroughs = append(passThroughs, st.passes...)
		selfEdges = append(selfEdges, st.selfEdges...)
	}

	cflows := make([]compile.Flow, len(t.flows))
	for i, f := range t.flows {
		cflows[i] = compile.Flow{
			Src: compile.Endpoint{Block: uint64(f.Src.Block), Port: f.Src.Port},
			Dst: compile.Endpoint{Block: uint64(f.Dst.Block), Port: f.Dst.Port},
		}
	}

	flat, err := compile.Flatten(cflows, passThroughs, selfEdges, real)
	if err != nil {
		t.mu.Unlock()
		return translateFlattenError(err)
	}

	flatFlows := make([]FlatFlow, len(flat))
	for i, f := range flat {
		flatFlows[i] = Flow{
			Src: Endpoint{Block: BlockID(f.Src.Block), Port: f.Src.Port},
			Dst: Endpoint{Block: BlockID(f.Dst.Block), Port: f.Dst.Port},
		}
	}

	type wiring struct {
		flow Flow
		src  *Port
		dst  *Port
		mgr  buffer.Manager
	}
	pending := make([]wiring, len(flatFlows))
	for i, f := range flatFlows {
		srcBlock := t.blocks[f.Src.Block]
		dstBlock := t.blocks[f.Dst.Block]
		if srcBlock == nil || dstBlock == nil {
			t.mu.Unlock()
			return &TopologyConnectError{Flow: f, Reason: ErrBlockNotFound}
		}
		srcPort := srcBlock.Output(f.Src.Port)
		dstPort := dstBlock.Input(f.Dst.Port)
		if srcPort == nil || dstPort == nil {
			t.mu.Unlock()
			return &TopologyConnectError{Flow: f, Reason: ErrPortNotFound}
		}
		pending[i] = wiring{flow: f, src: srcPort, dst: dstPort}
	}
	t.mu.Unlock()

	// Negotiate every flow's buffer manager concurrently: each negotiation
	// only touches the two ports involved, so this is safe to fan out.
	g, _ := errgroup.WithContext(context.Background())
	for i := range pending {
		i := i
		g.Go(func() error {
			w := &pending[i]
			mgr, nerr := buffer.Negotiate(w.src.Domain(), w.dst.Domain(), w.src.Provider(), w.dst.Provider(),
				func(d Domain) buffer.Manager { return buffer.NewGeneric(d, 1<<20, 64) })
			if nerr != nil {
				if de, ok := nerr.(*buffer.DomainError); ok {
					return &PortDomainError{SrcDomain: string(de.SrcDomain), DstDomain: string(de.DstDomain), Reason: de.Reason}
				}
				return &TopologyConnectError{Flow: w.flow, Reason: nerr}
			}
			w.mgr = mgr
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	for _, w := range pending {
		w.src.SetManager(w.mgr)
		w.src.Subscribe(w.dst)
	}

	shards := t.schedCfg.Size
	if shards < 1 {
		shards = 1
	}
	t.router = scheduler.NewShardRouter(scheduler.Config{Size: 1, YieldMode: t.schedCfg.YieldMode}, shards)
	for id, b := range t.blocks {
		bb := bindBlockActor(b, t.router.EnqueueFor(uint64(id)))
		t.bound[id] = bb
	}
	for _, b := range t.blocks {
		if err := b.Activate(); err != nil {
			return err
		}
	}
	for _, bb := range t.bound {
		bb.Actor.SetActive(true)
		bb.Actor.Stimulate(actor.KindStream)
	}
	t.committed = true
	return nil
}

func translateFlattenError(err error) error {
	fe, ok := err.(*compile.FlattenError)
	if !ok {
		return &TopologyConnectError{Reason: err}
	}
	flow := Flow{
		Src: Endpoint{Block: BlockID(fe.Flow.Src.Block), Port: fe.Flow.Src.Port},
		Dst: Endpoint{Block: BlockID(fe.Flow.Dst.Block), Port: fe.Flow.Dst.Port},
	}
	switch fe.Kind {
	case compile.ErrMultiDrive:
		return &TopologyConnectError{Flow: flow, Reason: ErrMultiDrive}
	case compile.ErrDuplicateFlow:
		return &TopologyConnectError{Flow: flow, Reason: ErrDuplicateFlow}
	default:
		return &TopologyConnectError{Flow: flow, Reason: ErrBlockNotFound}
	}
}

// WaitInactive blocks until every block's actor has gone idleDuration
// without an activity change, or timeout elapses first (spec 4.5).
func (t *Topology) WaitInactive(idleDuration, timeout time.Duration) bool {
	t.mu.Lock()
	actors := make([]*actor.Actor, 0, len(t.bound))
	for _, bb := range t.bound {
		actors = append(actors, bb.Actor)
	}
	t.mu.Unlock()
	return scheduler.WaitInactive(actors, idleDuration, timeout)
}

// Stats returns a snapshot of per-block work statistics keyed by block id,
// surfaced through C8's stats query and the internal/httpserver /stats
// endpoint.
func (t *Topology) Stats() map[BlockID]BlockStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[BlockID]BlockStats, len(t.bound))
	for id, bb := range t.bound {
		var lastErr string
		if e := bb.Actor.LastError(); e != nil {
			lastErr = e.Error()
		}
		out[id] = BlockStats{
			Path:     t.blocks[id].Path(),
			Active:   bb.Actor.Active(),
			Activity: bb.Actor.Activity(),
			LastErr:  lastErr,
		}
	}
	return out
}

// BlockStats is one block's entry in a Stats snapshot.
type BlockStats struct {
	Path     string
	Active   bool
	Activity int64
	LastErr  string
}

// Dump renders the topology as the JSON-serializable shape spec section 6's
// dump operation describes: "top" preserves the declared hierarchy (a
// sub-topology container appears opaquely, its internal pass-through not
// expanded); "flat" fully resolves every pass-through to the real block
// ports driving/driven by it; "rendered" is "flat" enriched with each
// block's live activity/active/last-error stats.
func (t *Topology) Dump(mode compile.DumpMode) (compile.Dump, error) {
	t.mu.Lock()
	real := compile.RealBlocks{}
	for id := range t.blocks {
		real[uint64(id)] = true
	}
	var passThroughs []compile.PassThrough
	var selfEdges []compile.Flow
	for _, st := range t.subs {
		passThroughs = append(passThroughs, st.passes...)
		selfEdges = append(selfEdges, st.selfEdges...)
	}
	cflows := make([]compile.Flow, len(t.flows))
	for i, f := range t.flows {
		cflows[i] = compile.Flow{
			Src: compile.Endpoint{Block: uint64(f.Src.Block), Port: f.Src.Port},
			Dst: compile.Endpoint{Block: uint64(f.Dst.Block), Port: f.Dst.Port},
		}
	}
	blocks := make(map[BlockID]*Block, len(t.blocks))
	for id, b := range t.blocks {
		blocks[id] = b
	}
	bound := make(map[BlockID]*BoundBlock, len(t.bound))
	for id, bb := range t.bound {
		bound[id] = bb
	}
	subIDs := make([]BlockID, 0, len(t.subs))
	for id := range t.subs {
		subIDs = append(subIDs, id)
	}
	t.mu.Unlock()

	if mode == compile.DumpTop {
		d := compile.Dump{Mode: compile.DumpTop}
		for id, b := range blocks {
			d.Blocks = append(d.Blocks, compile.BlockDump{ID: uint64(id), Path: b.Path(), Active: b.IsActive()})
		}
		for _, id := range subIDs {
			d.Blocks = append(d.Blocks, compile.BlockDump{ID: uint64(id), Path: "sub-topology"})
		}
		for _, f := range cflows {
			d.Flows = append(d.Flows, compile.FlowDump{Src: f.Src.String(), Dst: f.Dst.String()})
		}
		sortDump(&d)
		return d, nil
	}

	flat, err := compile.Flatten(cflows, passThroughs, selfEdges, real)
	if err != nil {
		return compile.Dump{}, translateFlattenError(err)
	}

	d := compile.Dump{Mode: mode}
	for id, b := range blocks {
		bd := compile.BlockDump{ID: uint64(id), Path: b.Path(), Active: b.IsActive()}
		if mode == compile.DumpRendered {
			if bb, ok := bound[id]; ok {
				bd.Stats = map[string]interface{}{
					"activity": bb.Actor.Activity(),
					"active":   bb.Actor.Active(),
				}
				if e := bb.Actor.LastError(); e != nil {
					bd.Stats["lastError"] = e.Error()
				}
			}
		}
		d.Blocks = append(d.Blocks, bd)
	}
	for _, f := range flat {
		d.Flows = append(d.Flows, compile.FlowDump{Src: f.Src.String(), Dst: f.Dst.String()})
	}
	sortDump(&d)
	return d, nil
}

func sortDump(d *compile.Dump) {
	sort.Slice(d.Blocks, func(i, j int) bool { return d.Blocks[i].ID < d.Blocks[j].ID })
	sort.Slice(d.Flows, func(i, j int) bool {
		if d.Flows[i].Src != d.Flows[j].Src {
			return d.Flows[i].Src < d.Flows[j].Src
		}
		return d.Flows[i].Dst < d.Flows[j].Dst
	})
}

// Destroy stops the scheduler pool, waiting for any in-flight work to
// return, then deactivates and destroys every block and releases the
// topology. Errors from the blocks' lifecycle transitions are not returned
// or logged. Calls after the first return nil without doing anything.
func (t *Topology) Destroy() error {
	t.mu.Lock()
	if t.destroyed {
		t.mu.Unlock()
		return nil
	}
	t.destroyed = true
	bound := make([]*BoundBlock, 0, len(t.bound))
	for _, bb := range t.bound {
		bound = append(bound, bb)
	}
	router := t.router
	t.mu.Unlock()

	if router != nil {
		router.Close()
	}
	for _, bb := range bound {
		bb.Actor.Deactivate()
		_ = bb.Block.Deactivate()
		_ = bb.Block.Destroy()
	}
	return nil
}
