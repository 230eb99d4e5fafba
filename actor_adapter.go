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

// This file wires the leaf actor package to Block and Port without either
// of those depending back on actor: blockWorker adapts *Block to
// actor.Worker, and actorTouch adapts *actor.Actor to the touch/actorHandle
// interfaces Port and Block expect from their owner.
import (
	"github.com/brunotm/flowmesh/actor"
)

// blockWorker satisfies actor.Worker by delegating to a *Block, translating
// Block.Deactivate's error return (an internal lifecycle-assertion result)
// into the no-return-value shape actor.Worker requires: a deactivation
// ordering violation here is already a programming error the caller could
// not act on, so it is dropped after being surfaced once via the block's
// failure slots.
type blockWorker struct {
	block *Block
}

func (w blockWorker) Ready() (streamReady bool, hasMessage bool) { return w.block.Ready() }
func (w blockWorker) Prepare() bool                               { return w.block.Prepare() }
func (w blockWorker) Work() (bool, error)                         { return w.block.Work() }

func (w blockWorker) Deactivate() {
	if err := w.block.Deactivate(); err != nil {
		w.block.reportFailure(err)
	}
}

// actorTouch adapts a *actor.Actor to the touch (Port) and actorHandle
// (Block) interfaces, so both can stimulate their owning actor without
// importing the actor package themselves.
type actorTouch struct {
	a *actor.Actor
}

func (t actorTouch) stimulate() { t.a.Stimulate(actor.KindStream) }
func (t actorTouch) yield()     { t.a.Stimulate(actor.KindYield) }

// BoundBlock pairs a Block with the Actor driving it, returned by
// Topology.AddBlock once the two are wired together.
type BoundBlock struct {
	Block *Block
	Actor *actor.Actor
}

// bindBlockActor creates the Actor for block, wires it both ways, and
// returns the pair. enqueue is the owning scheduler pool's ready-queue
// push function.
func bindBlockActor(block *Block, enqueue func(*actor.Actor)) *BoundBlock {
	a := actor.New(blockWorker{block: block}, enqueue)
	block.BindActor(actorTouch{a: a})
	return &BoundBlock{Block: block, Actor: a}
}
