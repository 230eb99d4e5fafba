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

// Package flowmesh implements a dataflow execution engine: blocks connected
// by typed ports form a topology, which a scheduler drives to quiescence by
// repeatedly invoking each ready block's work function on a bounded worker
// pool.
//
// A Topology is built up with AddBlock, AddTopology and Connect, then
// Commit compiles the declared graph (flattening any pass-through
// sub-topologies), negotiates buffer managers across every flow, binds an
// actor to every block, and starts scheduling. WaitInactive blocks until
// the running topology settles, and Destroy tears it down.
package flowmesh
