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

import "fmt"

// Endpoint names one side of a declared Flow: the block (or sub-topology)
// identified by Block, and the named port on it.
type Endpoint struct {
	Block BlockID
	Port  string
}

func (e Endpoint) String() string { return fmt.Sprintf("%d.%s", uint64(e.Block), e.Port) }

// Flow is a user-declared (src, dst) edge between two endpoints. Endpoints
// may name a sub-topology's self port; Topology.Commit (via compile.Flatten)
// resolves those down to Flat flows whose endpoints are real block ports.
type Flow struct {
	Src Endpoint
	Dst Endpoint
}

func (f Flow) String() string { return fmt.Sprintf("%s -> %s", f.Src, f.Dst) }

// FlatFlow is a Flow whose both endpoints have been resolved to real block
// ports (Invariant I1).
type FlatFlow = Flow
