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

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFlattenPassesThroughFlowsBetweenRealBlocks(t *testing.T) {
	real := RealBlocks{1: true, 2: true}
	flows := []Flow{{Src: Endpoint{1, "out"}, Dst: Endpoint{2, "in"}}}

	flat, err := Flatten(flows, nil, nil, real)
	assert.NoError(t, err)
	assert.Equal(t, flows, flat)
}

func TestFlattenResolvesSingleLevelPassThrough(t *testing.T) {
	// Block 10 is a sub-topology container whose "out" port forwards to
	// real block 2's "in" port.
	real := RealBlocks{1: true, 2: true}
	passes := []PassThrough{
		{Outer: Endpoint{10, "out"}, Internal: Endpoint{2, "in"}},
	}
	flows := []Flow{{Src: Endpoint{1, "out"}, Dst: Endpoint{10, "out"}}}

	flat, err := Flatten(flows, passes, nil, real)
	assert.NoError(t, err)
	assert.Equal(t, []Flow{{Src: Endpoint{1, "out"}, Dst: Endpoint{2, "in"}}}, flat)
}

func TestFlattenResolvesChainedPassThroughs(t *testing.T) {
	real := RealBlocks{1: true, 3: true}
	passes := []PassThrough{
		{Outer: Endpoint{10, "p"}, Internal: Endpoint{11, "p"}},
		{Outer: Endpoint{11, "p"}, Internal: Endpoint{3, "in"}},
	}
	flows := []Flow{{Src: Endpoint{1, "out"}, Dst: Endpoint{10, "p"}}}

	flat, err := Flatten(flows, passes, nil, real)
	assert.NoError(t, err)
	assert.Equal(t, []Flow{{Src: Endpoint{1, "out"}, Dst: Endpoint{3, "in"}}}, flat)
}

func TestFlattenDetectsUnresolvedCycle(t *testing.T) {
	real := RealBlocks{1: true}
	passes := []PassThrough{
		{Outer: Endpoint{10, "p"}, Internal: Endpoint{11, "p"}},
		{Outer: Endpoint{11, "p"}, Internal: Endpoint{10, "p"}},
	}
	flows := []Flow{{Src: Endpoint{1, "out"}, Dst: Endpoint{10, "p"}}}

	_, err := Flatten(flows, passes, nil, real)
	var fe *FlattenError
	assert.ErrorAs(t, err, &fe)
	assert.True(t, errors.Is(err, ErrUnresolvedChain))
}

func TestFlattenRejectsUnknownBlock(t *testing.T) {
	real := RealBlocks{1: true}
	flows := []Flow{{Src: Endpoint{1, "out"}, Dst: Endpoint{99, "in"}}}

	_, err := Flatten(flows, nil, nil, real)
	var fe *FlattenError
	assert.ErrorAs(t, err, &fe)
}

func TestFlattenRejectsDuplicateFlow(t *testing.T) {
	real := RealBlocks{1: true, 2: true}
	flows := []Flow{
		{Src: Endpoint{1, "out"}, Dst: Endpoint{2, "in"}},
		{Src: Endpoint{1, "out"}, Dst: Endpoint{2, "in"}},
	}

	_, err := Flatten(flows, nil, nil, real)
	var fe *FlattenError
	assert.ErrorAs(t, err, &fe)
	assert.True(t, errors.Is(err, ErrDuplicateFlow))
}

func TestFlattenRejectsMultiDrive(t *testing.T) {
	real := RealBlocks{1: true, 2: true, 3: true}
	flows := []Flow{
		{Src: Endpoint{1, "out"}, Dst: Endpoint{3, "in"}},
		{Src: Endpoint{2, "out"}, Dst: Endpoint{3, "in"}},
	}

	_, err := Flatten(flows, nil, nil, real)
	var fe *FlattenError
	assert.ErrorAs(t, err, &fe)
	assert.True(t, errors.Is(err, ErrMultiDrive))
}

func TestFlattenIsIdempotentOnAlreadyFlatInput(t *testing.T) {
	real := RealBlocks{1: true, 2: true}
	flows := []Flow{{Src: Endpoint{1, "out"}, Dst: Endpoint{2, "in"}}}

	first, err := Flatten(flows, nil, nil, real)
	assert.NoError(t, err)
	second, err := Flatten(first, nil, nil, real)
	assert.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestFlattenSortsOutputDeterministically(t *testing.T) {
	real := RealBlocks{1: true, 2: true, 3: true}
	flows := []Flow{
		{Src: Endpoint{2, "out"}, Dst: Endpoint{3, "in"}},
		{Src: Endpoint{1, "out"}, Dst: Endpoint{3, "inB"}},
	}

	flat, err := Flatten(flows, nil, nil, real)
	assert.NoError(t, err)
	assert.Equal(t, Endpoint{1, "out"}, flat[0].Src)
	assert.Equal(t, Endpoint{2, "out"}, flat[1].Src)
}

// The remaining tests are modeled on spec.md section 8's named scenarios,
// built from the same Ping (real source), Pong (real sink), Passer and
// Nester (sub-topology containers) vocabulary the scenarios use. They check
// only the flattened flow set. Block ids below 10 are real Pings and Pongs
// (which id is which is stated per test); 10+ are Passer/Nester containers.

// Scenario 1: simple pass-through. Ping -> Passer.passIn, Passer.passIn is
// a pure alias for Pong.in.
func TestFlattenScenario1SimplePassThrough(t *testing.T) {
	real := RealBlocks{1: true, 2: true}
	passes := []PassThrough{
		{Outer: Endpoint{10, "passIn"}, Internal: Endpoint{2, "in"}},
	}
	flows := []Flow{{Src: Endpoint{1, "out"}, Dst: Endpoint{10, "passIn"}}}

	flat, err := Flatten(flows, passes, nil, real)
	assert.NoError(t, err)
	assert.Equal(t, []Flow{{Src: Endpoint{1, "out"}, Dst: Endpoint{2, "in"}}}, flat)
}

// Scenario 2: nested pass-through. Ping -> Nester.passIn -> Passer.passIn
// (alias of alias) -> Pong.in.
func TestFlattenScenario2NestedPassThrough(t *testing.T) {
	real := RealBlocks{1: true, 2: true}
	passes := []PassThrough{
		{Outer: Endpoint{20, "passIn"}, Internal: Endpoint{10, "passIn"}},
		{Outer: Endpoint{10, "passIn"}, Internal: Endpoint{2, "in"}},
	}
	flows := []Flow{{Src: Endpoint{1, "out"}, Dst: Endpoint{20, "passIn"}}}

	flat, err := Flatten(flows, passes, nil, real)
	assert.NoError(t, err)
	assert.Equal(t, []Flow{{Src: Endpoint{1, "out"}, Dst: Endpoint{2, "in"}}}, flat)
}

// Scenario 3: multi-source through pass-through. Two distinct Pings each
// feed their own Passer, both aliasing distinct ports of the same Pong, so
// no port is driven by more than one origin and no multi-drive error fires.
func TestFlattenScenario3MultiSourceThroughPassThrough(t *testing.T) {
	real := RealBlocks{1: true, 2: true, 3: true}
	passes := []PassThrough{
		{Outer: Endpoint{10, "passIn"}, Internal: Endpoint{3, "inA"}},
		{Outer: Endpoint{11, "passIn"}, Internal: Endpoint{3, "inB"}},
	}
	flows := []Flow{
		{Src: Endpoint{1, "out"}, Dst: Endpoint{10, "passIn"}},
		{Src: Endpoint{2, "out"}, Dst: Endpoint{11, "passIn"}},
	}

	flat, err := Flatten(flows, passes, nil, real)
	assert.NoError(t, err)
	assert.ElementsMatch(t, []Flow{
		{Src: Endpoint{1, "out"}, Dst: Endpoint{3, "inA"}},
		{Src: Endpoint{2, "out"}, Dst: Endpoint{3, "inB"}},
	}, flat)
}

// Scenario 4: shared pass-through, the 2x2 cross-product. A single Passer
// declares an internal self-edge (Sub.passIn, Sub.passOut); two external
// Pings each feed passIn and two external Pongs are each fed from passOut,
// so the pipe fans every source out to every sink.
func TestFlattenScenario4SharedPassThroughCrossProduct(t *testing.T) {
	real := RealBlocks{1: true, 2: true, 3: true, 4: true}
	selfEdges := []Flow{
		{Src: Endpoint{10, "passIn"}, Dst: Endpoint{10, "passOut"}},
	}
	flows := []Flow{
		{Src: Endpoint{1, "out"}, Dst: Endpoint{10, "passIn"}},
		{Src: Endpoint{2, "out"}, Dst: Endpoint{10, "passIn"}},
		{Src: Endpoint{10, "passOut"}, Dst: Endpoint{3, "in"}},
		{Src: Endpoint{10, "passOut"}, Dst: Endpoint{4, "in"}},
	}

	flat, err := Flatten(flows, nil, selfEdges, real)
	assert.NoError(t, err)
	assert.ElementsMatch(t, []Flow{
		{Src: Endpoint{1, "out"}, Dst: Endpoint{3, "in"}},
		{Src: Endpoint{1, "out"}, Dst: Endpoint{4, "in"}},
		{Src: Endpoint{2, "out"}, Dst: Endpoint{3, "in"}},
		{Src: Endpoint{2, "out"}, Dst: Endpoint{4, "in"}},
	}, flat)
}
