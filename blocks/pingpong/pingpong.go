package pingpong

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

// Package pingpong provides the minimal source/sink fixture blocks used by
// spec.md section 8's pass-through, nested pass-through, and shared
// pass-through scenarios: Ping emits a fixed byte pattern on a timer-free
// best-effort basis (one full copy of the pattern per work() admission),
// Pong counts every byte it receives.
import (
	"github.com/brunotm/flowmesh"
)

// ByteDType is the element type both Ping and Pong exchange.
var ByteDType = flowmesh.DType{Name: "byte", Size: 1}

// NewPing returns a source block with a single "out" output port that
// emits the bytes of pattern, one full copy per work() admission, until
// limit copies have been produced (limit <= 0 means unbounded).
func NewPing(id flowmesh.BlockID, pattern []byte, limit int) *flowmesh.Block {
	b := flowmesh.NewBlock(id, "blocks/pingpong/ping")
	out := b.AddOutput("out", ByteDType)

	produced := 0
	b.SetWork(func(b *flowmesh.Block) error {
		if limit > 0 && produced >= limit {
			return nil
		}
		c := out.Buffer(len(pattern))
		if c.IsZero() {
			return nil
		}
		n := copy(c.Bytes(), pattern)
		if n < len(pattern) {
			// Partial acquire: only claim what was actually written.
			c, _ = c.Sub(0, n)
		}
		out.Produce(c)
		produced++
		if limit <= 0 || produced < limit {
			b.Yield()
		}
		return nil
	})
	return b
}

// NewPong returns a sink block with a single "in" input port that consumes
// every byte it sees as soon as it arrives, tallying the total via a
// registered query named "count".
func NewPong(id flowmesh.BlockID) *flowmesh.Block {
	b := flowmesh.NewBlock(id, "blocks/pingpong/pong")
	in := b.AddInput("in", ByteDType)

	var total int64
	b.RegisterQuery("count", func() interface{} { return total })

	b.SetWork(func(b *flowmesh.Block) error {
		n := in.Elements()
		if n == 0 {
			return nil
		}
		total += n
		return in.Consume(n)
	})
	return b
}
