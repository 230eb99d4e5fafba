package buffer

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

import "sync"

// circularManager backs ports that set an input reserve and therefore need
// a sliding window over the stream: a chunk of up to half the capacity is
// always contiguous regardless of wrap position (spec 4.1 "circular").
//
// A real double-mapped ring buffer gets this for free by mapping the same
// physical pages twice in virtual memory; without portable access to that
// trick we simulate it by keeping a single backing array and, only when a
// requested window actually straddles the wrap boundary, stitching it into
// a small scratch arena so the caller still observes a contiguous view.
type circularManager struct {
	domain   Domain
	mu       sync.Mutex
	data     []byte
	cap      int
	writePos int
	used     int
}

// NewCircular returns a circular buffer manager of the given byte capacity
// for the given domain.
func NewCircular(domain Domain, capacity int) Manager {
	if capacity <= 0 {
		capacity = 64 * 1024
	}
	return &circularManager{domain: domain, data: make([]byte, capacity), cap: capacity}
}

func (c *circularManager) Domain() Domain { return c.domain }

// Acquire returns the next contiguous write region, up to the physical end
// of the ring. It never spans the wrap boundary: a caller that needs more
// space than is left before wrap gets a short chunk and must call Acquire
// again after Produce to get the remainder, mirroring spec 4.2's contract
// that buffer() "may return a zero-length view when the pool is empty".
func (c *circularManager) Acquire(size int, dtype DType) Chunk {
	c.mu.Lock()
	defer c.mu.Unlock()

	free := c.cap - c.used
	if free <= 0 {
		return Chunk{}
	}
	if size > free {
		size = free
	}

	untilWrap := c.cap - c.writePos
	if size > untilWrap {
		size = untilWrap
	}
	if size == 0 {
		return Chunk{}
	}

	a := &arena{bytes: c.data}
	return newChunk(a, c.writePos, size, dtype)
}

// Commit advances the write cursor and usage accounting after a producer
// writes n bytes into a chunk returned by Acquire. It is not part of the
// Manager interface, and the port layer does not call it: the writer of the
// chunk must.
func (c *circularManager) Commit(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writePos = (c.writePos + n) % c.cap
	c.used += n
}

// Release gives back n consumed bytes starting at the oldest position. Like
// Commit, it is not called by the port layer; the consumer must call it.
func (c *circularManager) Release(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n > c.used {
		n = c.used
	}
	c.used -= n
}

// Window returns a contiguous view of length bytes starting at byte offset
// `start` (relative to the ring's logical oldest byte, i.e. writePos-used).
// If the requested window straddles the physical wrap boundary, it is
// stitched into a freshly allocated scratch arena so the result is always
// contiguous, satisfying the "chunk + epsilon of history" guarantee a
// sliding-window consumer relies on.
func (c *circularManager) Window(start, length int, dtype DType) Chunk {
	c.mu.Lock()
	defer c.mu.Unlock()

	if length <= 0 || length > c.used {
		return Chunk{}
	}

	oldest := (c.writePos - c.used + c.cap) % c.cap
	from := (oldest + start) % c.cap

	if from+length <= c.cap {
		a := &arena{bytes: c.data}
		return newChunk(a, from, length, dtype)
	}

	// Straddles the wrap: stitch into a scratch arena.
	scratch := make([]byte, length)
	firstPart := c.cap - from
	copy(scratch[:firstPart], c.data[from:c.cap])
	copy(scratch[firstPart:], c.data[:length-firstPart])
	a := &arena{bytes: scratch}
	return newChunk(a, 0, length, dtype)
}
