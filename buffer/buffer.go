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

// Package buffer implements the allocator-backed, reference-counted chunk
// model described in spec.md C1: managers hand out Chunks viewing into a
// shared arena; a chunk can be sub-sliced cheaply and the arena is only
// released back to its owning pool once every chunk view sharing it drops.
import (
	"fmt"
	"sync/atomic"
)

// DType describes the element type of a streaming port.
type DType struct {
	Name string
	Size int
}

// Empty reports whether this dtype carries no stream elements (message-only port).
func (d DType) Empty() bool { return d.Size == 0 }

func (d DType) String() string {
	if d.Empty() {
		return "<none>"
	}
	return fmt.Sprintf("%s(%d)", d.Name, d.Size)
}

// Domain is an opaque tag describing the memory arena kind a buffer comes from.
type Domain string

// DefaultDomain is the domain used by ports that don't request a specific memory arena.
const DefaultDomain Domain = "default"

// arena is the actual backing allocation a Chunk views into. It is shared
// by every Chunk sub-slicing it and returned to its pool (if any) once the
// last reference drops.
type arena struct {
	bytes   []byte
	refs    int32
	release func(*arena)
}

func newArena(size int, release func(*arena)) *arena {
	return &arena{bytes: make([]byte, size), refs: 0, release: release}
}

func (a *arena) incref() { atomic.AddInt32(&a.refs, 1) }

func (a *arena) decref() {
	if atomic.AddInt32(&a.refs, -1) == 0 && a.release != nil {
		a.release(a)
	}
}

// Chunk is a reference-counted view (address, length in bytes, dtype) into
// a larger managed arena. Advancing a chunk shrinks its view without
// releasing the arena; the arena is only released when every chunk view
// sharing it has dropped (see Chunk.Release).
type Chunk struct {
	arena  *arena
	off    int
	length int
	dtype  DType
}

func newChunk(a *arena, off, length int, dtype DType) Chunk {
	a.incref()
	return Chunk{arena: a, off: off, length: length, dtype: dtype}
}

// Bytes returns the chunk's current view. The slice is only valid until the
// chunk is released or advanced; callers must not retain it past that point.
func (c Chunk) Bytes() []byte {
	if c.arena == nil {
		return nil
	}
	return c.arena.bytes[c.off : c.off+c.length]
}

// Len returns the chunk's current length in bytes.
func (c Chunk) Len() int { return c.length }

// Elements returns the number of whole elements currently visible, given the
// chunk's dtype. Returns 0 for message-only (empty dtype) chunks.
func (c Chunk) Elements() int64 {
	if c.dtype.Empty() {
		return 0
	}
	return int64(c.length / c.dtype.Size)
}

// DType returns the chunk's element type.
func (c Chunk) DType() DType { return c.dtype }

// IsZero reports a zero-length view, used by output ports to signal
// back-pressure when the pool has no free space (spec 4.2).
func (c Chunk) IsZero() bool { return c.length == 0 }

// Advance shrinks the chunk's view by n bytes from the front without
// releasing the backing arena (spec 4.1 "Chunk sub-slicing"). It is an
// error to advance past the current length.
func (c Chunk) Advance(n int) (Chunk, error) {
	if n < 0 || n > c.length {
		return Chunk{}, fmt.Errorf("buffer: advance %d exceeds chunk length %d", n, c.length)
	}
	c.arena.incref()
	return Chunk{arena: c.arena, off: c.off + n, length: c.length - n, dtype: c.dtype}, nil
}

// Sub returns a Chunk restricted to [n:n+length) bytes of the current view,
// retaining a reference to the same backing arena. Used by circular
// managers to expose the contiguous window around a wrap boundary.
func (c Chunk) Sub(n, length int) (Chunk, error) {
	if n < 0 || length < 0 || n+length > c.length {
		return Chunk{}, fmt.Errorf("buffer: sub-slice [%d:%d) exceeds chunk length %d", n, n+length, c.length)
	}
	c.arena.incref()
	return Chunk{arena: c.arena, off: c.off + n, length: length, dtype: c.dtype}, nil
}

// Release drops this chunk's reference to its arena. Once every chunk view
// sharing an arena has been released, the arena is returned to its pool
// (release is non-failing per spec 4.1).
func (c Chunk) Release() {
	if c.arena != nil {
		c.arena.decref()
	}
}

// Retain returns a new Chunk sharing the same view, incrementing the
// refcount. Used when a chunk must be visible to more than one downstream
// subscriber (spec I6 "visible to downstream inputs in FIFO order").
func (c Chunk) Retain() Chunk {
	if c.arena != nil {
		c.arena.incref()
	}
	return c
}

// WrapBytes adopts an already-allocated byte slice as a standalone,
// unpooled Chunk. Used by the port layer to coalesce several queued chunks
// into a single contiguous view on demand (spec 4.2 buffer()'s "may
// coalesce" note) without needing an owning Manager.
func WrapBytes(data []byte, dtype DType) Chunk {
	a := &arena{bytes: data}
	return newChunk(a, 0, len(data), dtype)
}
