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
	"fmt"

	"github.com/pkg/errors"
)

// Sentinel errors a caller can compare against with errors.Is, created with
// github.com/pkg/errors and returned as the Reason or Unwrap target of the
// typed errors below.
var (
	// ErrPortNotFound is returned when a referenced port name does not exist on a block.
	ErrPortNotFound = errors.New("port not found")

	// ErrBlockNotFound is returned when a referenced block id does not exist in the topology.
	ErrBlockNotFound = errors.New("block not found")

	// ErrMultiDrive is returned when committing would leave an input port driven
	// by more than one active flow.
	ErrMultiDrive = errors.New("input port already driven")

	// ErrDuplicateFlow is returned when a flow duplicates one already connected.
	ErrDuplicateFlow = errors.New("flow already connected")

	// ErrSelfLoop is returned when a flow connects a non-topology endpoint to itself.
	ErrSelfLoop = errors.New("self loop on non-topology endpoint")

	// ErrCallNotFound is returned when opaque call dispatch found no matching handler.
	ErrCallNotFound = errors.New("no such method")

	// ErrInvalidForward names misuse of PostMessage outside an active work()
	// call. No function in this module returns it: PostMessage does not
	// check whether a work() call is active.
	ErrInvalidForward = errors.New("invalid forward outside active work")

	// ErrTopologyClosed is returned by Commit on a topology that has already
	// been committed.
	ErrTopologyClosed = errors.New("topology destroyed")
)

// PortAccessError is raised when a referenced port name does not exist on a block.
type PortAccessError struct {
	Block string
	Port  string
}

func (e *PortAccessError) Error() string {
	return fmt.Sprintf("port access error: block %q has no port %q", e.Block, e.Port)
}

func (e *PortAccessError) Unwrap() error { return ErrPortNotFound }

// PortDomainError is raised when buffer domain negotiation fails between a
// producer and a consumer (see buffer.Negotiate).
type PortDomainError struct {
	SrcDomain string
	DstDomain string
	Reason    string
}

func (e *PortDomainError) Error() string {
	return fmt.Sprintf("port domain error: %s incompatible with %s: %s", e.SrcDomain, e.DstDomain, e.Reason)
}

// TopologyConnectError wraps multi-drive, duplicate-flow, unknown-block-id
// and self-loop failures raised while connecting or committing a topology.
type TopologyConnectError struct {
	Flow   Flow
	Reason error
}

func (e *TopologyConnectError) Error() string {
	return fmt.Sprintf("topology connect error on %s: %s", e.Flow, e.Reason)
}

func (e *TopologyConnectError) Unwrap() error { return e.Reason }

// BlockCallNotFoundError is raised when opaque call dispatch exhausts every
// resolution step (exact-arity overload, opaque handler, wildcard handler)
// without finding a match.
type BlockCallNotFoundError struct {
	Block  string
	Method string
}

func (e *BlockCallNotFoundError) Error() string {
	return fmt.Sprintf("block call not found: %s.%s", e.Block, e.Method)
}

func (e *BlockCallNotFoundError) Unwrap() error { return ErrCallNotFound }

// RangeError reports a produced/consumed accounting overflow or an
// out-of-range label/buffer index.
type RangeError struct {
	Msg string
}

func (e *RangeError) Error() string { return "range error: " + e.Msg }

// AssertionViolationError reports an internal consistency failure, notably a
// block lifecycle transition attempted from the wrong state. mVRL frame
// inconsistencies are reported by package mvrl's own *FrameError instead.
type AssertionViolationError struct {
	Msg string
}

func (e *AssertionViolationError) Error() string { return "assertion violation: " + e.Msg }

// DataFormatError reports malformed topology description JSON.
type DataFormatError struct {
	Msg string
}

func (e *DataFormatError) Error() string { return "data format error: " + e.Msg }

// RuntimeError wraps allocation, transport, and other failures that don't
// fit a more specific kind above.
type RuntimeError struct {
	Msg   string
	Cause error
}

func (e *RuntimeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("runtime error: %s: %s", e.Msg, e.Cause)
	}
	return "runtime error: " + e.Msg
}

func (e *RuntimeError) Unwrap() error { return e.Cause }
