package topodesc

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

// Package topodesc parses the JSON topology description spec.md section 6
// defines: named thread pools, blocks constructed from a registry path with
// positional arguments, optional post-construction calls, and the
// connections between them encoded as 4-element arrays.
import (
	"encoding/json"
	"fmt"
	"io"

	jsoniter "github.com/json-iterator/go"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// SelfID is any of the ids spec section 6 reserves to denote the topology
// being constructed ("self", "this", or the empty string).
func SelfID(id string) bool {
	return id == "self" || id == "this" || id == ""
}

// ThreadPoolDesc describes one entry under "threadPools" (spec 4.5's
// thread-pool config record, addressed from blocks by name).
type ThreadPoolDesc struct {
	Size         int    `json:"size"`
	AffinityMask uint64 `json:"affinityMask,omitempty"`
	Priority     int    `json:"priority,omitempty"`
	YieldMode    string `json:"yieldMode,omitempty"` // "condition" | "spin"
}

// CallDesc describes one opaque call made against a block right after
// construction, before the topology is committed (e.g. setting filter taps).
type CallDesc struct {
	Name string        `json:"name"`
	Args []interface{} `json:"args,omitempty"`
}

// BlockDesc describes one block entry under "blocks". Args are positional,
// matching the registry Factory signature: the external evaluator resolves
// each element to a JSON literal or an expression before this package ever
// sees it, so topodesc only has to pass the slice through.
type BlockDesc struct {
	ID         string        `json:"id"`
	Path       string        `json:"path"`
	Args       []interface{} `json:"args,omitempty"`
	Calls      []CallDesc    `json:"calls,omitempty"`
	ThreadPool string        `json:"threadPool,omitempty"`
}

// ConnectionDesc is one entry under "connections": spec section 6 encodes a
// connection as a 4-element array ["<srcId>","<srcPort>","<dstId>","<dstPort>"],
// not an object, so MarshalJSON/UnmarshalJSON implement that wire shape
// directly rather than relying on struct-tag field encoding.
type ConnectionDesc struct {
	SrcID   string
	SrcPort string
	DstID   string
	DstPort string
}

// MarshalJSON encodes a connection as its 4-element array form.
func (c ConnectionDesc) MarshalJSON() ([]byte, error) {
	return json.Marshal([4]string{c.SrcID, c.SrcPort, c.DstID, c.DstPort})
}

// UnmarshalJSON decodes a connection from its 4-element array form.
func (c *ConnectionDesc) UnmarshalJSON(data []byte) error {
	var arr [4]string
	if err := json.Unmarshal(data, &arr); err != nil {
		return fmt.Errorf("topodesc: connection must be a 4-element [srcId, srcPort, dstId, dstPort] array: %w", err)
	}
	c.SrcID, c.SrcPort, c.DstID, c.DstPort = arr[0], arr[1], arr[2], arr[3]
	return nil
}

// Description is the top-level JSON document spec.md section 6 defines.
type Description struct {
	ThreadPools map[string]ThreadPoolDesc `json:"threadPools,omitempty"`
	Blocks      []BlockDesc               `json:"blocks"`
	Connections []ConnectionDesc          `json:"connections"`
}

// Decode parses a Description from r.
func Decode(r io.Reader) (Description, error) {
	var d Description
	err := jsonAPI.NewDecoder(r).Decode(&d)
	return d, err
}

// Encode serializes v as indented JSON, used both to write a Description
// back out and to serve C8's dump/stats JSON payloads.
func Encode(w io.Writer, v interface{}) error {
	enc := jsonAPI.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
