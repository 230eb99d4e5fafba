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

// Encoder is implemented by any opaque message payload that can be
// blob-serialized to cross the mVRL framing boundary. The core never
// inspects the bytes; it is the producer/consumer blocks that agree on a
// format. Adapted from the teacher's Encoder/ByteEncoder/StringEncoder split.
type Encoder interface {
	Encode() ([]byte, error)
}

// ByteEncoder implements Encoder for raw byte payloads.
type ByteEncoder []byte

// Encode returns the bytes unchanged.
func (b ByteEncoder) Encode() ([]byte, error) { return b, nil }

// StringEncoder implements Encoder for string payloads.
type StringEncoder string

// Encode returns the UTF-8 bytes of the string.
func (s StringEncoder) Encode() ([]byte, error) { return []byte(s), nil }

// Message is the opaque object posted out-of-band of the stream on a port
// (spec 4.2 post_message / has_message / pop_message). Data may be any Go
// value; it is serialized only when it crosses an mVRL transport boundary.
type Message struct {
	Data interface{}
}

// StableID derives a content-addressed identifier for the message, the same
// way a Label's ID is derived, for callers that want to deduplicate messages
// across a reconnect or replay without assigning their own sequence.
func (m Message) StableID() string {
	if e, ok := m.Data.(Encoder); ok {
		if b, err := e.Encode(); err == nil {
			return stableID(b)
		}
	}
	return stableID(m.Data)
}
