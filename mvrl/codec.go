package mvrl

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

// codec.go implements spec 4.7's three encoding rules (buffer/label/message
// payloads) on top of frame.go's bit-exact wire layout. LabelPayload is
// mvrl's own serializable shape for a label, distinct from the root
// package's Label type, the same boundary-interface idiom compile's
// Endpoint/Flow and actor's Worker already use to keep this a leaf package.
import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// LabelPayload is the wire-serializable form of a label attached to a
// buffer frame (spec 3's Label: ID, opaque Data, Index, Width).
type LabelPayload struct {
	ID    string      `json:"id"`
	Data  interface{} `json:"data"`
	Index int64       `json:"index"`
	Width int64       `json:"width"`
}

// EncodeBuffer builds a FrameBuffer frame: ext=0, tsf=1, timestamp carries
// the producer's total-elements count at the start of the frame.
func EncodeBuffer(seq uint64, streamID uint32, totalElements uint64, payload []byte) ([]byte, error) {
	return Encode(Frame{
		Seq:       seq,
		Kind:      FrameBuffer,
		StreamID:  streamID,
		Timestamp: totalElements,
		Payload:   payload,
	})
}

// DecodeBuffer extracts a buffer frame's total-elements count and payload.
// It errors if f is not a FrameBuffer frame.
func DecodeBuffer(f Frame) (totalElements uint64, payload []byte, err error) {
	if f.Kind != FrameBuffer {
		return 0, nil, fmt.Errorf("mvrl: frame kind %d is not a buffer frame", f.Kind)
	}
	return f.Timestamp, f.Payload, nil
}

// EncodeLabel builds a FrameLabel frame: ext=1, tsf=1, timestamp carries the
// label's global index, payload is the jsoniter-serialized LabelPayload.
func EncodeLabel(seq uint64, streamID uint32, globalIndex uint64, label LabelPayload) ([]byte, error) {
	payload, err := json.Marshal(label)
	if err != nil {
		return nil, fmt.Errorf("mvrl: encoding label payload: %w", err)
	}
	return Encode(Frame{
		Seq:       seq,
		Kind:      FrameLabel,
		StreamID:  streamID,
		Timestamp: globalIndex,
		Payload:   payload,
	})
}

// DecodeLabel extracts a label frame's global index and LabelPayload. It
// errors if f is not a FrameLabel frame or its payload doesn't decode.
func DecodeLabel(f Frame) (globalIndex uint64, label LabelPayload, err error) {
	if f.Kind != FrameLabel {
		return 0, LabelPayload{}, fmt.Errorf("mvrl: frame kind %d is not a label frame", f.Kind)
	}
	if err := json.Unmarshal(f.Payload, &label); err != nil {
		return 0, LabelPayload{}, fmt.Errorf("mvrl: decoding label payload: %w", err)
	}
	return f.Timestamp, label, nil
}

// EncodeMessage builds a FrameMessage frame: ext=1, tsf=0, payload is the
// caller's already-serialized message object.
func EncodeMessage(seq uint64, streamID uint32, payload []byte) ([]byte, error) {
	return Encode(Frame{
		Seq:      seq,
		Kind:     FrameMessage,
		StreamID: streamID,
		Payload:  payload,
	})
}

// DecodeMessage extracts a message frame's raw payload. It errors if f is
// not a FrameMessage frame.
func DecodeMessage(f Frame) (payload []byte, err error) {
	if f.Kind != FrameMessage {
		return nil, fmt.Errorf("mvrl: frame kind %d is not a message frame", f.Kind)
	}
	return f.Payload, nil
}
