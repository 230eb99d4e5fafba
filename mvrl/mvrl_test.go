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

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTripBuffer(t *testing.T) {
	f := Frame{Seq: 42, Kind: FrameBuffer, StreamID: 7, Timestamp: 1000, Payload: []byte("0123")}
	wire, err := Encode(f)
	require.NoError(t, err)

	got, n, err := decodeAt(wire)
	require.NoError(t, err)
	assert.Equal(t, len(wire), n)
	assert.Equal(t, f.Seq&0xFFF, got.Seq)
	assert.Equal(t, FrameBuffer, got.Kind)
	assert.Equal(t, f.StreamID, got.StreamID)
	assert.Equal(t, f.Timestamp, got.Timestamp)
	assert.Equal(t, f.Payload, got.Payload)
}

func TestEncodeDecodeRoundTripMessageHasNoTimestamp(t *testing.T) {
	f := Frame{Seq: 2, Kind: FrameMessage, StreamID: 1, Payload: []byte("hello")}
	wire, err := Encode(f)
	require.NoError(t, err)
	// message frames carry ext=1,tsf=0, so the wire form omits the optional
	// 8-byte timestamp: total length is exactly header(16) + payload + trailer(4).
	assert.Len(t, wire, headerBaseLen+len(f.Payload)+trailerLen)

	got, err := Decode(wire)
	require.NoError(t, err)
	assert.Equal(t, FrameMessage, got.Kind)
	assert.Equal(t, uint64(0), got.Timestamp)
	assert.Equal(t, f.Payload, got.Payload)
}

func TestEncodeDecodeRoundTripLabel(t *testing.T) {
	label := LabelPayload{ID: "abc", Data: "x", Index: 3, Width: 1}
	wire, err := EncodeLabel(5, 2, 99, label)
	require.NoError(t, err)

	got, err := Decode(wire)
	require.NoError(t, err)
	globalIndex, decoded, err := DecodeLabel(got)
	require.NoError(t, err)
	assert.Equal(t, uint64(99), globalIndex)
	assert.Equal(t, label, decoded)
}

func TestMinimumFrameIsTwentyBytes(t *testing.T) {
	wire, err := Encode(Frame{Seq: 0, Kind: FrameMessage})
	require.NoError(t, err)
	assert.Len(t, wire, minFrameLen)
}

func TestEncodeRejectsOversizeFrame(t *testing.T) {
	_, err := Encode(Frame{Kind: FrameMessage, Payload: make([]byte, maxFrameLen)})
	assert.Error(t, err)
}

func TestScannerResyncsAcrossJunkBytes(t *testing.T) {
	f1, err := EncodeBuffer(1, 0, 0, []byte("aaaa"))
	require.NoError(t, err)
	f2, err := EncodeMessage(2, 0, []byte("hello"))
	require.NoError(t, err)

	junk := []byte{0xDE, 0xAD, 0xBE, 0xEF, 0x00, 0x11}
	stream := append(append(append([]byte{}, f1...), junk...), f2...)

	sc := NewScanner(bytes.NewReader(stream))

	got1, err := sc.Next()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), got1.Seq)

	got2, err := sc.Next()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), got2.Seq)
	assert.Equal(t, []byte("hello"), got2.Payload)

	assert.Equal(t, int64(len(junk)), sc.Skipped())
}

func TestDecodeBadMagicIsNonFatal(t *testing.T) {
	wire, err := Encode(Frame{Seq: 1, Kind: FrameBuffer, Payload: []byte("x")})
	require.NoError(t, err)
	corrupted := append([]byte{}, wire...)
	corrupted[0] ^= 0xFF

	_, _, err = decodeAt(corrupted)
	var fe *FrameError
	assert.ErrorAs(t, err, &fe)
}

func TestDecodeBadTrailerIsNonFatalAndResyncs(t *testing.T) {
	good, err := EncodeBuffer(1, 0, 0, []byte("aaaa"))
	require.NoError(t, err)
	corrupted := append([]byte{}, good...)
	corrupted[len(corrupted)-1] ^= 0xFF // flip a byte inside the trailer magic only

	_, _, err = decodeAt(corrupted)
	var fe *FrameError
	assert.ErrorAs(t, err, &fe)

	f2, err := EncodeMessage(2, 0, []byte("hello"))
	require.NoError(t, err)
	stream := append(corrupted, f2...)
	sc := NewScanner(bytes.NewReader(stream))

	got, err := sc.Next()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), got.Seq)
	assert.True(t, sc.Skipped() > 0)
}

func TestDecodeSeqRedundancyMismatchIsNonFatal(t *testing.T) {
	wire, err := Encode(Frame{Seq: 1, Kind: FrameBuffer, Payload: []byte("aaaa")})
	require.NoError(t, err)
	corrupted := append([]byte{}, wire...)
	corrupted[9] ^= 0x0F // flip the vita word's low seq-check nibble

	_, _, err = decodeAt(corrupted)
	var fe *FrameError
	assert.ErrorAs(t, err, &fe)
}

// TestScenario5BufferLabelMessageRoundTrip reproduces spec 8's scenario 5: a
// buffer frame (with its producer total-elements timestamp), a label frame
// (with its global index), and a message frame are framed back-to-back with
// a junk-byte prefix thrown in, and a Scanner recovers all three in order.
func TestScenario5BufferLabelMessageRoundTrip(t *testing.T) {
	bufFrame, err := EncodeBuffer(10, 1, 40, []byte("abcdefgh"))
	require.NoError(t, err)

	label := LabelPayload{ID: "lbl-1", Data: map[string]interface{}{"tag": "boundary"}, Index: 2, Width: 1}
	labelFrame, err := EncodeLabel(11, 1, 41, label)
	require.NoError(t, err)

	msgFrame, err := EncodeMessage(12, 1, []byte(`{"event":"flush"}`))
	require.NoError(t, err)

	junk := []byte{0x00, 0xFF, 0xAB}
	stream := append([]byte{}, junk...)
	stream = append(stream, bufFrame...)
	stream = append(stream, labelFrame...)
	stream = append(stream, msgFrame...)

	sc := NewScanner(bytes.NewReader(stream))

	got1, err := sc.Next()
	require.NoError(t, err)
	total, payload, err := DecodeBuffer(got1)
	require.NoError(t, err)
	assert.Equal(t, uint64(40), total)
	assert.Equal(t, []byte("abcdefgh"), payload)

	got2, err := sc.Next()
	require.NoError(t, err)
	globalIndex, decodedLabel, err := DecodeLabel(got2)
	require.NoError(t, err)
	assert.Equal(t, uint64(41), globalIndex)
	assert.Equal(t, label.ID, decodedLabel.ID)
	assert.Equal(t, label.Index, decodedLabel.Index)

	got3, err := sc.Next()
	require.NoError(t, err)
	msgPayload, err := DecodeMessage(got3)
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"event":"flush"}`), msgPayload)

	assert.Equal(t, int64(len(junk)), sc.Skipped())
}
