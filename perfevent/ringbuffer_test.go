// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package perfevent

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeSample(t *testing.T) {
	payload := make([]byte, 32+2*8)
	binary.LittleEndian.PutUint64(payload[0:8], 0xdeadbeef)
	binary.LittleEndian.PutUint32(payload[8:12], 111)
	binary.LittleEndian.PutUint32(payload[12:16], 222)
	binary.LittleEndian.PutUint64(payload[16:24], 123456789)
	binary.LittleEndian.PutUint64(payload[24:32], 2)
	binary.LittleEndian.PutUint64(payload[32:40], 0x401000)
	binary.LittleEndian.PutUint64(payload[40:48], 0x402000)

	s, err := decodeSample(payload)
	require.NoError(t, err)
	assert.Equal(t, uint64(0xdeadbeef), s.SampleID)
	assert.Equal(t, uint32(111), s.PID)
	assert.Equal(t, uint32(222), s.TID)
	assert.Equal(t, uint64(123456789), s.Time)
	assert.Equal(t, []uint64{0x401000, 0x402000}, s.Callchain)
}

func TestDecodeSampleTruncated(t *testing.T) {
	_, err := decodeSample(make([]byte, 10))
	assert.Error(t, err)
}

func TestDecodeSampleTruncatedCallchain(t *testing.T) {
	payload := make([]byte, 32)
	binary.LittleEndian.PutUint64(payload[24:32], 5) // claims 5 IPs, none present
	_, err := decodeSample(payload)
	assert.Error(t, err)
}

// newTestRingBuffer builds a RingBuffer over an in-memory data region
// without mmap, exercising the wrap-handling logic in readBytes
// directly (no kernel perf_event_open fd is needed to test this
// decode-only behavior).
func newTestRingBuffer(dataSize int) *RingBuffer {
	data := make([]byte, dataSize)
	return &RingBuffer{data: data}
}

func TestReadBytesNoWrap(t *testing.T) {
	r := newTestRingBuffer(16)
	copy(r.data, []byte{1, 2, 3, 4, 5, 6})
	got := r.readBytes(2, 4)
	assert.Equal(t, []byte{3, 4, 5, 6}, got)
}

func TestReadBytesWraps(t *testing.T) {
	r := newTestRingBuffer(8)
	copy(r.data, []byte{0, 0, 0, 0, 0, 0, 0xAA, 0xBB})
	got := r.readBytes(6, 4)
	assert.Equal(t, []byte{0xAA, 0xBB, 0, 0}, got)
}

func TestRecordKindForPerfRecordTypes(t *testing.T) {
	cases := []struct {
		typ  uint32
		want RecordKind
	}{
		{perfRecordSample, KindSample},
		{perfRecordThrottle, KindThrottle},
		{perfRecordUnthrottle, KindUnthrottle},
		{perfRecordLost, KindLost},
		{999, KindOther},
	}
	for _, c := range cases {
		hdr := recordHeader{Type: c.typ, Size: recordHeaderSize}
		var payload []byte
		if c.typ == perfRecordSample {
			payload = make([]byte, 32)
		}
		rec, err := decodeRecord(hdr, payload)
		require.NoError(t, err)
		assert.Equal(t, c.want, rec.Kind)
	}
}
