// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package perfevent

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// rawAttr mirrors struct perf_event_attr from
// include/uapi/linux/perf_event.h. golang.org/x/sys/unix does not
// expose this ABI struct directly on every platform, so the bit
// layout is kept locally, the same way the pack's own eBPF perf
// reader (nathanjsweet-ebpf) defines its own perfEventAttr rather than
// depending on a wrapper.
type rawAttr struct {
	Type             uint32
	Size             uint32
	Config           uint64
	SamplePeriod     uint64
	SampleType       uint64
	ReadFormat       uint64
	Bits             uint64
	Wakeup           uint32
	BPType           uint32
	Config1          uint64
	Config2          uint64
	BranchSampleType uint64
	SampleRegsUser   uint64
	SampleStackUser  uint32
	Clockid          int32
	SampleRegsIntr   uint64
	AuxWatermark     uint32
	SampleMaxStack   uint16
	_reserved2       uint16
}

// Bits field offsets, from the perf_event_attr bitfield layout.
const (
	bitDisabled      = 1 << 0
	bitInherit       = 1 << 1
	bitPinned        = 1 << 2
	bitExclusive     = 1 << 3
	bitExcludeUser   = 1 << 4
	bitExcludeKernel = 1 << 5
	bitExcludeHV     = 1 << 6
	bitExcludeIdle   = 1 << 7
	bitMmap          = 1 << 8
	bitComm          = 1 << 9
	bitFreq          = 1 << 10
	bitSampleIDAll   = 1 << 18
)

const sizeOfRawAttr = unsafe.Sizeof(rawAttr{})

// perfEventOpen wraps the perf_event_open(2) syscall, which
// golang.org/x/sys/unix does not wrap on every supported GOARCH.
func perfEventOpen(attr *rawAttr, pid, cpu, groupFD int, flags uintptr) (int, error) {
	attr.Size = uint32(sizeOfRawAttr)
	fd, _, errno := unix.Syscall6(
		unix.SYS_PERF_EVENT_OPEN,
		uintptr(unsafe.Pointer(attr)),
		uintptr(pid),
		uintptr(cpu),
		uintptr(groupFD),
		flags,
		0,
	)
	if errno != 0 {
		return -1, errno
	}
	return int(fd), nil
}

// mmapPage mirrors struct perf_event_mmap_page up through the
// data_head/data_tail/data_offset/data_size quartet the Ring Buffer
// Reader needs (spec §3 RingBuffer), grounded on the same padding
// trick used in the pack's perf ring implementations
// (yonch-memory-collector's PerfEventMmapPage, nathanjsweet-ebpf's
// perfEventMeta): the kernel pads the leading fields to exactly 1024
// bytes before data_head begins.
type mmapPage struct {
	_          [1024]byte
	DataHead   uint64
	DataTail   uint64
	DataOffset uint64
	DataSize   uint64
	AuxHead    uint64
	AuxTail    uint64
	AuxOffset  uint64
	AuxSize    uint64
}
