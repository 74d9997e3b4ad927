// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package perfevent

import (
	"sync/atomic"
	"unsafe"
)

// pageAt reinterprets the first page of an mmap'd region as the
// kernel's perf_event_mmap_page header.
func pageAt(raw []byte) unsafe.Pointer {
	return unsafe.Pointer(&raw[0])
}

// The kernel writes data_head and this reader writes data_tail
// concurrently with no other synchronization; both must be accessed
// with atomic loads/stores, matching the acquire/release discipline
// documented for perf_event_mmap_page in perf_event.h and followed by
// the pack's own ring readers (yonch-memory-collector,
// nathanjsweet-ebpf) via sync/atomic.

func loadHead(m *mmapPage) uint64 {
	return atomic.LoadUint64(&m.DataHead)
}

func storeTail(m *mmapPage, v uint64) {
	atomic.StoreUint64(&m.DataTail, v)
}

func loadTail(m *mmapPage) uint64 {
	return atomic.LoadUint64(&m.DataTail)
}
