// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package symbol implements the Memory Map & Symbolizer: discovery of
// debug information for the subject's executable mappings, DWARF/ELF
// walking into address-range interval tables, and address-to-line and
// address-to-function lookups for the Record Emitter.
package symbol

import "sort"

// Ranges is a sorted, non-overlapping set of half-open address
// intervals [Lo, Hi), each carrying an arbitrary value, searchable by
// binary search. Grounded directly on
// aclements-go-perf/perfsession/ranges.go's Ranges type: the teacher's
// shape (sorted slice + binary search over lo/hi/val) is already
// exactly what spec §4.8's interval tree needs, generalized here from
// a single per-session table to one table per Mapping.
type Ranges struct {
	r      []rangeVal
	sorted bool
}

type rangeVal struct {
	lo, hi uint64
	val    any
}

// Add inserts [lo, hi) -> val. Callers do not add in address order:
// dwarf.go's addSubprogram adds in DIE declaration order and
// walkLineTable adds per-compile-unit in traversal order, not
// globally address-sorted across units. Get sorts lazily on first
// lookup rather than requiring callers to pre-sort.
func (rs *Ranges) Add(lo, hi uint64, val any) {
	if hi <= lo {
		return
	}
	rs.r = append(rs.r, rangeVal{lo: lo, hi: hi, val: val})
	rs.sorted = false
}

// Get returns the value of the range containing addr, if any. The
// comparison treats a range as "equal" to addr when lo <= addr < hi,
// the overlap-as-equal ordering documented for interval lookup in
// original_source/collector/inspect.hpp's interval::operator<
// (a.limit <= b.base).
func (rs *Ranges) Get(addr uint64) (any, bool) {
	if !rs.sorted {
		sort.Slice(rs.r, func(i, j int) bool {
			return rs.r[i].lo < rs.r[j].lo
		})
		rs.sorted = true
	}

	i := sort.Search(len(rs.r), func(i int) bool {
		return rs.r[i].hi > addr
	})
	if i >= len(rs.r) || rs.r[i].lo > addr {
		return nil, false
	}
	return rs.r[i].val, true
}

// Len reports the number of ranges.
func (rs *Ranges) Len() int {
	return len(rs.r)
}
