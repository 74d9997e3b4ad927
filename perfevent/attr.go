// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package perfevent encodes symbolic event names into kernel counter
// attributes and manages the lifecycle of a perf_event_open counter
// group: a sample-enabled leader plus zero or more count-only
// children sharing the leader's enable state and ring buffer.
package perfevent

import "fmt"

// Type is the perf_event_attr major type (PERF_TYPE_*).
type Type uint32

const (
	TypeHardware Type = iota
	TypeSoftware
	TypeTracepoint
	TypeHWCache
	TypeRaw
	TypeBreakpoint
)

// Hardware event IDs, matching perf_hw_id from
// include/uapi/linux/perf_event.h. These mirror the EventHardware
// constants in the teacher's perffile/events.go.
type HWID uint64

const (
	HWCPUCycles HWID = iota
	HWInstructions
	HWCacheReferences
	HWCacheMisses
	HWBranchInstructions
	HWBranchMisses
	HWBusCycles
	HWStalledCyclesFrontend
	HWStalledCyclesBackend
	HWRefCPUCycles
)

// Software event IDs, matching perf_sw_ids.
type SWID uint64

const (
	SWCPUClock SWID = iota
	SWTaskClock
	SWPageFaults
	SWContextSwitches
	SWCPUMigrations
)

// HWCache identifies a cache level/op/result triple, matching
// perf_hw_cache_id / perf_hw_cache_op_id / perf_hw_cache_op_result_id.
type HWCache uint8

const (
	CacheL1D HWCache = iota
	CacheL1I
	CacheLL
	CacheDTLB
	CacheITLB
	CacheBPU
	CacheNode
)

type HWCacheOp uint8

const (
	CacheOpRead HWCacheOp = iota
	CacheOpWrite
	CacheOpPrefetch
)

type HWCacheResult uint8

const (
	CacheResultAccess HWCacheResult = iota
	CacheResultMiss
)

// Attr is the shaped kernel counter attribute record produced by
// Encode. It carries exactly what's needed to fill a perf_event_attr:
// type, config, and the exclude-kernel bit. Encode never opens a file;
// it only shapes this record (spec §4.1).
type Attr struct {
	Type          Type
	Config        uint64
	ExcludeKernel bool
}

// ErrUnknownEvent is returned by Encode for a symbolic name this
// collector's event library cannot resolve.
type ErrUnknownEvent struct {
	Name string
}

func (e *ErrUnknownEvent) Error() string {
	return fmt.Sprintf("perfevent: unknown event %q", e.Name)
}

// table is the symbolic event library. It is intentionally a fixed,
// closed set: adding an event here is how new names become
// resolvable, mirroring the closed preset/event catalog in
// available-events.cpp.
var table = map[string]Attr{
	"cpu-cycles":       {Type: TypeHardware, Config: uint64(HWCPUCycles), ExcludeKernel: true},
	"instructions":     {Type: TypeHardware, Config: uint64(HWInstructions), ExcludeKernel: true},
	"branches":         {Type: TypeHardware, Config: uint64(HWBranchInstructions), ExcludeKernel: true},
	"branch-misses":    {Type: TypeHardware, Config: uint64(HWBranchMisses), ExcludeKernel: true},
	"cache-references": {Type: TypeHardware, Config: uint64(HWCacheReferences), ExcludeKernel: true},
	"cache-misses":     {Type: TypeHardware, Config: uint64(HWCacheMisses), ExcludeKernel: true},

	"MEM_LOAD_RETIRED.L3_HIT":  hwCacheAttr(CacheLL, CacheOpRead, CacheResultAccess),
	"MEM_LOAD_RETIRED.L3_MISS": hwCacheAttr(CacheLL, CacheOpRead, CacheResultMiss),
}

func hwCacheAttr(level HWCache, op HWCacheOp, result HWCacheResult) Attr {
	config := uint64(level) | uint64(op)<<8 | uint64(result)<<16
	return Attr{Type: TypeHWCache, Config: config, ExcludeKernel: true}
}

// Encode translates a symbolic event name into a kernel counter
// attribute record, or ErrUnknownEvent if the name is not resolvable
// (spec §4.1, §7 Event error).
func Encode(name string) (Attr, error) {
	attr, ok := table[name]
	if !ok {
		return Attr{}, &ErrUnknownEvent{Name: name}
	}
	return attr, nil
}

// Presets maps a preset name to the ordered list of event names it
// expands to, grounded on checkPresets in available-events.cpp. The
// engine owns this table because the Event Encoder is core; only the
// CLI enumeration of it is out of scope (spec §1).
var Presets = map[string][]string{
	"cpu":      {"cpu-cycles", "instructions"},
	"cache":    {"MEM_LOAD_RETIRED.L3_HIT", "MEM_LOAD_RETIRED.L3_MISS"},
	"branches": {"branches", "branch-misses"},
	"rapl":     {}, // RAPL is out-of-band energy, not a counter event
	"wattsup":  {}, // WattsUp is out-of-band energy, not a counter event
}

// ExpandPresets resolves a set of preset names into the deduplicated,
// ordered list of counter event names they contribute.
func ExpandPresets(presets []string) []string {
	seen := make(map[string]bool)
	var events []string
	for _, p := range presets {
		for _, e := range Presets[p] {
			if !seen[e] {
				seen[e] = true
				events = append(events, e)
			}
		}
	}
	return events
}
