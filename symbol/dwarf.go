// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package symbol

import (
	"debug/dwarf"
	"debug/elf"
	"fmt"

	"github.com/ianlancetaylor/demangle"
)

// loadDWARF opens debugPath's ELF/DWARF data and walks every
// compilation unit, populating mapping.lines and mapping.functions,
// per spec §4.8: "walk the DIE tree collecting (i) subprograms...
// (ii) inlined subroutines... (iii) the line table." Grounded on
// aclements-go-perf/perfsession/symbolize.go's dwarfFuncTable and
// dwarfLineTable walks, generalized from a single loaded object to
// one call per Mapping.
func (mm *MemoryMap) loadDWARF(mapping *Mapping, debugPath string) error {
	f, err := elf.Open(debugPath)
	if err != nil {
		return fmt.Errorf("symbol: open debug object %s: %w", debugPath, err)
	}
	defer f.Close()

	data, err := f.DWARF()
	if err != nil {
		return fmt.Errorf("symbol: load DWARF from %s: %w", debugPath, err)
	}

	// A single flat walk over the whole DIE tree: class scope is
	// approximated as "the most recently seen class/struct name since
	// the enclosing compile unit started", which is enough to
	// recover a subprogram's containing class in the common case of
	// one level of nesting without needing to track full DIE depth.
	reader := data.Reader()
	var class string
	for {
		entry, err := reader.Next()
		if err != nil {
			return fmt.Errorf("symbol: walk DIEs in %s: %w", debugPath, err)
		}
		if entry == nil {
			break
		}

		switch entry.Tag {
		case dwarf.TagCompileUnit:
			class = ""
			if lr, err := data.LineReader(entry); err == nil && lr != nil {
				mm.walkLineTable(mapping, lr)
			}
		case dwarf.TagClassType, dwarf.TagStructType:
			if name, ok := entry.Val(dwarf.AttrName).(string); ok {
				class = name
			}
		case dwarf.TagSubprogram:
			mm.addSubprogram(mapping, entry, class)
		case dwarf.TagInlinedSubroutine:
			mm.addInlinedSubroutine(mapping, entry)
		}
	}
	return nil
}

// addSubprogram turns a subprogram DIE with a low_pc/high_pc pair
// into a function symbol range (spec §4.8 (i)), demangling its name
// with ianlancetaylor/demangle.Filter, which returns a name that is
// not a mangled C++ or Rust symbol unchanged.
func (mm *MemoryMap) addSubprogram(mapping *Mapping, entry *dwarf.Entry, class string) {
	name, ok := entry.Val(dwarf.AttrName).(string)
	if !ok {
		return
	}
	low, hok := entry.Val(dwarf.AttrLowpc).(uint64)
	high, lok := highPC(entry, low)
	if !hok || !lok {
		return
	}

	sym := &FuncSymbol{
		Name:      name,
		Demangled: demangle.Filter(name),
		Class:     class,
	}
	mapping.functions.Add(mapping.LoadBase+low, mapping.LoadBase+high, sym)
}

// addInlinedSubroutine adds a function range for every inlined
// subroutine DIE that has a low_pc/high_pc pair, named
// "<inlined @OFFSET>" after its abstract origin's DIE offset (or
// "<inlined>" without one). The range is not attributed to the
// caller's name, and no scope check is made on the declaration or the
// call site.
func (mm *MemoryMap) addInlinedSubroutine(mapping *Mapping, entry *dwarf.Entry) {
	name, ok := entry.Val(dwarf.AttrAbstractOrigin).(dwarf.Offset)
	low, hok := entry.Val(dwarf.AttrLowpc).(uint64)
	high, lok := highPC(entry, low)
	if !hok || !lok {
		return
	}
	sym := &FuncSymbol{Name: "<inlined>"}
	if ok {
		sym.Name = fmt.Sprintf("<inlined @%v>", name)
	}
	mapping.functions.Add(mapping.LoadBase+low, mapping.LoadBase+high, sym)
}

// highPC resolves the DW_AT_high_pc attribute, which DWARF4+ encodes
// either as an absolute address or as an offset from low_pc depending
// on its class. debug/dwarf returns the constant (offset) class as an
// int64, which is added to low; an address-class uint64 is taken as
// absolute when it is greater than low and as an offset otherwise.
func highPC(entry *dwarf.Entry, low uint64) (uint64, bool) {
	v := entry.Val(dwarf.AttrHighpc)
	switch n := v.(type) {
	case uint64:
		if n > low {
			return n, true
		}
		return low + n, true
	case int64:
		return low + uint64(n), true
	default:
		return 0, false
	}
}

// walkLineTable populates mapping.lines for every consecutive pair of
// line table rows, matching spec §4.8 (iii): "the line table to
// populate (address range -> source line) for every consecutive pair
// of line records."
func (mm *MemoryMap) walkLineTable(mapping *Mapping, lr *dwarf.LineReader) {
	var prev dwarf.LineEntry
	havePrev := false

	var entry dwarf.LineEntry
	for {
		if err := lr.Next(&entry); err != nil {
			break
		}
		if havePrev && !prev.EndSequence {
			ft := mm.file(prev.File.Name)
			line := ft.line(prev.Line)
			mapping.lines.Add(mapping.LoadBase+prev.Address, mapping.LoadBase+entry.Address, line)
		}
		prev = entry
		havePrev = true
	}
}

func (mm *MemoryMap) file(name string) *fileTable {
	ft, ok := mm.Files[name]
	if !ok {
		ft = &fileTable{Name: name, Lines: make(map[int]*Line)}
		mm.Files[name] = ft
	}
	return ft
}
