// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package symbol

import (
	"bufio"
	"os"
	"sort"
	"strconv"
	"strings"
)

// kallsymsEntry is one kept /proc/kallsyms row: its address and name
// (the type column is used only to decide whether the row is kept).
type kallsymsEntry struct {
	addr uint64
	name string
}

// kallsymsTable is a sorted kernel symbol table supporting
// "largest address not exceeding addr" lookup, matching
// original_source/collector/perf_reader.cpp's lookup_kernel_addr.
type kallsymsTable struct {
	entries []kallsymsEntry
}

// readKallsyms parses /proc/kallsyms, keeping only function and data
// symbols (letters T/t/D/d/W/w in the type column) since those are
// the rows with meaningful address ranges for sample attribution.
func readKallsyms(path string) (kallsymsTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return kallsymsTable{}, err
	}
	defer f.Close()

	var table kallsymsTable
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 3 {
			continue
		}
		addr, err := strconv.ParseUint(fields[0], 16, 64)
		if err != nil {
			continue
		}
		switch fields[1] {
		case "T", "t", "D", "d", "W", "w":
		default:
			continue
		}
		table.entries = append(table.entries, kallsymsEntry{addr: addr, name: fields[2]})
	}
	sort.Slice(table.entries, func(i, j int) bool {
		return table.entries[i].addr < table.entries[j].addr
	})
	return table, scanner.Err()
}

// lookup returns the symbol at the largest address not exceeding
// addr.
func (t kallsymsTable) lookup(addr uint64) (string, bool) {
	if len(t.entries) == 0 {
		return "", false
	}
	i := sort.Search(len(t.entries), func(i int) bool {
		return t.entries[i].addr > addr
	})
	if i == 0 {
		return "", false
	}
	return t.entries[i-1].name, true
}
