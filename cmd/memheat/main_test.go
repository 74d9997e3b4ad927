// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadLineCountsTalliesStackFrames(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "result.txt")
	require.NoError(t, os.WriteFile(path, []byte(
		`{"kind":"header","run_id":"x","program_version":"1.0.0","presets":[]}`+"\n"+
			`{"kind":"timeslice","stack_frames":[{"address":1,"section":"USER","file_name":"a.c","line":10}]}`+"\n"+
			`{"kind":"timeslice","stack_frames":[{"address":1,"section":"USER","file_name":"a.c","line":10},{"address":2,"section":"USER","file_name":"b.c","line":5}]}`+"\n"+
			`{"kind":"error","error_kind":"lost"}`+"\n",
	), 0o644))

	counts, err := readLineCounts(path)
	require.NoError(t, err)
	assert.Equal(t, 2, counts[lineKey{file: "a.c", line: 10}])
	assert.Equal(t, 1, counts[lineKey{file: "b.c", line: 5}])
}

func TestReadLineCountsSkipsFramesWithoutSymbolization(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "result.txt")
	require.NoError(t, os.WriteFile(path, []byte(
		`{"kind":"timeslice","stack_frames":[{"address":1,"section":"KERNEL"}]}`+"\n",
	), 0o644))

	counts, err := readLineCounts(path)
	require.NoError(t, err)
	assert.Empty(t, counts)
}

func TestLimitFilesKeepsWholeFiles(t *testing.T) {
	stats := []*lineStat{
		{file: "a.c", line: 1, count: 5},
		{file: "a.c", line: 2, count: 3},
		{file: "b.c", line: 1, count: 1},
	}
	limited := limitFiles(stats, 1)
	assert.Len(t, limited, 2)
	for _, s := range limited {
		assert.Equal(t, "a.c", s.file)
	}
}

func TestSectionsGroupsConsecutiveRuns(t *testing.T) {
	vals := []string{"a", "a", "b", "c", "c", "c"}
	groups := sections(len(vals), func(i int) bool { return vals[i] != vals[i-1] })
	assert.Equal(t, [][2]int{{0, 2}, {2, 3}, {3, 6}}, groups)
}

func TestLineStatSorterOrdersByFileWeightThenLine(t *testing.T) {
	stats := []*lineStat{
		{file: "b.c", line: 1, count: 10},
		{file: "a.c", line: 2, count: 1},
		{file: "a.c", line: 1, count: 1},
	}
	sorter := lineStatSorter{stats, fileWeight(stats)}
	assert.True(t, sorter.Less(0, 1))
	assert.True(t, sorter.Less(2, 1))
}
