// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package symbol

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadKallsymsAndLookup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kallsyms")
	content := "0000000000001000 T symbol_one\n" +
		"0000000000002000 t symbol_two\n" +
		"0000000000003000 D symbol_three\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	table, err := readKallsyms(path)
	require.NoError(t, err)

	name, ok := table.lookup(0x1500)
	assert.True(t, ok)
	assert.Equal(t, "symbol_one", name)

	name, ok = table.lookup(0x2fff)
	assert.True(t, ok)
	assert.Equal(t, "symbol_two", name)

	_, ok = table.lookup(0x500)
	assert.False(t, ok, "address below the first symbol has no match")
}

func TestKallsymsLookupEmptyTable(t *testing.T) {
	var table kallsymsTable
	_, ok := table.lookup(100)
	assert.False(t, ok)
}
