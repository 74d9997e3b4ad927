// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package symbol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRangesGetFindsContainingRange(t *testing.T) {
	var rs Ranges
	rs.Add(0x1000, 0x2000, "a")
	rs.Add(0x2000, 0x3000, "b")
	rs.Add(0x5000, 0x6000, "c")

	v, ok := rs.Get(0x1500)
	assert.True(t, ok)
	assert.Equal(t, "a", v)

	v, ok = rs.Get(0x2000)
	assert.True(t, ok)
	assert.Equal(t, "b", v)

	v, ok = rs.Get(0x2fff)
	assert.True(t, ok)
	assert.Equal(t, "b", v)
}

func TestRangesGetMiss(t *testing.T) {
	var rs Ranges
	rs.Add(0x1000, 0x2000, "a")

	_, ok := rs.Get(0x500)
	assert.False(t, ok)

	_, ok = rs.Get(0x2000) // half-open upper bound excluded
	assert.False(t, ok)

	_, ok = rs.Get(0x3000)
	assert.False(t, ok)
}

func TestRangesGetEmpty(t *testing.T) {
	var rs Ranges
	_, ok := rs.Get(42)
	assert.False(t, ok)
}

func TestRangesAddIgnoresEmptyRange(t *testing.T) {
	var rs Ranges
	rs.Add(10, 10, "x")
	rs.Add(10, 5, "y")
	assert.Equal(t, 0, rs.Len())
}

func TestRangesGetToleratesOutOfOrderAdds(t *testing.T) {
	var rs Ranges
	rs.Add(0x5000, 0x6000, "c")
	rs.Add(0x1000, 0x2000, "a")
	rs.Add(0x2000, 0x3000, "b")

	v, ok := rs.Get(0x1500)
	assert.True(t, ok)
	assert.Equal(t, "a", v)

	v, ok = rs.Get(0x5500)
	assert.True(t, ok)
	assert.Equal(t, "c", v)

	_, ok = rs.Get(0x4000)
	assert.False(t, ok)
}

func TestRangesGetAfterInterleavedAdds(t *testing.T) {
	var rs Ranges
	rs.Add(0x2000, 0x3000, "b")
	v, ok := rs.Get(0x2500)
	assert.True(t, ok)
	assert.Equal(t, "b", v)

	rs.Add(0x1000, 0x1500, "a")
	v, ok = rs.Get(0x1200)
	assert.True(t, ok)
	assert.Equal(t, "a", v)
}
