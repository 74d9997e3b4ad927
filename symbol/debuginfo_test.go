// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package symbol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildIDPath(t *testing.T) {
	got := buildIDPath("abcd1234ef")
	assert.Equal(t, "/usr/lib/debug/.build-id/ab/cd1234ef.debug", got)
}

func TestBuildIDPathShortID(t *testing.T) {
	got := buildIDPath("a")
	assert.Equal(t, "/usr/lib/debug/.build-id/a.debug", got)
}

func TestAlign4(t *testing.T) {
	assert.Equal(t, uint32(0), align4(0))
	assert.Equal(t, uint32(4), align4(1))
	assert.Equal(t, uint32(4), align4(4))
	assert.Equal(t, uint32(8), align4(5))
}
