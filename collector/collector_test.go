// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package collector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/sys/unix"

	"github.com/alexprofiler/collector/symbol"
)

func TestSymbolizeCallchainInitialSectionIsUnknown(t *testing.T) {
	c := &Collector{mm: &symbol.MemoryMap{}}
	frames := c.symbolizeCallchain([]uint64{0x1000})
	assert.Len(t, frames, 1)
	assert.Equal(t, "UNKNOWN", frames[0].Section)
}

func TestSymbolizeCallchainRelabelsOnSentinel(t *testing.T) {
	c := &Collector{mm: &symbol.MemoryMap{}}
	frames := c.symbolizeCallchain([]uint64{contextKernel, 0xffffffff81000000, contextUser, 0x401000})

	assert.Len(t, frames, 2)
	assert.Equal(t, "KERNEL", frames[0].Section)
	assert.Equal(t, "USER", frames[1].Section)
}

func TestSymbolizeCallchainEmpty(t *testing.T) {
	c := &Collector{mm: &symbol.MemoryMap{}}
	frames := c.symbolizeCallchain(nil)
	assert.Empty(t, frames)
}

func TestSigaddsetSetsExpectedBit(t *testing.T) {
	var set unix.Sigset_t
	sigaddset(&set, int(unix.SIGTERM))

	word := (int(unix.SIGTERM) - 1) / 64
	bit := uint((int(unix.SIGTERM) - 1) % 64)
	assert.NotZero(t, set.Val[word]&(1<<bit))
}
