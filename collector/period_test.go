// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package collector

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestThrottleMultipliesPeriod(t *testing.T) {
	p := NewPeriodController(1000)
	got := p.Throttle()
	assert.Equal(t, uint64(10000), got)
	assert.Equal(t, uint64(10000), p.Current())
}

func TestUnthrottleDividesAboveFloor(t *testing.T) {
	p := NewPeriodController(10_000_000)
	got := p.Unthrottle()
	assert.Equal(t, uint64(1_000_000), got)
}

func TestUnthrottleAtFloorLeavesPeriodUnchanged(t *testing.T) {
	p := NewPeriodController(MinPeriod)
	got := p.Unthrottle()
	assert.Equal(t, uint64(MinPeriod), got)
}

func TestUnthrottleJustAboveFloorBoundary(t *testing.T) {
	p := NewPeriodController(MinPeriod*PeriodAdjustScale - 1)
	got := p.Unthrottle()
	assert.Equal(t, uint64(MinPeriod*PeriodAdjustScale-1), got, "dividing would fall below the floor, so it must not divide")
}
