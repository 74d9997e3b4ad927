// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package stats tracks wake-to-wake timing for the collection loop.
package stats

import (
	"sync"

	"github.com/aclements/go-moremath/stats"
)

// minSamplesForJudgment is how many gaps must be on hand before Record
// will judge a new one anomalous; too few samples make mean/stddev
// meaningless.
const minSamplesForJudgment = 8

// WakeGapTracker accumulates consecutive wake-to-wake gap durations (in
// nanoseconds) between Wake Multiplexer returns and flags gaps that run
// far above the trend, the signal behind collector.MaxSamplePeriodSkips:
// a large gap is logged, never treated as a failure.
type WakeGapTracker struct {
	mu      sync.Mutex
	samples []float64
	skips   int
}

func NewWakeGapTracker() *WakeGapTracker {
	return &WakeGapTracker{}
}

// Record adds one observed gap and reports the running mean, standard
// deviation, and whether this gap itself sits more than three standard
// deviations above the mean.
func (t *WakeGapTracker) Record(gapNs float64) (mean, stddev float64, anomalous bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.samples = append(t.samples, gapNs)
	if len(t.samples) < minSamplesForJudgment {
		return 0, 0, false
	}
	sample := stats.Sample{Xs: t.samples}
	mean = sample.Mean()
	stddev = sample.StdDev()
	anomalous = stddev > 0 && gapNs > mean+3*stddev
	return mean, stddev, anomalous
}

// IncrSkips counts one more consecutive anomalous gap and returns the
// new count.
func (t *WakeGapTracker) IncrSkips() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.skips++
	return t.skips
}

// ResetSkips clears the consecutive-anomaly count, called once a gap
// comes back in line or after a warning has been logged.
func (t *WakeGapTracker) ResetSkips() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.skips = 0
}

// Stats reports the mean and standard deviation over every gap
// recorded so far, for a one-line diagnostic summary at run end.
func (t *WakeGapTracker) Stats() (mean, stddev float64, n int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	n = len(t.samples)
	if n == 0 {
		return 0, 0, 0
	}
	sample := stats.Sample{Xs: t.samples}
	return sample.Mean(), sample.StdDev(), n
}
