// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package control implements the collector's control plane: the FD
// Registry that tracks live counter groups by subject task, the
// Control Socket protocol subject-side shims use to hand off counter
// group file descriptors, and the Wake Multiplexer that the main
// collection loop polls for readiness.
package control

import (
	"fmt"
	"sync"

	"github.com/alexprofiler/collector/perfevent"
)

// Entry is one registered task's counter group, keyed in the Registry
// by its leader fd (spec §3 CounterGroup, §4.4: "inserts
// {leader_fd → group} into the FD Registry").
type Entry struct {
	TaskID   int32
	LeaderFD int
	Group    *perfevent.Group
}

// Registry is the FD Registry: the collector's live mapping from
// leader fd to the CounterGroup it owns. It is mutated only by the
// goroutine that owns the Wake Multiplexer (spec §5 Concurrency
// Model: "one main goroutine... is the sole... mutator of the
// registry"), but the mutex guards against the Background Reader
// goroutines ever observing a torn view during LeaderFDs().
type Registry struct {
	mu      sync.Mutex
	entries map[int]*Entry
	byTask  map[int32]int // task id -> leader fd, for UNREGISTER lookup
}

// NewRegistry returns an empty FD Registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[int]*Entry),
		byTask:  make(map[int32]int),
	}
}

// Insert adds a newly registered counter group, keyed by its leader
// fd, and indexes it by task id so a later UNREGISTER (which carries
// no fds, spec §4.4) can find it again.
func (r *Registry) Insert(taskID int32, leaderFD int, group *perfevent.Group) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[leaderFD] = &Entry{TaskID: taskID, LeaderFD: leaderFD, Group: group}
	r.byTask[taskID] = leaderFD
}

// RemoveByTask removes and returns the entry for taskID, or nil if no
// such task is registered. Callers are responsible for destroying the
// returned group (closing fds, unmapping the ring buffer) after
// disarming the Wake Multiplexer for its leader fd, preserving the
// ordering spec §4.4 requires: "stops monitoring, disarms the
// multiplexer, closes fds, unmaps the buffer, and removes the entry."
func (r *Registry) RemoveByTask(taskID int32) *Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	leaderFD, ok := r.byTask[taskID]
	if !ok {
		return nil
	}
	entry := r.entries[leaderFD]
	delete(r.entries, leaderFD)
	delete(r.byTask, taskID)
	return entry
}

// Get looks up the entry owning a given leader fd, used when the Wake
// Multiplexer reports that fd as readable.
func (r *Registry) Get(leaderFD int) (*Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[leaderFD]
	return e, ok
}

// LeaderFDs returns the current set of leader fds, a snapshot used
// only for diagnostics; the Wake Multiplexer tracks arm/disarm
// directly rather than re-deriving it from the registry each wake.
func (r *Registry) LeaderFDs() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	fds := make([]int, 0, len(r.entries))
	for fd := range r.entries {
		fds = append(fds, fd)
	}
	return fds
}

// Entries returns a snapshot of every currently live entry, so the
// caller can reprogram every live counter with a new sample period
// (spec §4.6: Throttle/Unthrottle adjustments "apply to every live
// counter", spec §8: "The sample period value applied to every live
// counter is identical and equal to the Period Controller's current
// value"), matching original_source/collector/perf_reader.cpp's
// adjust_period looping over all perf_info_mappings.
func (r *Registry) Entries() []*Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	entries := make([]*Entry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, e)
	}
	return entries
}

// Len reports the number of live counter groups.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// ErrTaskNotRegistered is returned when UNREGISTER names a task the
// registry has no record of, e.g. a duplicate UNREGISTER.
type ErrTaskNotRegistered struct {
	TaskID int32
}

func (e *ErrTaskNotRegistered) Error() string {
	return fmt.Sprintf("control: task %d is not registered", e.TaskID)
}
