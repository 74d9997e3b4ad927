// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package perfevent

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Sample type bits this collector always requests from the leader,
// matching const.hpp's SAMPLE_TYPE and SAMPLE_ID_ALL_TYPE combined
// into SAMPLE_TYPE_COMBINED.
const (
	sampleTypeIdentifier = 1 << 16
	sampleTypeTID        = 1 << 1
	sampleTypeTime       = 1 << 2
	sampleTypeCallchain  = 1 << 5

	sampleTypeCombined = sampleTypeIdentifier | sampleTypeTID | sampleTypeTime | sampleTypeCallchain
)

// Group is a Counter Group: a sample-enabled leader counter plus zero
// or more count-only child counters opened with the leader as their
// group_fd, so they share the leader's enable state; only the leader
// has a ring buffer (spec §3 Group, §4.1). It is grounded on
// original_source/collector/perf_reader.cpp's setup_perf_events (the
// disabled leader with wakeup_events=1, reset at creation, children
// opened against the leader's group_fd) and on
// original_source/collector/perf_sampler.hpp's perf_fd_info.
type Group struct {
	TID int

	leaderFD int
	children []childCounter
	Ring     *RingBuffer

	names []string
}

type childCounter struct {
	name string
	fd   int
}

// NewGroup opens a leader CPU-clock counter for tid sampled every
// period nanoseconds and attaches one count-only child per event
// name, in the order given. The leader is created disabled; callers
// must call Enable to start sampling, mirroring the original's
// two-phase setup (open everything, then PERF_EVENT_IOC_ENABLE once
// the subject is ready to run).
func NewGroup(tid int, eventNames []string, period uint64) (*Group, error) {
	leader := &rawAttr{
		Type:         uint32(TypeSoftware),
		Config:       uint64(SWCPUClock),
		SamplePeriod: period,
		SampleType:   sampleTypeCombined,
		Bits:         bitDisabled | bitExcludeKernel | bitExcludeHV | bitSampleIDAll,
		Wakeup:       1,
	}
	leaderFD, err := perfEventOpen(leader, tid, -1, -1, unix.PERF_FLAG_FD_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("perfevent: open leader: %w", err)
	}

	g := &Group{TID: tid, leaderFD: leaderFD, names: eventNames}

	for _, name := range eventNames {
		enc, err := Encode(name)
		if err != nil {
			g.Destroy()
			return nil, err
		}
		child := &rawAttr{
			Type:   uint32(enc.Type),
			Config: enc.Config,
		}
		if enc.ExcludeKernel {
			child.Bits |= bitExcludeKernel
		}
		fd, err := perfEventOpen(child, tid, -1, leaderFD, unix.PERF_FLAG_FD_CLOEXEC)
		if err != nil {
			g.Destroy()
			return nil, fmt.Errorf("perfevent: open child %q: %w", name, err)
		}
		g.children = append(g.children, childCounter{name: name, fd: fd})
	}

	ring, err := NewRingBuffer(leaderFD)
	if err != nil {
		g.Destroy()
		return nil, err
	}
	g.Ring = ring

	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(leaderFD), unix.PERF_EVENT_IOC_RESET, 0); errno != 0 {
		g.Destroy()
		return nil, fmt.Errorf("perfevent: reset leader: %w", errno)
	}

	return g, nil
}

// AdoptGroup reconstructs a Group from file descriptors received over
// the Control Socket (spec §4.4: "the collector reconstructs a
// CounterGroup from the received fds, mmaps the ring buffer in its
// own address space"). fds must be leader-first followed by one
// auxiliary fd per name, in configured event order, matching spec
// §6's wire format.
func AdoptGroup(taskID int32, names []string, fds []int) (*Group, error) {
	if len(fds) != 1+len(names) {
		return nil, fmt.Errorf("perfevent: adopt group: expected %d fds, got %d", 1+len(names), len(fds))
	}

	g := &Group{TID: int(taskID), leaderFD: fds[0], names: names}
	for i, name := range names {
		g.children = append(g.children, childCounter{name: name, fd: fds[1+i]})
	}

	ring, err := NewRingBuffer(g.leaderFD)
	if err != nil {
		g.Destroy()
		return nil, err
	}
	g.Ring = ring
	return g, nil
}

// Enable arms the leader and, by group membership, every child.
func (g *Group) Enable() error {
	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(g.leaderFD), unix.PERF_EVENT_IOC_ENABLE, 0); errno != 0 {
		return fmt.Errorf("perfevent: enable leader: %w", errno)
	}
	return nil
}

// Disable stops the leader and every child without closing them.
func (g *Group) Disable() error {
	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(g.leaderFD), unix.PERF_EVENT_IOC_DISABLE, 0); errno != 0 {
		return fmt.Errorf("perfevent: disable leader: %w", errno)
	}
	return nil
}

// SetPeriod reprograms the leader's sample_period, the Period
// Controller's mechanism for adjusting sampling rate in response to
// Throttle/Unthrottle records (spec §5 PeriodController,
// original_source/collector/perf_reader.cpp's adjust_period).
func (g *Group) SetPeriod(period uint64) error {
	p := period
	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(g.leaderFD), unix.PERF_EVENT_IOC_PERIOD, uintptr(unsafe.Pointer(&p))); errno != 0 {
		return fmt.Errorf("perfevent: set period: %w", errno)
	}
	return nil
}

// ReadAndReset reads the leader's accumulated clock ticks and every
// child counter's current count, resetting each to zero, matching
// spec §4.2's read_and_reset → {leader_clock_count, event_counts} and
// the read-then-clear semantics of spec §4.9 step 1.
func (g *Group) ReadAndReset() (leaderClockCount uint64, events map[string]uint64, err error) {
	leaderClockCount, err = readAndResetCounter(g.leaderFD, "leader")
	if err != nil {
		return 0, nil, err
	}

	events = make(map[string]uint64, len(g.children))
	for _, c := range g.children {
		v, err := readAndResetCounter(c.fd, c.name)
		if err != nil {
			return 0, nil, err
		}
		events[c.name] = v
	}
	return leaderClockCount, events, nil
}

// readAndResetCounter reads one perf counter fd's 8-byte little-endian
// count and resets it to zero via PERF_EVENT_IOC_RESET.
func readAndResetCounter(fd int, name string) (uint64, error) {
	var buf [8]byte
	n, err := unix.Read(fd, buf[:])
	if err != nil {
		return 0, fmt.Errorf("perfevent: read counter %q: %w", name, err)
	}
	if n != 8 {
		return 0, fmt.Errorf("perfevent: short read on counter %q (%d bytes)", name, n)
	}
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(buf[i])
	}
	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), unix.PERF_EVENT_IOC_RESET, 0); errno != 0 {
		return 0, fmt.Errorf("perfevent: reset counter %q: %w", name, errno)
	}
	return v, nil
}

// LeaderFD returns the leader counter's file descriptor, the handle
// the Wake Multiplexer registers with epoll and the Control Socket's
// FD Registry tracks per subject thread.
func (g *Group) LeaderFD() int {
	return g.leaderFD
}

// Destroy disables and closes every counter in the group and unmaps
// its ring buffer. It tolerates partially constructed groups so it
// can double as cleanup on a failed NewGroup.
func (g *Group) Destroy() error {
	var firstErr error
	if g.Ring != nil {
		if err := g.Ring.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	for _, c := range g.children {
		if err := unix.Close(c.fd); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if g.leaderFD > 0 {
		_ = g.Disable()
		if err := unix.Close(g.leaderFD); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
