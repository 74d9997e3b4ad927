// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package control

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Waker is the Wake Multiplexer: a level-triggered epoll wrapper that
// the main collection loop polls for readiness across the termination
// signal fd, the control socket, and every armed leader fd (spec
// §4.5). Grounded on other_examples/nathanjsweet-ebpf's PerfReader.poll,
// generalized from that reader's close/flush eventfd priority to the
// three-tier priority this collector requires: termination first,
// then control socket, then leader fds in arbitrary order.
type Waker struct {
	epfd     int
	termFD   int
	sockFD   int
	leaderFD map[int]bool
}

// NewWaker creates an epoll instance and arms it for termFD and
// sockFD. Leader fds are armed and disarmed later via Arm/Disarm as
// REGISTER/UNREGISTER messages are processed.
func NewWaker(termFD, sockFD int) (*Waker, error) {
	epfd, err := unix.EpollCreate1(0)
	if err != nil {
		return nil, fmt.Errorf("control: epoll_create1: %w", err)
	}
	w := &Waker{epfd: epfd, termFD: termFD, sockFD: sockFD, leaderFD: make(map[int]bool)}
	if err := w.add(termFD); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.add(sockFD); err != nil {
		w.Close()
		return nil, err
	}
	return w, nil
}

func (w *Waker) add(fd int) error {
	event := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(fd)}
	if err := unix.EpollCtl(w.epfd, unix.EPOLL_CTL_ADD, fd, &event); err != nil {
		return fmt.Errorf("control: epoll_ctl add %d: %w", fd, err)
	}
	return nil
}

// Arm adds a leader fd to the epoll set, the step spec §4.4 requires
// on REGISTER ("arms the Wake Multiplexer for the leader fd").
func (w *Waker) Arm(leaderFD int) error {
	if err := w.add(leaderFD); err != nil {
		return err
	}
	w.leaderFD[leaderFD] = true
	return nil
}

// Disarm removes a leader fd from the epoll set, the step spec §4.4
// requires on UNREGISTER before the fd is closed.
func (w *Waker) Disarm(leaderFD int) error {
	if err := unix.EpollCtl(w.epfd, unix.EPOLL_CTL_DEL, leaderFD, nil); err != nil {
		return fmt.Errorf("control: epoll_ctl del %d: %w", leaderFD, err)
	}
	delete(w.leaderFD, leaderFD)
	return nil
}

// Wake is one multiplexed readiness batch, already sorted into the
// priority spec §4.5 requires the caller to drain in: Terminated,
// then ControlReady, then LeaderFDs.
type Wake struct {
	Terminated   bool
	ControlReady bool
	LeaderFDs    []int
}

// maxEvents bounds how many ready fds a single epoll_wait call
// reports; the collector has at most one control socket, one
// termination fd, and a small number of leader fds per run.
const maxEvents = 256

// Wait blocks until at least one armed fd is ready, with the
// unbounded timeout spec §4.5 specifies ("SAMPLE_EPOLL_TIMEOUT,
// effectively unbounded"), and returns a priority-sorted Wake batch.
// A caller seeing Terminated should stop polling immediately, as
// spec §4.5 requires: "the termination signal descriptor first (sets
// done = true and exits the loop)".
func (w *Waker) Wait() (Wake, error) {
	events := make([]unix.EpollEvent, maxEvents)
	n, err := unix.EpollWait(w.epfd, events, -1)
	if err != nil {
		if err == unix.EINTR {
			return Wake{}, nil
		}
		return Wake{}, fmt.Errorf("control: epoll_wait: %w", err)
	}

	var wake Wake
	for i := 0; i < n; i++ {
		fd := int(events[i].Fd)
		switch fd {
		case w.termFD:
			wake.Terminated = true
		case w.sockFD:
			wake.ControlReady = true
		default:
			wake.LeaderFDs = append(wake.LeaderFDs, fd)
		}
	}
	return wake, nil
}

// Close releases the epoll instance. It does not close the fds it
// was watching; their owners do.
func (w *Waker) Close() error {
	return unix.Close(w.epfd)
}
