// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package background

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
)

// WattsUpDevice is the serial read contract spec §1 scopes this
// collector to: "the read contract, not a full driver for the WattsUp
// meter's command protocol." A real device is a *os.File opened on
// the meter's tty; tests substitute anything satisfying this
// interface, matching original_source/collector/wattsup.hpp's
// wu_read, which this producer calls in a loop rather than
// reimplementing the device's command/log protocol.
type WattsUpDevice interface {
	ReadLine() (string, error)
}

// SerialWattsUpDevice adapts a bufio.Reader over an open serial
// device file to WattsUpDevice.
type SerialWattsUpDevice struct {
	r *bufio.Reader
}

// NewSerialWattsUpDevice wraps r, typically an *os.File opened on the
// WattsUp meter's serial device, e.g. /dev/ttyUSB0.
func NewSerialWattsUpDevice(r *bufio.Reader) *SerialWattsUpDevice {
	return &SerialWattsUpDevice{r: r}
}

func (d *SerialWattsUpDevice) ReadLine() (string, error) {
	line, err := d.r.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// NewWattsUpMailbox starts a Background Reader producer that blocks
// for the most recent watts reading from dev on each Restart,
// matching wattsup.hpp's wu_read contract (spec §4.7: "blocking read
// of the most recent watts value from the serial device").
func NewWattsUpMailbox(dev WattsUpDevice) *Mailbox {
	return NewMailbox(func() (any, error) {
		return readWatts(dev)
	})
}

// readWatts parses one WattsUp log line. The device emits
// comma-separated fields per its external-logging format; the watts
// reading is the field this collector cares about (spec §1 scopes out
// the rest of the WattsUp command protocol).
func readWatts(dev WattsUpDevice) (float64, error) {
	line, err := dev.ReadLine()
	if err != nil {
		return 0, fmt.Errorf("background: wattsup read: %w", err)
	}
	fields := strings.Split(line, ",")
	if len(fields) < 4 {
		return 0, fmt.Errorf("background: malformed wattsup line %q", line)
	}
	// Field layout: "#", timestamp, watts*10, ... per the WattsUp
	// external-logging format; watts is reported in tenths.
	tenths, err := strconv.ParseFloat(strings.TrimSpace(fields[2]), 64)
	if err != nil {
		return 0, fmt.Errorf("background: malformed wattsup watts field %q: %w", fields[2], err)
	}
	return tenths / 10.0, nil
}
