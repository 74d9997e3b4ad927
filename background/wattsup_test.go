// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package background

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWattsUpDevice struct {
	lines []string
	i     int
}

func (f *fakeWattsUpDevice) ReadLine() (string, error) {
	if f.i >= len(f.lines) {
		return "", errors.New("no more lines")
	}
	line := f.lines[f.i]
	f.i++
	return line, nil
}

func TestReadWattsParsesTenthsField(t *testing.T) {
	dev := &fakeWattsUpDevice{lines: []string{"#,1234567,1055,0,0"}}
	watts, err := readWatts(dev)
	require.NoError(t, err)
	assert.InDelta(t, 105.5, watts, 0.001)
}

func TestReadWattsMalformedLine(t *testing.T) {
	dev := &fakeWattsUpDevice{lines: []string{"too,short"}}
	_, err := readWatts(dev)
	assert.Error(t, err)
}

func TestReadWattsDeviceError(t *testing.T) {
	dev := &fakeWattsUpDevice{}
	_, err := readWatts(dev)
	assert.Error(t, err)
}
