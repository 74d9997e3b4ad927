// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package trace

import (
	"bufio"
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterEmitsNewlineDelimitedRecords(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	require.NoError(t, w.WriteHeader(NewHeader("test-run", "1.0.0", []string{"cpu"})))

	ts := NewTimeslice()
	ts.PID = 100
	ts.TID = 101
	ts.Events["cpu-cycles"] = 42
	require.NoError(t, w.WriteTimeslice(ts))

	require.NoError(t, w.WriteError(NewThrottleError(101, 20000)))

	scanner := bufio.NewScanner(&buf)
	var kinds []string
	for scanner.Scan() {
		var generic map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &generic))
		kinds = append(kinds, generic["kind"].(string))
	}
	assert.Equal(t, []string{"header", "timeslice", "error"}, kinds)
}

func TestTimesliceOmitsAbsentEnergyFields(t *testing.T) {
	ts := NewTimeslice()
	ts.PID, ts.TID = 1, 2

	b, err := json.Marshal(ts)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	_, hasEnergy := m["energy"]
	_, hasWattsUp := m["wattsup"]
	assert.False(t, hasEnergy)
	assert.False(t, hasWattsUp)
}

func TestThrottleErrorRoundTrip(t *testing.T) {
	e := NewThrottleError(55, 30000)
	b, err := json.Marshal(e)
	require.NoError(t, err)

	var got Error
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, e, got)
}
