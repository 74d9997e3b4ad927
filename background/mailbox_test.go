// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package background

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMailboxRestartProducesOneValue(t *testing.T) {
	calls := 0
	m := NewMailbox(func() (any, error) {
		calls++
		return calls, nil
	})
	defer m.Stop()

	_, ok := m.GetResult()
	assert.False(t, ok, "no restart yet, nothing should be ready")

	m.Restart()
	require.Eventually(t, m.HasResult, time.Second, time.Millisecond)

	v, ok := m.GetResult()
	require.True(t, ok)
	assert.Equal(t, 1, v)

	_, ok = m.GetResult()
	assert.False(t, ok, "consumer reads at most one value per restart")
}

func TestMailboxProducerErrorSkipsResult(t *testing.T) {
	m := NewMailbox(func() (any, error) {
		return nil, errors.New("boom")
	})
	defer m.Stop()

	m.Restart()
	time.Sleep(20 * time.Millisecond)
	assert.False(t, m.HasResult())
}

func TestMailboxStopHaltsProducer(t *testing.T) {
	m := NewMailbox(func() (any, error) {
		return "v", nil
	})
	m.Stop()

	m.Restart()
	time.Sleep(20 * time.Millisecond)
	assert.False(t, m.HasResult())
}
