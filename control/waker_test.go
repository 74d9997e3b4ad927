// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package control

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWakerReportsControlSocketReady(t *testing.T) {
	termR, termW, err := os.Pipe()
	require.NoError(t, err)
	defer termR.Close()
	defer termW.Close()

	sockR, sockW, err := os.Pipe()
	require.NoError(t, err)
	defer sockR.Close()
	defer sockW.Close()

	w, err := NewWaker(int(termR.Fd()), int(sockR.Fd()))
	require.NoError(t, err)
	defer w.Close()

	_, err = sockW.Write([]byte{1})
	require.NoError(t, err)

	wake, err := w.Wait()
	require.NoError(t, err)
	require.False(t, wake.Terminated)
	require.True(t, wake.ControlReady)
	require.Empty(t, wake.LeaderFDs)
}

func TestWakerReportsTermination(t *testing.T) {
	termR, termW, err := os.Pipe()
	require.NoError(t, err)
	defer termR.Close()
	defer termW.Close()

	sockR, sockW, err := os.Pipe()
	require.NoError(t, err)
	defer sockR.Close()
	defer sockW.Close()

	w, err := NewWaker(int(termR.Fd()), int(sockR.Fd()))
	require.NoError(t, err)
	defer w.Close()

	_, err = termW.Write([]byte{1})
	require.NoError(t, err)

	wake, err := w.Wait()
	require.NoError(t, err)
	require.True(t, wake.Terminated)
}

func TestWakerArmAndDisarmLeaderFD(t *testing.T) {
	termR, termW, err := os.Pipe()
	require.NoError(t, err)
	defer termR.Close()
	defer termW.Close()

	sockR, sockW, err := os.Pipe()
	require.NoError(t, err)
	defer sockR.Close()
	defer sockW.Close()

	leaderR, leaderW, err := os.Pipe()
	require.NoError(t, err)
	defer leaderR.Close()
	defer leaderW.Close()

	w, err := NewWaker(int(termR.Fd()), int(sockR.Fd()))
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.Arm(int(leaderR.Fd())))

	_, err = leaderW.Write([]byte{1})
	require.NoError(t, err)

	wake, err := w.Wait()
	require.NoError(t, err)
	require.Equal(t, []int{int(leaderR.Fd())}, wake.LeaderFDs)

	require.NoError(t, w.Disarm(int(leaderR.Fd())))
}
