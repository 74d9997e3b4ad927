// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package background

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMeasureEnergyWalksZonesAndSubzones(t *testing.T) {
	root := t.TempDir()

	pkg := filepath.Join(root, "intel-rapl:0")
	require.NoError(t, os.MkdirAll(pkg, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(pkg, "name"), []byte("package-0\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(pkg, "energy_uj"), []byte("123456\n"), 0o644))

	sub := filepath.Join(pkg, "intel-rapl:0:0")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "name"), []byte("core\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "energy_uj"), []byte("9999\n"), 0o644))

	reading, err := measureEnergy(root)
	require.NoError(t, err)

	assert.Equal(t, uint64(123456), reading["package-0"])
	assert.Equal(t, uint64(9999), reading["core"])
}

func TestMeasureEnergySkipsZonesMissingFiles(t *testing.T) {
	root := t.TempDir()
	incomplete := filepath.Join(root, "intel-rapl:0")
	require.NoError(t, os.MkdirAll(incomplete, 0o755))
	// no name/energy_uj files written

	reading, err := measureEnergy(root)
	require.NoError(t, err)
	assert.Empty(t, reading)
}

func TestMeasureEnergyMissingRootIsError(t *testing.T) {
	_, err := measureEnergy(filepath.Join(t.TempDir(), "does-not-exist"))
	assert.Error(t, err)
}
