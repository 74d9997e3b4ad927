// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package collector

import (
	"os"
	"strconv"
	"strings"

	"github.com/alexprofiler/collector/perfevent"
)

// MinPeriod is the floor below which a sample period is rejected at
// startup (ParamError) and below which the Period Controller will
// not divide further on Unthrottle, matching const.hpp's MIN_PERIOD.
const MinPeriod = 100000

// PeriodAdjustScale is the multiplicative factor the Period
// Controller applies on Throttle/Unthrottle, matching const.hpp's
// PERIOD_ADJUST_SCALE.
const PeriodAdjustScale = 10

// defaults for the environment configuration table in spec §6.
const (
	defaultPeriod     = 10000000
	defaultResultFile = "result.txt"
)

// Config is the immutable, read-mostly configuration object spec §9's
// DESIGN NOTES calls for: "model it as an immutable handle passed
// into each component rather than ambient state," replacing the
// original's global_vars singleton.
type Config struct {
	Period      uint64
	Events      []string
	Presets     []string
	ResultFile  string
	NotifyStart bool
}

// LoadConfig reads the COLLECTOR_* environment variables (spec §6)
// and validates the period against MinPeriod.
func LoadConfig() (Config, error) {
	cfg := Config{
		Period:     defaultPeriod,
		ResultFile: defaultResultFile,
	}

	if v := os.Getenv("COLLECTOR_PERIOD"); v != "" {
		period, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return Config{}, newError(EnvError, "COLLECTOR_PERIOD is not a valid integer: %q", v)
		}
		cfg.Period = period
	}
	if cfg.Period < MinPeriod {
		return Config{}, newError(ParamError, "period %d is below the minimum %d", cfg.Period, MinPeriod)
	}

	if v := os.Getenv("COLLECTOR_EVENTS"); v != "" {
		cfg.Events = splitNonEmpty(v)
	}
	if v := os.Getenv("COLLECTOR_PRESETS"); v != "" {
		cfg.Presets = splitNonEmpty(v)
	}
	if v := os.Getenv("COLLECTOR_RESULT_FILE"); v != "" {
		cfg.ResultFile = v
	}
	cfg.NotifyStart = os.Getenv("COLLECTOR_NOTIFY_START") == "yes"

	for _, name := range cfg.Events {
		if _, err := perfevent.Encode(name); err != nil {
			return Config{}, &Error{Code: EventError, Err: err}
		}
	}

	return cfg, nil
}

// AllEvents returns the deduplicated union of explicitly named events
// and the events contributed by configured presets.
func (c Config) AllEvents() []string {
	seen := make(map[string]bool, len(c.Events))
	var events []string
	for _, e := range c.Events {
		if !seen[e] {
			seen[e] = true
			events = append(events, e)
		}
	}
	for _, e := range perfevent.ExpandPresets(c.Presets) {
		if !seen[e] {
			seen[e] = true
			events = append(events, e)
		}
	}
	return events
}

// HasPreset reports whether name is among the configured presets,
// used to decide whether to start the RAPL/WattsUp background
// readers.
func (c Config) HasPreset(name string) bool {
	for _, p := range c.Presets {
		if p == name {
			return true
		}
	}
	return false
}

func splitNonEmpty(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
