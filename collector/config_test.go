// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package collector

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearCollectorEnv(t *testing.T) {
	for _, k := range []string{
		"COLLECTOR_PERIOD", "COLLECTOR_EVENTS", "COLLECTOR_PRESETS",
		"COLLECTOR_RESULT_FILE", "COLLECTOR_NOTIFY_START",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearCollectorEnv(t)
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, uint64(defaultPeriod), cfg.Period)
	assert.Equal(t, defaultResultFile, cfg.ResultFile)
	assert.False(t, cfg.NotifyStart)
}

func TestLoadConfigPeriodBelowMinimumIsParamError(t *testing.T) {
	clearCollectorEnv(t)
	t.Setenv("COLLECTOR_PERIOD", "99999")

	_, err := LoadConfig()
	require.Error(t, err)
	var ce *Error
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, ParamError, ce.Code)
}

func TestLoadConfigUnknownEventIsEventError(t *testing.T) {
	clearCollectorEnv(t)
	t.Setenv("COLLECTOR_PERIOD", "1000000")
	t.Setenv("COLLECTOR_EVENTS", "not-a-real-event")

	_, err := LoadConfig()
	require.Error(t, err)
	var ce *Error
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, EventError, ce.Code)
}

func TestLoadConfigMalformedPeriodIsEnvError(t *testing.T) {
	clearCollectorEnv(t)
	t.Setenv("COLLECTOR_PERIOD", "not-a-number")

	_, err := LoadConfig()
	require.Error(t, err)
	var ce *Error
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, EnvError, ce.Code)
}

func TestConfigAllEventsDeduplicatesAcrossPresets(t *testing.T) {
	cfg := Config{
		Events:  []string{"cpu-cycles"},
		Presets: []string{"cpu"},
	}
	events := cfg.AllEvents()
	assert.Equal(t, []string{"cpu-cycles", "instructions"}, events)
}

func TestConfigHasPreset(t *testing.T) {
	cfg := Config{Presets: []string{"rapl"}}
	assert.True(t, cfg.HasPreset("rapl"))
	assert.False(t, cfg.HasPreset("wattsup"))
}
