// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Thermoquad/deckmon/pkg/deckbus"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "deckmon.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// ============================================================
// Config File Tests
// ============================================================

func TestLoadConfigFile_Defaults(t *testing.T) {
	cfg, err := loadConfigFile("")
	require.NoError(t, err)
	assert.Equal(t, defaultConfig(), cfg)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigFile_OverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
port: /dev/ttyUSB0
port_b: /dev/ttyUSB1
bus: deck
idle_gap: 20ms
ring_size: 1024
log_level: debug
`)

	cfg, err := loadConfigFile(path)
	require.NoError(t, err)

	assert.Equal(t, "/dev/ttyUSB0", cfg.Port)
	assert.Equal(t, "/dev/ttyUSB1", cfg.PortB)
	assert.Equal(t, "deck", cfg.Bus)
	assert.Equal(t, 20*time.Millisecond, cfg.IdleGap)
	assert.Equal(t, 1024, cfg.RingSize)
	assert.Equal(t, 115200, cfg.Baud, "keys missing from the file keep their default")
	assert.Equal(t, deckbus.BusDeckControl, cfg.bus())
	assert.NoError(t, cfg.Validate())
	assert.NoError(t, cfg.ValidateSource())
}

func TestLoadConfigFile_Errors(t *testing.T) {
	_, err := loadConfigFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = loadConfigFile(writeConfig(t, "ring_size: [1, 2"))
	assert.Error(t, err)
}

// ============================================================
// Flag Override Tests
// ============================================================

func TestApplyFlags_OnlyChangedFlags(t *testing.T) {
	values := defaultConfig()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.StringVar(&values.Bus, "bus", values.Bus, "")
	fs.IntVarP(&values.Baud, "baud", "b", values.Baud, "")
	fs.StringVar(&values.Port, "port", "", "")
	fs.DurationVar(&values.IdleGap, "idle-gap", values.IdleGap, "")
	require.NoError(t, fs.Parse([]string{"--bus", "frontpanel", "-b", "9600"}))

	cfg, err := loadConfigFile(writeConfig(t, "bus: deck\nport: /dev/ttyS0\nidle_gap: 50ms\n"))
	require.NoError(t, err)
	cfg.applyFlags(fs, values)

	assert.Equal(t, "frontpanel", cfg.Bus)
	assert.Equal(t, 9600, cfg.Baud)
	assert.Equal(t, "/dev/ttyS0", cfg.Port, "unset flag must not clear the file value")
	assert.Equal(t, 50*time.Millisecond, cfg.IdleGap)
}

// ============================================================
// Validation Tests
// ============================================================

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"unknown bus", func(c *Config) { c.Bus = "i2c" }},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }},
		{"zero ring", func(c *Config) { c.RingSize = 0 }},
		{"zero idle gap", func(c *Config) { c.IdleGap = 0 }},
		{"tiny segment", func(c *Config) { c.SegmentCapacity = 1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.modify(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestConfig_ValidateSource(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"none", func(c *Config) {}, true},
		{"serial", func(c *Config) { c.Port = "/dev/ttyUSB0" }, false},
		{"dual line", func(c *Config) { c.Port, c.PortB = "/dev/ttyUSB0", "/dev/ttyUSB1" }, false},
		{"port b alone", func(c *Config) { c.PortB = "/dev/ttyUSB1"; c.URL = "ws://bridge/bus" }, true},
		{"websocket", func(c *Config) { c.URL = "ws://bridge/bus" }, false},
		{"replay", func(c *Config) { c.Replay = "capture.cbor" }, false},
		{"two sources", func(c *Config) { c.Port = "/dev/ttyUSB0"; c.Replay = "capture.cbor" }, true},
		{"zero baud", func(c *Config) { c.Port = "/dev/ttyUSB0"; c.Baud = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.modify(&cfg)
			err := cfg.ValidateSource()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	assert.ErrorIs(t, defaultConfig().ValidateSource(), ErrNoSource)
}

func TestNewLogger(t *testing.T) {
	log, err := newLogger("warn", filepath.Join(t.TempDir(), "deckmon.log"))
	require.NoError(t, err)
	assert.False(t, log.Core().Enabled(-1), "debug must be disabled at warn level")

	_, err = newLogger("chatty", "")
	assert.Error(t, err)
}
