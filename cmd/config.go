// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/Thermoquad/deckmon/pkg/deckbus"
	"github.com/spf13/pflag"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// ErrNoSource is returned when no capture source is configured
var ErrNoSource = errors.New("one of --port, --url or --replay must be specified")

// Config holds every setting a command can take from the config file or
// the command line
type Config struct {
	// Capture source
	Port        string `yaml:"port"`
	PortB       string `yaml:"port_b"`
	Baud        int    `yaml:"baud"`
	URL         string `yaml:"url"`
	Username    string `yaml:"username"`
	NoSSLVerify bool   `yaml:"no_ssl_verify"`
	Replay      string `yaml:"replay"`
	Realtime    bool   `yaml:"realtime"`

	// Pipeline
	Bus              string        `yaml:"bus"`
	Verbose          bool          `yaml:"verbose"`
	RingSize         int           `yaml:"ring_size"`
	IdleGap          time.Duration `yaml:"idle_gap"`
	SegmentCapacity  int           `yaml:"segment_capacity"`
	MaxTrackedLength int           `yaml:"max_tracked_length"`

	// Diagnostics
	LogLevel    string `yaml:"log_level"`
	LogFile     string `yaml:"log_file"`
	MetricsAddr string `yaml:"metrics_addr"`
}

func defaultConfig() Config {
	return Config{
		Baud:             115200,
		Bus:              deckbus.BusFrontPanel.String(),
		RingSize:         deckbus.DefaultRingSize,
		IdleGap:          deckbus.DefaultIdleGap,
		SegmentCapacity:  deckbus.DefaultSegmentCapacity,
		MaxTrackedLength: deckbus.DefaultMaxTrackedLength,
		LogLevel:         "info",
	}
}

// loadConfigFile reads a YAML config on top of the defaults. Keys missing
// from the file keep their default value.
func loadConfigFile(path string) (Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// applyFlags copies the flags that were set on the command line from
// flagValues into c
func (c *Config) applyFlags(fs *pflag.FlagSet, flagValues Config) {
	fs.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "port":
			c.Port = flagValues.Port
		case "port-b":
			c.PortB = flagValues.PortB
		case "baud":
			c.Baud = flagValues.Baud
		case "url":
			c.URL = flagValues.URL
		case "username":
			c.Username = flagValues.Username
		case "no-ssl-verify":
			c.NoSSLVerify = flagValues.NoSSLVerify
		case "replay":
			c.Replay = flagValues.Replay
		case "realtime":
			c.Realtime = flagValues.Realtime
		case "bus":
			c.Bus = flagValues.Bus
		case "verbose":
			c.Verbose = flagValues.Verbose
		case "ring-size":
			c.RingSize = flagValues.RingSize
		case "idle-gap":
			c.IdleGap = flagValues.IdleGap
		case "log-level":
			c.LogLevel = flagValues.LogLevel
		case "log-file":
			c.LogFile = flagValues.LogFile
		case "metrics-addr":
			c.MetricsAddr = flagValues.MetricsAddr
		}
	})
}

// Validate checks the settings every command depends on
func (c Config) Validate() error {
	if _, err := deckbus.ParseBus(c.Bus); err != nil {
		return err
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	if c.RingSize <= 0 {
		return fmt.Errorf("ring size must be positive, got %d", c.RingSize)
	}
	if c.IdleGap <= 0 {
		return fmt.Errorf("idle gap must be positive, got %s", c.IdleGap)
	}
	if c.SegmentCapacity < 2 {
		return fmt.Errorf("segment capacity must be at least 2, got %d", c.SegmentCapacity)
	}
	return nil
}

// ValidateSource checks that exactly one capture source is configured
func (c Config) ValidateSource() error {
	sources := 0
	for _, s := range []string{c.Port, c.URL, c.Replay} {
		if s != "" {
			sources++
		}
	}
	switch {
	case sources == 0:
		return ErrNoSource
	case sources > 1:
		return fmt.Errorf("--port, --url and --replay are mutually exclusive")
	case c.PortB != "" && c.Port == "":
		return fmt.Errorf("--port-b requires --port")
	case c.Port != "" && c.Baud <= 0:
		return fmt.Errorf("baud rate must be positive, got %d", c.Baud)
	}
	return nil
}

// bus returns the parsed bus. Only valid after Validate.
func (c Config) bus() deckbus.Bus {
	bus, _ := deckbus.ParseBus(c.Bus)
	return bus
}
