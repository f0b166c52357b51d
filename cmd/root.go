// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	configPath string

	// flagValues receives the raw flag values; cfg is the merged result of
	// defaults, config file and the flags that were set
	flagValues = defaultConfig()
	cfg        = defaultConfig()

	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "deckmon",
	Short: "DCC Bus Monitor",
	Long: `deckmon - A passive monitor for the command buses of a DCC recorder.

Decodes the front panel bus (front panel controller <-> digital board) and
the deck controller bus (digital board <-> DDU-2113 deck controller) into
named transactions, and reports checksum, parity and framing anomalies.

Capture sources:
  Interleaved adapter: --port /dev/ttyUSB0 [--baud 115200]
  Two UART lines:      --port /dev/ttyUSB0 --port-b /dev/ttyUSB1
  WebSocket bridge:    --url ws://host/path [--username user]
  Recording:           --replay capture.cbor [--realtime]

For WebSocket authentication, the password is read from the DECKMON_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.

Settings can also be read from a YAML file with --config. Flags given on the
command line override the file.`,
	Version:           "1.0.0",
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	pf := rootCmd.PersistentFlags()

	pf.StringVar(&configPath, "config", "", "YAML config file")

	// Serial connection flags
	pf.StringVarP(&flagValues.Port, "port", "p", "", "Serial port device (interleaved adapter, or command line with --port-b)")
	pf.StringVar(&flagValues.PortB, "port-b", "", "Serial port device for the response line (dual-line capture)")
	pf.IntVarP(&flagValues.Baud, "baud", "b", flagValues.Baud, "Baud rate (serial only)")

	// WebSocket connection flags
	pf.StringVarP(&flagValues.URL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	pf.StringVar(&flagValues.Username, "username", "", "Username for HTTP Basic auth")
	pf.BoolVar(&flagValues.NoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	// Recording playback
	pf.StringVar(&flagValues.Replay, "replay", "", "Replay a recording instead of capturing")
	pf.BoolVar(&flagValues.Realtime, "realtime", false, "Replay at the recorded pace")

	// Pipeline flags
	pf.StringVar(&flagValues.Bus, "bus", flagValues.Bus, "Bus to decode (frontpanel, deck)")
	pf.BoolVarP(&flagValues.Verbose, "verbose", "v", false, "Show every transaction (disable the change filter)")
	pf.IntVar(&flagValues.RingSize, "ring-size", flagValues.RingSize, "Capture ring size in byte pairs")
	pf.DurationVar(&flagValues.IdleGap, "idle-gap", flagValues.IdleGap, "Line silence that ends a transaction (dual-line capture)")

	// Diagnostics
	pf.StringVar(&flagValues.LogLevel, "log-level", flagValues.LogLevel, "Log level (debug, info, warn, error)")
	pf.StringVar(&flagValues.LogFile, "log-file", "", "Write logs to a file instead of stderr")
	pf.StringVar(&flagValues.MetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
}

// loadConfig merges defaults, the config file and the command line, then
// builds the logger
func loadConfig(cmd *cobra.Command, args []string) error {
	loaded, err := loadConfigFile(configPath)
	if err != nil {
		return err
	}
	loaded.applyFlags(cmd.Flags(), flagValues)
	if err := loaded.Validate(); err != nil {
		return err
	}
	cfg = loaded

	logger, err = newLogger(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	logger.Debug("config loaded", zap.String("file", configPath), zap.String("bus", cfg.Bus))
	return nil
}

// newLogger builds a development logger writing to stderr, or to file when
// one is given
func newLogger(level, file string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}

	zc := zap.NewDevelopmentConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	zc.DisableStacktrace = true
	if file != "" {
		zc.OutputPaths = []string{file}
		zc.ErrorOutputPaths = []string{file}
	}
	return zc.Build()
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
