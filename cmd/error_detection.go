// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/Thermoquad/deckmon/pkg/deckbus"
	"github.com/spf13/cobra"
)

var (
	showRaw       bool
	statsInterval int
)

var errorDetectionCmd = &cobra.Command{
	Use:   "error_detection",
	Short: "Detect and analyze bus anomalies",
	Long: `Track transaction errors with statistics.

This command validates each transaction and reports:
  - Checksum errors, with the failing segment (command, response or both)
  - Parity mismatches between command and response
  - Malformed and truncated transactions (missing or runaway segments)
  - Unknown opcodes and length mismatches (raw dumps, with --show-raw)

Decoded transactions are not displayed. Statistics are printed at a
configurable interval and once more on exit.`,
	RunE: runErrorDetection,
}

func init() {
	rootCmd.AddCommand(errorDetectionCmd)
	errorDetectionCmd.Flags().BoolVar(&showRaw, "show-raw", false, "Also show raw dumps (unknown or mismatched transactions)")
	errorDetectionCmd.Flags().IntVar(&statsInterval, "stats-interval", 10, "Statistics update interval (seconds)")
}

// anomalyPrinter writes highlighted anomaly reports. Statistics are printed
// from another goroutine, so writes are serialized.
type anomalyPrinter struct {
	mu      sync.Mutex
	w       io.Writer
	showRaw bool
}

func (a *anomalyPrinter) HandleEvent(ev deckbus.Event) {
	if !ev.IsError() && !(a.showRaw && ev.Kind == deckbus.EventRawDump) {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	timestamp := ev.Timestamp.Format("15:04:05.000")
	switch ev.Kind {
	case deckbus.EventChecksumError:
		fmt.Fprintf(a.w, "[%s] \033[1;31mCHECKSUM ERROR:\033[0m %s segment\n", timestamp, ev.Segment)
	case deckbus.EventParityMismatch:
		fmt.Fprintf(a.w, "[%s] \033[1;33mPARITY MISMATCH:\033[0m command %d, response %d\n",
			timestamp, parityOf(ev.Command), parityOf(ev.Response))
	case deckbus.EventMalformed:
		fmt.Fprintf(a.w, "[%s] \033[1;31mMALFORMED:\033[0m %s\n", timestamp, ev.Reason)
		if ev.Truncated {
			fmt.Fprintf(a.w, "  Segment exceeded the capture buffer, bytes beyond it were dropped\n")
		}
	case deckbus.EventRawDump:
		name := ev.Name
		if name == "" {
			name = "??"
		}
		fmt.Fprintf(a.w, "[%s] \033[1;36mRAW DUMP:\033[0m %02X %s (%s)\n", timestamp, ev.Opcode, name, ev.Reason)
	}

	fmt.Fprintf(a.w, "  Command:  %s\n", deckbus.FormatHex(ev.Command))
	fmt.Fprintf(a.w, "  Response: %s\n", deckbus.FormatHex(ev.Response))
	if ev.IsError() {
		fmt.Fprintf(a.w, "  >>> TRANSACTION REJECTED <<<\n")
	}
	fmt.Fprintln(a.w)
}

func (a *anomalyPrinter) printStats(stats *deckbus.Statistics) {
	a.mu.Lock()
	defer a.mu.Unlock()

	fmt.Fprintln(a.w)
	fmt.Fprint(a.w, stats.String())
	fmt.Fprintln(a.w)
}

func parityOf(segment []byte) uint8 {
	if len(segment) == 0 {
		return 0
	}
	return segment[0] >> 7
}

func runErrorDetection(cmd *cobra.Command, args []string) error {
	if statsInterval <= 0 {
		return fmt.Errorf("stats interval must be positive, got %d", statsInterval)
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	s, err := openSession(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer s.Close()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "deckmon - Error Detection Mode (%s)\n", cfg.bus())
	fmt.Fprintf(out, "Connection: %s\n", s.info)
	fmt.Fprintf(out, "Statistics interval: %d seconds\n", statsInterval)
	if showRaw {
		fmt.Fprintf(out, "Mode: Errors and raw dumps\n")
	} else {
		fmt.Fprintf(out, "Mode: Errors only\n")
	}
	fmt.Fprintf(out, "Press Ctrl+C to exit\n\n")

	printer := &anomalyPrinter{w: out, showRaw: showRaw}
	stats := s.monitor.Statistics()

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(time.Duration(statsInterval) * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				printer.printStats(stats)
			case <-done:
				return
			}
		}
	}()

	err = s.Run(ctx, printer)
	printer.printStats(stats)
	return err
}
