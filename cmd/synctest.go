// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/Thermoquad/deckmon/pkg/deckbus"
	"github.com/spf13/cobra"
)

var (
	syncTestTimeout int
)

var syncTestCmd = &cobra.Command{
	Use:   "sync_test",
	Short: "Test the capture by waiting for a valid transaction",
	Long: `Wait for a valid bus transaction on the capture source until timeout.

A transaction is valid when both of its segments pass the checksum. Idle
bytes, partial transactions and anomalies seen before the first valid
transaction are counted and reported.

Exit codes:
  0 - Valid transaction received before timeout
  1 - Timeout reached without receiving a valid transaction
  2 - Connection error

Useful for checking the capture wiring and the --bus selection.`,
	RunE: runSyncTest,
}

func init() {
	rootCmd.AddCommand(syncTestCmd)
	syncTestCmd.Flags().IntVar(&syncTestTimeout, "timeout", 10, "Timeout in seconds to wait for a transaction")
}

func runSyncTest(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	s, err := openSession(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer s.Close()

	fmt.Printf("deckmon - Sync Test (%s)\n", cfg.bus())
	fmt.Printf("Connection: %s\n", s.info)
	fmt.Printf("Timeout: %d seconds\n", syncTestTimeout)
	fmt.Printf("Waiting for valid transaction...\n\n")

	eventChan := make(chan deckbus.Event, 1)
	errChan := make(chan error, 1)

	var anomalies atomic.Int64
	sink := deckbus.SinkFunc(func(ev deckbus.Event) {
		if ev.IsError() {
			anomalies.Add(1)
			return
		}
		select {
		case eventChan <- ev:
		default:
		}
	})

	go func() {
		errChan <- s.Run(ctx, sink)
	}()

	select {
	case ev := <-eventChan:
		reportSync(ev, anomalies.Load())

	case err := <-errChan:
		// A replay can end right after its first valid transaction
		select {
		case ev := <-eventChan:
			reportSync(ev, anomalies.Load())
		default:
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
		} else {
			fmt.Fprintf(os.Stderr, "Capture ended without a valid transaction\n")
		}
		os.Exit(2)

	case <-time.After(time.Duration(syncTestTimeout) * time.Second):
		fmt.Fprintf(os.Stderr, "TIMEOUT: No valid transaction received within %d seconds\n", syncTestTimeout)
		os.Exit(1)
	}

	return nil
}

func reportSync(ev deckbus.Event, anomalies int64) {
	if anomalies > 0 {
		fmt.Printf("(%d anomalies before sync)\n", anomalies)
	}
	fmt.Printf("SUCCESS: Received valid transaction\n")
	fmt.Printf("  Opcode: 0x%02X\n", ev.Opcode)
	if ev.Kind == deckbus.EventDecoded {
		fmt.Printf("  Command: %s\n", ev.Name)
		fmt.Printf("  Value: %s\n", ev.Tag)
	} else {
		fmt.Printf("  Not in the %s decode table (%s), check --bus\n", cfg.bus(), ev.Reason)
	}
	fmt.Printf("  Raw: %s\n", deckbus.FormatHex(ev.Raw()))
	os.Exit(0)
}
