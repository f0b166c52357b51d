// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/Thermoquad/deckmon/pkg/deckbus"
	"github.com/spf13/cobra"
)

var decodeCmd = &cobra.Command{
	Use:   "decode",
	Short: "Display decoded bus transactions in human-readable format",
	Long: `Continuously decode and display bus transactions as they arrive.

Each transaction is shown with timestamp, opcode, command name and decoded
value. Polled values that did not change are suppressed unless --verbose is
given. Transactions that do not match the decode table are shown as raw
hex dumps; checksum, parity and framing anomalies are always shown.

Supports serial, WebSocket and recorded capture sources.`,
	RunE: runDecode,
}

func init() {
	rootCmd.AddCommand(decodeCmd)
}

// textSink writes every event in the decode log format
func textSink(w io.Writer) deckbus.EventSink {
	return deckbus.SinkFunc(func(ev deckbus.Event) {
		fmt.Fprint(w, deckbus.FormatEvent(ev))
	})
}

// signalContext is cancelled on Ctrl+C or SIGTERM
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func runDecode(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	s, err := openSession(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer s.Close()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "deckmon - Bus Decode (%s)\n", cfg.bus())
	fmt.Fprintf(out, "Connection: %s\n", s.info)
	fmt.Fprintf(out, "Press Ctrl+C to exit\n\n")

	return s.Run(ctx, textSink(out))
}
