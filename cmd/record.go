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
	"go.uber.org/zap"
)

var (
	recordOut      string
	recordDuration time.Duration
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record the raw bus to a file for later replay",
	Long: `Write every captured byte pair to a CBOR recording.

The recording keeps the timing of each read, so it can be replayed at the
original pace with --replay <file> --realtime. Transactions are decoded while
recording and counted; use decode on the recording to view them.`,
	RunE: runRecord,
}

func init() {
	rootCmd.AddCommand(recordCmd)
	recordCmd.Flags().StringVarP(&recordOut, "out", "o", "", "Recording file to write")
	recordCmd.Flags().DurationVar(&recordDuration, "duration", 0, "Stop after this long (0 records until Ctrl+C)")
	_ = recordCmd.MarkFlagRequired("out")
}

func runRecord(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()
	if recordDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, recordDuration)
		defer cancel()
	}

	s, err := openSession(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer s.Close()

	f, err := os.Create(recordOut)
	if err != nil {
		return fmt.Errorf("failed to create recording: %w", err)
	}
	defer f.Close()

	rec, err := deckbus.NewRecorder(f, cfg.bus())
	if err != nil {
		return err
	}

	var writeErrors atomic.Uint64
	s.capture.SetTap(func(pairs []deckbus.Pair) {
		if err := rec.Write(pairs); err != nil {
			if writeErrors.Add(1) == 1 {
				logger.Error("recording write failed", zap.Error(err))
			}
		}
	})

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "deckmon - Record (%s)\n", cfg.bus())
	fmt.Fprintf(out, "Connection: %s\n", s.info)
	fmt.Fprintf(out, "Output: %s\n", recordOut)
	fmt.Fprintf(out, "Press Ctrl+C to stop\n\n")

	var events atomic.Uint64
	err = s.Run(ctx, deckbus.SinkFunc(func(ev deckbus.Event) {
		events.Add(1)
	}))
	if err != nil {
		return err
	}

	if n := writeErrors.Load(); n > 0 {
		return fmt.Errorf("recording incomplete: %d writes failed", n)
	}

	fmt.Fprintf(out, "Recorded %d pairs in %d chunks (%d events)\n", rec.Pairs(), rec.Records(), events.Load())
	return f.Sync()
}
