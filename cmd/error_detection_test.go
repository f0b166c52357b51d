// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bytes"
	"testing"

	"github.com/Thermoquad/deckmon/pkg/deckbus"
	"github.com/stretchr/testify/assert"
)

func TestAnomalyPrinter(t *testing.T) {
	tests := []struct {
		name    string
		showRaw bool
		event   deckbus.Event
		want    []string
	}{
		{
			name:  "decoded is silent",
			event: deckbus.Event{Kind: deckbus.EventDecoded, Opcode: deckbus.FPDrawerStatus},
		},
		{
			name:  "raw dump hidden by default",
			event: deckbus.Event{Kind: deckbus.EventRawDump, Opcode: 0x29},
		},
		{
			name:    "raw dump shown",
			showRaw: true,
			event:   deckbus.Event{Kind: deckbus.EventRawDump, Opcode: 0x29, Reason: deckbus.ReasonUnknownOpcode},
			want:    []string{"RAW DUMP:", "29 ??"},
		},
		{
			name:  "checksum",
			event: deckbus.Event{Kind: deckbus.EventChecksumError, Segment: deckbus.SegmentBoth, Command: []byte{0x46, 0xB8}},
			want:  []string{"CHECKSUM ERROR:", "Command:  46 B8", "TRANSACTION REJECTED"},
		},
		{
			name: "parity",
			event: deckbus.Event{
				Kind:     deckbus.EventParityMismatch,
				Command:  []byte{0xC6, 0x39},
				Response: []byte{0x00, 0x02, 0xFD},
			},
			want: []string{"PARITY MISMATCH:", "command 1, response 0"},
		},
		{
			name:  "truncated",
			event: deckbus.Event{Kind: deckbus.EventMalformed, Reason: deckbus.ReasonTruncated, Truncated: true},
			want:  []string{"MALFORMED:", "exceeded the capture buffer"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			p := &anomalyPrinter{w: &buf, showRaw: tt.showRaw}
			p.HandleEvent(tt.event)

			if len(tt.want) == 0 {
				assert.Empty(t, buf.String())
				return
			}
			for _, w := range tt.want {
				assert.Contains(t, buf.String(), w)
			}
		})
	}
}

func TestAnomalyPrinter_Stats(t *testing.T) {
	var buf bytes.Buffer
	p := &anomalyPrinter{w: &buf}
	p.printStats(newTestStats())
	assert.Regexp(t, `Transactions:\s+3\n`, buf.String())
	assert.Contains(t, buf.String(), "Checksum Errors:")
}
