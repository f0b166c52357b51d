// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package deckbus

import (
	"strings"
	"testing"
)

// ============================================================
// Formatter Tests
// ============================================================

func TestFormatHex(t *testing.T) {
	if got := FormatHex([]byte{0x46, 0xB9, 0x00}); got != "46 B9 00 " {
		t.Errorf("FormatHex = %q", got)
	}
	if got := FormatHex(nil); got != "" {
		t.Errorf("FormatHex(nil) = %q", got)
	}
}

func TestFormatText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"DCC", `"DCC"`},
		{"", `""`},
		{"a\x01b", `"a\x01b"`},
		{"~\x7F", `"\x7E\x7F"`},
	}
	for _, tt := range tests {
		if got := FormatText([]byte(tt.in)); got != tt.want {
			t.Errorf("FormatText(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestFormatEventKind(t *testing.T) {
	kinds := map[EventKind]string{
		EventDecoded:        "DECODED",
		EventRawDump:        "RAW_DUMP",
		EventChecksumError:  "CHECKSUM_ERROR",
		EventParityMismatch: "PARITY_MISMATCH",
		EventMalformed:      "MALFORMED",
		EventKind(99):       "UNKNOWN",
	}
	for k, want := range kinds {
		if got := k.String(); got != want {
			t.Errorf("EventKind(%d).String() = %q, want %q", int(k), got, want)
		}
	}
}

func TestFormatEvent(t *testing.T) {
	decoded := NewDecoder(FrontPanelTable()).Decode(makeTx([]byte{0x46, 0xB9}, []byte{0x00, 0x01, 0xFE}))
	out := FormatEvent(decoded)
	if !strings.HasPrefix(out, "[15:09:26.000] 46 DRAWER STATUS: drawer closed\n") {
		t.Errorf("Decoded line = %q", out)
	}
	if !strings.Contains(out, "state=0x01") {
		t.Errorf("Decoded fields missing: %q", out)
	}

	raw := NewDecoder(FrontPanelTable()).Decode(makeTx([]byte{0x29, 0xD6}, []byte{0x00, 0xFF}))
	out = FormatEvent(raw)
	if !strings.Contains(out, "?? (unknown opcode) 29 D6 -- 00 FF ") {
		t.Errorf("Raw dump line = %q", out)
	}

	malformed := newEvent(EventMalformed, makeTx([]byte{0x46}, nil))
	malformed.Reason = ReasonShortSegment
	out = FormatEvent(malformed)
	if !strings.Contains(out, "MALFORMED (short segment) 46 ") {
		t.Errorf("Malformed line = %q", out)
	}
}

func TestFormatFields(t *testing.T) {
	got := FormatFields([]Field{
		{"state", byte(0x01)},
		{"text", "A\x00"},
		{"flags", []string{"SYSTEM", "EOT"}},
		{"id", []byte{0x12, 0x34}},
		{"track", -3},
	})
	want := `state=0x01 text="A\x00" flags=SYSTEM,EOT id=12 34 track=-3`
	if got != want {
		t.Errorf("FormatFields = %s, want %s", got, want)
	}
}

func TestVUSegments(t *testing.T) {
	tests := []struct {
		db   int
		want int
	}{
		{0, 40},
		{5, 40},
		{-1, 39},
		{-10, 30},
		{-23, 18},
		{-60, 2},
		{-94, 1},
		{-95, 0},
		{-120, 0},
	}
	for _, tt := range tests {
		if got := VUSegments(tt.db); got != tt.want {
			t.Errorf("VUSegments(%d) = %d, want %d", tt.db, got, tt.want)
		}
	}
}

func TestFormatVU(t *testing.T) {
	if got := FormatVU(0, 20); got != strings.Repeat("=", 20) {
		t.Errorf("FormatVU(0, 20) = %q", got)
	}
	if got := FormatVU(-10, 20); got != strings.Repeat("=", 15)+strings.Repeat(" ", 5) {
		t.Errorf("FormatVU(-10, 20) = %q", got)
	}
	if got := FormatVU(-95, 8); got != "        " {
		t.Errorf("FormatVU(-95, 8) = %q", got)
	}
}

// ============================================================
// Statistics Tests
// ============================================================

func TestStatistics_Counts(t *testing.T) {
	s := NewStatistics()
	for i := 0; i < 4; i++ {
		s.RecordTransaction()
	}
	s.RecordEvent(Event{Kind: EventDecoded})
	s.RecordEvent(Event{Kind: EventRawDump})
	s.RecordEvent(Event{Kind: EventChecksumError})
	s.RecordEvent(Event{Kind: EventMalformed, Truncated: true})
	s.RecordSuppressed()
	s.RecordParityRepeat()
	s.SetRingOverflows(7)

	snap := s.Snapshot()
	if snap.Transactions != 4 || snap.Decoded != 1 || snap.RawDumps != 1 {
		t.Errorf("Snapshot = %+v", snap)
	}
	if snap.ChecksumErrors != 1 || snap.Malformed != 1 || snap.Truncated != 1 {
		t.Errorf("Error counters = %+v", snap)
	}
	if snap.Suppressed != 1 || snap.ParityRepeats != 1 || snap.RingOverflows != 7 {
		t.Errorf("Other counters = %+v", snap)
	}
	if snap.Errors() != 2 {
		t.Errorf("Errors = %d, want 2", snap.Errors())
	}

	out := s.String()
	for _, want := range []string{"Transactions:", "Checksum Errors:", "Truncated:", "Ring Overflows:"} {
		if !strings.Contains(out, want) {
			t.Errorf("String() missing %q:\n%s", want, out)
		}
	}

	s.Reset()
	if snap := s.Snapshot(); snap.Transactions != 0 || snap.RingOverflows != 0 {
		t.Errorf("Reset left counters: %+v", snap)
	}
}
