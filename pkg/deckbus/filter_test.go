// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package deckbus

import (
	"testing"
)

func decodedEvent(t *testing.T, table Table, cmd, rsp []byte) Event {
	t.Helper()
	ev := NewDecoder(table).Decode(makeTx(cmd, rsp))
	if ev.Kind != EventDecoded {
		t.Fatalf("Expected decoded event, got %s (%s)", ev.Kind, ev.Reason)
	}
	return ev
}

// ============================================================
// Change Filter Tests
// ============================================================

func TestChangeFilter_Idempotence(t *testing.T) {
	f := NewChangeFilter(FrontPanelMasks())
	ev := decodedEvent(t, FrontPanelTable(), seg(false, 0x41), seg(false, 0x00, 0x10, 0x20, 0x40))

	emitted := 0
	for i := 0; i < 50; i++ {
		if f.Allow(ev) {
			emitted++
		}
	}
	if emitted != 1 {
		t.Errorf("Emitted %d events for 50 identical polls, want 1", emitted)
	}
}

func TestChangeFilter_MaskedBitsIgnored(t *testing.T) {
	f := NewChangeFilter(FrontPanelMasks())
	table := FrontPanelTable()

	first := decodedEvent(t, table, seg(false, 0x41), seg(false, 0x00, 0x10, 0x20, 0x40))
	tacho := decodedEvent(t, table, seg(false, 0x41), seg(false, 0x00, 0x16, 0x20, 0x40))
	drawer := decodedEvent(t, table, seg(false, 0x41), seg(false, 0x00, 0x00, 0x20, 0x40))

	if !f.Allow(first) {
		t.Fatal("First poll must be emitted")
	}
	if f.Allow(tacho) {
		t.Error("Change in tacho bits 0x02/0x04 must be suppressed")
	}
	if !f.Allow(drawer) {
		t.Error("Change in the drawer bit must be emitted")
	}
}

func TestChangeFilter_ParityIgnored(t *testing.T) {
	f := NewChangeFilter(FrontPanelMasks())
	table := FrontPanelTable()

	even := decodedEvent(t, table, seg(false, 0x41), seg(false, 0x00, 0x10, 0x20, 0x40))
	odd := decodedEvent(t, table, seg(true, 0x41), seg(true, 0x00, 0x10, 0x20, 0x40))

	f.Allow(even)
	if f.Allow(odd) {
		t.Error("Alternating parity alone must not count as a change")
	}
}

func TestChangeFilter_DeckTimeTrackOnly(t *testing.T) {
	f := NewChangeFilter(FrontPanelMasks())
	table := FrontPanelTable()
	deckTime := func(track, sec byte) Event {
		return decodedEvent(t, table, seg(false, 0x60),
			seg(false, 0x00, 0x08, track, 0x00, 0x01, sec, 0x00, 0x00, 0x10, 0x00))
	}

	if !f.Allow(deckTime(0x01, 0x00)) {
		t.Fatal("First deck time must be emitted")
	}
	if f.Allow(deckTime(0x01, 0x01)) {
		t.Error("Seconds ticking must be suppressed")
	}
	if !f.Allow(deckTime(0x02, 0x02)) {
		t.Error("Track change must be emitted")
	}
}

func TestChangeFilter_VUEmitsOnce(t *testing.T) {
	f := NewChangeFilter(FrontPanelMasks())
	table := FrontPanelTable()

	if !f.Allow(decodedEvent(t, table, seg(false, 0x5E), seg(false, 0x00, 0x10, 0x10))) {
		t.Fatal("First VU reading must be emitted")
	}
	if f.Allow(decodedEvent(t, table, seg(false, 0x5E), seg(false, 0x00, 0x01, 0x30))) {
		t.Error("VU readings are suppressed unless verbose")
	}
}

func TestChangeFilter_Verbose(t *testing.T) {
	f := NewChangeFilter(FrontPanelMasks())
	f.SetVerbose(true)
	ev := decodedEvent(t, FrontPanelTable(), seg(false, 0x5E), seg(false, 0x00, 0x10, 0x10))

	for i := 0; i < 5; i++ {
		if !f.Allow(ev) {
			t.Fatalf("Verbose filter suppressed event %d", i)
		}
	}

	f.SetVerbose(false)
	if f.Allow(ev) {
		t.Error("Leaving verbose mode must not repeat the cached value")
	}
}

func TestChangeFilter_UnfilteredPassThrough(t *testing.T) {
	f := NewChangeFilter(FrontPanelMasks())
	ev := decodedEvent(t, FrontPanelTable(), seg(false, 0x46), seg(false, 0x00, 0x01))

	for i := 0; i < 5; i++ {
		if !f.Allow(ev) {
			t.Fatal("Unfiltered opcode was suppressed")
		}
	}
	if f.Filtered(0x46) {
		t.Error("0x46 should not be filtered")
	}
	if !f.Filtered(0xC1) {
		t.Error("Poll with parity bit set should be filtered")
	}
}

func TestChangeFilter_OnlyDecodedFiltered(t *testing.T) {
	f := NewChangeFilter(FrontPanelMasks())
	raw := NewDecoder(FrontPanelTable()).Decode(makeTx(seg(false, 0x41), seg(false, 0x00, 0x10)))
	if raw.Kind != EventRawDump {
		t.Fatalf("Expected raw dump, got %s", raw.Kind)
	}
	for i := 0; i < 3; i++ {
		if !f.Allow(raw) {
			t.Fatal("Raw dumps must never be suppressed")
		}
	}
}

func TestChangeFilter_Reset(t *testing.T) {
	f := NewChangeFilter(DeckControlMasks())
	ev := decodedEvent(t, DeckControlTable(), seg(false, 0x45),
		seg(false, 0x00, 0x04, 0x83, 0x01, 0x39, 0x05, 0x09, 0x02, 0x03, 0x00))

	f.Allow(ev)
	if f.Allow(ev) {
		t.Fatal("Repeated status should be suppressed")
	}
	f.Reset()
	if !f.Allow(ev) {
		t.Error("Status after Reset should be emitted")
	}
}

func TestMasksFor(t *testing.T) {
	if _, ok := MasksFor(BusFrontPanel)[FPPollStatus]; !ok {
		t.Error("Front panel masks should filter poll status")
	}
	if _, ok := MasksFor(BusDeckControl)[DCStatus]; !ok {
		t.Error("Deck control masks should filter status")
	}
}
