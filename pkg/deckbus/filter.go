// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package deckbus

import "bytes"

// ChangeFilter suppresses decoded events of chatty opcodes whose masked
// response body did not change since the last emitted event.
//
// Masks apply to the response body (status byte first, checksum excluded).
// A mask bit of 1 takes part in the comparison; body bytes beyond the end
// of the mask are compared in full. A body of a different length always
// counts as a change.
type ChangeFilter struct {
	masks   map[uint8][]byte
	cache   map[uint8][]byte
	verbose bool
}

// NewChangeFilter creates a filter for the opcodes in masks
func NewChangeFilter(masks map[uint8][]byte) *ChangeFilter {
	return &ChangeFilter{
		masks: masks,
		cache: make(map[uint8][]byte),
	}
}

// SetVerbose disables suppression when on
func (f *ChangeFilter) SetVerbose(on bool) {
	f.verbose = on
}

// Verbose returns true if suppression is disabled
func (f *ChangeFilter) Verbose() bool {
	return f.verbose
}

// Filtered returns true if opcode is subject to change filtering
func (f *ChangeFilter) Filtered(opcode uint8) bool {
	_, ok := f.masks[opcode&OpcodeMask]
	return ok
}

// Allow reports whether ev should be emitted. Only decoded events of
// filtered opcodes are ever suppressed. The cache is updated even in
// verbose mode so leaving verbose mode does not repeat stale values.
func (f *ChangeFilter) Allow(ev Event) bool {
	if ev.Kind != EventDecoded {
		return true
	}
	mask, ok := f.masks[ev.Opcode]
	if !ok {
		return true
	}

	body := maskBody(ev.responseBody(), mask)
	last, seen := f.cache[ev.Opcode]
	changed := !seen || !bytes.Equal(last, body)
	if changed {
		f.cache[ev.Opcode] = body
	}
	return changed || f.verbose
}

// Reset forgets every cached value
func (f *ChangeFilter) Reset() {
	f.cache = make(map[uint8][]byte)
}

func maskBody(body, mask []byte) []byte {
	out := make([]byte, len(body))
	for i, b := range body {
		if i < len(mask) {
			b &= mask[i]
		}
		out[i] = b
	}
	return out
}

// FrontPanelMasks returns the change filter masks of the front panel bus
func FrontPanelMasks() map[uint8][]byte {
	return map[uint8][]byte{
		// Flag bits 0x02 and 0x04 toggle constantly while the tape runs
		FPPollStatus: {0xFF, 0xF9, 0xFF, 0xFF},
		// Only a track change is worth a line
		FPDeckTime: {0x00, 0x00, 0xFF, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00},
		FPVUMeter:  {0x00, 0x00, 0x00},
	}
}

// DeckControlMasks returns the change filter masks of the deck controller bus
func DeckControlMasks() map[uint8][]byte {
	return map[uint8][]byte{
		DCStatus: {0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF},
	}
}

// MasksFor returns the change filter masks of a bus
func MasksFor(bus Bus) map[uint8][]byte {
	switch bus {
	case BusDeckControl:
		return DeckControlMasks()
	default:
		return FrontPanelMasks()
	}
}
