// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package deckbus

import (
	"bytes"
	"testing"
)

// ============================================================
// Checksum Tests
// ============================================================

func TestChecksum_KnownValues(t *testing.T) {
	tests := []struct {
		name  string
		data  []byte
		valid bool
	}{
		{"drawer command", []byte{0x46, 0xB9}, true},
		{"drawer command off by one", []byte{0x46, 0xB8}, false},
		{"drawer response", []byte{0x00, 0x01, 0xFE}, true},
		{"single FF", []byte{0xFF}, true},
		{"empty", []byte{}, false},
		{"wraps", []byte{0x80, 0x80, 0xFF}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ChecksumValid(tt.data); got != tt.valid {
				t.Errorf("ChecksumValid(% X) = %v, want %v (sum 0x%02X)", tt.data, got, tt.valid, Checksum(tt.data))
			}
		})
	}
}

func TestChecksum_AppendAlwaysValid(t *testing.T) {
	for i := 0; i < 256; i++ {
		body := []byte{byte(i), byte(i * 7), byte(255 - i)}
		seg := AppendChecksum(body)
		if !ChecksumValid(seg) {
			t.Fatalf("AppendChecksum(% X) = % X, not valid", body, seg)
		}
		if !bytes.Equal(seg[:3], body) {
			t.Fatalf("AppendChecksum modified body: % X", seg)
		}
	}
}

func TestChecksum_OnlyTargetSumAccepted(t *testing.T) {
	for last := 0; last < 256; last++ {
		data := []byte{0x46, byte(last)}
		want := byte(0x46+last) == ChecksumTarget
		if got := ChecksumValid(data); got != want {
			t.Errorf("ChecksumValid(% X) = %v, want %v", data, got, want)
		}
	}
}

// ============================================================
// Synchronizer Tests
// ============================================================

func TestSynchronizer_DirectionResolution(t *testing.T) {
	s := NewSynchronizer()
	pairs := []Pair{
		{0x46, 0xFF},
		{0xB9, 0xFF},
		{0xFF, 0x00},
		{0xFF, 0x01},
		{0xFF, 0xFE},
		{0xFF, 0xFF},
	}

	txs := feedAll(s, pairs)
	if len(txs) != 1 {
		t.Fatalf("Expected 1 transaction, got %d", len(txs))
	}

	tx := txs[0]
	if !bytes.Equal(tx.Command.Bytes, []byte{0x46, 0xB9}) {
		t.Errorf("Command = % X, want 46 B9", tx.Command.Bytes)
	}
	if !bytes.Equal(tx.Response.Bytes, []byte{0x00, 0x01, 0xFE}) {
		t.Errorf("Response = % X, want 00 01 FE", tx.Response.Bytes)
	}
	if s.Open() {
		t.Error("Synchronizer should be idle after the transaction closed")
	}
}

func TestSynchronizer_IdleOutsideTransactionIgnored(t *testing.T) {
	s := NewSynchronizer()
	for i := 0; i < 10; i++ {
		if tx := s.Feed(Pair{IdleByte, IdleByte}); tx != nil {
			t.Fatalf("Idle pair produced a transaction")
		}
	}
	if s.Open() {
		t.Error("Idle pairs should not open a transaction")
	}
	if s.Discarded() != 10 {
		t.Errorf("Discarded = %d, want 10", s.Discarded())
	}
}

func TestSynchronizer_IdleAbsorbedInCommand(t *testing.T) {
	s := NewSynchronizer()
	pairs := []Pair{
		{0x46, 0xFF},
		{0xFF, 0xFF}, // gap inside the command segment
		{0xB9, 0xFF},
		{0xFF, 0x00},
		{0xFF, 0xFF},
	}

	txs := feedAll(s, pairs)
	if len(txs) != 1 {
		t.Fatalf("Expected 1 transaction, got %d", len(txs))
	}
	if !bytes.Equal(txs[0].Command.Bytes, []byte{0x46, 0xFF, 0xB9}) {
		t.Errorf("Command = % X, want 46 FF B9", txs[0].Command.Bytes)
	}
}

func TestSynchronizer_ConsecutiveTransactions(t *testing.T) {
	s := NewSynchronizer()

	var pairs []Pair
	pairs = append(pairs, busPairs(seg(false, 0x46), seg(false, 0x00, 0x01))...)
	pairs = append(pairs, busPairs(seg(true, 0x41), seg(true, 0x00, 0x10, 0x20, 0x40))...)
	pairs = append(pairs, busPairs(seg(false, 0x5E), seg(false, 0x00, 0x10, 0x12))...)

	txs := feedAll(s, pairs)
	if len(txs) != 3 {
		t.Fatalf("Expected 3 transactions, got %d", len(txs))
	}

	opcodes := []uint8{0x46, 0x41, 0x5E}
	for i, tx := range txs {
		if tx.Opcode() != opcodes[i] {
			t.Errorf("Transaction %d opcode = 0x%02X, want 0x%02X", i, tx.Opcode(), opcodes[i])
		}
	}
	if txs[1].Parity() != 1 {
		t.Errorf("Second transaction parity = %d, want 1", txs[1].Parity())
	}
}

func TestSynchronizer_CommandDuringResponseStartsNewTransaction(t *testing.T) {
	s := NewSynchronizer()
	pairs := []Pair{
		{0x46, 0xFF},
		{0xB9, 0xFF},
		{0xFF, 0x00},
		{0xFF, 0x01},
		{0xFF, 0xFE},
		{0x41, 0xFF}, // no idle cycle before the next command
	}

	txs := feedAll(s, pairs)
	if len(txs) != 1 {
		t.Fatalf("Expected 1 transaction, got %d", len(txs))
	}
	if !bytes.Equal(txs[0].Response.Bytes, []byte{0x00, 0x01, 0xFE}) {
		t.Errorf("Response = % X", txs[0].Response.Bytes)
	}
	if !s.Open() {
		t.Fatal("Second transaction should be open")
	}

	tx := s.Flush()
	if tx == nil || tx.Opcode() != 0x41 {
		t.Fatalf("Flush returned %+v, want open 0x41 transaction", tx)
	}
	if tx.Response.Len != 0 {
		t.Errorf("Flushed transaction has %d response bytes, want 0", tx.Response.Len)
	}
}

func TestSynchronizer_ResponseWithoutCommand(t *testing.T) {
	s := NewSynchronizer()
	txs := feedAll(s, []Pair{{0xFF, 0x00}, {0xFF, 0xFF}})
	if len(txs) != 1 {
		t.Fatalf("Expected 1 transaction, got %d", len(txs))
	}
	if txs[0].Command.Len != 0 {
		t.Errorf("Command length = %d, want 0", txs[0].Command.Len)
	}
	if txs[0].Response.Len != 1 {
		t.Errorf("Response length = %d, want 1", txs[0].Response.Len)
	}
}

func TestSynchronizer_Overflow(t *testing.T) {
	s := NewSynchronizer(WithSegmentCapacity(4))

	var pairs []Pair
	for i := 0; i < 6; i++ {
		pairs = append(pairs, Pair{byte(0x10 + i), IdleByte})
	}
	pairs = append(pairs, Pair{IdleByte, 0x00}, Pair{IdleByte, 0xEE}, Pair{IdleByte, IdleByte})

	txs := feedAll(s, pairs)
	if len(txs) != 1 {
		t.Fatalf("Expected 1 transaction, got %d", len(txs))
	}

	tx := txs[0]
	if len(tx.Command.Bytes) != 4 {
		t.Errorf("Kept %d command bytes, want 4", len(tx.Command.Bytes))
	}
	if tx.Command.Len != 6 {
		t.Errorf("Tracked command length = %d, want 6", tx.Command.Len)
	}
	if !tx.Truncated() {
		t.Error("Transaction should be truncated")
	}
	if s.Overflows() != 1 {
		t.Errorf("Overflows = %d, want 1", s.Overflows())
	}
}

func TestSynchronizer_MaxTrackedLengthForcesClose(t *testing.T) {
	s := NewSynchronizer(WithSegmentCapacity(4), WithMaxTrackedLength(8))

	var txs []*Transaction
	for i := 0; i < 8; i++ {
		if tx := s.Feed(Pair{0x10, IdleByte}); tx != nil {
			txs = append(txs, tx)
		}
	}
	if len(txs) != 1 {
		t.Fatalf("Expected forced close after 8 bytes, got %d transactions", len(txs))
	}
	if txs[0].Command.Len != 8 {
		t.Errorf("Tracked length = %d, want 8", txs[0].Command.Len)
	}
	if s.Open() {
		t.Error("Synchronizer should be idle after forced close")
	}
}

func TestSynchronizer_Timestamp(t *testing.T) {
	s := NewSynchronizer(withClock(fixedClock()))
	txs := feedAll(s, busPairs(seg(false, 0x46), seg(false, 0x00, 0x01)))
	if len(txs) != 1 {
		t.Fatalf("Expected 1 transaction, got %d", len(txs))
	}
	if !txs[0].Timestamp.Equal(testTime) {
		t.Errorf("Timestamp = %v, want %v", txs[0].Timestamp, testTime)
	}
}

func TestSynchronizer_Reset(t *testing.T) {
	s := NewSynchronizer()
	s.Feed(Pair{0x46, IdleByte})
	if !s.Open() {
		t.Fatal("Expected open transaction")
	}
	s.Reset()
	if s.Open() {
		t.Error("Reset should drop the open transaction")
	}
	if s.Flush() != nil {
		t.Error("Flush after Reset should return nil")
	}
}

// ============================================================
// Segment Tests
// ============================================================

func TestSegment_Body(t *testing.T) {
	s := Segment{Bytes: []byte{0xC6, 0x39}, Len: 2}
	body := s.Body()
	if !bytes.Equal(body, []byte{0x46}) {
		t.Errorf("Body = % X, want 46", body)
	}
	if s.Bytes[0] != 0xC6 {
		t.Error("Body must not modify the segment")
	}
	if s.Parity() != 1 {
		t.Errorf("Parity = %d, want 1", s.Parity())
	}

	short := Segment{Bytes: []byte{0x00}, Len: 1}
	if short.Body() != nil {
		t.Error("Body of a one byte segment should be nil")
	}
}
