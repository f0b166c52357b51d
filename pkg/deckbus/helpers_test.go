// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package deckbus

import (
	"time"
)

// ============================================================
// Test Helpers
// ============================================================

var testTime = time.Date(2025, 3, 14, 15, 9, 26, 0, time.UTC)

func fixedClock() func() time.Time {
	return func() time.Time { return testTime }
}

// seg builds a segment from a body: parity sets bit 7 of the first byte,
// then the checksum byte is appended
func seg(parity bool, body ...byte) []byte {
	b := append([]byte(nil), body...)
	if parity && len(b) > 0 {
		b[0] |= ParityMask
	}
	return AppendChecksum(b)
}

// makeTx builds a closed transaction from full segments
func makeTx(cmd, rsp []byte) *Transaction {
	return &Transaction{
		Command:   Segment{Bytes: append([]byte(nil), cmd...), Len: len(cmd)},
		Response:  Segment{Bytes: append([]byte(nil), rsp...), Len: len(rsp)},
		Timestamp: testTime,
	}
}

// busPairs renders a transaction as the bus carries it: command bytes on A,
// response bytes on B, then one idle cycle
func busPairs(cmd, rsp []byte) []Pair {
	pairs := make([]Pair, 0, len(cmd)+len(rsp)+1)
	for _, b := range cmd {
		pairs = append(pairs, Pair{A: b, B: IdleByte})
	}
	for _, b := range rsp {
		pairs = append(pairs, Pair{A: IdleByte, B: b})
	}
	return append(pairs, Pair{A: IdleByte, B: IdleByte})
}

func feedAll(s *Synchronizer, pairs []Pair) []*Transaction {
	var out []*Transaction
	for _, p := range pairs {
		if tx := s.Feed(p); tx != nil {
			out = append(out, tx)
		}
	}
	return out
}

// collector is an EventSink that keeps every event
type collector struct {
	events []Event
}

func (c *collector) HandleEvent(ev Event) {
	c.events = append(c.events, ev)
}

func (c *collector) kinds() []EventKind {
	kinds := make([]EventKind, len(c.events))
	for i, ev := range c.events {
		kinds[i] = ev.Kind
	}
	return kinds
}
