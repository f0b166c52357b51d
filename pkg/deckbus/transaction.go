// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package deckbus

import "time"

// Pair is one bus clock worth of data: one byte from each line
type Pair struct {
	A byte // originator (command) line
	B byte // responder (response) line
}

// IsIdle returns true if neither line is driving data
func (p Pair) IsIdle() bool {
	return p.A == IdleByte && p.B == IdleByte
}

// SegmentID identifies one or both segments of a transaction
type SegmentID int

// Segment identifiers
const (
	SegmentNone SegmentID = iota
	SegmentCommand
	SegmentResponse
	SegmentBoth
)

// String returns the segment name
func (s SegmentID) String() string {
	switch s {
	case SegmentCommand:
		return "command"
	case SegmentResponse:
		return "response"
	case SegmentBoth:
		return "both"
	default:
		return "none"
	}
}

// Segment is the bytes one line sent within a transaction, checksum last
type Segment struct {
	Bytes []byte // captured bytes, at most the synchronizer's capacity
	Len   int    // number of bytes seen on the line, including dropped ones
}

// Truncated returns true if bytes were dropped because the segment overflowed
func (s Segment) Truncated() bool {
	return s.Len > len(s.Bytes)
}

// Parity returns the top bit of the first byte (0 or 1)
func (s Segment) Parity() uint8 {
	if len(s.Bytes) == 0 {
		return 0
	}
	return s.Bytes[0] >> 7
}

// Sum returns the additive checksum of every captured byte
func (s Segment) Sum() byte {
	return Checksum(s.Bytes)
}

// Body returns a copy of the segment without its checksum byte and with the
// parity bit stripped from the first byte
func (s Segment) Body() []byte {
	if len(s.Bytes) < 2 {
		return nil
	}
	body := make([]byte, len(s.Bytes)-1)
	copy(body, s.Bytes)
	body[0] &= OpcodeMask
	return body
}

func (s *Segment) append(b byte, capacity int) {
	if len(s.Bytes) < capacity {
		s.Bytes = append(s.Bytes, b)
	}
	s.Len++
}

// Transaction is a command segment and the response segment that answered it
type Transaction struct {
	Command   Segment
	Response  Segment
	Timestamp time.Time
}

// Opcode returns the parity-stripped first command byte
func (t *Transaction) Opcode() uint8 {
	if len(t.Command.Bytes) == 0 {
		return 0
	}
	return t.Command.Bytes[0] & OpcodeMask
}

// Truncated returns true if either segment overflowed
func (t *Transaction) Truncated() bool {
	return t.Command.Truncated() || t.Response.Truncated()
}

// Parity returns the command parity bit
func (t *Transaction) Parity() uint8 {
	return t.Command.Parity()
}

// Length returns the tracked length of both segments together
func (t *Transaction) Length() int {
	return t.Command.Len + t.Response.Len
}
