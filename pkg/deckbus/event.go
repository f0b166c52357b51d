// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package deckbus

import "time"

// EventKind is the type of an event delivered to a sink
type EventKind int

// Event kinds
const (
	EventDecoded EventKind = iota
	EventRawDump
	EventChecksumError
	EventParityMismatch
	EventMalformed
)

// String returns the event kind name
func (k EventKind) String() string {
	return FormatEventKind(k)
}

// Field is one decoded value of an event
type Field struct {
	Name  string
	Value interface{}
}

// Event is the result of processing one transaction
type Event struct {
	Kind      EventKind
	Opcode    uint8
	Name      string  // rule name, empty for unknown opcodes
	Tag       string  // human-meaningful summary of a decoded event
	Fields    []Field // decoded values, in decode order
	Command   []byte  // raw command segment, checksum and parity included
	Response  []byte  // raw response segment, checksum and parity included
	Segment   SegmentID
	Reason    string // why a transaction was dumped raw or rejected
	Truncated bool
	Timestamp time.Time
}

// Field returns the value of the named field
func (e Event) Field(name string) (interface{}, bool) {
	for _, f := range e.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// Raw returns the command bytes followed by the response bytes
func (e Event) Raw() []byte {
	raw := make([]byte, 0, len(e.Command)+len(e.Response))
	raw = append(raw, e.Command...)
	return append(raw, e.Response...)
}

// IsError returns true for events that report a bus integrity problem
func (e Event) IsError() bool {
	switch e.Kind {
	case EventChecksumError, EventParityMismatch, EventMalformed:
		return true
	}
	return false
}

// responseBody returns the raw response without checksum and with the parity
// bit stripped, as the decode rules see it
func (e Event) responseBody() []byte {
	return Segment{Bytes: e.Response, Len: len(e.Response)}.Body()
}

// EventSink receives events from a Monitor
type EventSink interface {
	HandleEvent(Event)
}

// SinkFunc adapts a function to EventSink
type SinkFunc func(Event)

// HandleEvent calls f(ev)
func (f SinkFunc) HandleEvent(ev Event) {
	f(ev)
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	c := make([]byte, len(b))
	copy(c, b)
	return c
}

func newEvent(kind EventKind, tx *Transaction) Event {
	return Event{
		Kind:      kind,
		Opcode:    tx.Opcode(),
		Command:   cloneBytes(tx.Command.Bytes),
		Response:  cloneBytes(tx.Response.Bytes),
		Truncated: tx.Truncated(),
		Timestamp: tx.Timestamp,
	}
}
