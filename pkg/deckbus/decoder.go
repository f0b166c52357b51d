// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package deckbus

import (
	"errors"
	"fmt"
	"strings"
)

// Raw dump reasons
const (
	ReasonUnknownOpcode   = "unknown opcode"
	ReasonCommandLength   = "command length"
	ReasonResponseLength  = "response length"
	ReasonStatus          = "status"
	ReasonUnrecognized    = "unrecognized value"
	ReasonChecksum        = "checksum"
	ReasonParity          = "parity"
	ReasonMalformed       = "malformed"
	ReasonTruncated       = "truncated"
	ReasonNoCommand       = "no command"
	ReasonNoResponse      = "no response"
	ReasonShortSegment    = "short segment"
	ReasonInterpretFailed = "interpret failed"
)

// InterpretFunc extracts fields from a command body and a response body.
// Both bodies have the checksum removed and the parity bit stripped; the
// command body starts with the opcode and the response body with the status
// byte. Returning ok=false dumps the transaction raw.
type InterpretFunc func(cmd, rsp []byte) (tag string, fields []Field, ok bool)

// Rule describes how to decode one opcode
type Rule struct {
	Name        string
	CommandLen  int  // command body length, opcode included
	ResponseLen int  // response body length, status byte included
	Status      byte // expected status byte
	Interpret   InterpretFunc
}

// Table maps opcodes to decode rules
type Table map[uint8]Rule

// Bus selects which bus a decode table belongs to
type Bus int

// Known buses
const (
	BusFrontPanel Bus = iota
	BusDeckControl
)

// ErrUnknownBus is returned for bus names that have no decode table
var ErrUnknownBus = errors.New("unknown bus")

// String returns the bus name as accepted by ParseBus
func (b Bus) String() string {
	switch b {
	case BusFrontPanel:
		return "frontpanel"
	case BusDeckControl:
		return "deck"
	default:
		return fmt.Sprintf("bus(%d)", int(b))
	}
}

// ParseBus parses a bus name
func ParseBus(name string) (Bus, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "frontpanel", "front-panel", "fp", "spi", "":
		return BusFrontPanel, nil
	case "deck", "deckcontrol", "deck-control", "ddu", "uart":
		return BusDeckControl, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownBus, name)
}

// TableFor returns the decode table of a bus
func TableFor(bus Bus) (Table, error) {
	switch bus {
	case BusFrontPanel:
		return FrontPanelTable(), nil
	case BusDeckControl:
		return DeckControlTable(), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownBus, bus)
}

// Decoder dispatches validated transactions to the rules of a table
type Decoder struct {
	table Table
}

// NewDecoder creates a decoder for the given table
func NewDecoder(table Table) *Decoder {
	return &Decoder{table: table}
}

// Rule returns the rule for opcode
func (d *Decoder) Rule(opcode uint8) (Rule, bool) {
	r, ok := d.table[opcode&OpcodeMask]
	return r, ok
}

// Decode turns a transaction into a Decoded event, or a RawDump event when
// the opcode is unknown or the transaction does not match its rule.
// The transaction must have passed validation.
func (d *Decoder) Decode(tx *Transaction) Event {
	cmd := tx.Command.Body()
	rsp := tx.Response.Body()

	opcode := tx.Opcode()
	rule, ok := d.table[opcode]
	if !ok {
		return rawDump(tx, "", ReasonUnknownOpcode)
	}
	if len(cmd) != rule.CommandLen {
		return rawDump(tx, rule.Name, ReasonCommandLength)
	}
	if len(rsp) != rule.ResponseLen {
		return rawDump(tx, rule.Name, ReasonResponseLength)
	}
	if len(rsp) == 0 || rsp[0] != rule.Status {
		return rawDump(tx, rule.Name, ReasonStatus)
	}
	if rule.Interpret == nil {
		return rawDump(tx, rule.Name, ReasonInterpretFailed)
	}

	tag, fields, ok := rule.Interpret(cmd, rsp)
	if !ok {
		return rawDump(tx, rule.Name, ReasonUnrecognized)
	}

	ev := newEvent(EventDecoded, tx)
	ev.Name = rule.Name
	ev.Tag = tag
	ev.Fields = fields
	return ev
}

func rawDump(tx *Transaction, name, reason string) Event {
	ev := newEvent(EventRawDump, tx)
	ev.Name = name
	ev.Reason = reason
	return ev
}

// ============================================================
// Rule builders
// ============================================================

// simple builds a rule for a command with no parameters and no return data
func simple(name, tag string) Rule {
	return Rule{
		Name:        name,
		CommandLen:  1,
		ResponseLen: 1,
		Interpret: func(cmd, rsp []byte) (string, []Field, bool) {
			return tag, nil, true
		},
	}
}

// enumeration builds a rule whose single parameter or return byte selects a
// tag from names. Unlisted values dump raw unless fallback is set.
func enumeration(name string, cmdLen, rspLen int, fromResponse bool, field string, names map[byte]string, fallback bool) Rule {
	return Rule{
		Name:        name,
		CommandLen:  cmdLen,
		ResponseLen: rspLen,
		Interpret: func(cmd, rsp []byte) (string, []Field, bool) {
			var v byte
			if fromResponse {
				v = rsp[1]
			} else {
				v = cmd[1]
			}
			tag, ok := names[v]
			if !ok {
				if !fallback {
					return "", nil, false
				}
				tag = fmt.Sprintf("0x%02X", v)
			}
			return tag, []Field{{field, v}}, true
		},
	}
}

// ============================================================
// Numeric decoding helpers
// ============================================================

// DecodeBCD decodes a packed binary-coded-decimal byte (0x59 -> 59).
// Returns false if either nibble is not a decimal digit.
func DecodeBCD(b byte) (int, bool) {
	hi, lo := b>>4, b&0x0F
	if hi > 9 || lo > 9 {
		return 0, false
	}
	return int(hi)*10 + int(lo), true
}

// DecodeBCDWord decodes big-endian packed BCD bytes (0x12 0x34 -> 1234)
func DecodeBCDWord(b ...byte) (int, bool) {
	v := 0
	for _, x := range b {
		d, ok := DecodeBCD(x)
		if !ok {
			return 0, false
		}
		v = v*100 + d
	}
	return v, true
}

// Sign flag of hour bytes that carry a sign-magnitude value
const (
	hourSignFlag      = 0x08
	hourMagnitudeMask = 0x07
)

// SignedTime is a tape position that may lie before the start of a side
type SignedTime struct {
	Negative bool
	Hours    int
	Minutes  int
	Seconds  int
}

// TotalSeconds returns the signed position in seconds
func (t SignedTime) TotalSeconds() int {
	s := t.Hours*3600 + t.Minutes*60 + t.Seconds
	if t.Negative {
		return -s
	}
	return s
}

// String formats the time as [-]H:MM:SS
func (t SignedTime) String() string {
	sign := ""
	if t.Negative {
		sign = "-"
	}
	return fmt.Sprintf("%s%d:%02d:%02d", sign, t.Hours, t.Minutes, t.Seconds)
}

// DecodeSignedTime decodes binary hours, minutes and seconds where the hours
// byte carries a sign flag instead of a two's complement value. "-0" hours
// (only the flag set) is a valid negative position.
func DecodeSignedTime(h, m, s byte) SignedTime {
	return SignedTime{
		Negative: h&hourSignFlag != 0,
		Hours:    int(h & hourMagnitudeMask),
		Minutes:  int(m),
		Seconds:  int(s),
	}
}

// LittleEndian16 decodes a little-endian 16-bit counter
func LittleEndian16(lo, hi byte) uint16 {
	return uint16(lo) | uint16(hi)<<8
}

// BigEndian16 decodes a big-endian 16-bit value
func BigEndian16(hi, lo byte) uint16 {
	return uint16(hi)<<8 | uint16(lo)
}

// DecodeText decodes a fixed-length text field, dropping trailing NUL and
// space padding. Non-printable bytes are kept; FormatText escapes them.
func DecodeText(b []byte) string {
	end := len(b)
	for end > 0 && (b[end-1] == 0x00 || b[end-1] == ' ') {
		end--
	}
	return string(b[:end])
}
