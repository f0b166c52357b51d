// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package deckbus

import (
	"fmt"
	"strings"
)

// Status flag letters of the deck controller, bit 7 first.
// H heads engaged, T time valid, W winding, R reverse search,
// S speed valid, L drawer loading, D drawer opening.
const deckFlagLetters = "?DLSRWTH"

// Wind motor speed markers
const (
	windStop      = 0
	windPlay      = 1
	windCalibrate = 255
)

// DeckControlTable returns the decode table of the deck controller bus
func DeckControlTable() Table {
	return Table{
		DCInit:      simple("INIT", "init"),
		DCStop:      simple("STOP", "stop"),
		DCPlay:      simple("PLAY", "play"),
		DCFFwd:      simple("FFWD", "ffwd"),
		DCRewind:    simple("REWD", "rewind"),
		DCNext:      simple("NEXT", "next"),
		DCPrev:      simple("PREV", "prev"),
		DCLoad:      simple("LOAD", "load"),
		DCOpen:      simple("OPEN", "open"),
		DCReverse:   simple("RVRS", "reverse"),
		DCReset:     simple("RSET", "reset counter"),
		DCCalibrate: simple("CALI", "calibrate"),
		DCVersion: {
			Name: "VERS", CommandLen: 1, ResponseLen: 4,
			Interpret: func(cmd, rsp []byte) (string, []Field, bool) {
				v := cloneBytes(rsp[1:])
				return FormatHex(v), []Field{{"version", v}}, true
			},
		},
		DCStatus: {
			Name: "STAT", CommandLen: 1, ResponseLen: 10,
			Interpret: interpretDeckStatus,
		},
	}
}

// DeckFlags renders the status flag byte as letters, '_' for clear bits
func DeckFlags(b byte) string {
	var sb strings.Builder
	for i := 0; i < 8; i++ {
		if b&(0x80>>i) != 0 {
			sb.WriteByte(deckFlagLetters[i])
		} else {
			sb.WriteByte('_')
		}
	}
	return sb.String()
}

// Status body: status, deck state, flags, wind speed, counter (little
// endian, binary), hours (sign flag), minutes, seconds, unknown.
func interpretDeckStatus(cmd, rsp []byte) (string, []Field, bool) {
	var wind string
	switch rsp[3] {
	case windStop:
		wind = "STOP"
	case windPlay:
		wind = "PLAY"
	case windCalibrate:
		wind = "CAL?"
	default:
		wind = fmt.Sprintf(">%03d", rsp[3])
	}

	counter := LittleEndian16(rsp[4], rsp[5])
	pos := DecodeSignedTime(rsp[6], rsp[7], rsp[8])
	flags := DeckFlags(rsp[2])

	tag := fmt.Sprintf("%s %s A%04d %s", flags, wind, counter, pos)
	return tag, []Field{
		{"state", rsp[1]},
		{"flags", flags},
		{"wind", wind},
		{"speed", rsp[3]},
		{"counter", counter},
		{"position", pos},
		{"unknown9", rsp[9]},
	}, true
}
