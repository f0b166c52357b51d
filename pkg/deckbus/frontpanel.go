// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package deckbus

import "fmt"

// Key codes sent with FPKey. Codes from the key test program of the service
// mode; the RC codes come from the remote control receiver.
var keyNames = map[byte]string{
	0x01: "SIDE A/B",
	0x02: "OPEN/CLOSE",
	0x03: "EDIT",
	0x04: "REC/PAUSE",
	0x05: "STOP",
	0x06: "REPEAT",
	0x07: "DOLBY",
	0x08: "SCROLL",
	0x09: "RECLEVEL-",
	0x0A: "APPEND",
	0x0B: "PLAY",
	0x0C: "PRESETS",
	0x0D: "TIME",
	0x0E: "TEXT",
	0x0F: "RECLEVEL+",
	0x10: "RECORD",
	0x11: "NEXT",
	0x12: "PREV",
	0x1C: "RC FFWD",
	0x1D: "RC OPEN/CLOSE",
	0x1F: "RC REWIND",
	0x20: "RC 0",
	0x21: "RC 1",
	0x22: "RC 2",
	0x23: "RC 3",
	0x24: "RC 4",
	0x25: "RC 5",
	0x26: "RC 6",
	0x27: "RC 7",
	0x28: "RC 8",
	0x29: "RC 9",
	0x2C: "RC STANDBY",
}

var repeatModes = map[byte]string{
	1: "none",
	2: "track",
	3: "all",
}

var timeModes = map[byte]string{
	1: "total time",
	2: "total remaining time",
	3: "track time",
	5: "remaining time",
}

var systemStates = map[byte]string{
	0x06: "check dig in",
	0x10: "clean heads",
	0x1F: "power fail",
}

var drawerStates = map[byte]string{
	1: "drawer closed",
	2: "drawer open",
	3: "drawer closing",
	4: "drawer opening",
	5: "drawer blocked",
	6: "drawer unknown",
}

// Tape type switch bits: 0x01 no cassette, 0x02 chrome, 0x04 DCC,
// 0x08 recording allowed, 0x10/0x20/0x40 length holes 3/4/5.
var tapeTypes = map[byte]string{
	0x00: "ACC ferro",
	0x02: "ACC chrome",
	0x04: "PDCC",
	0x14: "UDCC (protected)",
	0x1C: "UDCC",
	0x24: "DCC120 (protected)",
	0x2C: "DCC120",
	0x34: "DCC105 (protected)",
	0x3C: "DCC105",
	0x44: "DCC90 (protected)",
	0x4C: "DCC90",
	0x54: "DCC75 (protected)",
	0x5C: "DCC75",
	0x64: "DCC60 (protected)",
	0x6C: "DCC60",
	0x74: "DCC45 (protected)",
	0x7B: "no cassette",
	0x7C: "DCC45",
}

var textSelectors = map[byte]string{
	0xFA: "track",
	0xE0: "TOC track name",
	0x01: "lyrics/album",
	0x03: "artist",
}

var markerTypes = map[byte]string{
	0x02: "track",
	0x03: "reverse",
	0x07: "skip +1",
	0x0B: "reuse",
	0x0D: "intro skip",
	0x14: "begin sector",
}

var functionStates = map[byte]string{
	0x01: "off",
	0x02: "stop",
	0x03: "read",
	0x04: "play",
	0x0A: "ffwd",
	0x0B: "rewind",
	0x11: "next",
	0x12: "prev",
	0x15: "search arriving <",
	0x16: "search arriving >",
	0x2A: "end",
	0x30: "skip",
}

// Poll status flag bits, by response body byte
var pollFlags = [][]struct {
	mask byte
	name string
}{
	1: {
		{0x01, "SYSTEM"},
		{0x08, "FUNCTION"},
		{0x10, "DRAWER"},
		{0x20, "EOT"},
		{0x40, "BOT"},
		{0x80, "FAST"},
	},
	2: {
		{0x01, "LYRICS"},
		{0x02, "MARKER"},
		{0x20, "TRACK"},
		{0x40, "ABSTIME"},
		{0x80, "TOTALTIME"},
	},
	3: {
		{0x80, "DECKTIME"},
		{0x40, "TAPETIME"},
	},
}

// FrontPanelTable returns the decode table of the front panel bus
func FrontPanelTable() Table {
	return Table{
		FPDeckStop:   simple("DECK STOP", "stop"),
		FPDeckPlay:   simple("DECK PLAY", "play"),
		FPDeckFFwd:   simple("DECK FFWD", "ffwd"),
		FPDeckRewind: simple("DECK REWIND", "rewind"),
		FPDeckClose:  simple("DECK CLOSE", "close"),
		FPDeckOpen:   simple("DECK OPEN", "open"),
		FPReadDCC:    simple("READ DCC", "read dcc"),
		FPWriteDCC:   simple("WRITE DCC", "write dcc"),

		FPKey:        enumeration("KEY/RC", 2, 1, false, "key", keyNames, false),
		FPRepeatMode: enumeration("REPEAT MODE", 2, 1, false, "mode", repeatModes, false),
		FPTimeMode:   enumeration("TIME MODE", 2, 1, false, "mode", timeModes, false),

		FPSector: {
			Name: "SECTOR", CommandLen: 2, ResponseLen: 1,
			Interpret: func(cmd, rsp []byte) (string, []Field, bool) {
				return fmt.Sprintf("sector %d", cmd[1]), []Field{{"sector", int(cmd[1])}}, true
			},
		},
		FPGoToTrack: {
			Name: "GO TO TRACK", CommandLen: 3, ResponseLen: 1,
			Interpret: func(cmd, rsp []byte) (string, []Field, bool) {
				return fmt.Sprintf("to %d", cmd[1]), []Field{
					{"track", int(cmd[1])},
					{"param", cmd[2]},
				}, true
			},
		},
		FPSetText: {
			Name: "SET TEXT", CommandLen: 2 + LongTextLen, ResponseLen: 1,
			Interpret: interpretSetText,
		},
		FPSearch: {
			Name: "SEARCH", CommandLen: 3, ResponseLen: 1,
			Interpret: interpretSearch,
		},

		FPPollStatus: {
			Name: "POLL", CommandLen: 1, ResponseLen: 4,
			Interpret: interpretPoll,
		},
		FPSystemStatus: enumeration("SYSTEM STATUS", 1, 2, true, "state", systemStates, true),
		FPDrawerStatus: enumeration("DRAWER STATUS", 1, 2, true, "state", drawerStates, false),
		FPTapeType:     enumeration("TAPE TYPE", 1, 2, true, "type", tapeTypes, true),
		FPMarkerType:   enumeration("MARKER TYPE", 1, 2, true, "marker", markerTypes, true),
		FPFunctionState: enumeration("FUNCTION STATE", 1, 2, true, "function",
			functionStates, true),

		FPLongText:   textRule("LONG TEXT", LongTextLen, true),
		FPTrackTitle: textRule("TRACK TITLE", LongTextLen, false),
		FPShortText:  textRule("SHORT TEXT", ShortTextLen, true),
		FPShortTitle: textRule("SHORT TRACK TITLE", ShortTextLen, false),

		FPDDUID: {
			Name: "DDU ID", CommandLen: 1, ResponseLen: 5,
			Interpret: func(cmd, rsp []byte) (string, []Field, bool) {
				id := cloneBytes(rsp[1:])
				return FormatHex(id), []Field{{"id", id}}, true
			},
		},
		FPTargetTrack: {
			Name: "TARGET TRACK", CommandLen: 1, ResponseLen: 2,
			Interpret: func(cmd, rsp []byte) (string, []Field, bool) {
				t := int(int8(rsp[1]))
				return fmt.Sprintf("%+d", t), []Field{{"track", t}}, true
			},
		},
		FPVUMeter: {
			Name: "VU", CommandLen: 1, ResponseLen: 3,
			Interpret: func(cmd, rsp []byte) (string, []Field, bool) {
				left, right := -int(rsp[1]), -int(rsp[2])
				return fmt.Sprintf("L %ddB R %ddB", left, right), []Field{
					{"left", left},
					{"right", right},
				}, true
			},
		},
		FPHeadErrors: {
			Name: "HEAD ERRORS", CommandLen: 2, ResponseLen: 2,
			Interpret: interpretHeadErrors,
		},
		FPDeckTime: {
			Name: "DECK TIME", CommandLen: 1, ResponseLen: 10,
			Interpret: interpretDeckTime,
		},
		FPPrerecTapeInfo: {
			Name: "PREREC TAPE INFO", CommandLen: 1, ResponseLen: 6,
			Interpret: interpretPrerecInfo,
		},
	}
}

// textRule builds a rule that fetches a text field selected by cmd[1].
// For titles the selector is a track number.
func textRule(name string, textLen int, selector bool) Rule {
	return Rule{
		Name:        name,
		CommandLen:  2,
		ResponseLen: 1 + textLen,
		Interpret: func(cmd, rsp []byte) (string, []Field, bool) {
			text := DecodeText(rsp[1:])
			if !selector {
				return fmt.Sprintf("track %d %s", cmd[1], FormatText([]byte(text))),
					[]Field{{"track", int(cmd[1])}, {"text", text}}, true
			}
			sel, ok := textSelectors[cmd[1]]
			if !ok {
				sel = fmt.Sprintf("0x%02X", cmd[1])
			}
			return sel + " " + FormatText([]byte(text)),
				[]Field{{"selector", cmd[1]}, {"text", text}}, true
		},
	}
}

func interpretSetText(cmd, rsp []byte) (string, []Field, bool) {
	var target string
	switch cmd[1] {
	case 0xFD:
		target = "deck id"
	case 0xFA:
		target = "title"
	default:
		target = fmt.Sprintf("0x%02X", cmd[1])
	}
	text := DecodeText(cmd[2:])
	return target + "=" + FormatText([]byte(text)),
		[]Field{{"target", cmd[1]}, {"text", text}}, true
}

// Relative search: forward counts are 1-99, backward counts start at
// 0xEE for -0 and go down.
func interpretSearch(cmd, rsp []byte) (string, []Field, bool) {
	var delta int
	if cmd[1] < 100 {
		delta = int(cmd[1])
	} else {
		delta = -(0xEE - int(cmd[1]))
	}
	return fmt.Sprintf("%+d", delta), []Field{
		{"delta", delta},
		{"param", cmd[2]},
	}, true
}

func interpretPoll(cmd, rsp []byte) (string, []Field, bool) {
	var flags []string
	for i := 1; i < len(pollFlags); i++ {
		for _, f := range pollFlags[i] {
			if rsp[i]&f.mask != 0 {
				flags = append(flags, f.name)
			}
		}
	}
	sector := int(rsp[3] & 0x03)

	tag := fmt.Sprintf("sector %d", sector)
	for _, f := range flags {
		tag += " " + f
	}
	return tag, []Field{
		{"flags", flags},
		{"sector", sector},
		{"status", cloneBytes(rsp[1:])},
	}, true
}

// Head 1 is 0x80, head 2 is 0x40 and so on. Individual head counts are
// 0-20; multiplied by 5 they give a percentage.
func interpretHeadErrors(cmd, rsp []byte) (string, []Field, bool) {
	return fmt.Sprintf("head 0x%02X -> %02X", cmd[1], rsp[1]), []Field{
		{"head", cmd[1]},
		{"errors", rsp[1]},
	}, true
}

// Deck time body: status, state, track, hours (low nibble; high nibble
// carries flags), minutes, seconds, unknown, counter (2 bytes), unknown.
// Everything is BCD.
func interpretDeckTime(cmd, rsp []byte) (string, []Field, bool) {
	track, ok1 := DecodeBCD(rsp[2])
	hours, ok2 := DecodeBCD(rsp[3] & 0x0F)
	minutes, ok3 := DecodeBCD(rsp[4])
	seconds, ok4 := DecodeBCD(rsp[5])
	counter, ok5 := DecodeBCDWord(rsp[7], rsp[8])
	if !(ok1 && ok2 && ok3 && ok4 && ok5) {
		return "", nil, false
	}

	return fmt.Sprintf("T%02d %d:%02d:%02d C%04d", track, hours, minutes, seconds, counter),
		[]Field{
			{"state", rsp[1]},
			{"track", track},
			{"hours", hours},
			{"minutes", minutes},
			{"seconds", seconds},
			{"hour_flags", rsp[3] >> 4},
			{"counter", counter},
			{"unknown6", rsp[6]},
			{"unknown9", rsp[9]},
		}, true
}

func interpretPrerecInfo(cmd, rsp []byte) (string, []Field, bool) {
	tracks, ok1 := DecodeBCD(rsp[2])
	hours, ok2 := DecodeBCD(rsp[3])
	minutes, ok3 := DecodeBCD(rsp[4])
	seconds, ok4 := DecodeBCD(rsp[5])
	if !(ok1 && ok2 && ok3 && ok4) {
		return "", nil, false
	}

	return fmt.Sprintf("%d tracks %02d:%02d:%02d", tracks, hours, minutes, seconds),
		[]Field{
			{"param", rsp[1]},
			{"tracks", tracks},
			{"hours", hours},
			{"minutes", minutes},
			{"seconds", seconds},
		}, true
}
