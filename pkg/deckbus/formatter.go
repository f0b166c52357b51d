// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package deckbus

import (
	"fmt"
	"strings"
)

// FormatEvent formats an event into a human-readable line
func FormatEvent(ev Event) string {
	timestamp := ev.Timestamp.Format("15:04:05.000")

	switch ev.Kind {
	case EventDecoded:
		result := fmt.Sprintf("[%s] %02X %s: %s\n", timestamp, ev.Opcode, ev.Name, ev.Tag)
		if len(ev.Fields) > 0 {
			result += "  " + FormatFields(ev.Fields) + "\n"
		}
		return result

	case EventRawDump:
		name := ev.Name
		if name == "" {
			name = "??"
		}
		return fmt.Sprintf("[%s] %02X %s (%s) %s-- %s\n", timestamp, ev.Opcode, name, ev.Reason,
			FormatHex(ev.Command), FormatHex(ev.Response))

	case EventChecksumError:
		return fmt.Sprintf("[%s] CHECKSUM ERROR (%s) %s-- %s\n", timestamp, ev.Segment,
			FormatHex(ev.Command), FormatHex(ev.Response))

	case EventParityMismatch:
		return fmt.Sprintf("[%s] PARITY MISMATCH %02X %s-- %s\n", timestamp, ev.Opcode,
			FormatHex(ev.Command), FormatHex(ev.Response))

	case EventMalformed:
		reason := ev.Reason
		if ev.Truncated {
			reason = ReasonTruncated
		}
		return fmt.Sprintf("[%s] MALFORMED (%s) %s\n", timestamp, reason, FormatHex(ev.Raw()))

	default:
		return fmt.Sprintf("[%s] %s\n", timestamp, FormatEventKind(ev.Kind))
	}
}

// FormatFields formats decoded fields as name=value pairs
func FormatFields(fields []Field) string {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		var v string
		switch val := f.Value.(type) {
		case byte:
			v = fmt.Sprintf("0x%02X", val)
		case []byte:
			v = strings.TrimSpace(FormatHex(val))
		case string:
			v = FormatText([]byte(val))
		case []string:
			v = strings.Join(val, ",")
		default:
			v = fmt.Sprint(val)
		}
		parts = append(parts, f.Name+"="+v)
	}
	return strings.Join(parts, " ")
}

// FormatEventKind returns the human-readable name for an event kind
func FormatEventKind(k EventKind) string {
	switch k {
	case EventDecoded:
		return "DECODED"
	case EventRawDump:
		return "RAW_DUMP"
	case EventChecksumError:
		return "CHECKSUM_ERROR"
	case EventParityMismatch:
		return "PARITY_MISMATCH"
	case EventMalformed:
		return "MALFORMED"
	default:
		return "UNKNOWN"
	}
}

// FormatHex formats bytes as space separated hex pairs, each followed by a
// space
func FormatHex(data []byte) string {
	const hex = "0123456789ABCDEF"
	var sb strings.Builder
	sb.Grow(len(data) * 3)
	for _, b := range data {
		sb.WriteByte(hex[b>>4])
		sb.WriteByte(hex[b&0x0F])
		sb.WriteByte(' ')
	}
	return sb.String()
}

// FormatText quotes text, escaping non-printable bytes as \xNN
func FormatText(data []byte) string {
	var sb strings.Builder
	sb.WriteByte('"')
	for _, b := range data {
		if b < 0x20 || b >= 0x7E {
			fmt.Fprintf(&sb, "\\x%02X", b)
		} else {
			sb.WriteByte(b)
		}
	}
	sb.WriteByte('"')
	return sb.String()
}

// VUSegmentCount is the number of segments of a VU meter
const VUSegmentCount = 40

// Segments lit on a 40 segment dBFS meter, by attenuation in dB
var vuSegments = [...]uint8{
	40, 39, 38, 37, 36, 35, 34, 33, 32, 31, // 0 dB
	30, 29, 28, 27, 26, 25, 24, 23, 22, 21, // -10 dB
	20, 19, 18, 18, 17, 16, 15, 14, 13, 12, // -20 dB
	12, 11, 11, 10, 9, 9, 8, 7, 7, 6, // -30 dB
	6, 5, 5, 5, 4, 4, 4, 3, 3, 3, // -40 dB
	3, 2, 2, 2, 2, 2, 2, 2, 2, 2, // -50 dB
	2, 1, 1, 1, 1, 1, 1, 1, 1, 1, // -60 dB
	1, 1, 1, 1, 1, 1, 1, 1, 1, 1, // -70 dB
	1, 1, 1, 1, 1, 1, 1, 1, 1, 1, // -80 dB
	1, 1, 1, 1, 1, 0, // -90 dB
}

// VUSegments returns how many of VUSegmentCount segments a level of db
// (0 loudest, negative quieter) lights up
func VUSegments(db int) int {
	if db > 0 {
		db = 0
	}
	level := -db
	if level >= len(vuSegments) {
		return 0
	}
	return int(vuSegments[level])
}

// FormatVU renders a level as a bar of width characters
func FormatVU(db, width int) string {
	if width <= 0 {
		width = VUSegmentCount
	}
	lit := VUSegments(db) * width / VUSegmentCount
	return strings.Repeat("=", lit) + strings.Repeat(" ", width-lit)
}
