// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package deckbus decodes the command/response bus between the digital
// board MCU of a DCC recorder and its deck controller or front panel.
//
// The bus carries two lines clocked together: the originator line (commands)
// and the responder line (responses). A line that is not driving data reads
// 0xFF. The package merges the two lines into transactions, validates their
// additive checksums and parity bits, and decodes them with an opcode table
// into events.
package deckbus

// Line framing
const (
	IdleByte   = 0xFF
	ParityMask = 0x80
	OpcodeMask = 0x7F

	// ChecksumTarget is the sum (mod 256) of every byte of a valid segment,
	// including its trailing checksum byte.
	ChecksumTarget = 0xFF
)

// Buffer limits
const (
	DefaultSegmentCapacity  = 64  // longest known segment is 43 bytes (SET TEXT)
	DefaultMaxTrackedLength = 256 // force-close runaway transactions
	DefaultRingSize         = 4096
)

// StatusOK is the leading response byte of a successful command.
const StatusOK = 0x00

// Front panel opcodes (front panel controller <-> digital board MCU)
const (
	FPDeckStop       = 0x02
	FPDeckPlay       = 0x03
	FPDeckFFwd       = 0x05
	FPDeckRewind     = 0x06
	FPDeckClose      = 0x0B
	FPDeckOpen       = 0x0C
	FPKey            = 0x10
	FPRepeatMode     = 0x23
	FPSector         = 0x2A
	FPGoToTrack      = 0x2F
	FPSetText        = 0x36
	FPSearch         = 0x37
	FPTimeMode       = 0x38
	FPReadDCC        = 0x39
	FPWriteDCC       = 0x3C
	FPPollStatus     = 0x41
	FPSystemStatus   = 0x44
	FPDrawerStatus   = 0x46
	FPTapeType       = 0x49
	FPLongText       = 0x51
	FPTrackTitle     = 0x52
	FPShortText      = 0x53
	FPShortTitle     = 0x54
	FPDDUID          = 0x55
	FPMarkerType     = 0x57
	FPFunctionState  = 0x58
	FPTargetTrack    = 0x5D
	FPVUMeter        = 0x5E
	FPHeadErrors     = 0x5F
	FPDeckTime       = 0x60
	FPPrerecTapeInfo = 0x61
)

// Deck controller opcodes (digital board MCU <-> DDU-2113 deck controller)
const (
	DCInit      = 0x01
	DCStop      = 0x02
	DCPlay      = 0x03
	DCFFwd      = 0x05
	DCRewind    = 0x06
	DCNext      = 0x07
	DCPrev      = 0x08
	DCLoad      = 0x0B
	DCOpen      = 0x0C
	DCReverse   = 0x0D
	DCReset     = 0x0E
	DCVersion   = 0x42
	DCStatus    = 0x45
	DCCalibrate = 0x46
)

// Text field lengths
const (
	LongTextLen  = 40
	ShortTextLen = 12
)

// Synchronizer states (internal)
const (
	stateIdle = iota
	stateCommand
	stateResponse
)
