// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package deckbus

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Recording format: a CBOR sequence starting with one Header followed by
// Records. Each record carries the pairs captured in one read, A and B of
// equal length, and the offset in microseconds since the start of capture.

// RecordingMagic identifies a recording header
const RecordingMagic = "deckmon"

// RecordingVersion is the current recording format version
const RecordingVersion = 1

// ErrNotRecording is returned when a stream does not start with a header
var ErrNotRecording = errors.New("not a deckmon recording")

// Header is the first item of a recording
type Header struct {
	Magic   string `cbor:"1,keyasint"`
	Version uint   `cbor:"2,keyasint"`
	Bus     string `cbor:"3,keyasint"`
	Started int64  `cbor:"4,keyasint"` // unix nanoseconds
}

// Record is one chunk of captured pairs
type Record struct {
	Offset uint64 `cbor:"1,keyasint"` // microseconds since Header.Started
	A      []byte `cbor:"2,keyasint"`
	B      []byte `cbor:"3,keyasint"`
}

// Pairs returns the pairs of the record
func (r Record) Pairs() []Pair {
	n := len(r.A)
	if len(r.B) < n {
		n = len(r.B)
	}
	pairs := make([]Pair, n)
	for i := 0; i < n; i++ {
		pairs[i] = Pair{A: r.A[i], B: r.B[i]}
	}
	return pairs
}

// Recorder writes pairs to a recording
type Recorder struct {
	enc     *cbor.Encoder
	started time.Time
	now     func() time.Time
	records uint64
	pairs   uint64
}

// NewRecorder writes the header and returns a recorder
func NewRecorder(w io.Writer, bus Bus) (*Recorder, error) {
	r := &Recorder{
		enc: cbor.NewEncoder(w),
		now: time.Now,
	}
	r.started = r.now()

	hdr := Header{
		Magic:   RecordingMagic,
		Version: RecordingVersion,
		Bus:     bus.String(),
		Started: r.started.UnixNano(),
	}
	if err := r.enc.Encode(hdr); err != nil {
		return nil, fmt.Errorf("failed to write recording header: %w", err)
	}
	return r, nil
}

// Write appends pairs as one record stamped with the current time
func (r *Recorder) Write(pairs []Pair) error {
	if len(pairs) == 0 {
		return nil
	}
	rec := Record{
		Offset: uint64(r.now().Sub(r.started).Microseconds()),
		A:      make([]byte, len(pairs)),
		B:      make([]byte, len(pairs)),
	}
	for i, p := range pairs {
		rec.A[i] = p.A
		rec.B[i] = p.B
	}
	if err := r.enc.Encode(rec); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	r.records++
	r.pairs += uint64(len(pairs))
	return nil
}

// Records returns the number of records written
func (r *Recorder) Records() uint64 {
	return r.records
}

// Pairs returns the number of pairs written
func (r *Recorder) Pairs() uint64 {
	return r.pairs
}

// Player reads a recording
type Player struct {
	dec    *cbor.Decoder
	header Header
}

// NewPlayer reads and checks the header of a recording
func NewPlayer(r io.Reader) (*Player, error) {
	p := &Player{dec: cbor.NewDecoder(r)}
	if err := p.dec.Decode(&p.header); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotRecording, err)
	}
	if p.header.Magic != RecordingMagic {
		return nil, fmt.Errorf("%w: magic %q", ErrNotRecording, p.header.Magic)
	}
	if p.header.Version > RecordingVersion {
		return nil, fmt.Errorf("unsupported recording version %d", p.header.Version)
	}
	return p, nil
}

// Header returns the recording header
func (p *Player) Header() Header {
	return p.header
}

// Next returns the next record, or io.EOF at the end of the recording
func (p *Player) Next() (Record, error) {
	var rec Record
	if err := p.dec.Decode(&rec); err != nil {
		if errors.Is(err, io.EOF) {
			return Record{}, io.EOF
		}
		return Record{}, fmt.Errorf("failed to read record: %w", err)
	}
	if len(rec.A) != len(rec.B) {
		return Record{}, fmt.Errorf("corrupt record at %dus: %d A bytes, %d B bytes",
			rec.Offset, len(rec.A), len(rec.B))
	}
	return rec, nil
}
