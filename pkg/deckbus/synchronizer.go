// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package deckbus

import "time"

// Synchronizer implements the frame synchronizer state machine that turns
// byte pairs into transactions
type Synchronizer struct {
	state      int
	tx         *Transaction
	capacity   int
	maxTracked int
	overflows  uint64
	discarded  uint64
	now        func() time.Time
}

// SynchronizerOption configures a Synchronizer
type SynchronizerOption func(*Synchronizer)

// WithSegmentCapacity sets how many bytes of each segment are kept
func WithSegmentCapacity(n int) SynchronizerOption {
	return func(s *Synchronizer) {
		if n > 0 {
			s.capacity = n
		}
	}
}

// WithMaxTrackedLength sets the tracked transaction length that forces a
// transaction closed when the bus never goes idle
func WithMaxTrackedLength(n int) SynchronizerOption {
	return func(s *Synchronizer) {
		if n > 0 {
			s.maxTracked = n
		}
	}
}

// withClock overrides the timestamp source (tests)
func withClock(now func() time.Time) SynchronizerOption {
	return func(s *Synchronizer) {
		s.now = now
	}
}

// NewSynchronizer creates a new frame synchronizer
func NewSynchronizer(opts ...SynchronizerOption) *Synchronizer {
	s := &Synchronizer{
		state:      stateIdle,
		capacity:   DefaultSegmentCapacity,
		maxTracked: DefaultMaxTrackedLength,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.maxTracked < 2*s.capacity {
		s.maxTracked = 2 * s.capacity
	}
	return s
}

// Reset drops any open transaction and returns to idle
func (s *Synchronizer) Reset() {
	s.state = stateIdle
	s.tx = nil
}

// Overflows returns the number of transactions that overflowed a segment
func (s *Synchronizer) Overflows() uint64 {
	return s.overflows
}

// Discarded returns the number of idle pairs seen with no open transaction
func (s *Synchronizer) Discarded() uint64 {
	return s.discarded
}

// Open returns true while a transaction is being accumulated
func (s *Synchronizer) Open() bool {
	return s.tx != nil
}

// Feed processes a single pair through the synchronizer state machine.
// Returns a completed transaction, or nil if none closed on this pair.
func (s *Synchronizer) Feed(p Pair) *Transaction {
	switch {
	case p.A != IdleByte:
		return s.command(p.A)
	case p.B != IdleByte:
		return s.response(p.B)
	default:
		return s.idle()
	}
}

// Flush closes and returns the open transaction, if any
func (s *Synchronizer) Flush() *Transaction {
	if s.tx == nil {
		return nil
	}
	return s.finish()
}

func (s *Synchronizer) command(b byte) *Transaction {
	var done *Transaction

	switch s.state {
	case stateIdle:
		s.begin()
	case stateResponse:
		// Command line became active again without an idle cycle in between
		done = s.finish()
		s.begin()
	}

	s.tx.Command.append(b, s.capacity)
	if s.tx.Length() >= s.maxTracked {
		return s.finish()
	}
	return done
}

func (s *Synchronizer) response(b byte) *Transaction {
	switch s.state {
	case stateIdle:
		// Response without a command; validator reports it malformed
		s.begin()
		s.state = stateResponse
	case stateCommand:
		s.state = stateResponse
	}

	s.tx.Response.append(b, s.capacity)
	if s.tx.Length() >= s.maxTracked {
		return s.finish()
	}
	return nil
}

func (s *Synchronizer) idle() *Transaction {
	switch s.state {
	case stateCommand:
		// Both lines idle inside the command segment: the idle byte is kept
		// in the open segment. A 0xFF checksum byte looks exactly like this.
		s.tx.Command.append(IdleByte, s.capacity)
		if s.tx.Length() >= s.maxTracked {
			return s.finish()
		}
		return nil
	case stateResponse:
		return s.finish()
	default:
		s.discarded++
		return nil
	}
}

func (s *Synchronizer) begin() {
	s.tx = &Transaction{
		Command:   Segment{Bytes: make([]byte, 0, s.capacity)},
		Response:  Segment{Bytes: make([]byte, 0, s.capacity)},
		Timestamp: s.now(),
	}
	s.state = stateCommand
}

func (s *Synchronizer) finish() *Transaction {
	tx := s.tx
	if tx.Truncated() {
		s.overflows++
	}
	s.Reset()
	return tx
}
