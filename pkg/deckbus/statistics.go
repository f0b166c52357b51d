// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package deckbus

import (
	"fmt"
	"sync"
	"time"
)

// StatisticsSnapshot is a copy of the counters at one moment
type StatisticsSnapshot struct {
	StartTime time.Time
	Elapsed   time.Duration

	// Counters
	Transactions     uint64
	Decoded          uint64
	RawDumps         uint64
	Suppressed       uint64
	ChecksumErrors   uint64
	ParityMismatches uint64
	ParityRepeats    uint64
	Malformed        uint64
	Truncated        uint64
	RingOverflows    uint64

	// Rates (calculated)
	TransactionRate float64 // transactions/sec
	ErrorRate       float64 // errors/sec
}

// Errors returns the number of bus integrity errors
func (s StatisticsSnapshot) Errors() uint64 {
	return s.ChecksumErrors + s.ParityMismatches + s.Malformed
}

// Statistics tracks transaction statistics and error rates. It is safe for
// concurrent use: the monitor updates it while a UI or exporter reads it.
type Statistics struct {
	mu sync.Mutex
	s  StatisticsSnapshot
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	return &Statistics{s: StatisticsSnapshot{StartTime: time.Now()}}
}

// RecordTransaction counts one closed transaction
func (st *Statistics) RecordTransaction() {
	st.mu.Lock()
	st.s.Transactions++
	st.mu.Unlock()
}

// RecordEvent counts an event produced for a transaction
func (st *Statistics) RecordEvent(ev Event) {
	st.mu.Lock()
	defer st.mu.Unlock()

	switch ev.Kind {
	case EventDecoded:
		st.s.Decoded++
	case EventRawDump:
		st.s.RawDumps++
	case EventChecksumError:
		st.s.ChecksumErrors++
	case EventParityMismatch:
		st.s.ParityMismatches++
	case EventMalformed:
		st.s.Malformed++
		if ev.Truncated {
			st.s.Truncated++
		}
	}
}

// RecordSuppressed counts a decoded event held back by the change filter
func (st *Statistics) RecordSuppressed() {
	st.mu.Lock()
	st.s.Suppressed++
	st.mu.Unlock()
}

// RecordParityRepeat counts a transaction that did not alternate parity
func (st *Statistics) RecordParityRepeat() {
	st.mu.Lock()
	st.s.ParityRepeats++
	st.mu.Unlock()
}

// SetRingOverflows stores the pair ring overflow count
func (st *Statistics) SetRingOverflows(n uint64) {
	st.mu.Lock()
	st.s.RingOverflows = n
	st.mu.Unlock()
}

// Snapshot returns a copy of the counters with rates calculated
func (st *Statistics) Snapshot() StatisticsSnapshot {
	st.mu.Lock()
	s := st.s
	st.mu.Unlock()

	s.Elapsed = time.Since(s.StartTime)
	if secs := s.Elapsed.Seconds(); secs > 0 {
		s.TransactionRate = float64(s.Transactions) / secs
		s.ErrorRate = float64(s.Errors()) / secs
	}
	return s
}

// String returns a formatted statistics summary
func (st *Statistics) String() string {
	s := st.Snapshot()

	percent := func(n uint64) float64 {
		if s.Transactions == 0 {
			return 0
		}
		return float64(n) * 100.0 / float64(s.Transactions)
	}

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", s.Elapsed.Seconds())
	result += fmt.Sprintf("Transactions:    %8d\n", s.Transactions)
	result += fmt.Sprintf("Decoded:         %8d (%.1f%%)\n", s.Decoded, percent(s.Decoded))
	result += fmt.Sprintf("Raw Dumps:       %8d (%.1f%%)\n", s.RawDumps, percent(s.RawDumps))

	if s.Suppressed > 0 {
		result += fmt.Sprintf("  Suppressed:       %5d\n", s.Suppressed)
	}
	if s.ChecksumErrors > 0 {
		result += fmt.Sprintf("Checksum Errors: %8d (%.1f%%)\n", s.ChecksumErrors, percent(s.ChecksumErrors))
	}
	if s.ParityMismatches > 0 {
		result += fmt.Sprintf("Parity Mismatch: %8d (%.1f%%)\n", s.ParityMismatches, percent(s.ParityMismatches))
	}
	if s.ParityRepeats > 0 {
		result += fmt.Sprintf("Parity Repeats:  %8d\n", s.ParityRepeats)
	}
	if s.Malformed > 0 {
		result += fmt.Sprintf("Malformed:       %8d (%.1f%%)\n", s.Malformed, percent(s.Malformed))
		if s.Truncated > 0 {
			result += fmt.Sprintf("  Truncated:        %5d\n", s.Truncated)
		}
	}
	if s.RingOverflows > 0 {
		result += fmt.Sprintf("Ring Overflows:  %8d pairs\n", s.RingOverflows)
	}

	result += fmt.Sprintf("Transaction Rate:%8.1f tx/sec\n", s.TransactionRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (st *Statistics) Reset() {
	st.mu.Lock()
	st.s = StatisticsSnapshot{StartTime: time.Now()}
	st.mu.Unlock()
}
