// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package deckbus

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"
)

// MonitorConfig selects the bus and the synchronizer limits
type MonitorConfig struct {
	Bus              Bus
	Verbose          bool
	SegmentCapacity  int
	MaxTrackedLength int
}

// MonitorOption configures a Monitor
type MonitorOption func(*Monitor)

// WithLogger sets the logger for anomalies and diagnostics
func WithLogger(log *zap.Logger) MonitorOption {
	return func(m *Monitor) {
		if log != nil {
			m.log = log
		}
	}
}

// WithStatistics sets the statistics tracker the monitor updates
func WithStatistics(stats *Statistics) MonitorOption {
	return func(m *Monitor) {
		if stats != nil {
			m.stats = stats
		}
	}
}

// Monitor runs the pipeline: pairs are synchronized into transactions,
// validated, decoded, change filtered and handed to a sink
type Monitor struct {
	log     *zap.Logger
	stats   *Statistics
	sync    *Synchronizer
	decoder *Decoder
	filter  *ChangeFilter
	parity  ParityTracker
	verbose atomic.Bool

	ringOverflows uint64
}

// NewMonitor creates a monitor for cfg.Bus
func NewMonitor(cfg MonitorConfig, opts ...MonitorOption) (*Monitor, error) {
	table, err := TableFor(cfg.Bus)
	if err != nil {
		return nil, err
	}

	var syncOpts []SynchronizerOption
	if cfg.SegmentCapacity > 0 {
		syncOpts = append(syncOpts, WithSegmentCapacity(cfg.SegmentCapacity))
	}
	if cfg.MaxTrackedLength > 0 {
		syncOpts = append(syncOpts, WithMaxTrackedLength(cfg.MaxTrackedLength))
	}

	m := &Monitor{
		log:     zap.NewNop(),
		stats:   NewStatistics(),
		sync:    NewSynchronizer(syncOpts...),
		decoder: NewDecoder(table),
		filter:  NewChangeFilter(MasksFor(cfg.Bus)),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.log = m.log.With(zap.Stringer("bus", cfg.Bus))
	m.verbose.Store(cfg.Verbose)

	return m, nil
}

// Statistics returns the statistics tracker
func (m *Monitor) Statistics() *Statistics {
	return m.stats
}

// SetVerbose toggles change filtering. Safe to call while Run is active.
func (m *Monitor) SetVerbose(on bool) {
	m.verbose.Store(on)
}

// Verbose returns true if change filtering is disabled
func (m *Monitor) Verbose() bool {
	return m.verbose.Load()
}

// Feed runs one pair through the synchronizer and processes the transaction
// it closes, if any
func (m *Monitor) Feed(p Pair, sink EventSink) {
	if tx := m.sync.Feed(p); tx != nil {
		m.Process(tx, sink)
	}
}

// Flush processes the transaction left open in the synchronizer
func (m *Monitor) Flush(sink EventSink) {
	if tx := m.sync.Flush(); tx != nil {
		m.Process(tx, sink)
	}
}

// Run drains ring until ctx is cancelled. Pairs that are already buffered
// when ctx is cancelled are still processed, then the open transaction is
// flushed.
func (m *Monitor) Run(ctx context.Context, ring *PairRing, sink EventSink) error {
	m.log.Debug("monitor started", zap.Int("ring_size", ring.Cap()))

	for {
		m.drain(ring, sink)

		select {
		case <-ctx.Done():
			m.drain(ring, sink)
			m.Flush(sink)
			m.log.Debug("monitor stopped", zap.Uint64("transactions", m.stats.Snapshot().Transactions))
			return nil
		case <-ring.Ready():
		}
	}
}

func (m *Monitor) drain(ring *PairRing, sink EventSink) {
	for {
		p, ok := ring.Poll()
		if !ok {
			break
		}
		m.Feed(p, sink)
	}

	if n := ring.Overflows(); n != m.ringOverflows {
		m.log.Warn("pair ring overflow",
			zap.Uint64("dropped", n-m.ringOverflows),
			zap.Uint64("total", n),
		)
		m.ringOverflows = n
		m.stats.SetRingOverflows(n)
	}
}

// Process validates and decodes one transaction and sends the resulting
// events to sink
func (m *Monitor) Process(tx *Transaction, sink EventSink) {
	m.stats.RecordTransaction()
	v := ValidateTransaction(tx)

	if v.Has(AnomalyTruncated) || v.Has(AnomalyMalformed) {
		m.emitMalformed(tx, v, sink)
		return
	}

	if !m.parity.Observe(tx) {
		m.stats.RecordParityRepeat()
		m.log.Warn("parity did not alternate",
			zap.Uint8("opcode", tx.Opcode()),
			zap.Uint8("parity", tx.Parity()),
		)
	}

	if v.Has(AnomalyParityMismatch) {
		ev := newEvent(EventParityMismatch, tx)
		ev.Segment = SegmentBoth
		ev.Reason = ReasonParity
		m.log.Warn("parity mismatch",
			zap.Uint8("opcode", tx.Opcode()),
			zap.Uint8("command_parity", tx.Command.Parity()),
			zap.Uint8("response_parity", tx.Response.Parity()),
		)
		m.emit(ev, sink)
	}

	if v.Has(AnomalyChecksum) {
		ev := newEvent(EventChecksumError, tx)
		ev.Segment = v.ChecksumSegment()
		ev.Reason = ReasonChecksum
		m.log.Warn("checksum error",
			zap.Stringer("segment", ev.Segment),
			zap.String("command", FormatHex(ev.Command)),
			zap.String("response", FormatHex(ev.Response)),
		)
		m.emit(ev, sink)
		return
	}

	ev := m.decoder.Decode(tx)
	if ev.Kind == EventRawDump {
		m.log.Debug("raw dump",
			zap.Uint8("opcode", ev.Opcode),
			zap.String("reason", ev.Reason),
		)
	}

	m.stats.RecordEvent(ev)
	m.filter.SetVerbose(m.verbose.Load())
	if !m.filter.Allow(ev) {
		m.stats.RecordSuppressed()
		return
	}
	sink.HandleEvent(ev)
}

func (m *Monitor) emitMalformed(tx *Transaction, v Validation, sink EventSink) {
	ev := newEvent(EventMalformed, tx)
	ev.Reason = ReasonMalformed

	if len(v.Errors) > 0 {
		e := v.Errors[0]
		ev.Segment = e.Segment
		switch {
		case e.Type == AnomalyTruncated:
			ev.Reason = ReasonTruncated
		case e.Segment == SegmentCommand && tx.Command.Len == 0:
			ev.Reason = ReasonNoCommand
		case e.Segment == SegmentResponse && tx.Response.Len == 0:
			ev.Reason = ReasonNoResponse
		default:
			ev.Reason = ReasonShortSegment
		}
	}

	m.log.Warn("malformed transaction",
		zap.String("reason", ev.Reason),
		zap.Bool("truncated", ev.Truncated),
		zap.Int("command_len", tx.Command.Len),
		zap.Int("response_len", tx.Response.Len),
	)
	m.emit(ev, sink)
}

func (m *Monitor) emit(ev Event, sink EventSink) {
	m.stats.RecordEvent(ev)
	sink.HandleEvent(ev)
}
