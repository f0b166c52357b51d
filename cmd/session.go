// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/Thermoquad/deckmon/pkg/deckbus"
	"go.uber.org/zap"
)

// session wires a capture source to the monitor pipeline
type session struct {
	cfg     Config
	log     *zap.Logger
	info    string
	ring    *deckbus.PairRing
	capture *deckbus.Capture
	monitor *deckbus.Monitor

	produce func(ctx context.Context) error
	sources []io.Closer
	once    sync.Once
}

// openSession opens the configured capture source
func openSession(ctx context.Context, cfg Config, log *zap.Logger) (*session, error) {
	if err := cfg.ValidateSource(); err != nil {
		return nil, err
	}

	monitor, err := deckbus.NewMonitor(deckbus.MonitorConfig{
		Bus:              cfg.bus(),
		Verbose:          cfg.Verbose,
		SegmentCapacity:  cfg.SegmentCapacity,
		MaxTrackedLength: cfg.MaxTrackedLength,
	}, deckbus.WithLogger(log))
	if err != nil {
		return nil, err
	}

	ring := deckbus.NewPairRing(cfg.RingSize)
	s := &session{
		cfg:     cfg,
		log:     log,
		ring:    ring,
		capture: deckbus.NewCapture(ring),
		monitor: monitor,
	}

	switch {
	case cfg.Replay != "":
		f, err := os.Open(cfg.Replay)
		if err != nil {
			return nil, fmt.Errorf("failed to open recording: %w", err)
		}
		s.sources = append(s.sources, f)
		s.info = fmt.Sprintf("Replay: %s", cfg.Replay)
		s.produce = func(ctx context.Context) error {
			return s.capture.Replay(ctx, f, cfg.Realtime)
		}

	case cfg.URL != "":
		password := ""
		if cfg.Username != "" {
			password, err = GetPassword()
			if err != nil {
				return nil, err
			}
		}
		conn, err := OpenWebSocketConnection(ctx, cfg.URL, cfg.Username, password, cfg.NoSSLVerify)
		if err != nil {
			return nil, err
		}
		s.sources = append(s.sources, conn)
		s.info = fmt.Sprintf("WebSocket: %s", cfg.URL)
		s.produce = func(ctx context.Context) error {
			return s.capture.ReadInterleaved(ctx, conn)
		}

	case cfg.PortB != "":
		a, err := OpenSerialConnection(cfg.Port, cfg.Baud)
		if err != nil {
			return nil, err
		}
		b, err := OpenSerialConnection(cfg.PortB, cfg.Baud)
		if err != nil {
			a.Close()
			return nil, err
		}
		s.sources = append(s.sources, a, b)
		s.info = fmt.Sprintf("Serial: %s + %s @ %d baud", cfg.Port, cfg.PortB, cfg.Baud)
		s.produce = func(ctx context.Context) error {
			return s.capture.ReadDualLine(ctx, a, b, cfg.IdleGap)
		}

	default:
		conn, err := OpenSerialConnection(cfg.Port, cfg.Baud)
		if err != nil {
			return nil, err
		}
		s.sources = append(s.sources, conn)
		s.info = fmt.Sprintf("Serial: %s @ %d baud", cfg.Port, cfg.Baud)
		s.produce = func(ctx context.Context) error {
			return s.capture.ReadInterleaved(ctx, conn)
		}
	}

	log.Info("capture source opened", zap.String("source", s.info), zap.Stringer("bus", cfg.bus()))
	return s, nil
}

// Run captures and decodes until ctx is cancelled or the source ends.
// Events are delivered to sink from the monitor goroutine.
func (s *session) Run(ctx context.Context, sink deckbus.EventSink) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if s.cfg.MetricsAddr != "" {
		stop, err := serveMetrics(s.cfg.MetricsAddr, newStatsCollector(s.monitor.Statistics(), s.capture), s.log)
		if err != nil {
			return err
		}
		defer stop()
	}

	produced := make(chan error, 1)
	go func() {
		err := s.produce(ctx)
		cancel()
		produced <- err
	}()

	// A blocked read only returns once its source is closed
	go func() {
		<-ctx.Done()
		s.closeSources()
	}()

	err := s.monitor.Run(ctx, s.ring, sink)
	if perr := <-produced; perr != nil && err == nil {
		err = perr
	}
	return err
}

func (s *session) closeSources() {
	s.once.Do(func() {
		for _, c := range s.sources {
			if err := c.Close(); err != nil {
				s.log.Debug("close capture source", zap.Error(err))
			}
		}
	})
}

// Close releases the capture source
func (s *session) Close() error {
	s.closeSources()
	return nil
}
