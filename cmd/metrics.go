// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/Thermoquad/deckmon/pkg/deckbus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const metricsNamespace = "deckmon"

// statsCollector exports the monitor statistics on every scrape
type statsCollector struct {
	stats   *deckbus.Statistics
	capture *deckbus.Capture

	transactions *prometheus.Desc
	events       *prometheus.Desc
	suppressed   *prometheus.Desc
	anomalies    *prometheus.Desc
	overflows    *prometheus.Desc
	dropped      *prometheus.Desc
	capturing    *prometheus.Desc
	ringFill     *prometheus.Desc
}

func newStatsCollector(stats *deckbus.Statistics, capture *deckbus.Capture) *statsCollector {
	desc := func(name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(metricsNamespace, "", name), help, labels, nil)
	}
	return &statsCollector{
		stats:        stats,
		capture:      capture,
		transactions: desc("transactions_total", "Transactions closed by the synchronizer."),
		events:       desc("events_total", "Events produced by the decoder.", "kind"),
		suppressed:   desc("suppressed_total", "Decoded events suppressed by the change filter."),
		anomalies:    desc("anomalies_total", "Bus integrity anomalies.", "type"),
		overflows:    desc("ring_overflows_total", "Byte pairs dropped because the capture ring was full."),
		dropped:      desc("capture_dropped_total", "Byte pairs dropped while capture was disabled."),
		capturing:    desc("capture_enabled", "1 while capture is enabled."),
		ringFill:     desc("ring_pairs", "Byte pairs waiting in the capture ring."),
	}
}

func (c *statsCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.transactions, c.events, c.suppressed, c.anomalies,
		c.overflows, c.dropped, c.capturing, c.ringFill,
	} {
		ch <- d
	}
}

func (c *statsCollector) Collect(ch chan<- prometheus.Metric) {
	snap := c.stats.Snapshot()
	counter := func(d *prometheus.Desc, v uint64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v), labels...)
	}

	counter(c.transactions, snap.Transactions)
	counter(c.events, snap.Decoded, "decoded")
	counter(c.events, snap.RawDumps, "raw_dump")
	counter(c.suppressed, snap.Suppressed)
	counter(c.anomalies, snap.ChecksumErrors, "checksum")
	counter(c.anomalies, snap.ParityMismatches, "parity_mismatch")
	counter(c.anomalies, snap.ParityRepeats, "parity_repeat")
	counter(c.anomalies, snap.Malformed, "malformed")
	counter(c.anomalies, snap.Truncated, "truncated")
	counter(c.overflows, snap.RingOverflows)

	if c.capture == nil {
		return
	}
	counter(c.dropped, c.capture.Dropped())
	enabled := 0.0
	if c.capture.Enabled() {
		enabled = 1
	}
	ch <- prometheus.MustNewConstMetric(c.capturing, prometheus.GaugeValue, enabled)
	ch <- prometheus.MustNewConstMetric(c.ringFill, prometheus.GaugeValue, float64(c.capture.Ring().Len()))
}

// newMetricsHandler serves the collector plus Go runtime metrics
func newMetricsHandler(collector prometheus.Collector) http.Handler {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collector,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	return mux
}

// serveMetrics starts the metrics server on addr and returns a function that
// stops it
func serveMetrics(addr string, collector prometheus.Collector, log *zap.Logger) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen for metrics on %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:           newMetricsHandler(collector),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server failed", zap.Error(err))
		}
	}()
	log.Info("serving metrics", zap.String("addr", ln.Addr().String()))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Debug("metrics server shutdown", zap.Error(err))
		}
	}, nil
}
