// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package deckbus

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"
)

// DefaultIdleGap is the line silence after which a dual-line capture
// reports both lines idle. Deck controller commands are about 35ms apart.
const DefaultIdleGap = 5 * time.Millisecond

// Capture is the producer side of a PairRing. While disabled, incoming pairs
// are dropped at the producer; pairs already in the ring stay available to
// the consumer.
type Capture struct {
	ring    *PairRing
	enabled atomic.Bool
	tap     func([]Pair)
	dropped atomic.Uint64
}

// NewCapture creates an enabled capture feeding ring
func NewCapture(ring *PairRing) *Capture {
	c := &Capture{ring: ring}
	c.enabled.Store(true)
	return c
}

// Ring returns the ring the capture feeds
func (c *Capture) Ring() *PairRing {
	return c.ring
}

// Enable starts accepting pairs
func (c *Capture) Enable() {
	c.enabled.Store(true)
}

// Disable stops accepting pairs
func (c *Capture) Disable() {
	c.enabled.Store(false)
}

// Toggle flips the enable state and returns the new state
func (c *Capture) Toggle() bool {
	for {
		old := c.enabled.Load()
		if c.enabled.CompareAndSwap(old, !old) {
			return !old
		}
	}
}

// Enabled returns true while pairs are accepted
func (c *Capture) Enabled() bool {
	return c.enabled.Load()
}

// Dropped returns the number of pairs dropped while disabled
func (c *Capture) Dropped() uint64 {
	return c.dropped.Load()
}

// SetTap installs a function that sees every accepted chunk of pairs before
// it enters the ring (recording). Must be set before capture starts.
func (c *Capture) SetTap(tap func([]Pair)) {
	c.tap = tap
}

func (c *Capture) push(pairs []Pair) {
	if !c.enabled.Load() {
		c.dropped.Add(uint64(len(pairs)))
		return
	}
	if c.tap != nil {
		c.tap(pairs)
	}
	for _, p := range pairs {
		c.ring.Push(p)
	}
}

// ReadInterleaved captures from an adapter that delivers both lines
// interleaved as A B A B ... (synchronous front panel capture). Returns nil
// at end of stream or when ctx is cancelled. A blocking read is only
// interrupted by closing r.
func (c *Capture) ReadInterleaved(ctx context.Context, r io.Reader) error {
	buf := make([]byte, 512)
	pairs := make([]Pair, 0, len(buf)/2+1)
	var (
		half    byte
		hasHalf bool
	)

	for {
		if ctx.Err() != nil {
			return nil
		}

		n, err := r.Read(buf)
		if n > 0 {
			pairs = pairs[:0]
			for _, b := range buf[:n] {
				if !hasHalf {
					half, hasHalf = b, true
					continue
				}
				pairs = append(pairs, Pair{A: half, B: b})
				hasHalf = false
			}
			c.push(pairs)
		}
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("capture read: %w", err)
		}
	}
}

type lineChunk struct {
	line int
	data []byte
	err  error
}

// ReadDualLine captures from two asynchronous lines, ra carrying commands and
// rb carrying responses (deck controller UARTs). Each byte becomes a pair
// with the other line idle. After gap without data on either line following
// a response an idle pair is produced, which closes the open transaction.
// A slow response never splits its command.
func (c *Capture) ReadDualLine(ctx context.Context, ra, rb io.Reader, gap time.Duration) error {
	if gap <= 0 {
		gap = DefaultIdleGap
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	chunks := make(chan lineChunk, 16)
	go readLine(ctx, 0, ra, chunks)
	go readLine(ctx, 1, rb, chunks)

	timer := time.NewTimer(gap)
	defer timer.Stop()

	idle := []Pair{{A: IdleByte, B: IdleByte}}
	pending := false
	open := 2
	var pairs []Pair

	for {
		select {
		case <-ctx.Done():
			if pending {
				c.push(idle)
			}
			return nil

		case <-timer.C:
			if pending {
				c.push(idle)
				pending = false
			}
			timer.Reset(gap)

		case ch := <-chunks:
			if ch.err != nil {
				open--
				if !errors.Is(ch.err, io.EOF) && ctx.Err() == nil {
					return fmt.Errorf("capture read line %c: %w", "AB"[ch.line], ch.err)
				}
				if open == 0 {
					if pending {
						c.push(idle)
					}
					return nil
				}
				continue
			}

			pairs = pairs[:0]
			for _, b := range ch.data {
				if ch.line == 0 {
					pairs = append(pairs, Pair{A: b, B: IdleByte})
				} else {
					pairs = append(pairs, Pair{A: IdleByte, B: b})
				}
			}
			c.push(pairs)
			// Only an open response is closed by an idle pair; inside a
			// command segment it would be kept as a 0xFF byte
			pending = ch.line == 1

			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(gap)
		}
	}
}

func readLine(ctx context.Context, line int, r io.Reader, out chan<- lineChunk) {
	for {
		buf := make([]byte, 256)
		n, err := r.Read(buf)
		if n > 0 {
			select {
			case out <- lineChunk{line: line, data: buf[:n]}:
			case <-ctx.Done():
				return
			}
		}
		if err != nil {
			select {
			case out <- lineChunk{line: line, err: err}:
			case <-ctx.Done():
			}
			return
		}
	}
}

// Replay feeds a recording into the ring. With realtime set, records are
// released at their recorded offsets; otherwise as fast as the consumer
// drains the ring. A file source is not latency critical, so Replay waits
// for ring space instead of dropping pairs.
func (c *Capture) Replay(ctx context.Context, r io.Reader, realtime bool) error {
	player, err := NewPlayer(r)
	if err != nil {
		return err
	}

	start := time.Now()
	for {
		rec, err := player.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		if realtime {
			due := start.Add(time.Duration(rec.Offset) * time.Microsecond)
			if wait := time.Until(due); wait > 0 {
				select {
				case <-time.After(wait):
				case <-ctx.Done():
					return nil
				}
			}
		}

		pairs := rec.Pairs()
		for len(pairs) > 0 {
			free := c.ring.Cap() - c.ring.Len()
			if free == 0 {
				select {
				case <-time.After(time.Millisecond):
					continue
				case <-ctx.Done():
					return nil
				}
			}
			if free > len(pairs) {
				free = len(pairs)
			}
			c.push(pairs[:free])
			pairs = pairs[free:]
		}

		if ctx.Err() != nil {
			return nil
		}
	}
}
