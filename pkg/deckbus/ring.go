// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package deckbus

import "sync/atomic"

// PairRing is a bounded single-producer single-consumer queue of pairs.
//
// Each line has its own byte array. The producer only writes head and the
// consumer only writes tail, so no locks are needed. Push never blocks: when
// the ring is full the pair is dropped and counted.
type PairRing struct {
	a, b      []byte
	mask      uint64
	head      atomic.Uint64 // next slot to write (producer)
	tail      atomic.Uint64 // next slot to read (consumer)
	overflows atomic.Uint64
	ready     chan struct{}
}

// NewPairRing creates a ring holding at least size pairs. The size is rounded
// up to a power of two.
func NewPairRing(size int) *PairRing {
	if size < 2 {
		size = 2
	}
	n := 1
	for n < size {
		n <<= 1
	}
	return &PairRing{
		a:     make([]byte, n),
		b:     make([]byte, n),
		mask:  uint64(n - 1),
		ready: make(chan struct{}, 1),
	}
}

// Cap returns the number of pairs the ring can hold
func (r *PairRing) Cap() int {
	return len(r.a)
}

// Push appends a pair. Returns false if the ring was full and the pair was
// dropped. Must only be called from the producer.
func (r *PairRing) Push(p Pair) bool {
	head := r.head.Load()
	if head-r.tail.Load() >= uint64(len(r.a)) {
		r.overflows.Add(1)
		r.signal()
		return false
	}
	r.a[head&r.mask] = p.A
	r.b[head&r.mask] = p.B
	r.head.Store(head + 1)
	r.signal()
	return true
}

// Poll removes the oldest pair. Returns false if the ring is empty.
// Must only be called from the consumer.
func (r *PairRing) Poll() (Pair, bool) {
	tail := r.tail.Load()
	if tail == r.head.Load() {
		return Pair{}, false
	}
	p := Pair{A: r.a[tail&r.mask], B: r.b[tail&r.mask]}
	r.tail.Store(tail + 1)
	return p, true
}

// Len returns the number of buffered pairs
func (r *PairRing) Len() int {
	return int(r.head.Load() - r.tail.Load())
}

// Overflows returns the number of pairs dropped because the ring was full
func (r *PairRing) Overflows() uint64 {
	return r.overflows.Load()
}

// Ready returns a channel that receives after the producer pushed. A single
// wake-up may stand for many pairs; drain with Poll until it returns false.
func (r *PairRing) Ready() <-chan struct{} {
	return r.ready
}

func (r *PairRing) signal() {
	select {
	case r.ready <- struct{}{}:
	default:
	}
}
