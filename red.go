// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright 2025 Pete Heist

package ccsim

import "math/rand"

// DefaultMaxP is the RED marking probability at MaxTh.
const DefaultMaxP = 0.02

// DefaultQW is the RED queue weight used when none is configured.
const DefaultQW = 0.002

// RED implements Random Early Detection with optional ECN marking.  The
// average queue length is an EWMA of the occupancy seen by each arriving
// packet, in the unit of the queue limit.
type RED struct {
	fifo
	minTh    float64
	maxTh    float64
	qw       float64
	maxP     float64
	ecn      bool
	hardDrop bool
	avg      float64
	count    int
	rand     *rand.Rand
}

// NewRED returns a new RED for the given QueueSpec, with randomness from a
// source seeded with seed.
func NewRED(spec QueueSpec, seed int64) (r *RED, err error) {
	qw := spec.QW
	if qw == 0 {
		qw = DefaultQW
	}
	maxP := spec.MaxP
	if maxP == 0 {
		maxP = DefaultMaxP
	}
	switch {
	case spec.Limit.Value <= 0:
		err = configErr("limit", "must be positive, got %s", spec.Limit)
	case spec.MinTh < 0:
		err = configErr("minTh", "must not be negative, got %g", spec.MinTh)
	case spec.MinTh > spec.MaxTh:
		err = configErr("minTh", "%g exceeds maxTh %g", spec.MinTh,
			spec.MaxTh)
	case qw < 0 || qw > 1:
		err = configErr("qw", "must be in (0, 1], got %g", qw)
	case maxP < 0 || maxP > 1:
		err = configErr("maxP", "must be in (0, 1], got %g", maxP)
	}
	if err != nil {
		return
	}
	r = &RED{
		newFifo(spec.Limit),            // fifo
		spec.MinTh,                     // minTh
		spec.MaxTh,                     // maxTh
		qw,                             // qw
		maxP,                           // maxP
		spec.UseECN,                    // ecn
		spec.UseHardDrop,               // hardDrop
		0,                              // avg
		0,                              // count
		rand.New(rand.NewSource(seed)), // rand
	}
	return
}

// Enqueue implements QueueDisc.
func (r *RED) Enqueue(pkt Packet, now Clock) (Packet, Verdict) {
	r.avg = (1-r.qw)*r.avg + r.qw*r.occupancy()
	if !r.fits(pkt) {
		r.count = 0
		return pkt, Drop
	}
	var signal bool
	switch {
	case r.avg < r.minTh:
		r.count = 0
	case r.avg >= r.maxTh:
		r.count = 0
		if r.ecn && pkt.ECT && !r.hardDrop {
			return r.mark(pkt), Mark
		}
		return pkt, Drop
	default:
		r.count++
		if signal = r.rand.Float64() < r.probability(); signal {
			r.count = 0
		}
	}
	if !signal {
		r.push(pkt)
		return pkt, Admit
	}
	if r.ecn && pkt.ECT {
		return r.mark(pkt), Mark
	}
	return pkt, Drop
}

// probability returns the marking / dropping probability for the current
// average, between the thresholds.
func (r *RED) probability() float64 {
	pb := r.maxP * (r.avg - r.minTh) / (r.maxTh - r.minTh)
	d := 1 - float64(r.count)*pb
	if d <= 0 {
		return 1
	}
	return min(pb/d, 1)
}

// mark sets CE on the Packet and queues it.
func (r *RED) mark(pkt Packet) Packet {
	pkt.CE = true
	r.push(pkt)
	return pkt
}

// Avg returns the current average queue length.
func (r *RED) Avg() float64 {
	return r.avg
}
