// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright 2025 Pete Heist

package ccsim

// DCTCPGain is the EWMA gain g for the DCTCP marking estimate.
const DCTCPGain = 1.0 / 16

// DCTCP implements Data Center TCP (RFC 8257).  Growth and loss response
// are NewReno's.  On ECE, cwnd is reduced by alpha/2, where alpha is a
// moving average of the fraction of bytes acked with ECE per window.
type DCTCP struct {
	NewReno
	Gain float64

	alpha     float64
	acked     Bytes
	marked    Bytes
	windowEnd Seq
	started   bool
}

// NewDCTCP returns a new DCTCP with alpha initialized to 1.
func NewDCTCP() *DCTCP {
	return &DCTCP{
		*NewNewReno(), // NewReno
		DCTCPGain,     // Gain
		1,             // alpha
		0,             // acked
		0,             // marked
		0,             // windowEnd
		false,         // started
	}
}

// Name implements CCA.
func (*DCTCP) Name() string {
	return "dctcp"
}

// Alpha returns the current estimate of the marked fraction.
func (d *DCTCP) Alpha() float64 {
	return d.alpha
}

// OnAck implements CCA.
func (d *DCTCP) OnAck(w *Window, ack Ack) {
	d.acked += ack.Acked
	if ack.ECE {
		d.marked += ack.Acked
	}
	if !d.started {
		d.windowEnd = ack.SndNxt
		d.started = true
	} else if ack.AckNum >= d.windowEnd {
		d.updateAlpha()
		d.windowEnd = ack.SndNxt
	}
	d.NewReno.OnAck(w, ack)
}

// updateAlpha ends an observation window.
func (d *DCTCP) updateAlpha() {
	var f float64
	if d.acked > 0 {
		f = float64(d.marked) / float64(d.acked)
	}
	d.alpha = (1-d.Gain)*d.alpha + d.Gain*f
	d.acked = 0
	d.marked = 0
}

// OnECNMark implements CCA.
func (d *DCTCP) OnECNMark(w *Window, now Clock) {
	w.reduce(1-d.alpha/2, true)
	d.caAcked = 0
}
