// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright 2025 Pete Heist

package ccsim

import "math"

// HighSpeed TCP parameters (RFC 3649).
const (
	hsLowWindow    = 38
	hsHighWindow   = 83000
	hsHighDecrease = 0.1
)

// HighSpeed implements HighSpeed TCP, whose increase a(w) and decrease b(w)
// scale with the window above hsLowWindow segments.  At or below it,
// HighSpeed behaves as NewReno.
type HighSpeed struct {
	acc float64 // fractional growth, in segments
}

// NewHighSpeed returns a new HighSpeed.
func NewHighSpeed() *HighSpeed {
	return &HighSpeed{
		0, // acc
	}
}

// Name implements CCA.
func (*HighSpeed) Name() string {
	return "highspeed"
}

// hsDecrease returns b(w).
func hsDecrease(w float64) float64 {
	if w <= hsLowWindow {
		return 0.5
	}
	return (hsHighDecrease-0.5)*(math.Log(w)-math.Log(hsLowWindow))/
		(math.Log(hsHighWindow)-math.Log(hsLowWindow)) + 0.5
}

// hsIncrease returns a(w), in segments per RTT.
func hsIncrease(w float64) float64 {
	if w <= hsLowWindow {
		return 1
	}
	p := 0.078 / math.Pow(w, 1.2)
	b := hsDecrease(w)
	return max(w*w*p*2*b/(2-b), 1)
}

// OnAck implements CCA.
func (h *HighSpeed) OnAck(w *Window, ack Ack) {
	if !w.growable() {
		return
	}
	acked := ack.Acked
	if w.State == SlowStart {
		if acked = slowStart(w, acked); acked == 0 {
			return
		}
	}
	cwnd := w.segments()
	h.acc += hsIncrease(cwnd) * float64(acked) / float64(w.MSS) / cwnd
	if h.acc >= 1 {
		n := math.Floor(h.acc)
		w.Cwnd += Bytes(n) * w.MSS
		h.acc -= n
	}
}

// OnLoss implements CCA.
func (h *HighSpeed) OnLoss(w *Window, kind LossKind, now Clock) {
	w.reduce(1-hsDecrease(w.segments()), kind == LossDupAck)
	h.acc = 0
}

// OnECNMark implements CCA.
func (h *HighSpeed) OnECNMark(w *Window, now Clock) {
	w.reduce(1-hsDecrease(w.segments()), true)
	h.acc = 0
}

// SendWindow implements CCA.
func (*HighSpeed) SendWindow(w *Window) Bytes {
	return w.Cwnd
}
