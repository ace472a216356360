// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright 2025 Pete Heist

package ccsim

// RenoMD is the multiplicative decrease for NewReno on loss or ECN.
const RenoMD = 0.5

// NewReno implements TCP NewReno window control (RFC 5681 and RFC 6582),
// with byte counting in congestion avoidance.
type NewReno struct {
	caAcked Bytes
}

// NewNewReno returns a new NewReno.
func NewNewReno() *NewReno {
	return &NewReno{
		0, // caAcked
	}
}

// Name implements CCA.
func (*NewReno) Name() string {
	return "newreno"
}

// OnAck implements CCA.
func (r *NewReno) OnAck(w *Window, ack Ack) {
	if !w.growable() {
		return
	}
	acked := ack.Acked
	if w.State == SlowStart {
		if acked = slowStart(w, acked); acked == 0 {
			return
		}
	}
	r.caAcked += acked
	if r.caAcked >= w.Cwnd {
		r.caAcked -= w.Cwnd
		w.Cwnd += w.MSS
	}
}

// OnLoss implements CCA.
func (r *NewReno) OnLoss(w *Window, kind LossKind, now Clock) {
	w.reduce(RenoMD, kind == LossDupAck)
	r.caAcked = 0
}

// OnECNMark implements CCA.
func (r *NewReno) OnECNMark(w *Window, now Clock) {
	w.reduce(RenoMD, true)
	r.caAcked = 0
}

// SendWindow implements CCA.
func (*NewReno) SendWindow(w *Window) Bytes {
	return w.Cwnd
}
