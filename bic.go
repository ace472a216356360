// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright 2025 Pete Heist

package ccsim

// BIC constants, as in Linux tcp_bic.
const (
	bicB            = 4
	bicMaxIncrement = 16
	bicSmoothPart   = 20
	bicLowWindow    = 14
	bicBeta         = 819.0 / 1024
)

// BIC implements Binary Increase Congestion control.  Below the window of
// the last loss, cwnd approaches it by binary search, and above it probes
// for a new maximum slowly at first, then additively.
type BIC struct {
	FastConvergence bool

	lastMax float64 // segments
	cnt     float64 // segments acked per increment
	ackCnt  float64
}

// NewBIC returns a new BIC.
func NewBIC() *BIC {
	return &BIC{
		true, // FastConvergence
		0,    // lastMax
		0,    // cnt
		0,    // ackCnt
	}
}

// Name implements CCA.
func (*BIC) Name() string {
	return "bic"
}

// OnAck implements CCA.
func (b *BIC) OnAck(w *Window, ack Ack) {
	if !w.growable() {
		return
	}
	acked := ack.Acked
	if w.State == SlowStart {
		if acked = slowStart(w, acked); acked == 0 {
			return
		}
	}
	b.update(w.segments())
	b.ackCnt += float64(acked) / float64(w.MSS)
	for b.ackCnt >= b.cnt {
		b.ackCnt -= b.cnt
		w.Cwnd += w.MSS
	}
}

// update sets the number of segments to ack per cwnd increment.
func (b *BIC) update(cwnd float64) {
	switch {
	case cwnd <= bicLowWindow:
		b.cnt = cwnd
	case cwnd < b.lastMax:
		// binary search increase
		dist := (b.lastMax - cwnd) / bicB
		if dist > bicMaxIncrement {
			b.cnt = cwnd / bicMaxIncrement
		} else if dist <= 1 {
			b.cnt = cwnd * bicSmoothPart / bicB
		} else {
			b.cnt = cwnd / dist
		}
	default:
		// max probing
		if cwnd < b.lastMax+bicB {
			b.cnt = cwnd * bicSmoothPart / bicB
		} else if cwnd < b.lastMax+bicMaxIncrement*(bicB-1) {
			b.cnt = cwnd * (bicB - 1) / (cwnd - b.lastMax)
		} else {
			b.cnt = cwnd / bicMaxIncrement
		}
	}
	if b.lastMax == 0 && cwnd > bicLowWindow && b.cnt > 20 {
		b.cnt = 20
	}
	b.cnt = max(b.cnt, 1)
}

// OnLoss implements CCA.
func (b *BIC) OnLoss(w *Window, kind LossKind, now Clock) {
	b.congestion(w, kind == LossDupAck)
}

// OnECNMark implements CCA.
func (b *BIC) OnECNMark(w *Window, now Clock) {
	b.congestion(w, true)
}

// congestion records the last maximum and reduces the window.
func (b *BIC) congestion(w *Window, setCwnd bool) {
	cwnd := w.segments()
	if b.FastConvergence && cwnd < b.lastMax {
		b.lastMax = cwnd * (1 + bicBeta) / 2
	} else {
		b.lastMax = cwnd
	}
	b.ackCnt = 0
	if cwnd <= bicLowWindow {
		w.reduce(RenoMD, setCwnd)
		return
	}
	w.reduce(bicBeta, setCwnd)
}

// SendWindow implements CCA.
func (*BIC) SendWindow(w *Window) Bytes {
	return w.Cwnd
}
