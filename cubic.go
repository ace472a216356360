// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright 2025 Pete Heist

package ccsim

import "math"

const (
	// CubicC is the CUBIC scaling constant (RFC 8312).
	CubicC = 0.4

	// CubicBeta is the CUBIC multiplicative decrease factor.
	CubicBeta = 0.7
)

// Cubic implements CUBIC congestion control (RFC 8312), with windows
// computed in segments.
type Cubic struct {
	C               float64
	Beta            float64
	FastConvergence bool
	TCPFriendly     bool

	wMax    float64 // window before the last reduction
	k       float64 // seconds to reach wMax
	epoch   Clock   // start of the current epoch, or -1
	originW float64 // plateau of the cubic function
	wEst    float64 // Reno-friendly estimate
	acc     float64 // fractional growth, in bytes
}

// NewCubic returns a new Cubic with the RFC 8312 constants.
func NewCubic() *Cubic {
	return &Cubic{
		CubicC,    // C
		CubicBeta, // Beta
		true,      // FastConvergence
		true,      // TCPFriendly
		0,         // wMax
		0,         // k
		-1,        // epoch
		0,         // originW
		0,         // wEst
		0,         // acc
	}
}

// Name implements CCA.
func (*Cubic) Name() string {
	return "cubic"
}

// OnAck implements CCA.
func (c *Cubic) OnAck(w *Window, ack Ack) {
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
	if c.epoch < 0 {
		c.startEpoch(cwnd, ack.Now)
	}
	seg := float64(acked) / float64(w.MSS)

	// W_cubic(t+RTT), limited to 1.5 cwnd per RTT
	t := (ack.Now - c.epoch + c.rtt(w)).Seconds()
	target := min(c.originW+c.C*math.Pow(t-c.k, 3), 1.5*cwnd)
	var inc float64
	if target > cwnd {
		inc = (target - cwnd) / cwnd * seg
	} else {
		inc = 0.01 / cwnd * seg
	}

	if c.TCPFriendly {
		c.wEst += 3 * (1 - c.Beta) / (1 + c.Beta) * seg / cwnd
		if c.wEst > cwnd {
			inc = max(inc, (c.wEst-cwnd)/cwnd*seg)
		}
	}

	c.acc += inc * float64(w.MSS)
	b := Bytes(c.acc)
	w.Cwnd += b
	c.acc -= float64(b)
}

// startEpoch starts a new growth epoch at the current window.
func (c *Cubic) startEpoch(cwnd float64, now Clock) {
	c.epoch = now
	if c.wMax <= cwnd {
		c.k = 0
		c.originW = cwnd
	} else {
		c.k = math.Cbrt((c.wMax - cwnd) / c.C)
		c.originW = c.wMax
	}
	c.wEst = cwnd
}

// rtt returns the delay used to look ahead on the cubic curve.
func (c *Cubic) rtt(w *Window) Clock {
	if w.MinRTT > 0 {
		return w.MinRTT
	}
	return w.SRTT
}

// OnLoss implements CCA.
func (c *Cubic) OnLoss(w *Window, kind LossKind, now Clock) {
	c.congestion(w, kind == LossDupAck)
}

// OnECNMark implements CCA.
func (c *Cubic) OnECNMark(w *Window, now Clock) {
	c.congestion(w, true)
}

// congestion records wMax, with fast convergence, and reduces the window by
// Beta.
func (c *Cubic) congestion(w *Window, setCwnd bool) {
	cwnd := w.segments()
	if c.FastConvergence && cwnd < c.wMax {
		c.wMax = cwnd * (1 + c.Beta) / 2
	} else {
		c.wMax = cwnd
	}
	w.reduce(c.Beta, setCwnd)
	c.epoch = -1
	c.acc = 0
}

// SendWindow implements CCA.
func (*Cubic) SendWindow(w *Window) Bytes {
	return w.Cwnd
}
