// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright 2025 Pete Heist

package ccsim

// DropTail implements a FIFO queue that drops arriving packets when full.
type DropTail struct {
	fifo
}

// NewDropTail returns a new DropTail with the given limit.
func NewDropTail(limit QueueSize) *DropTail {
	return &DropTail{
		newFifo(limit), // fifo
	}
}

// Enqueue implements QueueDisc.
func (d *DropTail) Enqueue(pkt Packet, now Clock) (Packet, Verdict) {
	if !d.fits(pkt) {
		return pkt, Drop
	}
	d.push(pkt)
	return pkt, Admit
}
