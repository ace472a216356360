// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright 2025 Pete Heist

package ccsim

// HeaderLen is the length of the IP and TCP headers in each Packet.
const HeaderLen Bytes = 52

// AckLen is the length of a pure ACK.
const AckLen = HeaderLen

// Packet represents a network packet in the simulation, which always
// includes an approximation of a TCP segment.
type Packet struct {
	// IP fields
	Len Bytes
	Src nodeID
	Dst nodeID
	ECT bool
	CE  bool

	// TCP segment fields
	Flow   FlowID
	Seq    Seq
	ACKNum Seq
	ACK    bool
	ECE    bool
	Sent   Clock
	Echo   Clock

	// non-standard fields for simulation purposes
	Retransmit bool
}

// SegmentLen returns the size of the payload (IP length minus header bytes).
func (p Packet) SegmentLen() Bytes {
	if p.ACK {
		return 0
	}
	return p.Len - HeaderLen
}

// NextSeq returns the next expected sequence number after this Packet.
func (p Packet) NextSeq() Seq {
	return p.Seq + Seq(p.SegmentLen())
}

// pktbuf is a buffer for out-of-order packets, using the heap package.
type pktbuf []Packet

// Len implements heap.Interface.
func (p pktbuf) Len() int {
	return len(p)
}

// Less implements heap.Interface.
func (p pktbuf) Less(i, j int) bool {
	return p[i].Seq < p[j].Seq
}

// Swap implements heap.Interface.
func (p pktbuf) Swap(i, j int) {
	p[i], p[j] = p[j], p[i]
}

// Push implements heap.Interface.
func (p *pktbuf) Push(x any) {
	*p = append(*p, x.(Packet))
}

// Pop implements heap.Interface.
func (p *pktbuf) Pop() any {
	o := *p
	n := len(o)
	t := o[n-1]
	*p = o[:n-1]
	return t
}
