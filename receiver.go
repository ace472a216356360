// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright 2025 Pete Heist

package ccsim

import (
	"container/heap"
)

// Receiver is the receiving side of a TCP flow.  It sends cumulative ACKs,
// delayed by up to delAckCount segments or delAckTimeout, and echoes CE
// marks in ECE as DCTCP does, with an immediate ACK when the CE state of
// arriving segments changes.
type Receiver struct {
	flow  FlowID
	node  *node
	peer  nodeID
	sched *Scheduler
	stats *FlowCounters

	buf  pktbuf
	next Seq // rcv.nxt

	delAckCount   int
	delAckTimeout Clock
	unacked       int
	ce            bool
	echo          Clock
	ackTimer      *Event
}

// newReceiver returns a new Receiver.
func newReceiver(flow FlowID, spec FlowSpec, n *node, peer nodeID,
	sched *Scheduler, stats *FlowCounters) *Receiver {
	return &Receiver{
		flow,                      // flow
		n,                         // node
		peer,                      // peer
		sched,                     // sched
		stats,                     // stats
		pktbuf{},                  // buf
		0,                         // next
		spec.DelAckCount,          // delAckCount
		Clock(spec.DelAckTimeout), // delAckTimeout
		0,                         // unacked
		false,                     // ce
		0,                         // echo
		nil,                       // ackTimer
	}
}

// Next returns the next expected sequence number.
func (r *Receiver) Next() Seq {
	return r.next
}

// receive implements endpoint.
func (r *Receiver) receive(pkt Packet) {
	if pkt.ACK {
		return
	}
	r.stats.RxPackets++
	r.stats.RxBytes += pkt.Len
	if pkt.CE != r.ce {
		if r.unacked > 0 {
			r.sendAck()
		}
		r.ce = pkt.CE
	}
	r.echo = pkt.Sent
	var immediate bool
	if pkt.Seq != r.next || len(r.buf) > 0 {
		// out-of-order, duplicate or filling a hole
		immediate = true
		if pkt.Seq == r.next {
			r.next = pkt.NextSeq()
			r.drain()
		} else if pkt.Seq > r.next {
			heap.Push(&r.buf, pkt)
		}
	} else {
		r.next = pkt.NextSeq()
	}
	r.unacked++
	if immediate || r.unacked >= r.delAckCount || r.delAckTimeout == 0 {
		r.sendAck()
		return
	}
	if !r.ackTimer.Pending() {
		r.ackTimer = r.sched.after(r.delAckTimeout, r.sendAck)
	}
}

// drain advances rcv.nxt over buffered segments.
func (r *Receiver) drain() {
	for len(r.buf) > 0 && r.buf[0].Seq <= r.next {
		p := heap.Pop(&r.buf).(Packet)
		r.next = max(r.next, p.NextSeq())
	}
}

// sendAck sends a cumulative ACK.
func (r *Receiver) sendAck() {
	r.sched.Cancel(r.ackTimer)
	r.ackTimer = nil
	r.unacked = 0
	r.stats.Acks++
	r.node.send(Packet{
		Len:    AckLen,
		Src:    r.node.id,
		Dst:    r.peer,
		Flow:   r.flow,
		ACKNum: r.next,
		ACK:    true,
		ECE:    r.ce,
		Sent:   r.sched.Now(),
		Echo:   r.echo,
	})
}
