// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright 2025 Pete Heist

package ccsim

import (
	"github.com/heistp/ccsim/internal/logging"
	"github.com/sirupsen/logrus"
)

// LinkStats contains the packet counters for a Link.
type LinkStats struct {
	Enqueued int64
	Dequeued int64
	Dropped  int64
	Marked   int64
}

// Offered returns the number of packets offered to the Link's queue.
func (s LinkStats) Offered() int64 {
	return s.Enqueued + s.Dropped
}

// Link is one direction of a point-to-point link.  Packets are queued by
// the QueueDisc, serialized one at a time at the link rate, then propagate
// for the link delay before arriving at the far node.
type Link struct {
	name  string
	from  *node
	to    *node
	rate  Bitrate
	delay Clock
	queue QueueDisc
	sched *Scheduler
	busy  bool
	pipe  []pktTime
	stats LinkStats
	// dropped is called for each packet rejected by the queue
	dropped func(*Link, Packet)
	// marked is called for each packet CE marked by the queue
	marked func(*Link, Packet)
}

// pktTime stores a packet and a time, which we keep in the pipe field
// instead of scheduling a timer per packet.
type pktTime struct {
	packet Packet // packet to deliver
	time   Clock  // simulation time to deliver it
}

// newLink returns a new Link.
func newLink(name string, from, to *node, rate Bitrate, delay Clock,
	queue QueueDisc, sched *Scheduler) *Link {
	return &Link{
		name,               // name
		from,               // from
		to,                 // to
		rate,               // rate
		delay,              // delay
		queue,              // queue
		sched,              // sched
		false,              // busy
		make([]pktTime, 0), // pipe
		LinkStats{},        // stats
		nil,                // dropped
		nil,                // marked
	}
}

// Name returns the Link's name, in the form "from->to".
func (l *Link) Name() string {
	return l.name
}

// Rate returns the Link's rate.
func (l *Link) Rate() Bitrate {
	return l.rate
}

// Delay returns the Link's propagation delay.
func (l *Link) Delay() Clock {
	return l.delay
}

// Queue returns the Link's QueueDisc.
func (l *Link) Queue() QueueDisc {
	return l.queue
}

// Stats returns the Link's counters.
func (l *Link) Stats() LinkStats {
	return l.stats
}

// Transmit offers a Packet to the Link.  It returns false if the queue
// dropped the Packet, which is then gone without any further event.
func (l *Link) Transmit(pkt Packet) bool {
	now := l.sched.Now()
	p, v := l.queue.Enqueue(pkt, now)
	switch v {
	case Drop:
		l.stats.Dropped++
		if logging.IsDebug() {
			logging.DebugWithFields(logrus.Fields{
				"sim_time": now,
				"link":     l.name,
				"flow":     pkt.Flow,
				"seq":      pkt.Seq,
				"ack":      pkt.ACK,
			}, "drop")
		}
		if l.dropped != nil {
			l.dropped(l, p)
		}
		return false
	case Mark:
		l.stats.Marked++
		if l.marked != nil {
			l.marked(l, p)
		}
	}
	l.stats.Enqueued++
	if !l.busy {
		l.startTx()
	}
	return true
}

// startTx starts serializing the packet at the head of the queue, if any.
func (l *Link) startTx() {
	p, ok := l.queue.Peek()
	if !ok {
		l.busy = false
		return
	}
	l.busy = true
	l.sched.after(TransferTime(l.rate, p.Len), l.txDone)
}

// txDone is called when the head packet has been serialized.
func (l *Link) txDone() {
	p, ok := l.queue.Dequeue(l.sched.Now())
	if ok {
		l.stats.Dequeued++
		l.propagate(p)
	}
	l.startTx()
}

// propagate adds a serialized packet to the pipe.
func (l *Link) propagate(pkt Packet) {
	l.pipe = append(l.pipe, pktTime{pkt, l.sched.Now() + l.delay})
	if len(l.pipe) == 1 {
		l.sched.after(l.delay, l.arrive)
	}
}

// arrive delivers the packet at the head of the pipe to the far node.
func (l *Link) arrive() {
	var p pktTime
	p, l.pipe = l.pipe[0], l.pipe[1:]
	if len(l.pipe) > 0 {
		l.sched.after(l.pipe[0].time-l.sched.Now(), l.arrive)
	}
	l.to.receive(p.packet)
}
