// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright 2025 Pete Heist

package ccsim

import (
	"errors"
	"fmt"
)

// Verdict is the outcome of offering a Packet to a QueueDisc.
type Verdict int

const (
	Admit Verdict = iota
	Mark
	Drop
)

func (v Verdict) String() string {
	switch v {
	case Admit:
		return "admit"
	case Mark:
		return "mark"
	case Drop:
		return "drop"
	}
	return fmt.Sprintf("Verdict(%d)", int(v))
}

// QueueDisc is a queue discipline attached to the sending side of a Link.
// Enqueue returns the Packet as admitted (possibly CE marked), or Drop if
// the Packet was not queued.
type QueueDisc interface {
	Enqueue(pkt Packet, now Clock) (Packet, Verdict)
	Dequeue(now Clock) (Packet, bool)
	Peek() (Packet, bool)
	Len() int
	Bytes() Bytes
	Capacity() QueueSize
}

// fifo is a first-in first-out packet buffer with a size limit, embedded by
// queue disciplines.
type fifo struct {
	queue []Packet
	bytes Bytes
	limit QueueSize
}

// newFifo returns a new fifo with the given limit.
func newFifo(limit QueueSize) fifo {
	return fifo{
		make([]Packet, 0), // queue
		0,                 // bytes
		limit,             // limit
	}
}

// fits returns true if the given Packet fits within the limit.
func (f *fifo) fits(pkt Packet) bool {
	if f.limit.Unit == ByteUnits {
		return int64(f.bytes+pkt.Len) <= f.limit.Value
	}
	return int64(len(f.queue)) < f.limit.Value
}

// occupancy returns the queue length in the units of the limit.
func (f *fifo) occupancy() float64 {
	if f.limit.Unit == ByteUnits {
		return float64(f.bytes)
	}
	return float64(len(f.queue))
}

// push adds a Packet to the tail.
func (f *fifo) push(pkt Packet) {
	f.queue = append(f.queue, pkt)
	f.bytes += pkt.Len
}

// Dequeue implements QueueDisc.
func (f *fifo) Dequeue(now Clock) (pkt Packet, ok bool) {
	if len(f.queue) == 0 {
		return
	}
	// pop from head
	pkt, f.queue = f.queue[0], f.queue[1:]
	f.bytes -= pkt.Len
	ok = true
	return
}

// Peek implements QueueDisc.
func (f *fifo) Peek() (pkt Packet, ok bool) {
	if len(f.queue) == 0 {
		return
	}
	ok = true
	pkt = f.queue[0]
	return
}

// Len implements QueueDisc.
func (f *fifo) Len() int {
	return len(f.queue)
}

// Bytes implements QueueDisc.
func (f *fifo) Bytes() Bytes {
	return f.bytes
}

// Capacity implements QueueDisc.
func (f *fifo) Capacity() QueueSize {
	return f.limit
}

// QueueSpec configures a queue discipline.
type QueueSpec struct {
	// Kind is "droptail" (the default) or "red".
	Kind string `yaml:"kind"`

	// Limit is the physical queue size, in packets or bytes.
	Limit QueueSize `yaml:"limit"`

	// RED parameters, with thresholds in the unit of Limit.
	MinTh       float64 `yaml:"minTh"`
	MaxTh       float64 `yaml:"maxTh"`
	QW          float64 `yaml:"qw"`
	MaxP        float64 `yaml:"maxP"`
	UseECN      bool    `yaml:"useECN"`
	UseHardDrop bool    `yaml:"useHardDrop"`
}

// DefaultQueueSpec is a drop-tail queue of 100 packets.
var DefaultQueueSpec = QueueSpec{Kind: "droptail", Limit: PacketsSize(100)}

// newQueueDisc returns a QueueDisc for a QueueSpec, with seed used for any
// randomness.
func newQueueDisc(spec QueueSpec, field string, seed int64) (q QueueDisc,
	err error) {
	if spec.Limit.Value <= 0 {
		err = configErr(field+".limit", "must be positive, got %s",
			spec.Limit)
		return
	}
	switch spec.Kind {
	case "", "droptail":
		q = NewDropTail(spec.Limit)
	case "red":
		var r *RED
		if r, err = NewRED(spec, seed); err != nil {
			var ce *ConfigError
			if errors.As(err, &ce) {
				ce.Field = field + "." + ce.Field
			}
			return
		}
		q = r
	default:
		err = configErr(field+".kind", "unknown queue discipline %q",
			spec.Kind)
	}
	return
}
