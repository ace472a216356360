// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright 2025 Pete Heist

package ccsim

import (
	"fmt"
	"sort"
)

// FlowCounters contains the cumulative counters for a flow.
type FlowCounters struct {
	TxPackets       int64
	TxBytes         Bytes
	RxPackets       int64
	RxBytes         Bytes
	LostPackets     int64
	MarkedPackets   int64
	Retransmits     int64
	FastRetransmits int64
	Timeouts        int64
	ECNReductions   int64
	Acks            int64
	Completed       int64
}

// FlowStatsSample is a snapshot of a flow's received bytes and losses.
type FlowStatsSample struct {
	Flow        FlowID
	Time        Clock
	RxBytes     Bytes
	LostPackets int64
}

// Collector keeps per-flow counters, and samples them over time for
// throughput calculations.
type Collector struct {
	counters []*FlowCounters
	samples  []FlowStatsSample
	// byFlow indexes samples for each flow, in time order
	byFlow [][]int
	sink   Sink
	err    error
}

// NewCollector returns a new Collector that writes records to the given
// Sink, which may be nil.
func NewCollector(sink Sink) *Collector {
	return &Collector{
		nil,  // counters
		nil,  // samples
		nil,  // byFlow
		sink, // sink
		nil,  // err
	}
}

// add adds counters for a new flow and returns them.
func (c *Collector) add(flow FlowID) *FlowCounters {
	k := &FlowCounters{}
	c.attach(flow, k)
	return k
}

// attach adds the counters of a flow that has started.
func (c *Collector) attach(flow FlowID, k *FlowCounters) {
	for FlowID(len(c.counters)) <= flow {
		c.counters = append(c.counters, &FlowCounters{})
		c.byFlow = append(c.byFlow, nil)
	}
	c.counters[flow] = k
}

// Counters returns a copy of the counters for a flow.
func (c *Collector) Counters(flow FlowID) (FlowCounters, bool) {
	if flow < 0 || int(flow) >= len(c.counters) {
		return FlowCounters{}, false
	}
	return *c.counters[flow], true
}

// Flows returns the number of flows.
func (c *Collector) Flows() int {
	return len(c.counters)
}

// Sample appends a sample of a flow's counters at the given time.  A
// second sample at the same time replaces the first.
func (c *Collector) Sample(flow FlowID, now Clock) {
	if flow < 0 || int(flow) >= len(c.counters) {
		return
	}
	k := c.counters[flow]
	s := FlowStatsSample{flow, now, k.RxBytes, k.LostPackets}
	x := c.byFlow[flow]
	if len(x) > 0 && c.samples[x[len(x)-1]].Time == now {
		c.samples[x[len(x)-1]] = s
		return
	}
	c.byFlow[flow] = append(x, len(c.samples))
	c.samples = append(c.samples, s)
	c.write(Record{now, "rx_bytes", flow, "", float64(k.RxBytes)})
	c.write(Record{now, "lost_packets", flow, "", float64(k.LostPackets)})
	if len(x) > 0 {
		p := c.samples[x[len(x)-1]]
		c.write(Record{now, "throughput", flow, "",
			throughput(p.RxBytes, s.RxBytes, p.Time, now).Mbps()})
	}
}

// SampleAll samples every flow.
func (c *Collector) SampleAll(now Clock) {
	for i := range c.counters {
		c.Sample(FlowID(i), now)
	}
}

// Samples returns all samples, in the order they were taken.
func (c *Collector) Samples() []FlowStatsSample {
	s := make([]FlowStatsSample, len(c.samples))
	copy(s, c.samples)
	return s
}

// at returns the latest sample for a flow at or before the given time.
func (c *Collector) at(flow FlowID, t Clock) (s FlowStatsSample, ok bool) {
	if flow < 0 || int(flow) >= len(c.byFlow) {
		return
	}
	x := c.byFlow[flow]
	i := sort.Search(len(x), func(i int) bool {
		return c.samples[x[i]].Time > t
	})
	if i == 0 {
		return
	}
	return c.samples[x[i-1]], true
}

// ThroughputBetween returns the receive rate of a flow between the latest
// samples at or before t0 and t1, over the time between those samples.  The
// result is undefined for an empty or reversed interval, without a sample at
// or before t0, or when both times fall on the same sample.
func (c *Collector) ThroughputBetween(flow FlowID, t0, t1 Clock) (
	rate Bitrate, err error) {
	if t1 <= t0 {
		err = fmt.Errorf("%w: interval %s to %s is empty",
			ErrUndefinedThroughput, t0, t1)
		return
	}
	var s0, s1 FlowStatsSample
	var ok bool
	if s0, ok = c.at(flow, t0); !ok {
		err = fmt.Errorf("%w: no sample for flow %d at or before %s",
			ErrUndefinedThroughput, flow, t0)
		return
	}
	s1, _ = c.at(flow, t1)
	if s1.Time <= s0.Time {
		err = fmt.Errorf("%w: no sample for flow %d between %s and %s",
			ErrUndefinedThroughput, flow, s0.Time, t1)
		return
	}
	rate = throughput(s0.RxBytes, s1.RxBytes, s0.Time, s1.Time)
	return
}

// throughput returns the rate for the bytes received between two times.
func throughput(b0, b1 Bytes, t0, t1 Clock) Bitrate {
	if t1 <= t0 {
		return 0
	}
	return Bitrate(float64(b1-b0) * 8 / (t1 - t0).Seconds())
}

// write writes a Record to the sink, keeping the first error.
func (c *Collector) write(r Record) {
	if c.sink == nil || c.err != nil {
		return
	}
	c.err = c.sink.Write(r)
}

// Err returns the first error writing to the sink.
func (c *Collector) Err() error {
	return c.err
}

// linkDropped counts a queue drop against the packet's flow.
func (c *Collector) linkDropped(l *Link, pkt Packet) {
	if k := c.counter(pkt.Flow); k != nil {
		k.LostPackets++
	}
	c.write(Record{l.sched.Now(), "drop", pkt.Flow, l.name, 1})
}

// linkMarked counts a CE mark against the packet's flow.
func (c *Collector) linkMarked(l *Link, pkt Packet) {
	if k := c.counter(pkt.Flow); k != nil {
		k.MarkedPackets++
	}
	c.write(Record{l.sched.Now(), "mark", pkt.Flow, l.name, 1})
}

// counter returns the counters for a flow, or nil if unknown.
func (c *Collector) counter(flow FlowID) *FlowCounters {
	if flow < 0 || int(flow) >= len(c.counters) {
		return nil
	}
	return c.counters[flow]
}
