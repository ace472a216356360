// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright 2025 Pete Heist

package ccsim

import (
	"errors"
	"fmt"
	"time"

	"github.com/heistp/ccsim/internal/logging"
	"github.com/sirupsen/logrus"
)

// Engine runs a simulation: a topology of nodes and links, flows between
// them, and a stats Collector, all driven by one Scheduler.
type Engine struct {
	seed     int64
	sched    *Scheduler
	sink     Sink
	stats    *Collector
	topo     *topology
	flows    []*Flow
	rcvs     []*Receiver
	monitors []*Recurring
	started  time.Time
}

// NewEngine returns a new Engine.  The seed determines all randomness in
// the simulation, and sink, which may be nil, receives its Records.
func NewEngine(seed int64, sink Sink) *Engine {
	return &Engine{
		seed,               // seed
		NewScheduler(),     // sched
		sink,               // sink
		NewCollector(sink), // stats
		nil,                // topo
		nil,                // flows
		nil,                // rcvs
		nil,                // monitors
		time.Time{},        // started
	}
}

// Now returns the current simulation time.
func (e *Engine) Now() Clock {
	return e.sched.Now()
}

// Scheduler returns the Engine's Scheduler.
func (e *Engine) Scheduler() *Scheduler {
	return e.sched
}

// BuildTopology creates the nodes and links for a TopologySpec.  It may
// only be called once.
func (e *Engine) BuildTopology(spec TopologySpec) (err error) {
	if e.topo != nil {
		return configErr("topology", "already built")
	}
	var t *topology
	if t, err = newTopology(spec, e.sched, e.seed); err != nil {
		return
	}
	for _, l := range t.links {
		l.dropped = e.stats.linkDropped
		l.marked = e.stats.linkMarked
	}
	e.topo = t
	logging.InfoWithFields(logrus.Fields{
		"nodes": len(t.nodes),
		"links": len(t.links),
	}, "topology built")
	return
}

// AttachFlow adds a flow from spec.Src to spec.Dst, which starts at
// spec.Start.
func (e *Engine) AttachFlow(spec FlowSpec) (id FlowID, err error) {
	id = NoFlow
	defer func() {
		var ce *ConfigError
		if errors.As(err, &ce) {
			ce.Field = fmt.Sprintf("flows[%d].%s", len(e.flows), ce.Field)
		}
	}()
	if e.topo == nil {
		err = configErr("topology", "must be built before attaching flows")
		return
	}
	spec = spec.withDefaults()
	if err = spec.validate(); err != nil {
		return
	}
	src, ok := e.topo.node(spec.Src)
	if !ok {
		err = configErr("src", "unknown node %q", spec.Src)
		return
	}
	dst, ok := e.topo.node(spec.Dst)
	if !ok {
		err = configErr("dst", "unknown node %q", spec.Dst)
		return
	}
	if !src.reachable(dst.id) || !dst.reachable(src.id) {
		err = &ConfigError{"dst",
			fmt.Sprintf("%s between %q and %q", ErrNoRoute, spec.Src,
				spec.Dst), ErrNoRoute}
		return
	}
	n := FlowID(len(e.flows))
	c := &FlowCounters{}
	var f *Flow
	if f, err = newFlow(n, spec, src, dst, e.sched, c); err != nil {
		return
	}
	f.done = e.flowDone
	r := newReceiver(n, spec, dst, src.id, e.sched, c)
	if err = f.start(); err != nil {
		return
	}
	e.stats.attach(n, c)
	src.attach(n, f)
	dst.attach(n, r)
	e.flows = append(e.flows, f)
	e.rcvs = append(e.rcvs, r)
	id = n
	logging.InfoWithFields(logrus.Fields{
		"flow":    id,
		"name":    f.Name(),
		"variant": f.Variant(),
		"src":     spec.Src,
		"dst":     spec.Dst,
		"ecn":     f.ECN(),
		"start":   spec.Start,
	}, "flow attached")
	return
}

// flowDone records a completed transfer.
func (e *Engine) flowDone(f *Flow, fct Clock) {
	e.stats.write(Record{e.sched.Now(), "fct", f.id, "", fct.Seconds()})
}

// Flow returns the Flow with the given ID.
func (e *Engine) Flow(id FlowID) (*Flow, bool) {
	if id < 0 || int(id) >= len(e.flows) {
		return nil, false
	}
	return e.flows[id], true
}

// Flows returns the number of flows.
func (e *Engine) Flows() int {
	return len(e.flows)
}

// Link returns the Link with the given name, e.g. "left->right".
func (e *Engine) Link(name string) (*Link, bool) {
	if e.topo == nil {
		return nil, false
	}
	l, ok := e.topo.byLink[name]
	return l, ok
}

// MonitorQueue periodically records the occupancy of a Link's queue, as
// the metrics queue_packets, queue_bytes, and red_avg for RED queues.
func (e *Engine) MonitorQueue(link string, interval time.Duration) (
	err error) {
	l, ok := e.Link(link)
	if !ok {
		return configErr("monitor.queues", "unknown link %q", link)
	}
	var r *Recurring
	if r, err = Every(e.sched, Clock(interval), func(now Clock) {
		q := l.Queue()
		e.stats.write(Record{now, "queue_packets", NoFlow, l.name,
			float64(q.Len())})
		e.stats.write(Record{now, "queue_bytes", NoFlow, l.name,
			float64(q.Bytes())})
		if red, ok := q.(*RED); ok {
			e.stats.write(Record{now, "red_avg", NoFlow, l.name, red.Avg()})
		}
	}); err != nil {
		return
	}
	e.monitors = append(e.monitors, r)
	return
}

// SampleEvery periodically samples all flows, recording their received
// bytes, losses, throughput and cwnd.
func (e *Engine) SampleEvery(interval time.Duration) (err error) {
	var r *Recurring
	if r, err = Every(e.sched, Clock(interval), e.sample); err != nil {
		return
	}
	e.monitors = append(e.monitors, r)
	return
}

// sample samples all flows.
func (e *Engine) sample(now Clock) {
	e.stats.SampleAll(now)
	for _, f := range e.flows {
		if !f.active {
			continue
		}
		e.stats.write(Record{now, "cwnd", f.id, "", float64(f.w.Cwnd)})
	}
}

// Run runs the simulation until the given time, and may be called again
// to continue.  All flows are sampled before and after the run.
func (e *Engine) Run(stop time.Duration) (err error) {
	if e.topo == nil {
		return configErr("topology", "must be built before running")
	}
	end := Clock(stop)
	if end < e.sched.Now() {
		return configErr("stop", "%s is before the current time %s", stop,
			e.sched.Now())
	}
	e.started = time.Now()
	e.sample(e.sched.Now())
	if err = e.sched.RunUntil(end); err != nil {
		return
	}
	e.sample(end)
	if err = e.stats.Err(); err != nil {
		return
	}
	e.logSummary()
	return
}

// logSummary logs the run's throughput per flow.
func (e *Engine) logSummary() {
	now := e.sched.Now()
	for _, f := range e.flows {
		c := e.stats.counters[f.id]
		t0 := Clock(f.spec.Start)
		var mbps float64
		if r, err := e.stats.ThroughputBetween(f.id, t0, now); err == nil {
			mbps = r.Mbps()
		}
		logging.InfoWithFields(logrus.Fields{
			"flow":        f.id,
			"name":        f.Name(),
			"rx_bytes":    c.RxBytes,
			"lost":        c.LostPackets,
			"marked":      c.MarkedPackets,
			"timeouts":    c.Timeouts,
			"throughput":  fmt.Sprintf("%.3fMbps", mbps),
			"completions": c.Completed,
		}, "flow summary")
	}
	logging.InfoWithFields(logrus.Fields{
		"sim_time": now,
		"elapsed":  time.Since(e.started).Round(time.Millisecond),
	}, "run complete")
}

// CollectStats returns all samples taken, in time order.
func (e *Engine) CollectStats() []FlowStatsSample {
	return e.stats.Samples()
}

// Throughput returns the receive rate of a flow between two times.
func (e *Engine) Throughput(flow FlowID, t0, t1 time.Duration) (Bitrate,
	error) {
	return e.stats.ThroughputBetween(flow, Clock(t0), Clock(t1))
}

// Counters returns the counters for a flow.
func (e *Engine) Counters(flow FlowID) (FlowCounters, bool) {
	return e.stats.Counters(flow)
}
