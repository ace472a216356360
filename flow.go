// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright 2025 Pete Heist

package ccsim

import (
	"math"
	"time"

	"github.com/heistp/ccsim/internal/logging"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// FlowID identifies a flow in an Engine.
type FlowID int

// NoFlow is the FlowID for records not associated with a flow.
const NoFlow FlowID = -1

// Flow defaults.
const (
	DefaultMSS           Bytes = 1448
	DefaultInitCwnd            = 10
	DefaultDelAckCount         = 2
	DefaultDelAckTimeout       = 200 * time.Millisecond
	DefaultMinRTO              = 200 * time.Millisecond
)

const (
	// dupThresh is the number of duplicate ACKs that signal a loss.
	dupThresh = 3

	// initialRTO is the RTO before the first RTT sample (RFC 6298).
	initialRTO = Clock(time.Second)

	// maxRTO caps the backed off RTO.
	maxRTO = Clock(60 * time.Second)

	// unlimited is the end sequence number of a bulk transfer.
	unlimited = Seq(math.MaxInt64)
)

// CronEpoch is the wall time that simulation time zero maps to when
// evaluating flow Schedules.
var CronEpoch = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// cronParser parses flow Schedules, with an optional seconds field.
var cronParser = cron.NewParser(cron.SecondOptional | cron.Minute |
	cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// FlowSpec configures a TCP flow between two nodes.
type FlowSpec struct {
	// Name is an optional label for logs and output.
	Name string `yaml:"name"`

	// Src and Dst are the sending and receiving node names.
	Src string `yaml:"src"`
	Dst string `yaml:"dst"`

	// Variant is the congestion control name, e.g. "cubic".
	Variant string `yaml:"variant"`

	// ECN overrides whether the flow is ECN-capable.  By default, only
	// variants that require it (dctcp) use ECN.
	ECN *bool `yaml:"ecn"`

	MSS Bytes `yaml:"mss"`

	// Start and Stop bound the flow's activity.  A zero Stop runs the flow
	// until the end of the simulation.
	Start time.Duration `yaml:"start"`
	Stop  time.Duration `yaml:"stop"`

	// Bytes is the transfer size, or zero for an unlimited bulk transfer.
	Bytes Bytes `yaml:"bytes"`

	// Schedule is a cron expression, with optional seconds.  If set, a new
	// transfer of Bytes starts at each fire time from Start, with times
	// relative to CronEpoch.
	Schedule string `yaml:"schedule"`

	// InitCwnd is the initial window, in segments.
	InitCwnd int `yaml:"initCwnd"`

	// DelAckCount is the number of segments acknowledged by a delayed ACK,
	// and DelAckTimeout the longest time an ACK is delayed.
	DelAckCount   int           `yaml:"delAckCount"`
	DelAckTimeout time.Duration `yaml:"delAckTimeout"`

	MinRTO time.Duration `yaml:"minRTO"`
}

// withDefaults returns the FlowSpec with zero values replaced by defaults.
func (s FlowSpec) withDefaults() FlowSpec {
	if s.Variant == "" {
		s.Variant = "newreno"
	}
	if s.MSS == 0 {
		s.MSS = DefaultMSS
	}
	if s.InitCwnd == 0 {
		s.InitCwnd = DefaultInitCwnd
	}
	if s.DelAckCount == 0 {
		s.DelAckCount = DefaultDelAckCount
	}
	if s.DelAckTimeout == 0 {
		s.DelAckTimeout = DefaultDelAckTimeout
	}
	if s.MinRTO == 0 {
		s.MinRTO = DefaultMinRTO
	}
	return s
}

// validate checks the FlowSpec, after defaults are applied.
func (s FlowSpec) validate() (err error) {
	switch {
	case s.Src == "":
		err = configErr("src", "is required")
	case s.Dst == "":
		err = configErr("dst", "is required")
	case s.Src == s.Dst:
		err = configErr("dst", "must differ from src %q", s.Src)
	case s.MSS <= 0:
		err = configErr("mss", "must be positive, got %d", s.MSS)
	case s.Start < 0:
		err = configErr("start", "must not be negative, got %s", s.Start)
	case s.Stop != 0 && s.Stop <= s.Start:
		err = configErr("stop", "%s is not after start %s", s.Stop, s.Start)
	case s.Bytes < 0:
		err = configErr("bytes", "must not be negative, got %d", s.Bytes)
	case s.Schedule != "" && s.Bytes == 0:
		err = configErr("bytes", "must be set for a scheduled flow")
	case s.InitCwnd < 1:
		err = configErr("initCwnd", "must be positive, got %d", s.InitCwnd)
	case s.DelAckCount < 1:
		err = configErr("delAckCount", "must be positive, got %d",
			s.DelAckCount)
	case s.DelAckTimeout < 0:
		err = configErr("delAckTimeout", "must not be negative, got %s",
			s.DelAckTimeout)
	case s.MinRTO < 0:
		err = configErr("minRTO", "must not be negative, got %s", s.MinRTO)
	case s.Schedule != "":
		if _, e := cronParser.Parse(s.Schedule); e != nil {
			err = &ConfigError{"schedule", e.Error(), e}
		}
	}
	return
}

// transfer is a block of data queued by the application.
type transfer struct {
	start Clock
	end   Seq
}

// Flow is the sending side of a TCP flow, with NewReno loss recovery and
// a pluggable CCA for window control.
type Flow struct {
	id    FlowID
	spec  FlowSpec
	src   *node
	dst   *node
	sched *Scheduler
	cca   CCA
	ecn   bool
	w     Window
	stats *FlowCounters

	active  bool
	sndUna  Seq
	sndNxt  Seq
	sndMax  Seq
	end     Seq
	pending []transfer
	fct     []Clock

	// loss recovery
	dupAcks    int
	recover    Seq
	inflate    Bytes
	partial    bool
	ecnRecover Seq

	// RTO (RFC 6298)
	srtt     Clock
	rttvar   Clock
	rto      Clock
	rtoTimer *Event

	idleSince Clock
	schedule  *Recurring
	done      func(*Flow, Clock)
}

// newFlow returns a new Flow.  The FlowSpec must already be validated.
func newFlow(id FlowID, spec FlowSpec, src, dst *node, sched *Scheduler,
	stats *FlowCounters) (f *Flow, err error) {
	var c CCA
	var ecn bool
	if c, ecn, err = NewCCA(spec.Variant); err != nil {
		err = &ConfigError{"variant", err.Error(), err}
		return
	}
	if spec.ECN != nil {
		ecn = *spec.ECN
	}
	f = &Flow{
		id,                                 // id
		spec,                               // spec
		src,                                // src
		dst,                                // dst
		sched,                              // sched
		c,                                  // cca
		ecn,                                // ecn
		newWindow(spec.MSS, spec.InitCwnd), // w
		stats,                              // stats
		false,                              // active
		0,                                  // sndUna
		0,                                  // sndNxt
		0,                                  // sndMax
		0,                                  // end
		nil,                                // pending
		nil,                                // fct
		0,                                  // dupAcks
		-1,                                 // recover
		0,                                  // inflate
		false,                              // partial
		0,                                  // ecnRecover
		0,                                  // srtt
		0,                                  // rttvar
		initialRTO,                         // rto
		nil,                                // rtoTimer
		0,                                  // idleSince
		nil,                                // schedule
		nil,                                // done
	}
	return
}

// ID returns the Flow's ID.
func (f *Flow) ID() FlowID {
	return f.id
}

// Name returns the Flow's name, or its variant if it has none.
func (f *Flow) Name() string {
	if f.spec.Name != "" {
		return f.spec.Name
	}
	return f.cca.Name()
}

// Variant returns the name of the Flow's CCA.
func (f *Flow) Variant() string {
	return f.cca.Name()
}

// ECN returns true if the Flow is ECN-capable.
func (f *Flow) ECN() bool {
	return f.ecn
}

// Window returns a copy of the Flow's congestion control state.
func (f *Flow) Window() Window {
	return f.w
}

// CCA returns the Flow's congestion control algorithm.
func (f *Flow) CCA() CCA {
	return f.cca
}

// CompletionTimes returns the completion times of finished transfers.
func (f *Flow) CompletionTimes() []Clock {
	return f.fct
}

// InFlight returns the bytes sent and not yet acknowledged.
func (f *Flow) InFlight() Bytes {
	return Bytes(f.sndNxt - f.sndUna)
}

// start arranges the Flow's start, stop and any recurring transfers.
func (f *Flow) start() (err error) {
	var s cron.Schedule
	if f.spec.Schedule != "" {
		if s, err = cronParser.Parse(f.spec.Schedule); err != nil {
			return &ConfigError{"schedule", err.Error(), err}
		}
	}
	now := f.sched.Now()
	begin := Clock(f.spec.Start) - now
	if begin < 0 {
		return configErr("start", "%s is before the current time %s",
			f.spec.Start, now)
	}
	if f.spec.Stop != 0 {
		if _, err = f.sched.Schedule(Clock(f.spec.Stop)-now,
			f.stop); err != nil {
			return
		}
	}
	if s == nil {
		_, err = f.sched.Schedule(begin, func() {
			f.activate()
			f.enqueue(f.spec.Bytes)
		})
		return
	}
	first := cronNext(s, Clock(f.spec.Start)-1) - now
	f.schedule, err = NewRecurring(f.sched, first,
		func(now Clock) (next Clock, ok bool) {
			if f.spec.Stop != 0 && now >= Clock(f.spec.Stop) {
				return
			}
			f.activate()
			f.enqueue(f.spec.Bytes)
			next = cronNext(s, now) - now
			ok = f.spec.Stop == 0 || now+next < Clock(f.spec.Stop)
			return
		})
	return
}

// cronNext returns the first activation of the Schedule after t.
func cronNext(s cron.Schedule, t Clock) Clock {
	n := s.Next(CronEpoch.Add(time.Duration(t)))
	if n.IsZero() {
		return ClockInfinity
	}
	return Clock(n.Sub(CronEpoch))
}

// activate marks the Flow active.
func (f *Flow) activate() {
	if f.active {
		return
	}
	f.active = true
	f.idleSince = f.sched.Now()
	logging.InfoWithFields(logrus.Fields{
		"sim_time": f.sched.Now(),
		"flow":     f.id,
		"variant":  f.cca.Name(),
		"ecn":      f.ecn,
	}, "flow start")
}

// stop deactivates the Flow, which sends nothing further.
func (f *Flow) stop() {
	f.active = false
	f.sched.Cancel(f.rtoTimer)
	f.rtoTimer = nil
	if f.schedule != nil {
		f.schedule.Stop()
	}
}

// enqueue adds a transfer of the given size, or an unlimited transfer for
// zero bytes.
func (f *Flow) enqueue(size Bytes) {
	now := f.sched.Now()
	if f.end == unlimited {
		return
	}
	if f.sndUna == f.sndMax && f.sndMax > 0 &&
		now-f.idleSince > f.rto {
		// restart after idle (RFC 5681, 4.1)
		f.w.Cwnd = min(f.w.Cwnd, Bytes(f.spec.InitCwnd)*f.w.MSS)
	}
	if size == 0 {
		f.end = unlimited
	} else {
		f.end += Seq(size)
	}
	f.pending = append(f.pending, transfer{now, f.end})
	f.send()
}

// send transmits segments while the window allows.
func (f *Flow) send() {
	if !f.active {
		return
	}
	wnd := f.cca.SendWindow(&f.w) + f.inflate
	for f.sndNxt < f.end {
		n := min(Bytes(f.end-f.sndNxt), f.w.MSS)
		if f.InFlight()+n > wnd {
			break
		}
		f.transmit(f.sndNxt, n)
		f.sndNxt += Seq(n)
		f.sndMax = max(f.sndMax, f.sndNxt)
	}
}

// transmit sends a segment of n payload bytes at seq.
func (f *Flow) transmit(seq Seq, n Bytes) {
	now := f.sched.Now()
	rtx := seq < f.sndMax
	f.src.send(Packet{
		Len:        n + HeaderLen,
		Src:        f.src.id,
		Dst:        f.dst.id,
		ECT:        f.ecn,
		Flow:       f.id,
		Seq:        seq,
		Sent:       now,
		Retransmit: rtx,
	})
	f.stats.TxPackets++
	f.stats.TxBytes += n + HeaderLen
	if rtx {
		f.stats.Retransmits++
	}
	if !f.rtoTimer.Pending() {
		f.armRTO()
	}
}

// retransmit resends the segment at snd.una.
func (f *Flow) retransmit() {
	n := min(Bytes(f.sndMax-f.sndUna), f.w.MSS)
	if n <= 0 {
		return
	}
	f.transmit(f.sndUna, n)
}

// receive implements endpoint for ACKs arriving at the sender.
func (f *Flow) receive(pkt Packet) {
	if !pkt.ACK || !f.active {
		return
	}
	switch {
	case pkt.ACKNum > f.sndUna:
		f.newAck(pkt)
	case pkt.ACKNum == f.sndUna && f.sndUna < f.sndMax:
		f.dupAck(pkt)
	}
	f.send()
}

// newAck handles an ACK that acknowledges new data.
func (f *Flow) newAck(pkt Packet) {
	now := f.sched.Now()
	acked := Bytes(pkt.ACKNum - f.sndUna)
	f.sndUna = pkt.ACKNum
	if f.sndNxt < f.sndUna {
		f.sndNxt = f.sndUna
	}
	f.dupAcks = 0
	rtt := now - pkt.Echo
	f.updateRTT(rtt)
	f.cca.OnAck(&f.w, Ack{now, acked, pkt.ECE, pkt.ACKNum, f.sndNxt, rtt})
	rearm := true
	if f.w.State == FastRecovery {
		if f.w.Cause == RecoveryLoss {
			if f.sndUna >= f.recover {
				f.w.Cwnd = f.w.Ssthresh
				f.w.State = CongestionAvoidance
				f.inflate = 0
			} else {
				// partial ACK, resetting the RTO only for the first (RFC
				// 6582 Impatient variant)
				f.inflate = max(f.inflate-acked+f.w.MSS, 0)
				f.retransmit()
				rearm = !f.partial
				f.partial = true
			}
		} else if f.sndUna > f.ecnRecover {
			f.w.State = CongestionAvoidance
		}
	}
	if pkt.ECE && f.ecn && f.sndUna > f.ecnRecover &&
		f.w.State != FastRecovery {
		f.cca.OnECNMark(&f.w, now)
		f.w.State = FastRecovery
		f.w.Cause = RecoveryECN
		f.ecnRecover = f.sndNxt
		f.stats.ECNReductions++
	}
	f.complete(now)
	if f.sndUna == f.sndMax {
		f.sched.Cancel(f.rtoTimer)
		f.rtoTimer = nil
		f.idleSince = now
	} else if rearm {
		f.armRTO()
	}
}

// dupAck handles a duplicate ACK.
func (f *Flow) dupAck(pkt Packet) {
	f.dupAcks++
	if f.w.State == FastRecovery && f.w.Cause == RecoveryLoss {
		f.inflate += f.w.MSS
		return
	}
	if f.dupAcks != dupThresh || pkt.ACKNum <= f.recover {
		return
	}
	now := f.sched.Now()
	f.cca.OnLoss(&f.w, LossDupAck, now)
	f.w.State = FastRecovery
	f.w.Cause = RecoveryLoss
	f.recover = f.sndMax
	f.ecnRecover = max(f.ecnRecover, f.sndMax)
	f.inflate = dupThresh * f.w.MSS
	f.partial = false
	f.stats.FastRetransmits++
	if logging.IsDebug() {
		logging.DebugWithFields(logrus.Fields{
			"sim_time": now,
			"flow":     f.id,
			"cwnd":     f.w.Cwnd,
			"ssthresh": f.w.Ssthresh,
		}, "fast retransmit")
	}
	f.retransmit()
	f.armRTO()
}

// complete records the completion of transfers covered by snd.una.
func (f *Flow) complete(now Clock) {
	for len(f.pending) > 0 && f.pending[0].end != unlimited &&
		f.sndUna >= f.pending[0].end {
		t := f.pending[0]
		f.pending = f.pending[1:]
		f.fct = append(f.fct, now-t.start)
		f.stats.Completed++
		if f.done != nil {
			f.done(f, now-t.start)
		}
	}
}

// updateRTT updates the RTT estimators from a sample (RFC 6298).
func (f *Flow) updateRTT(rtt Clock) {
	if rtt <= 0 {
		return
	}
	if f.srtt == 0 {
		f.srtt = rtt
		f.rttvar = rtt / 2
	} else {
		d := f.srtt - rtt
		if d < 0 {
			d = -d
		}
		f.rttvar = (3*f.rttvar + d) / 4
		f.srtt = (7*f.srtt + rtt) / 8
	}
	f.rto = min(max(f.srtt+4*f.rttvar, Clock(f.spec.MinRTO)), maxRTO)
	f.w.SRTT = f.srtt
	if f.w.MinRTT == 0 || rtt < f.w.MinRTT {
		f.w.MinRTT = rtt
	}
}

// armRTO (re)starts the retransmission timer.
func (f *Flow) armRTO() {
	f.sched.Cancel(f.rtoTimer)
	f.rtoTimer = f.sched.after(f.rto, f.timeout)
}

// timeout handles expiry of the retransmission timer, with go-back-N
// retransmission from snd.una.
func (f *Flow) timeout() {
	f.rtoTimer = nil
	if !f.active || f.sndUna == f.sndMax {
		return
	}
	now := f.sched.Now()
	f.cca.OnLoss(&f.w, LossTimeout, now)
	f.w.Cwnd = f.w.MSS
	f.w.State = SlowStart
	f.w.Cause = RecoveryLoss
	f.inflate = 0
	f.dupAcks = 0
	f.recover = f.sndMax
	f.ecnRecover = max(f.ecnRecover, f.sndMax)
	f.sndNxt = f.sndUna
	f.rto = min(2*f.rto, maxRTO)
	f.stats.Timeouts++
	if logging.IsDebug() {
		logging.DebugWithFields(logrus.Fields{
			"sim_time": now,
			"flow":     f.id,
			"rto":      f.rto,
			"ssthresh": f.w.Ssthresh,
		}, "retransmission timeout")
	}
	f.send()
}
