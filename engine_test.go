// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright 2025 Pete Heist

package ccsim

import (
	"bytes"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/heistp/ccsim/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testDumbbell returns a 10Mbps dumbbell with a 14ms base RTT.
func testDumbbell(pairs int, q QueueSpec) DumbbellSpec {
	return DumbbellSpec{
		Pairs:           pairs,
		AccessRate:      100 * Mbps,
		AccessDelay:     time.Millisecond,
		BottleneckRate:  10 * Mbps,
		BottleneckDelay: 5 * time.Millisecond,
		Queue:           q,
	}
}

// ecnRED is a RED queue that marks ECT packets once the instantaneous
// queue reaches 20 packets.
var ecnRED = QueueSpec{
	Kind:   "red",
	Limit:  PacketsSize(2666),
	MinTh:  20,
	MaxTh:  20,
	QW:     1,
	UseECN: true,
}

// newTestEngine returns an Engine built on a dumbbell, with one flow per
// FlowSpec from sender i to receiver i.
func newTestEngine(t *testing.T, d DumbbellSpec, sink Sink,
	flows ...FlowSpec) (e *Engine, ids []FlowID) {
	t.Helper()
	ts, err := Dumbbell(d)
	require.NoError(t, err)
	e = NewEngine(1, sink)
	require.NoError(t, e.BuildTopology(ts))
	for i, f := range flows {
		f.Src = DumbbellSender(i)
		f.Dst = DumbbellReceiver(i)
		id, err := e.AttachFlow(f)
		require.NoError(t, err)
		ids = append(ids, id)
	}
	require.NoError(t, e.SampleEvery(100*time.Millisecond))
	return
}

func TestSingleFlowUtilization(t *testing.T) {
	e, ids := newTestEngine(t, testDumbbell(1, DefaultQueueSpec), nil,
		FlowSpec{Variant: "newreno"})
	require.NoError(t, e.Run(20*time.Second))
	r, err := e.Throughput(ids[0], 5*time.Second, 20*time.Second)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, r, 9*Mbps)
	assert.LessOrEqual(t, r, 10050*Kbps)

	k, ok := e.Counters(ids[0])
	require.True(t, ok)
	assert.Greater(t, k.LostPackets, int64(0))
	assert.Greater(t, k.FastRetransmits, int64(0))
	assert.Greater(t, k.Acks, int64(0))
	assert.LessOrEqual(t, k.RxBytes, k.TxBytes)

	l, ok := e.Link(BottleneckLink)
	require.True(t, ok)
	assert.Equal(t, k.LostPackets, l.Stats().Dropped)
}

func TestTwoFlowFairness(t *testing.T) {
	red := QueueSpec{
		Kind:  "red",
		Limit: PacketsSize(200),
		MinTh: 20,
		MaxTh: 60,
		MaxP:  0.1,
	}
	e, ids := newTestEngine(t, testDumbbell(2, red), nil,
		FlowSpec{Variant: "newreno"},
		FlowSpec{Variant: "newreno", Start: 500 * time.Millisecond})
	require.NoError(t, e.Run(30*time.Second))
	r0, err := e.Throughput(ids[0], 5*time.Second, 30*time.Second)
	require.NoError(t, err)
	r1, err := e.Throughput(ids[1], 5*time.Second, 30*time.Second)
	require.NoError(t, err)
	x := float64(r0) / float64(r1)
	assert.Greater(t, x, 0.5)
	assert.Less(t, x, 2.0)
	assert.Greater(t, r0+r1, 7*Mbps)
}

func TestTwoFlowFairnessSimultaneous(t *testing.T) {
	for _, v := range []string{"newreno", "cubic"} {
		t.Run(v, func(t *testing.T) {
			e, ids := newTestEngine(t, testDumbbell(2, DefaultQueueSpec), nil,
				FlowSpec{Variant: v}, FlowSpec{Variant: v})
			require.NoError(t, e.Run(60*time.Second))
			r0, err := e.Throughput(ids[0], 10*time.Second, 60*time.Second)
			require.NoError(t, err)
			r1, err := e.Throughput(ids[1], 10*time.Second, 60*time.Second)
			require.NoError(t, err)
			assert.InDelta(t, 1.0, ratio(r0, r1), 0.1)
		})
	}
}

func TestThroughputWithoutPeriodicSamples(t *testing.T) {
	ts, err := Dumbbell(testDumbbell(1, DefaultQueueSpec))
	require.NoError(t, err)
	e := NewEngine(1, nil)
	require.NoError(t, e.BuildTopology(ts))
	id, err := e.AttachFlow(FlowSpec{Src: DumbbellSender(0),
		Dst: DumbbellReceiver(0), Variant: "newreno"})
	require.NoError(t, err)
	require.NoError(t, e.Run(20*time.Second))
	// only the samples at 0 and 20s exist
	r, err := e.Throughput(id, 10*time.Second, 20*time.Second)
	require.NoError(t, err)
	assert.Greater(t, r, 8*Mbps)
	assert.LessOrEqual(t, r, 10050*Kbps)
}

func TestDCTCPMarksWithoutLoss(t *testing.T) {
	m := NewMemorySink()
	e, ids := newTestEngine(t, testDumbbell(1, ecnRED), m,
		FlowSpec{Variant: "dctcp"})
	require.NoError(t, e.MonitorQueue(BottleneckLink, 10*time.Millisecond))
	require.NoError(t, e.Run(10*time.Second))

	f, ok := e.Flow(ids[0])
	require.True(t, ok)
	assert.True(t, f.ECN())
	k, _ := e.Counters(ids[0])
	assert.Equal(t, int64(0), k.LostPackets)
	assert.Greater(t, k.MarkedPackets, int64(0))
	assert.Greater(t, k.ECNReductions, int64(0))
	assert.Less(t, f.CCA().(*DCTCP).Alpha(), 1.0)

	assert.NotEmpty(t, m.Metric("mark", ids[0], BottleneckLink))
	assert.Empty(t, m.Metric("drop", NoFlow, ""))
	assert.NotEmpty(t, m.Metric("red_avg", NoFlow, BottleneckLink))
	q := m.Metric("queue_packets", NoFlow, BottleneckLink)
	require.NotEmpty(t, q)
	for _, r := range q {
		assert.Less(t, r.Value, 200.0)
	}
}

func TestECNNewReno(t *testing.T) {
	ecn := true
	e, ids := newTestEngine(t, testDumbbell(1, ecnRED), nil,
		FlowSpec{Variant: "newreno", ECN: &ecn})
	require.NoError(t, e.Run(10*time.Second))
	k, _ := e.Counters(ids[0])
	assert.Equal(t, int64(0), k.LostPackets)
	assert.Greater(t, k.ECNReductions, int64(0))
}

func TestNotECTDroppedByRED(t *testing.T) {
	e, ids := newTestEngine(t, testDumbbell(1, ecnRED), nil,
		FlowSpec{Variant: "newreno"})
	require.NoError(t, e.Run(10*time.Second))
	k, _ := e.Counters(ids[0])
	assert.Greater(t, k.LostPackets, int64(0))
	assert.Equal(t, int64(0), k.MarkedPackets)
	assert.Equal(t, int64(0), k.ECNReductions)
}

func TestFlowCompletionTime(t *testing.T) {
	m := NewMemorySink()
	q := QueueSpec{Kind: "droptail", Limit: PacketsSize(1000)}
	e, ids := newTestEngine(t, testDumbbell(1, q), m,
		FlowSpec{Variant: "cubic", Bytes: 1000000})
	require.NoError(t, e.Run(5*time.Second))

	f, _ := e.Flow(ids[0])
	c := f.CompletionTimes()
	require.Len(t, c, 1)
	assert.Greater(t, c[0], Clock(800*time.Millisecond))
	assert.Less(t, c[0], Clock(3*time.Second))
	assert.Equal(t, Bytes(0), f.InFlight())

	r := m.Metric("fct", ids[0], "")
	require.Len(t, r, 1)
	assert.InDelta(t, c[0].Seconds(), r[0].Value, 1e-9)

	k, _ := e.Counters(ids[0])
	assert.Equal(t, int64(1), k.Completed)
	assert.Equal(t, int64(0), k.LostPackets)
}

func TestScheduledTransfers(t *testing.T) {
	e, ids := newTestEngine(t, testDumbbell(1, DefaultQueueSpec), nil,
		FlowSpec{
			Variant:  "newreno",
			Start:    time.Second,
			Bytes:    100000,
			Schedule: "*/2 * * * * *",
		})
	require.NoError(t, e.Run(10*time.Second))
	k, _ := e.Counters(ids[0])
	assert.Equal(t, int64(4), k.Completed)
	f, _ := e.Flow(ids[0])
	assert.Len(t, f.CompletionTimes(), 4)
}

func TestFlowStop(t *testing.T) {
	e, ids := newTestEngine(t, testDumbbell(1, DefaultQueueSpec), nil,
		FlowSpec{Variant: "newreno", Stop: 2 * time.Second})
	require.NoError(t, e.Run(2*time.Second))
	k, _ := e.Counters(ids[0])
	tx := k.TxPackets
	require.Greater(t, tx, int64(0))

	require.NoError(t, e.Run(4*time.Second))
	k, _ = e.Counters(ids[0])
	assert.Equal(t, tx, k.TxPackets)
}

func TestDeterminism(t *testing.T) {
	red := QueueSpec{
		Kind:  "red",
		Limit: PacketsSize(200),
		MinTh: 10,
		MaxTh: 40,
		MaxP:  0.1,
	}
	run := func() ([]FlowStatsSample, FlowCounters) {
		e, ids := newTestEngine(t, testDumbbell(2, red), nil,
			FlowSpec{Variant: "cubic"}, FlowSpec{Variant: "bic"})
		require.NoError(t, e.Run(5*time.Second))
		k, _ := e.Counters(ids[1])
		return e.CollectStats(), k
	}
	s0, k0 := run()
	s1, k1 := run()
	assert.Equal(t, s0, s1)
	assert.Equal(t, k0, k1)
}

func TestAttachFlowErrors(t *testing.T) {
	e := NewEngine(1, nil)
	_, err := e.AttachFlow(FlowSpec{Src: "a", Dst: "c"})
	var ce *ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "flows[0].topology", ce.Field)

	require.NoError(t, e.BuildTopology(TopologySpec{
		Nodes: []string{"a", "b", "c"},
		Links: []LinkSpec{{A: "a", B: "b", Rate: 10 * Mbps}},
	}))
	assert.Error(t, e.BuildTopology(TopologySpec{Nodes: []string{"x"}}))

	id, err := e.AttachFlow(FlowSpec{Src: "a", Dst: "c"})
	assert.Equal(t, NoFlow, id)
	assert.True(t, errors.Is(err, ErrNoRoute))
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "flows[0].dst", ce.Field)

	_, err = e.AttachFlow(FlowSpec{Src: "a", Dst: "b", Variant: "vegas"})
	assert.ErrorIs(t, err, ErrUnknownVariant)

	_, err = e.AttachFlow(FlowSpec{Src: "a", Dst: "z"})
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "flows[0].dst", ce.Field)

	_, err = e.AttachFlow(FlowSpec{Src: "a", Dst: "b", Schedule: "often",
		Bytes: 1000})
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "flows[0].schedule", ce.Field)
	_, ok := e.Counters(0)
	assert.False(t, ok)

	id, err = e.AttachFlow(FlowSpec{Src: "a", Dst: "b"})
	require.NoError(t, err)
	assert.Equal(t, FlowID(0), id)
	assert.Equal(t, 1, e.Flows())
}

func TestFailedAttachLeavesNoCounters(t *testing.T) {
	e := NewEngine(1, nil)
	require.NoError(t, e.BuildTopology(TopologySpec{
		Nodes: []string{"a", "b"},
		Links: []LinkSpec{{A: "a", B: "b", Rate: 10 * Mbps}},
	}))
	require.NoError(t, e.Run(time.Second))
	for _, f := range []FlowSpec{
		{Src: "a", Dst: "b", Schedule: "@every soon", Bytes: 1000},
		{Src: "a", Dst: "b", Variant: "vegas"},
		{Src: "a", Dst: "b", Start: 500 * time.Millisecond},
	} {
		_, err := e.AttachFlow(f)
		assert.Error(t, err)
	}
	require.NoError(t, e.Run(2*time.Second))
	assert.Equal(t, 0, e.Flows())
	assert.Empty(t, e.CollectStats())
	_, ok := e.Counters(0)
	assert.False(t, ok)
}

func TestRunErrors(t *testing.T) {
	e := NewEngine(1, nil)
	assert.Error(t, e.Run(time.Second))

	e, _ = newTestEngine(t, testDumbbell(1, DefaultQueueSpec), nil,
		FlowSpec{})
	require.NoError(t, e.Run(time.Second))
	assert.Error(t, e.Run(time.Second/2))
	assert.Equal(t, Clock(time.Second), e.Now())
}

func TestRunLogsSimTime(t *testing.T) {
	var buf bytes.Buffer
	logging.SetOutput(&buf)
	t.Cleanup(func() {
		logging.SetOutput(os.Stderr)
	})
	e, _ := newTestEngine(t, testDumbbell(1, DefaultQueueSpec), nil,
		FlowSpec{Variant: "newreno"})
	require.NoError(t, e.Run(time.Second))
	assert.Contains(t, buf.String(), "flow start")
	assert.Contains(t, buf.String(), "sim_time=")
	assert.NotContains(t, buf.String(), "fields.time")
}
