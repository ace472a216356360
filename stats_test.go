// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright 2025 Pete Heist

package ccsim

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sec = Clock(time.Second)

func TestThroughputBetween(t *testing.T) {
	m := NewMemorySink()
	c := NewCollector(m)
	k := c.add(0)
	c.Sample(0, 0)
	k.RxBytes = 1000
	c.Sample(0, sec)
	k.RxBytes = 3000
	c.Sample(0, 2*sec)

	r, err := c.ThroughputBetween(0, 0, sec)
	require.NoError(t, err)
	assert.Equal(t, Bitrate(8000), r)

	r, err = c.ThroughputBetween(0, 0, 2*sec)
	require.NoError(t, err)
	assert.Equal(t, Bitrate(12000), r)

	// over the samples at or before each time
	r, err = c.ThroughputBetween(0, sec+sec/2, 3*sec)
	require.NoError(t, err)
	assert.Equal(t, Bitrate(16000), r)

	tp := m.Metric("throughput", 0, "")
	require.Len(t, tp, 2)
	assert.InDelta(t, 0.008, tp[0].Value, 1e-9)
	assert.InDelta(t, 0.016, tp[1].Value, 1e-9)
	assert.Len(t, m.Metric("rx_bytes", NoFlow, ""), 3)
}

func TestThroughputWithinLinkRate(t *testing.T) {
	c := NewCollector(nil)
	k := c.add(0)
	c.Sample(0, 0)
	k.RxBytes = 1250000
	c.Sample(0, sec)
	r, err := c.ThroughputBetween(0, 9*sec/10, sec)
	require.NoError(t, err)
	assert.Equal(t, 10*Mbps, r)
}

func TestThroughputUndefined(t *testing.T) {
	c := NewCollector(nil)
	c.add(0)
	c.Sample(0, sec)

	for _, x := range []struct{ t0, t1 Clock }{
		{sec, sec},
		{2 * sec, sec},
		{sec / 2, 2 * sec},
		{sec + sec/4, 2 * sec},
	} {
		_, err := c.ThroughputBetween(0, x.t0, x.t1)
		assert.True(t, errors.Is(err, ErrUndefinedThroughput), "%v", x)
	}
	_, err := c.ThroughputBetween(5, 0, sec)
	assert.ErrorIs(t, err, ErrUndefinedThroughput)
}

func TestSampleSameTimeReplaces(t *testing.T) {
	c := NewCollector(nil)
	k := c.add(0)
	c.Sample(0, sec)
	k.RxBytes = 500
	c.Sample(0, sec)
	s := c.Samples()
	require.Len(t, s, 1)
	assert.Equal(t, Bytes(500), s[0].RxBytes)
}

func TestLinkCountersToFlows(t *testing.T) {
	m := NewMemorySink()
	c := NewCollector(m)
	c.add(0)
	c.add(1)
	s := NewScheduler()
	l, _ := testLink(s, PacketsSize(1))
	l.dropped = c.linkDropped
	l.marked = c.linkMarked
	l.Transmit(Packet{Len: 1500, Dst: 1, Flow: 0})
	l.Transmit(Packet{Len: 1500, Dst: 1, Flow: 1})
	l.Transmit(Packet{Len: 1500, Dst: 1, Flow: NoFlow})

	k, ok := c.Counters(1)
	require.True(t, ok)
	assert.Equal(t, int64(1), k.LostPackets)
	k, _ = c.Counters(0)
	assert.Equal(t, int64(0), k.LostPackets)

	d := m.Metric("drop", NoFlow, LinkName("a", "b"))
	assert.Len(t, d, 2)
	_, ok = c.Counters(2)
	assert.False(t, ok)
}

func TestCollectorSinkError(t *testing.T) {
	c := NewCollector(failSink{})
	c.add(0)
	c.Sample(0, 0)
	assert.EqualError(t, c.Err(), "sink full")
}

// failSink fails every write.
type failSink struct{}

func (failSink) Write(Record) error { return errors.New("sink full") }

func (failSink) Close() error { return nil }
