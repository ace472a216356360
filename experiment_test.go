// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright 2025 Pete Heist

package ccsim

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// smallFairnessSpec returns a fast running sweep on a 10Mbps bottleneck.
func smallFairnessSpec() FairnessSpec {
	s := DefaultFairnessSpec()
	s.Variants = []string{"newreno", "cubic"}
	s.RTTs = []time.Duration{20 * time.Millisecond, 40 * time.Millisecond}
	s.BottleneckRate = 10 * Mbps
	s.AccessRate = 100 * Mbps
	s.Buffer = 20 * time.Millisecond
	s.Stop = 6 * time.Second
	s.Flows = 1
	return s
}

func TestAccessDelayForRTT(t *testing.T) {
	d, err := AccessDelayForRTT(16*time.Millisecond, 5*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 1500*time.Microsecond, d)

	d, err = AccessDelayForRTT(512*time.Millisecond, 5*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 125500*time.Microsecond, d)

	_, err = AccessDelayForRTT(8*time.Millisecond, 5*time.Millisecond)
	assert.Error(t, err)
}

func TestDefaultFairnessSpec(t *testing.T) {
	s := DefaultFairnessSpec()
	assert.Equal(t, 400*Mbps, s.BottleneckRate)
	assert.Equal(t, Bytes(250000), s.BottleneckRate.Bytes(Clock(s.Buffer)))
	assert.Equal(t, []string{"cubic", "newreno", "bic", "highspeed"},
		s.Variants)
	assert.Len(t, s.RTTs, 6)
	assert.NoError(t, s.validate())
}

func TestFairnessSweep(t *testing.T) {
	s := smallFairnessSpec()
	rows, err := FairnessSweep(s)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	i := 0
	for _, v := range s.Variants {
		for _, rtt := range s.RTTs {
			r := rows[i]
			i++
			assert.Equal(t, v, r.Variant)
			assert.Equal(t, rtt, r.RTT)
			assert.Greater(t, r.Throughput1, Bitrate(0))
			assert.Greater(t, r.Throughput2, Bitrate(0))
			assert.Greater(t, r.Throughput1+r.Throughput2, 3*Mbps)
			assert.LessOrEqual(t, r.Throughput1+r.Throughput2, 10050*Kbps)
			assert.InDelta(t, float64(r.Throughput1)/float64(r.Throughput2),
				r.Ratio, 1e-9)
		}
	}
}

func TestDefaultFairnessSweepCubic(t *testing.T) {
	s := DefaultFairnessSpec()
	s.Variants = []string{"cubic"}
	s.Stop = 3 * time.Second
	assert.Equal(t, Bytes(250000), s.BottleneckRate.Bytes(Clock(s.Buffer)))
	rows, err := FairnessSweep(s)
	require.NoError(t, err)
	require.Len(t, rows, len(s.RTTs))
	for i, r := range rows {
		assert.Equal(t, "cubic", r.Variant)
		assert.Equal(t, s.RTTs[i], r.RTT)
		assert.Greater(t, r.Throughput1, Bitrate(0), r.RTT)
		assert.Greater(t, r.Throughput2, Bitrate(0), r.RTT)
		assert.LessOrEqual(t, r.Throughput1+r.Throughput2, 401*Mbps, r.RTT)
		assert.False(t, math.IsNaN(r.Ratio), r.RTT)
	}
}

func TestFriendlinessRun(t *testing.T) {
	s := smallFairnessSpec()
	r, err := FriendlinessRun(s, "cubic", 20*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, "cubic", r.Variant)
	assert.Greater(t, r.NewReno, Bitrate(0))
	assert.Greater(t, r.Variants, Bitrate(0))
	assert.False(t, math.IsNaN(r.Ratio))

	s.Flows = 0
	_, err = FriendlinessRun(s, "cubic", 20*time.Millisecond)
	var ce *ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "flows", ce.Field)
}

func TestFairnessInvalid(t *testing.T) {
	s := smallFairnessSpec()
	s.Variants = nil
	_, err := FairnessSweep(s)
	var ce *ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "variants", ce.Field)

	s = smallFairnessSpec()
	s.RTTs = []time.Duration{8 * time.Millisecond}
	_, err = FairnessSweep(s)
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "rtt", ce.Field)

	s = smallFairnessSpec()
	s.Variants = []string{"vegas"}
	_, err = FriendlinessSweep(s)
	assert.ErrorIs(t, err, ErrUnknownVariant)
}

func TestRatio(t *testing.T) {
	assert.Equal(t, 2.0, ratio(2*Mbps, Mbps))
	assert.True(t, math.IsNaN(ratio(Mbps, 0)))
}
