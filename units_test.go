// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright 2025 Pete Heist

package ccsim

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParseBitrate(t *testing.T) {
	tests := []struct {
		in   string
		want Bitrate
	}{
		{"400Mbps", 400 * Mbps},
		{"1Gbps", Gbps},
		{"1.5Mbps", 1500 * Kbps},
		{"10Kbps", 10 * Kbps},
		{"10kbps", 10 * Kbps},
		{"500bps", 500},
		{" 20Mbps ", 20 * Mbps},
	}
	for _, tt := range tests {
		got, err := ParseBitrate(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
	for _, in := range []string{"400", "Mbps", "-1Mbps", "fastMbps"} {
		_, err := ParseBitrate(in)
		assert.Error(t, err, in)
	}
}

func TestBitrateString(t *testing.T) {
	assert.Equal(t, "400Mbps", (400 * Mbps).String())
	assert.Equal(t, "1Gbps", Gbps.String())
	assert.Equal(t, "1500Kbps", (1500 * Kbps).String())
	assert.Equal(t, "999bps", Bitrate(999).String())
}

func TestTransferTime(t *testing.T) {
	assert.Equal(t, Clock(time.Millisecond), TransferTime(12*Mbps, 1500))
	assert.Equal(t, Clock(8*time.Microsecond), TransferTime(Gbps, 1000))
}

func TestCalcBitrate(t *testing.T) {
	assert.Equal(t, 8*Mbps, CalcBitrate(1000000, time.Second))
	assert.Equal(t, Bytes(50000), (400 * Kbps).Bytes(Clock(time.Second)))
	assert.InDelta(t, 2.5, (2500 * Kbps).Mbps(), 1e-9)
}

func TestParseQueueSize(t *testing.T) {
	tests := []struct {
		in   string
		want QueueSize
	}{
		{"2666p", PacketsSize(2666)},
		{"100p", PacketsSize(100)},
		{"64000B", BytesSize(64000)},
		{"64KB", BytesSize(64000)},
		{"1MB", BytesSize(1000000)},
	}
	for _, tt := range tests {
		got, err := ParseQueueSize(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
	for _, in := range []string{"100", "p", "1.5p", "tenB"} {
		_, err := ParseQueueSize(in)
		assert.Error(t, err, in)
	}
	assert.Equal(t, "2666p", PacketsSize(2666).String())
	assert.Equal(t, "64000B", BytesSize(64000).String())
}

func TestUnitsYAML(t *testing.T) {
	var v struct {
		Rate  Bitrate   `yaml:"rate"`
		Limit QueueSize `yaml:"limit"`
	}
	require.NoError(t, yaml.Unmarshal([]byte("rate: 10Mbps\nlimit: 64KB\n"),
		&v))
	assert.Equal(t, 10*Mbps, v.Rate)
	assert.Equal(t, BytesSize(64000), v.Limit)

	b, err := yaml.Marshal(v)
	require.NoError(t, err)
	assert.Contains(t, string(b), "rate: 10Mbps")
	assert.Contains(t, string(b), "limit: 64000B")

	assert.Error(t, yaml.Unmarshal([]byte("rate: fast\n"), &v))
}
