// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright 2025 Pete Heist

package ccsim

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dumbbellYAML = `
seed: 7
stop: 3s
sample: 50ms
dumbbell:
  pairs: 2
  accessRate: 100Mbps
  accessDelay: 1ms
  bottleneckRate: 10Mbps
  bottleneckDelay: 5ms
  queue:
    kind: red
    limit: 2666p
    minTh: 20
    maxTh: 20
    qw: 1
    useECN: true
flows:
  - name: bulk
    src: s0
    dst: r0
    variant: ns3::TcpDctcp
  - src: s1
    dst: r1
    variant: dctcp
    start: 500ms
    bytes: 200000
    ecn: true
monitor:
  queues: [left->right]
  interval: 20ms
logging:
  level: warn
`

func TestParseConfig(t *testing.T) {
	c, err := ParseConfig([]byte(dumbbellYAML))
	require.NoError(t, err)
	assert.Equal(t, int64(7), c.Seed)
	assert.Equal(t, 3*time.Second, c.Stop)
	require.NotNil(t, c.Dumbbell)
	assert.Equal(t, 10*Mbps, c.Dumbbell.BottleneckRate)
	assert.Equal(t, PacketsSize(2666), c.Dumbbell.Queue.Limit)
	assert.True(t, c.Dumbbell.Queue.UseECN)
	require.Len(t, c.Flows, 2)
	assert.Equal(t, "bulk", c.Flows[0].Name)
	assert.Equal(t, 500*time.Millisecond, c.Flows[1].Start)
	assert.Equal(t, Bytes(200000), c.Flows[1].Bytes)
	require.NotNil(t, c.Flows[1].ECN)
	assert.True(t, *c.Flows[1].ECN)
	assert.Equal(t, []string{BottleneckLink}, c.Monitor.Queues)
	assert.Equal(t, "warn", c.Logging.Level)
	assert.Equal(t, "text", c.Logging.Format)
}

func TestConfigBuildAndRun(t *testing.T) {
	c, err := ParseConfig([]byte(dumbbellYAML))
	require.NoError(t, err)
	m := NewMemorySink()
	e, err := c.Build(m)
	require.NoError(t, err)
	require.Equal(t, 2, e.Flows())
	require.NoError(t, e.Run(c.Stop))

	f, _ := e.Flow(0)
	assert.Equal(t, "dctcp", f.Variant())
	assert.Equal(t, "bulk", f.Name())
	f, _ = e.Flow(1)
	assert.Equal(t, "dctcp", f.Name())
	assert.Len(t, f.CompletionTimes(), 1)

	assert.NotEmpty(t, m.Metric("queue_packets", NoFlow, BottleneckLink))
	assert.NotEmpty(t, m.Metric("cwnd", 0, ""))
	assert.NotEmpty(t, m.Metric("fct", 1, ""))
	// samples every 50ms from 0 to 3s
	assert.Len(t, m.Metric("rx_bytes", 0, ""), 61)
}

func TestLoadConfig(t *testing.T) {
	p := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(p, []byte(dumbbellYAML), 0o644))
	c, err := LoadConfig(p)
	require.NoError(t, err)
	assert.Equal(t, int64(7), c.Seed)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestConfigDefaults(t *testing.T) {
	c, err := ParseConfig([]byte(`
topology:
  nodes: [a, b]
  links:
    - {a: a, b: b, rate: 1Gbps, delay: 10ms}
flows:
  - {src: a, dst: b}
`))
	require.NoError(t, err)
	d := DefaultConfig()
	assert.Equal(t, d.Seed, c.Seed)
	assert.Equal(t, d.Stop, c.Stop)
	assert.Equal(t, d.Sample, c.Sample)
	ts, err := c.TopologySpec()
	require.NoError(t, err)
	assert.Equal(t, Gbps, ts.Links[0].Rate)
}

func TestConfigInvalid(t *testing.T) {
	tests := []struct {
		yaml  string
		field string
	}{
		{"stop: 0s\ntopology: {nodes: [a]}\nflows: [{src: a, dst: b}]",
			"stop"},
		{"flows: [{src: a, dst: b}]", "topology"},
		{"topology: {nodes: [a]}", "flows"},
		{"topology: {nodes: [a]}\ndumbbell: {pairs: 1}\n" +
			"flows: [{src: a, dst: b}]", "dumbbell"},
		{"topology: {nodes: [a]}\nflows: [{src: a, dst: b}, {src: a}]",
			"flows[1].dst"},
		{"topology: {nodes: [a]}\nflows: [{src: a, dst: b, stop: 20s}]",
			"flows[0].stop"},
		{"topology: {nodes: [a]}\nflows: [{src: a, dst: b, mss: -1}]",
			"flows[0].mss"},
		{"topology: {nodes: [a]}\nflows: [{src: a, dst: b}]\n" +
			"monitor: {queues: [a->b], interval: 0s}", "monitor.interval"},
	}
	for _, tt := range tests {
		_, err := ParseConfig([]byte(tt.yaml))
		var ce *ConfigError
		require.ErrorAs(t, err, &ce, tt.yaml)
		assert.Equal(t, tt.field, ce.Field, tt.yaml)
	}

	_, err := ParseConfig([]byte("stop: soon"))
	assert.Error(t, err)
}

func TestConfigUnknownVariant(t *testing.T) {
	c, err := ParseConfig([]byte(`
dumbbell: {pairs: 1, accessRate: 1Gbps, bottleneckRate: 10Mbps}
flows:
  - {src: s0, dst: r0, variant: vegas}
`))
	require.NoError(t, err)
	_, err = c.Build(nil)
	assert.ErrorIs(t, err, ErrUnknownVariant)
}
