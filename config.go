// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright 2025 Pete Heist

package ccsim

import (
	"fmt"
	"os"
	"time"

	"github.com/heistp/ccsim/internal/logging"
	"gopkg.in/yaml.v3"
)

// MonitorSpec configures periodic queue monitoring.
type MonitorSpec struct {
	// Queues are the names of the Links to monitor, e.g. "left->right".
	Queues   []string      `yaml:"queues"`
	Interval time.Duration `yaml:"interval"`
}

// Config is a simulation scenario.
type Config struct {
	Seed int64 `yaml:"seed"`

	// Stop is the simulation end time.
	Stop time.Duration `yaml:"stop"`

	// Sample is the flow sampling interval, or zero to sample only at the
	// start and end.
	Sample time.Duration `yaml:"sample"`

	// Exactly one of Topology or Dumbbell must be set.
	Topology *TopologySpec `yaml:"topology"`
	Dumbbell *DumbbellSpec `yaml:"dumbbell"`

	Flows   []FlowSpec     `yaml:"flows"`
	Monitor MonitorSpec    `yaml:"monitor"`
	Logging logging.Config `yaml:"logging"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Seed:   1,
		Stop:   10 * time.Second,
		Sample: 100 * time.Millisecond,
		Monitor: MonitorSpec{
			Interval: 10 * time.Millisecond,
		},
		Logging: logging.DefaultConfig(),
	}
}

// LoadConfig reads and validates a YAML scenario file.
func LoadConfig(path string) (c Config, err error) {
	var b []byte
	if b, err = os.ReadFile(path); err != nil {
		err = fmt.Errorf("failed to read config file: %w", err)
		return
	}
	return ParseConfig(b)
}

// ParseConfig parses and validates a YAML scenario, with unset values
// taken from DefaultConfig.
func ParseConfig(data []byte) (c Config, err error) {
	c = DefaultConfig()
	if err = yaml.Unmarshal(data, &c); err != nil {
		err = fmt.Errorf("failed to parse config file: %w", err)
		return
	}
	err = c.Validate()
	return
}

// Validate checks the Config, failing on the first invalid value.
func (c Config) Validate() (err error) {
	switch {
	case c.Stop <= 0:
		err = configErr("stop", "must be positive, got %s", c.Stop)
	case c.Sample < 0:
		err = configErr("sample", "must not be negative, got %s", c.Sample)
	case c.Topology == nil && c.Dumbbell == nil:
		err = configErr("topology", "one of topology or dumbbell is required")
	case c.Topology != nil && c.Dumbbell != nil:
		err = configErr("dumbbell", "only one of topology or dumbbell may "+
			"be set")
	case len(c.Flows) == 0:
		err = configErr("flows", "at least one flow is required")
	case len(c.Monitor.Queues) > 0 && c.Monitor.Interval <= 0:
		err = configErr("monitor.interval", "must be positive, got %s",
			c.Monitor.Interval)
	}
	if err != nil {
		return
	}
	for i, f := range c.Flows {
		if err = f.withDefaults().validate(); err != nil {
			if ce, ok := err.(*ConfigError); ok {
				ce.Field = fmt.Sprintf("flows[%d].%s", i, ce.Field)
			}
			return
		}
		if f.Stop > c.Stop {
			return configErr(fmt.Sprintf("flows[%d].stop", i),
				"%s is after the simulation stop %s", f.Stop, c.Stop)
		}
	}
	return
}

// TopologySpec returns the scenario's TopologySpec.
func (c Config) TopologySpec() (TopologySpec, error) {
	if c.Dumbbell != nil {
		return Dumbbell(*c.Dumbbell)
	}
	return *c.Topology, nil
}

// Build returns an Engine with the scenario's topology, flows and
// monitors, writing Records to sink.
func (c Config) Build(sink Sink) (e *Engine, err error) {
	if err = c.Validate(); err != nil {
		return
	}
	var t TopologySpec
	if t, err = c.TopologySpec(); err != nil {
		return
	}
	e = NewEngine(c.Seed, sink)
	if err = e.BuildTopology(t); err != nil {
		return
	}
	for _, f := range c.Flows {
		if _, err = e.AttachFlow(f); err != nil {
			return
		}
	}
	for _, q := range c.Monitor.Queues {
		if err = e.MonitorQueue(q, c.Monitor.Interval); err != nil {
			return
		}
	}
	if c.Sample > 0 {
		err = e.SampleEvery(c.Sample)
	}
	return
}
