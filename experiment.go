// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright 2025 Pete Heist

package ccsim

import (
	"math"
	"time"

	"github.com/heistp/ccsim/internal/logging"
	"github.com/sirupsen/logrus"
)

// FairnessSpec configures RTT sweeps of flows competing on a dumbbell,
// with the bottleneck buffer sized in time at the bottleneck rate.
type FairnessSpec struct {
	Variants        []string        `yaml:"variants"`
	RTTs            []time.Duration `yaml:"rtts"`
	BottleneckRate  Bitrate         `yaml:"bottleneckRate"`
	BottleneckDelay time.Duration   `yaml:"bottleneckDelay"`
	AccessRate      Bitrate         `yaml:"accessRate"`
	Buffer          time.Duration   `yaml:"buffer"`
	Start           time.Duration   `yaml:"start"`
	Stop            time.Duration   `yaml:"stop"`
	MSS             Bytes           `yaml:"mss"`
	Seed            int64           `yaml:"seed"`

	// Flows is the number of flows in each group for a friendliness run.
	Flows int `yaml:"flows"`
}

// DefaultFairnessSpec returns the fairness experiment settings: two flows
// through a 400Mbps bottleneck with 5ms of buffer, for RTTs from 16 to
// 512ms.
func DefaultFairnessSpec() FairnessSpec {
	return FairnessSpec{
		Variants: []string{"cubic", "newreno", "bic", "highspeed"},
		RTTs: []time.Duration{
			16 * time.Millisecond,
			32 * time.Millisecond,
			64 * time.Millisecond,
			128 * time.Millisecond,
			256 * time.Millisecond,
			512 * time.Millisecond,
		},
		BottleneckRate:  400 * Mbps,
		BottleneckDelay: 5 * time.Millisecond,
		AccessRate:      Gbps,
		Buffer:          5 * time.Millisecond,
		Start:           time.Second,
		Stop:            100 * time.Second,
		MSS:             DefaultMSS,
		Seed:            1,
		Flows:           4,
	}
}

// validate checks the FairnessSpec.
func (s FairnessSpec) validate() (err error) {
	switch {
	case len(s.Variants) == 0:
		err = configErr("variants", "at least one variant is required")
	case len(s.RTTs) == 0:
		err = configErr("rtts", "at least one RTT is required")
	case s.BottleneckRate <= 0:
		err = configErr("bottleneckRate", "must be positive, got %s",
			s.BottleneckRate)
	case s.Buffer <= 0:
		err = configErr("buffer", "must be positive, got %s", s.Buffer)
	case s.Stop <= s.Start:
		err = configErr("stop", "%s is not after start %s", s.Stop, s.Start)
	}
	return
}

// AccessDelayForRTT returns the access link delay that gives the target
// RTT on a dumbbell, where each packet crosses two access links and the
// bottleneck in each direction.
func AccessDelayForRTT(rtt, bottleneckDelay time.Duration) (
	d time.Duration, err error) {
	if d = (rtt - 2*bottleneckDelay) / 4; d < 0 {
		err = configErr("rtt", "%s is less than twice the bottleneck delay %s",
			rtt, bottleneckDelay)
	}
	return
}

// FairnessRow is the result of one fairness run.
type FairnessRow struct {
	Variant     string
	RTT         time.Duration
	Throughput1 Bitrate
	Throughput2 Bitrate
	Ratio       float64
}

// ratio returns a/b, or NaN if b is zero.
func ratio(a, b Bitrate) float64 {
	if b == 0 {
		return math.NaN()
	}
	return float64(a) / float64(b)
}

// FairnessSweep runs two flows of each variant for each RTT, and returns
// their throughputs over [Start, Stop], in the order of Variants then RTTs.
func FairnessSweep(spec FairnessSpec) (rows []FairnessRow, err error) {
	if err = spec.validate(); err != nil {
		return
	}
	for _, v := range spec.Variants {
		for _, rtt := range spec.RTTs {
			var t []Bitrate
			if t, err = spec.run(rtt, []string{v, v}); err != nil {
				return
			}
			r := FairnessRow{v, rtt, t[0], t[1], ratio(t[0], t[1])}
			logging.InfoWithFields(logrus.Fields{
				"variant": v,
				"rtt":     rtt,
				"t1":      t[0],
				"t2":      t[1],
				"ratio":   r.Ratio,
			}, "fairness")
			rows = append(rows, r)
		}
	}
	return
}

// FriendlinessRow is the result of one friendliness run.
type FriendlinessRow struct {
	Variant  string
	RTT      time.Duration
	Variants Bitrate // total of the variant's flows
	NewReno  Bitrate // total of the NewReno flows
	Ratio    float64
}

// FriendlinessRun runs spec.Flows flows of a variant against as many
// NewReno flows on the same bottleneck.
func FriendlinessRun(spec FairnessSpec, variant string, rtt time.Duration) (
	row FriendlinessRow, err error) {
	if spec.Flows < 1 {
		err = configErr("flows", "must be positive, got %d", spec.Flows)
		return
	}
	v := make([]string, 0, 2*spec.Flows)
	for i := 0; i < spec.Flows; i++ {
		v = append(v, "newreno")
	}
	for i := 0; i < spec.Flows; i++ {
		v = append(v, variant)
	}
	var t []Bitrate
	if t, err = spec.run(rtt, v); err != nil {
		return
	}
	row.Variant = variant
	row.RTT = rtt
	for i, r := range t {
		if i < spec.Flows {
			row.NewReno += r
		} else {
			row.Variants += r
		}
	}
	row.Ratio = ratio(row.Variants, row.NewReno)
	return
}

// FriendlinessSweep runs FriendlinessRun for each variant and RTT.
func FriendlinessSweep(spec FairnessSpec) (rows []FriendlinessRow,
	err error) {
	if err = spec.validate(); err != nil {
		return
	}
	for _, v := range spec.Variants {
		for _, rtt := range spec.RTTs {
			var r FriendlinessRow
			if r, err = FriendlinessRun(spec, v, rtt); err != nil {
				return
			}
			rows = append(rows, r)
		}
	}
	return
}

// run simulates one flow per variant on a dumbbell with the given RTT, and
// returns each flow's throughput.
func (s FairnessSpec) run(rtt time.Duration, variants []string) (
	tput []Bitrate, err error) {
	var d time.Duration
	if d, err = AccessDelayForRTT(rtt, s.BottleneckDelay); err != nil {
		return
	}
	buf := s.BottleneckRate.Bytes(Clock(s.Buffer))
	var t TopologySpec
	if t, err = Dumbbell(DumbbellSpec{
		Pairs:           len(variants),
		AccessRate:      s.AccessRate,
		AccessDelay:     d,
		BottleneckRate:  s.BottleneckRate,
		BottleneckDelay: s.BottleneckDelay,
		Queue:           QueueSpec{Kind: "droptail", Limit: BytesSize(buf)},
	}); err != nil {
		return
	}
	e := NewEngine(s.Seed, nil)
	if err = e.BuildTopology(t); err != nil {
		return
	}
	ids := make([]FlowID, len(variants))
	for i, v := range variants {
		if ids[i], err = e.AttachFlow(FlowSpec{
			Src:     DumbbellSender(i),
			Dst:     DumbbellReceiver(i),
			Variant: v,
			MSS:     s.MSS,
			Start:   s.Start,
		}); err != nil {
			return
		}
	}
	if err = e.Run(s.Start); err != nil {
		return
	}
	if err = e.Run(s.Stop); err != nil {
		return
	}
	for _, id := range ids {
		var r Bitrate
		if r, err = e.Throughput(id, s.Start, s.Stop); err != nil {
			return
		}
		tput = append(tput, r)
	}
	return
}
