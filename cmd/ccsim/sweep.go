// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright 2025 Pete Heist

package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/heistp/ccsim"
	"github.com/spf13/cobra"
)

var (
	sweepVariants     []string
	sweepRTTs         []time.Duration
	sweepRate         string
	sweepBuffer       time.Duration
	sweepStop         time.Duration
	sweepFriendliness bool
	sweepFlows        int
	sweepSeed         int64
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run an RTT fairness sweep on a dumbbell",
	Long: `Run two flows of each variant on a dumbbell for each RTT, and print
their throughput and throughput ratio.  With --friendliness, run --flows
flows of each variant against as many NewReno flows instead.`,
	RunE: runSweep,
}

func init() {
	d := ccsim.DefaultFairnessSpec()
	f := sweepCmd.Flags()
	f.StringSliceVar(&sweepVariants, "variants", d.Variants,
		"congestion control variants")
	f.DurationSliceVar(&sweepRTTs, "rtts", d.RTTs, "round-trip times")
	f.StringVar(&sweepRate, "rate", d.BottleneckRate.String(),
		"bottleneck rate")
	f.DurationVar(&sweepBuffer, "buffer", d.Buffer,
		"bottleneck buffer, in time at the bottleneck rate")
	f.DurationVar(&sweepStop, "stop", d.Stop, "simulation stop time")
	f.BoolVar(&sweepFriendliness, "friendliness", false,
		"run variants against NewReno")
	f.IntVar(&sweepFlows, "flows", d.Flows,
		"flows per group for friendliness runs")
	f.Int64Var(&sweepSeed, "seed", d.Seed, "random seed")
}

func runSweep(cmd *cobra.Command, args []string) (err error) {
	s := ccsim.DefaultFairnessSpec()
	s.Variants = sweepVariants
	s.RTTs = sweepRTTs
	if s.BottleneckRate, err = ccsim.ParseBitrate(sweepRate); err != nil {
		return
	}
	s.Buffer = sweepBuffer
	s.Stop = sweepStop
	s.Flows = sweepFlows
	s.Seed = sweepSeed
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	if sweepFriendliness {
		var rows []ccsim.FriendlinessRow
		if rows, err = ccsim.FriendlinessSweep(s); err != nil {
			return
		}
		fmt.Fprintln(w, "TCP_Variant\tRTT\tVariant (Mbps)\tNewReno (Mbps)\t"+
			"Throughput_Ratio")
		for _, r := range rows {
			fmt.Fprintf(w, "%s\t%d\t%.3f\t%.3f\t%.3f\n", r.Variant,
				r.RTT.Milliseconds(), r.Variants.Mbps(), r.NewReno.Mbps(),
				r.Ratio)
		}
		return w.Flush()
	}
	var rows []ccsim.FairnessRow
	if rows, err = ccsim.FairnessSweep(s); err != nil {
		return
	}
	fmt.Fprintln(w, "TCP_Variant\tRTT\tThroughput1 (Mbps)\t"+
		"Throughput2 (Mbps)\tThroughput_Ratio")
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%d\t%.3f\t%.3f\t%.3f\n", r.Variant,
			r.RTT.Milliseconds(), r.Throughput1.Mbps(), r.Throughput2.Mbps(),
			r.Ratio)
	}
	return w.Flush()
}
