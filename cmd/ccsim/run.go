// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright 2025 Pete Heist

package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/heistp/ccsim"
	"github.com/heistp/ccsim/internal/logging"
	"github.com/spf13/cobra"
)

var (
	configFile string
	xplotDir   string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a scenario from a YAML file",
	RunE:  runScenario,
}

func init() {
	runCmd.Flags().StringVarP(&configFile, "config", "c", "scenario.yaml",
		"path to scenario file")
	runCmd.Flags().StringVarP(&xplotDir, "xplot", "x", "",
		"write xplot files for each metric to this directory")
}

func runScenario(cmd *cobra.Command, args []string) (err error) {
	var cfg ccsim.Config
	if cfg, err = ccsim.LoadConfig(configFile); err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if logLevel == "" {
		if err = logging.Configure(cfg.Logging); err != nil {
			return
		}
	}
	var sink ccsim.Sink
	if xplotDir != "" {
		var x *ccsim.XplotSink
		if x, err = ccsim.NewXplotSink(xplotDir); err != nil {
			return
		}
		defer func() {
			if e := x.Close(); e != nil && err == nil {
				err = e
			}
		}()
		sink = x
	}
	var e *ccsim.Engine
	if e, err = cfg.Build(sink); err != nil {
		return
	}
	logging.Infof("running %s until %s", configFile, cfg.Stop)
	if err = e.Run(cfg.Stop); err != nil {
		return fmt.Errorf("simulation failed: %w", err)
	}
	return printFlows(e, cfg)
}

// printFlows prints a table of per-flow results.
func printFlows(e *ccsim.Engine, cfg ccsim.Config) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "Flow\tName\tVariant\tThroughput (Mbps)\tLost\tMarked\t"+
		"Timeouts\tCompleted")
	for i := 0; i < e.Flows(); i++ {
		id := ccsim.FlowID(i)
		f, _ := e.Flow(id)
		c, _ := e.Counters(id)
		var mbps float64
		if r, err := e.Throughput(id, cfg.Flows[i].Start,
			cfg.Stop); err == nil {
			mbps = r.Mbps()
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%.3f\t%d\t%d\t%d\t%d\n", i, f.Name(),
			f.Variant(), mbps, c.LostPackets, c.MarkedPackets, c.Timeouts,
			c.Completed)
	}
	return w.Flush()
}
