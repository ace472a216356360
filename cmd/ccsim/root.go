// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright 2025 Pete Heist

package main

import (
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"

	"github.com/heistp/ccsim/internal/logging"
	"github.com/spf13/cobra"
)

var (
	logLevel   string
	cpuProfile string
	memProfile string
	cpuFile    *os.File
)

var rootCmd = &cobra.Command{
	Use:   "ccsim",
	Short: "Discrete-event TCP congestion control simulator",
	Long: `ccsim simulates TCP flows over a topology of point-to-point links
with drop-tail or RED/ECN queues, for studying congestion control fairness
(CUBIC, NewReno, BIC, HighSpeed) and DCTCP queue behavior.`,
	SilenceUsage:       true,
	PersistentPreRunE:  setup,
	PersistentPostRunE: teardown,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&cpuProfile, "cpuprofile", "",
		"write a CPU profile to file")
	rootCmd.PersistentFlags().StringVar(&memProfile, "memprofile", "",
		"write a heap profile to file")
	rootCmd.AddCommand(runCmd, sweepCmd)
}

// setup applies the log level and starts any CPU profile.
func setup(cmd *cobra.Command, args []string) (err error) {
	if logLevel != "" {
		var l logging.Level
		if l, err = logging.ParseLevel(logLevel); err != nil {
			return
		}
		logging.SetLevel(l)
	}
	if cpuProfile != "" {
		if cpuFile, err = os.Create(cpuProfile); err != nil {
			return
		}
		if err = pprof.StartCPUProfile(cpuFile); err != nil {
			return fmt.Errorf("failed to start CPU profile: %w", err)
		}
	}
	return
}

// teardown stops profiling and writes any heap profile.
func teardown(cmd *cobra.Command, args []string) (err error) {
	if cpuFile != nil {
		pprof.StopCPUProfile()
		if err = cpuFile.Close(); err != nil {
			return
		}
	}
	if memProfile != "" {
		var f *os.File
		if f, err = os.Create(memProfile); err != nil {
			return
		}
		defer f.Close()
		runtime.GC()
		err = pprof.WriteHeapProfile(f)
	}
	return
}
