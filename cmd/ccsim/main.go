// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright 2025 Pete Heist

// Command ccsim runs congestion control simulations.
package main

import (
	"os"

	"github.com/heistp/ccsim/internal/logging"
)

func main() {
	if err := Execute(); err != nil {
		logging.Errorf("%s", err)
		os.Exit(1)
	}
}
