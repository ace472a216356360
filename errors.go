// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright 2025 Pete Heist

package ccsim

import (
	"errors"
	"fmt"
)

var (
	// ErrNegativeDelay is returned when scheduling an event in the past.
	ErrNegativeDelay = errors.New("negative event delay")

	// ErrUndefinedThroughput is returned when a throughput cannot be
	// computed, e.g. for a zero-length interval.
	ErrUndefinedThroughput = errors.New("throughput undefined")

	// ErrUnknownVariant is returned for an unknown congestion control name.
	ErrUnknownVariant = errors.New("unknown congestion control variant")

	// ErrNoRoute is returned when no path exists between two nodes.
	ErrNoRoute = errors.New("no route")
)

// ConfigError is an invalid configuration value, detected before the
// simulation runs.
type ConfigError struct {
	Field  string
	Reason string
	Err    error
}

// configErr returns a new ConfigError.
func configErr(field, format string, a ...any) *ConfigError {
	return &ConfigError{field, fmt.Sprintf(format, a...), nil}
}

func (c *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", c.Field, c.Reason)
}

func (c *ConfigError) Unwrap() error {
	return c.Err
}
