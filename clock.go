// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright 2025 Pete Heist

package ccsim

import (
	"fmt"
	"math"
	"time"
)

// Clock represents the virtual simulation time.
type Clock time.Duration

// ClockInfinity is the maximum Clock value.
const ClockInfinity = Clock(math.MaxInt64)

// Seconds returns the Clock value in seconds.
func (c Clock) Seconds() float64 {
	return time.Duration(c).Seconds()
}

// MultiplyScaled multiplies with the given Clock value, scaled to time.Second.
func (c Clock) MultiplyScaled(c2 Clock) Clock {
	return c * c2 / Clock(time.Second)
}

func (c Clock) StringMS() string {
	return fmt.Sprintf("%f", time.Duration(c).Seconds()*1000)
}

func (c Clock) String() string {
	return fmt.Sprintf("%f", time.Duration(c).Seconds())
}
