// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright 2025 Pete Heist

package ccsim

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Bytes is a count of bytes.
type Bytes int64

// Seq is a TCP sequence number, in bytes.
type Seq int64

// Bitrate is a rate in bits per second.
type Bitrate int64

const (
	Bps  Bitrate = 1
	Kbps         = 1000 * Bps
	Mbps         = 1000 * Kbps
	Gbps         = 1000 * Mbps
)

// TransferTime returns the time it takes to serialize the given number of
// bytes at the given rate.
func TransferTime(rate Bitrate, bytes Bytes) Clock {
	return Clock(int64(bytes) * 8 * int64(time.Second) / int64(rate))
}

// CalcBitrate returns the Bitrate for the given bytes transferred over the
// given duration.
func CalcBitrate(bytes Bytes, dur time.Duration) Bitrate {
	return Bitrate(float64(bytes) * 8 / dur.Seconds())
}

// Bytes returns the number of bytes transferred at this rate over dur.
func (b Bitrate) Bytes(dur Clock) Bytes {
	return Bytes(float64(b) / 8 * dur.Seconds())
}

// Mbps returns the rate in megabits per second.
func (b Bitrate) Mbps() float64 {
	return float64(b) / float64(Mbps)
}

func (b Bitrate) String() string {
	switch {
	case b >= Gbps && b%Gbps == 0:
		return fmt.Sprintf("%dGbps", b/Gbps)
	case b >= Mbps && b%Mbps == 0:
		return fmt.Sprintf("%dMbps", b/Mbps)
	case b >= Kbps && b%Kbps == 0:
		return fmt.Sprintf("%dKbps", b/Kbps)
	}
	return fmt.Sprintf("%dbps", int64(b))
}

// rateUnits lists rate suffixes, longest first so that "Mbps" is not taken
// as "bps".
var rateUnits = []struct {
	suffix string
	mult   Bitrate
}{
	{"Gbps", Gbps},
	{"Mbps", Mbps},
	{"Kbps", Kbps},
	{"kbps", Kbps},
	{"bps", Bps},
}

// ParseBitrate parses rates such as "400Mbps", "1Gbps" or "1.5Mbps".
func ParseBitrate(s string) (rate Bitrate, err error) {
	t := strings.TrimSpace(s)
	for _, u := range rateUnits {
		if !strings.HasSuffix(t, u.suffix) {
			continue
		}
		var f float64
		if f, err = strconv.ParseFloat(strings.TrimSuffix(t, u.suffix),
			64); err != nil {
			err = fmt.Errorf("invalid rate %q: %w", s, err)
			return
		}
		if f < 0 {
			err = fmt.Errorf("invalid rate %q: negative", s)
			return
		}
		rate = Bitrate(f * float64(u.mult))
		return
	}
	err = fmt.Errorf("invalid rate %q: missing unit (bps, Kbps, Mbps, Gbps)",
		s)
	return
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (b *Bitrate) UnmarshalYAML(value *yaml.Node) (err error) {
	var s string
	if err = value.Decode(&s); err != nil {
		return
	}
	*b, err = ParseBitrate(s)
	return
}

// MarshalYAML implements yaml.Marshaler.
func (b Bitrate) MarshalYAML() (any, error) {
	return b.String(), nil
}

// QueueUnit is the unit a queue is measured in.
type QueueUnit int

const (
	Packets QueueUnit = iota
	ByteUnits
)

// QueueSize is a queue limit or threshold, in packets or bytes.
type QueueSize struct {
	Value int64
	Unit  QueueUnit
}

// PacketsSize returns a QueueSize in packets.
func PacketsSize(n int64) QueueSize {
	return QueueSize{n, Packets}
}

// BytesSize returns a QueueSize in bytes.
func BytesSize(n Bytes) QueueSize {
	return QueueSize{int64(n), ByteUnits}
}

func (q QueueSize) String() string {
	if q.Unit == ByteUnits {
		return fmt.Sprintf("%dB", q.Value)
	}
	return fmt.Sprintf("%dp", q.Value)
}

// ParseQueueSize parses sizes such as "2666p", "64000B" or "64KB".
func ParseQueueSize(s string) (size QueueSize, err error) {
	t := strings.TrimSpace(s)
	mult := int64(1)
	switch {
	case strings.HasSuffix(t, "p"):
		t = strings.TrimSuffix(t, "p")
		size.Unit = Packets
	case strings.HasSuffix(t, "MB"):
		t = strings.TrimSuffix(t, "MB")
		size.Unit = ByteUnits
		mult = 1000 * 1000
	case strings.HasSuffix(t, "KB"):
		t = strings.TrimSuffix(t, "KB")
		size.Unit = ByteUnits
		mult = 1000
	case strings.HasSuffix(t, "B"):
		t = strings.TrimSuffix(t, "B")
		size.Unit = ByteUnits
	default:
		err = fmt.Errorf("invalid queue size %q: missing unit (p, B, KB, MB)",
			s)
		return
	}
	var n int64
	if n, err = strconv.ParseInt(t, 10, 64); err != nil {
		err = fmt.Errorf("invalid queue size %q: %w", s, err)
		return
	}
	size.Value = n * mult
	return
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (q *QueueSize) UnmarshalYAML(value *yaml.Node) (err error) {
	var s string
	if err = value.Decode(&s); err != nil {
		return
	}
	*q, err = ParseQueueSize(s)
	return
}

// MarshalYAML implements yaml.Marshaler.
func (q QueueSize) MarshalYAML() (any, error) {
	return q.String(), nil
}
