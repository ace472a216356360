// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright 2025 Pete Heist

package ccsim

// Record is a single time series value emitted during a simulation.
type Record struct {
	Time   Clock
	Metric string
	Flow   FlowID // NoFlow if not for a flow
	Link   string // empty if not for a link
	Value  float64
}

// Sink receives Records.  The orchestrator that creates a Sink closes it.
type Sink interface {
	Write(Record) error
	Close() error
}

// MemorySink keeps Records in memory.
type MemorySink struct {
	Records []Record
}

// NewMemorySink returns a new MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Write implements Sink.
func (m *MemorySink) Write(r Record) error {
	m.Records = append(m.Records, r)
	return nil
}

// Close implements Sink.
func (m *MemorySink) Close() error {
	return nil
}

// Metric returns the Records for a metric, optionally limited to a flow or
// link.  Use NoFlow and "" to match any.
func (m *MemorySink) Metric(metric string, flow FlowID,
	link string) (r []Record) {
	for _, x := range m.Records {
		if x.Metric != metric {
			continue
		}
		if flow != NoFlow && x.Flow != flow {
			continue
		}
		if link != "" && x.Link != link {
			continue
		}
		r = append(r, x)
	}
	return
}
