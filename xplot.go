// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright 2025 Pete Heist

package ccsim

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"text/template"
)

const xplotHeader = `{{.X.Type}} {{.Y.Type}}
title
{{.Title}}
{{if .X.Label -}}
xlabel
{{.X.Label}}
{{end -}}
{{if .Y.Label -}}
ylabel
{{.Y.Label}}
{{end -}}
{{if .X.Units -}}
xunits
{{.X.Units}}
{{end -}}
{{if .Y.Units -}}
yunits
{{.Y.Units}}
{{end -}}
{{if not .NonzeroAxis -}}
invisible 0 0
{{end -}}
`

type Axis struct {
	Type  string
	Label string
	Units string
}

// Xplot writes a plot file for xplot.org.
type Xplot struct {
	Title       string
	X           Axis
	Y           Axis
	NonzeroAxis bool
	file        *os.File
	writer      *bufio.Writer
}

func (p *Xplot) Open(name string) (err error) {
	var t *template.Template
	if t, err = template.New("XplotHeader").Parse(xplotHeader); err != nil {
		return
	}
	if p.file, err = os.Create(name); err != nil {
		return
	}
	p.writer = bufio.NewWriter(p.file)
	err = t.Execute(p.writer, p)
	return
}

func (p *Xplot) Dot(x any, y any, color int) (err error) {
	_, err = fmt.Fprintf(p.writer, "dot %s %s %d\n", x, y, color)
	return
}

func (p *Xplot) PlotX(x any, y any, color int) (err error) {
	_, err = fmt.Fprintf(p.writer, "x %s %s %d\n", x, y, color)
	return
}

func (p *Xplot) Close() (err error) {
	fmt.Fprintf(p.writer, "go\n")
	if err = p.writer.Flush(); err != nil {
		p.file.Close()
		return
	}
	return p.file.Close()
}

// xplotLabels are the y axis labels for known metrics.
var xplotLabels = map[string]string{
	"cwnd":          "CWND (bytes)",
	"throughput":    "Throughput (Mbps)",
	"rx_bytes":      "Received (bytes)",
	"lost_packets":  "Lost (packets)",
	"queue_packets": "Queue length (packets)",
	"queue_bytes":   "Queue length (bytes)",
	"red_avg":       "RED average queue",
	"fct":           "Flow completion time (S)",
	"drop":          "Drops",
	"mark":          "Marks",
}

// XplotSink is a Sink that writes one xplot file per metric into a
// directory, with a color per flow, or per link for link metrics.
type XplotSink struct {
	dir   string
	plots map[string]*Xplot
	links map[string]int
}

// NewXplotSink returns a new XplotSink writing to dir, which is created if
// needed.
func NewXplotSink(dir string) (s *XplotSink, err error) {
	if err = os.MkdirAll(dir, 0755); err != nil {
		return
	}
	s = &XplotSink{
		dir,                     // dir
		make(map[string]*Xplot), // plots
		make(map[string]int),    // links
	}
	return
}

// Write implements Sink.
func (s *XplotSink) Write(r Record) (err error) {
	p, ok := s.plots[r.Metric]
	if !ok {
		p = &Xplot{
			Title: r.Metric,
			X: Axis{
				Type:  "double",
				Label: "Time (S)",
			},
			Y: Axis{
				Type:  "double",
				Label: xplotLabels[r.Metric],
			},
		}
		if err = p.Open(filepath.Join(s.dir, r.Metric+".xpl")); err != nil {
			return
		}
		s.plots[r.Metric] = p
	}
	return p.Dot(r.Time, strconv.FormatFloat(r.Value, 'f', -1, 64),
		s.color(r))
}

// color returns the plot color for a Record.
func (s *XplotSink) color(r Record) int {
	if r.Flow != NoFlow {
		return int(r.Flow)
	}
	c, ok := s.links[r.Link]
	if !ok {
		c = len(s.links)
		s.links[r.Link] = c
	}
	return c
}

// Close implements Sink.
func (s *XplotSink) Close() (err error) {
	m := make([]string, 0, len(s.plots))
	for k := range s.plots {
		m = append(m, k)
	}
	sort.Strings(m)
	for _, k := range m {
		if e := s.plots[k].Close(); e != nil && err == nil {
			err = e
		}
	}
	s.plots = make(map[string]*Xplot)
	return
}
