// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright 2025 Pete Heist

package ccsim

import (
	"fmt"
	"time"

	"github.com/heistp/ccsim/internal/logging"
	"github.com/sirupsen/logrus"
)

// TopologySpec describes a network of nodes and point-to-point links.
type TopologySpec struct {
	Nodes []string   `yaml:"nodes"`
	Links []LinkSpec `yaml:"links"`
}

// LinkSpec describes a full duplex link between two nodes, created as one
// Link in each direction.
type LinkSpec struct {
	A     string        `yaml:"a"`
	B     string        `yaml:"b"`
	Rate  Bitrate       `yaml:"rate"`
	Delay time.Duration `yaml:"delay"`

	// Queue is the queue for A->B, and for B->A unless ReverseQueue is set.
	// If Queue is the zero value, DefaultQueueSpec is used.
	Queue        QueueSpec  `yaml:"queue"`
	ReverseQueue *QueueSpec `yaml:"reverseQueue"`
}

// LinkName returns the name of the Link from a to b.
func LinkName(a, b string) string {
	return a + "->" + b
}

// topology is the set of nodes and links built from a TopologySpec.
type topology struct {
	nodes  []*node
	byName map[string]*node
	links  []*Link
	byLink map[string]*Link
}

// newTopology builds a topology from a TopologySpec, with seed used to derive
// the seeds for any random queue disciplines.
func newTopology(spec TopologySpec, sched *Scheduler, seed int64) (
	t *topology, err error) {
	t = &topology{
		nil,                    // nodes
		make(map[string]*node), // byName
		nil,                    // links
		make(map[string]*Link), // byLink
	}
	if len(spec.Nodes) == 0 {
		err = configErr("topology.nodes", "at least one node is required")
		return
	}
	for i, n := range spec.Nodes {
		f := fmt.Sprintf("topology.nodes[%d]", i)
		if n == "" {
			err = configErr(f, "name is required")
			return
		}
		if _, ok := t.byName[n]; ok {
			err = configErr(f, "duplicate node %q", n)
			return
		}
		x := newNode(nodeID(i), n)
		t.nodes = append(t.nodes, x)
		t.byName[n] = x
	}
	for i, l := range spec.Links {
		f := fmt.Sprintf("topology.links[%d]", i)
		if err = t.addLink(l, f, sched, seed+int64(2*i)); err != nil {
			return
		}
	}
	route(t.nodes)
	if logging.IsDebug() {
		for _, l := range t.links {
			logging.DebugWithFields(logrus.Fields{
				"link":  l.name,
				"rate":  l.rate,
				"delay": l.delay.StringMS() + "ms",
				"queue": l.queue.Capacity(),
			}, "link")
		}
	}
	return
}

// addLink adds the Links for a LinkSpec.
func (t *topology) addLink(spec LinkSpec, field string, sched *Scheduler,
	seed int64) (err error) {
	a, ok := t.byName[spec.A]
	if !ok {
		return configErr(field+".a", "unknown node %q", spec.A)
	}
	b, ok := t.byName[spec.B]
	if !ok {
		return configErr(field+".b", "unknown node %q", spec.B)
	}
	if a == b {
		return configErr(field+".b", "link from %q to itself", spec.A)
	}
	if spec.Rate <= 0 {
		return configErr(field+".rate", "must be positive, got %s",
			spec.Rate)
	}
	if spec.Delay < 0 {
		return configErr(field+".delay", "must not be negative, got %s",
			spec.Delay)
	}
	fwd := spec.Queue
	if fwd == (QueueSpec{}) {
		fwd = DefaultQueueSpec
	}
	rev := fwd
	if spec.ReverseQueue != nil {
		rev = *spec.ReverseQueue
	}
	var qa, qb QueueDisc
	if qa, err = newQueueDisc(fwd, field+".queue", seed); err != nil {
		return
	}
	if qb, err = newQueueDisc(rev, field+".reverseQueue",
		seed+1); err != nil {
		return
	}
	for _, x := range []struct {
		from, to *node
		q        QueueDisc
	}{{a, b, qa}, {b, a, qb}} {
		n := LinkName(x.from.name, x.to.name)
		if _, ok := t.byLink[n]; ok {
			return configErr(field, "duplicate link %q", n)
		}
		l := newLink(n, x.from, x.to, spec.Rate, Clock(spec.Delay), x.q,
			sched)
		x.from.links = append(x.from.links, l)
		t.links = append(t.links, l)
		t.byLink[n] = l
	}
	return
}

// node returns the node with the given name.
func (t *topology) node(name string) (*node, bool) {
	n, ok := t.byName[name]
	return n, ok
}

// Dumbbell node names.
const (
	LeftRouter  = "left"
	RightRouter = "right"
)

// BottleneckLink is the name of the forward bottleneck Link in a dumbbell.
var BottleneckLink = LinkName(LeftRouter, RightRouter)

// DumbbellSender returns the name of the i'th sender in a dumbbell.
func DumbbellSender(i int) string {
	return fmt.Sprintf("s%d", i)
}

// DumbbellReceiver returns the name of the i'th receiver in a dumbbell.
func DumbbellReceiver(i int) string {
	return fmt.Sprintf("r%d", i)
}

// DefaultAccessQueue is the access link queue in a dumbbell.
var DefaultAccessQueue = QueueSpec{Kind: "droptail", Limit: PacketsSize(1000)}

// DumbbellSpec describes a dumbbell: Pairs senders attached to a left
// router, a bottleneck link to a right router, and Pairs receivers attached
// to the right router.
type DumbbellSpec struct {
	Pairs int `yaml:"pairs"`

	AccessRate  Bitrate       `yaml:"accessRate"`
	AccessDelay time.Duration `yaml:"accessDelay"`

	// AccessDelays optionally sets the access delay for each pair, on both
	// the sender and receiver side.
	AccessDelays []time.Duration `yaml:"accessDelays"`

	BottleneckRate  Bitrate       `yaml:"bottleneckRate"`
	BottleneckDelay time.Duration `yaml:"bottleneckDelay"`

	// Queue is the bottleneck queue, and AccessQueue the queue on access
	// links (DefaultAccessQueue if zero).
	Queue       QueueSpec `yaml:"queue"`
	AccessQueue QueueSpec `yaml:"accessQueue"`
}

// Dumbbell returns the TopologySpec for a dumbbell.
func Dumbbell(d DumbbellSpec) (t TopologySpec, err error) {
	if d.Pairs < 1 {
		err = configErr("dumbbell.pairs", "must be positive, got %d",
			d.Pairs)
		return
	}
	if d.AccessDelays != nil && len(d.AccessDelays) != d.Pairs {
		err = configErr("dumbbell.accessDelays",
			"has %d delays for %d pairs", len(d.AccessDelays), d.Pairs)
		return
	}
	aq := d.AccessQueue
	if aq == (QueueSpec{}) {
		aq = DefaultAccessQueue
	}
	for i := 0; i < d.Pairs; i++ {
		t.Nodes = append(t.Nodes, DumbbellSender(i))
	}
	t.Nodes = append(t.Nodes, LeftRouter, RightRouter)
	for i := 0; i < d.Pairs; i++ {
		t.Nodes = append(t.Nodes, DumbbellReceiver(i))
	}
	ack := DefaultQueueSpec
	t.Links = append(t.Links, LinkSpec{
		LeftRouter,
		RightRouter,
		d.BottleneckRate,
		d.BottleneckDelay,
		d.Queue,
		&ack,
	})
	for i := 0; i < d.Pairs; i++ {
		delay := d.AccessDelay
		if d.AccessDelays != nil {
			delay = d.AccessDelays[i]
		}
		t.Links = append(t.Links,
			LinkSpec{DumbbellSender(i), LeftRouter, d.AccessRate, delay, aq,
				nil},
			LinkSpec{RightRouter, DumbbellReceiver(i), d.AccessRate, delay,
				aq, nil},
		)
	}
	return
}
