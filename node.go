// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright 2025 Pete Heist

package ccsim

// nodeID is the index of a node in its topology.
type nodeID int

// node is a host or router.  Packets addressed to the node are passed to
// the endpoint for their flow, and all others are forwarded to the next hop
// toward their destination.
type node struct {
	id    nodeID
	name  string
	links []*Link
	// next is the next hop link, indexed by destination nodeID
	next []*Link
	// endpoints are the flow ends terminating at this node
	endpoints map[FlowID]endpoint
	// unrouted counts packets with no next hop
	unrouted int64
}

// endpoint receives packets for a flow at a node.
type endpoint interface {
	receive(pkt Packet)
}

// newNode returns a new node.
func newNode(id nodeID, name string) *node {
	return &node{
		id,                        // id
		name,                      // name
		nil,                       // links
		nil,                       // next
		make(map[FlowID]endpoint), // endpoints
		0,                         // unrouted
	}
}

// receive is called when a Packet arrives at the node.
func (n *node) receive(pkt Packet) {
	if pkt.Dst != n.id {
		n.send(pkt)
		return
	}
	if e, ok := n.endpoints[pkt.Flow]; ok {
		e.receive(pkt)
	}
}

// send transmits a Packet toward its destination.
func (n *node) send(pkt Packet) {
	if int(pkt.Dst) >= len(n.next) || n.next[pkt.Dst] == nil {
		n.unrouted++
		return
	}
	n.next[pkt.Dst].Transmit(pkt)
}

// attach registers the endpoint for a flow.
func (n *node) attach(flow FlowID, e endpoint) {
	n.endpoints[flow] = e
}

// route computes next hop tables for all nodes by breadth first search on
// hop count.  Ties are broken by the order links were added.
func route(nodes []*node) {
	for _, src := range nodes {
		// first[i] is the link out of src on the first path found to i
		first := make([]*Link, len(nodes))
		seen := make([]bool, len(nodes))
		seen[src.id] = true
		q := []*node{src}
		for len(q) > 0 {
			var n *node
			n, q = q[0], q[1:]
			for _, l := range n.links {
				t := l.to
				if seen[t.id] {
					continue
				}
				seen[t.id] = true
				if n == src {
					first[t.id] = l
				} else {
					first[t.id] = first[n.id]
				}
				q = append(q, t)
			}
		}
		src.next = first
	}
}

// reachable returns true if dst can be reached from n.
func (n *node) reachable(dst nodeID) bool {
	return n.id == dst || n.next[dst] != nil
}
