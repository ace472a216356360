// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright 2025 Pete Heist

package ccsim

// ABCLimit is the maximum slow-start increase per ACK, in segments
// (Appropriate Byte Counting, RFC 3465 L).
const ABCLimit = 2

// slowStart implements standard slow-start mostly according to RFC 5681,
// growing cwnd by the bytes acked up to ABCLimit segments.  It returns the
// number of acked bytes left over after reaching ssthresh, which may be
// consumed in congestion avoidance.
func slowStart(w *Window, acked Bytes) (left Bytes) {
	i := min(acked, ABCLimit*w.MSS)
	if w.Cwnd+i >= w.Ssthresh {
		i = max(w.Ssthresh-w.Cwnd, 0)
		left = acked - i
		w.Cwnd += i
		w.State = CongestionAvoidance
		return
	}
	w.Cwnd += i
	return
}
