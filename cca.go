// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright 2025 Pete Heist

package ccsim

import (
	"fmt"
	"sort"
	"strings"
)

// CCState is the congestion control state of a flow.
type CCState int

const (
	SlowStart CCState = iota
	CongestionAvoidance
	FastRecovery
)

func (s CCState) String() string {
	switch s {
	case SlowStart:
		return "SlowStart"
	case CongestionAvoidance:
		return "CongestionAvoidance"
	case FastRecovery:
		return "FastRecovery"
	}
	return fmt.Sprintf("CCState(%d)", int(s))
}

// RecoveryCause is the signal that put a flow into FastRecovery.
type RecoveryCause int

const (
	RecoveryLoss RecoveryCause = iota
	RecoveryECN
)

// LossKind is the way a loss was detected.
type LossKind int

const (
	LossDupAck LossKind = iota
	LossTimeout
)

func (k LossKind) String() string {
	if k == LossTimeout {
		return "timeout"
	}
	return "dupack"
}

// Window is the congestion control state shared by all CCAs, owned by the
// flow's sender and mutated by its CCA.
type Window struct {
	State    CCState
	Cause    RecoveryCause
	Cwnd     Bytes
	Ssthresh Bytes
	MSS      Bytes
	SRTT     Clock
	MinRTT   Clock
}

// newWindow returns a Window in SlowStart with the given initial window.
func newWindow(mss Bytes, initCwnd int) Window {
	return Window{
		SlowStart,             // State
		RecoveryLoss,          // Cause
		Bytes(initCwnd) * mss, // Cwnd
		Bytes(ClockInfinity),  // Ssthresh
		mss,                   // MSS
		0,                     // SRTT
		0,                     // MinRTT
	}
}

// growable returns true if the window may grow on an ACK.  Growth is frozen
// during loss recovery, but continues while reducing for ECN.
func (w *Window) growable() bool {
	return w.State != FastRecovery || w.Cause == RecoveryECN
}

// segments returns cwnd in segments.
func (w *Window) segments() float64 {
	return float64(w.Cwnd) / float64(w.MSS)
}

// reduce sets ssthresh to cwnd times the given factor, not less than two
// segments.  For a DupAck loss or ECN signal, cwnd is set to ssthresh.
func (w *Window) reduce(factor float64, setCwnd bool) {
	w.Ssthresh = max(Bytes(float64(w.Cwnd)*factor), 2*w.MSS)
	if setCwnd {
		w.Cwnd = w.Ssthresh
	}
}

// Ack is the information about a new cumulative ACK passed to a CCA.
type Ack struct {
	Now    Clock
	Acked  Bytes
	ECE    bool
	AckNum Seq
	SndNxt Seq
	RTT    Clock
}

// CCA is a congestion control algorithm.  Each flow has its own CCA
// instance, so implementations may keep per-flow state.
type CCA interface {
	// Name returns the variant name.
	Name() string

	// OnAck is called for each ACK that acknowledges new data.
	OnAck(w *Window, ack Ack)

	// OnLoss is called once per loss event.  For LossDupAck, it sets both
	// ssthresh and cwnd.  For LossTimeout it sets ssthresh, and the sender
	// resets cwnd to one segment.
	OnLoss(w *Window, kind LossKind, now Clock)

	// OnECNMark is called at most once per window for ECE-marked ACKs.
	OnECNMark(w *Window, now Clock)

	// SendWindow returns the number of bytes the flow may have in flight.
	SendWindow(w *Window) Bytes
}

// variant describes a CCA available by name.
type variant struct {
	new func() CCA
	ecn bool
}

// variants maps names to CCAs.  Names are matched case-insensitively, and
// an "ns3::Tcp" prefix is ignored.
var variants = map[string]variant{
	"newreno":   {func() CCA { return NewNewReno() }, false},
	"cubic":     {func() CCA { return NewCubic() }, false},
	"bic":       {func() CCA { return NewBIC() }, false},
	"highspeed": {func() CCA { return NewHighSpeed() }, false},
	"dctcp":     {func() CCA { return NewDCTCP() }, true},
}

// variantKey returns the registry key for a variant name.
func variantKey(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	n = strings.TrimPrefix(n, "ns3::tcp")
	return strings.ReplaceAll(n, "-", "")
}

// NewCCA returns a new CCA for the given variant name, and whether the
// variant is ECN-capable by default.
func NewCCA(name string) (cca CCA, ecn bool, err error) {
	v, ok := variants[variantKey(name)]
	if !ok {
		err = fmt.Errorf("%w: %q (known: %s)", ErrUnknownVariant, name,
			strings.Join(VariantNames(), ", "))
		return
	}
	cca = v.new()
	ecn = v.ecn
	return
}

// VariantNames returns the known variant names, sorted.
func VariantNames() (names []string) {
	for n := range variants {
		names = append(names, n)
	}
	sort.Strings(names)
	return
}
