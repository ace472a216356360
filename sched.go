// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright 2025 Pete Heist

package ccsim

import (
	"container/heap"
	"fmt"
)

// An Event is a callback scheduled to run at a given Clock time.  The
// *Event returned by Schedule is the handle used to cancel it.
type Event struct {
	at        Clock
	seq       uint64
	fn        func()
	cancelled bool
	fired     bool
}

// At returns the time the Event fires.
func (e *Event) At() Clock {
	return e.at
}

// Pending returns true if the Event has neither fired nor been cancelled.
func (e *Event) Pending() bool {
	return e != nil && !e.fired && !e.cancelled
}

// Scheduler is a single-threaded logical time event scheduler.  Events are
// dispatched in order of time, and events with the same time in the order
// they were scheduled.
type Scheduler struct {
	now    Clock
	seq    uint64
	events eventHeap
	err    error
}

// NewScheduler returns a new Scheduler with the clock at zero.
func NewScheduler() *Scheduler {
	return &Scheduler{
		0,           // now
		0,           // seq
		eventHeap{}, // events
		nil,         // err
	}
}

// Now returns the current logical time.
func (s *Scheduler) Now() Clock {
	return s.now
}

// Pending returns the number of events in the queue, including cancelled
// events not yet discarded.
func (s *Scheduler) Pending() int {
	return len(s.events)
}

// Schedule schedules fn to run after the given delay.  A negative delay
// returns ErrNegativeDelay, which is also returned by the current or next
// call to RunUntil.
func (s *Scheduler) Schedule(delay Clock, fn func()) (e *Event, err error) {
	if delay < 0 {
		err = fmt.Errorf("%w: %s at %s", ErrNegativeDelay,
			delay.StringMS()+"ms", s.now)
		s.fail(err)
		return
	}
	s.seq++
	e = &Event{s.now + delay, s.seq, fn, false, false}
	heap.Push(&s.events, e)
	return
}

// after schedules fn to run after the given delay, for callers whose
// delays are non-negative by construction.  Any error fails the run.
func (s *Scheduler) after(delay Clock, fn func()) *Event {
	e, _ := s.Schedule(delay, fn)
	return e
}

// Cancel makes the given Event inert.  Cancelling a nil, fired or already
// cancelled Event does nothing.
func (s *Scheduler) Cancel(e *Event) {
	if e == nil || e.fired {
		return
	}
	e.cancelled = true
}

// fail records the first error of the run.
func (s *Scheduler) fail(err error) {
	if s.err == nil {
		s.err = err
	}
}

// RunUntil dispatches events with a time up to and including stop, then
// leaves the clock at stop.  It returns early with the first error recorded
// during the run.
func (s *Scheduler) RunUntil(stop Clock) error {
	for s.err == nil && len(s.events) > 0 {
		e := s.events[0]
		if e.at > stop {
			break
		}
		heap.Pop(&s.events)
		if e.cancelled {
			continue
		}
		s.now = e.at
		e.fired = true
		e.fn()
	}
	if s.err == nil && s.now < stop {
		s.now = stop
	}
	return s.err
}

// eventHeap orders events by time, then sequence, using the heap package.
type eventHeap []*Event

// Len implements heap.Interface.
func (h eventHeap) Len() int {
	return len(h)
}

// Less implements heap.Interface.
func (h eventHeap) Less(i, j int) bool {
	if h[i].at != h[j].at {
		return h[i].at < h[j].at
	}
	return h[i].seq < h[j].seq
}

// Swap implements heap.Interface.
func (h eventHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
}

// Push implements heap.Interface.
func (h *eventHeap) Push(x any) {
	*h = append(*h, x.(*Event))
}

// Pop implements heap.Interface.
func (h *eventHeap) Pop() any {
	o := *h
	n := len(o)
	e := o[n-1]
	o[n-1] = nil
	*h = o[:n-1]
	return e
}

// Recurring is a task that reschedules itself after each run, with the next
// delay computed by the task.  Returning false from the task, or calling
// Stop, ends it.
type Recurring struct {
	sched *Scheduler
	task  func(now Clock) (next Clock, ok bool)
	event *Event
}

// NewRecurring starts a Recurring task that first runs after the given
// delay.
func NewRecurring(sched *Scheduler, first Clock,
	task func(now Clock) (next Clock, ok bool)) (r *Recurring, err error) {
	r = &Recurring{sched, task, nil}
	r.event, err = sched.Schedule(first, r.run)
	return
}

// Every returns a Recurring task that runs fn every interval, starting at
// the current time.
func Every(sched *Scheduler, interval Clock, fn func(now Clock)) (
	*Recurring, error) {
	if interval <= 0 {
		return nil, configErr("interval", "must be positive, got %s",
			interval)
	}
	return NewRecurring(sched, 0, func(now Clock) (Clock, bool) {
		fn(now)
		return interval, true
	})
}

// run runs the task and resubmits it.
func (r *Recurring) run() {
	r.event = nil
	next, ok := r.task(r.sched.Now())
	if !ok {
		return
	}
	r.event = r.sched.after(next, r.run)
}

// Stop cancels the next run of the task.
func (r *Recurring) Stop() {
	r.sched.Cancel(r.event)
	r.event = nil
}

// Active returns true if the task has a pending run.
func (r *Recurring) Active() bool {
	return r.event.Pending()
}
