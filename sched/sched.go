// Package sched is the deferred-dispatch event scheduler.
//
// Interrupt-side code (the timer engine, the bus engine) records that
// work is needed with a single atomic OR via MarkPending; the actual
// work runs later on the dispatch loop, which is the only consumer of
// the pending set. This split keeps interrupt context free of bus
// transactions and actuator writes.
package sched

import (
	"context"
	"sync/atomic"

	"luxmon/errcode"
)

// Event identifies one interrupt source. The set is closed: adding a
// source means adding a constant here and a handler binding at setup.
type Event uint8

const (
	TimerUnderflow Event = iota
	TimerComp0
	TimerComp1
	SensorDataReady

	numEvents
)

func (e Event) String() string {
	switch e {
	case TimerUnderflow:
		return "timer_underflow"
	case TimerComp0:
		return "timer_comp0"
	case TimerComp1:
		return "timer_comp1"
	case SensorDataReady:
		return "sensor_data_ready"
	}
	return "unknown_event"
}

// Flags is a snapshot of the pending set.
type Flags uint32

// Mask returns the flag bit for e.
func (e Event) Mask() Flags { return 1 << e }

// Has reports whether e is set in the snapshot.
func (f Flags) Has(e Event) bool { return f&e.Mask() != 0 }

// Handler services one dispatched event on the dispatch loop.
type Handler interface {
	HandleEvent(e Event)
}

// HandlerFunc adapts a function to a Handler.
type HandlerFunc func(Event)

func (f HandlerFunc) HandleEvent(e Event) { f(e) }

// Waker is poked from interrupt context when an event becomes
// pending, so a sleeping dispatch loop observes it. Notify must not
// block.
type Waker interface {
	Notify()
}

// Sleeper parks the dispatch loop until Notify fires or ctx is done.
type Sleeper interface {
	Sleep(ctx context.Context)
}

// Scheduler is the process-wide pending-event set plus the init-time
// dispatch table. Marking coalesces: re-marking an already-pending
// event is one dispatch, never a queue. Distinct events are never
// lost.
type Scheduler struct {
	pending  atomic.Uint32
	handlers [numEvents]Handler
	waker    Waker
}

// New returns a scheduler. waker may be nil when no sleep gating is
// wanted (tests).
func New(waker Waker) *Scheduler {
	return &Scheduler{waker: waker}
}

// Bind registers the handler for e. Call during setup, before the
// dispatch loop runs; binding nil or an out-of-range event is fatal.
func (s *Scheduler) Bind(e Event, h Handler) {
	if e >= numEvents || h == nil {
		panic(errcode.InvalidConfig)
	}
	s.handlers[e] = h
}

// MarkPending records that e needs service. Interrupt-side API: a
// single atomic read-modify-write plus a non-blocking wake.
func (s *Scheduler) MarkPending(e Event) {
	s.pending.Or(uint32(e.Mask()))
	if s.waker != nil {
		s.waker.Notify()
	}
}

// TakePending atomically reads and clears the pending set, returning
// exactly the flags that were set. Dispatch-loop side only.
func (s *Scheduler) TakePending() Flags {
	return Flags(s.pending.Swap(0))
}

// HasPending is a non-destructive peek, used for the sleep decision.
func (s *Scheduler) HasPending() bool {
	return s.pending.Load() != 0
}

// Dispatch services every event set in fl, in fixed bit order
// (underflow first, data-ready last). A pending event with no bound
// handler is a programming error and fatal.
func (s *Scheduler) Dispatch(fl Flags) {
	for e := Event(0); e < numEvents; e++ {
		if !fl.Has(e) {
			continue
		}
		h := s.handlers[e]
		if h == nil {
			panic(errcode.UnboundEvent)
		}
		h.HandleEvent(e)
	}
}

// Run is the main dispatch loop: drain and service all pending
// events, then sleep until the next wake. All pending events are
// serviced before each sleep decision. Returns when ctx is done.
func (s *Scheduler) Run(ctx context.Context, sl Sleeper) {
	for ctx.Err() == nil {
		if fl := s.TakePending(); fl != 0 {
			s.Dispatch(fl)
			continue
		}
		sl.Sleep(ctx)
	}
}
