// Package letimer is the periodic low-energy timer state machine.
//
// One free-running period produces up to three interrupt sources:
// comp0 at the period reload point, comp1 at the configured
// active-duration offset, and underflow at the period rollover. The
// engine goroutine models interrupt context: each firing performs a
// single MarkPending for its configured event and nothing else.
// Deadlines are absolute (period index times period length from the
// start instant), so the cycle does not accumulate drift.
package letimer

import (
	"sync/atomic"
	"time"

	"luxmon/errcode"
	"luxmon/sched"
)

// Output is a PWM route target. Enabled outputs are driven high at
// each period start and low at the compare offset.
type Output interface {
	Set(high bool)
}

// Marker is the scheduler surface the timer needs. Satisfied by
// *sched.Scheduler.
type Marker interface {
	MarkPending(e sched.Event)
}

// Config is the timer configuration. It is immutable once the timer
// is running; changing it requires Close and a fresh Open.
type Config struct {
	// Period is the total period; ActivePeriod is the on duration.
	// 0 < ActivePeriod < Period is required.
	Period       time.Duration
	ActivePeriod time.Duration

	// Output routes. Route numbers are board wiring identifiers kept
	// for telemetry; a nil Output with Enable set is invalid.
	Out0Route  uint8
	Out1Route  uint8
	Out0       Output
	Out1       Output
	Out0Enable bool
	Out1Enable bool

	// Event identifiers handed to MarkPending, one per interrupt
	// source, with independent enables.
	UFEvent     sched.Event
	Comp0Event  sched.Event
	Comp1Event  sched.Event
	UFEnable    bool
	Comp0Enable bool
	Comp1Enable bool
}

func (c Config) validate() {
	if c.ActivePeriod <= 0 || c.ActivePeriod >= c.Period {
		panic(errcode.InvalidConfig)
	}
	if (c.Out0Enable && c.Out0 == nil) || (c.Out1Enable && c.Out1 == nil) {
		panic(errcode.InvalidConfig)
	}
}

// Schedule returns the absolute offsets, from the start instant, of
// the compare and underflow firings for period index n.
func (c Config) Schedule(n int) (compare, underflow time.Duration) {
	base := time.Duration(n) * c.Period
	return base + c.ActivePeriod, base + c.Period
}

const (
	stateStopped uint32 = iota
	stateRunning
	stateClosed
)

// Timer is the periodic timer. Stopped until Start; once running it
// free-runs for the life of the process (Close exists for tests).
type Timer struct {
	cfg    Config
	marker Marker

	state atomic.Uint32
	stop  chan struct{}
	done  chan struct{}
}

// Open validates cfg and returns a stopped timer. Invalid
// configuration is a programming error and fatal.
func Open(cfg Config, m Marker) *Timer {
	cfg.validate()
	if m == nil {
		panic(errcode.InvalidConfig)
	}
	return &Timer{
		cfg:    cfg,
		marker: m,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Running reports whether Start has been called.
func (t *Timer) Running() bool { return t.state.Load() == stateRunning }

// Start transitions Stopped to Running and begins firing. Starting a
// timer that is not stopped is a programming error.
func (t *Timer) Start() {
	if !t.state.CompareAndSwap(stateStopped, stateRunning) {
		panic(errcode.InvalidState)
	}
	go t.run()
}

// Close tears the engine down. Test/shutdown aid only; the steady
// state of the application never stops the timer.
func (t *Timer) Close() {
	if !t.state.CompareAndSwap(stateRunning, stateClosed) {
		return
	}
	close(t.stop)
	<-t.done
}

func (t *Timer) run() {
	defer close(t.done)

	start := time.Now()
	tm := time.NewTimer(time.Hour)
	defer tm.Stop()

	for n := 0; ; n++ {
		// Period start: reload point. comp0 fires here.
		t.setOutputs(true)
		if t.cfg.Comp0Enable {
			t.marker.MarkPending(t.cfg.Comp0Event)
		}

		compareAt, underflowAt := t.cfg.Schedule(n)

		if !t.sleepUntil(tm, start.Add(compareAt)) {
			return
		}
		t.setOutputs(false)
		if t.cfg.Comp1Enable {
			t.marker.MarkPending(t.cfg.Comp1Event)
		}

		if !t.sleepUntil(tm, start.Add(underflowAt)) {
			return
		}
		if t.cfg.UFEnable {
			t.marker.MarkPending(t.cfg.UFEvent)
		}
	}
}

// sleepUntil parks the engine until the absolute deadline. Returns
// false when the timer was closed.
func (t *Timer) sleepUntil(tm *time.Timer, deadline time.Time) bool {
	resetTimer(tm, time.Until(deadline))
	select {
	case <-t.stop:
		return false
	case <-tm.C:
		return true
	}
}

func (t *Timer) setOutputs(high bool) {
	if t.cfg.Out0Enable {
		t.cfg.Out0.Set(high)
	}
	if t.cfg.Out1Enable {
		t.cfg.Out1.Set(high)
	}
}

// resetTimer safely stops, drains, and resets a timer.
func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		drainTimer(t)
	}
	if d < 0 {
		d = 0
	}
	t.Reset(d)
}

func drainTimer(t *time.Timer) {
	select {
	case <-t.C:
	default:
	}
}
