package si1133

import (
	"context"
	"sync"
	"testing"
	"time"

	"tinygo.org/x/drivers"

	"luxmon/errcode"
	"luxmon/internal/i2cq"
	"luxmon/power"
	"luxmon/sched"
)

// Compile-time check.
var _ drivers.I2C = (*fakeSensor)(nil)

// Scripted Si1133-like fake.
type fakeSensor struct {
	mu        sync.Mutex
	part      byte
	reading   uint16
	forced    bool
	failForce int // fail this many force writes before succeeding
	failRead  int // fail this many result reads before succeeding
}

func newFakeSensor(reading uint16) *fakeSensor {
	return &fakeSensor{part: partID, reading: reading}
}

func (f *fakeSensor) Tx(addr uint16, w, r []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if addr != Address {
		return errcode.BusError
	}

	// Part ID read.
	if len(w) == 1 && w[0] == regPartID && len(r) == 1 {
		r[0] = f.part
		return nil
	}

	// Force command.
	if len(w) == 2 && w[0] == regCommand && w[1] == cmdForce {
		if f.failForce > 0 {
			f.failForce--
			return errcode.Code("nack")
		}
		f.forced = true
		return nil
	}

	// Result register read.
	if len(w) == 1 && w[0] == regHostOut0 && len(r) == 2 {
		if f.failRead > 0 {
			f.failRead--
			return errcode.Code("nack")
		}
		if !f.forced {
			return errcode.Code("no conversion forced")
		}
		f.forced = false
		r[0] = byte(f.reading >> 8)
		r[1] = byte(f.reading)
		return nil
	}

	// Param-table staging writes.
	if len(w) == 2 && (w[0] == regHostIn0 || w[0] == regCommand) {
		return nil
	}
	return errcode.Code("unexpected transfer")
}

type harness struct {
	drv  *Driver
	gate *power.Gate
	sch  *sched.Scheduler
}

func newHarness(t *testing.T, bus drivers.I2C, cfg Config) *harness {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	gate := power.New()
	sch := sched.New(gate)
	eng := i2cq.New(bus, i2cq.Config{Timeout: 100 * time.Millisecond})
	eng.Start(ctx)

	cfg.DataEvent = sched.SensorDataReady
	return &harness{drv: New(eng, sch, gate, cfg), gate: gate, sch: sch}
}

func waitForState(t *testing.T, d *Driver, want State) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for d.State() != want {
		if time.Now().After(deadline) {
			t.Fatalf("timeout waiting for state %v, stuck in %v", want, d.State())
		}
		time.Sleep(time.Millisecond)
	}
}

func expectFatal(t *testing.T, want errcode.Code, f func()) {
	t.Helper()
	defer func() {
		if r := recover(); r != want {
			t.Fatalf("expected %v panic, got %v", want, r)
		}
	}()
	f()
}

func TestFullMeasurementCycle(t *testing.T) {
	h := newHarness(t, newFakeSensor(42), Config{})

	h.drv.ForceMeasurement()
	if got := h.gate.BlockCount(power.EM2); got != 1 {
		t.Fatalf("EM2 must be blocked while the transaction is outstanding, count=%d", got)
	}
	waitForState(t, h.drv, StateAwaitingResult)

	h.drv.BeginRead()
	waitForState(t, h.drv, StateResultReady)
	if !h.sch.HasPending() {
		t.Fatal("data-ready event not marked")
	}
	if fl := h.sch.TakePending(); !fl.Has(sched.SensorDataReady) {
		t.Fatalf("expected sensor_data_ready pending, got %b", fl)
	}

	if v := h.drv.TakeResult(); v != 42 {
		t.Fatalf("expected reading 42, got %d", v)
	}
	if h.drv.State() != StateIdle {
		t.Fatalf("driver must return to idle, got %v", h.drv.State())
	}
	if got := h.gate.BlockCount(power.EM2); got != 0 {
		t.Fatalf("gate must return to pre-cycle value, count=%d", got)
	}
}

func TestRepeatedCyclesDoNotLeakGate(t *testing.T) {
	fake := newFakeSensor(7)
	h := newHarness(t, fake, Config{})

	for i := 0; i < 4; i++ {
		h.drv.ForceMeasurement()
		waitForState(t, h.drv, StateAwaitingResult)
		h.drv.BeginRead()
		waitForState(t, h.drv, StateResultReady)
		h.drv.TakeResult()
	}
	if got := h.gate.BlockCount(power.EM2); got != 0 {
		t.Fatalf("gate leaked across cycles, count=%d", got)
	}
}

func TestDoubleForceIsFatal(t *testing.T) {
	h := newHarness(t, newFakeSensor(1), Config{})
	h.drv.ForceMeasurement()
	expectFatal(t, errcode.InvalidState, h.drv.ForceMeasurement)
}

func TestBeginReadOutsideAwaitingIsFatal(t *testing.T) {
	h := newHarness(t, newFakeSensor(1), Config{})
	expectFatal(t, errcode.InvalidState, h.drv.BeginRead)
}

func TestDoubleBeginReadIsFatal(t *testing.T) {
	h := newHarness(t, newFakeSensor(1), Config{})
	h.drv.ForceMeasurement()
	waitForState(t, h.drv, StateAwaitingResult)
	h.drv.BeginRead()
	expectFatal(t, errcode.InvalidState, h.drv.BeginRead)
}

func TestTakeResultOutsideReadyIsFatal(t *testing.T) {
	h := newHarness(t, newFakeSensor(1), Config{})
	expectFatal(t, errcode.InvalidState, func() { h.drv.TakeResult() })
}

func TestTransientBusFailureIsRetried(t *testing.T) {
	fake := newFakeSensor(9)
	fake.failForce = 2
	h := newHarness(t, fake, Config{MaxRetries: 3, RetryBackoff: time.Millisecond})

	h.drv.ForceMeasurement()
	waitForState(t, h.drv, StateAwaitingResult)
	if got := h.gate.BlockCount(power.EM2); got != 1 {
		t.Fatalf("gate must stay blocked across retries, count=%d", got)
	}
}

func TestExhaustedRetriesAbandonAndReleaseGate(t *testing.T) {
	fake := newFakeSensor(9)
	fake.failForce = 10
	errs := make(chan error, 1)
	h := newHarness(t, fake, Config{
		MaxRetries:   2,
		RetryBackoff: time.Millisecond,
		OnError:      func(err error) { errs <- err },
	})

	h.drv.ForceMeasurement()
	select {
	case err := <-errs:
		if errcode.Of(err) != errcode.RetriesExhausted {
			t.Fatalf("expected retries_exhausted, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("abandonment never reported")
	}
	waitForState(t, h.drv, StateIdle)
	if got := h.gate.BlockCount(power.EM2); got != 0 {
		t.Fatalf("abandoned transaction must release the gate, count=%d", got)
	}
}

func TestConfigureChecksPartID(t *testing.T) {
	good := newFakeSensor(0)
	h := newHarness(t, good, Config{})
	if err := h.drv.Configure(); err != nil {
		t.Fatalf("configure against good part failed: %v", err)
	}

	bad := newFakeSensor(0)
	bad.part = 0x00
	h2 := newHarness(t, bad, Config{})
	if err := h2.drv.Configure(); err == nil {
		t.Fatal("configure must reject a wrong part id")
	}
}
