package i2cq

import (
	"context"
	"errors"
	"testing"
	"time"

	"tinygo.org/x/drivers"

	"luxmon/errcode"
)

// Compile-time check.
var _ drivers.I2C = (*fakeBus)(nil)

type fakeBus struct {
	tx func(addr uint16, w, r []byte) error
}

func (f *fakeBus) Tx(addr uint16, w, r []byte) error { return f.tx(addr, w, r) }

func TestCompletionDeliversData(t *testing.T) {
	bus := &fakeBus{tx: func(addr uint16, w, r []byte) error {
		if addr != 0x55 || len(w) != 1 || w[0] != 0x13 {
			t.Errorf("unexpected transfer addr=%#x w=%v", addr, w)
		}
		r[0] = 0xAB
		return nil
	}}
	e := New(bus, Config{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e.Start(ctx)

	r := make([]byte, 1)
	done := make(chan error, 1)
	if !e.Submit(Op{Addr: 0x55, W: []byte{0x13}, R: r, Done: func(err error) { done <- err }}) {
		t.Fatal("submit failed")
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if r[0] != 0xAB {
			t.Fatalf("read buffer not filled, got %#x", r[0])
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for completion")
	}
}

func TestBusErrorIsWrapped(t *testing.T) {
	cause := errors.New("nack")
	bus := &fakeBus{tx: func(addr uint16, w, r []byte) error { return cause }}
	e := New(bus, Config{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e.Start(ctx)

	done := make(chan error, 1)
	e.Submit(Op{Addr: 0x55, Done: func(err error) { done <- err }})

	select {
	case err := <-done:
		if errcode.Of(err) != errcode.BusError {
			t.Fatalf("expected bus_error, got %v", err)
		}
		if !errors.Is(err, cause) {
			t.Fatal("cause not preserved")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for completion")
	}
}

func TestWatchdogFiresOnStalledTransfer(t *testing.T) {
	stall := make(chan struct{})
	defer close(stall)
	bus := &fakeBus{tx: func(addr uint16, w, r []byte) error { <-stall; return nil }}
	e := New(bus, Config{Timeout: 10 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e.Start(ctx)

	done := make(chan error, 1)
	e.Submit(Op{Addr: 0x55, Done: func(err error) { done <- err }})

	select {
	case err := <-done:
		if errcode.Of(err) != errcode.Timeout {
			t.Fatalf("expected timeout, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("watchdog did not fire")
	}
}

func TestSubmitReportsBusyWhenQueueFull(t *testing.T) {
	bus := &fakeBus{tx: func(addr uint16, w, r []byte) error { return nil }}
	e := New(bus, Config{QueueLen: 1})
	// Engine deliberately not started: the queue never drains.

	if !e.Submit(Op{Addr: 0x55}) {
		t.Fatal("first submit should fit")
	}
	if e.Submit(Op{Addr: 0x55}) {
		t.Fatal("second submit should report busy")
	}
}
