package power

import (
	"context"
	"testing"
	"time"

	"luxmon/errcode"
)

func TestDeepestWithNoBlocks(t *testing.T) {
	g := New()
	if d := g.Deepest(); d != EM3 {
		t.Fatalf("unblocked gate should allow EM3, got %v", d)
	}
}

func TestBlockLimitsDepth(t *testing.T) {
	g := New()

	g.Block(EM2) // bus transaction outstanding: EM2 and deeper forbidden
	if d := g.Deepest(); d != EM1 {
		t.Fatalf("EM2 blocked, expected deepest EM1, got %v", d)
	}

	g.Block(EM1)
	if d := g.Deepest(); d != EM0 {
		t.Fatalf("EM1 blocked, expected deepest EM0, got %v", d)
	}

	g.Unblock(EM1)
	g.Unblock(EM2)
	if d := g.Deepest(); d != EM3 {
		t.Fatalf("all released, expected EM3, got %v", d)
	}
}

func TestNestedBlocksBalance(t *testing.T) {
	g := New()
	for i := 0; i < 5; i++ {
		g.Block(EM2)
	}
	for i := 0; i < 4; i++ {
		g.Unblock(EM2)
	}
	if g.Deepest() != EM1 {
		t.Fatal("one block remaining should still cap at EM1")
	}
	g.Unblock(EM2)
	if got := g.BlockCount(EM2); got != 0 {
		t.Fatalf("count should return to zero, got %d", got)
	}
}

func TestUnblockUnderflowIsFatal(t *testing.T) {
	g := New()
	defer func() {
		if r := recover(); r != errcode.GateUnderflow {
			t.Fatalf("expected %v panic, got %v", errcode.GateUnderflow, r)
		}
	}()
	g.Unblock(EM2)
}

func TestSleepWakesOnNotify(t *testing.T) {
	g := New()
	done := make(chan struct{})
	go func() {
		g.Sleep(context.Background())
		close(done)
	}()
	g.Notify()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Sleep did not wake on Notify")
	}
}

func TestNotifyBeforeSleepIsNotLost(t *testing.T) {
	g := New()
	g.Notify()

	done := make(chan struct{})
	go func() {
		g.Sleep(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pre-sleep Notify was lost")
	}
}

func TestSleepHonoursContext(t *testing.T) {
	g := New()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		g.Sleep(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Sleep did not return on context cancel")
	}
}
