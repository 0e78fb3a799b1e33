// Package power is the sleep/power gate: it tracks, per energy mode,
// how many callers currently require the processor to stay shallower
// than that mode, and parks the dispatch loop in the deepest mode
// still allowed. On hardware the park is a WFI into the selected
// mode; on the host it is modeled as a wait on the wake channel that
// interrupt-side code pokes through Notify.
package power

import (
	"context"
	"sync/atomic"

	"luxmon/errcode"
)

// Mode is an energy mode. EM0 is run mode; higher modes are deeper
// sleep. EM4 is reserved (wake sources are too limited for this
// application), so the deepest mode the gate ever selects is EM3.
type Mode uint8

const (
	EM0 Mode = iota
	EM1
	EM2
	EM3
	EM4

	numModes
)

func (m Mode) String() string {
	switch m {
	case EM0:
		return "EM0"
	case EM1:
		return "EM1"
	case EM2:
		return "EM2"
	case EM3:
		return "EM3"
	case EM4:
		return "EM4"
	}
	return "EM?"
}

// deepestAllowed caps mode selection; EM4 needs an external wake pin.
const deepestAllowed = EM3

// Gate holds the per-mode block counters. Block(m) means "do not
// enter m or anything deeper". Counters are atomics so interrupt-side
// completions may release a block without taking a lock.
type Gate struct {
	blocked [numModes]atomic.Int32
	wake    chan struct{}
}

func New() *Gate {
	return &Gate{wake: make(chan struct{}, 1)}
}

// Block prevents the gate from selecting m or any deeper mode until
// a matching Unblock.
func (g *Gate) Block(m Mode) {
	if m >= numModes {
		panic(errcode.InvalidConfig)
	}
	g.blocked[m].Add(1)
}

// Unblock releases one prior Block. Going negative means a release
// without a matching block, which is a programming error.
func (g *Gate) Unblock(m Mode) {
	if m >= numModes {
		panic(errcode.InvalidConfig)
	}
	if g.blocked[m].Add(-1) < 0 {
		panic(errcode.GateUnderflow)
	}
}

// BlockCount returns the current count for m.
func (g *Gate) BlockCount(m Mode) int {
	if m >= numModes {
		panic(errcode.InvalidConfig)
	}
	return int(g.blocked[m].Load())
}

// Deepest returns the deepest mode no caller has blocked, capped at
// EM3. With no blocks at all it returns EM3.
func (g *Gate) Deepest() Mode {
	for m := EM1; m <= deepestAllowed; m++ {
		if g.blocked[m].Load() > 0 {
			return m - 1
		}
	}
	return deepestAllowed
}

// Notify wakes a sleeping dispatch loop. Non-blocking; safe from
// interrupt-side goroutines.
func (g *Gate) Notify() {
	select {
	case g.wake <- struct{}{}:
	default:
	}
}

// Sleep parks until Notify fires or ctx is done. A Notify that
// arrived before Sleep is not lost: the wake channel holds one
// token, so the park returns immediately.
func (g *Gate) Sleep(ctx context.Context) {
	select {
	case <-g.wake:
	case <-ctx.Done():
	}
}
