package rgb

import "sync"

// FakePin records output transitions for tests and the host build.
type FakePin struct {
	mu     sync.Mutex
	state  bool
	states []bool
}

func (p *FakePin) Set(high bool) {
	p.mu.Lock()
	p.state = high
	p.states = append(p.states, high)
	p.mu.Unlock()
}

// State returns the last driven level.
func (p *FakePin) State() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Transitions returns a copy of every Set call so far.
func (p *FakePin) Transitions() []bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]bool, len(p.states))
	copy(out, p.states)
	return out
}

// NewFakeBank returns a fully populated bank backed by fake pins,
// plus the pins for inspection.
func NewFakeBank() (*Bank, [4]*FakePin, [3]*FakePin) {
	var enables [4]*FakePin
	var colors [3]*FakePin
	var ePins [4]Pin
	var cPins [3]Pin
	for i := range enables {
		enables[i] = &FakePin{}
		ePins[i] = enables[i]
	}
	for i := range colors {
		colors[i] = &FakePin{}
		cPins[i] = colors[i]
	}
	return NewBank(ePins, cPins), enables, colors
}
