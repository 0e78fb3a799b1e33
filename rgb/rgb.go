// Package rgb drives the board's RGB LED bank. The bank shares one
// drive pin per color across four LEDs, each with its own enable pin;
// lighting (led, color) means asserting both. Only the dispatch loop
// writes the bank, so a plain mutex is enough for the host backends.
package rgb

import "sync"

// LED identifies one LED position on the bank.
type LED uint8

const (
	LED0 LED = iota
	LED1
	LED2
	LED3

	numLEDs
)

// Color identifies one of the shared color drive lines.
type Color uint8

const (
	Red Color = iota
	Green
	Blue

	numColors
)

func (c Color) String() string {
	switch c {
	case Red:
		return "red"
	case Green:
		return "green"
	case Blue:
		return "blue"
	}
	return "color?"
}

// Next returns the following color in the fixed red→green→blue cycle.
func (c Color) Next() Color { return (c + 1) % numColors }

// Pin is a single output line.
type Pin interface {
	Set(high bool)
}

// Bank is the LED matrix state plus its output pins.
type Bank struct {
	mu      sync.Mutex
	enables [numLEDs]Pin
	colors  [numColors]Pin
	lit     [numLEDs][numColors]bool

	// Last driven levels, so refresh only touches pins that change.
	enableState [numLEDs]bool
	colorState  [numColors]bool
}

// NewBank wires the bank. Pins may be nil where the board leaves a
// position unpopulated; state is still tracked for them.
func NewBank(enables [4]Pin, colors [3]Pin) *Bank {
	b := &Bank{}
	copy(b.enables[:], enables[:])
	copy(b.colors[:], colors[:])
	return b
}

// BuildBank requests the bank's seven output lines by offset and
// wires them, enables first. The first request error aborts
// construction.
func BuildBank(request func(offset int) (Pin, error), enables [4]int, colors [3]int) (*Bank, error) {
	var ePins [4]Pin
	for i, off := range enables {
		p, err := request(off)
		if err != nil {
			return nil, err
		}
		ePins[i] = p
	}
	var cPins [3]Pin
	for i, off := range colors {
		p, err := request(off)
		if err != nil {
			return nil, err
		}
		cPins[i] = p
	}
	return NewBank(ePins, cPins), nil
}

// Enable lights or clears (led, color) and refreshes the shared
// drive lines.
func (b *Bank) Enable(led LED, c Color, on bool) {
	if led >= numLEDs || c >= numColors {
		return
	}
	b.mu.Lock()
	b.lit[led][c] = on
	b.refresh()
	b.mu.Unlock()
}

// IsLit reports the requested state of (led, color).
func (b *Bank) IsLit(led LED, c Color) bool {
	if led >= numLEDs || c >= numColors {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lit[led][c]
}

// refresh drives each enable pin when any of its colors is lit, and
// each color pin when any LED requests it. Only pins whose level
// changes are touched. Callers hold b.mu.
func (b *Bank) refresh() {
	for led := LED(0); led < numLEDs; led++ {
		any := false
		for c := Color(0); c < numColors; c++ {
			any = any || b.lit[led][c]
		}
		if any != b.enableState[led] {
			b.enableState[led] = any
			if b.enables[led] != nil {
				b.enables[led].Set(any)
			}
		}
	}
	for c := Color(0); c < numColors; c++ {
		any := false
		for led := LED(0); led < numLEDs; led++ {
			any = any || b.lit[led][c]
		}
		if any != b.colorState[c] {
			b.colorState[c] = any
			if b.colors[c] != nil {
				b.colors[c].Set(any)
			}
		}
	}
}
