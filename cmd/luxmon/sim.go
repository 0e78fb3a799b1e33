//go:build !(rp2040 || rp2350)

package main

import (
	"fmt"
	"sync"
)

// benchSensor simulates the Si1133 register protocol with a light
// level that ramps up and down across the threshold, so builds
// without a wired sensor bus still demonstrate the full
// sense/compare/actuate cycle.
type benchSensor struct {
	mu     sync.Mutex
	level  int
	step   int
	forced bool
}

func newBenchSensor() *benchSensor {
	return &benchSensor{level: 10, step: 13}
}

func (s *benchSensor) Tx(addr uint16, w, r []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case len(w) == 1 && w[0] == 0x00 && len(r) == 1: // PART_ID
		r[0] = 0x33
	case len(w) == 2 && w[0] == 0x0B && w[1] == 0x11: // COMMAND: FORCE
		s.forced = true
		s.level += s.step
		if s.level >= 100 || s.level <= 0 {
			s.step = -s.step
		}
	case len(w) == 1 && w[0] == 0x13 && len(r) == 2: // HOSTOUT0
		if !s.forced {
			return fmt.Errorf("read without forced conversion")
		}
		s.forced = false
		r[0] = byte(s.level >> 8)
		r[1] = byte(s.level)
	case len(w) == 2: // param-table staging writes
	default:
		return fmt.Errorf("unexpected transfer w=%v r=%d", w, len(r))
	}
	return nil
}
