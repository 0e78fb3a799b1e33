//go:build linux && arm64 && !(rp2040 || rp2350)

package rgb

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// LinuxPin drives one output line through the Linux GPIO character
// device.
type LinuxPin struct {
	line *gpiocdev.Line
}

// RequestLinuxPin requests offset on chip (for example "gpiochip0")
// as an output, initially low.
func RequestLinuxPin(chip string, offset int) (*LinuxPin, error) {
	c, err := gpiocdev.NewChip(chip)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}
	line, err := c.RequestLine(offset, gpiocdev.AsOutput(0))
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("request pin %d: %w", offset, err)
	}
	// The line holds its own chip reference.
	c.Close()
	return &LinuxPin{line: line}, nil
}

func (p *LinuxPin) Set(high bool) {
	v := 0
	if high {
		v = 1
	}
	_ = p.line.SetValue(v)
}

// Close releases the line.
func (p *LinuxPin) Close() error {
	return p.line.Close()
}
