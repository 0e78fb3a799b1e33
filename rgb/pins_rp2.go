//go:build rp2040 || rp2350

package rgb

import "machine"

// MachinePin adapts a machine.Pin to the bank's Pin interface.
type MachinePin struct {
	pin machine.Pin
}

// ConfigureMachinePin sets the pin up as a push-pull output, initially
// low, and returns the adapter.
func ConfigureMachinePin(pin machine.Pin) *MachinePin {
	pin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	pin.Low()
	return &MachinePin{pin: pin}
}

func (p *MachinePin) Set(high bool) {
	if high {
		p.pin.High()
	} else {
		p.pin.Low()
	}
}
