//go:build rp2040 || rp2350

package main

import (
	"context"
	"machine"
	"time"

	uartx "github.com/jangala-dev/tinygo-uartx/uartx"

	"luxmon/app"
	"luxmon/rgb"
)

// Board wiring.
const (
	pinUARTTX = machine.Pin(0)
	pinUARTRX = machine.Pin(1)
	pinSDA    = machine.Pin(4)
	pinSCL    = machine.Pin(5)

	pinRGB0Enable = machine.Pin(6)
	pinRGB1Enable = machine.Pin(7)
	pinRGB2Enable = machine.Pin(8)
	pinRGB3Enable = machine.Pin(9)
	pinColorRed   = machine.Pin(10)
	pinColorGreen = machine.Pin(11)
	pinColorBlue  = machine.Pin(12)
)

func main() {
	// Allow USB CDC to enumerate before we print.
	time.Sleep(2 * time.Second)
	println("boot")

	uart := uartx.UART0
	_ = uart.Configure(uartx.UARTConfig{
		BaudRate: 115200,
		TX:       pinUARTTX,
		RX:       pinUARTRX,
	})

	pinSDA.Configure(machine.PinConfig{Mode: machine.PinI2C})
	pinSCL.Configure(machine.PinConfig{Mode: machine.PinI2C})
	if err := machine.I2C0.Configure(machine.I2CConfig{
		SDA:       pinSDA,
		SCL:       pinSCL,
		Frequency: 400_000,
	}); err != nil {
		halt("i2c configure failed: " + err.Error())
	}

	bank := rgb.NewBank(
		[4]rgb.Pin{
			rgb.ConfigureMachinePin(pinRGB0Enable),
			rgb.ConfigureMachinePin(pinRGB1Enable),
			rgb.ConfigureMachinePin(pinRGB2Enable),
			rgb.ConfigureMachinePin(pinRGB3Enable),
		},
		[3]rgb.Pin{
			rgb.ConfigureMachinePin(pinColorRed),
			rgb.ConfigureMachinePin(pinColorGreen),
			rgb.ConfigureMachinePin(pinColorBlue),
		},
	)

	out := func(line string) {
		_, _ = uart.Write([]byte(line))
		_, _ = uart.Write([]byte("\r\n"))
	}

	if err := run(context.Background(), app.Config{}, machine.I2C0, bank, out); err != nil {
		halt("setup failed: " + err.Error())
	}
}

func halt(msg string) {
	for {
		println(msg)
		time.Sleep(5 * time.Second)
	}
}
