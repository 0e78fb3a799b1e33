//go:build linux && arm64 && !(rp2040 || rp2350)

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"luxmon/app"
	"luxmon/rgb"
)

// Carrier-board wiring: one GPIO chip, four enable lines, three
// shared color drive lines.
const gpioChip = "gpiochip0"

var (
	enableOffsets = [4]int{6, 7, 8, 9}
	colorOffsets  = [3]int{10, 11, 12}
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bank, err := rgb.BuildBank(func(offset int) (rgb.Pin, error) {
		return rgb.RequestLinuxPin(gpioChip, offset)
	}, enableOffsets, colorOffsets)
	if err != nil {
		fmt.Fprintln(os.Stderr, "gpio setup failed:", err)
		os.Exit(1)
	}

	out := func(line string) { fmt.Println(line) }

	// The carrier has no kernel I2C binding for the sensor bus yet,
	// so the sensor side runs the bench simulator against the real
	// LED bank.
	fmt.Println("luxmon: gpiocdev bank on", gpioChip, "- period", app.DefaultPeriod, "threshold", app.DefaultThreshold)
	if err := run(ctx, app.Config{}, newBenchSensor(), bank, out); err != nil {
		fmt.Fprintln(os.Stderr, "setup failed:", err)
		os.Exit(1)
	}
}
