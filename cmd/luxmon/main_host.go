//go:build !(rp2040 || rp2350) && !(linux && arm64)

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

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bank, _, _ := rgb.NewFakeBank()
	out := func(line string) { fmt.Println(line) }

	fmt.Println("luxmon: simulated bench, period", app.DefaultPeriod, "threshold", app.DefaultThreshold)
	if err := run(ctx, app.Config{}, newBenchSensor(), bank, out); err != nil {
		fmt.Fprintln(os.Stderr, "setup failed:", err)
		os.Exit(1)
	}
}
