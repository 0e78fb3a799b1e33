package main

import (
	"context"

	"tinygo.org/x/drivers"

	"luxmon/app"
	"luxmon/bus"
	"luxmon/rgb"
	"luxmon/x/conv"
)

// run wires the application against the given peripherals and
// forwards telemetry lines to out until ctx is done.
func run(ctx context.Context, cfg app.Config, i2c drivers.I2C, bank *rgb.Bank, out func(line string)) error {
	b := bus.NewBus(16)
	readings := b.Subscribe(app.TopicReading)
	faults := b.Subscribe(app.TopicError)

	a := app.New(cfg, i2c, bank, b)
	if err := a.Setup(ctx); err != nil {
		return err
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case m := <-readings.Channel():
				out(formatReading(m.Payload.(app.Reading)))
			case m := <-faults.Channel():
				out("fault: " + m.Payload.(app.Fault).Err)
			}
		}
	}()

	a.Run(ctx)
	return nil
}

// formatReading builds the telemetry line without fmt, so the same
// path serves MCU builds.
func formatReading(r app.Reading) string {
	var buf [20]byte
	line := "reading " + string(conv.Utoa(buf[:], uint64(r.Value)))
	if r.IndicatorOn {
		return line + " indicator=on"
	}
	return line + " indicator=off"
}
