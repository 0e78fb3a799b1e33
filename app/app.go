// Package app is the top layer: it wires the timer, the scheduler,
// the sensor driver and the indicator bank into the sense → compare →
// actuate cycle.
//
// The steady-state period looks like this (period 2.0s, active
// duration 175ms):
//
//	comp1 @ 175ms   force a new conversion
//	uf    @ 2.0s    read back the result register
//	data ready      take the reading, compare, drive the indicator
//
// Every handler runs on the dispatch loop; interrupt-side code only
// marks events. The indicator is written in exactly one place, the
// data-ready handler, so its state is race-free by construction.
package app

import (
	"context"
	"time"

	"tinygo.org/x/drivers"

	"luxmon/bus"
	"luxmon/drivers/si1133"
	"luxmon/errcode"
	"luxmon/internal/i2cq"
	"luxmon/letimer"
	"luxmon/power"
	"luxmon/rgb"
	"luxmon/sched"
	"luxmon/x/timex"
)

// Deployment timing and threshold constants.
const (
	DefaultPeriod       = 2 * time.Second
	DefaultActivePeriod = 175 * time.Millisecond
	DefaultThreshold    = 50
)

// IndicatorLED is where the threshold result is shown.
const IndicatorLED = rgb.LED1

// Telemetry topics.
var (
	TopicReading = bus.Topic{"light", "reading"}
	TopicError   = bus.Topic{"light", "error"}
)

// Reading is the retained telemetry payload published after each
// completed cycle.
type Reading struct {
	Value       uint32
	IndicatorOn bool
	TSms        int64
}

// Fault is published when a cycle is skipped or a transaction is
// abandoned.
type Fault struct {
	Err  string
	TSms int64
}

// Mode selects the underflow behaviour. ModeLightSense is the
// product behaviour; ModeColorCycle is the bring-up variant that
// steps the indicator through red→green→blue instead of sampling.
// The two are mutually exclusive and never combined.
type Mode uint8

const (
	ModeLightSense Mode = iota
	ModeColorCycle
)

// Config holds the fixed deployment parameters. Zero values get the
// defaults above.
type Config struct {
	Period       time.Duration
	ActivePeriod time.Duration
	Threshold    uint32
	Mode         Mode
}

func (c Config) withDefaults() Config {
	if c.Period == 0 {
		c.Period = DefaultPeriod
	}
	if c.ActivePeriod == 0 {
		c.ActivePeriod = DefaultActivePeriod
	}
	if c.Threshold == 0 {
		c.Threshold = DefaultThreshold
	}
	return c
}

// App owns the full peripheral graph.
type App struct {
	cfg  Config
	b    *bus.Bus
	leds *rgb.Bank

	gate   *power.Gate
	sch    *sched.Scheduler
	eng    *i2cq.Engine
	sensor *si1133.Driver
	timer  *letimer.Timer

	// Threshold comparison state. Written only by the data-ready
	// handler on the dispatch loop.
	lastReading uint32
	indicatorOn bool

	// Color-cycle state for the bring-up mode.
	color rgb.Color
}

// New prepares an unstarted application. i2c may be nil in
// ModeColorCycle, which touches no sensor.
func New(cfg Config, i2c drivers.I2C, leds *rgb.Bank, b *bus.Bus) *App {
	if leds == nil || b == nil {
		panic(errcode.InvalidConfig)
	}
	a := &App{cfg: cfg.withDefaults(), b: b, leds: leds}
	a.gate = power.New()
	a.sch = sched.New(a.gate)
	if a.cfg.Mode == ModeLightSense {
		if i2c == nil {
			panic(errcode.InvalidConfig)
		}
		a.eng = i2cq.New(i2c, i2cq.Config{})
		a.sensor = si1133.New(a.eng, a.sch, a.gate, si1133.Config{
			DataEvent: sched.SensorDataReady,
			OnError:   a.reportFault,
		})
	}
	return a
}

// Setup opens the peripherals: starts the bus engine, configures the
// sensor, opens the timer, and binds the dispatch table. Call once
// before Run.
func (a *App) Setup(ctx context.Context) error {
	if a.cfg.Mode == ModeLightSense {
		a.eng.Start(ctx)
		if err := a.sensor.Configure(); err != nil {
			return err
		}
	}

	a.timer = letimer.Open(letimer.Config{
		Period:       a.cfg.Period,
		ActivePeriod: a.cfg.ActivePeriod,
		UFEvent:      sched.TimerUnderflow,
		Comp0Event:   sched.TimerComp0,
		Comp1Event:   sched.TimerComp1,
		UFEnable:     true,
		Comp1Enable:  true,
		// Comp0 stays disabled: unused by the application logic.
	}, a.sch)

	a.sch.Bind(sched.TimerUnderflow, sched.HandlerFunc(a.handleUnderflow))
	a.sch.Bind(sched.TimerComp0, sched.HandlerFunc(a.handleComp0))
	a.sch.Bind(sched.TimerComp1, sched.HandlerFunc(a.handleComp1))
	a.sch.Bind(sched.SensorDataReady, sched.HandlerFunc(a.handleDataReady))
	return nil
}

// Run starts the timer and enters the dispatch loop. It returns when
// ctx is done.
func (a *App) Run(ctx context.Context) {
	a.timer.Start()
	a.sch.Run(ctx, a.gate)
	a.timer.Close()
}

// handleComp1 is the mid-period trigger: start a fresh conversion.
func (a *App) handleComp1(sched.Event) {
	if a.cfg.Mode == ModeColorCycle {
		a.leds.Enable(IndicatorLED, a.color, true)
		return
	}
	if st := a.sensor.State(); st != si1133.StateIdle {
		a.reportFault(&errcode.E{C: errcode.Busy, Op: "comp1",
			Msg: "transaction still " + st.String() + "; skipping period"})
		return
	}
	a.sensor.ForceMeasurement()
}

// handleUnderflow is the period rollover: collect the conversion
// forced at comp1 (or, in the bring-up mode, step the color).
func (a *App) handleUnderflow(sched.Event) {
	if a.cfg.Mode == ModeColorCycle {
		a.leds.Enable(IndicatorLED, a.color, false)
		a.color = a.color.Next()
		return
	}
	if st := a.sensor.State(); st != si1133.StateAwaitingResult {
		a.reportFault(&errcode.E{C: errcode.Busy, Op: "underflow",
			Msg: "no conversion awaiting result (" + st.String() + "); skipping read"})
		return
	}
	a.sensor.BeginRead()
}

// handleComp0 exists so every timer source has a binding; its
// interrupt stays disabled.
func (a *App) handleComp0(sched.Event) {}

// handleDataReady consumes the reading and actuates the indicator:
// on when strictly below the threshold, off otherwise (a reading
// equal to the threshold leaves it off).
func (a *App) handleDataReady(sched.Event) {
	v := a.sensor.TakeResult()
	a.lastReading = v
	a.indicatorOn = v < a.cfg.Threshold
	a.leds.Enable(IndicatorLED, rgb.Blue, a.indicatorOn)
	a.b.Publish(TopicReading, Reading{
		Value:       v,
		IndicatorOn: a.indicatorOn,
		TSms:        timex.NowMs(),
	}, true)
}

func (a *App) reportFault(err error) {
	a.b.Publish(TopicError, Fault{Err: err.Error(), TSms: timex.NowMs()}, false)
}
