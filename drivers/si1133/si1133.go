// Package si1133 drives the Si1133 ambient-light sensor through the
// asynchronous bus engine. A measurement is a three-step transaction:
//
//	d.ForceMeasurement()     // compare-match: start a conversion
//	d.BeginRead()            // underflow: fetch the result register
//	v := d.TakeResult()      // data-ready dispatch: consume the value
//
// The first two are non-blocking; completions arrive on the bus
// engine goroutine, which only latches state and marks the scheduler
// event. At most one transaction is outstanding at a time; calling a
// step outside its valid state is a programming error and fatal.
//
// Bus failures are retried a bounded number of times with backoff.
// When retries are exhausted the transaction is abandoned: the driver
// returns to idle and releases the sleep gate, so the next timer
// period starts a fresh cycle instead of starving the system.
package si1133

import (
	"sync/atomic"
	"time"

	"luxmon/errcode"
	"luxmon/internal/i2cq"
	"luxmon/power"
	"luxmon/sched"
)

// I2C address and registers.
const (
	Address = 0x55

	regPartID    = 0x00
	regHostIn0   = 0x0A
	regCommand   = 0x0B
	regResponse0 = 0x11
	regHostOut0  = 0x13
	regHostOut1  = 0x14

	partID = 0x33

	cmdForce    = 0x11
	cmdParamSet = 0x80

	paramChList     = 0x01
	paramADCConfig0 = 0x02

	// ADCMUX selection for the large white photodiode.
	adcMuxWhite = 0x0B

	chanList0 = 0x01
)

// State is the transaction state. Owned by the driver; the
// application observes it only through State().
type State uint32

const (
	StateIdle State = iota
	StateCommandSent
	StateAwaitingResult
	StateReading
	StateResultReady
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCommandSent:
		return "command_sent"
	case StateAwaitingResult:
		return "awaiting_result"
	case StateReading:
		return "reading"
	case StateResultReady:
		return "result_ready"
	}
	return "unknown"
}

// Marker is the scheduler surface the driver needs.
type Marker interface {
	MarkPending(e sched.Event)
}

// Config controls driver behaviour. Zero values get defaults.
type Config struct {
	// Address defaults to 0x55.
	Address uint16
	// DataEvent is marked pending when a result has been latched.
	DataEvent sched.Event
	// MaxRetries bounds per-step bus retries. Default 3.
	MaxRetries int
	// RetryBackoff separates retries. Default 15ms.
	RetryBackoff time.Duration
	// OnError receives the abandonment error. Runs on the bus engine
	// goroutine (or its retry timer); must not block.
	OnError func(err error)
}

// Driver is the asynchronous sensor-read state machine.
type Driver struct {
	eng  *i2cq.Engine
	mk   Marker
	gate *power.Gate
	cfg  Config

	state  atomic.Uint32
	result atomic.Uint32

	// retries is only touched along the sequential completion chain
	// (engine goroutine and its retry timer), never concurrently.
	retries int
}

// New wires the driver. The engine must already be started.
func New(eng *i2cq.Engine, mk Marker, gate *power.Gate, cfg Config) *Driver {
	if eng == nil || mk == nil || gate == nil {
		panic(errcode.InvalidConfig)
	}
	if cfg.Address == 0 {
		cfg.Address = Address
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 15 * time.Millisecond
	}
	return &Driver{eng: eng, mk: mk, gate: gate, cfg: cfg}
}

// State returns the current transaction state.
func (d *Driver) State() State { return State(d.state.Load()) }

// ForceMeasurement starts a conversion: IDLE -> COMMAND_SENT, with
// the write completion advancing to AWAITING_RESULT. The sleep gate
// blocks EM2 for the life of the transaction so the bus clock stays
// available. Fatal outside IDLE.
func (d *Driver) ForceMeasurement() {
	if !d.state.CompareAndSwap(uint32(StateIdle), uint32(StateCommandSent)) {
		panic(errcode.InvalidState)
	}
	d.gate.Block(power.EM2)
	d.retries = 0
	d.submitForce()
}

func (d *Driver) submitForce() {
	ok := d.eng.Submit(i2cq.Op{
		Addr: d.cfg.Address,
		W:    []byte{regCommand, cmdForce},
		Done: d.forceDone,
	})
	if !ok {
		d.retryOrAbandon(errcode.Busy, d.submitForce)
	}
}

func (d *Driver) forceDone(err error) {
	if err != nil {
		d.retryOrAbandon(err, d.submitForce)
		return
	}
	d.state.Store(uint32(StateAwaitingResult))
}

// BeginRead fetches the result register: AWAITING_RESULT -> reading,
// with the read completion latching the value, advancing to
// RESULT_READY and marking DataEvent. Fatal outside AWAITING_RESULT;
// the application guards on State() so an abandoned transaction skips
// the period instead of tripping this.
func (d *Driver) BeginRead() {
	if !d.state.CompareAndSwap(uint32(StateAwaitingResult), uint32(StateReading)) {
		panic(errcode.InvalidState)
	}
	d.retries = 0
	d.submitRead()
}

func (d *Driver) submitRead() {
	// Fresh buffer each attempt: a timed-out transfer may still
	// scribble into the old one.
	r := make([]byte, 2)
	ok := d.eng.Submit(i2cq.Op{
		Addr: d.cfg.Address,
		W:    []byte{regHostOut0},
		R:    r,
		Done: func(err error) { d.readDone(err, r) },
	})
	if !ok {
		d.retryOrAbandon(errcode.Busy, d.submitRead)
	}
}

func (d *Driver) readDone(err error, r []byte) {
	if err != nil {
		d.retryOrAbandon(err, d.submitRead)
		return
	}
	d.result.Store(uint32(r[0])<<8 | uint32(r[1]))
	d.state.Store(uint32(StateResultReady))
	d.mk.MarkPending(d.cfg.DataEvent)
}

// TakeResult consumes the latched reading: RESULT_READY -> IDLE and
// releases the sleep gate. Fatal outside RESULT_READY.
func (d *Driver) TakeResult() uint32 {
	if !d.state.CompareAndSwap(uint32(StateResultReady), uint32(StateIdle)) {
		panic(errcode.InvalidState)
	}
	v := d.result.Load()
	d.gate.Unblock(power.EM2)
	return v
}

// retryOrAbandon re-submits the failed step after a backoff, up to
// MaxRetries. Exhaustion abandons the transaction: back to IDLE,
// gate released, error reported.
func (d *Driver) retryOrAbandon(cause error, step func()) {
	d.retries++
	if d.retries <= d.cfg.MaxRetries {
		time.AfterFunc(d.cfg.RetryBackoff, step)
		return
	}
	d.state.Store(uint32(StateIdle))
	d.gate.Unblock(power.EM2)
	if d.cfg.OnError != nil {
		d.cfg.OnError(&errcode.E{C: errcode.RetriesExhausted, Op: "si1133", Err: cause})
	}
}

// Configure verifies the part and sets up channel 0 for white-light
// measurements. Setup-time only; it blocks on each bus op in turn.
func (d *Driver) Configure() error {
	id := make([]byte, 1)
	if err := d.do(i2cq.Op{Addr: d.cfg.Address, W: []byte{regPartID}, R: id}); err != nil {
		return err
	}
	if id[0] != partID {
		return &errcode.E{C: errcode.BusError, Op: "si1133.Configure", Msg: "unexpected part id"}
	}

	// Param-table write: stage the value in HOSTIN0, then issue
	// PARAM_SET for the target parameter.
	steps := [][]byte{
		{regHostIn0, adcMuxWhite},
		{regCommand, cmdParamSet | paramADCConfig0},
		{regHostIn0, chanList0},
		{regCommand, cmdParamSet | paramChList},
	}
	for _, w := range steps {
		if err := d.do(i2cq.Op{Addr: d.cfg.Address, W: w}); err != nil {
			return err
		}
	}
	return nil
}

func (d *Driver) do(op i2cq.Op) error {
	done := make(chan error, 1)
	op.Done = func(err error) { done <- err }
	if !d.eng.Submit(op) {
		return errcode.Busy
	}
	return <-done
}
