// Package i2cq is the asynchronous serial-bus engine. Callers submit
// a transaction and return immediately; a single worker goroutine
// performs the transfer and invokes the completion callback. That
// goroutine models the bus-controller interrupt context: completion
// callbacks must only latch results and mark scheduler events, never
// start new work inline.
package i2cq

import (
	"context"
	"time"

	"tinygo.org/x/drivers"

	"luxmon/errcode"
	"luxmon/x/mathx"
)

// Op is one write/read transaction. When both W and R are set the
// bus performs the write followed by a repeated-start read without
// releasing the bus (the drivers.I2C.Tx contract).
type Op struct {
	Addr uint16
	W    []byte
	R    []byte
	// Done runs on the engine goroutine with the transfer outcome.
	// It must not block. After a Timeout outcome the op's buffers
	// are poisoned (the stalled transfer may still write into them);
	// submit fresh buffers on retry.
	Done func(err error)
}

// Config controls engine behaviour. Zero values get defaults.
type Config struct {
	// QueueLen bounds submissions awaiting the worker. Default 4.
	QueueLen int
	// Timeout is the per-transaction watchdog. A transfer that does
	// not finish within it completes with errcode.Timeout. Default
	// 250ms.
	Timeout time.Duration
}

// Engine owns one bus and serializes all transactions on it.
type Engine struct {
	bus drivers.I2C
	cfg Config
	q   chan Op
}

func New(bus drivers.I2C, cfg Config) *Engine {
	if cfg.QueueLen == 0 {
		cfg.QueueLen = 4
	}
	cfg.QueueLen = mathx.Clamp(cfg.QueueLen, 1, 64)
	if cfg.Timeout == 0 {
		cfg.Timeout = 250 * time.Millisecond
	}
	cfg.Timeout = mathx.Clamp(cfg.Timeout, time.Millisecond, 5*time.Second)
	return &Engine{
		bus: bus,
		cfg: cfg,
		q:   make(chan Op, cfg.QueueLen),
	}
}

// Start launches the worker. It exits when ctx is done.
func (e *Engine) Start(ctx context.Context) {
	go e.run(ctx)
}

// Submit enqueues op without blocking. False means the queue is full
// and the caller should treat the bus as busy.
func (e *Engine) Submit(op Op) bool {
	select {
	case e.q <- op:
		return true
	default:
		return false
	}
}

func (e *Engine) run(ctx context.Context) {
	watchdog := time.NewTimer(time.Hour)
	defer watchdog.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case op := <-e.q:
			err := e.transact(watchdog, op)
			if op.Done != nil {
				op.Done(err)
			}
		}
	}
}

// transact runs the transfer under the watchdog. A stalled controller
// leaks its transfer goroutine; the watchdog exists to keep the
// sampling cycle alive, not to recover the bus.
func (e *Engine) transact(watchdog *time.Timer, op Op) error {
	res := make(chan error, 1)
	go func() {
		res <- e.bus.Tx(op.Addr, op.W, op.R)
	}()

	resetTimer(watchdog, e.cfg.Timeout)
	select {
	case err := <-res:
		if err != nil {
			return &errcode.E{C: errcode.BusError, Op: "i2cq.Tx", Err: err}
		}
		return nil
	case <-watchdog.C:
		return errcode.Timeout
	}
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}
