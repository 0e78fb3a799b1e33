// errcode.go
package errcode

// Code is a stable error identifier. It is a string newtype,
// comparable, allocation-free, and implements error.
type Code string

func (c Code) Error() string { return string(c) }

// Canonical codes (short, stable).
const (
	OK Code = "ok"

	// Programming/invariant violations. These are fatal: the dispatch
	// loop must halt rather than continue on stale state.
	InvalidState  Code = "invalid_state"
	UnboundEvent  Code = "unbound_event"
	InvalidConfig Code = "invalid_config"
	GateUnderflow Code = "gate_underflow"

	// Bus transaction outcomes.
	Busy             Code = "busy"
	Timeout          Code = "timeout"
	BusError         Code = "bus_error"
	RetriesExhausted Code = "retries_exhausted"

	Error Code = "error" // generic fallback
)

// Optional wrapper when we want to keep context and a cause.
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

func (e *E) Error() string {
	s := string(e.C)
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}
func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }

// Of extracts a Code from an error, defaulting to Error.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	if c, ok := err.(Code); ok {
		return c
	}
	type coder interface{ Code() Code }
	if x, ok := err.(coder); ok {
		return x.Code()
	}
	return Error
}
