// errcode_test.go
package errcode

import (
	"errors"
	"testing"
)

func TestCodeImplementsError(t *testing.T) {
	var err error = Busy
	if err.Error() != "busy" {
		t.Fatalf("got %q", err.Error())
	}
}

func TestWrapperKeepsCauseInMessage(t *testing.T) {
	cause := errors.New("nack")
	err := &E{C: RetriesExhausted, Op: "si1133", Err: cause}

	if got := err.Error(); got != "retries_exhausted: nack" {
		t.Fatalf("got %q", got)
	}
	if !errors.Is(err, cause) {
		t.Fatal("cause not reachable through Unwrap")
	}
}

func TestWrapperMessageAndCause(t *testing.T) {
	err := &E{C: Busy, Msg: "queue full", Err: errors.New("nack")}
	if got := err.Error(); got != "busy: queue full: nack" {
		t.Fatalf("got %q", got)
	}
}

func TestOf(t *testing.T) {
	if Of(nil) != OK {
		t.Fatal("nil should map to ok")
	}
	if Of(Busy) != Busy {
		t.Fatal("bare code should map to itself")
	}
	if Of(&E{C: Timeout}) != Timeout {
		t.Fatal("wrapper should expose its code")
	}
	if Of(errors.New("plain")) != Error {
		t.Fatal("unknown errors should map to the generic code")
	}
}
