package side

import (
	"errors"
	"testing"
)

func TestErrorMessage(t *testing.T) {
	err := newError("RegisterCallback", "e0", 9, Exists)
	want := "side: RegisterCallback: exists (event=e0 key=9)"
	if err.Error() != want {
		t.Fatalf("got %q, want %q", err.Error(), want)
	}
}

func TestNewErrorOkReturnsNil(t *testing.T) {
	if err := newError("Emit", "e0", 0, Ok); err != nil {
		t.Fatalf("expected nil for Ok, got %v", err)
	}
}

func TestIsCode(t *testing.T) {
	err := newError("UnregisterCallback", "e0", 0, NoEntry)
	if !IsCode(err, NoEntry) {
		t.Fatal("expected IsCode(NoEntry) to be true")
	}
	if IsCode(err, Invalid) {
		t.Fatal("expected IsCode(Invalid) to be false")
	}
}

func TestErrorsIsByCode(t *testing.T) {
	err := newError("RegisterCallback", "e0", 0, Exists)
	target := &Error{Code: Exists}
	if !errors.Is(err, target) {
		t.Fatal("expected errors.Is to match by Code")
	}
}

func TestWrapErrorPreservesCode(t *testing.T) {
	inner := newError("RegisterCallback", "e0", 0, Invalid)
	wrapped := wrapError("RegisterEvents", inner)
	if !IsCode(wrapped, Invalid) {
		t.Fatalf("expected wrapped error to keep Invalid code, got %v", wrapped)
	}
}
