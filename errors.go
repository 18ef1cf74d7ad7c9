package side

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ehrlich-b/go-side/internal/codes"
)

// Code is the core's integer result code.
type Code = codes.Code

// The result codes returned throughout the public API.
const (
	Ok       = codes.Ok
	Invalid  = codes.Invalid
	Exists   = codes.Exists
	NoMemory = codes.NoMemory
	NoEntry  = codes.NoEntry
	Exiting  = codes.Exiting
)

// Error is a structured error carrying the operation, the event it
// concerns (if any), the tracer key involved (if any), the result code,
// and any wrapped cause.
type Error struct {
	Op    string // operation that failed ("RegisterCallback", "Emit", ...)
	Event string // event name, empty if not applicable
	Key   uint64 // tracer key involved, 0 if not applicable
	Code  Code
	Inner error
}

func (e *Error) Error() string {
	var parts []string
	if e.Event != "" {
		parts = append(parts, fmt.Sprintf("event=%s", e.Event))
	}
	if e.Key != 0 {
		parts = append(parts, fmt.Sprintf("key=%d", e.Key))
	}

	if len(parts) > 0 {
		return fmt.Sprintf("side: %s: %s (%s)", e.Op, e.Code, strings.Join(parts, " "))
	}
	return fmt.Sprintf("side: %s: %s", e.Op, e.Code)
}

// Unwrap supports errors.Is/errors.As against the wrapped cause.
func (e *Error) Unwrap() error {
	return e.Inner
}

// Is reports equality by Code, so callers can match with
// errors.Is(err, &side.Error{Code: side.Exists}) without caring about
// Op/Event/Key.
func (e *Error) Is(target error) bool {
	if te, ok := target.(*Error); ok {
		return e.Code == te.Code
	}
	return false
}

// newError builds a structured error for a non-Ok code, or returns nil
// for Ok so call sites can write `return newError(...)` directly as an
// error-typed return.
func newError(op string, event string, key uint64, code Code) error {
	if code == Ok {
		return nil
	}
	return &Error{Op: op, Event: event, Key: key, Code: code}
}

// wrapError wraps inner with op context, leaving its Code if inner is
// already a *Error.
func wrapError(op string, inner error) error {
	if inner == nil {
		return nil
	}
	var se *Error
	if errors.As(inner, &se) {
		return &Error{Op: op, Event: se.Event, Key: se.Key, Code: se.Code, Inner: se.Inner}
	}
	return &Error{Op: op, Code: Invalid, Inner: inner}
}

// IsCode reports whether err is a *Error (directly or wrapped) carrying
// code.
func IsCode(err error, code Code) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}
