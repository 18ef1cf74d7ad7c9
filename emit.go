package side

import (
	"time"

	"github.com/ehrlich-b/go-side/internal/event"
)

// NewEvent builds an event description with a freshly allocated,
// version-0 state block. name is carried for diagnostics only; the core
// never looks events up by name.
func NewEvent(name string, variadic bool) *EventDescription {
	var flags event.Flags
	if variadic {
		flags = event.Variadic
	}
	return &EventDescription{Name: name, Flags: flags, State: event.NewState()}
}

// checkVersion aborts on an unknown event-state ABI version.
func checkVersion(desc *EventDescription) {
	if desc.State.Version != 0 {
		panic("side: unknown event state ABI version")
	}
}

// checkVariadic aborts when an event is emitted through the wrong call
// shape: a mismatch would silently dispatch to nothing, hiding a caller
// bug.
func checkVariadic(desc *EventDescription, want bool) {
	if desc.Variadic() != want {
		if want {
			panic("side: non-variadic event emitted with EmitVariadic")
		}
		panic("side: variadic event emitted with Emit")
	}
}

// Emit produces one occurrence of a non-variadic event, invoking every
// callback whose key matches. Beyond the dispatch loop it runs the
// out-of-band hook check and feeds a latency measurement to the
// installed Observer. The dispatch loop takes no lock; when the
// user-event hook fires, its write goes through the installed Writer,
// which takes that Writer's mutex.
func (r *Runtime) Emit(desc *EventDescription, payload any, key uint64) {
	if r.finalized.Load() {
		return
	}
	r.Init()
	checkVersion(desc)
	checkVariadic(desc, false)
	r.checkOutOfBandHooks(desc, key)

	start := time.Now()
	matched := desc.State.Dispatch(r.dom, desc, payload, key, callerPC(2))
	r.observe().ObserveEmit(desc.Name, matched, uint64(time.Since(start).Nanoseconds()))
}

// EmitVariadic is Emit's variadic-callback counterpart.
func (r *Runtime) EmitVariadic(desc *EventDescription, payload any, varArgs []any, key uint64) {
	if r.finalized.Load() {
		return
	}
	r.Init()
	checkVersion(desc)
	checkVariadic(desc, true)
	r.checkOutOfBandHooks(desc, key)

	start := time.Now()
	matched := desc.State.DispatchVariadic(r.dom, desc, payload, varArgs, key, callerPC(2))
	r.observe().ObserveEmit(desc.Name, matched, uint64(time.Since(start).Nanoseconds()))
}

// StatedumpEmit is Emit with the key taken from a statedump request:
// an application statedump callback calls this with the key pointer it
// was handed, tagging the emitted event with the request's originating
// key rather than MatchAll.
func (r *Runtime) StatedumpEmit(desc *EventDescription, payload any, requestKey *uint64) {
	r.Emit(desc, payload, *requestKey)
}

// StatedumpEmitVariadic is StatedumpEmit's variadic counterpart.
func (r *Runtime) StatedumpEmitVariadic(desc *EventDescription, payload any, varArgs []any, requestKey *uint64) {
	r.EmitVariadic(desc, payload, varArgs, *requestKey)
}

// Package-level convenience wrappers over Default() for the
// application-side surface.

func Emit(desc *EventDescription, payload any, key uint64) {
	Default().Emit(desc, payload, key)
}

func EmitVariadic(desc *EventDescription, payload any, varArgs []any, key uint64) {
	Default().EmitVariadic(desc, payload, varArgs, key)
}

func StatedumpEmit(desc *EventDescription, payload any, requestKey *uint64) {
	Default().StatedumpEmit(desc, payload, requestKey)
}

func StatedumpEmitVariadic(desc *EventDescription, payload any, varArgs []any, requestKey *uint64) {
	Default().StatedumpEmitVariadic(desc, payload, varArgs, requestKey)
}
