// Package event implements the per-event mutable state and callback
// table, and the emit fast path that walks it. It is the component the
// rest of the core (registry, statedump) builds on: registry mutations
// rebuild a *State's callback vector; the root package's
// Emit/EmitVariadic call Dispatch directly.
package event

import (
	"reflect"
	"sync/atomic"

	"github.com/ehrlich-b/go-side/internal/abi"
	"github.com/ehrlich-b/go-side/internal/constants"
	"github.com/ehrlich-b/go-side/internal/rcu"
)

// Flags is the bit set carried by a Description.
type Flags uint32

// Variadic marks an event whose callbacks accept a trailing slice of
// arguments in addition to the fixed payload.
const Variadic Flags = 1 << 0

// Description is the (otherwise opaque) event description the core
// consumes from its caller: a flag set and a handle to the mutable
// state block. Everything else about an event, its field schema and
// argument encoding, belongs to the caller.
type Description struct {
	Name  string
	Flags Flags
	State *State
}

// Variadic reports whether the event's VARIADIC flag is set.
func (d *Description) Variadic() bool { return d.Flags&Variadic != 0 }

// Func is the callback shape for a non-variadic event.
type Func func(desc *Description, payload any, priv any, callerPC uintptr)

// VariadicFunc is the callback shape for a variadic event: it receives an
// additional slice of trailing arguments.
type VariadicFunc func(desc *Description, payload any, varArgs []any, priv any, callerPC uintptr)

// Entry is one slot of a callback vector. Exactly
// one of Fn/VariadicFn is set, chosen by the owning event's Variadic bit;
// a zero Entry (Fn == nil && VariadicFn == nil) is the vector's sentinel.
//
// Priv must be a comparable value (pointer, integer, string, ...):
// register/unregister compare it for identity when locating an entry.
type Entry struct {
	Fn         Func
	VariadicFn VariadicFunc
	Priv       any
	Key        uint64
}

func (e *Entry) isSentinel() bool { return e.Fn == nil && e.VariadicFn == nil }

// samePointer compares two function values by their underlying code
// pointer via reflection — Go function values are not otherwise
// comparable. Closures over distinct captured state that share the same
// code pointer will compare equal, a known limitation of this idiom that
// plain top-level functions and method values do not hit.
func samePointer(a, b any) bool {
	if a == nil || b == nil {
		return false
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Kind() != reflect.Func || vb.Kind() != reflect.Func {
		return false
	}
	return va.Pointer() == vb.Pointer()
}

func (e *Entry) matches(fn any, priv any, key uint64) bool {
	var entryFn any
	if e.Fn != nil {
		entryFn = e.Fn
	} else if e.VariadicFn != nil {
		entryFn = e.VariadicFn
	}
	if entryFn == nil {
		return false
	}
	return samePointer(entryFn, fn) && e.Priv == priv && e.Key == key
}

// emptySentinel is the shared, process-wide, never-freed empty-callback
// vector every event with no callbacks points at. It lets Dispatch be
// branch-uniform: always dereference the first entry, stop on its null
// function pointer, no separate empty-vector check.
var emptySentinel = []Entry{{}}

// State is the per-event mutable state block, version 0.
type State struct {
	Version     uint32
	nrCallbacks atomic.Uint32
	enabled     atomic.Uint64
	callbacks   atomic.Pointer[[]Entry]
}

// NewState returns a version-0 event state with no callbacks.
func NewState() *State {
	s := &State{}
	s.callbacks.Store(&emptySentinel)
	return s
}

// NrCallbacks returns the number of active (non-sentinel) callbacks.
func (s *State) NrCallbacks() uint32 { return s.nrCallbacks.Load() }

// Enabled returns the raw enable word: the top 8 bits are the
// out-of-process shared hints, the rest is this core's private reference
// count.
func (s *State) Enabled() uint64 { return s.enabled.Load() }

// SharedEnabled reports whether any out-of-process shared enable bit is
// set.
func (s *State) SharedEnabled() bool { return s.enabled.Load()&constants.SharedBitsMask != 0 }

// SetSharedBit ORs a shared hint bit into the enable word. The core
// itself never calls this; it exists for the external agent side of the
// enable-bit protocol (e.g. test harnesses emulating an attached
// tracer).
func (s *State) SetSharedBit(bit uint64) {
	for {
		old := s.enabled.Load()
		if s.enabled.CompareAndSwap(old, old|bit) {
			return
		}
	}
}

// ClearSharedBit clears a shared hint bit.
func (s *State) ClearSharedBit(bit uint64) {
	for {
		old := s.enabled.Load()
		if s.enabled.CompareAndSwap(old, old&^bit) {
			return
		}
	}
}

// Header encodes the ABI-visible portion of the event state for export
// to an out-of-process tracer, e.g. over a shared-memory mapping it has
// separately negotiated.
func (s *State) Header() abi.EventStateHeader {
	return abi.EventStateHeader{
		Version:     s.Version,
		NrCallbacks: s.nrCallbacks.Load(),
		Enabled:     s.enabled.Load(),
	}
}

// ApplySharedHeader ORs in the shared top-8 bits from a header decoded
// off the wire (e.g. after an out-of-process writer updated its copy of
// the mapping), leaving this core's own private low-bit count untouched.
func (s *State) ApplySharedHeader(h abi.EventStateHeader) {
	bits := h.Enabled & constants.SharedBitsMask
	for {
		old := s.enabled.Load()
		if s.enabled.CompareAndSwap(old, old|bits) {
			return
		}
	}
}

// Callbacks acquire-loads the current callback vector.
func (s *State) Callbacks() []Entry {
	p := s.callbacks.Load()
	if p == nil {
		return emptySentinel
	}
	return *p
}

// Snapshot returns a copy of the non-sentinel entries, for introspection
// and tests; it is not on the dispatch fast path.
func (s *State) Snapshot() []Entry {
	cb := s.Callbacks()
	out := make([]Entry, 0, len(cb))
	for _, e := range cb {
		if e.isSentinel() {
			break
		}
		out = append(out, e)
	}
	return out
}

// find returns the index of a matching entry, or -1.
func find(cb []Entry, fn any, priv any, key uint64) int {
	for i := range cb {
		if cb[i].isSentinel() {
			break
		}
		if cb[i].matches(fn, priv, key) {
			return i
		}
	}
	return -1
}

// Publish installs a newly built vector (already including its sentinel)
// using a release store, waits a grace period on dom, then lets the
// caller's old reference go: the backing array becomes unreachable once
// no one holds a pointer to it, and the grace period guarantees that
// includes every in-flight emit.
func (s *State) Publish(dom *rcu.Domain, vec []Entry) {
	s.callbacks.Store(&vec)
	dom.WaitGracePeriod()
}

// adjustEnableOnTransition applies the ±1 low-bit adjustment to the
// enable word when nr_callbacks crosses the 0/1 boundary.
func (s *State) adjustEnableOnTransition(before, after uint32) {
	if before == 0 && after == 1 {
		s.enabled.Add(1)
	} else if before == 1 && after == 0 {
		s.enabled.Add(^uint64(0)) // -1
	}
}

// setNrCallbacks stores the new count and performs the enable-bit parity
// adjustment; callers hold the registry mutex.
func (s *State) setNrCallbacks(n uint32) {
	before := s.nrCallbacks.Load()
	s.nrCallbacks.Store(n)
	s.adjustEnableOnTransition(before, n)
}

// Drain forcibly empties the callback vector with no grace period. The
// caller guarantees no emitter can reach this state anymore; with no
// possible concurrent reader there is nothing to wait for. The enable
// low bit is a presence bit, not a count, so it drops by one whenever
// any callbacks were present — not only on a 1→0 edge.
func (s *State) Drain() {
	s.callbacks.Store(&emptySentinel)
	if s.nrCallbacks.Load() != 0 {
		s.nrCallbacks.Store(0)
		s.enabled.Add(^uint64(0)) // -1
	}
}
