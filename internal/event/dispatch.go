package event

import (
	"github.com/ehrlich-b/go-side/internal/codes"
	"github.com/ehrlich-b/go-side/internal/constants"
	"github.com/ehrlich-b/go-side/internal/rcu"
)

// Register appends a non-variadic callback to the vector, publishing a
// fresh copy. Callers must already hold the registry mutex.
func (s *State) Register(dom *rcu.Domain, fn Func, priv any, key uint64) codes.Code {
	if fn == nil {
		return codes.Invalid
	}
	return s.register(dom, fn, nil, priv, key)
}

// RegisterVariadic is Register's variadic-callback counterpart.
func (s *State) RegisterVariadic(dom *rcu.Domain, fn VariadicFunc, priv any, key uint64) codes.Code {
	if fn == nil {
		return codes.Invalid
	}
	return s.register(dom, nil, fn, priv, key)
}

func (s *State) register(dom *rcu.Domain, fn Func, varFn VariadicFunc, priv any, key uint64) codes.Code {
	if s.nrCallbacks.Load() == constants.MaxCallbacks {
		return codes.Invalid
	}

	cur := s.Callbacks()
	var identity any
	if fn != nil {
		identity = fn
	} else {
		identity = varFn
	}
	if find(cur, identity, priv, key) >= 0 {
		return codes.Exists
	}

	n := s.nrCallbacks.Load()
	next := make([]Entry, 0, n+2)
	for _, e := range cur {
		if e.isSentinel() {
			break
		}
		next = append(next, e)
	}
	next = append(next, Entry{Fn: fn, VariadicFn: varFn, Priv: priv, Key: key})
	next = append(next, Entry{})

	s.Publish(dom, next)
	s.setNrCallbacks(n + 1)
	return codes.Ok
}

// Unregister removes a non-variadic callback, waiting a grace period
// before the old vector is let go. Callers must already hold the
// registry mutex.
func (s *State) Unregister(dom *rcu.Domain, fn Func, priv any, key uint64) codes.Code {
	return s.unregister(dom, fn, priv, key)
}

// UnregisterVariadic is Unregister's variadic-callback counterpart.
func (s *State) UnregisterVariadic(dom *rcu.Domain, fn VariadicFunc, priv any, key uint64) codes.Code {
	return s.unregister(dom, fn, priv, key)
}

func (s *State) unregister(dom *rcu.Domain, fn any, priv any, key uint64) codes.Code {
	cur := s.Callbacks()
	idx := find(cur, fn, priv, key)
	if idx < 0 {
		return codes.NoEntry
	}

	n := s.nrCallbacks.Load()
	if n == 1 {
		s.callbacks.Store(&emptySentinel)
		dom.WaitGracePeriod()
		s.setNrCallbacks(0)
		return codes.Ok
	}

	next := make([]Entry, 0, n)
	for i, e := range cur {
		if e.isSentinel() {
			break
		}
		if i == idx {
			continue
		}
		next = append(next, e)
	}
	next = append(next, Entry{})

	s.Publish(dom, next)
	s.setNrCallbacks(n - 1)
	return codes.Ok
}

// Dispatch walks the current callback vector for a non-variadic event,
// invoking every entry whose key matches. It never blocks, never
// allocates, and takes no lock.
func (s *State) Dispatch(dom *rcu.Domain, desc *Description, payload any, key uint64, callerPC uintptr) int {
	tok := dom.ReadBegin()
	defer dom.ReadEnd(tok)

	matched := 0
	for _, e := range s.Callbacks() {
		if e.isSentinel() {
			break
		}
		if !keyMatches(key, e.Key) {
			continue
		}
		if e.Fn != nil {
			e.Fn(desc, payload, e.Priv, callerPC)
			matched++
		}
	}
	return matched
}

// DispatchVariadic is Dispatch's variadic-callback counterpart.
func (s *State) DispatchVariadic(dom *rcu.Domain, desc *Description, payload any, varArgs []any, key uint64, callerPC uintptr) int {
	tok := dom.ReadBegin()
	defer dom.ReadEnd(tok)

	matched := 0
	for _, e := range s.Callbacks() {
		if e.isSentinel() {
			break
		}
		if !keyMatches(key, e.Key) {
			continue
		}
		if e.VariadicFn != nil {
			e.VariadicFn(desc, payload, varArgs, e.Priv, callerPC)
			matched++
		}
	}
	return matched
}

// keyMatches reports whether a callback registered with key C fires for
// an emit with key K: true iff K == MatchAll, C == MatchAll, or C == K.
func keyMatches(emitKey, entryKey uint64) bool {
	return emitKey == constants.MatchAll || entryKey == constants.MatchAll || entryKey == emitKey
}
