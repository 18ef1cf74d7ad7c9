package event

import (
	"testing"

	"github.com/ehrlich-b/go-side/internal/codes"
	"github.com/ehrlich-b/go-side/internal/constants"
	"github.com/ehrlich-b/go-side/internal/rcu"
)

func newTestState() (*State, *rcu.Domain) {
	return NewState(), rcu.NewDomain()
}

func TestRegisterDispatchUnregister(t *testing.T) {
	s, dom := newTestState()
	desc := &Description{Name: "e0", State: s}

	var gotPayload any
	var calls int
	cb := func(d *Description, payload any, priv any, callerPC uintptr) {
		calls++
		gotPayload = payload
	}

	if code := s.Register(dom, cb, "priv-A", 0); code != codes.Ok {
		t.Fatalf("register: got %v", code)
	}
	if s.NrCallbacks() != 1 {
		t.Fatalf("nr_callbacks = %d, want 1", s.NrCallbacks())
	}
	if s.Enabled()&0xff != 1 {
		t.Fatalf("enabled low bits = %d, want 1", s.Enabled())
	}

	matched := s.Dispatch(dom, desc, 42, 0, 0)
	if matched != 1 || calls != 1 || gotPayload != 42 {
		t.Fatalf("dispatch: matched=%d calls=%d payload=%v", matched, calls, gotPayload)
	}

	if code := s.Unregister(dom, cb, "priv-A", 0); code != codes.Ok {
		t.Fatalf("unregister: got %v", code)
	}
	if s.NrCallbacks() != 0 {
		t.Fatalf("nr_callbacks after unregister = %d, want 0", s.NrCallbacks())
	}
	if s.Enabled()&0xff != 0 {
		t.Fatalf("enabled low bits after unregister = %d, want 0", s.Enabled())
	}

	calls = 0
	s.Dispatch(dom, desc, 42, 0, 0)
	if calls != 0 {
		t.Fatalf("expected zero calls after unregister, got %d", calls)
	}
}

func TestKeyFilter(t *testing.T) {
	s, dom := newTestState()
	desc := &Description{Name: "e0", State: s}

	var c1, c2 int
	cbC1 := func(d *Description, payload any, priv any, callerPC uintptr) { c1++ }
	cbC2 := func(d *Description, payload any, priv any, callerPC uintptr) { c2++ }

	s.Register(dom, cbC1, nil, 0) // MatchAll
	s.Register(dom, cbC2, nil, 9)

	c1, c2 = 0, 0
	s.Dispatch(dom, desc, nil, 0, 0) // emit MatchAll: both fire
	if c1 != 1 || c2 != 1 {
		t.Fatalf("match-all emit: c1=%d c2=%d", c1, c2)
	}

	c1, c2 = 0, 0
	s.Dispatch(dom, desc, nil, 9, 0) // emit key=9: both fire (c1 via its own MatchAll)
	if c1 != 1 || c2 != 1 {
		t.Fatalf("key=9 emit: c1=%d c2=%d", c1, c2)
	}

	c1, c2 = 0, 0
	s.Dispatch(dom, desc, nil, 7, 0) // emit key=7: only c1 fires
	if c1 != 1 || c2 != 0 {
		t.Fatalf("key=7 emit: c1=%d c2=%d", c1, c2)
	}
}

func TestDuplicateRegistration(t *testing.T) {
	s, dom := newTestState()
	cb := func(d *Description, payload any, priv any, callerPC uintptr) {}

	if code := s.Register(dom, cb, "A", 0); code != codes.Ok {
		t.Fatalf("first register: %v", code)
	}
	if code := s.Register(dom, cb, "A", 0); code != codes.Exists {
		t.Fatalf("duplicate register: got %v, want Exists", code)
	}
	if s.NrCallbacks() != 1 {
		t.Fatalf("nr_callbacks = %d, want 1", s.NrCallbacks())
	}
}

func TestUnregisterAbsent(t *testing.T) {
	s, dom := newTestState()
	cb1 := func(d *Description, payload any, priv any, callerPC uintptr) {}
	cb2 := func(d *Description, payload any, priv any, callerPC uintptr) {}

	s.Register(dom, cb1, "A", 0)
	if code := s.Unregister(dom, cb2, "B", 0); code != codes.NoEntry {
		t.Fatalf("unregister mismatched priv: got %v, want NoEntry", code)
	}
	if code := s.Unregister(dom, cb1, "A", 0); code != codes.Ok {
		t.Fatalf("unregister matching: got %v", code)
	}
	if len(s.Callbacks()) != 1 || !s.Callbacks()[0].isSentinel() {
		t.Fatalf("expected shared empty sentinel after draining last callback")
	}
}

func TestNullFunctionRejected(t *testing.T) {
	s, dom := newTestState()
	if code := s.Register(dom, nil, nil, 0); code != codes.Invalid {
		t.Fatalf("register(nil): got %v, want Invalid", code)
	}
}

func TestNrCallbacksTracksRegisteredCount(t *testing.T) {
	s, dom := newTestState()
	var fns []Func
	for i := 0; i < 10; i++ {
		fns = append(fns, func(d *Description, payload any, priv any, callerPC uintptr) {})
	}
	for i, fn := range fns {
		s.Register(dom, fn, i, uint64(i))
	}
	if int(s.NrCallbacks()) != len(s.Snapshot()) {
		t.Fatalf("nr_callbacks=%d snapshot_len=%d", s.NrCallbacks(), len(s.Snapshot()))
	}
	for i, fn := range fns {
		if i%2 == 0 {
			s.Unregister(dom, fn, i, uint64(i))
		}
	}
	if int(s.NrCallbacks()) != len(s.Snapshot()) {
		t.Fatalf("nr_callbacks=%d snapshot_len=%d after partial unregister", s.NrCallbacks(), len(s.Snapshot()))
	}
}

func TestDrainClearsEnableBitWithMultipleCallbacks(t *testing.T) {
	s, dom := newTestState()
	cb1 := func(d *Description, payload any, priv any, callerPC uintptr) {}
	cb2 := func(d *Description, payload any, priv any, callerPC uintptr) {}

	s.Register(dom, cb1, "A", 0)
	s.Register(dom, cb2, "B", 0)
	if s.Enabled()&0xff != 1 {
		t.Fatalf("enabled low bits = %d with two callbacks, want 1", s.Enabled()&0xff)
	}

	s.Drain()
	if s.NrCallbacks() != 0 {
		t.Fatalf("nr_callbacks after drain = %d, want 0", s.NrCallbacks())
	}
	if s.Enabled()&0xff != 0 {
		t.Fatalf("enabled low bits after drain = %d, want 0", s.Enabled()&0xff)
	}

	s.Drain()
	if s.Enabled()&0xff != 0 {
		t.Fatalf("second drain moved enabled low bits to %d", s.Enabled()&0xff)
	}
}

func TestVariadicDispatch(t *testing.T) {
	s, dom := newTestState()
	desc := &Description{Name: "e0", Flags: Variadic, State: s}

	var gotVar []any
	cb := func(d *Description, payload any, varArgs []any, priv any, callerPC uintptr) {
		gotVar = varArgs
	}
	s.RegisterVariadic(dom, cb, nil, 0)
	s.DispatchVariadic(dom, desc, "fixed", []any{1, 2, 3}, 0, 0)
	if len(gotVar) != 3 {
		t.Fatalf("expected 3 var args, got %v", gotVar)
	}
}

func TestHeaderRoundTripsSharedBits(t *testing.T) {
	s, dom := newTestState()
	cb := func(d *Description, payload any, priv any, callerPC uintptr) {}
	s.Register(dom, cb, nil, 0)

	s.SetSharedBit(constants.UserEventBit)
	h := s.Header()
	if h.NrCallbacks != 1 || h.Enabled&1 == 0 {
		t.Fatalf("header = %+v, want nr_callbacks=1 and low bit set", h)
	}
	if h.Enabled&constants.UserEventBit == 0 {
		t.Fatalf("header = %+v, want user-event bit set", h)
	}

	other := NewState()
	other.ApplySharedHeader(h)
	if !other.SharedEnabled() {
		t.Fatal("ApplySharedHeader did not propagate the shared bit")
	}
}
