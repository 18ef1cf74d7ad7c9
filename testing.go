package side

import "sync"

// MockTracer is a test double for a tracer: it records every callback
// invocation it receives (event name, payload, priv, and the key when
// built with CallbackWithKey) under a mutex, and exposes call counts for
// assertions.
type MockTracer struct {
	mu    sync.RWMutex
	calls []MockCall
}

// MockCall is one recorded callback invocation.
type MockCall struct {
	Event   string
	Payload any
	Priv    any
	Key     uint64
}

// NewMockTracer returns an empty MockTracer.
func NewMockTracer() *MockTracer {
	return &MockTracer{}
}

// Callback returns an EventFunc suitable for RegisterCallback that
// records every invocation.
func (m *MockTracer) Callback() EventFunc {
	return func(desc *EventDescription, payload any, priv any, callerPC uintptr) {
		m.record(MockCall{Event: desc.Name, Payload: payload, Priv: priv})
	}
}

// CallbackWithKey is like Callback but also records the entry's key, for
// tests that register the same tracer under several keys.
func (m *MockTracer) CallbackWithKey(key uint64) EventFunc {
	return func(desc *EventDescription, payload any, priv any, callerPC uintptr) {
		m.record(MockCall{Event: desc.Name, Payload: payload, Priv: priv, Key: key})
	}
}

func (m *MockTracer) record(c MockCall) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, c)
}

// Calls returns a copy of every recorded invocation so far.
func (m *MockTracer) Calls() []MockCall {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]MockCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns the number of recorded invocations.
func (m *MockTracer) CallCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.calls)
}

// Reset clears every recorded invocation.
func (m *MockTracer) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// MockStatedump is a test double for a state-dump consumer: its
// Callback records the dereferenced key of every request it drains.
type MockStatedump struct {
	mu   sync.RWMutex
	keys []uint64
}

// NewMockStatedump returns an empty MockStatedump.
func NewMockStatedump() *MockStatedump {
	return &MockStatedump{}
}

// Callback returns a func(*uint64) suitable for
// StatedumpRequestNotificationRegister.
func (m *MockStatedump) Callback() func(key *uint64) {
	return func(key *uint64) {
		m.mu.Lock()
		m.keys = append(m.keys, *key)
		m.mu.Unlock()
	}
}

// Keys returns a copy of every key this handle has been invoked with, in
// drain order.
func (m *MockStatedump) Keys() []uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]uint64, len(m.keys))
	copy(out, m.keys)
	return out
}

// Reset clears every recorded key.
func (m *MockStatedump) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys = nil
}

// poisonPattern is what PoisonFill writes over a buffer, for stress
// tests that shred a retired callback vector to detect a reader
// observing memory after it should have become unreachable. 0xDEADBEEF
// as repeating bytes.
var poisonPattern = [4]byte{0xDE, 0xAD, 0xBE, 0xEF}

// PoisonFill overwrites every byte of buf with the poison pattern, for
// use by tests that shred a retired callback vector after its grace
// period elapses.
func PoisonFill(buf []byte) {
	for i := range buf {
		buf[i] = poisonPattern[i%len(poisonPattern)]
	}
}
