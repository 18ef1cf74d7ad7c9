package side

import (
	"github.com/ehrlich-b/go-side/internal/codes"
)

// RegisterEvents links a batch of event descriptions into the global
// events list and synchronously notifies every subscribed tracer.
func (r *Runtime) RegisterEvents(events []*EventDescription) (*EventsHandle, error) {
	r.Init()
	h, code := r.reg.RegisterEvents(events)
	if code != codes.Ok {
		return nil, newError("RegisterEvents", "", 0, code)
	}
	return h, nil
}

// UnregisterEvents removes the batch from the events list, notifies
// tracers, and forcibly drains every event's callback vector. Callers
// must guarantee that no emitter can still reach these events.
func (r *Runtime) UnregisterEvents(h *EventsHandle) error {
	code := r.reg.UnregisterEvents(h)
	if code != codes.Ok {
		return newError("UnregisterEvents", "", 0, code)
	}
	return nil
}

// TracerRegister subscribes a tracer to events-list changes. The
// handle's callback is replayed Insert for every already-registered
// batch before this call returns.
func (r *Runtime) TracerRegister(cb NotifyFunc) *TracerHandle {
	r.Init()
	return r.reg.TracerRegister(cb)
}

// TracerUnregister drops an events-list subscription.
func (r *Runtime) TracerUnregister(h *TracerHandle) {
	r.reg.TracerUnregister(h)
}

// RegisterCallback attaches a non-variadic callback to desc, invoked
// on every matching Emit.
func (r *Runtime) RegisterCallback(desc *EventDescription, fn EventFunc, priv any, key uint64) error {
	r.Init()
	code := r.reg.RegisterCallback(desc, fn, priv, key)
	r.observe().ObserveRegister(desc.Name, code == codes.Ok)
	if code != codes.Ok {
		r.logger.Debugf("register callback rejected: event=%s key=%d code=%v", desc.Name, key, code)
		return newError("RegisterCallback", desc.Name, key, code)
	}
	return nil
}

// RegisterVariadicCallback is RegisterCallback's variadic counterpart.
func (r *Runtime) RegisterVariadicCallback(desc *EventDescription, fn EventVariadicFunc, priv any, key uint64) error {
	r.Init()
	code := r.reg.RegisterVariadicCallback(desc, fn, priv, key)
	r.observe().ObserveRegister(desc.Name, code == codes.Ok)
	if code != codes.Ok {
		return newError("RegisterVariadicCallback", desc.Name, key, code)
	}
	return nil
}

// UnregisterCallback detaches a non-variadic callback; once it
// returns, no in-flight emit still holds the removed entry.
func (r *Runtime) UnregisterCallback(desc *EventDescription, fn EventFunc, priv any, key uint64) error {
	code := r.reg.UnregisterCallback(desc, fn, priv, key)
	r.observe().ObserveUnregister(desc.Name, code == codes.Ok)
	if code != codes.Ok {
		return newError("UnregisterCallback", desc.Name, key, code)
	}
	return nil
}

// UnregisterVariadicCallback is UnregisterCallback's variadic
// counterpart.
func (r *Runtime) UnregisterVariadicCallback(desc *EventDescription, fn EventVariadicFunc, priv any, key uint64) error {
	code := r.reg.UnregisterVariadicCallback(desc, fn, priv, key)
	r.observe().ObserveUnregister(desc.Name, code == codes.Ok)
	if code != codes.Ok {
		return newError("UnregisterVariadicCallback", desc.Name, key, code)
	}
	return nil
}

// RequestKey hands out a monotonically increasing tracer key starting
// above the reserved [0, 8) range.
func (r *Runtime) RequestKey() (uint64, error) {
	r.Init()
	key, code := r.keys.RequestKey()
	if code != codes.Ok {
		return 0, newError("RequestKey", "", 0, code)
	}
	return key, nil
}

// Package-level convenience wrappers over Default().

func RegisterEvents(events []*EventDescription) (*EventsHandle, error) {
	return Default().RegisterEvents(events)
}

func UnregisterEvents(h *EventsHandle) error {
	return Default().UnregisterEvents(h)
}

func TracerRegister(cb NotifyFunc) *TracerHandle {
	return Default().TracerRegister(cb)
}

func TracerUnregister(h *TracerHandle) {
	Default().TracerUnregister(h)
}

func RegisterCallback(desc *EventDescription, fn EventFunc, priv any, key uint64) error {
	return Default().RegisterCallback(desc, fn, priv, key)
}

func RegisterVariadicCallback(desc *EventDescription, fn EventVariadicFunc, priv any, key uint64) error {
	return Default().RegisterVariadicCallback(desc, fn, priv, key)
}

func UnregisterCallback(desc *EventDescription, fn EventFunc, priv any, key uint64) error {
	return Default().UnregisterCallback(desc, fn, priv, key)
}

func UnregisterVariadicCallback(desc *EventDescription, fn EventVariadicFunc, priv any, key uint64) error {
	return Default().UnregisterVariadicCallback(desc, fn, priv, key)
}

func RequestKey() (uint64, error) {
	return Default().RequestKey()
}
