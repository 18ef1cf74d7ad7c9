// Package registry implements the global registry of event batches and
// tracer notification handles, and serializes all callback
// registration/unregistration through the same recursive mutex.
package registry

import (
	"sync/atomic"

	"github.com/ehrlich-b/go-side/internal/codes"
	"github.com/ehrlich-b/go-side/internal/event"
	"github.com/ehrlich-b/go-side/internal/list"
	"github.com/ehrlich-b/go-side/internal/rcu"
	"github.com/ehrlich-b/go-side/internal/rmutex"
)

// NotifyKind is the kind of change a tracer notification handle is told
// about.
type NotifyKind int

const (
	Insert NotifyKind = iota
	Remove
)

// NotifyFunc is a tracer notification callback. It fires with the registry mutex held and must not
// block or re-enter the registry on its own handle.
type NotifyFunc func(kind NotifyKind, events []*event.Description)

// EventsHandle is an events-register handle: the record of one
// batch registered via RegisterEvents.
type EventsHandle struct {
	Events []*event.Description
	node   *list.Node[*EventsHandle]
}

// TracerHandle is a tracer notification handle.
type TracerHandle struct {
	cb   NotifyFunc
	node *list.Node[*TracerHandle]
}

// Registry holds the two global lists and the recursive mutex
// serializing every mutation, including per-event callback
// register/unregister.
type Registry struct {
	mu        rmutex.Mutex
	dom       *rcu.Domain
	events    *list.List[*EventsHandle]
	tracers   *list.List[*TracerHandle]
	finalized atomic.Bool
}

// New returns an empty registry bound to dom, the event-callback RCU
// domain shared with the dispatch fast path.
func New(dom *rcu.Domain) *Registry {
	return &Registry{
		dom:     dom,
		events:  list.New[*EventsHandle](),
		tracers: list.New[*TracerHandle](),
	}
}

// SetFinalized marks the registry as torn down; all subsequent
// mutations return Exiting.
func (r *Registry) SetFinalized(v bool) { r.finalized.Store(v) }

// Finalized reports whether the library has been torn down.
func (r *Registry) Finalized() bool { return r.finalized.Load() }

// RegisterEvents links the batch into the events list, then
// synchronously replays Insert to every tracer.
func (r *Registry) RegisterEvents(events []*event.Description) (*EventsHandle, codes.Code) {
	if r.Finalized() {
		return nil, codes.Exiting
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	h := &EventsHandle{Events: events}
	h.node = &list.Node[*EventsHandle]{Value: h}
	r.events.PushBack(h.node)

	r.tracers.Each(func(n *list.Node[*TracerHandle]) {
		n.Value.cb(Insert, events)
	})

	return h, codes.Ok
}

// UnregisterEvents removes the batch from the events list, notifies
// tracers, then forcibly drains every event's callbacks — the caller
// guarantees the events are no longer reachable from any emitter.
//
// The removal happens before the notifications, mirroring how
// RegisterEvents links before notifying: a tracer's Remove callback may
// assume the batch is already gone from any walk of the events list.
func (r *Registry) UnregisterEvents(h *EventsHandle) codes.Code {
	if h == nil {
		return codes.Invalid
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.events.Remove(h.node)

	r.tracers.Each(func(n *list.Node[*TracerHandle]) {
		n.Value.cb(Remove, h.Events)
	})

	for _, d := range h.Events {
		if d.State != nil {
			d.State.Drain()
		}
	}

	return codes.Ok
}

// UnregisterAll tears down every remaining events handle at library
// exit, collecting handles first since UnregisterEvents mutates the
// list it would otherwise be iterating.
func (r *Registry) UnregisterAll() {
	r.mu.Lock()
	var handles []*EventsHandle
	r.events.Each(func(n *list.Node[*EventsHandle]) {
		handles = append(handles, n.Value)
	})
	r.mu.Unlock()

	for _, h := range handles {
		r.UnregisterEvents(h)
	}
}

// TracerRegister links the handle into the tracer list, then
// synchronously replays Insert for every already registered batch so
// the tracer observes a consistent initial world.
func (r *Registry) TracerRegister(cb NotifyFunc) *TracerHandle {
	r.mu.Lock()
	defer r.mu.Unlock()

	h := &TracerHandle{cb: cb}
	h.node = &list.Node[*TracerHandle]{Value: h}
	r.tracers.PushBack(h.node)

	r.events.Each(func(n *list.Node[*EventsHandle]) {
		cb(Insert, n.Value.Events)
	})

	return h
}

// TracerUnregister replays Remove for every still-registered batch,
// mirroring the replayed Inserts the tracer saw on subscribe, then
// unlinks the handle; no further notifications fire on it once this
// returns.
func (r *Registry) TracerUnregister(h *TracerHandle) {
	if h == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events.Each(func(n *list.Node[*EventsHandle]) {
		h.cb(Remove, n.Value.Events)
	})

	r.tracers.Remove(h.node)
}

// RegisterCallback attaches a non-variadic callback to desc under the
// registry mutex.
func (r *Registry) RegisterCallback(desc *event.Description, fn event.Func, priv any, key uint64) codes.Code {
	if fn == nil || desc.Variadic() {
		return codes.Invalid
	}
	if r.Finalized() {
		return codes.Exiting
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return desc.State.Register(r.dom, fn, priv, key)
}

// RegisterVariadicCallback is RegisterCallback's variadic counterpart.
func (r *Registry) RegisterVariadicCallback(desc *event.Description, fn event.VariadicFunc, priv any, key uint64) codes.Code {
	if fn == nil || !desc.Variadic() {
		return codes.Invalid
	}
	if r.Finalized() {
		return codes.Exiting
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return desc.State.RegisterVariadic(r.dom, fn, priv, key)
}

// UnregisterCallback detaches a non-variadic callback under the
// registry mutex.
func (r *Registry) UnregisterCallback(desc *event.Description, fn event.Func, priv any, key uint64) codes.Code {
	if desc.Variadic() {
		return codes.Invalid
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return desc.State.Unregister(r.dom, fn, priv, key)
}

// UnregisterVariadicCallback is UnregisterCallback's variadic counterpart.
func (r *Registry) UnregisterVariadicCallback(desc *event.Description, fn event.VariadicFunc, priv any, key uint64) codes.Code {
	if !desc.Variadic() {
		return codes.Invalid
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return desc.State.UnregisterVariadic(r.dom, fn, priv, key)
}
