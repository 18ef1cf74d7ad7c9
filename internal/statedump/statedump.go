// Package statedump implements the state-dump subsystem: per-tracer-key
// request queues delivered either by application polling or by a
// library-owned agent thread, plus the fork-safety handshake that keeps
// that agent thread from deadlocking a forking child.
package statedump

import (
	"strings"
	"sync"

	"github.com/ehrlich-b/go-side/internal/codes"
	"github.com/ehrlich-b/go-side/internal/constants"
	"github.com/ehrlich-b/go-side/internal/list"
	"github.com/ehrlich-b/go-side/internal/rcu"
	"github.com/ehrlich-b/go-side/internal/rmutex"
)

// Mode selects how a request handle's pending notifications are drained.
type Mode int

const (
	// Polling mode: the application calls PollPending/RunPending itself.
	Polling Mode = iota
	// Agent mode: the library's worker thread drains the handle.
	Agent
)

// Emitter lets the subsystem emit the statedump_begin/statedump_end
// bracketing events through the regular dispatch fast path, without
// statedump importing the event/registry packages (which would be a
// needless coupling — the begin/end events are ordinary events like any
// other, just built in).
type Emitter interface {
	EmitBegin(name string, key uint64)
	EmitEnd(name string, key uint64)
}

// request is one queued pending notification, keyed by the requesting
// tracer's key (or MatchAll for the initial dump).
type request struct {
	key uint64
}

// Handle is one registered state-dump capability: a named queue of
// pending requests plus the application callback that produces the
// snapshot when a request drains.
type Handle struct {
	name        string
	cb          func(key *uint64)
	mode        Mode
	sub         *Subsystem
	node        *list.Node[*Handle]
	mu          sync.Mutex // guards queue; the subsystem mutex also serializes but this keeps splicing race-free under concurrent Request appends from multiple tracers
	queue       []request
	initialDone sync.WaitGroup
	doneOnce    sync.Once
}

// Name returns the handle's registered name.
func (h *Handle) Name() string { return h.name }

// Subsystem is the process-wide state-dump subsystem.
type Subsystem struct {
	mu      rmutex.Mutex // recursive: an application statedump callback may call back into the core
	dom     *rcu.Domain  // guards the handle list; distinct from the event-callback domain so a grace-period wait on one never blocks on the other
	handles *list.List[*Handle]
	emitter Emitter
	agent   *agentBlock
}

// New returns a subsystem that brackets drains with emitter's
// begin/end events.
func New(emitter Emitter) *Subsystem {
	s := &Subsystem{
		dom:     rcu.NewDomain(),
		handles: list.New[*Handle](),
		emitter: emitter,
	}
	s.agent = newAgentBlock(s)
	return s
}

// RequestNotificationRegister registers a new state-dump handle. The
// handle starts with one MatchAll entry queued, so every already
// attached tracer receives an initial dump. In Agent mode the call does
// not return until the worker has drained that initial entry, giving
// registration a synchronous contract; in Polling mode the entry sits
// until the application's next RunPending.
func (s *Subsystem) RequestNotificationRegister(name string, cb func(key *uint64), mode Mode) (*Handle, codes.Code) {
	if cb == nil {
		return nil, codes.Invalid
	}

	h := &Handle{name: strings.Clone(name), cb: cb, mode: mode, sub: s}
	h.initialDone.Add(1)

	if mode == Agent {
		s.agent.acquireForRegister()
	}

	s.mu.Lock()
	h.node = &list.Node[*Handle]{Value: h}
	s.handles.PushBack(h.node)
	h.enqueue(request{key: constants.MatchAll})
	s.mu.Unlock()

	if mode == Agent {
		s.agent.releaseAfterRegister()
		s.agent.signalHandleRequest()
		h.initialDone.Wait()
	}

	return h, codes.Ok
}

// RequestNotificationUnregister drains h's queue, unlinks it, and — in
// Agent mode — drops the worker's refcount, joining the worker on the
// last reference. The final grace-period wait guarantees no worker is
// still iterating this handle when the caller frees it.
func (s *Subsystem) RequestNotificationUnregister(h *Handle) codes.Code {
	if h == nil {
		return codes.Invalid
	}

	h.drainQueue()

	s.mu.Lock()
	s.handles.Remove(h.node)
	s.mu.Unlock()

	if h.mode == Agent {
		s.agent.releaseForUnregister()
	}

	s.dom.WaitGracePeriod()
	return codes.Ok
}

// TracerStatedumpRequest enqueues a pending notification for key onto
// every registered handle and wakes the agent worker. MatchAll is not a
// valid request key — it is reserved for the initial dump a handle
// queues for itself at registration.
func (s *Subsystem) TracerStatedumpRequest(key uint64) codes.Code {
	if key == constants.MatchAll {
		return codes.Invalid
	}

	s.mu.Lock()
	s.handles.Each(func(n *list.Node[*Handle]) {
		n.Value.enqueue(request{key: key})
	})
	s.mu.Unlock()

	s.agent.signalHandleRequest()
	return codes.Ok
}

// TracerStatedumpRequestCancel removes every queued entry with a
// matching key from every handle. Entries already spliced out by an
// in-flight drain are past cancelling.
func (s *Subsystem) TracerStatedumpRequestCancel(key uint64) codes.Code {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handles.Each(func(n *list.Node[*Handle]) {
		n.Value.cancel(key)
	})
	return codes.Ok
}

// PollPending reports whether h has queued entries (Polling mode only).
func (s *Subsystem) PollPending(h *Handle) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.queue) > 0
}

// RunPending drains h's queue from the application's own thread
// (Polling mode): splice the queue, then for each entry emit
// statedump_begin, invoke the callback, emit statedump_end.
func (s *Subsystem) RunPending(h *Handle) int {
	return s.drain(h)
}

func (s *Subsystem) drain(h *Handle) int {
	pending := h.splice()
	for _, r := range pending {
		key := r.key
		s.emitter.EmitBegin(h.name, key)
		// The key pointer is valid only for the duration of the callback.
		h.cb(&key)
		s.emitter.EmitEnd(h.name, key)
		if key == constants.MatchAll {
			h.markInitialDone()
		}
	}
	if h.mode == Agent {
		s.agent.broadcastWaiter()
	}
	return len(pending)
}

func (h *Handle) enqueue(r request) {
	h.mu.Lock()
	h.queue = append(h.queue, r)
	h.mu.Unlock()
}

func (h *Handle) splice() []request {
	h.mu.Lock()
	defer h.mu.Unlock()
	pending := h.queue
	h.queue = nil
	return pending
}

func (h *Handle) drainQueue() {
	h.mu.Lock()
	h.queue = nil
	h.mu.Unlock()
}

func (h *Handle) cancel(key uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	kept := h.queue[:0]
	for _, r := range h.queue {
		if r.key != key {
			kept = append(kept, r)
		}
	}
	h.queue = kept
}

func (h *Handle) markInitialDone() {
	// initialDone is a WaitGroup used as a one-shot latch: Add(1) at
	// creation, a single Done() the first time the MatchAll entry drains.
	h.doneOnce.Do(func() { h.initialDone.Done() })
}
