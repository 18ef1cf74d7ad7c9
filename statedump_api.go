package side

import (
	"github.com/ehrlich-b/go-side/internal/codes"
)

// StatedumpRequestNotificationRegister registers a producer-side
// handle that receives a MatchAll notification immediately
// (synchronously in Agent mode, on the first RunPending in Polling
// mode) plus every subsequent tracer-triggered request.
func (r *Runtime) StatedumpRequestNotificationRegister(name string, cb func(key *uint64), mode StatedumpMode) (*StatedumpHandle, error) {
	r.Init()
	h, code := r.sd.RequestNotificationRegister(name, cb, mode)
	if code != codes.Ok {
		return nil, newError("StatedumpRequestNotificationRegister", name, 0, code)
	}
	r.logger.Debugf("statedump handle registered: name=%s mode=%d", name, mode)
	return h, nil
}

// StatedumpRequestNotificationUnregister drains and removes a handle;
// once it returns, no agent worker still references it.
func (r *Runtime) StatedumpRequestNotificationUnregister(h *StatedumpHandle) error {
	code := r.sd.RequestNotificationUnregister(h)
	if code != codes.Ok {
		return newError("StatedumpRequestNotificationUnregister", h.Name(), 0, code)
	}
	return nil
}

// StatedumpRequest enqueues a pending notification for key onto every
// registered handle and wakes any agent-mode workers.
func (r *Runtime) StatedumpRequest(key uint64) error {
	r.Init()
	code := r.sd.TracerStatedumpRequest(key)
	r.observe().ObserveStatedumpRequest(key)
	if code != codes.Ok {
		return newError("StatedumpRequest", "", key, code)
	}
	return nil
}

// StatedumpRequestCancel withdraws every still-queued notification
// carrying key.
func (r *Runtime) StatedumpRequestCancel(key uint64) error {
	code := r.sd.TracerStatedumpRequestCancel(key)
	if code != codes.Ok {
		return newError("StatedumpRequestCancel", "", key, code)
	}
	return nil
}

// StatedumpPollPending reports whether h has queued notifications
// (Polling mode only).
func (r *Runtime) StatedumpPollPending(h *StatedumpHandle) bool {
	return r.sd.PollPending(h)
}

// StatedumpRunPending drains h's queue from the application's own
// thread (Polling mode), bracketing each entry with statedump_begin/
// statedump_end events, and returns how many entries were drained.
func (r *Runtime) StatedumpRunPending(h *StatedumpHandle) int {
	n := r.sd.RunPending(h)
	r.observe().ObserveStatedumpDrain(h.Name(), n, 0)
	return n
}

// BeforeFork, AfterForkParent, and AfterForkChild bracket a caller's
// own raw fork() so the agent worker is parked at a known safe point
// across it. Pure-Go callers that never fork never need them.
func (r *Runtime) BeforeFork() {
	if r.sd != nil {
		r.sd.BeforeFork()
	}
}

func (r *Runtime) AfterForkParent() {
	if r.sd != nil {
		r.sd.AfterForkParent()
	}
}

func (r *Runtime) AfterForkChild() {
	if r.sd != nil {
		r.sd.AfterForkChild()
	}
}

// Package-level convenience wrappers over Default().

func StatedumpRequestNotificationRegister(name string, cb func(key *uint64), mode StatedumpMode) (*StatedumpHandle, error) {
	return Default().StatedumpRequestNotificationRegister(name, cb, mode)
}

func StatedumpRequestNotificationUnregister(h *StatedumpHandle) error {
	return Default().StatedumpRequestNotificationUnregister(h)
}

func StatedumpRequest(key uint64) error {
	return Default().StatedumpRequest(key)
}

func StatedumpRequestCancel(key uint64) error {
	return Default().StatedumpRequestCancel(key)
}

func StatedumpPollPending(h *StatedumpHandle) bool {
	return Default().StatedumpPollPending(h)
}

func StatedumpRunPending(h *StatedumpHandle) int {
	return Default().StatedumpRunPending(h)
}

// Init initializes the package-level default Runtime.
func Init() {
	Default()
}

// Exit finalizes the package-level default Runtime.
func Exit() {
	defaultOnce.Do(func() { defaultRT = New() })
	defaultRT.Exit()
}

func BeforeFork()      { Default().BeforeFork() }
func AfterForkParent() { Default().AfterForkParent() }
func AfterForkChild()  { Default().AfterForkChild() }
