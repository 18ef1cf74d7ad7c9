// Package side provides the main API for a userspace instrumentation
// core: applications emit events, tracers attach callbacks to them, and
// either side may request a state-dump snapshot.
package side

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/ehrlich-b/go-side/internal/constants"
	"github.com/ehrlich-b/go-side/internal/event"
	"github.com/ehrlich-b/go-side/internal/interfaces"
	"github.com/ehrlich-b/go-side/internal/keyalloc"
	"github.com/ehrlich-b/go-side/internal/logging"
	"github.com/ehrlich-b/go-side/internal/rcu"
	"github.com/ehrlich-b/go-side/internal/registry"
	"github.com/ehrlich-b/go-side/internal/statedump"
	"github.com/ehrlich-b/go-side/internal/userevents"
)

// Re-exports of the data-model types external collaborators hand the
// core, so callers need not import internal packages directly.
type (
	EventDescription  = event.Description
	EventFunc         = event.Func
	EventVariadicFunc = event.VariadicFunc
	EventsHandle      = registry.EventsHandle
	TracerHandle      = registry.TracerHandle
	NotifyKind        = registry.NotifyKind
	NotifyFunc        = registry.NotifyFunc
	StatedumpHandle   = statedump.Handle
	StatedumpMode     = statedump.Mode
	Logger            = interfaces.Logger
	UserEventWriter   = userevents.Writer
)

// NewUserEventWriter wraps an already-open user-event descriptor for use
// with SetUserEventWriter. The caller owns fd and keeps it open for the
// writer's lifetime.
func NewUserEventWriter(fd int) *UserEventWriter {
	return userevents.NewWriter(fd)
}

const (
	Insert = registry.Insert
	Remove = registry.Remove

	Polling = statedump.Polling
	Agent   = statedump.Agent
)

// Event flags.
const VariadicFlag = event.Variadic

// Reserved keys.
const (
	MatchAll     = constants.MatchAll
	KeyUserEvent = constants.KeyUserEvent
	KeyPtrace    = constants.KeyPtrace
)

// Runtime is one instance of the instrumentation core: the registry, the
// state-dump subsystem, the key allocator, and the lifecycle state that
// ties them together. Most callers use the package-level default
// instance via Default(); a Runtime is exported mainly so tests can run
// several isolated instances side by side.
type Runtime struct {
	initOnce sync.Once
	dom      *rcu.Domain
	reg      *registry.Registry
	sd       *statedump.Subsystem
	keys     *keyalloc.Allocator
	metrics  *Metrics
	observer atomic.Pointer[Observer]
	logger   Logger

	beginDesc *EventDescription
	endDesc   *EventDescription

	userWriter atomic.Pointer[userevents.Writer]

	finalized atomic.Bool
}

// SetUserEventWriter installs the out-of-process user-event write hook:
// whenever a shared enable bit indicates an out-of-process tracer is
// attached via the user-event mechanism, Emit forwards to w instead of
// silently skipping the hook. Pass nil to remove it; with no writer
// installed the check still runs (it is a hint read off the enable
// word, not a feature gate) but the write side is a no-op.
func (r *Runtime) SetUserEventWriter(w *UserEventWriter) {
	r.userWriter.Store(w)
}

// New constructs a Runtime without running its lazy Init; every public
// entry point initializes on first use. Callers normally never call New
// directly; Default does it once for the package-level API.
func New() *Runtime {
	r := &Runtime{
		metrics: NewMetrics(),
		logger:  logging.Default(),
	}
	var obs Observer = NewMetricsObserver(r.metrics)
	r.observer.Store(&obs)
	return r
}

var (
	defaultOnce sync.Once
	defaultRT   *Runtime
)

// Default returns the process-wide default Runtime, constructing and
// initializing it on first use.
func Default() *Runtime {
	defaultOnce.Do(func() {
		defaultRT = New()
	})
	defaultRT.Init()
	return defaultRT
}

// SetLogger installs a custom logger on the runtime. The default is the
// process-wide leveled logger from internal/logging.
func (r *Runtime) SetLogger(l Logger) { r.logger = l }

// SetObserver installs a custom Observer, replacing the default
// MetricsObserver.
func (r *Runtime) SetObserver(o Observer) { r.observer.Store(&o) }

// Metrics returns the runtime's metrics instance (valid even if a
// custom Observer has been installed in its place — the MetricsObserver
// created by New still exists and can be read directly).
func (r *Runtime) Metrics() *Metrics { return r.metrics }

func (r *Runtime) observe() Observer {
	if p := r.observer.Load(); p != nil {
		return *p
	}
	return NoOpObserver{}
}

// Init is idempotent and lazy: it installs the two independent RCU
// domains (one for event callback vectors, one for the state-dump
// handle list) and wires the built-in statedump_begin/statedump_end
// events the state-dump subsystem emits around every drain.
func (r *Runtime) Init() {
	r.initOnce.Do(func() {
		r.dom = rcu.NewDomain()
		r.reg = registry.New(r.dom)
		r.keys = keyalloc.New()

		r.beginDesc = &EventDescription{Name: "statedump_begin", State: event.NewState()}
		r.endDesc = &EventDescription{Name: "statedump_end", State: event.NewState()}
		r.reg.RegisterEvents([]*EventDescription{r.beginDesc, r.endDesc})

		r.sd = statedump.New(&runtimeEmitter{r})
		r.logger.Debugf("initialized")
	})
}

// Exit unregisters every remaining events handle and marks the runtime
// finalized: afterwards Emit/EmitVariadic (and the statedump emit
// variants) are silent no-ops, and RegisterEvents, RegisterCallback and
// RegisterVariadicCallback return Exiting. The other entry points
// (unregister calls, TracerRegister/TracerUnregister, RequestKey, the
// Statedump* calls) do not check the finalized flag and keep operating.
// The RCU domains are left to the garbage collector. Concurrent use
// during teardown is not supported.
func (r *Runtime) Exit() {
	if !r.finalized.CompareAndSwap(false, true) {
		return
	}
	if r.reg != nil {
		r.reg.UnregisterAll()
		r.reg.SetFinalized(true)
	}
	r.metrics.Stop()
	r.logger.Debugf("exited")
}

// Finalized reports whether Exit has run.
func (r *Runtime) Finalized() bool { return r.finalized.Load() }

// runtimeEmitter adapts Runtime to statedump.Emitter, letting the
// subsystem fire statedump_begin/statedump_end through the ordinary
// dispatch fast path instead of a bespoke notification path.
type runtimeEmitter struct{ r *Runtime }

func (e *runtimeEmitter) EmitBegin(name string, key uint64) {
	e.r.emitInternal(e.r.beginDesc, name, key)
}

func (e *runtimeEmitter) EmitEnd(name string, key uint64) {
	e.r.emitInternal(e.r.endDesc, name, key)
}

func (r *Runtime) emitInternal(desc *EventDescription, payload any, key uint64) {
	if r.finalized.Load() {
		return
	}
	desc.State.Dispatch(r.dom, desc, payload, key, callerPC(2))
}

// checkOutOfBandHooks runs before the dispatch loop: if a shared
// (out-of-process) enable bit is set and key selects it (MatchAll or
// the bit's own reserved key), the corresponding out-of-band hook is
// invoked. Both hooks are best-effort: the user-event write is a single
// write syscall through an already-open descriptor, serialized by the
// Writer's own mutex, and the ptrace hook is a no-op marker call.
func (r *Runtime) checkOutOfBandHooks(desc *EventDescription, key uint64) {
	enabled := desc.State.Enabled()
	if enabled&constants.SharedBitsMask == 0 {
		return
	}
	if enabled&constants.UserEventBit != 0 && (key == constants.MatchAll || key == constants.KeyUserEvent) {
		if w := r.userWriter.Load(); w != nil {
			_ = w.Write(uint32(key))
		}
	}
	if enabled&constants.PtraceBit != 0 && (key == constants.MatchAll || key == constants.KeyPtrace) {
		userevents.PtraceHook()
	}
}

// callerPC resolves the program counter of the public entry point's
// caller, forwarded to every callback so a tracer can attribute the
// emit to a code location.
func callerPC(skip int) uintptr {
	pc, _, _, ok := runtime.Caller(skip)
	if !ok {
		return 0
	}
	return pc
}
