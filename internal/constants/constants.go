// Package constants holds the reserved identifiers and default tuning knobs
// shared across the instrumentation core.
package constants

import "time"

// Reserved callback keys. Keys below FirstDynamicKey carry built-in
// semantics; the allocator never hands them out.
const (
	// MatchAll selects every callback regardless of its registered key, on
	// both the emit side and the callback side.
	MatchAll uint64 = 0

	// KeyUserEvent is the reserved key for the user-event out-of-band hook.
	KeyUserEvent uint64 = 1

	// KeyPtrace is the reserved key for the ptrace out-of-band hook.
	KeyPtrace uint64 = 2

	// FirstDynamicKey is the first key handed out by the key allocator;
	// 3..7 are reserved for future built-in semantics.
	FirstDynamicKey uint64 = 8
)

// Enable-word layout. The top 8 bits belong to out-of-process tracers,
// written through shared memory; the low bits are this core's private
// in-process reference count. Both sides use relaxed atomics and treat
// the word as a hint, never a lock.
const (
	// SharedBitsShift is where the 8 out-of-process "shared" enable bits
	// begin; everything below is the in-process reference count.
	SharedBitsShift = 56

	// SharedBitsMask isolates the top 8 bits of the enable word.
	SharedBitsMask uint64 = 0xff << SharedBitsShift

	// UserEventBit is bit 7 of the shared byte (top bit of the word).
	UserEventBit uint64 = 1 << 63

	// PtraceBit is bit 6 of the shared byte.
	PtraceBit uint64 = 1 << 62
)

// MaxCallbacks is the accounting ceiling on a single event's callback
// vector; a register call that would cross it is rejected.
const MaxCallbacks uint32 = 1<<32 - 1

// Grace-period backoff tuning.
const (
	// AgentPollInterval is the sleep duration used once spinning gives up,
	// a 1ms nanosleep-based retry cadence.
	AgentPollInterval = time.Millisecond

	// GracePeriodSpinAttempts bounds the grace-period busy-spin phase
	// before it falls back to AgentPollInterval-length sleeps.
	GracePeriodSpinAttempts = 200
)
