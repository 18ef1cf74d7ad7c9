// Package rcu implements a small epoch-based read-copy-update primitive:
// a bounded, non-blocking read section paired with a grace-period wait
// that blocks until every read section begun before the call has ended.
//
// Readers count themselves into one of two epoch buckets chosen by the
// domain's current epoch parity. A grace period advances the epoch and
// waits for the previous bucket to drain to zero: every reader still
// counted there began before the advance, and every reader that begins
// after it lands in the other bucket and observes the already-published
// new pointer.
package rcu

import (
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/ehrlich-b/go-side/internal/constants"
)

// Domain is one independent RCU domain. The core keeps two: one guarding
// the per-event callback vector, one guarding the state-dump handle list,
// so a grace-period wait on one can never be blocked on the other.
type Domain struct {
	mu      sync.Mutex // serializes WaitGracePeriod callers
	epoch   atomic.Uint64
	readers [2]atomic.Int64
}

// NewDomain returns a ready-to-use domain.
func NewDomain() *Domain {
	return &Domain{}
}

// ReadToken records the epoch bucket a read section counted itself into,
// so ReadEnd drains the same bucket ReadBegin charged.
type ReadToken struct {
	epoch uint64
}

// ReadBegin enters a read section. It never blocks and never allocates.
//
// The re-check after the increment closes the race with a concurrent
// epoch advance: if the epoch moved between the load and the increment,
// the grace period may already have drained this bucket, so the reader
// backs its count out and charges the current bucket instead. The retry
// is bounded by how often writers advance the epoch, which only happens
// on the (rare, mutex-serialized) registration paths.
func (d *Domain) ReadBegin() ReadToken {
	for {
		e := d.epoch.Load()
		d.readers[e&1].Add(1)
		if d.epoch.Load() == e {
			return ReadToken{epoch: e}
		}
		d.readers[e&1].Add(-1)
	}
}

// ReadEnd leaves the read section identified by tok.
func (d *Domain) ReadEnd(tok ReadToken) {
	d.readers[tok.epoch&1].Add(-1)
}

// WaitGracePeriod blocks until every read section that began before this
// call has ended. Callers must have already published the new pointer:
// the epoch advance orders after that store, so any reader counted in
// the new bucket loads the new value. Only registration/unregistration
// paths call this; it is never invoked from the emit fast path.
func (d *Domain) WaitGracePeriod() {
	d.mu.Lock()
	defer d.mu.Unlock()

	e := d.epoch.Load()
	d.epoch.Store(e + 1)

	bucket := &d.readers[e&1]
	spins := 0
	for bucket.Load() != 0 {
		if spins < constants.GracePeriodSpinAttempts {
			spins++
			continue
		}
		ts := unix.Timespec{Sec: 0, Nsec: int64(constants.AgentPollInterval)}
		_ = unix.Nanosleep(&ts, nil)
	}
}
