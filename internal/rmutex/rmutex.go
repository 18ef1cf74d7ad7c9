// Package rmutex implements a recursive mutex: the same goroutine may
// Lock it repeatedly without blocking on itself, so a tracer or
// statedump callback invoked while the registry or statedump lock is
// held may call back into the core.
//
// Go's sync.Mutex is intentionally not reentrant; this is the standard
// owner-goroutine + depth-counter substitute.
package rmutex

import (
	"runtime"
	"sync"
	"time"

	"github.com/ehrlich-b/go-side/internal/gid"
)

const spinAttemptsBeforeSleep = 100

func sched(spins int) {
	if spins < spinAttemptsBeforeSleep {
		runtime.Gosched()
		return
	}
	time.Sleep(time.Millisecond)
}

// Mutex is a recursive mutual-exclusion lock.
type Mutex struct {
	mu    sync.Mutex
	owner uint64
	depth int
}

// Lock acquires the mutex. If the calling goroutine already holds it,
// Lock returns immediately and bumps the recursion depth instead of
// blocking.
func (m *Mutex) Lock() {
	id := gid.Current()
	m.mu.Lock()
	if m.depth > 0 && m.owner == id {
		m.depth++
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	m.acquire(id)
}

// acquire performs the actual blocking acquisition for a non-reentrant
// caller, split out so Lock's fast reentrant path never touches it.
func (m *Mutex) acquire(id uint64) {
	for spins := 0; ; spins++ {
		m.mu.Lock()
		if m.depth == 0 {
			m.depth = 1
			m.owner = id
			m.mu.Unlock()
			return
		}
		m.mu.Unlock()
		// Another goroutine holds it; yield and retry. The registry and
		// statedump mutexes are held only across bounded, non-blocking
		// work, so contention here is brief.
		sched(spins)
	}
}

// Unlock releases one level of recursion. It panics if the calling
// goroutine does not hold the lock, the same contract sync.Mutex.Unlock
// makes for a lock not held.
func (m *Mutex) Unlock() {
	id := gid.Current()
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.depth == 0 || m.owner != id {
		panic("rmutex: unlock of unheld or not-owned mutex")
	}
	m.depth--
}
