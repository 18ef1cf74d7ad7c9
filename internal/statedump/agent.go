package statedump

import (
	"sync"

	"golang.org/x/sys/unix"

	"github.com/ehrlich-b/go-side/internal/list"
)

// agentState is the agent thread block's condition bitset. The worker
// loop waits until one of these is raised, services it, and goes back
// to sleep.
type agentState uint32

const (
	stateBlocked agentState = 1 << iota
	stateHandleRequest
	stateExit
	statePause
	statePauseAck
)

// agentBlock is the singleton agent thread block. It owns at most one
// worker goroutine, started on the first Agent-mode registration and
// stopped when the last one unregisters.
type agentBlock struct {
	sub *Subsystem

	mu       sync.Mutex
	workerCV *sync.Cond
	waiterCV *sync.Cond

	refCount int
	threadID int
	state    agentState
	running  bool
	done     chan struct{}
}

func newAgentBlock(sub *Subsystem) *agentBlock {
	a := &agentBlock{sub: sub}
	a.workerCV = sync.NewCond(&a.mu)
	a.waiterCV = sync.NewCond(&a.mu)
	return a
}

// acquireForRegister takes the lifecycle lock and bumps ref_count,
// spawning the worker on the 0→1 transition. The lock is held on
// return; releaseAfterRegister drops it. Holding it across the
// registration keeps the worker from observing a half-linked handle
// list on its first wakeup.
func (a *agentBlock) acquireForRegister() {
	a.mu.Lock()
	a.refCount++
	if a.refCount == 1 {
		a.state &^= stateExit
		a.done = make(chan struct{})
		a.running = true
		go a.run(a.done)
	}
}

func (a *agentBlock) releaseAfterRegister() {
	a.mu.Unlock()
}

// releaseForUnregister drops ref_count, and on the last reference asks
// the worker to exit and joins it before returning.
func (a *agentBlock) releaseForUnregister() {
	a.mu.Lock()
	a.refCount--
	if a.refCount <= 0 {
		a.refCount = 0
		a.state |= stateExit
		a.running = false
		done := a.done
		a.done = nil
		a.workerCV.Broadcast()
		a.mu.Unlock()
		if done != nil {
			<-done
		}
		return
	}
	a.mu.Unlock()
}

// signalHandleRequest wakes the worker to process newly queued pending
// notifications.
func (a *agentBlock) signalHandleRequest() {
	a.mu.Lock()
	a.state |= stateHandleRequest
	a.workerCV.Broadcast()
	a.mu.Unlock()
}

// broadcastWaiter wakes every RequestNotificationRegister call blocked
// waiting for its initial drain to complete.
func (a *agentBlock) broadcastWaiter() {
	a.mu.Lock()
	a.waiterCV.Broadcast()
	a.mu.Unlock()
}

// run is the agent worker loop body. It blocks on worker_cv until told
// to handle a request, pause, or exit, then drains every Agent-mode
// handle in the subsystem.
func (a *agentBlock) run(done chan struct{}) {
	defer close(done)

	a.mu.Lock()
	a.threadID = unix.Gettid()
	a.mu.Unlock()

	for {
		a.mu.Lock()
		for a.state&(stateExit|stateHandleRequest|statePause) == 0 {
			a.state |= stateBlocked
			a.workerCV.Wait()
		}
		a.state &^= stateBlocked

		if a.state&statePause != 0 {
			a.state |= statePauseAck
			a.waiterCV.Broadcast()
			for a.state&statePause != 0 {
				a.workerCV.Wait()
			}
			a.state &^= statePauseAck
			a.mu.Unlock()
			continue
		}

		if a.state&stateExit != 0 {
			a.mu.Unlock()
			return
		}
		a.state &^= stateHandleRequest
		a.mu.Unlock()

		a.drainAll()
	}
}

// drainAll walks the handle list inside a read section of the statedump
// RCU domain rather than under the subsystem mutex, so a tracer thread
// enqueueing new requests is never blocked behind an application's
// snapshot callback. Unregister's grace-period wait pairs with this:
// once it returns, no worker still holds a reference into the removed
// handle.
func (a *agentBlock) drainAll() {
	tok := a.sub.dom.ReadBegin()
	defer a.sub.dom.ReadEnd(tok)

	a.sub.handles.Each(func(n *list.Node[*Handle]) {
		if n.Value.mode == Agent {
			a.sub.drain(n.Value)
		}
	})
}

// pause asks the worker to stop touching shared state and waits for its
// acknowledgement, so a forking child never inherits it mid-wakeup. The
// caller pairs it with resume (parent) or resetAfterForkChild (child).
func (a *agentBlock) pause() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.running {
		return
	}
	a.state |= statePause
	a.workerCV.Broadcast()
	for a.state&statePauseAck == 0 {
		a.waiterCV.Wait()
	}
}

// resume releases a pause in the parent after the fork completes.
func (a *agentBlock) resume() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.running {
		return
	}
	a.state &^= statePause
	a.workerCV.Broadcast()
}

// resetAfterForkChild reinitializes the block in the child: the worker
// goroutine does not survive a fork, so the condition variables and
// state bits start fresh and, if a worker was live before the fork, a
// new one is spawned for the handles still registered (ref_count is
// kept).
func (a *agentBlock) resetAfterForkChild() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.workerCV = sync.NewCond(&a.mu)
	a.waiterCV = sync.NewCond(&a.mu)
	a.state = 0
	if !a.running {
		a.done = nil
		return
	}
	a.done = make(chan struct{})
	go a.run(a.done)
}
