// Package userevents provides the two out-of-band hooks referenced
// from the dispatch fast path's shared-enable-bit check: a user-event
// write to a kernel tracing interface, and a ptrace marker function.
//
// The user-event write target (e.g. Linux's user_events misc device)
// is negotiated by the embedding process, not this package. The hook
// itself is a raw, allocation-free write through a file descriptor the
// caller opened, with no cgo involved.
package userevents

import (
	"sync"

	"golang.org/x/sys/unix"
)

// Writer issues the user-event write hook against an already-open file
// descriptor (typically /sys/kernel/tracing/user_events_data or
// equivalent, opened by the caller per its platform's convention — this
// package does not assume a path, since that binding is outside scope).
type Writer struct {
	mu sync.Mutex
	fd int
}

// NewWriter wraps fd, which the caller owns and must keep open for the
// Writer's lifetime.
func NewWriter(fd int) *Writer {
	return &Writer{fd: fd}
}

// Write issues a single best-effort raw write of id (the kernel-assigned
// user-event identifier) to the wrapped descriptor. It never allocates
// on the hot path; the caller is responsible for any framing the target
// ABI requires beyond the raw 4-byte identifier.
func (w *Writer) Write(id uint32) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var buf [4]byte
	buf[0] = byte(id)
	buf[1] = byte(id >> 8)
	buf[2] = byte(id >> 16)
	buf[3] = byte(id >> 24)
	_, err := unix.Write(w.fd, buf[:])
	return err
}

// Close releases the wrapped descriptor.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fd < 0 {
		return nil
	}
	err := unix.Close(w.fd)
	w.fd = -1
	return err
}

// PtraceHook is a deliberate no-op marker function with a stable,
// non-inlined address: an external debugger attaches a
// breakpoint to its entry point rather than the core calling into
// ptrace(2) itself. go:noinline is required — an inlined call site has
// no distinct address for a debugger to find.
//
//go:noinline
func PtraceHook() {}
