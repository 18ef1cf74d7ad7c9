// Package keyalloc implements the monotonic tracer-key allocator.
package keyalloc

import (
	"sync"

	"github.com/ehrlich-b/go-side/internal/codes"
	"github.com/ehrlich-b/go-side/internal/constants"
)

// Allocator hands out monotonically increasing 64-bit tracer keys,
// starting above the reserved range [0, 8).
type Allocator struct {
	mu   sync.Mutex
	next uint64
}

// New returns an allocator primed to hand out constants.FirstDynamicKey
// first.
func New() *Allocator {
	return &Allocator{next: constants.FirstDynamicKey}
}

// RequestKey returns the next key, or NoMemory if the counter has
// wrapped back to 0.
func (a *Allocator) RequestKey() (uint64, codes.Code) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.next == 0 {
		return 0, codes.NoMemory
	}
	key := a.next
	a.next++
	return key, codes.Ok
}
