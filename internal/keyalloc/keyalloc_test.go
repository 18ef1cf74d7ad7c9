package keyalloc

import (
	"sync"
	"testing"

	"github.com/ehrlich-b/go-side/internal/codes"
)

func TestRequestKeyStartsAboveReserved(t *testing.T) {
	a := New()
	k, code := a.RequestKey()
	if code != codes.Ok || k != 8 {
		t.Fatalf("first key = %d, %v; want 8, Ok", k, code)
	}
	k2, _ := a.RequestKey()
	if k2 != 9 {
		t.Fatalf("second key = %d, want 9", k2)
	}
}

func TestRequestKeyWrapReturnsNoMemory(t *testing.T) {
	a := &Allocator{next: ^uint64(0)}
	k, code := a.RequestKey()
	if code != codes.Ok || k != ^uint64(0) {
		t.Fatalf("last key before wrap: %d, %v", k, code)
	}
	_, code = a.RequestKey()
	if code != codes.NoMemory {
		t.Fatalf("after wrap: got %v, want NoMemory", code)
	}
}

func TestRequestKeyConcurrentUnique(t *testing.T) {
	a := New()
	seen := make(map[uint64]bool)
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			k, code := a.RequestKey()
			if code != codes.Ok {
				t.Errorf("unexpected code %v", code)
			}
			mu.Lock()
			defer mu.Unlock()
			if seen[k] {
				t.Errorf("duplicate key %d", k)
			}
			seen[k] = true
		}()
	}
	wg.Wait()
	if len(seen) != 100 {
		t.Fatalf("expected 100 unique keys, got %d", len(seen))
	}
}
