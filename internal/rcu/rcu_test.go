package rcu

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestReadBeginEndRoundTrip(t *testing.T) {
	d := NewDomain()
	tok := d.ReadBegin()
	if d.readers[tok.epoch&1].Load() != 1 {
		t.Fatalf("reader not counted after ReadBegin")
	}
	d.ReadEnd(tok)
	if d.readers[tok.epoch&1].Load() != 0 {
		t.Fatalf("reader not drained after ReadEnd")
	}
}

func TestWaitGracePeriodWaitsForActiveReader(t *testing.T) {
	d := NewDomain()
	tok := d.ReadBegin()

	var waited atomic.Bool
	done := make(chan struct{})
	go func() {
		d.WaitGracePeriod()
		waited.Store(true)
		close(done)
	}()

	// Give the grace period goroutine a chance to start spinning before
	// we end the read section it must wait for.
	time.Sleep(5 * time.Millisecond)
	if waited.Load() {
		t.Fatalf("grace period returned while reader still active")
	}

	d.ReadEnd(tok)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("grace period never returned after reader ended")
	}
}

func TestWaitGracePeriodNoReaders(t *testing.T) {
	d := NewDomain()
	done := make(chan struct{})
	go func() {
		d.WaitGracePeriod()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("grace period with no readers should return promptly")
	}
}

func TestConcurrentReadersDoNotBlockEachOther(t *testing.T) {
	d := NewDomain()
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				tok := d.ReadBegin()
				d.ReadEnd(tok)
			}
		}()
	}
	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("concurrent readers deadlocked")
	}
}

// Readers overlapping a stream of grace periods must never be stranded:
// every WaitGracePeriod returns only once the bucket it retired is
// empty, even while new readers keep arriving in the other bucket.
func TestGracePeriodsUnderReaderChurn(t *testing.T) {
	d := NewDomain()
	stop := make(chan struct{})
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					tok := d.ReadBegin()
					d.ReadEnd(tok)
				}
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		for i := 0; i < 200; i++ {
			d.WaitGracePeriod()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatalf("grace periods starved under reader churn")
	}
	close(stop)
	wg.Wait()
}
