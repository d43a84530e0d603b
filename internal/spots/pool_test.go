package spots

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestPoolRunsAllWork(t *testing.T) {
	p := newPool(3)
	var n int64
	for i := 0; i < 20; i++ {
		p.submit(func() { atomic.AddInt64(&n, 1) })
	}
	if err := p.shutdownAndWait(time.Minute); err != nil {
		t.Fatalf("shutdownAndWait failed: %v", err)
	}
	if n != 20 {
		t.Errorf("ran %d tasks, want 20", n)
	}
}

func TestPoolBoundsConcurrency(t *testing.T) {
	p := newPool(2)
	var inFlight, peak int64
	for i := 0; i < 10; i++ {
		p.submit(func() {
			cur := atomic.AddInt64(&inFlight, 1)
			for {
				old := atomic.LoadInt64(&peak)
				if cur <= old || atomic.CompareAndSwapInt64(&peak, old, cur) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt64(&inFlight, -1)
		})
	}
	if err := p.shutdownAndWait(time.Minute); err != nil {
		t.Fatalf("shutdownAndWait failed: %v", err)
	}
	if peak > 2 {
		t.Errorf("peak concurrency %d exceeds pool size 2", peak)
	}
}

func TestPoolTimeout(t *testing.T) {
	p := newPool(1)
	release := make(chan struct{})
	p.submit(func() { <-release })
	if err := p.shutdownAndWait(10 * time.Millisecond); err == nil {
		t.Error("expected timeout error")
	}
	close(release)
}
