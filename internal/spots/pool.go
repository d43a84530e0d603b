package spots

import (
	"errors"
	"sync"
	"time"
)

// errPoolTimeout is returned when the pool's work does not finish within
// the shutdown deadline.
var errPoolTimeout = errors.New("worker pool shutdown timed out")

// pool is a bounded worker pool. Submitted functions run on at most n
// goroutines; shutdownAndWait blocks until all submitted work finishes or
// the deadline passes.
type pool struct {
	sem chan struct{}
	wg  sync.WaitGroup
}

func newPool(n int) *pool {
	if n < 1 {
		n = 1
	}
	return &pool{sem: make(chan struct{}, n)}
}

func (p *pool) submit(f func()) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.sem <- struct{}{}
		defer func() { <-p.sem }()
		f()
	}()
}

// RunPooled executes f as a single unit of work on a bounded pool when
// threads > 0 and awaits it; otherwise f runs on the caller's goroutine.
func RunPooled(threads int, f func() error) error {
	if threads <= 0 {
		return f()
	}
	p := newPool(threads)
	var err error
	p.submit(func() { err = f() })
	if werr := p.shutdownAndWait(poolWait); werr != nil {
		return werr
	}
	return err
}

func (p *pool) shutdownAndWait(d time.Duration) error {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-time.After(d):
		return errPoolTimeout
	}
}
