package runner

import "sync"

// Pool bounds how many background workers run at once. Submissions past the
// limit queue up behind a semaphore rather than being rejected.
type Pool struct {
	sem chan struct{}
	wg  sync.WaitGroup
}

func NewPool(size int) *Pool {
	if size < 1 {
		size = 1
	}

	return &Pool{
		sem: make(chan struct{}, size),
	}
}

// Submit schedules fn on the pool and returns immediately.
func (p *Pool) Submit(fn func()) {
	p.wg.Add(1)

	go func() {
		defer p.wg.Done()

		p.sem <- struct{}{}
		defer func() { <-p.sem }()

		fn()
	}()
}

// Wait blocks until every submitted function has finished.
func (p *Pool) Wait() {
	p.wg.Wait()
}
