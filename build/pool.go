package build

import "sync"

// Pool runs tasks on a fixed set of workers. The first error stops the
// pool; queued tasks after that are dropped.
type Pool struct {
	tasks chan func() error
	stop  chan struct{}
	wg    sync.WaitGroup

	mu  sync.Mutex
	err error
}

// NewPool starts workers goroutines waiting for tasks.
func NewPool(workers int) *Pool {
	p := &Pool{
		tasks: make(chan func() error),
		stop:  make(chan struct{}),
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		select {
		case <-p.stop:
			return
		case task, ok := <-p.tasks:
			if !ok {
				return
			}
			select {
			case <-p.stop:
				return
			default:
			}
			if err := task(); err != nil {
				p.fail(err)
				return
			}
		}
	}
}

func (p *Pool) fail(err error) {
	p.mu.Lock()
	if p.err == nil {
		p.err = err
		close(p.stop)
	}
	p.mu.Unlock()
}

// Submit queues one task. It reports false once the pool has failed.
func (p *Pool) Submit(task func() error) bool {
	select {
	case p.tasks <- task:
		return true
	case <-p.stop:
		return false
	}
}

// Wait closes the queue, waits for the workers to drain and returns
// the first task error.
func (p *Pool) Wait() error {
	close(p.tasks)
	p.wg.Wait()
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}
