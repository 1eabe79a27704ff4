package worker

import (
	"sync"

	"github.com/tradeshield/escrow-backend/internal/metrics"
)

type task func()

// Pool runs fire-and-forget side effects (notification fan-out, audit
// writes) off the request path.
type Pool struct {
	wg   sync.WaitGroup
	jobs chan task
}

func NewPool(n int) *Pool {
	p := &Pool{jobs: make(chan task, 1024)}
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for job := range p.jobs {
				job()
				metrics.WorkerQueueDepth.Dec()
			}
		}()
	}
	return p
}

func (p *Pool) Submit(f task) {
	metrics.WorkerQueueDepth.Inc()
	p.jobs <- f
}

// Stop drains the queue and waits for in-flight jobs.
func (p *Pool) Stop() {
	close(p.jobs)
	p.wg.Wait()
}
