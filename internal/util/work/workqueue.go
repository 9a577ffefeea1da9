package work

import (
	"errors"
	"sync"
	"time"

	"voxnote-go/internal/util"
)

var (
	ErrPoolStopped   = errors.New("work pool stopped")
	ErrPoolSaturated = errors.New("work pool queue full")
)

// Job is an opaque unit of work executed by the pool.
type Job interface{}

// JobHandler executes a single job.
type JobHandler func(job Job) error

type workItem struct {
	job        Job
	retries    int
	maxRetries int
}

// Pool runs jobs on a fixed set of workers drawing from a priority queue.
type Pool struct {
	queue      *util.PriorityQueue[*workItem]
	handler    JobHandler
	numWorkers int
	queueSize  int
	stopChan   chan struct{}
	stopOnce   sync.Once
	wg         sync.WaitGroup
	mu         sync.RWMutex
	stopped    bool
}

// NewPool creates the pool and starts its workers immediately. A positive
// queueSize bounds the backlog; zero means unbounded.
func NewPool(numWorkers, queueSize int, handler JobHandler) *Pool {
	if numWorkers <= 0 {
		numWorkers = 4
	}
	p := &Pool{
		queue:      util.NewPriorityQueue[*workItem](),
		handler:    handler,
		numWorkers: numWorkers,
		queueSize:  queueSize,
		stopChan:   make(chan struct{}),
	}
	for i := 0; i < numWorkers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

// Submit enqueues a job at default priority with no retries.
func (p *Pool) Submit(job Job) error {
	return p.SubmitWithOptions(job, 0, 0)
}

// SubmitWithOptions enqueues a job with an explicit priority and retry budget.
func (p *Pool) SubmitWithOptions(job Job, priority, maxRetries int) error {
	p.mu.RLock()
	stopped := p.stopped
	p.mu.RUnlock()
	if stopped {
		return ErrPoolStopped
	}
	if p.queueSize > 0 && p.queue.Len() >= p.queueSize {
		return ErrPoolSaturated
	}
	return p.queue.Push(&workItem{job: job, maxRetries: maxRetries}, priority)
}

// Stop shuts the queue and waits for in-flight jobs to finish.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		p.mu.Lock()
		p.stopped = true
		p.mu.Unlock()
		close(p.stopChan)
		p.queue.Close()
		p.wg.Wait()
	})
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		item, err := p.queue.Pop()
		if err != nil {
			return
		}
		p.process(item)
	}
}

func (p *Pool) process(item *workItem) {
	for {
		err := func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = errors.New("job panicked")
				}
			}()
			return p.handler(item.job)
		}()
		if err == nil {
			return
		}

		item.retries++
		if item.retries > item.maxRetries {
			return
		}

		backoff := time.Duration(item.retries) * time.Second
		if backoff > time.Minute {
			backoff = time.Minute
		}
		select {
		case <-time.After(backoff):
		case <-p.stopChan:
			return
		}
	}
}
