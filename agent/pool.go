package agent

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/palisadedb/palisade/common/stats"
)

// handlerFunc runs one dequeued request to completion. Handlers never panic
// and return no error; any failure is encoded in the FinishRequest they send.
type handlerFunc func(a *Agent, req *TaskRequest)

// Pool is a fixed-size set of workers draining one FIFO queue of requests.
// Fair pools (push/delete) replace the FIFO dequeue with the per-user policy
// in scheduler.go and may reserve part of their workers for a high-priority
// lane.
type Pool struct {
	name    string
	agent   *Agent
	workers int
	high    int
	fair    bool
	handle  handlerFunc
	stat    stats.StatsReceiver

	mu      sync.Mutex
	cond    *sync.Cond
	tasks   []*TaskRequest
	stopped bool

	wg sync.WaitGroup
}

func newPool(name string, a *Agent, workers int, handle handlerFunc) *Pool {
	p := &Pool{
		name:    name,
		agent:   a,
		workers: workers,
		handle:  handle,
		stat:    a.stat.Scope("pool", name),
	}
	p.cond = sync.NewCond(&p.mu)
	return p
}

func newFairPool(name string, a *Agent, normal, high int, handle handlerFunc) *Pool {
	p := newPool(name, a, normal+high, handle)
	p.high = high
	p.fair = true
	return p
}

// Start spawns the pool's workers eagerly. The first `high` workers of a
// fair pool form the high-priority lane; a worker's lane never changes.
func (p *Pool) Start() {
	for i := 0; i < p.workers; i++ {
		priority := PriorityNormal
		if p.fair && i < p.high {
			priority = PriorityHigh
		}
		p.wg.Add(1)
		go p.workerLoop(priority)
	}
	log.Infof("pool started. name: %s, workers: %d, high: %d", p.name, p.workers, p.high)
}

// Submit records the request in the registry and enqueues it. Duplicates
// are dropped silently; submissions after Stop are rejected.
func (p *Pool) Submit(req *TaskRequest) {
	if !p.agent.registry.TryInsert(req.Kind, req.Signature, req.User()) {
		p.stat.Counter("duplicates").Inc(1)
		return
	}
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		// Keep the registry consistent: the task will never run.
		p.agent.registry.Remove(req.Kind, req.Signature, req.User())
		log.Warnf("submit after stop. pool: %s, signature: %d", p.name, req.Signature)
		return
	}
	p.tasks = append(p.tasks, req)
	p.stat.Counter("submits").Inc(1)
	p.cond.Signal()
	p.mu.Unlock()
}

// Stop wakes every worker and waits for in-flight tasks to complete. Tasks
// still queued are abandoned and removed from the registry so a re-sent
// signature is accepted after restart.
func (p *Pool) Stop() {
	p.mu.Lock()
	p.stopped = true
	abandoned := p.tasks
	p.tasks = nil
	p.cond.Broadcast()
	p.mu.Unlock()

	for _, req := range abandoned {
		p.agent.registry.Remove(req.Kind, req.Signature, req.User())
	}
	if len(abandoned) > 0 {
		log.Warnf("pool abandoning queued tasks on stop. pool: %s, count: %d",
			p.name, len(abandoned))
	}
	p.wg.Wait()
}

// QueueLen is the number of queued (not yet running) requests.
func (p *Pool) QueueLen() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.tasks)
}

func (p *Pool) workerLoop(priority Priority) {
	defer p.wg.Done()
	for {
		req, ok := p.dequeue(priority)
		if !ok {
			return
		}
		if req == nil {
			// High lane found no high-priority work; yield for a beat.
			time.Sleep(p.agent.cfg.sleep())
			continue
		}
		p.runOne(req)
	}
}

// dequeue blocks until a request is available or the pool stops. A fair
// high-lane worker that finds only normal work returns (nil, true) after
// signalling one other waiter to take it.
func (p *Pool) dequeue(priority Priority) (*TaskRequest, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for len(p.tasks) == 0 && !p.stopped {
		p.cond.Wait()
	}
	if p.stopped {
		return nil, false
	}
	if !p.fair {
		req := p.tasks[0]
		p.tasks = p.tasks[1:]
		return req, true
	}

	index := p.nextTaskIndex(priority)
	if index < 0 {
		// There is no high-priority task; let a normal worker have it.
		p.cond.Signal()
		return nil, true
	}
	req := p.tasks[index]
	p.tasks = append(p.tasks[:index], p.tasks[index+1:]...)
	return req, true
}

func (p *Pool) runOne(req *TaskRequest) {
	defer p.stat.Latency("handle").Time()()
	p.agent.env.Cgroups.ApplySystemCgroup()
	p.handle(p.agent, req)
	p.agent.registry.Remove(req.Kind, req.Signature, req.User())
	p.stat.Counter("finished").Inc(1)
}
