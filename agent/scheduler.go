package agent

// Fair dequeue policy for the push and delete pools.
//
// A high-lane worker takes the first queued request marked high priority and
// nothing else. A normal-lane worker walks the queue head to tail and takes
// the first request whose user is not already over-served: a user is
// over-served when it has work running and starting one more of its tasks
// would push its share of pool slots past its share of outstanding work.
// The running==0 clause keeps every user starvation-free. If every candidate
// is over-served the head of the queue runs anyway.

// nextTaskIndex picks the queue index the calling worker should run, or -1
// when a high-lane worker finds no high-priority work. The caller must hold
// p.mu. On selection the chosen task's user is marked running.
func (p *Pool) nextTaskIndex(priority Priority) int {
	index := -1
	improperUsers := map[string]bool{}

	var chosen *TaskRequest
	for i, t := range p.tasks {
		if priority == PriorityHigh {
			if t.Priority == PriorityHigh {
				index, chosen = i, t
				break
			}
			continue
		}

		user := t.User()
		if improperUsers[user] {
			continue
		}
		running, demand, supply := p.agent.registry.PushShares(t.Kind, user, p.workers)
		if running == 0 || supply <= demand {
			index, chosen = i, t
			break
		}
		improperUsers[user] = true
	}

	if index < 0 {
		if priority == PriorityHigh {
			return -1
		}
		// Every queued user is over-served; run the head rather than idle.
		index, chosen = 0, p.tasks[0]
	}

	p.agent.registry.MarkRunning(chosen.Kind, chosen.User())
	return index
}
