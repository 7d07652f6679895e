package agent

import (
	"sync"

	log "github.com/sirupsen/logrus"
)

// Registry is the process-wide deduplication set of (kind, signature) pairs
// plus the per-user accounting consumed by the fair push scheduler.
//
// Per-user counters are kept only for KindPush; every other kind records just
// the signature. The three total counters are guarded by mu; the running
// counters have their own lock so the scheduler can bump them while a
// different goroutine holds mu.
type Registry struct {
	mu           sync.Mutex
	seen         map[TaskKind]map[int64]bool
	totalPerUser map[TaskKind]map[string]int
	total        map[TaskKind]int

	runningMu      sync.Mutex
	runningPerUser map[TaskKind]map[string]int
}

func NewRegistry() *Registry {
	return &Registry{
		seen:           map[TaskKind]map[int64]bool{},
		totalPerUser:   map[TaskKind]map[string]int{},
		total:          map[TaskKind]int{},
		runningPerUser: map[TaskKind]map[string]int{},
	}
}

func tracksUsers(kind TaskKind) bool {
	return kind == KindPush
}

// TryInsert records a task. It returns false when the signature is already
// known, in which case the caller must drop the request silently.
func (r *Registry) TryInsert(kind TaskKind, signature int64, user string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	sigs := r.seen[kind]
	if sigs == nil {
		sigs = map[int64]bool{}
		r.seen[kind] = sigs
	}
	if sigs[signature] {
		log.Infof("task already known. kind: %s, signature: %d, known: %d",
			kind, signature, len(sigs))
		return false
	}
	sigs[signature] = true
	if tracksUsers(kind) {
		users := r.totalPerUser[kind]
		if users == nil {
			users = map[string]int{}
			r.totalPerUser[kind] = users
		}
		users[user]++
		r.total[kind]++
	}
	log.Debugf("task recorded. kind: %s, signature: %d, known: %d",
		kind, signature, len(sigs))
	return true
}

// MarkRunning counts one more in-flight task for (kind, user). Kinds that
// do not track users are a no-op, matching Remove.
func (r *Registry) MarkRunning(kind TaskKind, user string) {
	if !tracksUsers(kind) {
		return
	}
	r.runningMu.Lock()
	defer r.runningMu.Unlock()
	users := r.runningPerUser[kind]
	if users == nil {
		users = map[string]int{}
		r.runningPerUser[kind] = users
	}
	users[user]++
}

// Remove forgets a finished task. Counters saturate at zero: removing a
// signature that was never inserted (or was dropped as a duplicate) logs a
// warning and leaves the counters alone.
func (r *Registry) Remove(kind TaskKind, signature int64, user string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sigs := r.seen[kind]
	if sigs == nil || !sigs[signature] {
		log.Warnf("remove of unknown task. kind: %s, signature: %d", kind, signature)
		return
	}
	delete(sigs, signature)

	if tracksUsers(kind) {
		if users := r.totalPerUser[kind]; users != nil && users[user] > 0 {
			users[user]--
			if users[user] == 0 {
				delete(users, user)
			}
		}
		if r.total[kind] > 0 {
			r.total[kind]--
		}

		r.runningMu.Lock()
		if users := r.runningPerUser[kind]; users != nil && users[user] > 0 {
			users[user]--
			if users[user] == 0 {
				delete(users, user)
			}
		}
		r.runningMu.Unlock()
	}
	log.Debugf("task erased. kind: %s, signature: %d, known: %d",
		kind, signature, len(sigs))
}

// PushShares returns the accounting the fair scheduler compares for one
// candidate: the user's in-flight count, the user's share of outstanding work
// (demand) and the share of pool slots the user would hold if one more of its
// tasks started (supply).
func (r *Registry) PushShares(kind TaskKind, user string, poolSize int) (running int, demand, supply float64) {
	r.mu.Lock()
	if total := r.total[kind]; total > 0 {
		demand = float64(r.totalPerUser[kind][user]) / float64(total)
	}
	r.mu.Unlock()

	r.runningMu.Lock()
	running = r.runningPerUser[kind][user]
	r.runningMu.Unlock()

	supply = float64(running+1) / float64(poolSize)
	return running, demand, supply
}

// SnapshotSignatures deep-copies the known signatures for the task reporter.
func (r *Registry) SnapshotSignatures() map[TaskKind][]int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[TaskKind][]int64, len(r.seen))
	for kind, sigs := range r.seen {
		list := make([]int64, 0, len(sigs))
		for sig := range sigs {
			list = append(list, sig)
		}
		out[kind] = list
	}
	return out
}

// counts returns (total[kind], sum of totalPerUser[kind]) for tests.
func (r *Registry) counts(kind TaskKind) (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sum := 0
	for _, n := range r.totalPerUser[kind] {
		sum += n
	}
	return r.total[kind], sum
}
