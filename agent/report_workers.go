package agent

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// The three periodic reporters push agent state to the master: the known
// task signatures, the disk inventory, and the tablet inventory. Each runs
// as one goroutine. None of them report before the first master heartbeat
// has arrived. A reporter's own RPC failure skips the cycle; the next timer
// tick retries.

type reportWorker struct {
	name    string
	agent   *Agent
	collect func() (*ReportRequest, error)
	wait    func(stop <-chan struct{})
	done    chan struct{}
}

func (w *reportWorker) start() {
	go func() {
		defer close(w.done)
		for {
			select {
			case <-w.agent.stopCh:
				return
			default:
			}
			if !w.waitForHeartbeat() {
				return
			}
			req, err := w.collect()
			if err != nil {
				log.Warnf("%s collect failed. err: %v", w.name, err)
			} else {
				req.Backend = w.agent.backend
				if _, rerr := w.agent.env.Master.Report(req); rerr != nil {
					log.Warnf("finish %s failed. err: %v", w.name, rerr)
					w.agent.stat.Scope(w.name).Counter("failures").Inc(1)
				} else {
					log.Debugf("finish %s success", w.name)
				}
			}
			w.wait(w.agent.stopCh)
		}
	}()
}

func (w *reportWorker) stop() {
	<-w.done
}

// waitForHeartbeat blocks until the master endpoint is known (port != 0).
// Returns false when the agent stops first.
func (w *reportWorker) waitForHeartbeat() bool {
	for w.agent.Master().Port == 0 {
		log.Info("waiting to receive first heartbeat from master")
		select {
		case <-w.agent.stopCh:
			return false
		case <-time.After(w.agent.cfg.sleep()):
		}
	}
	return true
}

func sleepWait(d time.Duration) func(stop <-chan struct{}) {
	return func(stop <-chan struct{}) {
		select {
		case <-stop:
		case <-time.After(d):
		}
	}
}

func newTaskReporter(a *Agent) *reportWorker {
	return &reportWorker{
		name:  "report_task",
		agent: a,
		collect: func() (*ReportRequest, error) {
			return &ReportRequest{Tasks: a.registry.SnapshotSignatures()}, nil
		},
		wait: sleepWait(a.cfg.taskInterval()),
		done: make(chan struct{}),
	}
}

// diskEvent fans a disk-broken notification out to every subscribed
// reporter. Notifications within one cycle collapse per subscriber.
type diskEvent struct {
	mu   sync.Mutex
	subs []chan struct{}
}

func (e *diskEvent) subscribe() chan struct{} {
	ch := make(chan struct{}, 1)
	e.mu.Lock()
	e.subs = append(e.subs, ch)
	e.mu.Unlock()
	return ch
}

func (e *diskEvent) broadcast() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, ch := range e.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// diskEventWait sleeps for the reporter's interval but wakes early when a
// storage root breaks. An early wakeup acknowledges the event through mark
// so the engine does not re-signal within the same interval.
func diskEventWait(a *Agent, d time.Duration, mark func()) func(stop <-chan struct{}) {
	broken := a.diskBroken.subscribe()
	return func(stop <-chan struct{}) {
		select {
		case <-stop:
		case <-broken:
			mark()
		case <-time.After(d):
		}
	}
}

func newDiskReporter(a *Agent) *reportWorker {
	return &reportWorker{
		name:  "report_disk_state",
		agent: a,
		collect: func() (*ReportRequest, error) {
			stats, err := a.env.Engine.AllRootPathStats()
			if err != nil {
				return nil, err
			}
			disks := make(map[string]DiskInfo, len(stats))
			for _, s := range stats {
				disks[s.RootPath] = DiskInfo{
					RootPath:              s.RootPath,
					DiskTotalCapacity:     float64(s.DiskTotalCapacity),
					DataUsedCapacity:      float64(s.DataUsedCapacity),
					DiskAvailableCapacity: float64(s.DiskAvailableCapacity),
					IsUsed:                s.IsUsed,
				}
			}
			return &ReportRequest{Disks: disks}, nil
		},
		wait: diskEventWait(a, a.cfg.diskInterval(), func() { a.env.Engine.MarkDiskReported() }),
		done: make(chan struct{}),
	}
}

func newTabletReporter(a *Agent) *reportWorker {
	return &reportWorker{
		name:  "report_tablet",
		agent: a,
		collect: func() (*ReportRequest, error) {
			tablets, err := a.env.Engine.AllTabletsInfo()
			if err != nil {
				return nil, err
			}
			return &ReportRequest{
				Tablets:       tablets,
				ReportVersion: a.ReportVersion(),
			}, nil
		},
		wait: diskEventWait(a, a.cfg.tabletInterval(), func() { a.env.Engine.MarkTabletReported() }),
		done: make(chan struct{}),
	}
}
