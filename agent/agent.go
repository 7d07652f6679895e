package agent

import (
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/palisadedb/palisade/common/stats"
)

// Env collects the external collaborators an Agent is wired with. Engine and
// Master are required. Cgroups and Stats default to inert implementations
// when nil; Downloader, NewPusher and NewPeer have no default, and the load
// and clone handlers need them.
type Env struct {
	Engine     StorageEngine
	Master     MasterClient
	Downloader FileDownloader
	NewPusher  PusherFactory
	NewPeer    PeerFactory
	Cgroups    CgroupsMgr
	Stats      stats.StatsReceiver
}

// Agent owns the task registry, the report version, and the worker pools and
// reporters of one backend process. All formerly-global state lives here so
// tests can run several agents side by side.
type Agent struct {
	cfg     *Config
	backend Backend
	env     Env
	stat    stats.StatsReceiver

	registry      *Registry
	reportVersion int64

	masterMu   sync.Mutex
	masterInfo MasterInfo

	// diskBroken wakes the disk and tablet reporters ahead of their timer
	// when a storage root fails.
	diskBroken *diskEvent

	pools      map[TaskKind]*Pool
	deletePool *Pool
	reporters  []*reportWorker

	stopOnce sync.Once
	stopCh   chan struct{}
}

func NewAgent(cfg *Config, host string, env Env) *Agent {
	if env.Cgroups == nil {
		env.Cgroups = noopCgroups{}
	}
	if env.Stats == nil {
		env.Stats = stats.NilStatsReceiver()
	}
	a := &Agent{
		cfg:      cfg,
		backend:  Backend{Host: host, BePort: cfg.BePort, HTTPPort: cfg.WebserverPort},
		env:      env,
		stat:     env.Stats.Scope("agent"),
		registry: NewRegistry(),
		// Seed so report versions from a restarted agent still move forward.
		reportVersion: time.Now().Unix() * 10000,
		diskBroken:    &diskEvent{},
		stopCh:        make(chan struct{}),
	}
	return a
}

// Start spawns every worker pool and the three periodic reporters.
func (a *Agent) Start() {
	a.pools = map[TaskKind]*Pool{}

	add := func(kind TaskKind, workers int, h handlerFunc) {
		p := newPool(kind.String(), a, workers, h)
		a.pools[kind] = p
		p.Start()
	}

	add(KindCreateTablet, a.cfg.CreateTabletWorkerCount, handleCreateTablet)
	add(KindDropTablet, a.cfg.DropTabletWorkerCount, handleDropTablet)
	add(KindClone, a.cfg.CloneWorkerCount, handleClone)
	add(KindStorageMediumMigrate, a.cfg.StorageMediumMigrateCount, handleStorageMediumMigrate)
	add(KindCancelDelete, a.cfg.CancelDeleteDataWorkerCount, handleCancelDelete)
	add(KindCheckConsistency, a.cfg.CheckConsistencyWorkerCount, handleCheckConsistency)
	add(KindMakeSnapshot, a.cfg.MakeSnapshotWorkerCount, handleMakeSnapshot)
	add(KindReleaseSnapshot, a.cfg.ReleaseSnapshotWorkerCount, handleReleaseSnapshot)
	add(KindUpload, a.cfg.UploadWorkerCount, handleUpload)
	add(KindRestore, a.cfg.RestoreWorkerCount, handleRestore)

	alter := newPool("alter_tablet", a, a.cfg.AlterTabletWorkerCount, handleAlterTablet)
	a.pools[KindSchemaChange] = alter
	a.pools[KindRollup] = alter
	alter.Start()

	push := newFairPool("push", a,
		a.cfg.PushWorkerCountNormalPriority, a.cfg.PushWorkerCountHighPriority,
		handlePush)
	a.pools[KindPush] = push
	push.Start()

	a.deletePool = newFairPool("delete", a, a.cfg.DeleteWorkerCount, 0, handlePush)
	a.pools[KindDelete] = a.deletePool
	a.deletePool.Start()

	a.reporters = []*reportWorker{
		newTaskReporter(a),
		newDiskReporter(a),
		newTabletReporter(a),
	}
	for _, r := range a.reporters {
		r.start()
	}
	log.Infof("agent started. host: %s, be_port: %d, http_port: %d",
		a.backend.Host, a.backend.BePort, a.backend.HTTPPort)
}

// Stop rejects further submissions, wakes every worker and reporter, and
// waits for in-flight tasks to finish. Queued tasks that never started are
// abandoned; the master re-drives them.
func (a *Agent) Stop() {
	a.stopOnce.Do(func() {
		close(a.stopCh)
		seen := map[*Pool]bool{}
		for _, p := range a.pools {
			if !seen[p] {
				seen[p] = true
				p.Stop()
			}
		}
		for _, r := range a.reporters {
			r.stop()
		}
		log.Info("agent stopped")
	})
}

// Submit routes one master-dispatched request to its pool. Duplicate
// signatures are dropped silently inside Pool.Submit.
func (a *Agent) Submit(req *TaskRequest) error {
	pool, err := a.poolFor(req)
	if err != nil {
		return err
	}
	pool.Submit(req)
	return nil
}

func (a *Agent) poolFor(req *TaskRequest) (*Pool, error) {
	var pool *Pool
	if req.Kind == KindPush && req.Push != nil && req.Push.PushType == PushDelete {
		pool = a.deletePool
	} else {
		pool = a.pools[req.Kind]
	}
	if pool == nil {
		return nil, TaskErrorf(ErrTaskRequest, "no pool for task kind %s", req.Kind)
	}
	return pool, nil
}

// SetMasterInfo records the master endpoint from a heartbeat.
func (a *Agent) SetMasterInfo(info MasterInfo) {
	a.masterMu.Lock()
	a.masterInfo = info
	a.masterMu.Unlock()
}

// Master returns the last heartbeat's master endpoint.
func (a *Agent) Master() MasterInfo {
	a.masterMu.Lock()
	defer a.masterMu.Unlock()
	return a.masterInfo
}

// NotifyDiskBroken wakes the disk and tablet reporters before their timer
// expires. Extra notifications within one cycle collapse.
func (a *Agent) NotifyDiskBroken() {
	a.diskBroken.broadcast()
}

// ReportVersion is the current monotonic state counter.
func (a *Agent) ReportVersion() int64 {
	return atomic.LoadInt64(&a.reportVersion)
}

func (a *Agent) bumpReportVersion() int64 {
	return atomic.AddInt64(&a.reportVersion, 1)
}

// Registry exposes the dedup registry, mainly for tests and diagnostics.
func (a *Agent) Registry() *Registry {
	return a.registry
}
