package agent

import (
	"fmt"
	"io/ioutil"
	"strings"
	"sync"
)

func writeFile(path, content string) error {
	return ioutil.WriteFile(path, []byte(content), 0644)
}

// In-memory fakes for the agent's external contracts. Function-style error
// fields make each test read as a script of what the collaborator does.

type fakeEngine struct {
	mu    sync.Mutex
	calls []string

	createErr       error
	dropErr         error
	alterStatus     AlterStatus
	alterStatusErr  error
	schemaChangeErr error
	rollupErr       error
	deleteInfos     []TabletInfo
	deleteErr       error
	cancelErr       error
	migrateErr      error
	checksum        uint32
	checksumErr     error
	snapshotPath    string
	makeSnapErr     error
	releaseSnapErr  error
	shardPath       string
	shardErr        error
	loadHeaderErr   error
	existing        map[string]*TabletInfo
	tabletInfo      *TabletInfo
	tabletInfoErr   error
	rootStats       []RootPathStat
	rootStatsErr    error
	allTablets      []TabletInfo
	allTabletsErr   error
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{alterStatus: AlterDone, existing: map[string]*TabletInfo{}}
}

func (e *fakeEngine) record(format string, args ...interface{}) {
	e.mu.Lock()
	e.calls = append(e.calls, fmt.Sprintf(format, args...))
	e.mu.Unlock()
}

func (e *fakeEngine) recorded() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string{}, e.calls...)
}

func (e *fakeEngine) CreateTablet(req *CreateTabletReq) error {
	e.record("create %d.%d", req.TabletID, req.SchemaHash)
	return e.createErr
}

func (e *fakeEngine) DropTablet(req *DropTabletReq) error {
	e.record("drop %d.%d", req.TabletID, req.SchemaHash)
	return e.dropErr
}

func (e *fakeEngine) SchemaChange(req *AlterTabletReq) error {
	e.record("schema_change %d.%d", req.NewTablet.TabletID, req.NewTablet.SchemaHash)
	return e.schemaChangeErr
}

func (e *fakeEngine) Rollup(req *AlterTabletReq) error {
	e.record("rollup %d.%d", req.NewTablet.TabletID, req.NewTablet.SchemaHash)
	return e.rollupErr
}

func (e *fakeEngine) ShowAlterStatus(tabletID int64, schemaHash int32) (AlterStatus, error) {
	return e.alterStatus, e.alterStatusErr
}

func (e *fakeEngine) DeleteData(req *PushReq) ([]TabletInfo, error) {
	e.record("delete_data %d", req.TabletID)
	return e.deleteInfos, e.deleteErr
}

func (e *fakeEngine) CancelDelete(req *CancelDeleteReq) error {
	e.record("cancel_delete %d", req.TabletID)
	return e.cancelErr
}

func (e *fakeEngine) StorageMediumMigrate(req *StorageMediumMigrateReq) error {
	e.record("migrate %d", req.TabletID)
	return e.migrateErr
}

func (e *fakeEngine) ComputeChecksum(tabletID int64, schemaHash int32, version, versionHash int64) (uint32, error) {
	return e.checksum, e.checksumErr
}

func (e *fakeEngine) MakeSnapshot(req *SnapshotReq) (string, error) {
	e.record("make_snapshot %d.%d", req.TabletID, req.SchemaHash)
	return e.snapshotPath, e.makeSnapErr
}

func (e *fakeEngine) ReleaseSnapshot(snapshotPath string) error {
	e.record("release_snapshot %s", snapshotPath)
	return e.releaseSnapErr
}

func (e *fakeEngine) ObtainShardPath(medium StorageMedium) (string, error) {
	return e.shardPath, e.shardErr
}

func (e *fakeEngine) LoadHeader(shardRoot string, tabletID int64, schemaHash int32) error {
	e.record("load_header %s %d.%d", shardRoot, tabletID, schemaHash)
	return e.loadHeaderErr
}

func (e *fakeEngine) GetTablet(tabletID int64, schemaHash int32) (*TabletInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.existing[fmt.Sprintf("%d.%d", tabletID, schemaHash)], nil
}

func (e *fakeEngine) TabletInfo(tabletID int64, schemaHash int32) (*TabletInfo, error) {
	return e.tabletInfo, e.tabletInfoErr
}

func (e *fakeEngine) AllRootPathStats() ([]RootPathStat, error) {
	return e.rootStats, e.rootStatsErr
}

func (e *fakeEngine) AllTabletsInfo() ([]TabletInfo, error) {
	return e.allTablets, e.allTabletsErr
}

func (e *fakeEngine) MarkDiskReported()   { e.record("mark_disk_reported") }
func (e *fakeEngine) MarkTabletReported() { e.record("mark_tablet_reported") }

type fakeMaster struct {
	mu       sync.Mutex
	finishes []FinishRequest
	reports  []ReportRequest
	// finishErrs is consumed one error per FinishTask call; nil means ok.
	finishErrs []error
	reportErr  error
	notify     chan struct{}
}

func newFakeMaster() *fakeMaster {
	return &fakeMaster{notify: make(chan struct{}, 128)}
}

func (m *fakeMaster) FinishTask(req *FinishRequest) (*MasterResult, error) {
	m.mu.Lock()
	m.finishes = append(m.finishes, *req)
	var err error
	if len(m.finishErrs) > 0 {
		err, m.finishErrs = m.finishErrs[0], m.finishErrs[1:]
	}
	m.mu.Unlock()
	m.notify <- struct{}{}
	if err != nil {
		return nil, err
	}
	return &MasterResult{}, nil
}

func (m *fakeMaster) Report(req *ReportRequest) (*MasterResult, error) {
	m.mu.Lock()
	m.reports = append(m.reports, *req)
	err := m.reportErr
	m.mu.Unlock()
	m.notify <- struct{}{}
	if err != nil {
		return nil, err
	}
	return &MasterResult{}, nil
}

func (m *fakeMaster) finished() []FinishRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]FinishRequest{}, m.finishes...)
}

func (m *fakeMaster) reported() []ReportRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ReportRequest{}, m.reports...)
}

type fakePeer struct {
	mu            sync.Mutex
	host          string
	snapErrHosts  map[string]bool
	snapshotPaths map[string]string
	calls         *[]string
}

type fakePeerDialer struct {
	mu            sync.Mutex
	snapErrHosts  map[string]bool
	snapshotPaths map[string]string
	calls         []string
}

func newFakePeerDialer() *fakePeerDialer {
	return &fakePeerDialer{snapErrHosts: map[string]bool{}, snapshotPaths: map[string]string{}}
}

func (d *fakePeerDialer) factory() PeerFactory {
	return func(backend Backend) PeerClient {
		return &fakePeer{
			host:          backend.Host,
			snapErrHosts:  d.snapErrHosts,
			snapshotPaths: d.snapshotPaths,
			calls:         &d.calls,
		}
	}
}

func (d *fakePeerDialer) recorded() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string{}, d.calls...)
}

func (p *fakePeer) record(call string) {
	p.mu.Lock()
	*p.calls = append(*p.calls, call)
	p.mu.Unlock()
}

func (p *fakePeer) MakeSnapshot(req *SnapshotReq) (*SnapshotResult, error) {
	p.record("make_snapshot " + p.host)
	if p.snapErrHosts[p.host] {
		return nil, fmt.Errorf("snapshot refused on %s", p.host)
	}
	return &SnapshotResult{SnapshotPath: p.snapshotPaths[p.host]}, nil
}

func (p *fakePeer) ReleaseSnapshot(snapshotPath string) error {
	p.record("release_snapshot " + p.host)
	return nil
}

type fakeDownloader struct {
	mu sync.Mutex
	// listing is returned for every directory URL; files is keyed by the
	// file name the URL ends with.
	listing []string
	files   map[string]string
	listErr error
	calls   []string
}

func (d *fakeDownloader) record(call string) {
	d.mu.Lock()
	d.calls = append(d.calls, call)
	d.mu.Unlock()
}

func (d *fakeDownloader) ListDir(url string, timeoutSeconds int64) ([]string, error) {
	d.record("list")
	return d.listing, d.listErr
}

func (d *fakeDownloader) Length(url string, timeoutSeconds int64) (int64, error) {
	d.record("length")
	for name, content := range d.files {
		if strings.HasSuffix(url, name) {
			return int64(len(content)), nil
		}
	}
	return 0, fmt.Errorf("no such file: %s", url)
}

func (d *fakeDownloader) Download(url, localPath string, timeoutSeconds int64) (int64, error) {
	d.record("download " + url)
	for name, content := range d.files {
		if strings.HasSuffix(url, name) {
			return int64(len(content)), writeFile(localPath, content)
		}
	}
	return 0, fmt.Errorf("no such file: %s", url)
}

type fakePusher struct {
	initErr     error
	processErrs []error
	infos       []TabletInfo
	processed   int
}

func (p *fakePusher) Init() error { return p.initErr }

func (p *fakePusher) Process() ([]TabletInfo, error) {
	p.processed++
	if len(p.processErrs) > 0 {
		var err error
		err, p.processErrs = p.processErrs[0], p.processErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	return p.infos, nil
}

// newTestAgent wires an Agent with fakes and zero sleeps so retry loops run
// hot. The agent is not started; tests build the pools they need.
func newTestAgent() (*Agent, *fakeEngine, *fakeMaster) {
	cfg := DefaultConfig()
	cfg.SleepOneSecond = 0
	engine := newFakeEngine()
	master := newFakeMaster()
	a := NewAgent(cfg, "testhost", Env{Engine: engine, Master: master})
	a.SetMasterInfo(MasterInfo{Host: "fe", Port: 9020, Token: "tok"})
	return a, engine, master
}
