// Package fake provides in-memory implementations of the agent's external
// contracts, for demo binaries and tests that don't exercise a real storage
// engine.
package fake

import (
	"fmt"
	"sync"

	"github.com/palisadedb/palisade/agent"
)

// Engine is an in-memory storage engine keyed by (tablet id, schema hash).
type Engine struct {
	mu       sync.Mutex
	tablets  map[string]agent.TabletInfo
	roots    []agent.RootPathStat
	snapshot int
}

func NewEngine(roots ...agent.RootPathStat) *Engine {
	if len(roots) == 0 {
		roots = []agent.RootPathStat{{
			RootPath:              "/tmp/palisade_data",
			DiskTotalCapacity:     1 << 40,
			DiskAvailableCapacity: 1 << 39,
			IsUsed:                true,
		}}
	}
	return &Engine{tablets: map[string]agent.TabletInfo{}, roots: roots}
}

func key(tabletID int64, schemaHash int32) string {
	return fmt.Sprintf("%d.%d", tabletID, schemaHash)
}

func (e *Engine) CreateTablet(req *agent.CreateTabletReq) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	k := key(req.TabletID, req.SchemaHash)
	if _, ok := e.tablets[k]; ok {
		return fmt.Errorf("tablet %s already exists", k)
	}
	e.tablets[k] = agent.TabletInfo{TabletID: req.TabletID, SchemaHash: req.SchemaHash}
	return nil
}

func (e *Engine) DropTablet(req *agent.DropTabletReq) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.tablets, key(req.TabletID, req.SchemaHash))
	return nil
}

func (e *Engine) SchemaChange(req *agent.AlterTabletReq) error {
	return e.CreateTablet(&req.NewTablet)
}

func (e *Engine) Rollup(req *agent.AlterTabletReq) error {
	return e.CreateTablet(&req.NewTablet)
}

func (e *Engine) ShowAlterStatus(tabletID int64, schemaHash int32) (agent.AlterStatus, error) {
	return agent.AlterDone, nil
}

func (e *Engine) DeleteData(req *agent.PushReq) ([]agent.TabletInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	info, ok := e.tablets[key(req.TabletID, req.SchemaHash)]
	if !ok {
		return nil, fmt.Errorf("tablet %d.%d not found", req.TabletID, req.SchemaHash)
	}
	return []agent.TabletInfo{info}, nil
}

func (e *Engine) CancelDelete(req *agent.CancelDeleteReq) error { return nil }

func (e *Engine) StorageMediumMigrate(req *agent.StorageMediumMigrateReq) error { return nil }

func (e *Engine) ComputeChecksum(tabletID int64, schemaHash int32, version, versionHash int64) (uint32, error) {
	return uint32(tabletID) ^ uint32(version), nil
}

func (e *Engine) MakeSnapshot(req *agent.SnapshotReq) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.snapshot++
	return fmt.Sprintf("%s/snapshot/%d", e.roots[0].RootPath, e.snapshot), nil
}

func (e *Engine) ReleaseSnapshot(snapshotPath string) error { return nil }

func (e *Engine) ObtainShardPath(medium agent.StorageMedium) (string, error) {
	return e.roots[0].RootPath, nil
}

func (e *Engine) LoadHeader(shardRoot string, tabletID int64, schemaHash int32) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tablets[key(tabletID, schemaHash)] = agent.TabletInfo{TabletID: tabletID, SchemaHash: schemaHash}
	return nil
}

func (e *Engine) GetTablet(tabletID int64, schemaHash int32) (*agent.TabletInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if info, ok := e.tablets[key(tabletID, schemaHash)]; ok {
		return &info, nil
	}
	return nil, nil
}

func (e *Engine) TabletInfo(tabletID int64, schemaHash int32) (*agent.TabletInfo, error) {
	info, err := e.GetTablet(tabletID, schemaHash)
	if err == nil && info == nil {
		return nil, fmt.Errorf("tablet %d.%d not found", tabletID, schemaHash)
	}
	return info, err
}

func (e *Engine) AllRootPathStats() ([]agent.RootPathStat, error) {
	return append([]agent.RootPathStat{}, e.roots...), nil
}

func (e *Engine) AllTabletsInfo() ([]agent.TabletInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	infos := make([]agent.TabletInfo, 0, len(e.tablets))
	for _, info := range e.tablets {
		infos = append(infos, info)
	}
	return infos, nil
}

func (e *Engine) MarkDiskReported()   {}
func (e *Engine) MarkTabletReported() {}

var _ agent.StorageEngine = (*Engine)(nil)

// Pusher acknowledges every load without moving data.
type Pusher struct {
	req *agent.PushReq
}

func NewPusher(req *agent.PushReq) agent.Pusher {
	return &Pusher{req: req}
}

func (p *Pusher) Init() error { return nil }

func (p *Pusher) Process() ([]agent.TabletInfo, error) {
	return []agent.TabletInfo{{TabletID: p.req.TabletID, SchemaHash: p.req.SchemaHash}}, nil
}
