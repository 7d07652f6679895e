// Package agent implements the backend task agent: typed worker pools fed by
// the cluster master, a fair per-user scheduler for data pushes, cluster-wide
// task deduplication, and the periodic state reporters.
package agent

import "fmt"

// TaskKind discriminates the payload carried by a TaskRequest.
type TaskKind int

const (
	KindCreateTablet TaskKind = iota
	KindDropTablet
	KindPush
	KindDelete
	KindClone
	KindSchemaChange
	KindRollup
	KindStorageMediumMigrate
	KindCancelDelete
	KindCheckConsistency
	KindMakeSnapshot
	KindReleaseSnapshot
	KindUpload
	KindRestore

	// Internal kinds used by the periodic reporters. They never enter a
	// worker pool queue.
	KindReportTask
	KindReportDiskState
	KindReportTablet
)

var kindNames = map[TaskKind]string{
	KindCreateTablet:         "create_tablet",
	KindDropTablet:           "drop_tablet",
	KindPush:                 "push",
	KindDelete:               "delete",
	KindClone:                "clone",
	KindSchemaChange:         "schema_change",
	KindRollup:               "rollup",
	KindStorageMediumMigrate: "storage_medium_migrate",
	KindCancelDelete:         "cancel_delete",
	KindCheckConsistency:     "check_consistency",
	KindMakeSnapshot:         "make_snapshot",
	KindReleaseSnapshot:      "release_snapshot",
	KindUpload:               "upload",
	KindRestore:              "restore",
	KindReportTask:           "report_task",
	KindReportDiskState:      "report_disk_state",
	KindReportTablet:         "report_tablet",
}

func (k TaskKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("task_kind(%d)", int(k))
}

// Priority of a queued request. Only the push pool looks at it.
type Priority int

const (
	PriorityNormal Priority = iota
	PriorityHigh
)

// PushType selects the operation a PushReq performs.
type PushType int

const (
	PushLoad PushType = iota
	PushLoadDelete
	PushDelete
)

// StorageMedium of a shard root path.
type StorageMedium int

const (
	MediumHDD StorageMedium = iota
	MediumSSD
)

// AlterStatus is the storage engine's view of a prior alter job on a tablet.
type AlterStatus int

const (
	AlterWaiting AlterStatus = iota
	AlterRunning
	AlterDone
	AlterFailed
)

// StatusCode is the status reported back to the master for a finished task.
type StatusCode int

const (
	StatusOK StatusCode = iota
	StatusAnalysisError
	StatusRuntimeError
)

func (s StatusCode) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusAnalysisError:
		return "ANALYSIS_ERROR"
	case StatusRuntimeError:
		return "RUNTIME_ERROR"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Backend identifies one agent process in the cluster.
type Backend struct {
	Host     string `json:"host"`
	BePort   int    `json:"be_port"`
	HTTPPort int    `json:"http_port"`
}

// MasterInfo is the master endpoint as learned from heartbeats. A zero Port
// means no heartbeat has arrived yet.
type MasterInfo struct {
	Host  string
	Port  int
	Token string
}

// TabletVersion is a (version, version hash) pair.
type TabletVersion struct {
	Version int64 `json:"version"`
	Hash    int64 `json:"version_hash"`
}

// TabletInfo describes one local tablet as reported to the master.
type TabletInfo struct {
	TabletID    int64 `json:"tablet_id"`
	SchemaHash  int32 `json:"schema_hash"`
	Version     int64 `json:"version"`
	VersionHash int64 `json:"version_hash"`
	RowCount    int64 `json:"row_count"`
	DataSize    int64 `json:"data_size"`
}

// RootPathStat is the storage engine's inventory of one shard root path.
type RootPathStat struct {
	RootPath              string
	DiskTotalCapacity     int64
	DataUsedCapacity      int64
	DiskAvailableCapacity int64
	IsUsed                bool
}

// DiskInfo is the wire form of a RootPathStat in a ReportRequest.
type DiskInfo struct {
	RootPath              string  `json:"root_path"`
	DiskTotalCapacity     float64 `json:"disk_total_capacity"`
	DataUsedCapacity      float64 `json:"data_used_capacity"`
	DiskAvailableCapacity float64 `json:"disk_available_capacity"`
	IsUsed                bool    `json:"used"`
}

// ResourceInfo names the user a request is accounted to by the fair scheduler.
type ResourceInfo struct {
	User  string `json:"user"`
	Group string `json:"group,omitempty"`
}

// CreateTabletReq asks the storage engine to create a tablet.
type CreateTabletReq struct {
	TabletID   int64         `json:"tablet_id"`
	SchemaHash int32         `json:"schema_hash"`
	Medium     StorageMedium `json:"storage_medium"`
}

// DropTabletReq asks the storage engine to drop a tablet.
type DropTabletReq struct {
	TabletID   int64 `json:"tablet_id"`
	SchemaHash int32 `json:"schema_hash"`
}

// AlterTabletReq describes a schema change or rollup from a base tablet to a
// new tablet.
type AlterTabletReq struct {
	BaseTabletID   int64           `json:"base_tablet_id"`
	BaseSchemaHash int32           `json:"base_schema_hash"`
	NewTablet      CreateTabletReq `json:"new_tablet_req"`
}

// PushReq describes a batch load (LOAD/LOAD_DELETE) or a delete (DELETE)
// against a tablet.
type PushReq struct {
	TabletID     int64    `json:"tablet_id"`
	SchemaHash   int32    `json:"schema_hash"`
	PushType     PushType `json:"push_type"`
	Version      int64    `json:"version"`
	VersionHash  int64    `json:"version_hash"`
	HTTPFilePath string   `json:"http_file_path,omitempty"`
}

// CloneReq asks this agent to reconstruct a tablet from a peer snapshot.
type CloneReq struct {
	TabletID      int64          `json:"tablet_id"`
	SchemaHash    int32          `json:"schema_hash"`
	SrcBackends   []Backend      `json:"src_backends"`
	StorageMedium StorageMedium  `json:"storage_medium"`
	Committed     *TabletVersion `json:"committed,omitempty"`
}

// StorageMediumMigrateReq moves a tablet between storage media.
type StorageMediumMigrateReq struct {
	TabletID   int64         `json:"tablet_id"`
	SchemaHash int32         `json:"schema_hash"`
	Medium     StorageMedium `json:"storage_medium"`
}

// CancelDeleteReq cancels a pending delete on a tablet.
type CancelDeleteReq struct {
	TabletID   int64 `json:"tablet_id"`
	SchemaHash int32 `json:"schema_hash"`
	Version    int64 `json:"version"`
}

// CheckConsistencyReq asks for a checksum of a tablet at a version.
type CheckConsistencyReq struct {
	TabletID    int64 `json:"tablet_id"`
	SchemaHash  int32 `json:"schema_hash"`
	Version     int64 `json:"version"`
	VersionHash int64 `json:"version_hash"`
}

// SnapshotReq asks for a read-only on-disk copy of a tablet.
type SnapshotReq struct {
	TabletID   int64 `json:"tablet_id"`
	SchemaHash int32 `json:"schema_hash"`
}

// ReleaseSnapshotReq frees a snapshot previously made on this agent.
type ReleaseSnapshotReq struct {
	SnapshotPath string `json:"snapshot_path"`
}

// UploadReq pushes local tablet files to a remote source via the transfer
// tool. TabletID is optional; when set it is appended to the local path.
type UploadReq struct {
	TabletID               *int64            `json:"tablet_id,omitempty"`
	LocalFilePath          string            `json:"local_file_path"`
	RemoteFilePath         string            `json:"remote_file_path"`
	RemoteSourceProperties map[string]string `json:"remote_source_properties"`
}

// RestoreReq pulls tablet files from a remote source and loads them.
type RestoreReq struct {
	TabletID               int64             `json:"tablet_id"`
	SchemaHash             int32             `json:"schema_hash"`
	RemoteFilePath         string            `json:"remote_file_path"`
	RemoteSourceProperties map[string]string `json:"remote_source_properties"`
}

// TaskRequest is one work item dispatched by the master. Kind selects which
// payload pointer is set; handlers treat a missing payload as a request error.
type TaskRequest struct {
	Kind      TaskKind
	Signature int64
	Priority  Priority
	Resource  *ResourceInfo

	CreateTablet         *CreateTabletReq
	DropTablet           *DropTabletReq
	AlterTablet          *AlterTabletReq
	Push                 *PushReq
	Clone                *CloneReq
	StorageMediumMigrate *StorageMediumMigrateReq
	CancelDelete         *CancelDeleteReq
	CheckConsistency     *CheckConsistencyReq
	Snapshot             *SnapshotReq
	ReleaseSnapshot      *ReleaseSnapshotReq
	Upload               *UploadReq
	Restore              *RestoreReq
}

// User returns the submitting user, or "" when the request carries none.
func (t *TaskRequest) User() string {
	if t.Resource == nil {
		return ""
	}
	return t.Resource.User
}

// TaskStatus is the outcome of a task as reported to the master.
type TaskStatus struct {
	Code      StatusCode `json:"status_code"`
	ErrorMsgs []string   `json:"error_msgs,omitempty"`
}

// FinishRequest reports one completed task to the master.
type FinishRequest struct {
	Backend            Backend      `json:"backend"`
	Kind               TaskKind     `json:"task_type"`
	Signature          int64        `json:"signature"`
	Status             TaskStatus   `json:"task_status"`
	ReportVersion      int64        `json:"report_version,omitempty"`
	FinishTabletInfos  []TabletInfo `json:"finish_tablet_infos,omitempty"`
	SnapshotPath       string       `json:"snapshot_path,omitempty"`
	RequestVersion     int64        `json:"request_version,omitempty"`
	RequestVersionHash int64        `json:"request_version_hash,omitempty"`
	TabletChecksum     int64        `json:"tablet_checksum,omitempty"`
}

// ReportRequest is the payload of the three periodic reporters.
type ReportRequest struct {
	Backend       Backend              `json:"backend"`
	Tasks         map[TaskKind][]int64 `json:"tasks,omitempty"`
	Disks         map[string]DiskInfo  `json:"disks,omitempty"`
	Tablets       []TabletInfo         `json:"tablets,omitempty"`
	ReportVersion int64                `json:"report_version,omitempty"`
}

// MasterResult is the master's acknowledgement of a finish or report call.
type MasterResult struct {
	Status TaskStatus `json:"status"`
}

// SnapshotResult is a peer's answer to a MakeSnapshot call.
type SnapshotResult struct {
	Status       TaskStatus `json:"status"`
	SnapshotPath string     `json:"snapshot_path,omitempty"`
}
