package agent

// External collaborators of the task engine. The agent only fixes these
// contracts; production implementations live with the storage engine and the
// RPC layer, and tests substitute fakes.

// StorageEngine is the local tablet store the handlers drive.
type StorageEngine interface {
	CreateTablet(req *CreateTabletReq) error
	DropTablet(req *DropTabletReq) error
	SchemaChange(req *AlterTabletReq) error
	Rollup(req *AlterTabletReq) error
	ShowAlterStatus(tabletID int64, schemaHash int32) (AlterStatus, error)
	DeleteData(req *PushReq) ([]TabletInfo, error)
	CancelDelete(req *CancelDeleteReq) error
	StorageMediumMigrate(req *StorageMediumMigrateReq) error
	ComputeChecksum(tabletID int64, schemaHash int32, version, versionHash int64) (uint32, error)
	MakeSnapshot(req *SnapshotReq) (snapshotPath string, err error)
	ReleaseSnapshot(snapshotPath string) error

	// ObtainShardPath picks a local shard root on the given medium for a
	// new tablet.
	ObtainShardPath(medium StorageMedium) (string, error)
	// LoadHeader makes the engine pick up a tablet whose files were placed
	// under shardRoot by clone or restore.
	LoadHeader(shardRoot string, tabletID int64, schemaHash int32) error

	// GetTablet returns nil (and no error) when the tablet is not local.
	GetTablet(tabletID int64, schemaHash int32) (*TabletInfo, error)
	// TabletInfo fills the reportable info of a local tablet.
	TabletInfo(tabletID int64, schemaHash int32) (*TabletInfo, error)

	AllRootPathStats() ([]RootPathStat, error)
	AllTabletsInfo() ([]TabletInfo, error)

	// MarkDiskReported / MarkTabletReported acknowledge an early disk-event
	// wakeup so the engine does not signal again within the same interval.
	MarkDiskReported()
	MarkTabletReported()
}

// Pusher streams one batch load into a tablet. A new Pusher is built per
// push request.
type Pusher interface {
	Init() error
	Process() ([]TabletInfo, error)
}

// PusherFactory builds the Pusher for a LOAD/LOAD_DELETE request.
type PusherFactory func(req *PushReq) Pusher

// MasterClient reports task completion and periodic state to the master.
type MasterClient interface {
	FinishTask(req *FinishRequest) (*MasterResult, error)
	Report(req *ReportRequest) (*MasterResult, error)
}

// PeerClient is the agent-to-agent RPC surface used by the clone copier.
type PeerClient interface {
	MakeSnapshot(req *SnapshotReq) (*SnapshotResult, error)
	ReleaseSnapshot(snapshotPath string) error
}

// PeerFactory dials the agent running on the given backend.
type PeerFactory func(backend Backend) PeerClient

// FileDownloader fetches snapshot files over the peer HTTP download API.
type FileDownloader interface {
	// ListDir fetches a newline-separated directory listing.
	ListDir(url string, timeoutSeconds int64) ([]string, error)
	// Length probes the byte size of a remote file.
	Length(url string, timeoutSeconds int64) (int64, error)
	// Download streams a remote file to localPath, replacing any previous
	// content, and returns the number of bytes written.
	Download(url, localPath string, timeoutSeconds int64) (int64, error)
}

// CgroupsMgr places the calling worker into the system resource group so CPU
// accounting reflects which operation is running.
type CgroupsMgr interface {
	ApplySystemCgroup()
}

type noopCgroups struct{}

func (noopCgroups) ApplySystemCgroup() {}
