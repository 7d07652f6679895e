package agent

import (
	"encoding/json"
	"io/ioutil"
	"time"

	"github.com/pkg/errors"
)

// Config holds every tunable the agent recognizes. LoadConfig decodes a file
// over DefaultConfig, so options absent from the file keep their defaults and
// a config file only needs the options it overrides.
type Config struct {
	CreateTabletWorkerCount       int `json:"create_table_worker_count"`
	DropTabletWorkerCount         int `json:"drop_table_worker_count"`
	PushWorkerCountNormalPriority int `json:"push_worker_count_normal_priority"`
	PushWorkerCountHighPriority   int `json:"push_worker_count_high_priority"`
	DeleteWorkerCount             int `json:"delete_worker_count"`
	AlterTabletWorkerCount        int `json:"alter_table_worker_count"`
	CloneWorkerCount              int `json:"clone_worker_count"`
	StorageMediumMigrateCount     int `json:"storage_medium_migrate_count"`
	CancelDeleteDataWorkerCount   int `json:"cancel_delete_data_worker_count"`
	CheckConsistencyWorkerCount   int `json:"check_consistency_worker_count"`
	UploadWorkerCount             int `json:"upload_worker_count"`
	RestoreWorkerCount            int `json:"restore_worker_count"`
	MakeSnapshotWorkerCount       int `json:"make_snapshot_worker_count"`
	ReleaseSnapshotWorkerCount    int `json:"release_snapshot_worker_count"`

	ReportTaskIntervalSeconds      int `json:"report_task_interval_seconds"`
	ReportDiskStateIntervalSeconds int `json:"report_disk_state_interval_seconds"`
	ReportOlapTableIntervalSeconds int `json:"report_olap_table_interval_seconds"`
	SleepOneSecond                 int `json:"sleep_one_second"`

	DownloadLowSpeedLimitKbps int    `json:"download_low_speed_limit_kbps"`
	DownloadLowSpeedTime      int    `json:"download_low_speed_time"`
	AgentTmpDir               string `json:"agent_tmp_dir"`
	TransFileToolPath         string `json:"trans_file_tool_path"`

	BePort        int `json:"be_port"`
	WebserverPort int `json:"webserver_port"`
}

func DefaultConfig() *Config {
	return &Config{
		CreateTabletWorkerCount:       3,
		DropTabletWorkerCount:         3,
		PushWorkerCountNormalPriority: 3,
		PushWorkerCountHighPriority:   3,
		DeleteWorkerCount:             3,
		AlterTabletWorkerCount:        3,
		CloneWorkerCount:              3,
		StorageMediumMigrateCount:     1,
		CancelDeleteDataWorkerCount:   3,
		CheckConsistencyWorkerCount:   1,
		UploadWorkerCount:             1,
		RestoreWorkerCount:            3,
		MakeSnapshotWorkerCount:       5,
		ReleaseSnapshotWorkerCount:    5,

		ReportTaskIntervalSeconds:      10,
		ReportDiskStateIntervalSeconds: 60,
		ReportOlapTableIntervalSeconds: 60,
		SleepOneSecond:                 1,

		DownloadLowSpeedLimitKbps: 50,
		DownloadLowSpeedTime:      300,
		AgentTmpDir:               "/tmp/palisade_agent",
		TransFileToolPath:         "/usr/local/palisade/bin/trans_file_tool.sh",

		BePort:        9060,
		WebserverPort: 8040,
	}
}

// LoadConfig reads a JSON config file over the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read config %s", path)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "parse config %s", path)
	}
	return cfg, nil
}

// sleep is the unit wait used by retry loops and the heartbeat gate. Tests
// set SleepOneSecond to zero to run the loops hot.
func (c *Config) sleep() time.Duration {
	return time.Duration(c.SleepOneSecond) * time.Second
}

func (c *Config) taskInterval() time.Duration {
	return time.Duration(c.ReportTaskIntervalSeconds) * time.Second
}

func (c *Config) diskInterval() time.Duration {
	return time.Duration(c.ReportDiskStateIntervalSeconds) * time.Second
}

func (c *Config) tabletInterval() time.Duration {
	return time.Duration(c.ReportOlapTableIntervalSeconds) * time.Second
}
