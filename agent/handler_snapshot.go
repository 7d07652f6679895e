package agent

import (
	log "github.com/sirupsen/logrus"
)

func handleMakeSnapshot(a *Agent, req *TaskRequest) {
	finish := a.newFinish(req)
	if req.Snapshot == nil {
		setStatus(finish, TaskErrorf(ErrTaskRequest, "snapshot request missing payload"))
		a.finishTask(finish)
		return
	}
	log.Infof("get snapshot task. signature: %d", req.Signature)
	snapshotPath, err := a.env.Engine.MakeSnapshot(req.Snapshot)
	if err != nil {
		log.Warnf("make snapshot failed. tablet_id: %d, schema_hash: %d, err: %v",
			req.Snapshot.TabletID, req.Snapshot.SchemaHash, err)
		setStatus(finish, err, "make snapshot failed")
	} else {
		log.Infof("make snapshot success. tablet_id: %d, schema_hash: %d, snapshot_path: %s",
			req.Snapshot.TabletID, req.Snapshot.SchemaHash, snapshotPath)
		finish.SnapshotPath = snapshotPath
		setStatus(finish, nil)
	}
	a.finishTask(finish)
}

func handleReleaseSnapshot(a *Agent, req *TaskRequest) {
	finish := a.newFinish(req)
	if req.ReleaseSnapshot == nil {
		setStatus(finish, TaskErrorf(ErrTaskRequest, "release snapshot request missing payload"))
		a.finishTask(finish)
		return
	}
	log.Infof("get release snapshot task. signature: %d", req.Signature)
	snapshotPath := req.ReleaseSnapshot.SnapshotPath
	err := a.env.Engine.ReleaseSnapshot(snapshotPath)
	if err != nil {
		log.Warnf("release snapshot failed. snapshot_path: %s, err: %v", snapshotPath, err)
		setStatus(finish, err, "release snapshot failed")
	} else {
		log.Infof("release snapshot success. snapshot_path: %s", snapshotPath)
		setStatus(finish, nil)
	}
	a.finishTask(finish)
}
