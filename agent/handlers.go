package agent

import (
	log "github.com/sirupsen/logrus"
)

// Handlers convert every failure into the reported status; nothing escapes
// past the FinishRequest. The pool removes the registry entry after the
// handler returns.

func (a *Agent) newFinish(req *TaskRequest) *FinishRequest {
	return &FinishRequest{
		Backend:   a.backend,
		Kind:      req.Kind,
		Signature: req.Signature,
	}
}

func setStatus(finish *FinishRequest, err error, msgs ...string) {
	finish.Status.Code = StatusOf(err)
	finish.Status.ErrorMsgs = append(finish.Status.ErrorMsgs, msgs...)
	if err != nil {
		finish.Status.ErrorMsgs = append(finish.Status.ErrorMsgs, err.Error())
	}
}

func (a *Agent) getTabletInfo(tabletID int64, schemaHash int32, signature int64) (*TabletInfo, error) {
	info, err := a.env.Engine.TabletInfo(tabletID, schemaHash)
	if err != nil {
		log.Warnf("get tablet info failed. tablet_id: %d, schema_hash: %d, signature: %d, err: %v",
			tabletID, schemaHash, signature, err)
		return nil, err
	}
	return info, nil
}

func handleCreateTablet(a *Agent, req *TaskRequest) {
	finish := a.newFinish(req)
	if req.CreateTablet == nil {
		setStatus(finish, TaskErrorf(ErrTaskRequest, "create tablet request missing payload"))
		finish.ReportVersion = a.ReportVersion()
		a.finishTask(finish)
		return
	}
	err := a.env.Engine.CreateTablet(req.CreateTablet)
	if err != nil {
		log.Warnf("create tablet failed. signature: %d, err: %v", req.Signature, err)
	} else {
		a.bumpReportVersion()
	}
	setStatus(finish, err)
	finish.ReportVersion = a.ReportVersion()
	a.finishTask(finish)
}

func handleDropTablet(a *Agent, req *TaskRequest) {
	finish := a.newFinish(req)
	if req.DropTablet == nil {
		setStatus(finish, TaskErrorf(ErrTaskRequest, "drop tablet request missing payload"))
		a.finishTask(finish)
		return
	}
	err := a.env.Engine.DropTablet(req.DropTablet)
	if err != nil {
		log.Warnf("drop tablet failed. signature: %d, err: %v", req.Signature, err)
		setStatus(finish, err, "drop tablet failed")
	} else {
		a.bumpReportVersion()
		finish.ReportVersion = a.ReportVersion()
	}
	a.finishTask(finish)
}

func handleStorageMediumMigrate(a *Agent, req *TaskRequest) {
	finish := a.newFinish(req)
	if req.StorageMediumMigrate == nil {
		setStatus(finish, TaskErrorf(ErrTaskRequest, "storage medium migrate request missing payload"))
		a.finishTask(finish)
		return
	}
	err := a.env.Engine.StorageMediumMigrate(req.StorageMediumMigrate)
	if err != nil {
		log.Warnf("storage medium migrate failed. signature: %d, err: %v", req.Signature, err)
	} else {
		log.Infof("storage medium migrate success. signature: %d", req.Signature)
	}
	setStatus(finish, err)
	a.finishTask(finish)
}

func handleCancelDelete(a *Agent, req *TaskRequest) {
	finish := a.newFinish(req)
	if req.CancelDelete == nil {
		setStatus(finish, TaskErrorf(ErrTaskRequest, "cancel delete request missing payload"))
		a.finishTask(finish)
		return
	}
	log.Infof("get cancel delete data task. signature: %d", req.Signature)
	err := a.env.Engine.CancelDelete(req.CancelDelete)
	if err != nil {
		log.Warnf("cancel delete data failed. signature: %d, err: %v", req.Signature, err)
	} else {
		log.Infof("cancel delete data success. signature: %d", req.Signature)
	}
	setStatus(finish, err)
	a.finishTask(finish)
}

func handleCheckConsistency(a *Agent, req *TaskRequest) {
	finish := a.newFinish(req)
	if req.CheckConsistency == nil {
		setStatus(finish, TaskErrorf(ErrTaskRequest, "check consistency request missing payload"))
		a.finishTask(finish)
		return
	}
	cc := req.CheckConsistency
	checksum, err := a.env.Engine.ComputeChecksum(cc.TabletID, cc.SchemaHash, cc.Version, cc.VersionHash)
	if err != nil {
		log.Warnf("check consistency failed. signature: %d, err: %v", req.Signature, err)
	} else {
		log.Infof("check consistency success. signature: %d, checksum: %d", req.Signature, checksum)
	}
	setStatus(finish, err)
	finish.TabletChecksum = int64(checksum)
	finish.RequestVersion = cc.Version
	finish.RequestVersionHash = cc.VersionHash
	a.finishTask(finish)
}
