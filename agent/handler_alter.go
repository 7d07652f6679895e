package agent

import (
	log "github.com/sirupsen/logrus"
)

func handleAlterTablet(a *Agent, req *TaskRequest) {
	var process string
	switch req.Kind {
	case KindRollup:
		process = "rollup"
	case KindSchemaChange:
		process = "schema change"
	}

	finish := a.newFinish(req)
	if process == "" || req.AlterTablet == nil {
		log.Warnf("alter request invalid. kind: %s, signature: %d", req.Kind, req.Signature)
		setStatus(finish, TaskErrorf(ErrTaskRequest, "alter request task type or payload invalid"))
		finish.ReportVersion = a.ReportVersion()
		a.finishTask(finish)
		return
	}
	a.alterTablet(process, req, finish)
	a.finishTask(finish)
}

// alterTablet runs one schema change or rollup. A leftover tablet from a
// previously failed alter on the same base is dropped first; the new alter
// only starts when the prior state is done, failed or waiting.
func (a *Agent) alterTablet(process string, req *TaskRequest, finish *FinishRequest) {
	alter := req.AlterTablet
	signature := req.Signature

	var err error
	status, serr := a.env.Engine.ShowAlterStatus(alter.BaseTabletID, alter.BaseSchemaHash)
	if serr != nil {
		err = serr
	} else {
		log.Infof("get alter status: %d first. signature: %d", status, signature)
		if status == AlterFailed {
			drop := &DropTabletReq{
				TabletID:   alter.NewTablet.TabletID,
				SchemaHash: alter.NewTablet.SchemaHash,
			}
			if derr := a.env.Engine.DropTablet(drop); derr != nil {
				log.Warnf("delete failed %s tablet failed. signature: %d, err: %v",
					process, signature, derr)
				err = derr
			}
		}
		if err == nil {
			switch status {
			case AlterDone, AlterFailed, AlterWaiting:
				if req.Kind == KindRollup {
					err = a.env.Engine.Rollup(alter)
				} else {
					err = a.env.Engine.SchemaChange(alter)
				}
			}
		}
	}

	if err == nil {
		a.bumpReportVersion()
		log.Infof("%s finished. signature: %d", process, signature)
	}
	finish.ReportVersion = a.ReportVersion()

	if err == nil {
		info, ierr := a.getTabletInfo(alter.NewTablet.TabletID, alter.NewTablet.SchemaHash, signature)
		if ierr != nil {
			log.Warnf("%s success, but get new tablet info failed. signature: %d", process, signature)
			err = ierr
		} else {
			finish.FinishTabletInfos = []TabletInfo{*info}
		}
	}

	if err == nil {
		log.Infof("%s success. signature: %d", process, signature)
		setStatus(finish, nil, process+" success")
	} else {
		log.Warnf("%s failed. signature: %d, err: %v", process, signature, err)
		setStatus(finish, err, process+" failed")
	}
}
