package agent

import (
	log "github.com/sirupsen/logrus"
)

// pushMaxRetry bounds re-running a load whose pusher hit an internal error.
// Request errors are never retried.
const pushMaxRetry = 1

// handlePush serves both the push pool (LOAD/LOAD_DELETE) and the delete
// pool (DELETE).
func handlePush(a *Agent, req *TaskRequest) {
	finish := a.newFinish(req)
	if req.Push == nil {
		setStatus(finish, TaskErrorf(ErrTaskRequest, "push request missing payload"))
		finish.ReportVersion = a.ReportVersion()
		a.finishTask(finish)
		return
	}
	push := req.Push
	log.Infof("get push task. signature: %d, user: %s, push_type: %d",
		req.Signature, req.User(), push.PushType)

	var tabletInfos []TabletInfo
	var err error
	switch push.PushType {
	case PushLoad, PushLoadDelete:
		tabletInfos, err = a.runPush(push, req.Signature)
	case PushDelete:
		tabletInfos, err = a.env.Engine.DeleteData(push)
		if err != nil {
			log.Warnf("delete data failed. signature: %d, err: %v", req.Signature, err)
		}
	default:
		err = TaskErrorf(ErrTaskRequest, "push request push_type invalid: %d", push.PushType)
	}

	if push.PushType == PushDelete {
		finish.RequestVersion = push.Version
		finish.RequestVersionHash = push.VersionHash
	}

	if err == nil {
		log.Debugf("push ok. signature: %d", req.Signature)
		a.bumpReportVersion()
		finish.FinishTabletInfos = tabletInfos
		setStatus(finish, nil, "push success")
	} else if CodeOf(err) == ErrTaskRequest {
		log.Warnf("push request invalid. signature: %d, err: %v", req.Signature, err)
		setStatus(finish, err)
	} else {
		log.Warnf("push failed. signature: %d, err: %v", req.Signature, err)
		setStatus(finish, err, "push failed")
	}
	finish.ReportVersion = a.ReportVersion()
	a.finishTask(finish)
}

func (a *Agent) runPush(push *PushReq, signature int64) ([]TabletInfo, error) {
	if a.env.NewPusher == nil {
		return nil, TaskErrorf(ErrInternal, "no pusher wired")
	}
	pusher := a.env.NewPusher(push)
	if err := pusher.Init(); err != nil {
		return nil, err
	}
	var infos []TabletInfo
	var err error
	for retry := 0; ; retry++ {
		infos, err = pusher.Process()
		if err == nil || CodeOf(err) == ErrTaskRequest || retry >= pushMaxRetry {
			break
		}
		log.Warnf("push internal error, need retry. signature: %d, err: %v", signature, err)
	}
	return infos, err
}
