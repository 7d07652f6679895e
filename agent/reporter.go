package agent

import (
	"github.com/cenkalti/backoff"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// taskFinishMaxRetry bounds how often a FinishRequest is offered to the
// master before it is abandoned. The master re-drives abandoned tasks from
// the periodic task report.
const taskFinishMaxRetry = 3

// finishTask delivers a completion report with bounded retry: up to three
// attempts, one wait interval apart. The reporter is stateless and is called
// from every worker.
func (a *Agent) finishTask(req *FinishRequest) {
	stat := a.stat.Scope("finish")
	attempts := 0
	b := backoff.WithMaxRetries(backoff.NewConstantBackOff(a.cfg.sleep()), taskFinishMaxRetry-1)
	err := backoff.Retry(func() error {
		attempts++
		result, err := a.env.Master.FinishTask(req)
		if err != nil {
			stat.Counter("retries").Inc(1)
			log.Warnf("finish task failed. kind: %s, signature: %d, attempt: %d, err: %v",
				req.Kind, req.Signature, attempts, err)
			return errors.Wrap(err, "finish_task")
		}
		log.Infof("finish task success. kind: %s, signature: %d, result: %s",
			req.Kind, req.Signature, result.Status.Code)
		return nil
	}, b)
	if err != nil {
		stat.Counter("abandoned").Inc(1)
		log.Warnf("finish task abandoned after %d attempts. kind: %s, signature: %d",
			attempts, req.Kind, req.Signature)
	}
}
